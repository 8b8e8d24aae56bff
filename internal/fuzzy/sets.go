package fuzzy

import "github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/vocab"

// Lifecycle lists every lifecycle phrase of every kind, in vocabulary order.
func Lifecycle(v *vocab.Vocabulary) []Entry {
	var out []Entry
	for _, k := range v.All() {
		for i, p := range k.Phrases {
			out = append(out, Entry{Kind: k.Name, Phrase: p, Index: i})
		}
	}
	return out
}

// FirstSeen lists only the arrival phrase of each kind.
func FirstSeen(v *vocab.Vocabulary) []Entry {
	var out []Entry
	for _, k := range v.All() {
		out = append(out, Entry{Kind: k.Name, Phrase: k.Phrases[0]})
	}
	return out
}

// Departures lists every departure phrase of every kind.
func Departures(v *vocab.Vocabulary) []Entry {
	var out []Entry
	for _, k := range v.All() {
		for i, p := range k.Departures {
			out = append(out, Entry{Kind: k.Name, Phrase: p, Index: i})
		}
	}
	return out
}

// Hops lists world-hop phrases; their entries carry no kind.
func Hops(v *vocab.Vocabulary) []Entry {
	var out []Entry
	for i, p := range v.HopPhrases() {
		out = append(out, Entry{Phrase: p, Index: i})
	}
	return out
}
