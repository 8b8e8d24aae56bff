// Package vocab holds the read-only registry of event kinds and the phrases
// that announce, accompany and end them.
package vocab

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies one event kind by its display name.
type Kind string

// UnknownDuration is the reserved sentinel for kinds without a nominal duration.
const UnknownDuration time.Duration = 0

// EventKind describes one recognisable event.
// Phrases[0] is the first-seen (arrival) phrase; the rest are ongoing flavour text.
type EventKind struct {
	Name         Kind
	Abbreviation string
	Phrases      []string
	Departures   []string
	Duration     time.Duration
	Debug        bool
	Unknown      bool
}

// Validate checks the invariants of a single kind.
func (k EventKind) Validate() error {
	if strings.TrimSpace(string(k.Name)) == "" {
		return fmt.Errorf("kind name is required")
	}
	if len(k.Phrases) == 0 {
		return fmt.Errorf("kind %q: at least one lifecycle phrase is required", k.Name)
	}
	for i, p := range k.Phrases {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("kind %q: phrase %d is empty", k.Name, i)
		}
	}
	if k.Duration < 0 {
		return fmt.Errorf("kind %q: negative duration", k.Name)
	}
	if k.Duration == UnknownDuration && !k.Debug && !k.Unknown {
		return fmt.Errorf("kind %q: duration must be > 0", k.Name)
	}
	return nil
}

// Vocabulary is an ordered, immutable set of event kinds.
// Declaration order is significant: fuzzy search breaks ties by it.
type Vocabulary struct {
	kinds    []EventKind
	byName   map[Kind]int
	aliases  map[string]int
	prefixes []string
	hops     []string
	strict   bool
}

// Option configures a Vocabulary at construction.
type Option func(*Vocabulary)

// Strict makes lookups of unknown kinds panic. Used in development builds.
func Strict(on bool) Option {
	return func(v *Vocabulary) { v.strict = on }
}

// New builds and validates a vocabulary.
func New(kinds []EventKind, speakerPrefixes, hopPhrases []string, opts ...Option) (*Vocabulary, error) {
	v := &Vocabulary{
		byName:   make(map[Kind]int, len(kinds)),
		aliases:  make(map[string]int, len(kinds)*2),
		prefixes: append([]string(nil), speakerPrefixes...),
		hops:     append([]string(nil), hopPhrases...),
	}
	for _, opt := range opts {
		opt(v)
	}
	for i, k := range kinds {
		if err := k.Validate(); err != nil {
			return nil, err
		}
		if _, dup := v.byName[k.Name]; dup {
			return nil, fmt.Errorf("duplicate kind %q", k.Name)
		}
		k.Phrases = append([]string(nil), k.Phrases...)
		k.Departures = append([]string(nil), k.Departures...)
		v.kinds = append(v.kinds, k)
		v.byName[k.Name] = i
		v.aliases[strings.ToLower(string(k.Name))] = i
		if k.Abbreviation != "" {
			v.aliases[strings.ToLower(k.Abbreviation)] = i
		}
	}
	return v, nil
}

// Kinds returns every kind identity in declaration order.
func (v *Vocabulary) Kinds() []Kind {
	out := make([]Kind, len(v.kinds))
	for i, k := range v.kinds {
		out[i] = k.Name
	}
	return out
}

// All returns copies of every kind in declaration order.
func (v *Vocabulary) All() []EventKind {
	return append([]EventKind(nil), v.kinds...)
}

// Lookup returns the kind definition without the strict-mode panic.
func (v *Vocabulary) Lookup(k Kind) (EventKind, bool) {
	i, ok := v.byName[k]
	if !ok {
		return EventKind{}, false
	}
	return v.kinds[i], true
}

func (v *Vocabulary) mustLookup(k Kind) EventKind {
	ek, ok := v.Lookup(k)
	if !ok && v.strict {
		panic(fmt.Sprintf("vocab: unknown kind %q", k))
	}
	return ek
}

// Phrases returns the lifecycle phrases of k.
func (v *Vocabulary) Phrases(k Kind) []string {
	return append([]string(nil), v.mustLookup(k).Phrases...)
}

// Departures returns the departure phrases of k.
func (v *Vocabulary) Departures(k Kind) []string {
	return append([]string(nil), v.mustLookup(k).Departures...)
}

// FirstSeen returns the arrival phrase of k.
func (v *Vocabulary) FirstSeen(k Kind) string {
	ek := v.mustLookup(k)
	if len(ek.Phrases) == 0 {
		return ""
	}
	return ek.Phrases[0]
}

// Duration returns the nominal duration of k.
func (v *Vocabulary) Duration(k Kind) time.Duration {
	return v.mustLookup(k).Duration
}

// Abbreviation returns the short name of k.
func (v *Vocabulary) Abbreviation(k Kind) string {
	return v.mustLookup(k).Abbreviation
}

// IsDebug reports whether k is the internal testing kind.
func (v *Vocabulary) IsDebug(k Kind) bool {
	return v.mustLookup(k).Debug
}

// ParseKind resolves a name or abbreviation, case-insensitively.
func (v *Vocabulary) ParseKind(name string) (Kind, error) {
	i, ok := v.aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unknown event kind %q (valid: %s)", name, strings.Join(v.names(), ", "))
	}
	return v.kinds[i].Name, nil
}

func (v *Vocabulary) names() []string {
	out := make([]string, len(v.kinds))
	for i, k := range v.kinds {
		out[i] = string(k.Name)
	}
	return out
}

// SpeakerPrefixes lists names whose "Name:" prefix vouches for the rest of a line.
func (v *Vocabulary) SpeakerPrefixes() []string {
	return append([]string(nil), v.prefixes...)
}

// HopPhrases lists chat text that signals a world hop.
func (v *Vocabulary) HopPhrases() []string {
	return append([]string(nil), v.hops...)
}

// IsStrict reports whether unknown lookups panic.
func (v *Vocabulary) IsStrict() bool { return v.strict }
