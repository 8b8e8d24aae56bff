// Package fuzzy finds the vocabulary phrase that best explains a line of OCR text.
//
// Each phrase is aligned against the query as an approximate substring
// (semi-global Levenshtein): the phrase must be matched end to end, while any
// amount of the query before or after it is free. The score is the edit
// distance divided by the phrase length, so 0 is an exact occurrence and 1 is
// no resemblance. Entries are searched in the order given; a later entry only
// replaces the current best with a strictly lower score, which makes the
// first-declared phrase win every tie.
package fuzzy

import (
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/vocab"
)

// DefaultThreshold is the highest score still accepted as a match.
const DefaultThreshold = 0.3

// DefaultMinMatchLength rejects short coincidental overlaps.
const DefaultMinMatchLength = 10

// Entry is one searchable phrase. Index is its position within the kind's list;
// for lifecycle phrases index 0 is the first-seen phrase.
type Entry struct {
	Kind   vocab.Kind
	Phrase string
	Index  int
}

// Match is the winning entry for a query.
type Match struct {
	Entry
	Score float64
	// Start and End delimit the aligned span in the normalised query, in runes.
	Start, End int
}

type indexed struct {
	entry Entry
	norm  []rune
}

// Index is an immutable, pre-normalised list of entries.
type Index struct {
	entries   []indexed
	threshold float64
}

// Option configures an Index.
type Option func(*Index)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(th float64) Option {
	return func(ix *Index) { ix.threshold = th }
}

// NewIndex normalises every phrase once. Entries whose phrase normalises to
// nothing are skipped.
func NewIndex(entries []Entry, opts ...Option) *Index {
	ix := &Index{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(ix)
	}
	for _, e := range entries {
		n := []rune(Normalize(e.Phrase))
		if len(n) == 0 {
			continue
		}
		ix.entries = append(ix.entries, indexed{entry: e, norm: n})
	}
	return ix
}

// Len is the number of searchable entries.
func (ix *Index) Len() int { return len(ix.entries) }

// Threshold is the acceptance cut-off in use.
func (ix *Index) Threshold() float64 { return ix.threshold }

// Search returns the best entry for query. Queries, and aligned spans, shorter
// than minMatchLength runes after normalisation never match.
func (ix *Index) Search(query string, minMatchLength int) (Match, bool) {
	q := []rune(Normalize(query))
	if len(q) == 0 || len(q) < minMatchLength {
		return Match{}, false
	}

	var (
		best  Match
		found bool
	)
	for _, e := range ix.entries {
		dist, start, end := align(e.norm, q)
		if end-start < minMatchLength {
			continue
		}
		score := float64(dist) / float64(len(e.norm))
		if score > 1 {
			score = 1
		}
		if score > ix.threshold {
			continue
		}
		if !found || score < best.Score {
			best = Match{Entry: e.entry, Score: score, Start: start, End: end}
			found = true
			if score == 0 {
				break
			}
		}
	}
	return best, found
}

// align computes the semi-global edit distance of pattern inside text and the
// span of text it aligns to. Among equal distances the leftmost end wins.
func align(pattern, text []rune) (dist, start, end int) {
	n := len(text)
	prev := make([]int, n+1)
	cur := make([]int, n+1)
	prevStart := make([]int, n+1)
	curStart := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = 0
		prevStart[j] = j
	}

	for i := 1; i <= len(pattern); i++ {
		cur[0] = i
		curStart[0] = 0
		for j := 1; j <= n; j++ {
			cost := 1
			if pattern[i-1] == text[j-1] {
				cost = 0
			}
			d, s := prev[j-1]+cost, prevStart[j-1]
			if v := prev[j] + 1; v < d {
				d, s = v, prevStart[j]
			}
			if v := cur[j-1] + 1; v < d {
				d, s = v, curStart[j-1]
			}
			cur[j], curStart[j] = d, s
		}
		prev, cur = cur, prev
		prevStart, curStart = curStart, prevStart
	}

	dist, end = prev[0], 0
	start = prevStart[0]
	for j := 1; j <= n; j++ {
		if prev[j] < dist {
			dist, start, end = prev[j], prevStart[j], j
		}
	}
	return dist, start, end
}
