// Package classify turns OCR'd chat and dialog lines into event candidates.
package classify

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/fuzzy"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/vocab"
)

// DefaultPositionTolerance is the vertical slack, in pixels, allowed above the
// lowest line already read in a batch.
const DefaultPositionTolerance = 100

// Outcome labels why a line was kept or dropped.
type Outcome string

const (
	OutcomeCandidate  Outcome = "candidate"
	OutcomeMiss       Outcome = "miss"
	OutcomeGated      Outcome = "gated"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeStub       Outcome = "stub"
	OutcomePosition   Outcome = "position"
	OutcomeStale      Outcome = "stale"
	OutcomeSuppressed Outcome = "suppressed"
)

type channelState struct {
	timestamps   bool
	lastAccepted string
	lastClock    int
	haveClock    bool
}

// Classifier is stateful per channel and must be driven by a single goroutine.
type Classifier struct {
	vocab      *vocab.Vocabulary
	lifecycle  *fuzzy.Index
	firstSeen  *fuzzy.Index
	departures *fuzzy.Index
	hops       *fuzzy.Index

	minMatchLength    int
	positionTolerance int
	threshold         float64
	production        bool
	log               zerolog.Logger
	onClassified      func(Candidate)
	onOutcome         func(Outcome)

	channels map[Channel]*channelState
}

// Option configures a Classifier.
type Option func(*Classifier)

func WithMinMatchLength(n int) Option { return func(c *Classifier) { c.minMatchLength = n } }

func WithThreshold(th float64) Option { return func(c *Classifier) { c.threshold = th } }

func WithPositionTolerance(px int) Option {
	return func(c *Classifier) { c.positionTolerance = px }
}

// WithProduction suppresses candidates for debug-only kinds.
func WithProduction(on bool) Option { return func(c *Classifier) { c.production = on } }

func WithLogger(l zerolog.Logger) Option { return func(c *Classifier) { c.log = l } }

// WithOnClassified registers a hook called for every accepted candidate.
func WithOnClassified(fn func(Candidate)) Option {
	return func(c *Classifier) { c.onClassified = fn }
}

// WithOnOutcome registers a hook called once per non-empty line.
func WithOnOutcome(fn func(Outcome)) Option {
	return func(c *Classifier) { c.onOutcome = fn }
}

// New builds the four search indexes from v.
func New(v *vocab.Vocabulary, opts ...Option) *Classifier {
	c := &Classifier{
		vocab:             v,
		minMatchLength:    fuzzy.DefaultMinMatchLength,
		positionTolerance: DefaultPositionTolerance,
		threshold:         fuzzy.DefaultThreshold,
		log:               zerolog.Nop(),
		channels:          make(map[Channel]*channelState),
	}
	for _, opt := range opts {
		opt(c)
	}
	th := fuzzy.WithThreshold(c.threshold)
	c.lifecycle = fuzzy.NewIndex(fuzzy.Lifecycle(v), th)
	c.firstSeen = fuzzy.NewIndex(fuzzy.FirstSeen(v), th)
	c.departures = fuzzy.NewIndex(fuzzy.Departures(v), th)
	c.hops = fuzzy.NewIndex(fuzzy.Hops(v), th)
	return c
}

func (c *Classifier) state(ch Channel) *channelState {
	st, ok := c.channels[ch]
	if !ok {
		st = &channelState{}
		c.channels[ch] = st
	}
	return st
}

// TimestampsEnabled reports what the last batch on ch showed.
func (c *Classifier) TimestampsEnabled(ch Channel) bool {
	return c.state(ch).timestamps
}

// ClassifyBatch runs one poll tick worth of lines, top to bottom, and returns
// the accepted candidates in line order.
func (c *Classifier) ClassifyBatch(lines []TextLine) []Candidate {
	if len(lines) == 0 {
		return nil
	}
	perChannel := make(map[Channel]bool)
	for _, l := range lines {
		if _, _, _, ok := splitTimestamp(l.Text); ok {
			perChannel[l.Channel] = true
		}
	}
	for _, l := range lines {
		c.state(l.Channel).timestamps = perChannel[l.Channel]
	}

	maxY := make(map[Channel]int)
	var out []Candidate
	for _, line := range lines {
		if strings.TrimSpace(line.Text) == "" {
			continue
		}
		cand, outcome := c.classify(line, maxY)
		if c.onOutcome != nil {
			c.onOutcome(outcome)
		}
		if outcome != OutcomeCandidate {
			continue
		}
		out = append(out, cand)
		if c.onClassified != nil {
			c.onClassified(cand)
		}
	}
	return out
}

func (c *Classifier) classify(line TextLine, maxY map[Channel]int) (Candidate, Outcome) {
	st := c.state(line.Channel)
	raw := strings.TrimSpace(line.Text)
	if raw == "" {
		return Candidate{}, OutcomeMiss
	}

	clock, secs, body, hasClock := splitTimestamp(raw)
	body = strings.TrimSpace(body)
	if hasClock && body == "" {
		return Candidate{}, OutcomeStub
	}
	if raw == st.lastAccepted {
		return Candidate{}, OutcomeDuplicate
	}

	if st.timestamps && line.Y != nil {
		y := *line.Y
		if top, seen := maxY[line.Channel]; seen {
			if y < top-c.positionTolerance {
				c.log.Debug().Int("y", y).Int("maxY", top).Str("line", raw).Msg("line above read window")
				return Candidate{}, OutcomePosition
			}
			if y > top {
				maxY[line.Channel] = y
			}
		} else {
			maxY[line.Channel] = y
		}
	}

	if hasClock {
		if st.haveClock && isStale(st.lastClock, secs) {
			c.log.Debug().Str("clock", clock).Str("line", raw).Msg("stale line")
			return Candidate{}, OutcomeStale
		}
		st.lastClock, st.haveClock = secs, true
	}
	st.lastAccepted = raw

	cand := Candidate{Line: line, Timestamp: clock}

	if m, ok := c.hops.Search(body, c.minMatchLength); ok {
		cand.Phase, cand.Score = PhaseHop, m.Score
		return cand, OutcomeCandidate
	}

	speaker, rest := c.stripSpeaker(body)
	cand.Speaker = speaker

	if m, ok := c.departures.Search(rest, c.minMatchLength); ok {
		cand.Phase, cand.Kind, cand.Score = PhaseEnd, m.Kind, m.Score
		return c.finish(cand)
	}

	if speaker == "" {
		if _, ok := c.firstSeen.Search(rest, c.minMatchLength); !ok {
			c.log.Debug().Str("line", raw).Msg("no speaker and no first-seen phrase")
			return Candidate{}, OutcomeGated
		}
	}

	m, ok := c.lifecycle.Search(rest, c.minMatchLength)
	if !ok {
		c.log.Debug().Str("line", raw).Msg("no lifecycle match")
		return Candidate{}, OutcomeMiss
	}
	cand.Phase, cand.Kind, cand.Score = PhaseStart, m.Kind, m.Score
	cand.FirstSeen = m.Index == 0
	return c.finish(cand)
}

func (c *Classifier) finish(cand Candidate) (Candidate, Outcome) {
	if c.production {
		if ek, ok := c.vocab.Lookup(cand.Kind); ok && ek.Debug {
			return Candidate{}, OutcomeSuppressed
		}
	}
	return cand, OutcomeCandidate
}

// stripSpeaker removes a known "Name:" prefix. Semicolons are accepted since
// OCR confuses them with colons.
func (c *Classifier) stripSpeaker(body string) (speaker, rest string) {
	for _, p := range c.vocab.SpeakerPrefixes() {
		if len(body) < len(p) || !strings.EqualFold(body[:len(p)], p) {
			continue
		}
		tail := strings.TrimLeft(body[len(p):], " ")
		if tail == "" || (tail[0] != ':' && tail[0] != ';') {
			continue
		}
		return p, strings.TrimSpace(tail[1:])
	}
	return "", body
}
