package classify

import (
	"regexp"
	"strconv"
	"time"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/vocab"
)

// Channel is the capture area a line was read from.
type Channel string

const (
	ChannelChat   Channel = "chat"
	ChannelDialog Channel = "dialog"
)

// TextLine is one line of OCR output. Y is the optional vertical screen
// position in pixels.
type TextLine struct {
	Text       string
	Y          *int
	Channel    Channel
	ObservedAt time.Time
}

// Phase says what a candidate line announces.
type Phase string

const (
	PhaseStart Phase = "start"
	PhaseEnd   Phase = "end"
	PhaseHop   Phase = "hop"
)

// Candidate is an accepted classification of one line.
type Candidate struct {
	Phase     Phase
	Kind      vocab.Kind
	FirstSeen bool
	Score     float64
	Line      TextLine
	// Timestamp is the "hh:mm:ss" text stripped from the line, if any.
	Timestamp string
	Speaker   string
}

var timestampRe = regexp.MustCompile(`^\s*\[(\d{1,2}):(\d{2}):(\d{2})\]\s*`)

// splitTimestamp strips a leading [hh:mm:ss] token.
func splitTimestamp(s string) (clock string, secs int, rest string, ok bool) {
	m := timestampRe.FindStringSubmatchIndex(s)
	if m == nil {
		return "", 0, s, false
	}
	h, _ := strconv.Atoi(s[m[2]:m[3]])
	mi, _ := strconv.Atoi(s[m[4]:m[5]])
	se, _ := strconv.Atoi(s[m[6]:m[7]])
	if h > 23 || mi > 59 || se > 59 {
		return "", 0, s, false
	}
	clock = s[m[2]:m[7]]
	return clock, h*3600 + mi*60 + se, s[m[1]:], true
}

const rolloverSpan = 12 * 3600

// isStale reports whether a time of day falls before the last accepted one.
// A backwards jump of more than twelve hours is read as midnight passing.
func isStale(last, cur int) bool {
	diff := cur - last
	if diff >= 0 {
		return false
	}
	return diff >= -rolloverSpan
}
