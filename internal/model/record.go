package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/vocab"
)

// MutationType describes the nature of one record version.
type MutationType string

const (
	MutationCreate MutationType = "create"
	MutationEdit   MutationType = "edit"
	MutationDelete MutationType = "delete"
)

func (m MutationType) rank() int {
	switch m {
	case MutationCreate:
		return 0
	case MutationEdit:
		return 1
	case MutationDelete:
		return 2
	default:
		return -1
	}
}

// Valid reports whether m is one of the known mutation types.
func (m MutationType) Valid() bool { return m.rank() >= 0 }

// Source tags where a record version came from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
	SourceOracle Source = "oracle"
)

// SystemReporter attributes versions produced by the oracle or the sweeper.
const SystemReporter = "system"

// EventRecord is one version of an event sighting on a world.
type EventRecord struct {
	ID              string
	Kind            vocab.Kind
	World           string
	Type            MutationType
	Duration        time.Duration
	Timestamp       time.Time
	ReportedBy      string
	Source          Source
	PreviousVersion *EventRecord
}

// wireRecord is the JSON shape: whole seconds and unix milliseconds.
type wireRecord struct {
	ID              string       `json:"id"`
	Kind            vocab.Kind   `json:"kind"`
	World           string       `json:"world"`
	Type            MutationType `json:"type"`
	Duration        int64        `json:"duration"`
	Timestamp       int64        `json:"timestamp"`
	ReportedBy      string       `json:"reportedBy"`
	Source          Source       `json:"source,omitempty"`
	PreviousVersion *EventRecord `json:"previousVersion"`
}

func (r EventRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRecord{
		ID:              r.ID,
		Kind:            r.Kind,
		World:           r.World,
		Type:            r.Type,
		Duration:        int64(r.Duration / time.Second),
		Timestamp:       r.Timestamp.UnixMilli(),
		ReportedBy:      r.ReportedBy,
		Source:          r.Source,
		PreviousVersion: r.PreviousVersion,
	})
}

func (r *EventRecord) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = EventRecord{
		ID:              w.ID,
		Kind:            w.Kind,
		World:           w.World,
		Type:            w.Type,
		Duration:        time.Duration(w.Duration) * time.Second,
		Timestamp:       time.UnixMilli(w.Timestamp),
		ReportedBy:      w.ReportedBy,
		Source:          w.Source,
		PreviousVersion: w.PreviousVersion,
	}
	return nil
}

// Validate checks the fields every version must carry.
func (r EventRecord) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: id is required", ErrValidation)
	case r.Kind == "":
		return fmt.Errorf("%w: kind is required", ErrValidation)
	case r.World == "":
		return fmt.Errorf("%w: world is required", ErrValidation)
	case !r.Type.Valid():
		return fmt.Errorf("%w: unknown mutation type %q", ErrValidation, r.Type)
	case r.Duration < 0:
		return fmt.Errorf("%w: negative duration", ErrValidation)
	case r.Timestamp.IsZero():
		return fmt.Errorf("%w: timestamp is required", ErrValidation)
	}
	return nil
}

// ExpiresAt is the instant the record stops being active.
func (r EventRecord) ExpiresAt() time.Time {
	return r.Timestamp.Add(r.Duration)
}

// IsActive reports now < timestamp + duration. Delete versions are never active.
func (r EventRecord) IsActive(now time.Time) bool {
	if r.Type == MutationDelete {
		return false
	}
	return now.Before(r.ExpiresAt())
}

// Remaining is the time left before expiry, floored at zero.
func (r EventRecord) Remaining(now time.Time) time.Duration {
	left := r.ExpiresAt().Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Supersede builds the next version of r. The previous version is kept one level deep.
func (r EventRecord) Supersede(mutation MutationType, now time.Time) EventRecord {
	prev := r
	prev.PreviousVersion = nil
	next := r
	next.Type = mutation
	next.Timestamp = now
	next.PreviousVersion = &prev
	return next
}

// Newer orders versions by timestamp, then create < edit < delete.
func (r EventRecord) Newer(other EventRecord) bool {
	if !r.Timestamp.Equal(other.Timestamp) {
		return r.Timestamp.After(other.Timestamp)
	}
	return r.Type.rank() > other.Type.rank()
}

// Same reports whether two versions carry identical state, ignoring the history chain.
func (r EventRecord) Same(other EventRecord) bool {
	return r.ID == other.ID &&
		r.Kind == other.Kind &&
		r.World == other.World &&
		r.Type == other.Type &&
		r.Duration == other.Duration &&
		r.Timestamp.Equal(other.Timestamp) &&
		r.ReportedBy == other.ReportedBy
}

// ReportedBefore orders competing creations: earlier timestamp wins, then lower id.
func ReportedBefore(a, b EventRecord) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}
