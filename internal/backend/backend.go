// Package backend talks to the shared event service: record submissions, the
// per-world oracle and token refresh.
package backend

import (
	"context"
	"time"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/model"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/vocab"
)

// Outcome is how the backend answered a submission.
type Outcome int

const (
	Accepted Outcome = iota
	Conflict
)

func (o Outcome) String() string {
	if o == Conflict {
		return "conflict"
	}
	return "accepted"
}

// Result of a submission that reached the backend.
type Result struct {
	Outcome Outcome
	// FirstPerceived is set when the backend judged this reporter to have seen
	// the event first, whether or not its creation was the one accepted.
	FirstPerceived bool
	// Existing is the record that won a creation race, when the backend returns it.
	Existing *model.EventRecord
}

// Submitter sends record versions to the backend. Errors are transport or
// HTTP failures; conflicts are results, not errors.
type Submitter interface {
	SubmitCreate(ctx context.Context, rec model.EventRecord) (Result, error)
	SubmitEdit(ctx context.Context, rec model.EventRecord) (Result, error)
	SubmitDelete(ctx context.Context, rec model.EventRecord) (Result, error)
}

// OracleStatus is the oracle's view of one kind on one world.
type OracleStatus struct {
	World     string
	Kind      vocab.Kind
	Active    bool
	Remaining time.Duration
}

// Oracle is the slower authoritative timer source.
type Oracle interface {
	Status(ctx context.Context, world string, kind vocab.Kind) (OracleStatus, error)
	Register(ctx context.Context, rec model.EventRecord) error
}

// Refresher renews the session token.
type Refresher interface {
	Refresh(ctx context.Context) error
}
