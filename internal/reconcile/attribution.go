package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/backend"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/config"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/kv"
)

// AttributionKey is where the sighting count is persisted.
const AttributionKey = "eventwatch/attribution"

// Attribution counts sightings credited to the local player.
//
//   - accepted: only creations the backend accepted from us
//   - perceived: only results where the backend says we saw it first
//   - either: whichever of the two applies
type Attribution struct {
	policy config.AttributionPolicy
	kv     kv.KV
	count  atomic.Int64
	log    zerolog.Logger
}

type attributionState struct {
	Count int64 `json:"count"`
}

// NewAttribution loads the persisted count. A corrupt value restarts at zero.
func NewAttribution(ctx context.Context, policy config.AttributionPolicy, store kv.KV, log zerolog.Logger) (*Attribution, error) {
	if policy == "" {
		policy = config.AttributionEither
	}
	a := &Attribution{policy: policy, kv: store, log: log}
	raw, err := store.Get(ctx, AttributionKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load attribution: %w", err)
	default:
		var st attributionState
		if jerr := json.Unmarshal(raw, &st); jerr != nil {
			log.Warn().Err(jerr).Msg("discarding corrupt attribution count")
		} else {
			a.count.Store(st.Count)
		}
	}
	return a, nil
}

// Credits reports whether res earns a sighting under the policy.
func (a *Attribution) Credits(res backend.Result) bool {
	accepted := res.Outcome == backend.Accepted
	switch a.policy {
	case config.AttributionAccepted:
		return accepted
	case config.AttributionPerceived:
		return res.FirstPerceived
	default:
		return accepted || res.FirstPerceived
	}
}

// Record applies the policy to res and persists the new count when credited.
func (a *Attribution) Record(ctx context.Context, res backend.Result) (bool, error) {
	if !a.Credits(res) {
		return false, nil
	}
	n := a.count.Add(1)
	data, _ := json.Marshal(attributionState{Count: n})
	if err := a.kv.Put(ctx, AttributionKey, data); err != nil {
		return true, fmt.Errorf("persist attribution: %w", err)
	}
	return true, nil
}

// Count is the number of credited sightings.
func (a *Attribution) Count() int64 { return a.count.Load() }

// Policy is the active policy.
func (a *Attribution) Policy() config.AttributionPolicy { return a.policy }
