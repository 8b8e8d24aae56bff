package reconcile

import (
	"context"
	"errors"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/backend"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/metrics"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/model"
)

// Correction actions reported by ReconcileOracle.
const (
	ActionCreate   = "create"
	ActionEdit     = "edit"
	ActionExpire   = "expire"
	ActionRegister = "register"
	ActionSkip     = "skip"
)

// Correction is one change made because of the oracle.
type Correction struct {
	Action string
	Record model.EventRecord
}

// ReconcileOracle compares the oracle's view of world with the store and
// corrects drift. Oracle failures are skipped; a world the oracle does not
// know is given our active record instead.
func (e *Engine) ReconcileOracle(ctx context.Context, world string) []Correction {
	if e.oracle == nil || world == "" {
		return nil
	}
	var out []Correction
	for _, kind := range e.oracleKinds {
		now := e.now()
		local, hasLocal := e.store.FindActive(world, kind, now)
		log := e.log.With().Str("world", world).Str("kind", string(kind)).Logger()

		st, err := e.oracle.Status(ctx, world, kind)
		if err != nil {
			if errors.Is(err, backend.ErrWorldUnknown) && hasLocal {
				if rerr := e.oracle.Register(ctx, local); rerr != nil {
					log.Info().Err(rerr).Msg("oracle register failed")
					continue
				}
				metrics.OracleCorrections.WithLabelValues(ActionRegister).Inc()
				out = append(out, Correction{Action: ActionRegister, Record: local})
				continue
			}
			if errors.Is(err, backend.ErrAuthExpired) {
				e.submissionFailed(err, "oracle")
			}
			metrics.OracleCorrections.WithLabelValues(ActionSkip).Inc()
			log.Info().Err(err).Msg("oracle unavailable; skipping")
			continue
		}

		switch {
		case st.Active && !hasLocal:
			if st.Remaining <= 0 {
				continue
			}
			rec := model.EventRecord{
				ID:         e.newID(),
				Kind:       kind,
				World:      world,
				Type:       model.MutationCreate,
				Duration:   st.Remaining,
				Timestamp:  now,
				ReportedBy: model.SystemReporter,
				Source:     model.SourceOracle,
			}
			e.create(ctx, rec, false)
			metrics.OracleCorrections.WithLabelValues(ActionCreate).Inc()
			out = append(out, Correction{Action: ActionCreate, Record: rec})

		case st.Active && hasLocal:
			diff := local.Remaining(now) - st.Remaining
			if diff < 0 {
				diff = -diff
			}
			if diff <= e.drift {
				continue
			}
			edit := local.Supersede(model.MutationEdit, now)
			edit.Duration = st.Remaining
			edit.ReportedBy = model.SystemReporter
			edit.Source = model.SourceOracle
			e.edit(ctx, edit)
			metrics.OracleCorrections.WithLabelValues(ActionEdit).Inc()
			out = append(out, Correction{Action: ActionEdit, Record: edit})

		case !st.Active && hasLocal:
			e.expire(ctx, local, model.SystemReporter, model.SourceOracle)
			metrics.OracleCorrections.WithLabelValues(ActionExpire).Inc()
			cur, _ := e.store.Get(local.ID)
			out = append(out, Correction{Action: ActionExpire, Record: cur})
		}
	}
	return out
}
