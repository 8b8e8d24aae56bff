package reconcile

import (
	"time"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/model"
)

// Transition reports a record that stopped being active between sweeps.
type Transition struct {
	Record model.EventRecord
	At     time.Time
}

// Sweeper remembers which records were active so a periodic sweep can report
// the ones that have since expired. It goes idle when nothing is tracked.
type Sweeper struct {
	active map[string]struct{}
}

func NewSweeper() *Sweeper {
	return &Sweeper{active: make(map[string]struct{})}
}

// Track starts watching rec if it is active at now. It returns true when this
// wakes an idle sweeper.
func (s *Sweeper) Track(rec model.EventRecord, now time.Time) bool {
	if !rec.IsActive(now) {
		return false
	}
	wasIdle := len(s.active) == 0
	s.active[rec.ID] = struct{}{}
	return wasIdle
}

// Forget stops watching id.
func (s *Sweeper) Forget(id string) { delete(s.active, id) }

// Idle reports whether no record is being watched.
func (s *Sweeper) Idle() bool { return len(s.active) == 0 }

// Len is the number of watched records.
func (s *Sweeper) Len() int { return len(s.active) }

// Sweep checks every watched record against now using lookup for the current
// version. Removed records are forgotten silently.
func (s *Sweeper) Sweep(now time.Time, lookup func(id string) (model.EventRecord, bool)) []Transition {
	var out []Transition
	for id := range s.active {
		rec, ok := lookup(id)
		if !ok {
			delete(s.active, id)
			continue
		}
		if !rec.IsActive(now) {
			delete(s.active, id)
			out = append(out, Transition{Record: rec, At: now})
		}
	}
	return out
}
