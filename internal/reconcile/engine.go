// Package reconcile turns classifier candidates and relayed records into
// store mutations, and keeps the store honest against the world oracle.
package reconcile

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/mod/semver"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/backend"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/classify"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/events"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/metrics"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/model"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/store"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/vocab"
)

// DefaultDriftTolerance is how far local remaining time may differ from the
// oracle before an edit is issued.
const DefaultDriftTolerance = 30 * time.Second

// Engine is owned by the poll loop; none of its methods may run concurrently.
type Engine struct {
	store   *store.Store
	vocab   *vocab.Vocabulary
	sub     backend.Submitter
	oracle  backend.Oracle
	bus     *events.Bus
	attrib  *Attribution
	sweeper *Sweeper

	player      string
	version     string
	drift       time.Duration
	oracleKinds []vocab.Kind
	now         func() time.Time
	newID       func() string
	log         zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

func WithOracle(o backend.Oracle) Option        { return func(e *Engine) { e.oracle = o } }
func WithBus(b *events.Bus) Option              { return func(e *Engine) { e.bus = b } }
func WithAttribution(a *Attribution) Option     { return func(e *Engine) { e.attrib = a } }
func WithPlayer(name string) Option             { return func(e *Engine) { e.player = name } }
func WithVersion(v string) Option               { return func(e *Engine) { e.version = v } }
func WithDriftTolerance(d time.Duration) Option { return func(e *Engine) { e.drift = d } }
func WithClock(now func() time.Time) Option     { return func(e *Engine) { e.now = now } }
func WithIDs(next func() string) Option         { return func(e *Engine) { e.newID = next } }
func WithLogger(l zerolog.Logger) Option        { return func(e *Engine) { e.log = l } }

// WithOracleKinds limits oracle reconciliation to kinds. By default every
// non-debug kind is checked.
func WithOracleKinds(kinds ...vocab.Kind) Option {
	return func(e *Engine) { e.oracleKinds = kinds }
}

// New wires an engine around st. sub must not be nil.
func New(st *store.Store, v *vocab.Vocabulary, sub backend.Submitter, opts ...Option) *Engine {
	e := &Engine{
		store:   st,
		vocab:   v,
		sub:     sub,
		sweeper: NewSweeper(),
		drift:   DefaultDriftTolerance,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With().Str("component", "reconcile").Logger()
	if e.oracleKinds == nil {
		for _, k := range v.All() {
			if !k.Debug {
				e.oracleKinds = append(e.oracleKinds, k.Name)
			}
		}
	}
	if e.player == "" {
		e.player = model.SystemReporter
	}
	return e
}

// Prime starts watching records that are already active, e.g. after a reload.
func (e *Engine) Prime() {
	for _, r := range e.store.Active(e.now()) {
		e.sweeper.Track(r, e.now())
	}
}

// Idle reports whether the expiry sweep has nothing to watch.
func (e *Engine) Idle() bool { return e.sweeper.Idle() }

// Attribution returns the sighting counter, if configured.
func (e *Engine) Attribution() *Attribution { return e.attrib }

// HandleCandidate applies one classifier candidate observed on world.
func (e *Engine) HandleCandidate(ctx context.Context, world string, cand classify.Candidate) {
	if world == "" {
		return
	}
	switch cand.Phase {
	case classify.PhaseStart:
		e.handleStart(ctx, world, cand)
	case classify.PhaseEnd:
		e.handleEnd(ctx, world, cand)
	}
}

func (e *Engine) handleStart(ctx context.Context, world string, cand classify.Candidate) {
	log := e.log.With().Str("world", world).Str("kind", string(cand.Kind)).Logger()
	if !cand.FirstSeen {
		log.Debug().Msg("ongoing phrase; nothing to create")
		return
	}
	now := e.now()
	if existing, ok := e.store.FindActive(world, cand.Kind, now); ok {
		log.Debug().Str("id", existing.ID).Msg("already tracked")
		return
	}
	dur := e.vocab.Duration(cand.Kind)
	if dur == vocab.UnknownDuration {
		log.Debug().Msg("kind has no nominal duration")
		return
	}
	rec := model.EventRecord{
		ID:         e.newID(),
		Kind:       cand.Kind,
		World:      world,
		Type:       model.MutationCreate,
		Duration:   dur,
		Timestamp:  now,
		ReportedBy: e.player,
		Source:     model.SourceLocal,
	}
	e.create(ctx, rec, true)
}

// create submits rec and applies the outcome. Transport failures keep the
// optimistic local record so the oracle can register it later.
func (e *Engine) create(ctx context.Context, rec model.EventRecord, attribute bool) {
	log := e.log.With().Str("id", rec.ID).Str("world", rec.World).Str("kind", string(rec.Kind)).Logger()
	res, err := e.sub.SubmitCreate(ctx, rec)
	if err != nil {
		metrics.Submissions.WithLabelValues("create", "error").Inc()
		e.submissionFailed(err, "create")
		e.apply(ctx, rec)
		return
	}
	metrics.Submissions.WithLabelValues("create", res.Outcome.String()).Inc()

	if attribute && e.attrib != nil {
		if credited, aerr := e.attrib.Record(ctx, res); aerr != nil {
			log.Warn().Err(aerr).Msg("attribution not persisted")
		} else if credited {
			log.Debug().Int64("count", e.attrib.Count()).Msg("sighting credited")
		}
	}

	if res.Outcome == backend.Conflict {
		log.Info().Bool("firstPerceived", res.FirstPerceived).Msg("creation conflict; another observer was accepted")
		e.bus.Publish(events.Event{Kind: events.CreateConflict, World: rec.World, Record: &rec, At: e.now()})
		if res.Existing != nil {
			winner := *res.Existing
			winner.Source = model.SourceRemote
			e.apply(ctx, winner)
		}
		return
	}
	e.apply(ctx, rec)
}

func (e *Engine) handleEnd(ctx context.Context, world string, cand classify.Candidate) {
	now := e.now()
	active, ok := e.store.FindActive(world, cand.Kind, now)
	if !ok {
		return
	}
	e.expire(ctx, active, e.player, model.SourceLocal)
}

// expire sends a zero-duration edit, applying it locally whatever the backend says.
func (e *Engine) expire(ctx context.Context, active model.EventRecord, reporter string, source model.Source) {
	edit := active.Supersede(model.MutationEdit, e.now())
	edit.Duration = 0
	edit.ReportedBy = reporter
	edit.Source = source
	e.edit(ctx, edit)
}

func (e *Engine) edit(ctx context.Context, rec model.EventRecord) {
	res, err := e.sub.SubmitEdit(ctx, rec)
	if err != nil {
		metrics.Submissions.WithLabelValues("edit", "error").Inc()
		e.submissionFailed(err, "edit")
	} else {
		metrics.Submissions.WithLabelValues("edit", res.Outcome.String()).Inc()
	}
	e.apply(ctx, rec)
}

func (e *Engine) submissionFailed(err error, op string) {
	e.log.Warn().Err(err).Str("op", op).Msg("submission failed")
	if errors.Is(err, backend.ErrAuthExpired) {
		e.bus.Publish(events.Event{
			Kind:    events.Notification,
			Message: "Session expired; sightings are kept locally until you sign in again.",
			At:      e.now(),
		})
	}
}

// apply upserts rec and publishes what changed.
func (e *Engine) apply(ctx context.Context, rec model.EventRecord) store.Change {
	ch, err := e.store.Upsert(ctx, rec)
	if err != nil {
		e.log.Warn().Err(err).Str("id", rec.ID).Msg("store upsert")
	}
	if !ch.Applied {
		return ch
	}
	cur := ch.Record
	now := e.now()
	switch {
	case ch.Removed:
		e.sweeper.Forget(cur.ID)
		e.bus.Publish(events.Event{Kind: events.RecordRemoved, World: cur.World, Record: &cur, At: now})
	case ch.Previous == nil || ch.Healed:
		e.sweeper.Track(cur, now)
		e.bus.Publish(events.Event{Kind: events.RecordCreated, World: cur.World, Record: &cur, At: now})
	default:
		e.sweeper.Track(cur, now)
		e.bus.Publish(events.Event{Kind: events.RecordEdited, World: cur.World, Record: &cur, At: now})
	}
	return ch
}

// HandleMessage merges one relayed message.
func (e *Engine) HandleMessage(ctx context.Context, msg Message) {
	metrics.RemoteMessages.WithLabelValues(string(msg.Type())).Inc()
	switch m := msg.(type) {
	case CreateMsg:
		e.remoteCreate(ctx, m.Record)
	case EditMsg:
		e.remoteEdit(ctx, m.Record)
	case DeleteMsg:
		e.remoteDelete(ctx, m.Record.ID)
	case SyncMsg:
		recs := slices.Clone(m.Records)
		slices.SortStableFunc(recs, func(a, b model.EventRecord) int {
			switch {
			case b.Newer(a):
				return -1
			case a.Newer(b):
				return 1
			}
			return 0
		})
		for _, r := range recs {
			switch r.Type {
			case model.MutationCreate:
				e.remoteCreate(ctx, r)
			case model.MutationDelete:
				e.remoteDelete(ctx, r.ID)
			default:
				e.remoteEdit(ctx, r)
			}
		}
	case LogMsg:
		e.bus.Publish(events.Event{Kind: events.LogMessage, Message: m.Text, At: e.now()})
	case VersionMsg:
		if newerVersion(m.Version, e.version) {
			e.bus.Publish(events.Event{Kind: events.UpdateAvailable, Message: m.Version, At: e.now()})
		}
	}
}

// remoteCreate keeps the earlier report when two different records are
// active for the same world and kind.
func (e *Engine) remoteCreate(ctx context.Context, rec model.EventRecord) {
	rec.Source = model.SourceRemote
	if !e.admit(ctx, rec) {
		return
	}
	e.apply(ctx, rec)
}

// remoteEdit merges a relayed edit. An active edit for an unknown id stands in
// for its create, so it is admitted by the report time of that create.
func (e *Engine) remoteEdit(ctx context.Context, rec model.EventRecord) {
	rec.Source = model.SourceRemote
	if _, known := e.store.Get(rec.ID); !known && rec.IsActive(e.now()) {
		origin := rec
		if rec.PreviousVersion != nil {
			origin.Timestamp = rec.PreviousVersion.Timestamp
		}
		if !e.admit(ctx, origin) {
			return
		}
	}
	e.apply(ctx, rec)
}

// admit reports whether rec may become the active record for its world and
// kind, removing a later-reported rival when it can.
func (e *Engine) admit(ctx context.Context, rec model.EventRecord) bool {
	existing, ok := e.store.FindActive(rec.World, rec.Kind, e.now())
	if !ok || existing.ID == rec.ID {
		return true
	}
	if model.ReportedBefore(existing, rec) {
		e.log.Debug().Str("kept", existing.ID).Str("dropped", rec.ID).Msg("duplicate creation ignored")
		return false
	}
	e.log.Debug().Str("kept", rec.ID).Str("dropped", existing.ID).Msg("earlier remote report replaces local record")
	e.remoteDelete(ctx, existing.ID)
	return true
}

func (e *Engine) remoteDelete(ctx context.Context, id string) {
	ch, err := e.store.Remove(ctx, id)
	if err != nil {
		e.log.Warn().Err(err).Str("id", id).Msg("store remove")
	}
	e.sweeper.Forget(id)
	if ch.Removed {
		rec := ch.Record
		e.bus.Publish(events.Event{Kind: events.RecordRemoved, World: rec.World, Record: &rec, At: e.now()})
	}
}

// Sweep reports records that expired since the last sweep. It never mutates the store.
func (e *Engine) Sweep(now time.Time) []Transition {
	out := e.sweeper.Sweep(now, e.store.Get)
	for _, tr := range out {
		rec := tr.Record
		e.bus.Publish(events.Event{Kind: events.RecordExpired, World: rec.World, Record: &rec, At: now})
	}
	metrics.ActiveRecords.Set(float64(e.sweeper.Len()))
	return out
}

func newerVersion(candidate, running string) bool {
	c, r := canonical(candidate), canonical(running)
	if !semver.IsValid(c) || !semver.IsValid(r) {
		return false
	}
	return semver.Compare(c, r) > 0
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
