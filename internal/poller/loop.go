// Package poller runs the single goroutine that owns the classifier, world
// tracker, reconciliation engine and store mutations.
package poller

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/capture"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/classify"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/events"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/metrics"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/reconcile"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/store"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/world"
)

// Config controls the cadence of each loop activity.
type Config struct {
	ChatInterval     time.Duration
	DialogInterval   time.Duration
	SweepInterval    time.Duration
	OracleInterval   time.Duration
	PruneInterval    time.Duration
	HistoryRetention time.Duration
}

func (c *Config) defaults() {
	if c.ChatInterval <= 0 {
		c.ChatInterval = time.Second
	}
	if c.DialogInterval <= 0 {
		c.DialogInterval = time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Second
	}
	if c.OracleInterval <= 0 {
		c.OracleInterval = time.Minute
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = time.Hour
	}
	if c.HistoryRetention <= 0 {
		c.HistoryRetention = 24 * time.Hour
	}
}

// Deps are the components the loop owns for its lifetime. Chat and Dialog may
// be nil; Inbound may be nil when no relay is configured.
type Deps struct {
	Chat       capture.Source
	Dialog     capture.Source
	Classifier *classify.Classifier
	Tracker    *world.Tracker
	Engine     *reconcile.Engine
	Store      *store.Store
	Bus        *events.Bus
	Inbound    <-chan reconcile.Message
	// OracleGate reports whether oracle reconciliation may run, typically
	// the backend health flag. Nil means always.
	OracleGate func() bool
}

// Loop is the poll actor.
type Loop struct {
	Deps
	cfg   Config
	now   func() time.Time
	log   zerolog.Logger
	sweep *time.Ticker
}

func New(deps Deps, cfg Config, log zerolog.Logger) *Loop {
	cfg.defaults()
	return &Loop{
		Deps: deps,
		cfg:  cfg,
		now:  time.Now,
		log:  log.With().Str("component", "poller").Logger(),
	}
}

// Run blocks until ctx is done. All store mutations happen on this goroutine.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info().
		Dur("chat", l.cfg.ChatInterval).
		Dur("dialog", l.cfg.DialogInterval).
		Dur("oracle", l.cfg.OracleInterval).
		Msg("poll loop starting")

	chat := time.NewTicker(l.cfg.ChatInterval)
	defer chat.Stop()
	dialog := time.NewTicker(l.cfg.DialogInterval)
	defer dialog.Stop()
	oracle := time.NewTicker(l.cfg.OracleInterval)
	defer oracle.Stop()
	prune := time.NewTicker(l.cfg.PruneInterval)
	defer prune.Stop()
	defer l.stopSweep()

	l.Engine.Prime()
	l.armSweep()

	inbound := l.Inbound
	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("poll loop stopping")
			return ctx.Err()
		case <-chat.C:
			l.poll(ctx, l.Chat)
		case <-dialog.C:
			l.poll(ctx, l.Dialog)
		case <-oracle.C:
			l.reconcileOracle(ctx)
		case <-l.sweepC():
			l.sweepOnce()
		case <-prune.C:
			l.pruneHistory(ctx)
		case msg, ok := <-inbound:
			if !ok {
				inbound = nil
				continue
			}
			l.Engine.HandleMessage(ctx, msg)
		}
		l.armSweep()
	}
}

// poll reads one batch from src and feeds it through classification.
func (l *Loop) poll(ctx context.Context, src capture.Source) {
	if src == nil {
		return
	}
	lines, err := src.Lines(ctx)
	if err != nil {
		l.log.Warn().Err(err).Msg("capture read failed")
		return
	}
	if len(lines) == 0 {
		return
	}

	now := l.now()
	if l.Tracker.InQuiet(now) {
		metrics.QuietDiscards.Add(float64(len(lines)))
		l.log.Debug().Int("lines", len(lines)).Time("quietUntil", l.Tracker.QuietUntil()).Msg("discarding batch during world hop")
		return
	}

	res := l.Tracker.Resolve(ctx, now)
	if res.Changed {
		l.Bus.Publish(events.Event{Kind: events.WorldChanged, World: res.World, At: now})
	}

	for _, cand := range l.Classifier.ClassifyBatch(lines) {
		metrics.Candidates.WithLabelValues(string(cand.Kind), string(cand.Phase)).Inc()
		if cand.Phase == classify.PhaseHop {
			// the rest of the batch was read while the hop settles;
			// classifier ordering state is kept so pre-hop lines stay stale
			l.Tracker.MarkHop(now)
			return
		}
		if !res.Known {
			l.log.Debug().Str("kind", string(cand.Kind)).Msg("world unknown; dropping candidate")
			continue
		}
		l.Engine.HandleCandidate(ctx, res.World, cand)
	}
}

func (l *Loop) reconcileOracle(ctx context.Context) {
	if l.OracleGate != nil && !l.OracleGate() {
		l.log.Debug().Msg("backend unhealthy; oracle check skipped")
		return
	}
	now := l.now()
	if l.Tracker.InQuiet(now) {
		return
	}
	w, ok := l.Tracker.CurrentWorld()
	if !ok {
		return
	}
	for _, c := range l.Engine.ReconcileOracle(ctx, w) {
		l.log.Debug().Str("action", c.Action).Str("id", c.Record.ID).Msg("oracle correction")
	}
}

func (l *Loop) sweepOnce() {
	for _, tr := range l.Engine.Sweep(l.now()) {
		l.log.Info().Str("id", tr.Record.ID).Str("world", tr.Record.World).Str("kind", string(tr.Record.Kind)).Msg("event expired")
	}
}

func (l *Loop) pruneHistory(ctx context.Context) {
	cutoff := l.now().Add(-l.cfg.HistoryRetention)
	n, err := l.Store.Prune(ctx, cutoff)
	if err != nil {
		l.log.Warn().Err(err).Msg("history prune")
		return
	}
	if n > 0 {
		l.log.Info().Int("pruned", n).Msg("history pruned")
	}
}

// armSweep starts the sweep ticker when something is active and stops it
// when the engine goes idle.
func (l *Loop) armSweep() {
	idle := l.Engine.Idle()
	switch {
	case !idle && l.sweep == nil:
		l.sweep = time.NewTicker(l.cfg.SweepInterval)
	case idle && l.sweep != nil:
		l.stopSweep()
	}
}

func (l *Loop) stopSweep() {
	if l.sweep != nil {
		l.sweep.Stop()
		l.sweep = nil
	}
}

// sweepC is nil while idle, which disables the select case.
func (l *Loop) sweepC() <-chan time.Time {
	if l.sweep == nil {
		return nil
	}
	return l.sweep.C
}
