// Package watcher wires the event watcher process together.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/api"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/backend"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/capture"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/classify"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/config"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/events"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/factory"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/health"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/kv"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/logger"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/metrics"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/observability"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/poller"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/reconcile"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/relay"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/store"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/vocab"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/world"
)

// Version is set at build time with -ldflags.
var Version = "0.1.0"

const healthInterval = 30 * time.Second

// Run starts the watcher and blocks until SIGINT/SIGTERM or a fatal error.
func Run() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	logOpts := []logger.Option{logger.WithLevel(logger.ParseLevel(cfg.LogLevel))}
	if cfg.IsDevelopment() {
		logOpts = append(logOpts, logger.WithConsole())
	}
	log := logger.New("eventwatch", logOpts...)
	log.Info().
		Str("version", Version).
		Str("kv_driver", cfg.KVDriver).
		Str("backend", cfg.BackendURL).
		Bool("relay", cfg.RelayURL != "").
		Int("http_port", cfg.HTTPPort).
		Msg("event watcher starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := observability.InitTracing(ctx, observability.Config{
		ServiceName:    "eventwatch",
		ServiceVersion: Version,
		Environment:    string(cfg.Environment),
		Enabled:        cfg.TracingEnabled,
		Endpoint:       cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	backing, err := factory.NewKV(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("kv unavailable")
		return err
	}
	defer backing.Close()

	w, err := build(ctx, cfg, backing, log)
	if err != nil {
		return err
	}
	return w.run(ctx)
}

// LoadVocabulary returns the configured vocabulary file, or the built-in one.
func LoadVocabulary(cfg *config.Config) (*vocab.Vocabulary, error) {
	strict := vocab.Strict(!cfg.IsProduction())
	if cfg.VocabularyFile == "" {
		return vocab.Builtin(strict), nil
	}
	v, err := vocab.LoadFile(cfg.VocabularyFile, strict)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	return v, nil
}

type watcher struct {
	cfg     *config.Config
	log     zerolog.Logger
	store   *store.Store
	vocab   *vocab.Vocabulary
	engine  *reconcile.Engine
	bus     *events.Bus
	loop    *poller.Loop
	inbound chan reconcile.Message
	relay   *relay.Subscriber
	checks  []*health.PingChecker
	service *health.ServiceChecker
}

func build(ctx context.Context, cfg *config.Config, backing kv.KV, log zerolog.Logger) (*watcher, error) {
	v, err := LoadVocabulary(cfg)
	if err != nil {
		return nil, err
	}

	st := store.New(backing, log)
	if err := st.Load(ctx); err != nil {
		return nil, err
	}

	client := backend.NewClient(cfg.BackendURL, cfg.BackendToken, 10*time.Second)
	attrib, err := reconcile.NewAttribution(ctx, cfg.AttributionPolicy, backing, log)
	if err != nil {
		return nil, err
	}
	bus := events.NewBus(256)

	engine := reconcile.New(st, v, backend.WithAuthRefresh(client, client),
		reconcile.WithOracle(backend.WithOracleAuthRefresh(client, client)),
		reconcile.WithBus(bus),
		reconcile.WithAttribution(attrib),
		reconcile.WithPlayer(cfg.PlayerName),
		reconcile.WithVersion(Version),
		reconcile.WithDriftTolerance(cfg.DriftTolerance),
		reconcile.WithLogger(log),
	)

	classifier := classify.New(v,
		classify.WithThreshold(cfg.MatchThreshold),
		classify.WithMinMatchLength(cfg.MinMatchLength),
		classify.WithPositionTolerance(cfg.PositionTolerance),
		classify.WithProduction(cfg.IsProduction()),
		classify.WithLogger(log),
		classify.WithOnOutcome(func(o classify.Outcome) {
			metrics.LinesClassified.WithLabelValues(string(o)).Inc()
		}),
	)

	var sensors []world.Sensor
	if cfg.WorldFile != "" {
		sensors = append(sensors, capture.WorldFile("client", cfg.WorldFile))
	}
	if cfg.FriendsListFile != "" {
		sensors = append(sensors, capture.FriendsListFile("friends-list", cfg.FriendsListFile))
	}
	tracker := world.NewTracker(cfg.QuietWindow, log, sensors...)

	w := &watcher{
		cfg:     cfg,
		log:     log,
		store:   st,
		vocab:   v,
		engine:  engine,
		bus:     bus,
		inbound: make(chan reconcile.Message, 64),
	}

	backendCheck := health.NewPingChecker("backend", client, 2*time.Second, log)
	w.checks = append(w.checks, backendCheck)
	if p, ok := backing.(kv.Pinger); ok {
		w.checks = append(w.checks, health.NewPingChecker("kv", p, 2*time.Second, log))
	}
	deps := make([]health.Checker, 0, len(w.checks))
	for _, c := range w.checks {
		deps = append(deps, c)
	}
	w.service = health.NewServiceChecker(log, deps...)

	if cfg.RelayURL != "" {
		header := http.Header{}
		if cfg.BackendToken != "" {
			header.Set("Authorization", "Bearer "+cfg.BackendToken)
		}
		w.relay = relay.NewSubscriber(cfg.RelayURL, header, log)
	}

	loopDeps := poller.Deps{
		Classifier: classifier,
		Tracker:    tracker,
		Engine:     engine,
		Store:      st,
		Bus:        bus,
		Inbound:    w.inbound,
		OracleGate: backendCheck.IsHealthy,
	}
	if cfg.ChatFile != "" {
		loopDeps.Chat = capture.NewFileSource(cfg.ChatFile, classify.ChannelChat)
	}
	if cfg.DialogFile != "" {
		loopDeps.Dialog = capture.NewFileSource(cfg.DialogFile, classify.ChannelDialog)
	}
	w.loop = poller.New(loopDeps, poller.Config{
		ChatInterval:     cfg.ChatInterval,
		DialogInterval:   cfg.DialogInterval,
		SweepInterval:    cfg.SweepInterval,
		OracleInterval:   cfg.OracleInterval,
		HistoryRetention: cfg.HistoryRetention,
	}, log)
	return w, nil
}

func (w *watcher) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, c := range w.checks {
		g.Go(func() error { c.Start(gctx, healthInterval); return nil })
	}
	g.Go(func() error { w.service.Start(gctx, healthInterval); return nil })
	g.Go(func() error { return ignoreStopped(w.loop.Run(gctx)) })
	g.Go(func() error { w.report(gctx); return nil })
	if w.relay != nil {
		g.Go(func() error { return w.relay.Run(gctx, w.inbound) })
	}
	if w.cfg.HTTPPort > 0 {
		g.Go(func() error { return w.serveHTTP(gctx) })
	}

	err := g.Wait()
	w.log.Info().Uint64("droppedEvents", w.bus.Dropped()).Msg("event watcher stopped")
	return err
}

// report logs bus events; it is the stand-in for an on-screen renderer.
func (w *watcher) report(ctx context.Context) {
	sub := w.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub:
			e := w.log.Info().Str("event", string(ev.Kind))
			if ev.World != "" {
				e = e.Str("world", ev.World)
			}
			if ev.Record != nil {
				e = e.Str("id", ev.Record.ID).Str("kind", string(ev.Record.Kind)).Dur("duration", ev.Record.Duration)
			}
			if ev.Message != "" {
				e = e.Str("message", ev.Message)
			}
			e.Msg("state change")
		}
	}
}

func (w *watcher) serveHTTP(ctx context.Context) error {
	router := api.NewRouter(api.Deps{
		Store:      w.store,
		Vocab:      w.vocab,
		Healthy:    w.service.IsHealthy,
		Components: w.service.Components,
		Sightings:  w.engine.Attribution().Count,
	}, w.log)

	server := &http.Server{
		Addr:              w.cfg.GetHTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		w.log.Info().Str("addr", server.Addr).Msg("status API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(sctx)
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("status API: %w", err)
		}
		return nil
	}
}

// ignoreStopped treats the end of the parent context, by cancel or deadline, as a clean stop.
func ignoreStopped(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
