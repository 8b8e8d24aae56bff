// Package health keeps cached reachability flags for the backend and the
// KV driver so the poll loop and the status API never block on a probe.
package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Checker is implemented by component-level probes.
type Checker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// Pinger returns nil when the component is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker probes a Pinger on an interval and caches the result.
type PingChecker struct {
	name    string
	target  Pinger
	timeout time.Duration
	healthy atomic.Bool
	log     zerolog.Logger
}

// NewPingChecker starts unhealthy until the first successful probe.
func NewPingChecker(name string, target Pinger, timeout time.Duration, log zerolog.Logger) *PingChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &PingChecker{name: name, target: target, timeout: timeout, log: log}
}

func (c *PingChecker) Name() string    { return c.name }
func (c *PingChecker) IsHealthy() bool { return c.healthy.Load() }

// Probe runs one check immediately.
func (c *PingChecker) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.target.Ping(ctx); err != nil {
		if c.healthy.Swap(false) {
			c.log.Warn().Str("checker", c.name).Err(err).Msg("health check failed")
		}
		return false
	}
	c.healthy.Store(true)
	return true
}

// Start probes until ctx is done.
func (c *PingChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Probe(ctx)
		}
	}
}

// ServiceChecker folds component checkers into one flag.
type ServiceChecker struct {
	healthy atomic.Bool
	deps    []Checker
	log     zerolog.Logger
}

func NewServiceChecker(log zerolog.Logger, deps ...Checker) *ServiceChecker {
	return &ServiceChecker{deps: deps, log: log}
}

// IsHealthy returns the cached service health.
func (h *ServiceChecker) IsHealthy() bool { return h.healthy.Load() }

// Components reports each dependency's cached flag by name.
func (h *ServiceChecker) Components() map[string]bool {
	out := make(map[string]bool, len(h.deps))
	for _, c := range h.deps {
		out[c.Name()] = c.IsHealthy()
	}
	return out
}

// Start re-evaluates dependency flags until ctx is done. It does not start
// the dependencies themselves.
func (h *ServiceChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := false
	eval := func() {
		all := true
		for _, c := range h.deps {
			if !c.IsHealthy() {
				all = false
			}
		}
		h.healthy.Store(all)
		if all != prev {
			if all {
				h.log.Info().Msg("service health: UP")
			} else {
				h.log.Warn().Msg("service health: DOWN")
			}
			prev = all
		}
	}

	eval()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eval()
		}
	}
}
