package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeChecker struct {
	name    string
	healthy atomic.Bool
}

func (f *fakeChecker) Name() string                         { return f.name }
func (f *fakeChecker) IsHealthy() bool                      { return f.healthy.Load() }
func (f *fakeChecker) Start(context.Context, time.Duration) {}

type pingFunc func(ctx context.Context) error

func (p pingFunc) Ping(ctx context.Context) error { return p(ctx) }

func TestServiceChecker_Transitions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := &fakeChecker{name: "a"}
	b := &fakeChecker{name: "b"}
	a.healthy.Store(true)
	b.healthy.Store(true)

	svc := NewServiceChecker(zerolog.Nop(), a, b)
	go svc.Start(ctx, 10*time.Millisecond)

	waitTrue(t, svc.IsHealthy)

	b.healthy.Store(false)
	waitTrue(t, func() bool { return !svc.IsHealthy() })
	assert.Equal(t, map[string]bool{"a": true, "b": false}, svc.Components())

	b.healthy.Store(true)
	waitTrue(t, svc.IsHealthy)
}

func TestPingChecker_Probe(t *testing.T) {
	var fail atomic.Bool
	c := NewPingChecker("backend", pingFunc(func(context.Context) error {
		if fail.Load() {
			return errors.New("unreachable")
		}
		return nil
	}), time.Second, zerolog.Nop())

	assert.False(t, c.IsHealthy(), "starts unhealthy")
	assert.True(t, c.Probe(context.Background()))
	assert.True(t, c.IsHealthy())

	fail.Store(true)
	assert.False(t, c.Probe(context.Background()))
	assert.False(t, c.IsHealthy())
}

func TestPingChecker_StartProbesImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := NewPingChecker("kv", pingFunc(func(context.Context) error { return nil }), 0, zerolog.Nop())
	go c.Start(ctx, time.Hour)
	waitTrue(t, c.IsHealthy)
}

func waitTrue(t *testing.T, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout")
}
