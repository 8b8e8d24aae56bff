package world

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fixed struct {
	name  string
	world string
	calls int
}

func (f *fixed) Name() string { return f.name }
func (f *fixed) World(context.Context) (string, bool) {
	f.calls++
	return f.world, f.world != ""
}

func TestResolve_SensorPriority(t *testing.T) {
	direct := &fixed{name: "client"}
	visual := &fixed{name: "friends-list", world: "84"}
	tr := NewTracker(DefaultQuietWindow, zerolog.Nop(), direct, visual)
	ctx := context.Background()
	now := time.Now()

	res := tr.Resolve(ctx, now)
	assert.Equal(t, Resolution{World: "84", Known: true, Changed: true, Source: "friends-list"}, res)

	direct.world = "50"
	res = tr.Resolve(ctx, now)
	assert.Equal(t, "50", res.World)
	assert.Equal(t, "client", res.Source)
	assert.True(t, res.Changed)
	assert.Equal(t, "84", tr.PreviousWorld())

	direct.world, visual.world = "", ""
	res = tr.Resolve(ctx, now)
	assert.Equal(t, Resolution{World: "50", Known: true, Source: "last-known"}, res)
}

func TestResolve_UnknownWithoutHistory(t *testing.T) {
	tr := NewTracker(DefaultQuietWindow, zerolog.Nop())
	res := tr.Resolve(context.Background(), time.Now())
	assert.False(t, res.Known)
	_, ok := tr.CurrentWorld()
	assert.False(t, ok)
}

func TestQuietWindow(t *testing.T) {
	direct := &fixed{name: "client", world: "50"}
	tr := NewTracker(6*time.Second, zerolog.Nop(), direct)
	ctx := context.Background()
	t0 := time.Unix(1_700_000_000, 0)

	tr.MarkHop(t0)
	assert.Equal(t, t0.Add(6*time.Second), tr.QuietUntil())
	for _, off := range []time.Duration{0, time.Second, 5999 * time.Millisecond} {
		assert.True(t, tr.InQuiet(t0.Add(off)))
		assert.False(t, tr.Resolve(ctx, t0.Add(off)).Known)
	}
	assert.Zero(t, direct.calls, "sensors are not consulted while quiet")

	assert.False(t, tr.InQuiet(t0.Add(6*time.Second)))
	assert.True(t, tr.Resolve(ctx, t0.Add(6*time.Second)).Known)
}

func TestSensorFunc(t *testing.T) {
	s := SensorFunc("fn", func(context.Context) (string, bool) { return "12", true })
	w, ok := s.World(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "12", w)
	assert.Equal(t, "fn", s.Name())
}
