// Package world tracks which game world the observer is on, including the
// settle period after a world hop.
package world

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultQuietWindow covers the OCR and sensor settle time after a hop.
const DefaultQuietWindow = 6 * time.Second

// Sensor reports the current world, or false when it cannot tell.
type Sensor interface {
	Name() string
	World(ctx context.Context) (string, bool)
}

type sensorFunc struct {
	name string
	fn   func(ctx context.Context) (string, bool)
}

func (s sensorFunc) Name() string                             { return s.name }
func (s sensorFunc) World(ctx context.Context) (string, bool) { return s.fn(ctx) }

// SensorFunc adapts a function to Sensor.
func SensorFunc(name string, fn func(ctx context.Context) (string, bool)) Sensor {
	return sensorFunc{name: name, fn: fn}
}

// Resolution is the outcome of one Resolve call.
type Resolution struct {
	World   string
	Known   bool
	Changed bool
	// Source names the sensor that answered, or "last-known".
	Source string
}

// Tracker is owned by the poll loop and is not safe for concurrent use.
type Tracker struct {
	sensors    []Sensor
	quiet      time.Duration
	current    string
	previous   string
	quietUntil time.Time
	log        zerolog.Logger
}

// NewTracker consults sensors in the order given; put the direct client
// sensor first and slower visual lookups after it.
func NewTracker(quiet time.Duration, log zerolog.Logger, sensors ...Sensor) *Tracker {
	return &Tracker{
		sensors: sensors,
		quiet:   quiet,
		log:     log.With().Str("component", "world").Logger(),
	}
}

// MarkHop opens the quiet window starting at now.
func (t *Tracker) MarkHop(now time.Time) {
	t.quietUntil = now.Add(t.quiet)
	t.log.Debug().Time("quietUntil", t.quietUntil).Msg("world hop detected")
}

// QuietUntil is the end of the current (or last) quiet window.
func (t *Tracker) QuietUntil() time.Time { return t.quietUntil }

// InQuiet reports whether observations at now must be discarded.
func (t *Tracker) InQuiet(now time.Time) bool { return now.Before(t.quietUntil) }

// CurrentWorld is the last resolved world.
func (t *Tracker) CurrentWorld() (string, bool) { return t.current, t.current != "" }

// PreviousWorld is the world before the last change.
func (t *Tracker) PreviousWorld() string { return t.previous }

// Set records a world directly, e.g. from a sensor push.
func (t *Tracker) Set(world string) bool {
	if world == "" || world == t.current {
		return false
	}
	t.previous, t.current = t.current, world
	t.log.Info().Str("world", world).Str("previous", t.previous).Msg("world changed")
	return true
}

// Resolve asks the sensors in priority order and falls back to the last known
// world. While quiet it does nothing and reports the world as unknown.
func (t *Tracker) Resolve(ctx context.Context, now time.Time) Resolution {
	if t.InQuiet(now) {
		return Resolution{}
	}
	for _, s := range t.sensors {
		w, ok := s.World(ctx)
		if !ok || w == "" {
			continue
		}
		return Resolution{World: w, Known: true, Changed: t.Set(w), Source: s.Name()}
	}
	if t.current != "" {
		return Resolution{World: t.current, Known: true, Source: "last-known"}
	}
	return Resolution{}
}
