// Package logger provides a configured zerolog logger.
package logger

import (
	"io"
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	zpkgerrors "github.com/rs/zerolog/pkgerrors"
)

// Option adjusts the logger built by New.
type Option func(*options)

type options struct {
	out     io.Writer
	console bool
	level   zerolog.Level
}

// WithOutput redirects log output (stdout by default).
func WithOutput(w io.Writer) Option { return func(o *options) { o.out = w } }

// WithConsole renders human-readable lines instead of JSON. Used by the CLI.
func WithConsole() Option { return func(o *options) { o.console = true } }

// WithLevel sets the minimum level for the returned logger.
func WithLevel(l zerolog.Level) Option { return func(o *options) { o.level = l } }

// New returns a new zerolog.Logger configured for the application.
// Call sites should use .Stack() on error events to include stacks.
func New(serviceName string, opts ...Option) zerolog.Logger {
	o := options{out: os.Stdout, level: zerolog.InfoLevel}
	for _, opt := range opts {
		opt(&o)
	}

	// Attach a pkg/errors stack to plain errors so .Stack() always has something to render.
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		type stackTracer interface{ StackTrace() pkgerrors.StackTrace }
		if _, ok := err.(stackTracer); !ok {
			err = pkgerrors.WithStack(err)
		}
		return zpkgerrors.MarshalStack(err)
	}

	out := o.out
	if o.console {
		out = zerolog.ConsoleWriter{Out: o.out, TimeFormat: "2006-01-02 15:04:05", NoColor: true}
	}

	return zerolog.New(out).Level(o.level).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch s {
	case "debug", "DEBUG":
		return zerolog.DebugLevel
	case "info", "INFO":
		return zerolog.InfoLevel
	case "warn", "WARN":
		return zerolog.WarnLevel
	case "error", "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
