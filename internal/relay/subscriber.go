// Package relay subscribes to the backend's websocket feed of records
// reported by other observers.
package relay

import (
	"context"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/metrics"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/reconcile"
)

// Subscriber reads relay frames, decodes each once and forwards the result.
type Subscriber struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer

	BaseBackoff time.Duration
	MaxInterval time.Duration

	log zerolog.Logger
}

// NewSubscriber returns a subscriber with default dialer and backoff bounds.
func NewSubscriber(url string, header http.Header, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		URL:         url,
		Header:      header,
		Dialer:      websocket.DefaultDialer,
		BaseBackoff: 500 * time.Millisecond,
		MaxInterval: 30 * time.Second,
		log:         log.With().Str("component", "relay").Logger(),
	}
}

// Run connects and reconnects with exponential backoff until ctx is done.
// It only returns once ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context, out chan<- reconcile.Message) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = s.MaxInterval
	exp.MaxElapsedTime = 0
	exp.Reset()

	for {
		err := s.session(ctx, out, exp)
		if ctx.Err() != nil {
			return nil
		}
		wait := exp.NextBackOff()
		metrics.RelayReconnects.Inc()
		s.log.Warn().Err(err).Dur("retryIn", wait).Msg("relay disconnected")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Subscriber) session(ctx context.Context, out chan<- reconcile.Message, exp *backoff.ExponentialBackOff) error {
	conn, _, err := s.Dialer.DialContext(ctx, s.URL, s.Header)
	if err != nil {
		return err
	}
	exp.Reset()
	s.log.Info().Str("url", s.URL).Msg("relay connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := reconcile.DecodeMessage(payload)
		if err != nil {
			s.log.Warn().Err(err).Int("bytes", len(payload)).Msg("dropping malformed relay frame")
			continue
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
