package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/reconcile"
)

func TestSubscriber_DecodesAndReconnects(t *testing.T) {
	var conns atomic.Int32
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var frames []string
		if conns.Add(1) == 1 {
			frames = []string{
				`{"type":"log","data":{"message":"first"}}`,
				`{"type":"bogus"}`,
				`{"type":"version","data":{"version":"2.0.0"}}`,
			}
		} else {
			frames = []string{`{"type":"sync","data":[]}`}
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		if conns.Load() == 1 {
			return // drop the first connection to force a reconnect
		}
		_, _, _ = conn.ReadMessage() // hold until the client goes away
	}))
	defer srv.Close()

	sub := NewSubscriber("ws"+strings.TrimPrefix(srv.URL, "http"), nil, zerolog.Nop())
	sub.BaseBackoff = 10 * time.Millisecond
	sub.MaxInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan reconcile.Message, 8)
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx, out) }()

	var got []reconcile.MessageType
	timeout := time.After(5 * time.Second)
	for len(got) < 3 {
		select {
		case m := <-out:
			got = append(got, m.Type())
		case <-timeout:
			t.Fatalf("timed out; got %v", got)
		}
	}
	assert.Equal(t, []reconcile.MessageType{reconcile.TypeLog, reconcile.TypeVersion, reconcile.TypeSync}, got)
	assert.GreaterOrEqual(t, conns.Load(), int32(2))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
