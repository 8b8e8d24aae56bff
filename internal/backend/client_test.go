package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/model"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/vocab"
)

func testRecord() model.EventRecord {
	return model.EventRecord{
		ID: "rec-1", Kind: vocab.TravellingMerchant, World: "50", Type: model.MutationCreate,
		Duration: 10 * time.Minute, Timestamp: time.UnixMilli(1_700_000_000_000), ReportedBy: "Fisher",
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_Submissions(t *testing.T) {
	var lastAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastAuth.Store(r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/events":
			var rec model.EventRecord
			if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if rec.World == "51" {
				writeJSON(w, http.StatusConflict, map[string]any{"firstPerceived": true})
				return
			}
			writeJSON(w, http.StatusCreated, rec)
		case r.Method == http.MethodPatch && r.URL.Path == "/events/rec-1":
			writeJSON(w, http.StatusOK, map[string]string{})
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-1", time.Second)
	ctx := context.Background()

	res, err := c.SubmitCreate(ctx, testRecord())
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Outcome)
	assert.Equal(t, "Bearer tok-1", lastAuth.Load())

	other := testRecord()
	other.World = "51"
	res, err = c.SubmitCreate(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, Conflict, res.Outcome)
	assert.True(t, res.FirstPerceived)

	res, err = c.SubmitEdit(ctx, testRecord())
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Outcome)

	_, err = c.SubmitDelete(ctx, testRecord())
	assert.NoError(t, err, "deleting an unknown id is not an error")
}

func TestClient_ErrorClassification(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusUnauthorized)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	c := NewClient(srv.URL, "", time.Second)
	ctx := context.Background()

	_, err := c.SubmitCreate(ctx, testRecord())
	assert.ErrorIs(t, err, ErrAuthExpired)
	assert.True(t, IsIrrecoverable(err))

	status.Store(http.StatusBadGateway)
	_, err = c.SubmitCreate(ctx, testRecord())
	var ce *ClassifiedError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, Recoverable, ce.Category)
	assert.Equal(t, http.StatusBadGateway, ce.StatusCode)

	srv.Close()
	_, err = c.SubmitCreate(ctx, testRecord())
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, Recoverable, ce.Category)
	assert.Zero(t, ce.StatusCode)
}

func TestClient_Oracle(t *testing.T) {
	var registered atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oracle/worlds/50/kinds/Travelling merchant":
			writeJSON(w, http.StatusOK, map[string]any{"active": true, "remaining": 95})
		case "/oracle/worlds/50":
			registered.Add(1)
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	ctx := context.Background()

	st, err := c.Status(ctx, "50", vocab.TravellingMerchant)
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, 95*time.Second, st.Remaining)

	_, err = c.Status(ctx, "99", vocab.TravellingMerchant)
	assert.ErrorIs(t, err, ErrWorldUnknown)

	require.NoError(t, c.Register(ctx, testRecord()))
	assert.Equal(t, int32(1), registered.Load())
}

func TestClient_Refresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			writeJSON(w, http.StatusOK, map[string]string{"token": "tok-2"})
		case "/events":
			if r.Header.Get("Authorization") != "Bearer tok-2" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusCreated)
		case "/health":
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-1", time.Second)
	sub := WithAuthRefresh(c, c)

	res, err := sub.SubmitCreate(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Outcome)
	assert.Equal(t, "tok-2", c.bearer())
	assert.NoError(t, c.Ping(context.Background()))
}

type fakeSubmitter struct {
	calls   int
	expired int // number of leading calls that fail with ErrAuthExpired
}

func (f *fakeSubmitter) call() (Result, error) {
	f.calls++
	if f.calls <= f.expired {
		return Result{}, NewHTTPError("create", http.StatusUnauthorized, "")
	}
	return Result{Outcome: Accepted}, nil
}

func (f *fakeSubmitter) SubmitCreate(context.Context, model.EventRecord) (Result, error) { return f.call() }
func (f *fakeSubmitter) SubmitEdit(context.Context, model.EventRecord) (Result, error)   { return f.call() }
func (f *fakeSubmitter) SubmitDelete(context.Context, model.EventRecord) (Result, error) { return f.call() }

type countingRefresher struct {
	n   int
	err error
}

func (r *countingRefresher) Refresh(context.Context) error { r.n++; return r.err }

func TestWithAuthRefresh_BoundedRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("refresh then succeed", func(t *testing.T) {
		f, r := &fakeSubmitter{expired: 1}, &countingRefresher{}
		_, err := WithAuthRefresh(f, r).SubmitEdit(ctx, testRecord())
		require.NoError(t, err)
		assert.Equal(t, 2, f.calls)
		assert.Equal(t, 1, r.n)
	})

	t.Run("second expiry surfaces", func(t *testing.T) {
		f, r := &fakeSubmitter{expired: 100}, &countingRefresher{}
		_, err := WithAuthRefresh(f, r).SubmitCreate(ctx, testRecord())
		assert.ErrorIs(t, err, ErrAuthExpired)
		assert.Equal(t, 2, f.calls, "exactly one retry")
		assert.Equal(t, 1, r.n)
	})

	t.Run("refresh failure surfaces without retry", func(t *testing.T) {
		f, r := &fakeSubmitter{expired: 1}, &countingRefresher{err: errors.New("no refresh token")}
		_, err := WithAuthRefresh(f, r).SubmitDelete(ctx, testRecord())
		assert.ErrorIs(t, err, ErrAuthExpired)
		assert.Equal(t, 1, f.calls)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		r := &countingRefresher{}
		o := WithOracleAuthRefresh(oracleFunc(func() error { return ErrWorldUnknown }), r)
		_, err := o.Status(ctx, "50", vocab.WhaleSighting)
		assert.ErrorIs(t, err, ErrWorldUnknown)
		assert.Zero(t, r.n)
	})
}

type oracleFunc func() error

func (f oracleFunc) Status(context.Context, string, vocab.Kind) (OracleStatus, error) {
	return OracleStatus{}, f()
}
func (f oracleFunc) Register(context.Context, model.EventRecord) error { return f() }
