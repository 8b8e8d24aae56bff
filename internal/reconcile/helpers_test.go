package reconcile

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/backend"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/config"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/events"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/kv"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/model"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/store"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/vocab"
)

var t0 = time.UnixMilli(1_700_000_000_000)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

// fakeBackend accepts the first creation per (world, kind) while it is active
// and answers later ones with a conflict.
type fakeBackend struct {
	mu             sync.Mutex
	accepted       map[string]model.EventRecord
	creates        []model.EventRecord
	edits          []model.EventRecord
	err            error
	firstPerceived bool
	returnExisting bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{accepted: make(map[string]model.EventRecord)}
}

func (f *fakeBackend) SubmitCreate(_ context.Context, rec model.EventRecord) (backend.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, rec)
	if f.err != nil {
		return backend.Result{}, f.err
	}
	key := rec.World + "|" + string(rec.Kind)
	if cur, ok := f.accepted[key]; ok && cur.IsActive(rec.Timestamp) {
		res := backend.Result{Outcome: backend.Conflict, FirstPerceived: f.firstPerceived}
		if f.returnExisting {
			res.Existing = &cur
		}
		return res, nil
	}
	f.accepted[key] = rec
	return backend.Result{Outcome: backend.Accepted, FirstPerceived: true}, nil
}

func (f *fakeBackend) SubmitEdit(_ context.Context, rec model.EventRecord) (backend.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, rec)
	if f.err != nil {
		return backend.Result{}, f.err
	}
	return backend.Result{Outcome: backend.Accepted}, nil
}

func (f *fakeBackend) SubmitDelete(context.Context, model.EventRecord) (backend.Result, error) {
	return backend.Result{Outcome: backend.Accepted}, nil
}

type fakeOracle struct {
	status     map[string]backend.OracleStatus
	errs       map[string]error
	registered []model.EventRecord
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{status: map[string]backend.OracleStatus{}, errs: map[string]error{}}
}

func (o *fakeOracle) Status(_ context.Context, world string, kind vocab.Kind) (backend.OracleStatus, error) {
	key := world + "|" + string(kind)
	if err := o.errs[key]; err != nil {
		return backend.OracleStatus{}, err
	}
	st := o.status[key]
	st.World, st.Kind = world, kind
	return st, nil
}

func (o *fakeOracle) Register(_ context.Context, rec model.EventRecord) error {
	o.registered = append(o.registered, rec)
	return nil
}

type harness struct {
	engine *Engine
	store  *store.Store
	bus    *events.Bus
	clock  *clock
	be     *fakeBackend
	attrib *Attribution
	kv     *kv.Memory
}

func newHarness(t *testing.T, be *fakeBackend, opts ...Option) *harness {
	t.Helper()
	mem := kv.NewMemory()
	st := store.New(mem, zerolog.Nop())
	attrib, err := NewAttribution(context.Background(), config.AttributionEither, mem, zerolog.Nop())
	if err != nil {
		t.Fatalf("attribution: %v", err)
	}
	c := &clock{t: t0}
	bus := events.NewBus(256)
	n := 0
	base := []Option{
		WithBus(bus),
		WithClock(c.now),
		WithAttribution(attrib),
		WithPlayer("Fisher"),
		WithVersion("1.2.0"),
		WithIDs(func() string { n++; return fmt.Sprintf("%s-%d", t.Name(), n) }),
	}
	e := New(st, vocab.Builtin(), be, append(base, opts...)...)
	return &harness{engine: e, store: st, bus: bus, clock: c, be: be, attrib: attrib, kv: mem}
}

func (h *harness) drain() []events.Kind {
	var out []events.Kind
	for {
		select {
		case ev := <-h.bus.Subscribe():
			out = append(out, ev.Kind)
		default:
			return out
		}
	}
}
