package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/backend"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/model"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/vocab"
)

const merchant = vocab.TravellingMerchant

func oracleHarness(t *testing.T) (*harness, *fakeOracle) {
	o := newFakeOracle()
	h := newHarness(t, newFakeBackend(), WithOracle(o), WithOracleKinds(merchant))
	return h, o
}

func TestOracle_ActiveWithoutLocalSynthesizesCreate(t *testing.T) {
	h, o := oracleHarness(t)
	o.status["50|"+string(merchant)] = backend.OracleStatus{Active: true, Remaining: 95 * time.Second}

	got := h.engine.ReconcileOracle(context.Background(), "50")
	require.Len(t, got, 1)
	assert.Equal(t, ActionCreate, got[0].Action)

	rec, ok := h.store.FindActive("50", merchant, h.clock.now())
	require.True(t, ok)
	assert.Equal(t, 95*time.Second, rec.Duration)
	assert.Equal(t, model.SourceOracle, rec.Source)
	assert.Equal(t, model.SystemReporter, rec.ReportedBy)
	assert.Zero(t, h.attrib.Count(), "oracle creations are not credited")
}

func TestOracle_DriftAboveToleranceEdits(t *testing.T) {
	h, o := oracleHarness(t)
	ctx := context.Background()
	h.engine.HandleCandidate(ctx, "50", start(merchant))

	o.status["50|"+string(merchant)] = backend.OracleStatus{Active: true, Remaining: 9*time.Minute + 45*time.Second}
	assert.Empty(t, h.engine.ReconcileOracle(ctx, "50"), "15s of drift is tolerated")

	o.status["50|"+string(merchant)] = backend.OracleStatus{Active: true, Remaining: 4 * time.Minute}
	got := h.engine.ReconcileOracle(ctx, "50")
	require.Len(t, got, 1)
	assert.Equal(t, ActionEdit, got[0].Action)

	rec, ok := h.store.FindActive("50", merchant, h.clock.now())
	require.True(t, ok)
	assert.Equal(t, 4*time.Minute, rec.Remaining(h.clock.now()))
	assert.Equal(t, model.MutationEdit, rec.Type)
}

func TestOracle_InactiveForcesExpiry(t *testing.T) {
	h, o := oracleHarness(t)
	ctx := context.Background()
	h.engine.HandleCandidate(ctx, "50", start(merchant))
	o.status["50|"+string(merchant)] = backend.OracleStatus{Active: false}

	got := h.engine.ReconcileOracle(ctx, "50")
	require.Len(t, got, 1)
	assert.Equal(t, ActionExpire, got[0].Action)
	assert.Zero(t, got[0].Record.Duration)
	_, ok := h.store.FindActive("50", merchant, h.clock.now())
	assert.False(t, ok)
}

func TestOracle_UnknownWorldRegistersLocalRecord(t *testing.T) {
	h, o := oracleHarness(t)
	ctx := context.Background()
	h.engine.HandleCandidate(ctx, "50", start(merchant))
	o.errs["50|"+string(merchant)] = backend.ErrWorldUnknown

	got := h.engine.ReconcileOracle(ctx, "50")
	require.Len(t, got, 1)
	assert.Equal(t, ActionRegister, got[0].Action)
	require.Len(t, o.registered, 1)
	_, ok := h.store.FindActive("50", merchant, h.clock.now())
	assert.True(t, ok, "unknown world never deletes the local record")
}

func TestOracle_ErrorsAreSkipped(t *testing.T) {
	h, o := oracleHarness(t)
	ctx := context.Background()
	h.engine.HandleCandidate(ctx, "50", start(merchant))
	o.errs["50|"+string(merchant)] = backend.NewNetworkError("oracle", errors.New("timeout"))

	assert.Empty(t, h.engine.ReconcileOracle(ctx, "50"))
	_, ok := h.store.FindActive("50", merchant, h.clock.now())
	assert.True(t, ok)

	o.errs["51|"+string(merchant)] = backend.ErrWorldUnknown
	assert.Empty(t, h.engine.ReconcileOracle(ctx, "51"), "nothing to register without a local record")
	assert.Empty(t, o.registered)
}

func TestOracle_DisabledWithoutClient(t *testing.T) {
	h := newHarness(t, newFakeBackend())
	assert.Nil(t, h.engine.ReconcileOracle(context.Background(), "50"))
}
