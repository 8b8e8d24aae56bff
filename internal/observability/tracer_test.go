package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracing_DisabledIsNoop(t *testing.T) {
	tp, err := InitTracing(context.Background(), Config{ServiceName: "eventwatch"})
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestInitTracing_Enabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), Config{
		ServiceName: "eventwatch",
		Environment: "test",
		Enabled:     true,
		Endpoint:    "http://127.0.0.1:1",
	})
	require.NoError(t, err)
	assert.True(t, tp.IsEnabled())

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
	// nothing is listening; shutdown may report the export failure
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = tp.Shutdown(ctx)
}
