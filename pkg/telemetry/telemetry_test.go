package telemetry_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swanchain/go-swan-sdk/pkg/telemetry"
)

func TestTraceIDWithoutSpan(t *testing.T) {
	assert.Empty(t, telemetry.TraceID(context.Background()))
}

func TestSpansArePropagated(t *testing.T) {
	ctx := context.Background()
	tp, err := telemetry.New(ctx, "test", "")
	require.NoError(t, err)
	defer tp.Shutdown(ctx)

	ctx, span := telemetry.Tracer().Start(ctx, "unit")
	defer span.End()

	traceID := telemetry.TraceID(ctx)
	assert.Len(t, traceID, 32)

	header := http.Header{}
	telemetry.InjectHeaders(ctx, header)
	assert.Contains(t, header.Get("traceparent"), traceID)
}
