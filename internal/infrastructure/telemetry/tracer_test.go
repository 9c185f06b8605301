package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/erp/shipcheck/internal/infrastructure/telemetry"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "shipcheck",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	_, span := tp.Tracer("test").Start(ctx, "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestNewTracerProvider_Enabled(t *testing.T) {
	// The gRPC exporter connects lazily, so no collector is needed to build the provider
	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1,
		ServiceName:       "shipcheck",
		Insecure:          true,
	}, nil)
	require.NoError(t, err)

	assert.True(t, tp.IsEnabled())
	_, span := tp.Tracer("test").Start(ctx, "sampled")
	assert.True(t, span.SpanContext().IsSampled())
	span.End()

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = tp.Shutdown(shutdownCtx)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), telemetry.Sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), telemetry.Sampler(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.5).Description(), telemetry.Sampler(0.5).Description())
}

func TestStartSpan_FollowsParentProvider(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ctx, parent := provider.Tracer("test").Start(context.Background(), "reconciliation.run")

	_, child := telemetry.StartSpan(ctx, "reconciliation.sync", telemetry.AttrOrderCount.Int(2))
	telemetry.RecordError(child, errors.New("column missing"))
	child.End()
	parent.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	sync := spans[0]
	assert.Equal(t, "reconciliation.sync", sync.Name())
	assert.Equal(t, parent.SpanContext().SpanID(), sync.Parent().SpanID())
	assert.Equal(t, codes.Error, sync.Status().Code)
	assert.Equal(t, "column missing", sync.Status().Description)
	assert.Contains(t, sync.Attributes(), telemetry.AttrOrderCount.Int(2))
}

func TestRecordError_Nil(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := provider.Tracer("test").Start(context.Background(), "ok")

	telemetry.RecordError(span, nil)
	telemetry.RecordError(nil, errors.New("ignored"))
	span.End()

	require.Len(t, recorder.Ended(), 1)
	assert.Equal(t, codes.Unset, recorder.Ended()[0].Status().Code)
}
