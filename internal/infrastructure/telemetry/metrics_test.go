package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap/zaptest"

	"github.com/erp/shipcheck/internal/infrastructure/telemetry"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "shipcheck",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("shipcheck"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	// The gRPC exporter connects lazily, so no collector is needed to build the provider
	ctx := context.Background()

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    time.Hour,
		ServiceName:       "shipcheck",
		Insecure:          true,
	}, nil)
	require.NoError(t, err)

	assert.True(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("shipcheck"))

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = mp.Shutdown(shutdownCtx)
}

func TestHelpers_NoopMeter(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	ctx := context.Background()

	counter, err := telemetry.NewCounter(meter, "test_total", "test counter", "{items}")
	require.NoError(t, err)
	counter.Inc(ctx)
	counter.Add(ctx, 3, telemetry.AttrOutcome.String("success"))
	counter.Add(ctx, 0)

	histogram, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:       "test_duration_seconds",
		Unit:       "s",
		Boundaries: telemetry.RunDurationBuckets,
	})
	require.NoError(t, err)
	histogram.RecordDuration(ctx, 2*time.Second)
}
