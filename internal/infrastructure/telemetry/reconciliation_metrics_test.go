package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, key attribute.Key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(key); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func finishedRecord(trigger reconciliation.RunTrigger, err error) *reconciliation.RunRecord {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	record := reconciliation.NewRunRecord(trigger, started)
	record.Finish(&reconciliation.RunReport{
		Scraped:      3,
		Completed:    []reconciliation.ScrapedOrder{{MarketOrderID: "A-100"}},
		Escalations:  []reconciliation.Escalation{{}, {}},
		Unmatched:    []string{"A-300"},
		UpdatedCells: 2,
		Confirmed:    true,
		Err:          err,
	}, started.Add(90*time.Second))
	return record
}

func TestReconciliationMetrics_RecordRun(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := NewReconciliationMetrics(provider.Meter("shipcheck"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordRun(ctx, finishedRecord(reconciliation.RunTriggerSchedule, nil))
	m.RecordRun(ctx, finishedRecord(reconciliation.RunTriggerHTTP, reconciliation.ErrRunFailed))
	m.RecordRun(ctx, nil)

	metrics := collect(t, reader)

	runs := metrics["shipcheck_runs_total"]
	assert.Equal(t, int64(1), sumFor(t, runs, AttrOutcome, OutcomeSuccess))
	assert.Equal(t, int64(1), sumFor(t, runs, AttrOutcome, OutcomeFailure))

	assert.Equal(t, int64(3), sumFor(t, metrics["shipcheck_orders_scraped_total"], AttrTrigger, "schedule"))
	assert.Equal(t, int64(1), sumFor(t, metrics["shipcheck_orders_completed_total"], AttrTrigger, "schedule"))
	assert.Equal(t, int64(2), sumFor(t, metrics["shipcheck_escalations_total"], AttrTrigger, "http"))
	assert.Equal(t, int64(1), sumFor(t, metrics["shipcheck_orders_unmatched_total"], AttrTrigger, "http"))
	assert.Equal(t, int64(2), sumFor(t, metrics["shipcheck_ledger_cells_updated_total"], AttrTrigger, "schedule"))

	hist, ok := metrics["shipcheck_run_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
		assert.InDelta(t, 90.0, dp.Sum, 0.001)
	}
	assert.Equal(t, uint64(2), count)
}

func TestNewReconciliationMetrics_NilMeter(t *testing.T) {
	_, err := NewReconciliationMetrics(nil)
	assert.ErrorIs(t, err, ErrMeterNil)
}
