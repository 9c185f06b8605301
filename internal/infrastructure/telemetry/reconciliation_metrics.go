package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
)

// ErrMeterNil is returned when a nil meter is passed to NewReconciliationMetrics.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Run outcomes used as the outcome attribute of shipcheck_runs_total.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// ReconciliationMetrics records run outcomes and per-run order counts.
type ReconciliationMetrics struct {
	runsTotal        *Counter
	ordersScraped    *Counter
	ordersCompleted  *Counter
	escalations      *Counter
	ordersUnmatched  *Counter
	ledgerCellsWrote *Counter
	runDuration      *Histogram
}

// NewReconciliationMetrics creates the reconciliation instruments on meter.
func NewReconciliationMetrics(meter metric.Meter) (*ReconciliationMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &ReconciliationMetrics{}
	counters := []struct {
		target      **Counter
		name        string
		description string
		unit        string
	}{
		{&m.runsTotal, "shipcheck_runs_total", "Total number of reconciliation runs", "{runs}"},
		{&m.ordersScraped, "shipcheck_orders_scraped_total", "Orders listed as shipping in the console", "{orders}"},
		{&m.ordersCompleted, "shipcheck_orders_completed_total", "Orders whose sub-orders all completed", "{orders}"},
		{&m.escalations, "shipcheck_escalations_total", "Sub-orders flagged for manual processing", "{escalations}"},
		{&m.ordersUnmatched, "shipcheck_orders_unmatched_total", "Scraped orders with no ledger record", "{orders}"},
		{&m.ledgerCellsWrote, "shipcheck_ledger_cells_updated_total", "Ledger status cells marked delivered", "{cells}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(meter, c.name, c.description, c.unit)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	var err error
	m.runDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "shipcheck_run_duration_seconds",
		Description: "Wall-clock duration of a reconciliation run",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRun records one finished run.
func (m *ReconciliationMetrics) RecordRun(ctx context.Context, record *reconciliation.RunRecord) {
	if record == nil {
		return
	}
	outcome := OutcomeSuccess
	if record.Error != "" {
		outcome = OutcomeFailure
	}
	trigger := AttrTrigger.String(string(record.Trigger))

	m.runsTotal.Inc(ctx, AttrOutcome.String(outcome), trigger)
	m.runDuration.RecordDuration(ctx, record.Duration(), AttrOutcome.String(outcome), trigger)

	attrs := []attribute.KeyValue{trigger}
	m.ordersScraped.Add(ctx, int64(record.Scraped), attrs...)
	m.ordersCompleted.Add(ctx, int64(record.Completed), attrs...)
	m.escalations.Add(ctx, int64(record.Escalated), attrs...)
	m.ordersUnmatched.Add(ctx, int64(record.Unmatched), attrs...)
	m.ledgerCellsWrote.Add(ctx, int64(record.UpdatedCells), attrs...)
}
