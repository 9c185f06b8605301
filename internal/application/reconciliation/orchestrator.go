package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
	"github.com/erp/shipcheck/internal/infrastructure/logger"
	"github.com/erp/shipcheck/internal/infrastructure/telemetry"
)

// errNoBulkHandle is returned when ledger cells changed but the scrape produced no bulk button
var errNoBulkHandle = errors.New("console returned no bulk confirmation handle")

// OrchestratorConfig configures the Orchestrator
type OrchestratorConfig struct {
	// OrderSheet is the worksheet holding the order ledger
	OrderSheet string
}

// Orchestrator sequences one reconciliation run end to end
type Orchestrator struct {
	console    reconciliation.Console
	ledger     reconciliation.LedgerGateway
	engine     *Engine
	escalation *EscalationHandler
	sync       *Synchronizer
	alerts     reconciliation.AlertSink
	sheet      string
	logger     *zap.Logger
}

// NewOrchestrator creates a new Orchestrator. alerts may be nil.
func NewOrchestrator(
	console reconciliation.Console,
	ledger reconciliation.LedgerGateway,
	engine *Engine,
	escalation *EscalationHandler,
	sync *Synchronizer,
	alerts reconciliation.AlertSink,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		console:    console,
		ledger:     ledger,
		engine:     engine,
		escalation: escalation,
		sync:       sync,
		alerts:     alerts,
		sheet:      cfg.OrderSheet,
		logger:     logger,
	}
}

// Run executes one reconciliation pass. Any error or panic is contained here: it is
// logged, forwarded to the alert sink, and the report comes back with no completed orders.
// The console session is closed on every path.
func (o *Orchestrator) Run(ctx context.Context) (report *reconciliation.RunReport) {
	report = &reconciliation.RunReport{}

	defer func() {
		if r := recover(); r != nil {
			report = o.fail(ctx, report, fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
		}
	}()

	if err := o.run(ctx, report); err != nil {
		return o.fail(ctx, report, err)
	}
	return report
}

func (o *Orchestrator) run(ctx context.Context, report *reconciliation.RunReport) error {
	session, err := o.console.Open(ctx)
	if err != nil {
		return fmt.Errorf("open console session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			o.log(ctx).Warn("Failed to close console session", zap.Error(err))
		}
	}()

	if err := session.Login(ctx); err != nil {
		return fmt.Errorf("console login: %w", err)
	}

	snapshot, err := o.ledger.GetRows(ctx, o.sheet)
	if err != nil {
		return fmt.Errorf("read order ledger: %w", err)
	}

	scraped, err := o.scrape(ctx, session)
	if err != nil {
		return fmt.Errorf("scrape shipping orders: %w", err)
	}
	report.Scraped = len(scraped.Orders)
	o.log(ctx).Info("Scraped shipping orders",
		zap.Int("orders", len(scraped.Orders)),
		zap.Int("ledger_rows", snapshot.Len()),
	)

	outcome := o.engine.Reconcile(ctx, scraped.Orders, snapshot)
	report.Completed = outcome.Completed
	report.Escalations = outcome.Escalations
	report.Unmatched = outcome.Unmatched
	report.Pending = outcome.Pending
	report.Failed = outcome.Failed

	if len(outcome.Escalations) > 0 {
		o.escalation.Handle(ctx, outcome.Escalations)
	}

	if len(outcome.Completed) == 0 {
		return nil
	}

	result, err := o.sync.Sync(ctx, outcome.Completed)
	if err != nil {
		return fmt.Errorf("synchronize ledger: %w", err)
	}
	report.UpdatedCells = result.UpdatedCells

	if !result.AnyUpdated {
		o.log(ctx).Warn("No ledger cell was updated, skipping bulk shipment confirmation",
			zap.Strings("orders", reconciliation.OrderIDs(outcome.Completed)),
		)
		return nil
	}

	if scraped.Bulk == nil {
		return errNoBulkHandle
	}
	if err := o.confirmAll(ctx, scraped.Bulk, len(outcome.Completed)); err != nil {
		return fmt.Errorf("bulk shipment confirmation: %w", err)
	}
	report.Confirmed = true
	o.log(ctx).Info("Bulk shipment confirmation accepted",
		zap.Strings("orders", reconciliation.OrderIDs(outcome.Completed)),
	)
	return nil
}

func (o *Orchestrator) scrape(ctx context.Context, session reconciliation.ConsoleSession) (*reconciliation.ScrapeResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "reconciliation.console.scrape")
	defer span.End()

	scraped, err := session.ScrapeShippingOrders(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(telemetry.AttrOrderCount.Int(len(scraped.Orders)))
	return scraped, nil
}

func (o *Orchestrator) confirmAll(ctx context.Context, bulk reconciliation.BulkConfirmHandle, orders int) error {
	ctx, span := telemetry.StartSpan(ctx, "reconciliation.console.bulk_confirm", telemetry.AttrOrderCount.Int(orders))
	defer span.End()

	err := bulk.ConfirmAll(ctx)
	telemetry.RecordError(span, err)
	return err
}

func (o *Orchestrator) fail(ctx context.Context, report *reconciliation.RunReport, err error) *reconciliation.RunReport {
	o.log(ctx).Error("Reconciliation run failed", zap.Error(err), zap.Stack("trace"))

	if o.alerts != nil {
		msg := alertMessage(ctx, err)
		if alertErr := o.alerts.Alert(ctx, msg); alertErr != nil {
			o.log(ctx).Warn("Failed to forward run failure alert", zap.Error(alertErr))
		}
	}

	report.Completed = nil
	report.Confirmed = false
	report.Err = fmt.Errorf("%w: %w", reconciliation.ErrRunFailed, err)
	return report
}

// alertMessage names the failing run so operators can find its log lines and trace
func alertMessage(ctx context.Context, err error) string {
	var b strings.Builder
	b.WriteString("Shipping reconciliation run")
	if runID := logger.GetRunID(ctx); runID != "" {
		fmt.Fprintf(&b, " %s", runID)
	}
	fmt.Fprintf(&b, " failed: %v", err)
	if traceID := logger.GetTraceID(ctx); traceID != "" {
		fmt.Fprintf(&b, " (trace %s)", traceID)
	}
	return b.String()
}

// log returns the component logger carrying the run's correlation fields
func (o *Orchestrator) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, o.logger)
}
