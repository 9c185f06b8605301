package reconciliation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
	"github.com/erp/shipcheck/internal/infrastructure/logger"
	"github.com/erp/shipcheck/internal/infrastructure/telemetry"
)

// EscalationHandlerConfig configures the Escalation Handler
type EscalationHandlerConfig struct {
	Schema reconciliation.Schema
	// ManualSheet is the worksheet holding manual escalation records
	ManualSheet string
}

// EscalationResult summarizes one Handle call
type EscalationResult struct {
	Persisted int
	Notified  int
	// Skipped counts escalations with no pending manual-ledger row, so no alert was sent
	Skipped int
	// PersistErr and NotifyErr hold the error that aborted each phase, if any
	PersistErr error
	NotifyErr  error
}

// EscalationHandler records escalations on the manual ledger and alerts a human about them
type EscalationHandler struct {
	ledger   reconciliation.LedgerGateway
	notifier reconciliation.Notifier
	schema   reconciliation.Schema
	sheet    string
	logger   *zap.Logger
}

// NewEscalationHandler creates a new EscalationHandler. A nil notifier disables phase 2.
func NewEscalationHandler(
	ledger reconciliation.LedgerGateway,
	notifier reconciliation.Notifier,
	cfg EscalationHandlerConfig,
	logger *zap.Logger,
) *EscalationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationHandler{
		ledger:   ledger,
		notifier: notifier,
		schema:   cfg.Schema,
		sheet:    cfg.ManualSheet,
		logger:   logger,
	}
}

// Handle persists every escalation, then notifies for the ones the manual ledger
// still shows as awaiting review. Each phase stops at its first failure; failures
// are logged and reported in the result, never returned.
func (h *EscalationHandler) Handle(ctx context.Context, escalations []reconciliation.Escalation) EscalationResult {
	var result EscalationResult
	if len(escalations) == 0 {
		return result
	}

	ctx, span := telemetry.StartSpan(ctx, "reconciliation.escalation", telemetry.AttrOrderCount.Int(len(escalations)))
	defer func() {
		telemetry.RecordError(span, errors.Join(result.PersistErr, result.NotifyErr))
		span.End()
	}()

	result.Persisted, result.PersistErr = h.persist(ctx, escalations)
	if result.PersistErr != nil {
		h.log(ctx).Error("Manual escalation persist phase aborted",
			zap.Int("persisted", result.Persisted),
			zap.Int("remaining", len(escalations)-result.Persisted),
			zap.Error(result.PersistErr),
		)
	}

	if h.notifier == nil {
		h.log(ctx).Warn("No escalation notifier configured, skipping notifications",
			zap.Int("escalations", len(escalations)),
		)
		return result
	}

	result.Notified, result.Skipped, result.NotifyErr = h.notify(ctx, escalations)
	if result.NotifyErr != nil {
		h.log(ctx).Error("Manual escalation notify phase aborted",
			zap.Int("notified", result.Notified),
			zap.Int("skipped", result.Skipped),
			zap.Error(result.NotifyErr),
		)
	}
	return result
}

func (h *EscalationHandler) persist(ctx context.Context, escalations []reconciliation.Escalation) (int, error) {
	persisted := 0
	for _, e := range escalations {
		row, err := reconciliation.BuildManualRow(h.schema, e)
		if err != nil {
			return persisted, err
		}
		if err := h.ledger.AppendRow(ctx, h.sheet, row.Values()); err != nil {
			return persisted, fmt.Errorf("append manual row for %q: %w", e.MarketOrderID(h.schema), err)
		}
		persisted++
		h.log(ctx).Info("Manual escalation recorded",
			zap.String("market_order_id", e.MarketOrderID(h.schema)),
			zap.String("store_order_id", e.Row.Get(h.schema.StoreOrderIDColumn)),
			zap.String("remote_status", e.Status.Code.String()),
		)
	}
	return persisted, nil
}

// notify re-reads the manual ledger so it sees this run's appends and any edits made
// by reviewers, then alerts only for orders that still have a row awaiting review.
func (h *EscalationHandler) notify(ctx context.Context, escalations []reconciliation.Escalation) (notified, skipped int, err error) {
	manual, err := h.ledger.GetRows(ctx, h.sheet)
	if err != nil {
		return 0, 0, fmt.Errorf("re-read manual ledger: %w", err)
	}

	for _, e := range escalations {
		n, err := reconciliation.BuildNotification(h.schema, e)
		if err != nil {
			return notified, skipped, err
		}

		if len(manual.PendingReviewRowsFor(h.schema, n.OrderNum)) == 0 {
			skipped++
			h.log(ctx).Info("No pending manual review row for order, not alerting",
				zap.String("market_order_id", n.OrderNum),
			)
			continue
		}

		if err := h.notifier.Notify(ctx, n); err != nil {
			return notified, skipped, fmt.Errorf("notify %q: %w", n.OrderNum, err)
		}
		notified++
		h.log(ctx).Info("Manual escalation alert sent", zap.String("market_order_id", n.OrderNum))
	}
	return notified, skipped, nil
}

// log returns the component logger carrying the run's correlation fields
func (h *EscalationHandler) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, h.logger)
}
