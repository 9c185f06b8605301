package reconciliation

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
	"github.com/erp/shipcheck/internal/infrastructure/logger"
	"github.com/erp/shipcheck/internal/infrastructure/telemetry"
)

// EngineConfig configures the Reconciliation Engine
type EngineConfig struct {
	Schema reconciliation.Schema
	// LookupConcurrency bounds concurrent sub-order lookups for one scraped order.
	// Values <= 1 keep lookups strictly sequential.
	LookupConcurrency int
}

// Engine matches scraped orders against a ledger snapshot and classifies them
// using the fulfillment provider's per-sub-order status.
type Engine struct {
	client      reconciliation.FulfillmentClient
	schema      reconciliation.Schema
	concurrency int
	logger      *zap.Logger
}

// NewEngine creates a new Engine
func NewEngine(client reconciliation.FulfillmentClient, cfg EngineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		client:      client,
		schema:      cfg.Schema,
		concurrency: cfg.LookupConcurrency,
		logger:      logger,
	}
}

// Reconcile classifies every scraped order against the snapshot.
// It never fails as a whole: a broken order is logged and recorded in Outcome.Failed.
func (e *Engine) Reconcile(ctx context.Context, orders []reconciliation.ScrapedOrder, snapshot *reconciliation.Snapshot) *reconciliation.Outcome {
	ctx, span := telemetry.StartSpan(ctx, "reconciliation.engine", telemetry.AttrOrderCount.Int(len(orders)))
	defer span.End()

	outcome := &reconciliation.Outcome{}
	if snapshot == nil {
		snapshot = reconciliation.NewSnapshot(nil)
	}

	for _, order := range orders {
		if ctx.Err() != nil {
			e.log(ctx).Warn("Reconciliation interrupted, remaining orders left untouched",
				zap.String("market_order_id", order.MarketOrderID),
				zap.Error(ctx.Err()),
			)
			break
		}

		if err := e.reconcileOrder(ctx, order, snapshot, outcome); err != nil {
			e.log(ctx).Error("Failed to reconcile order",
				zap.String("market_order_id", order.MarketOrderID),
				zap.Error(err),
			)
			outcome.Failed = append(outcome.Failed, order.MarketOrderID)
		}
	}

	e.log(ctx).Info("Reconciliation finished",
		zap.Int("scraped", len(orders)),
		zap.Int("completed", len(outcome.Completed)),
		zap.Int("escalations", len(outcome.Escalations)),
		zap.Int("unmatched", len(outcome.Unmatched)),
		zap.Int("pending", len(outcome.Pending)),
		zap.Int("failed", len(outcome.Failed)),
	)
	return outcome
}

// reconcileOrder appends the order's decision to outcome. Escalations found before
// a failing sub-order stay in the outcome.
func (e *Engine) reconcileOrder(ctx context.Context, order reconciliation.ScrapedOrder, snapshot *reconciliation.Snapshot, outcome *reconciliation.Outcome) error {
	matches := snapshot.ShippingRowsFor(e.schema, order.MarketOrderID)
	if len(matches) == 0 {
		e.log(ctx).Warn("Ledger has no shipping-state record for this order, skipping",
			zap.String("market_order_id", order.MarketOrderID),
		)
		outcome.Unmatched = append(outcome.Unmatched, order.MarketOrderID)
		return nil
	}

	results := e.lookup(ctx, matches)

	completed := 0
	pending := false
	for i, row := range matches {
		storeOrderID := row.Get(e.schema.StoreOrderIDColumn)
		res := results[i]
		if res.err != nil {
			return fmt.Errorf("sub-order %q on row %d: %w", storeOrderID, row.Number, res.err)
		}

		fields := []zap.Field{
			zap.String("market_order_id", row.Get(e.schema.MarketOrderIDColumn)),
			zap.String("store_order_id", storeOrderID),
			zap.String("remote_status", res.status.Raw),
		}
		switch {
		case res.status.Code == reconciliation.RemoteStatusCompleted:
			completed++
			e.log(ctx).Info("Sub-order completed", fields...)
		case res.status.Code.NeedsEscalation():
			outcome.Escalations = append(outcome.Escalations, reconciliation.Escalation{
				Row:    row,
				Status: *res.status,
			})
			e.log(ctx).Warn("Sub-order needs manual processing", fields...)
		default:
			pending = true
			e.log(ctx).Info("Sub-order not finished yet", fields...)
		}
	}

	if completed == len(matches) {
		outcome.Completed = append(outcome.Completed, order)
	} else if pending {
		outcome.Pending = append(outcome.Pending, order.MarketOrderID)
	}
	return nil
}

type lookupResult struct {
	status *reconciliation.RemoteStatus
	err    error
}

// lookup fetches the remote status of every row. Results are positional; in
// sequential mode nothing after the first failure is fetched.
func (e *Engine) lookup(ctx context.Context, rows []reconciliation.Row) []lookupResult {
	results := make([]lookupResult, len(rows))

	if e.concurrency <= 1 || len(rows) == 1 {
		for i, row := range rows {
			results[i] = e.lookupOne(ctx, row)
			if results[i].err != nil {
				break
			}
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, row := range rows {
		g.Go(func() error {
			results[i] = e.lookupOne(ctx, row)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Engine) lookupOne(ctx context.Context, row reconciliation.Row) lookupResult {
	storeOrderID := row.Get(e.schema.StoreOrderIDColumn)
	if storeOrderID == "" {
		return lookupResult{err: fmt.Errorf("%w: row %d has no %s",
			reconciliation.ErrMalformedRow, row.Number, e.schema.StoreOrderIDColumn)}
	}

	status, err := e.client.GetOrderStatus(ctx, storeOrderID)
	if err != nil {
		return lookupResult{err: fmt.Errorf("%w: %w", reconciliation.ErrRemoteLookupFailed, err)}
	}
	if status == nil {
		return lookupResult{err: fmt.Errorf("%w: empty response", reconciliation.ErrRemoteLookupFailed)}
	}
	return lookupResult{status: status}
}

// log returns the component logger carrying the run's correlation fields
func (e *Engine) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, e.logger)
}
