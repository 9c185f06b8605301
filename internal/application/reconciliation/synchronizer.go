package reconciliation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
	"github.com/erp/shipcheck/internal/infrastructure/logger"
	"github.com/erp/shipcheck/internal/infrastructure/telemetry"
)

// SynchronizerConfig configures the State Synchronizer
type SynchronizerConfig struct {
	Schema reconciliation.Schema
	// OrderSheet is the worksheet holding the order ledger
	OrderSheet string
	// WritePacer spaces ledger cell writes
	WritePacer reconciliation.Pacer
	// ConfirmPacer spaces console confirmations
	ConfirmPacer reconciliation.Pacer
}

// Synchronizer writes completion transitions back to the ledger and ticks the
// matching orders in the admin console.
type Synchronizer struct {
	ledger       reconciliation.LedgerGateway
	schema       reconciliation.Schema
	sheet        string
	writePacer   reconciliation.Pacer
	confirmPacer reconciliation.Pacer
	logger       *zap.Logger
}

// NewSynchronizer creates a new Synchronizer
func NewSynchronizer(ledger reconciliation.LedgerGateway, cfg SynchronizerConfig, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		ledger:       ledger,
		schema:       cfg.Schema,
		sheet:        cfg.OrderSheet,
		writePacer:   cfg.WritePacer,
		confirmPacer: cfg.ConfirmPacer,
		logger:       logger,
	}
}

// Sync moves every shipping row of the completed orders to the delivered status and
// ticks each order in the console once its rows are processed. The ledger is re-read
// before each order so writes land on the current row layout. Pacers are waited on
// before every write and every tick.
// Only a missing status column is returned as an error; row and order failures are
// logged and skipped.
func (s *Synchronizer) Sync(ctx context.Context, orders []reconciliation.ScrapedOrder) (*reconciliation.SyncResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "reconciliation.sync", telemetry.AttrOrderCount.Int(len(orders)))
	defer span.End()

	result := &reconciliation.SyncResult{Orders: orders}

	statusCol, err := s.ledger.FindColumn(ctx, s.sheet, s.schema.OrderStatusColumn)
	if err != nil {
		err = fmt.Errorf("locate %q column: %w", s.schema.OrderStatusColumn, err)
		telemetry.RecordError(span, err)
		return result, err
	}

	for _, order := range orders {
		updated, ok := s.syncOrder(ctx, order, statusCol)
		result.UpdatedCells += updated
		if !ok {
			continue
		}

		if updated == 0 {
			s.log(ctx).Warn("No ledger cell updated for order",
				zap.String("market_order_id", order.MarketOrderID),
			)
		}
		s.confirm(ctx, order)
	}

	result.AnyUpdated = result.UpdatedCells > 0
	s.log(ctx).Info("Ledger synchronization finished",
		zap.Int("orders", len(orders)),
		zap.Int("updated_cells", result.UpdatedCells),
	)
	return result, nil
}

// syncOrder reports false when the ledger could not be read, so none of the order's rows were processed
func (s *Synchronizer) syncOrder(ctx context.Context, order reconciliation.ScrapedOrder, statusCol int) (int, bool) {
	snapshot, err := s.ledger.GetRows(ctx, s.sheet)
	if err != nil {
		s.log(ctx).Error("Failed to re-read ledger before update",
			zap.String("market_order_id", order.MarketOrderID),
			zap.Error(err),
		)
		return 0, false
	}

	updated := 0
	for _, row := range snapshot.ShippingRowsFor(s.schema, order.MarketOrderID) {
		s.pace(ctx, s.writePacer)
		if err := s.ledger.UpdateCell(ctx, s.sheet, row.Number, statusCol, s.schema.StatusDelivered); err != nil {
			s.log(ctx).Error("Failed to update ledger row",
				zap.String("market_order_id", order.MarketOrderID),
				zap.Int("row", row.Number),
				zap.Error(err),
			)
			continue
		}
		updated++
		s.log(ctx).Info("Ledger row marked delivered",
			zap.String("market_order_id", order.MarketOrderID),
			zap.Int("row", row.Number),
		)
	}
	return updated, true
}

func (s *Synchronizer) confirm(ctx context.Context, order reconciliation.ScrapedOrder) {
	if order.Handle == nil {
		s.log(ctx).Warn("Order has no console handle, cannot tick it",
			zap.String("market_order_id", order.MarketOrderID),
		)
		return
	}
	s.pace(ctx, s.confirmPacer)
	if err := order.Handle.Confirm(ctx); err != nil {
		s.log(ctx).Error("Failed to tick order in the console",
			zap.String("market_order_id", order.MarketOrderID),
			zap.Error(err),
		)
	}
}

func (s *Synchronizer) pace(ctx context.Context, p reconciliation.Pacer) {
	if p == nil {
		return
	}
	if err := p.Wait(ctx); err != nil {
		s.log(ctx).Debug("Pacer wait interrupted", zap.Error(err))
	}
}

// log returns the component logger carrying the run's correlation fields
func (s *Synchronizer) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, s.logger)
}
