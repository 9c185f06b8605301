package reconciliation

import (
	"context"
	"time"
)

// ---------------------------------------------------------------------------
// External collaborators
// ---------------------------------------------------------------------------

// LedgerGateway is a row-level view of the spreadsheet ledger.
// Implementations retry transient failures themselves before returning an error.
type LedgerGateway interface {
	// GetRows reads the whole sheet, header included
	GetRows(ctx context.Context, sheet string) (*Snapshot, error)
	// AppendRow appends one record after the last data row
	AppendRow(ctx context.Context, sheet string, values []string) error
	// UpdateCell writes a single cell; row and col are 1-based
	UpdateCell(ctx context.Context, sheet string, row, col int, value string) error
	// FindColumn returns the 1-based index of the header cell named header
	FindColumn(ctx context.Context, sheet string, header string) (int, error)
}

// FulfillmentClient looks up sub-order state at the fulfillment provider
type FulfillmentClient interface {
	GetOrderStatus(ctx context.Context, storeOrderID string) (*RemoteStatus, error)
}

// Notifier delivers manual-processing notifications to the escalation webhook
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// AlertSink receives top-level run failures
type AlertSink interface {
	Alert(ctx context.Context, message string) error
}

// Pacer spaces out calls to rate-limited collaborators.
// *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// ConsoleSession is one logged-in browser session against the admin console
type ConsoleSession interface {
	Login(ctx context.Context) error
	ScrapeShippingOrders(ctx context.Context) (*ScrapeResult, error)
	Close() error
}

// Console opens browser sessions; every opened session must be closed by the caller
type Console interface {
	Open(ctx context.Context) (ConsoleSession, error)
}

// ---------------------------------------------------------------------------
// Run bookkeeping
// ---------------------------------------------------------------------------

// RunLock provides mutual exclusion between runs started by different triggers
type RunLock interface {
	// TryAcquire returns false without error when another holder owns the lock
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RunRepository persists run records
type RunRepository interface {
	Save(ctx context.Context, record *RunRecord) error
	FindRecent(ctx context.Context, limit int) ([]RunRecord, error)
}
