package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
	"github.com/erp/shipcheck/internal/infrastructure/webhook"
)

func escalationsFor(snapshot *reconciliation.Snapshot, code reconciliation.RemoteStatusCode) []reconciliation.Escalation {
	escalations := make([]reconciliation.Escalation, 0, snapshot.Len())
	for _, row := range snapshot.Rows {
		escalations = append(escalations, reconciliation.Escalation{Row: row, Status: *status(code)})
	}
	return escalations
}

func newTestEscalationHandler(ledger reconciliation.LedgerGateway, notifier reconciliation.Notifier) *EscalationHandler {
	return NewEscalationHandler(ledger, notifier, EscalationHandlerConfig{
		Schema:      reconciliation.DefaultSchema(),
		ManualSheet: manualSheet,
	}, nil)
}

func TestEscalationHandler_Handle_PersistsAndNotifies(t *testing.T) {
	ledger := newFakeLedger()
	ledger.set(manualSheet, [][]string{manualHeader})
	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	escalations := escalationsFor(snapshotOf(ledgerRow("A-200", "S4", "SHIPPING")), reconciliation.RemoteStatusPartial)

	result := newTestEscalationHandler(ledger, notifier).Handle(context.Background(), escalations)

	assert.Equal(t, 1, result.Persisted)
	assert.Equal(t, 1, result.Notified)
	assert.NoError(t, result.PersistErr)
	assert.NoError(t, result.NotifyErr)

	rows := ledger.rows(manualSheet)
	require.Len(t, rows, 2)
	require.Len(t, rows[1], reconciliation.ManualRowWidth)
	assert.Equal(t, "A-200", rows[1][0])
	assert.Equal(t, "NEEDS_REVIEW", rows[1][9])
	assert.Equal(t, reconciliation.ManualNote("PARTIAL"), rows[1][10])

	notifier.AssertCalled(t, "Notify", mock.Anything, reconciliation.Notification{
		OrderNum:     "A-200",
		UserID:       "user-77",
		Username:     "jane",
		OrderTime:    "2024-05-01 10:22",
		OrderService: reconciliation.ServiceMessage("Follower pack", "PARTIAL"),
	})
}

func TestEscalationHandler_Handle_NotifiesOncePerEscalation(t *testing.T) {
	ledger := newFakeLedger()
	ledger.set(manualSheet, [][]string{manualHeader})
	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	escalations := escalationsFor(snapshotOf(
		ledgerRow("A-1", "S1", "SHIPPING"),
		ledgerRow("A-2", "S2", "SHIPPING"),
		ledgerRow("A-3", "S3", "SHIPPING"),
	), reconciliation.RemoteStatusCanceled)

	result := newTestEscalationHandler(ledger, notifier).Handle(context.Background(), escalations)

	assert.Equal(t, 3, result.Persisted)
	assert.Equal(t, 3, result.Notified)
	notifier.AssertNumberOfCalls(t, "Notify", 3)
}

func TestEscalationHandler_Handle_SkipsResolvedRows(t *testing.T) {
	ledger := newFakeLedger()
	ledger.set(manualSheet, [][]string{manualHeader})
	notifier := new(MockNotifier)

	escalations := escalationsFor(snapshotOf(ledgerRow("A-1", "S1", "SHIPPING")), reconciliation.RemoteStatusPartial)
	handler := newTestEscalationHandler(&resolvingLedger{fakeLedger: ledger}, notifier)

	result := handler.Handle(context.Background(), escalations)

	assert.Equal(t, 1, result.Persisted)
	assert.Equal(t, 0, result.Notified)
	assert.Equal(t, 1, result.Skipped)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestEscalationHandler_Handle_PersistFailureAbortsPhase(t *testing.T) {
	ledger := newFakeLedger()
	ledger.set(manualSheet, [][]string{manualHeader})
	ledger.failures["append:"+manualSheet] = errors.New("quota exceeded")
	notifier := new(MockNotifier)

	escalations := escalationsFor(snapshotOf(
		ledgerRow("A-1", "S1", "SHIPPING"),
		ledgerRow("A-2", "S2", "SHIPPING"),
	), reconciliation.RemoteStatusPartial)

	result := newTestEscalationHandler(ledger, notifier).Handle(context.Background(), escalations)

	assert.Equal(t, 0, result.Persisted)
	require.Error(t, result.PersistErr)
	assert.Contains(t, result.PersistErr.Error(), "quota exceeded")
	assert.Equal(t, 0, ledger.appends)
	// Nothing was persisted, so there is no pending row to alert about.
	assert.Equal(t, 2, result.Skipped)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestEscalationHandler_Handle_MalformedRowAbortsPersist(t *testing.T) {
	ledger := newFakeLedger()
	ledger.set(manualSheet, [][]string{manualHeader})

	short := reconciliation.NewSnapshot([][]string{
		{"market_order_id", "store_order_id", "order_status"},
		{"A-1", "S1", "SHIPPING"},
	})
	escalations := escalationsFor(short, reconciliation.RemoteStatusPartial)

	result := newTestEscalationHandler(ledger, nil).Handle(context.Background(), escalations)

	assert.ErrorIs(t, result.PersistErr, reconciliation.ErrMalformedRow)
	assert.Equal(t, 0, ledger.appends)
}

func TestEscalationHandler_Handle_NotifyFailureAbortsPhase(t *testing.T) {
	ledger := newFakeLedger()
	ledger.set(manualSheet, [][]string{manualHeader})
	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything).Return(errors.New("webhook returned 500")).Once()

	escalations := escalationsFor(snapshotOf(
		ledgerRow("A-1", "S1", "SHIPPING"),
		ledgerRow("A-2", "S2", "SHIPPING"),
	), reconciliation.RemoteStatusPartial)

	result := newTestEscalationHandler(ledger, notifier).Handle(context.Background(), escalations)

	assert.Equal(t, 2, result.Persisted)
	assert.Equal(t, 0, result.Notified)
	require.Error(t, result.NotifyErr)
	notifier.AssertNumberOfCalls(t, "Notify", 1)
}

func TestEscalationHandler_Handle_NilNotifierOnlyPersists(t *testing.T) {
	ledger := newFakeLedger()
	ledger.set(manualSheet, [][]string{manualHeader})

	escalations := escalationsFor(snapshotOf(ledgerRow("A-1", "S1", "SHIPPING")), reconciliation.RemoteStatusCanceled)

	result := newTestEscalationHandler(ledger, nil).Handle(context.Background(), escalations)

	assert.Equal(t, 1, result.Persisted)
	assert.Equal(t, 0, result.Notified)
	assert.Zero(t, ledger.reads[manualSheet])
}

func TestEscalationHandler_Handle_Empty(t *testing.T) {
	ledger := newFakeLedger()
	result := newTestEscalationHandler(ledger, new(MockNotifier)).Handle(context.Background(), nil)

	assert.Equal(t, EscalationResult{}, result)
	assert.Zero(t, ledger.reads[manualSheet])
}

// resolvingLedger marks every appended manual row as reviewed right after the append
type resolvingLedger struct {
	*fakeLedger
}

func (r *resolvingLedger) AppendRow(ctx context.Context, sheet string, values []string) error {
	resolved := append([]string(nil), values...)
	resolved[reconciliation.PassthroughFields] = "DONE"
	return r.fakeLedger.AppendRow(ctx, sheet, resolved)
}

func TestEscalationHandler_Handle_WebhookErrorStatusDoesNotStopNotifications(t *testing.T) {
	var (
		mu       sync.Mutex
		received []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n reconciliation.Notification
		_ = json.NewDecoder(r.Body).Decode(&n)
		mu.Lock()
		received = append(received, n.OrderNum)
		first := len(received) == 1
		mu.Unlock()
		if first {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	client, err := webhook.NewClient(webhook.Config{URL: server.URL}, nil)
	require.NoError(t, err)

	ledger := newFakeLedger()
	ledger.set(manualSheet, [][]string{manualHeader})
	escalations := escalationsFor(snapshotOf(
		ledgerRow("A-1", "S1", "SHIPPING"),
		ledgerRow("A-2", "S2", "SHIPPING"),
	), reconciliation.RemoteStatusPartial)

	result := newTestEscalationHandler(ledger, webhook.NewNotifier(client)).Handle(context.Background(), escalations)

	assert.NoError(t, result.NotifyErr)
	assert.Equal(t, 2, result.Notified)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"A-1", "A-2"}, received)
}
