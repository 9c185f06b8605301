package reconciliation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
)

// MockFulfillmentClient is a mock implementation of FulfillmentClient
type MockFulfillmentClient struct {
	mock.Mock
}

func (m *MockFulfillmentClient) GetOrderStatus(ctx context.Context, storeOrderID string) (*reconciliation.RemoteStatus, error) {
	args := m.Called(ctx, storeOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.RemoteStatus), args.Error(1)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n reconciliation.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockAlertSink is a mock implementation of AlertSink
type MockAlertSink struct {
	mock.Mock
}

func (m *MockAlertSink) Alert(ctx context.Context, message string) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

// MockConfirmHandle is a mock implementation of ConfirmHandle
type MockConfirmHandle struct {
	mock.Mock
}

func (m *MockConfirmHandle) Confirm(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockBulkHandle is a mock implementation of BulkConfirmHandle
type MockBulkHandle struct {
	mock.Mock
}

func (m *MockBulkHandle) ConfirmAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockConsoleSession is a mock implementation of ConsoleSession
type MockConsoleSession struct {
	mock.Mock
}

func (m *MockConsoleSession) Login(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockConsoleSession) ScrapeShippingOrders(ctx context.Context) (*reconciliation.ScrapeResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.ScrapeResult), args.Error(1)
}

func (m *MockConsoleSession) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockConsole is a mock implementation of Console
type MockConsole struct {
	mock.Mock
}

func (m *MockConsole) Open(ctx context.Context) (reconciliation.ConsoleSession, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(reconciliation.ConsoleSession), args.Error(1)
}

// MockRunLock is a mock implementation of RunLock
type MockRunLock struct {
	mock.Mock
}

func (m *MockRunLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockRunLock) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockRunRepository is a mock implementation of RunRepository
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Save(ctx context.Context, record *reconciliation.RunRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRunRepository) FindRecent(ctx context.Context, limit int) ([]reconciliation.RunRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]reconciliation.RunRecord), args.Error(1)
}

// Ensure mocks implement interfaces
var (
	_ reconciliation.FulfillmentClient = (*MockFulfillmentClient)(nil)
	_ reconciliation.Notifier          = (*MockNotifier)(nil)
	_ reconciliation.AlertSink         = (*MockAlertSink)(nil)
	_ reconciliation.ConfirmHandle     = (*MockConfirmHandle)(nil)
	_ reconciliation.BulkConfirmHandle = (*MockBulkHandle)(nil)
	_ reconciliation.ConsoleSession    = (*MockConsoleSession)(nil)
	_ reconciliation.Console           = (*MockConsole)(nil)
	_ reconciliation.RunLock           = (*MockRunLock)(nil)
	_ reconciliation.RunRepository     = (*MockRunRepository)(nil)
	_ reconciliation.LedgerGateway     = (*fakeLedger)(nil)
)

// fakeLedger is an in-memory spreadsheet keyed by sheet name
type fakeLedger struct {
	mu     sync.Mutex
	sheets map[string][][]string

	// failing operations, keyed by "op:sheet" (e.g. "append:manual") or "update:sheet:row"
	failures map[string]error
	reads    map[string]int
	appends  int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		sheets:   make(map[string][][]string),
		failures: make(map[string]error),
		reads:    make(map[string]int),
	}
}

func (f *fakeLedger) set(sheet string, values [][]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make([][]string, len(values))
	for i, row := range values {
		copied[i] = append([]string(nil), row...)
	}
	f.sheets[sheet] = copied
}

func (f *fakeLedger) cell(sheet string, row, col int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := f.sheets[sheet]
	if row-1 >= len(values) || col-1 >= len(values[row-1]) {
		return ""
	}
	return values[row-1][col-1]
}

func (f *fakeLedger) rows(sheet string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sheets[sheet]
}

func (f *fakeLedger) GetRows(_ context.Context, sheet string) (*reconciliation.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[sheet]++
	if err := f.failures["get:"+sheet]; err != nil {
		return nil, err
	}
	return reconciliation.NewSnapshot(f.sheets[sheet]), nil
}

func (f *fakeLedger) AppendRow(_ context.Context, sheet string, values []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures["append:"+sheet]; err != nil {
		return err
	}
	f.appends++
	f.sheets[sheet] = append(f.sheets[sheet], append([]string(nil), values...))
	return nil
}

func (f *fakeLedger) UpdateCell(_ context.Context, sheet string, row, col int, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[fmt.Sprintf("update:%s:%d", sheet, row)]; err != nil {
		return err
	}
	values := f.sheets[sheet]
	if row-1 >= len(values) {
		return fmt.Errorf("row %d out of range", row)
	}
	for len(values[row-1]) < col {
		values[row-1] = append(values[row-1], "")
	}
	values[row-1][col-1] = value
	return nil
}

func (f *fakeLedger) FindColumn(_ context.Context, sheet string, header string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures["find:"+sheet]; err != nil {
		return 0, err
	}
	values := f.sheets[sheet]
	if len(values) == 0 {
		return 0, reconciliation.ErrColumnNotFound
	}
	for i, h := range values[0] {
		if h == header {
			return i + 1, nil
		}
	}
	return 0, reconciliation.ErrColumnNotFound
}

// countingPacer records how often it was waited on
type countingPacer struct {
	mu    sync.Mutex
	waits int
}

func (p *countingPacer) Wait(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waits++
	return nil
}

func (p *countingPacer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waits
}

// Test fixtures

const (
	orderSheet  = "orders"
	manualSheet = "manual"
)

var ledgerHeader = []string{
	"market_order_id", "store_order_id", "customer", "phone", "product", "qty", "order_status", "service", "ordered",
}

func ledgerRow(marketID, storeID, status string) []string {
	return []string{
		marketID, storeID, "jane\nVIP\nuser-77", "010", "likes", "100", status, "Follower pack", "2024-05-01\n(2024-05-01 10:22)",
	}
}

var manualHeader = []string{
	"market_order_id", "store_order_id", "customer", "phone", "product", "qty", "order_status", "service", "ordered",
	"review_state", "note",
}

func status(code reconciliation.RemoteStatusCode) *reconciliation.RemoteStatus {
	return &reconciliation.RemoteStatus{Code: code, Raw: string(code)}
}
