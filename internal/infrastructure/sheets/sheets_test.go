package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
)

// fakeSheetsAPI serves the subset of the Sheets v4 values API the gateway uses
type fakeSheetsAPI struct {
	mu       sync.Mutex
	grid     [][]interface{}
	requests []*http.Request
	bodies   []sheets.ValueRange
	// failures are returned, in order, before any request is served normally
	failures []int
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)

	if len(f.failures) > 0 {
		code := f.failures[0]
		f.failures = f.failures[1:]
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"error":{"code":` + itoa(code) + `,"message":"injected"}}`))
		return
	}

	var body sheets.ValueRange
	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.bodies = append(f.bodies, body)
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "!1:1"):
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: f.grid[:1]})
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: f.grid})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		f.grid = append(f.grid, body.Values...)
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut:
		_, _ = w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func (f *fakeSheetsAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestGateway(t *testing.T, api *fakeSheetsAPI, retries uint64) *Gateway {
	t.Helper()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)

	return NewWithService(svc, Config{
		SpreadsheetID: "sheet-1",
		Retry: RetryConfig{
			MaxRetries:      retries,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	}, nil)
}

func ledgerGrid() [][]interface{} {
	return [][]interface{}{
		{"market_order_id", "store_order_id", "order_status"},
		{"A-100", "S1", "SHIPPING"},
		{"A-100", "S2"},
	}
}

func TestGateway_GetRows(t *testing.T) {
	api := &fakeSheetsAPI{grid: ledgerGrid()}
	gw := newTestGateway(t, api, 0)

	snapshot, err := gw.GetRows(context.Background(), "orders")

	require.NoError(t, err)
	assert.Equal(t, []string{"market_order_id", "store_order_id", "order_status"}, snapshot.Header)
	require.Equal(t, 2, snapshot.Len())
	assert.Equal(t, 2, snapshot.Rows[0].Number)
	assert.Equal(t, "SHIPPING", snapshot.Rows[0].Get("order_status"))
	assert.Equal(t, "", snapshot.Rows[1].Get("order_status"))

	require.Len(t, api.requests, 1)
	assert.Contains(t, api.requests[0].URL.Path, "/v4/spreadsheets/sheet-1/values/'orders'")
	assert.Equal(t, valueRenderFormatted, api.requests[0].URL.Query().Get("valueRenderOption"))
}

func TestGateway_AppendRow(t *testing.T) {
	api := &fakeSheetsAPI{grid: ledgerGrid()}
	gw := newTestGateway(t, api, 0)

	err := gw.AppendRow(context.Background(), "manual", []string{"A-200", "S4", "NEEDS_REVIEW"})

	require.NoError(t, err)
	require.Len(t, api.requests, 1)
	req := api.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.True(t, strings.HasSuffix(req.URL.Path, ":append"))
	assert.Equal(t, valueInputUserEntered, req.URL.Query().Get("valueInputOption"))
	assert.Equal(t, insertRows, req.URL.Query().Get("insertDataOption"))
	require.Len(t, api.bodies, 1)
	assert.Equal(t, [][]interface{}{{"A-200", "S4", "NEEDS_REVIEW"}}, api.bodies[0].Values)
}

func TestGateway_UpdateCell(t *testing.T) {
	api := &fakeSheetsAPI{grid: ledgerGrid()}
	gw := newTestGateway(t, api, 0)

	err := gw.UpdateCell(context.Background(), "orders", 3, 28, "DELIVERED")

	require.NoError(t, err)
	require.Len(t, api.requests, 1)
	req := api.requests[0]
	assert.Equal(t, http.MethodPut, req.Method)
	assert.True(t, strings.HasSuffix(req.URL.Path, "'orders'!AB3"))
	assert.Equal(t, [][]interface{}{{"DELIVERED"}}, api.bodies[0].Values)
}

func TestGateway_FindColumn(t *testing.T) {
	api := &fakeSheetsAPI{grid: ledgerGrid()}
	gw := newTestGateway(t, api, 0)

	col, err := gw.FindColumn(context.Background(), "orders", "order_status")
	require.NoError(t, err)
	assert.Equal(t, 3, col)

	_, err = gw.FindColumn(context.Background(), "orders", "missing")
	assert.ErrorIs(t, err, reconciliation.ErrColumnNotFound)
}

func TestGateway_RetriesTransientFailures(t *testing.T) {
	api := &fakeSheetsAPI{grid: ledgerGrid(), failures: []int{http.StatusTooManyRequests, http.StatusServiceUnavailable}}
	gw := newTestGateway(t, api, 5)

	snapshot, err := gw.GetRows(context.Background(), "orders")

	require.NoError(t, err)
	assert.Equal(t, 2, snapshot.Len())
	assert.GreaterOrEqual(t, api.calls(), 3)
}

func TestGateway_GivesUpAfterMaxRetries(t *testing.T) {
	api := &fakeSheetsAPI{grid: ledgerGrid(), failures: []int{500, 500, 500, 500, 500, 500}}
	gw := newTestGateway(t, api, 2)

	err := gw.UpdateCell(context.Background(), "orders", 2, 3, "DELIVERED")

	require.Error(t, err)
	var apiErr *googleapi.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Code)
}

func TestGateway_PermanentFailureIsNotRetried(t *testing.T) {
	api := &fakeSheetsAPI{grid: ledgerGrid(), failures: []int{http.StatusForbidden}}
	gw := newTestGateway(t, api, 5)

	err := gw.AppendRow(context.Background(), "manual", []string{"x"})

	require.Error(t, err)
	assert.Equal(t, 1, api.calls())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "quota", err: &googleapi.Error{Code: 429}, want: true},
		{name: "server error", err: &googleapi.Error{Code: 502}, want: true},
		{name: "timeout status", err: &googleapi.Error{Code: 408}, want: true},
		{name: "bad request", err: &googleapi.Error{Code: 400}, want: false},
		{name: "not found", err: &googleapi.Error{Code: 404}, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "network", err: &timeoutError{}, want: true},
		{name: "other", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
