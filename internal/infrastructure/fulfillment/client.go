package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
)

const defaultMaxResponseSize = 1 << 20

var (
	// ErrProviderUnavailable indicates the provider could not be reached
	ErrProviderUnavailable = errors.New("fulfillment: provider unavailable")
	// ErrProviderRequestFailed indicates the provider answered with an HTTP error status
	ErrProviderRequestFailed = errors.New("fulfillment: request failed")
	// ErrProviderInvalidResponse indicates the provider's body could not be understood
	ErrProviderInvalidResponse = errors.New("fulfillment: invalid response")
	// ErrProviderRejected indicates the provider answered with an {"error": ...} body
	ErrProviderRejected = errors.New("fulfillment: provider rejected request")
)

// Config configures the provider client
type Config struct {
	Endpoint        string
	APIKey          string
	Timeout         time.Duration
	MaxResponseSize int64
}

// Client queries the fulfillment provider's order API with form-encoded POSTs
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new provider client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("fulfillment: endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("fulfillment: api key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxResponseSize <= 0 {
		cfg.MaxResponseSize = defaultMaxResponseSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("fulfillment"),
	}, nil
}

// GetOrderStatus returns the provider's status for one store sub-order
func (c *Client) GetOrderStatus(ctx context.Context, storeOrderID string) (*reconciliation.RemoteStatus, error) {
	body, err := c.doRequest(ctx, url.Values{
		"action": {"status"},
		"order":  {storeOrderID},
	})
	if err != nil {
		return nil, err
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrProviderInvalidResponse, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: order %s: %s", ErrProviderRejected, storeOrderID, resp.Error)
	}
	if strings.TrimSpace(resp.Status) == "" {
		return nil, fmt.Errorf("%w: order %s: no status field", ErrProviderInvalidResponse, storeOrderID)
	}

	status := &reconciliation.RemoteStatus{
		Code:       reconciliation.ParseRemoteStatusCode(resp.Status),
		Raw:        resp.Status,
		Charge:     ParseDecimal(string(resp.Charge)),
		StartCount: ParseCount(string(resp.StartCount)),
		Remains:    ParseCount(string(resp.Remains)),
		Currency:   resp.Currency,
	}
	c.logger.Debug("Provider status received",
		zap.String("store_order_id", storeOrderID),
		zap.String("status", status.Raw),
		zap.String("charge", status.Charge.String()),
		zap.Int64("remains", status.Remains),
	)
	return status, nil
}

func (c *Client) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	params.Set("key", c.config.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("fulfillment: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("fulfillment: failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: HTTP %d", ErrProviderRequestFailed, resp.StatusCode)
	}
	return body, nil
}

var _ reconciliation.FulfillmentClient = (*Client)(nil)
