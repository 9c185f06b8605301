package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
)

// maxLoggedBody bounds how much of a webhook response is read and logged
const maxLoggedBody = 4 << 10

// ErrDeliveryFailed indicates the payload never reached the webhook endpoint
var ErrDeliveryFailed = errors.New("webhook: delivery failed")

// Config configures a webhook endpoint
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client posts JSON payloads to a webhook endpoint and logs the response
type Client struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new webhook client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook: url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("webhook"),
	}, nil
}

func (c *Client) post(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("webhook: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	// The endpoint's answer is recorded for operators only; a rejected payload is not retried.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	fields := []zap.Field{
		zap.Int("status", resp.StatusCode),
		zap.ByteString("body", body),
	}
	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("Webhook response", fields...)
		return nil
	}
	c.logger.Info("Webhook response", fields...)
	return nil
}

// Notifier sends manual-escalation notifications
type Notifier struct {
	client *Client
}

// NewNotifier creates a Notifier posting to the given webhook
func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

// Notify posts the notification as a flat JSON object
func (n *Notifier) Notify(ctx context.Context, notification reconciliation.Notification) error {
	return n.client.post(ctx, notification)
}

// alertPayload is the body sent to the operator alert channel
type alertPayload struct {
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertSink forwards run failures to an operator channel
type AlertSink struct {
	client *Client
	source string
	now    func() time.Time
}

// NewAlertSink creates an AlertSink; source identifies this service in the message
func NewAlertSink(client *Client, source string) *AlertSink {
	return &AlertSink{client: client, source: source, now: time.Now}
}

// Alert posts the message
func (a *AlertSink) Alert(ctx context.Context, message string) error {
	return a.client.post(ctx, alertPayload{
		Text:      message,
		Source:    a.source,
		Timestamp: a.now().UTC(),
	})
}

var (
	_ reconciliation.Notifier  = (*Notifier)(nil)
	_ reconciliation.AlertSink = (*AlertSink)(nil)
)
