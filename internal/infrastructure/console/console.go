package console

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
)

const (
	defaultSessionTimeout = 10 * time.Minute
	defaultScrapeWait     = 20 * time.Second
	defaultDialogWait     = 10 * time.Second
	defaultLoginSettle    = 2 * time.Second
)

// ErrLoginFailed is returned when the dashboard never appears after submitting credentials
var ErrLoginFailed = errors.New("console: login failed")

// Config contains configuration for the admin console automation
type Config struct {
	LoginURL     string
	OrdersURL    string
	DashboardURL string
	Username     string
	Password     string

	// RemoteURL is the DevTools URL of a running Chrome; empty launches a new browser
	RemoteURL   string
	Headless    bool
	NoSandbox   bool
	UserDataDir string

	// Timeout bounds a whole session, from Open to Close
	Timeout time.Duration
	// ScrapeWait bounds the wait for the order list; expiry means "no orders"
	ScrapeWait time.Duration
	// DialogWait bounds the wait for each confirmation dialog
	DialogWait time.Duration
	// LoginSettle bounds the optional post-login prompts and the dashboard wait
	LoginSettle time.Duration
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultSessionTimeout
	}
	if c.ScrapeWait <= 0 {
		c.ScrapeWait = defaultScrapeWait
	}
	if c.DialogWait <= 0 {
		c.DialogWait = defaultDialogWait
	}
	if c.LoginSettle <= 0 {
		c.LoginSettle = defaultLoginSettle
	}
}

// Console opens browser sessions against the admin console
type Console struct {
	config Config
	logger *zap.Logger
}

// New creates a new Console
func New(cfg Config, logger *zap.Logger) (*Console, error) {
	if cfg.LoginURL == "" || cfg.OrdersURL == "" {
		return nil, errors.New("console: login and orders URLs are required")
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{config: cfg, logger: logger.Named("console")}, nil
}

// Open starts a browser and returns a session bound to it. The caller must Close it.
func (c *Console) Open(ctx context.Context) (reconciliation.ConsoleSession, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if c.config.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, c.config.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(allocCtx, c.config.Timeout)
	browserCtx, browserCancel := chromedp.NewContext(timeoutCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			c.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	s := &session{
		config:  c.config,
		logger:  c.logger,
		ctx:     browserCtx,
		dialogs: make(chan string, 8),
		cancel: func() {
			browserCancel()
			timeoutCancel()
			allocCancel()
		},
	}
	s.listenForDialogs()

	// an empty Run starts the browser so launch failures surface here
	if err := chromedp.Run(browserCtx); err != nil {
		s.cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return s, nil
}

func (c *Console) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(1440, 1000),
	)
	if c.config.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if c.config.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(c.config.UserDataDir))
	}
	return opts
}

var _ reconciliation.Console = (*Console)(nil)
