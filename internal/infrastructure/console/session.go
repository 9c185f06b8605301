package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
)

const (
	usernameSelector     = `input[name="loginId"]`
	passwordSelector     = `input[name="loginPasswd"]`
	loginButtonSelector  = "button.btnStrong.large"
	laterButtonSelector  = "#iptBtnEm"
	orderListSelector    = "#searchResultList"
	bulkShippedSelector  = "#eShippedEndBtn"
	bulkConfirmDialogs   = 2
	dashboardPollPeriod  = 250 * time.Millisecond
)

// session is one browser session. Its handles are only valid until Close.
type session struct {
	config  Config
	logger  *zap.Logger
	ctx     context.Context
	cancel  func()
	dialogs chan string
}

// listenForDialogs accepts every JavaScript dialog and reports its message.
// Dialogs block the page, so they are accepted from a separate goroutine.
func (s *session) listenForDialogs() {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		e, ok := ev.(*page.EventJavascriptDialogOpening)
		if !ok {
			return
		}
		go func(message string) {
			if err := chromedp.Run(s.ctx, page.HandleJavaScriptDialog(true)); err != nil {
				s.logger.Warn("Failed to accept console dialog", zap.String("message", message), zap.Error(err))
				return
			}
			select {
			case s.dialogs <- message:
			default:
				s.logger.Warn("Dropped console dialog notification", zap.String("message", message))
			}
		}(e.Message)
	})
}

// run executes actions in the browser, stopping early if ctx is canceled
func (s *session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// runWithin is run bounded by timeout
func (s *session) runWithin(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.run(ctx, actions...)
}

// Login signs in and waits for the dashboard. The optional password-change prompt
// is dismissed when present.
func (s *session) Login(ctx context.Context) error {
	err := s.run(ctx,
		chromedp.Navigate(s.config.LoginURL),
		chromedp.WaitVisible(usernameSelector, chromedp.ByQuery),
		chromedp.SendKeys(usernameSelector, s.config.Username, chromedp.ByQuery),
		chromedp.SendKeys(passwordSelector, s.config.Password, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("fill login form: %w", err)
	}

	if err := s.runWithin(ctx, s.config.LoginSettle, chromedp.Click(loginButtonSelector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		s.logger.Warn("Login button click failed", zap.Error(err))
	}
	if err := s.runWithin(ctx, s.config.LoginSettle, chromedp.Click(laterButtonSelector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		s.logger.Debug("No password-change prompt to dismiss", zap.Error(err))
	}

	if s.config.DashboardURL == "" {
		return nil
	}
	if err := s.waitForDashboard(ctx); err != nil {
		return err
	}
	s.logger.Info("Logged in to console")
	return nil
}

func (s *session) waitForDashboard(ctx context.Context) error {
	deadline := time.Now().Add(s.config.Timeout)
	for {
		var location string
		if err := s.run(ctx, chromedp.Location(&location)); err != nil {
			return fmt.Errorf("%w: %v", ErrLoginFailed, err)
		}
		if dashboardReached(location, s.config.DashboardURL) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: still on %s", ErrLoginFailed, location)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dashboardPollPeriod):
		}
	}
}

func dashboardReached(location, dashboard string) bool {
	return location != "" && strings.HasPrefix(location, dashboard)
}

// ScrapeShippingOrders lists the orders the console shows as shipping.
// An order list that never renders means there is nothing to ship.
func (s *session) ScrapeShippingOrders(ctx context.Context) (*reconciliation.ScrapeResult, error) {
	if err := s.run(ctx, chromedp.Navigate(s.config.OrdersURL)); err != nil {
		return nil, fmt.Errorf("open order list: %w", err)
	}

	err := s.runWithin(ctx, s.config.ScrapeWait,
		chromedp.WaitVisible(orderCellSelector, chromedp.ByQuery),
		chromedp.WaitVisible(checkboxSelector, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Info("Order list did not render, treating as no shipping orders", zap.Error(err))
		return &reconciliation.ScrapeResult{}, nil
	}

	var (
		html  string
		nodes []*cdp.Node
	)
	err = s.run(ctx,
		chromedp.OuterHTML(orderListSelector, &html, chromedp.ByQuery),
		chromedp.Nodes(orderListSelector+" "+orderRowSelector, &nodes, chromedp.ByQueryAll),
	)
	if err != nil {
		return nil, fmt.Errorf("read order list: %w", err)
	}

	listed, err := ParseOrderList(html)
	if err != nil {
		return nil, err
	}

	result := &reconciliation.ScrapeResult{Bulk: &bulkHandle{session: s}}
	for _, o := range listed {
		if o.Row >= len(nodes) {
			return nil, fmt.Errorf("order list changed while reading: row %d of %d", o.Row, len(nodes))
		}
		order := reconciliation.ScrapedOrder{MarketOrderID: o.MarketOrderID}
		if o.HasCheckbox {
			order.Handle = &rowHandle{session: s, row: nodes[o.Row], orderID: o.MarketOrderID}
		}
		result.Orders = append(result.Orders, order)
	}

	s.logger.Info("Order list read", zap.Int("rows", len(nodes)), zap.Int("orders", len(result.Orders)))
	return result, nil
}

// Close shuts the browser down
func (s *session) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

// rowHandle ticks one order's checkbox
type rowHandle struct {
	session *session
	row     *cdp.Node
	orderID string
}

func (h *rowHandle) Confirm(ctx context.Context) error {
	err := h.session.run(ctx, chromedp.Click(checkboxSelector, chromedp.ByQuery, chromedp.FromNode(h.row)))
	if err != nil {
		return fmt.Errorf("tick order %s: %w", h.orderID, err)
	}
	return nil
}

// bulkHandle presses the bulk "shipment complete" button and accepts both dialogs
type bulkHandle struct {
	session *session
}

func (h *bulkHandle) ConfirmAll(ctx context.Context) error {
	s := h.session
	drain(s.dialogs)

	if err := s.run(ctx, chromedp.Click(bulkShippedSelector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("press bulk shipment button: %w", err)
	}

	messages, err := awaitDialogs(ctx, s.dialogs, bulkConfirmDialogs, s.config.DialogWait)
	for _, m := range messages {
		s.logger.Info("Console dialog accepted", zap.String("message", m))
	}
	return err
}

// awaitDialogs collects n dialog messages, waiting at most wait for each
func awaitDialogs(ctx context.Context, dialogs <-chan string, n int, wait time.Duration) ([]string, error) {
	messages := make([]string, 0, n)
	for len(messages) < n {
		timer := time.NewTimer(wait)
		select {
		case m := <-dialogs:
			timer.Stop()
			messages = append(messages, m)
		case <-timer.C:
			return messages, fmt.Errorf("expected %d confirmation dialogs, got %d", n, len(messages))
		case <-ctx.Done():
			timer.Stop()
			return messages, ctx.Err()
		}
	}
	return messages, nil
}

func drain(ch <-chan string) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

var (
	_ reconciliation.ConsoleSession    = (*session)(nil)
	_ reconciliation.ConfirmHandle     = (*rowHandle)(nil)
	_ reconciliation.BulkConfirmHandle = (*bulkHandle)(nil)
)
