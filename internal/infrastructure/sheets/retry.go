package sheets

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

// RetryConfig bounds retries of transient API failures
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (c RetryConfig) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.InitialInterval > 0 {
		b.InitialInterval = c.InitialInterval
	}
	if c.MaxInterval > 0 {
		b.MaxInterval = c.MaxInterval
	}
	// the retry count is the only budget
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, c.MaxRetries), ctx)
}

// retry runs op until it succeeds, fails permanently, or the retry budget is spent.
// Quota (429) and server (5xx) responses and network errors are retried; anything
// else is returned on first occurrence.
func (g *Gateway) retry(ctx context.Context, call string, op func() error) error {
	wrapped := func() error {
		err := op()
		if err == nil || isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		g.logger.Warn("Ledger API call failed, retrying",
			zap.String("call", call),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	return backoff.RetryNotify(wrapped, g.retryConfig.newBackOff(ctx), notify)
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout:
			return true
		default:
			return apiErr.Code >= http.StatusInternalServerError
		}
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
