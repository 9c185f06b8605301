// Package middleware provides HTTP middleware for the shipcheck API.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/erp/shipcheck/internal/infrastructure/telemetry"
)

type httpMetrics struct {
	requestTotal    *telemetry.Counter
	requestDuration *telemetry.Histogram
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	requestTotal, err := telemetry.NewCounter(
		meter,
		"http_server_request_total",
		"Total number of HTTP requests",
		"{request}",
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency distribution in seconds",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return &httpMetrics{requestTotal: requestTotal, requestDuration: requestDuration}, nil
}

// HTTPMetrics returns a gin middleware that counts requests and records their latency.
// A nil meter yields a pass-through middleware.
func HTTPMetrics(meter metric.Meter, logger *zap.Logger) gin.HandlerFunc {
	passThrough := func(c *gin.Context) { c.Next() }
	if meter == nil {
		return passThrough
	}
	metrics, err := newHTTPMetrics(meter)
	if err != nil {
		if logger != nil {
			logger.Warn("HTTP metrics disabled", zap.Error(err))
		}
		return passThrough
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ctx := c.Request.Context()
		method := telemetry.AttrHTTPMethod.String(c.Request.Method)
		route := telemetry.AttrHTTPRoute.String(routePattern(c))

		metrics.requestTotal.Inc(ctx, method, route, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))
		metrics.requestDuration.RecordDuration(ctx, time.Since(start), method, route)
	}
}

// routePattern returns the matched route, not the raw path, to keep cardinality bounded
func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}
