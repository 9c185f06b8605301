package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/shipcheck/internal/infrastructure/logger"
	"github.com/erp/shipcheck/internal/interfaces/http/middleware"
)

// EngineOptions configures the instrumentation of NewEngine. Zero values are allowed.
type EngineOptions struct {
	// ServiceName names the server spans
	ServiceName string
	Meter       metric.Meter
	// TracerProvider enables a server span per request when set
	TracerProvider trace.TracerProvider
}

// NewEngine returns a gin engine with request tracing, request logging, panic
// recovery and request metrics installed.
func NewEngine(log *zap.Logger, opts EngineOptions) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	engine := gin.New()
	if opts.TracerProvider != nil {
		name := opts.ServiceName
		if name == "" {
			name = "shipcheck"
		}
		engine.Use(otelgin.Middleware(name, otelgin.WithTracerProvider(opts.TracerProvider)))
	}
	engine.Use(
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.HTTPMetrics(opts.Meter, log),
	)
	return engine
}
