package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/shipcheck/internal/infrastructure/logger"
)

func TestNewEngine_RecoversAndTagsRequests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	engine := NewEngine(zap.New(core), EngineOptions{})
	engine.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestNewEngine_TracesRequests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	engine := NewEngine(zap.New(core), EngineOptions{ServiceName: "shipcheck-test", TracerProvider: provider})
	var handlerTraceID string
	engine.GET("/api/v1/runs", func(c *gin.Context) {
		handlerTraceID = logger.GetTraceID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))

	require.Equal(t, http.StatusOK, w.Code)
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), handlerTraceID)

	entries := logs.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, handlerTraceID, entries[0].ContextMap()["trace_id"])
}
