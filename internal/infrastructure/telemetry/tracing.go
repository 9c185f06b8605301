package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of reconciliation spans
const TracerName = "github.com/erp/shipcheck"

// StartSpan starts an internal span. A span already in ctx supplies the tracer
// provider, so child spans follow whatever provider started the run.
//
//	ctx, span := telemetry.StartSpan(ctx, "reconciliation.sync")
//	defer span.End()
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	var provider trace.TracerProvider
	if parent := trace.SpanFromContext(ctx); parent.SpanContext().IsValid() {
		provider = parent.TracerProvider()
	} else {
		provider = otel.GetTracerProvider()
	}
	return provider.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// RecordError marks the span failed. A nil error is ignored.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Span attribute keys
const (
	AttrRunID      = attribute.Key("shipcheck.run.id")
	AttrOrderCount = attribute.Key("shipcheck.orders")
)
