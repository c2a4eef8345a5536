package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// WithOTelTraceContext copies the trace and span IDs of the active span into
// the log fields. Without a valid span the context is returned unchanged.
func WithOTelTraceContext(ctx context.Context) context.Context {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ctx
	}
	ctx = WithTraceID(ctx, sc.TraceID().String())
	return WithSpanID(ctx, sc.SpanID().String())
}
