package logger

import (
	"context"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// Correlation fields (distributed tracing)
	TraceIDKey contextKey = "trace_id"
	SpanIDKey  contextKey = "span_id"

	// Resource fields
	KindKey         contextKey = "kind"
	APIVersionKey   contextKey = "api_version"
	NamespaceKey    contextKey = "namespace"
	ResourceNameKey contextKey = "resource_name"

	// Dispatch fields
	OperationKey contextKey = "operation"

	// Dynamic log fields
	LogFieldsKey contextKey = "log_fields"
)

// LogFields holds dynamic key-value pairs for logging
type LogFields map[string]interface{}

// -----------------------------------------------------------------------------
// Context Setters
// -----------------------------------------------------------------------------

// WithLogField adds a single dynamic log field to the context
// These fields will be extracted and included in all log entries
func WithLogField(ctx context.Context, key string, value interface{}) context.Context {
	fields := GetLogFields(ctx)
	if fields == nil {
		fields = make(LogFields)
	}
	fields[key] = value
	return context.WithValue(ctx, LogFieldsKey, fields)
}

// WithLogFields adds multiple dynamic log fields to the context
// These fields will be extracted and included in all log entries
func WithLogFields(ctx context.Context, newFields LogFields) context.Context {
	fields := GetLogFields(ctx)
	if fields == nil {
		fields = make(LogFields)
	}
	for k, v := range newFields {
		fields[k] = v
	}
	return context.WithValue(ctx, LogFieldsKey, fields)
}

// WithTraceID returns a context with the trace ID set
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return WithLogField(ctx, string(TraceIDKey), traceID)
}

// WithSpanID returns a context with the span ID set
func WithSpanID(ctx context.Context, spanID string) context.Context {
	return WithLogField(ctx, string(SpanIDKey), spanID)
}

// WithKind returns a context with the manifest kind set
func WithKind(ctx context.Context, kind string) context.Context {
	return WithLogField(ctx, string(KindKey), kind)
}

// WithAPIVersion returns a context with the manifest apiVersion set
func WithAPIVersion(ctx context.Context, apiVersion string) context.Context {
	return WithLogField(ctx, string(APIVersionKey), apiVersion)
}

// WithNamespace returns a context with the resource namespace set.
// Empty namespaces (cluster-scoped resources) are not recorded.
func WithNamespace(ctx context.Context, namespace string) context.Context {
	if namespace == "" {
		return ctx
	}
	return WithLogField(ctx, string(NamespaceKey), namespace)
}

// WithResourceName returns a context with the resource name set
func WithResourceName(ctx context.Context, name string) context.Context {
	return WithLogField(ctx, string(ResourceNameKey), name)
}

// WithOperation returns a context with the resolved remote operation set
func WithOperation(ctx context.Context, operation string) context.Context {
	return WithLogField(ctx, string(OperationKey), operation)
}

// -----------------------------------------------------------------------------
// Context Getters
// -----------------------------------------------------------------------------

// GetLogFields returns the dynamic log fields from the context, or nil if not set
func GetLogFields(ctx context.Context) LogFields {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(LogFieldsKey).(LogFields); ok {
		// Return a copy to avoid mutation
		fields := make(LogFields, len(v))
		for k, val := range v {
			fields[k] = val
		}
		return fields
	}
	return nil
}
