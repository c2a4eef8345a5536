package k8stag

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/k8stag/k8stag/internal/dispatch"
	"github.com/k8stag/k8stag/internal/manifest"
	"github.com/k8stag/k8stag/pkg/constants"
	"github.com/k8stag/k8stag/pkg/logger"
	"github.com/k8stag/k8stag/pkg/metrics"
)

// unresolved labels metrics for calls that failed before reaching the API
const unresolved = "unresolved"

// Resource is one mapped manifest bound to the Client that built it.
// The embedded Manifest gives access to the kind, metadata, typed object and
// original document.
type Resource struct {
	*manifest.Manifest
	client *Client
}

// Binding resolves the operation verb would perform without performing it.
func (r *Resource) Binding(ctx context.Context, verb string) (*dispatch.Binding, error) {
	return r.client.resolver.Resolve(ctx, verb, r.Manifest)
}

// Create sends the typed object to the API server and returns what the
// server stored. API errors are returned unchanged and never retried.
func (r *Resource) Create(ctx context.Context) (runtime.Object, error) {
	return r.invoke(ctx, constants.VerbCreate)
}

// Delete removes the object named by the manifest's metadata.
func (r *Resource) Delete(ctx context.Context) error {
	_, err := r.invoke(ctx, constants.VerbDelete)
	return err
}

func (r *Resource) invoke(ctx context.Context, verb string) (runtime.Object, error) {
	c := r.client
	kind := r.Kind()

	ctx, span := c.tracer.Start(ctx, "k8stag."+verb,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("k8s.kind", kind),
			attribute.String("k8s.api_version", r.APIVersion()),
			attribute.String("k8s.namespace", r.Namespace()),
			attribute.String("k8s.name", r.Name()),
		))
	defer span.End()

	ctx = logger.WithOTelTraceContext(ctx)
	ctx = logger.WithKind(ctx, kind)
	ctx = logger.WithAPIVersion(ctx, r.APIVersion())
	ctx = logger.WithNamespace(ctx, r.Namespace())
	ctx = logger.WithResourceName(ctx, r.Name())

	binding, err := r.Binding(ctx, verb)
	if err != nil {
		c.metrics.Observe(verb, kind, unresolved, metrics.ResultError, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		c.log.Errorf(logger.WithErrorField(ctx, err), "Cannot %s %s", verb, kind)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("k8stag.operation", binding.Operation),
		attribute.String("k8stag.strategy", binding.Strategy),
	)
	ctx = logger.WithOperation(ctx, binding.Operation)

	start := time.Now()
	obj, err := binding.Invoke(ctx)
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.Observe(verb, kind, binding.Strategy, metrics.ResultError, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Errorf(logger.WithErrorField(ctx, err), "Failed to %s", binding)
		return nil, err
	}

	result := metrics.ResultSuccess
	if c.resolver.DryRun() {
		result = metrics.ResultDryRun
	}
	c.metrics.Observe(verb, kind, binding.Strategy, result, elapsed)
	span.SetStatus(codes.Ok, "")
	c.log.Infof(ctx, "Completed %s in %s", binding, elapsed.Round(time.Millisecond))
	return obj, nil
}
