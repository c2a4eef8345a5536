// Package otel sets up the OpenTelemetry tracer provider for the CLI.
// Spans are not exported; they supply trace and span IDs for log correlation
// and W3C trace context propagation.
package otel

import (
	"context"
	"os"

	"github.com/spf13/cast"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/k8stag/k8stag/pkg/logger"
)

const (
	// EnvTraceSampleRatio is the standard OTel sampler argument variable
	EnvTraceSampleRatio = "OTEL_TRACES_SAMPLER_ARG"

	// DefaultTraceSampleRatio samples every trace; a CLI run is a single trace
	DefaultTraceSampleRatio = 1.0
)

// GetTraceSampleRatio reads the sample ratio from the environment. Invalid or
// out of range values fall back to DefaultTraceSampleRatio with a warning.
func GetTraceSampleRatio(log logger.Logger, ctx context.Context) float64 {
	raw := os.Getenv(EnvTraceSampleRatio)
	if raw == "" {
		return DefaultTraceSampleRatio
	}
	ratio, err := cast.ToFloat64E(raw)
	if err != nil || ratio < 0 || ratio > 1 {
		log.Warnf(ctx, "Invalid %s=%q, using %v", EnvTraceSampleRatio, raw, DefaultTraceSampleRatio)
		return DefaultTraceSampleRatio
	}
	log.Debugf(ctx, "Using trace sample ratio %v", ratio)
	return ratio
}

// InitTracer installs a global tracer provider and the W3C trace context
// propagator. The caller must Shutdown the returned provider.
func InitTracer(serviceName, serviceVersion string, sampleRatio float64) (*sdktrace.TracerProvider, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", serviceVersion),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}
