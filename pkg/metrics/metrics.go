// Package metrics records Prometheus metrics for create and delete calls made
// through tagged manifests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/k8stag/k8stag/pkg/version"
)

const namespace = "k8stag"

const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultDryRun  = "dry_run"
)

// Config holds the labels of the build_info metric.
type Config struct {
	Component string
	Version   string
	Commit    string
}

// DefaultConfig labels build_info from pkg/version.
func DefaultConfig() Config {
	return Config{
		Component: "k8stag",
		Version:   version.Version,
		Commit:    version.Commit,
	}
}

// Recorder owns a private registry so several recorders can coexist in one
// process. A nil *Recorder records nothing.
type Recorder struct {
	registry   *prometheus.Registry
	buildInfo  *prometheus.GaugeVec
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewRecorder creates a recorder with build_info already set to 1.
func NewRecorder(cfg Config) *Recorder {
	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information for k8stag",
		},
		[]string{"component", "version", "commit"},
	)

	operations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Create and delete calls dispatched for tagged manifests",
		},
		[]string{"verb", "kind", "strategy", "result"},
	)

	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of create and delete calls against the API server",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"verb", "kind"},
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(buildInfo, operations, duration)

	buildInfo.WithLabelValues(cfg.Component, cfg.Version, cfg.Commit).Set(1)

	return &Recorder{
		registry:   registry,
		buildInfo:  buildInfo,
		operations: operations,
		duration:   duration,
	}
}

// Observe records one dispatched operation.
func (r *Recorder) Observe(verb, kind, strategy, result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(verb, kind, strategy, result).Inc()
	if result != ResultDryRun {
		r.duration.WithLabelValues(verb, kind).Observe(elapsed.Seconds())
	}
}

// Registry exposes the underlying registry, e.g. for testutil or a pusher.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the recorder's metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes all metrics to path for the node_exporter textfile
// collector. The write is atomic.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
