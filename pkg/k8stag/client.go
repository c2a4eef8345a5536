// Package k8stag turns YAML manifests written inline in Go code into typed
// client-go objects and creates or deletes them on a cluster.
//
//	client := k8stag.NewClient(clientset, k8stag.WithLogger(log))
//	job, err := client.Tag(ctx, []string{`
//	    apiVersion: batch/v1
//	    kind: Job
//	    metadata:
//	      name: `, `
//	    spec: ...`}, name)
//	if err != nil {
//	    return err
//	}
//	_, err = job.Create(ctx)
package k8stag

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/client-go/kubernetes"

	"github.com/k8stag/k8stag/internal/assembler"
	"github.com/k8stag/k8stag/internal/dispatch"
	"github.com/k8stag/k8stag/internal/manifest"
	"github.com/k8stag/k8stag/internal/schema"
	"github.com/k8stag/k8stag/pkg/logger"
	"github.com/k8stag/k8stag/pkg/metrics"
)

const tracerName = "github.com/k8stag/k8stag"

// Client builds Resources and dispatches them to one clientset.
// It holds no per-call state and may be shared between goroutines.
type Client struct {
	resolver *dispatch.Resolver
	log      logger.Logger
	metrics  *metrics.Recorder
	tracer   trace.Tracer
	registry *schema.Registry
	table    *schema.Table
}

type clientOptions struct {
	log            logger.Logger
	metrics        *metrics.Recorder
	tracerProvider trace.TracerProvider
	dryRun         bool
	registry       *schema.Registry
	table          *schema.Table
}

// Option configures a Client.
type Option func(*clientOptions)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logger.Logger) Option {
	return func(o *clientOptions) { o.log = log }
}

// WithMetrics records every create and delete on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *clientOptions) { o.metrics = r }
}

// WithTracerProvider sets where spans for create and delete go.
// The default is the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *clientOptions) { o.tracerProvider = tp }
}

// WithDryRun sends every create and delete as a server-side dry run.
func WithDryRun(dryRun bool) Option {
	return func(o *clientOptions) { o.dryRun = dryRun }
}

// WithRegistry sets the scheme root objects are looked up in, for clients
// that serve kinds outside client-go's built-in scheme.
func WithRegistry(r *schema.Registry) Option {
	return func(o *clientOptions) { o.registry = r }
}

// WithTable sets the field rule table, e.g. one with custom split rules.
func WithTable(t *schema.Table) Option {
	return func(o *clientOptions) { o.table = t }
}

// NewClient creates a Client over clientset. A nil clientset is allowed for
// rendering only; Create and Delete then fail with InvalidInput.
func NewClient(clientset kubernetes.Interface, opts ...Option) *Client {
	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.NewNopLogger()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}

	return &Client{
		resolver: dispatch.NewResolver(clientset, o.log, dispatch.WithDryRun(o.dryRun)),
		log:      o.log,
		metrics:  o.metrics,
		tracer:   o.tracerProvider.Tracer(tracerName),
		registry: o.registry,
		table:    o.table,
	}
}

func (c *Client) manifestOptions() []manifest.Option {
	opts := []manifest.Option{manifest.WithLogger(c.log)}
	if c.registry != nil {
		opts = append(opts, manifest.WithRegistry(c.registry))
	}
	if c.table != nil {
		opts = append(opts, manifest.WithTable(c.table))
	}
	return opts
}

// FromDocument maps an already parsed document.
func (c *Client) FromDocument(ctx context.Context, node interface{}) (*Resource, error) {
	m, err := manifest.New(ctx, node, c.manifestOptions()...)
	if err != nil {
		return nil, err
	}
	return &Resource{Manifest: m, client: c}, nil
}

// Parse maps a single YAML document.
func (c *Client) Parse(ctx context.Context, source string) (*Resource, error) {
	m, err := manifest.Parse(ctx, source, c.manifestOptions()...)
	if err != nil {
		return nil, err
	}
	return &Resource{Manifest: m, client: c}, nil
}

// ParseAll maps every document of a "---" separated stream, in order.
func (c *Client) ParseAll(ctx context.Context, source string) ([]*Resource, error) {
	manifests, err := manifest.ParseAll(ctx, source, c.manifestOptions()...)
	if err != nil {
		return nil, err
	}
	resources := make([]*Resource, len(manifests))
	for i, m := range manifests {
		resources[i] = &Resource{Manifest: m, client: c}
	}
	return resources, nil
}

// Tag strips the indentation shared by the lines of segments, assembles them
// with values into YAML and maps the result. len(segments) must be
// len(values)+1.
func (c *Client) Tag(ctx context.Context, segments []string, values ...any) (*Resource, error) {
	source, err := assembler.Assemble(assembler.DedentSegments(segments), values)
	if err != nil {
		return nil, err
	}
	return c.Parse(ctx, source)
}

// Render executes text as a text/template with data and maps the output.
func (c *Client) Render(ctx context.Context, name, text string, data interface{}) (*Resource, error) {
	source, err := assembler.Render(name, text, data)
	if err != nil {
		return nil, err
	}
	return c.Parse(ctx, source)
}

// RenderAll is Render for templates producing several documents.
func (c *Client) RenderAll(ctx context.Context, name, text string, data interface{}) ([]*Resource, error) {
	source, err := assembler.Render(name, text, data)
	if err != nil {
		return nil, err
	}
	resources, err := c.ParseAll(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	return resources, nil
}

// New is a shortcut for NewClient(clientset, opts...).Parse(ctx, source).
func New(ctx context.Context, clientset kubernetes.Interface, source string, opts ...Option) (*Resource, error) {
	return NewClient(clientset, opts...).Parse(ctx, source)
}
