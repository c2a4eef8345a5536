// Package manifest wraps one parsed resource document together with the typed
// Kubernetes object mapped from it.
//
// A Manifest is immutable after New returns: the typed object is the canonical
// representation handed to the API, while the original document is kept for
// serialization so mapping never leaks into the textual form.
package manifest

import (
	"context"
	"fmt"

	"github.com/k8stag/k8stag/internal/document"
	"github.com/k8stag/k8stag/internal/mapper"
	"github.com/k8stag/k8stag/internal/schema"
	"github.com/k8stag/k8stag/pkg/constants"
	apperrors "github.com/k8stag/k8stag/pkg/errors"
	"github.com/k8stag/k8stag/pkg/logger"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	k8sschema "k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/yaml"
)

// Manifest is a mapped resource document.
type Manifest struct {
	kind       string
	apiVersion string
	gvk        k8sschema.GroupVersionKind
	object     runtime.Object
	metadata   metav1.Object
	document   map[string]interface{}
}

type options struct {
	registry *schema.Registry
	table    *schema.Table
	log      logger.Logger
}

// Option configures New.
type Option func(*options)

// WithRegistry sets the registry root objects are instantiated from.
func WithRegistry(r *schema.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithTable sets the field rule table used by the mapper.
func WithTable(t *schema.Table) Option {
	return func(o *options) { o.table = t }
}

// WithLogger sets the logger for mapping traces.
func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// defaultTable is shared so reflected field lookups are cached across manifests
var defaultTable = schema.NewTable()

// New validates that node is a mapping with a kind, maps it onto the typed
// object registered for that kind, and returns the resulting Manifest.
func New(ctx context.Context, node interface{}, opts ...Option) (*Manifest, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = schema.DefaultRegistry()
	}
	if o.table == nil {
		o.table = defaultTable
	}
	if o.log == nil {
		o.log = logger.NewNopLogger()
	}

	doc, ok := node.(map[string]interface{})
	if !ok {
		return nil, apperrors.MissingKind("document must be a mapping with a %q field, got %T", constants.FieldKind, node)
	}
	kind, ok := doc[constants.FieldKind].(string)
	if !ok || kind == "" {
		return nil, apperrors.MissingKind("document has no %q field", constants.FieldKind)
	}
	apiVersion, _ := doc[constants.FieldAPIVersion].(string)

	ctx = logger.WithKind(ctx, kind)
	ctx = logger.WithAPIVersion(ctx, apiVersion)

	obj, _, gvk, err := o.registry.Root(apiVersion, kind)
	if err != nil {
		return nil, err
	}
	if err := mapper.New(o.table, o.log).MapInto(ctx, obj, doc); err != nil {
		return nil, err
	}

	accessor, err := meta.Accessor(obj)
	if err != nil {
		return nil, apperrors.UnsupportedKind("kind %s has no object metadata: %v", kind, err)
	}

	copied, err := document.Clone(doc)
	if err != nil {
		return nil, err
	}

	o.log.Debugf(ctx, "Mapped %s %s as %s", kind, describeName(accessor), gvk)
	return &Manifest{
		kind:       kind,
		apiVersion: apiVersion,
		gvk:        gvk,
		object:     obj,
		metadata:   accessor,
		document:   copied.(map[string]interface{}),
	}, nil
}

// Parse is a shortcut for document.Parse followed by New.
func Parse(ctx context.Context, source string, opts ...Option) (*Manifest, error) {
	node, err := document.Parse(source)
	if err != nil {
		return nil, err
	}
	return New(ctx, node, opts...)
}

// ParseAll builds one Manifest per document of a multi-document stream.
// It stops at the first document that fails.
func ParseAll(ctx context.Context, source string, opts ...Option) ([]*Manifest, error) {
	nodes, err := document.ParseAll(source)
	if err != nil {
		return nil, err
	}
	manifests := make([]*Manifest, 0, len(nodes))
	for i, node := range nodes {
		m, err := New(ctx, node, opts...)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// Kind returns the declared kind.
func (m *Manifest) Kind() string {
	return m.kind
}

// APIVersion returns the declared apiVersion, which may be empty.
func (m *Manifest) APIVersion() string {
	return m.apiVersion
}

// GroupVersionKind returns the registered type the object was instantiated from.
// Its version can differ from APIVersion when the declared one is unknown.
func (m *Manifest) GroupVersionKind() k8sschema.GroupVersionKind {
	return m.gvk
}

// Metadata returns the mapped object metadata.
func (m *Manifest) Metadata() metav1.Object {
	return m.metadata
}

// Name returns metadata.name.
func (m *Manifest) Name() string {
	return m.metadata.GetName()
}

// Namespace returns metadata.namespace, empty when not set.
func (m *Manifest) Namespace() string {
	return m.metadata.GetNamespace()
}

// Object returns the typed object. Callers must not modify it.
func (m *Manifest) Object() runtime.Object {
	return m.object
}

// Document returns a copy of the original parsed document.
func (m *Manifest) Document() (map[string]interface{}, error) {
	copied, err := document.Clone(m.document)
	if err != nil {
		return nil, err
	}
	return copied.(map[string]interface{}), nil
}

// Serialize renders the original document, not the typed object, as YAML.
func (m *Manifest) Serialize() (string, error) {
	return document.Serialize(m.document)
}

// String renders the typed object as YAML, the form sent to the API server.
func (m *Manifest) String() string {
	out, err := yaml.Marshal(m.object)
	if err != nil {
		return fmt.Sprintf("<%s %s: %v>", m.kind, describeName(m.metadata), err)
	}
	return string(out)
}

func describeName(obj metav1.Object) string {
	if obj.GetNamespace() == "" {
		return obj.GetName()
	}
	return obj.GetNamespace() + "/" + obj.GetName()
}
