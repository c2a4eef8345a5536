// Package dispatch resolves a manifest and a verb to the typed client-go call
// that performs it.
//
// Resolution is two-tier. An explicit table maps well-known kinds to exact
// typed calls. Any other kind served by a bound group client is reached by
// convention: the client's accessor method for the kind's plural resource
// name is found by reflection and its Create or Delete method is called.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/k8stag/k8stag/pkg/constants"
	apperrors "github.com/k8stag/k8stag/pkg/errors"
	"github.com/k8stag/k8stag/pkg/logger"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
)

// Resource is what the resolver needs to know about a manifest.
type Resource interface {
	Kind() string
	APIVersion() string
	Name() string
	Namespace() string
	Object() runtime.Object
}

// Binding is a resolved operation with its arguments bound, ready to invoke.
type Binding struct {
	Verb       string
	Kind       string
	APIVersion string
	// Operation is the conventional name of the call, e.g. "createNamespacedCronJob"
	Operation string
	// Strategy is constants.StrategyExplicit or constants.StrategyConvention
	Strategy string
	Scope    Scope
	// Args are the positional arguments: (namespace, object) or (object) for
	// create, (name, namespace) or (name) for delete.
	Args []interface{}

	invoke func(ctx context.Context) (runtime.Object, error)
}

// Invoke performs the remote call. Delete returns a nil object.
// Errors from the API are returned unchanged.
func (b *Binding) Invoke(ctx context.Context) (runtime.Object, error) {
	return b.invoke(ctx)
}

// String renders the binding as a call, e.g. createNamespacedCronJob(ns, n).
func (b *Binding) String() string {
	args := make([]string, len(b.Args))
	for i, arg := range b.Args {
		if s, ok := arg.(string); ok {
			args[i] = s
			continue
		}
		args[i] = b.Kind
	}
	return fmt.Sprintf("%s(%s)", b.Operation, strings.Join(args, ", "))
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDryRun makes every bound call a server-side dry run.
func WithDryRun(dryRun bool) Option {
	return func(r *Resolver) { r.dryRun = dryRun }
}

// Resolver binds manifests to operations on a clientset.
type Resolver struct {
	clientset kubernetes.Interface
	log       logger.Logger
	dryRun    bool
}

// NewResolver creates a Resolver over clientset.
func NewResolver(clientset kubernetes.Interface, log logger.Logger, opts ...Option) *Resolver {
	if log == nil {
		log = logger.NewNopLogger()
	}
	r := &Resolver{clientset: clientset, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DryRun reports whether bound calls are server-side dry runs.
func (r *Resolver) DryRun() bool {
	return r.dryRun
}

// Resolve selects the group client for res's apiVersion and the operation
// for verb on res's kind. Nothing is sent to the API server.
func (r *Resolver) Resolve(ctx context.Context, verb string, res Resource) (*Binding, error) {
	if verb != constants.VerbCreate && verb != constants.VerbDelete {
		return nil, apperrors.InvalidInput("unknown verb %q", verb)
	}
	if r.clientset == nil {
		return nil, apperrors.InvalidInput("no clientset to dispatch %s %s", verb, res.Kind())
	}

	kind := res.Kind()
	client, ok := groupClient(r.clientset, res.APIVersion())
	if !ok {
		return nil, apperrors.UnsupportedAPIVersion("apiVersion %q is not bound to an API client", res.APIVersion())
	}

	ops, strategy, err := r.lookup(client, kind)
	if err != nil {
		return nil, apperrors.UnsupportedKind("no %s operation for kind %s in %s: %v", verb, kind, res.APIVersion(), err)
	}

	namespace := ""
	if ops.scope == Namespaced {
		namespace = res.Namespace()
		if namespace == "" {
			namespace = constants.DefaultNamespace
		}
	}

	b := &Binding{
		Verb:       verb,
		Kind:       kind,
		APIVersion: res.APIVersion(),
		Operation:  operationName(verb, kind, ops.scope),
		Strategy:   strategy,
		Scope:      ops.scope,
	}

	name := res.Name()
	obj := res.Object()
	switch verb {
	case constants.VerbCreate:
		opts := metav1.CreateOptions{}
		if r.dryRun {
			opts.DryRun = []string{metav1.DryRunAll}
		}
		if ops.scope == Namespaced {
			b.Args = []interface{}{namespace, obj}
		} else {
			b.Args = []interface{}{obj}
		}
		b.invoke = func(ctx context.Context) (runtime.Object, error) {
			return ops.create(ctx, client, namespace, obj, opts)
		}
	case constants.VerbDelete:
		opts := metav1.DeleteOptions{}
		if r.dryRun {
			opts.DryRun = []string{metav1.DryRunAll}
		}
		if ops.scope == Namespaced {
			b.Args = []interface{}{name, namespace}
		} else {
			b.Args = []interface{}{name}
		}
		b.invoke = func(ctx context.Context) (runtime.Object, error) {
			return nil, ops.delete(ctx, client, namespace, name, opts)
		}
	}

	ctx = logger.WithOperation(ctx, b.Operation)
	r.log.Infof(ctx, "Using %s strategy for %s %s: %s", strategy, kind, describeName(namespace, name), b)
	return b, nil
}

// lookup tries the explicit table first and falls back to the convention tier.
func (r *Resolver) lookup(client interface{}, kind string) (operations, string, error) {
	for _, ops := range explicitKinds[kind] {
		if ops.applies(client) {
			return ops, constants.StrategyExplicit, nil
		}
	}
	ops, err := conventionOperations(client, kind)
	if err != nil {
		return operations{}, "", err
	}
	return ops, constants.StrategyConvention, nil
}

// operationName follows the create<Kind> / createNamespaced<Kind> convention.
func operationName(verb, kind string, scope Scope) string {
	if scope == Namespaced {
		return verb + "Namespaced" + kind
	}
	return verb + kind
}

func describeName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "/" + name
}
