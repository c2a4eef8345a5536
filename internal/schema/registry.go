package schema

import (
	"math"
	"reflect"
	"sort"

	apperrors "github.com/k8stag/k8stag/pkg/errors"
	"k8s.io/apimachinery/pkg/runtime"
	k8sschema "k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client/apiutil"
)

// Registry instantiates root records for (apiVersion, kind) pairs.
type Registry struct {
	scheme *runtime.Scheme
}

// NewRegistry returns a registry over s.
func NewRegistry(s *runtime.Scheme) *Registry {
	return &Registry{scheme: s}
}

// DefaultRegistry resolves kinds against client-go's built-in scheme.
func DefaultRegistry() *Registry {
	return NewRegistry(scheme.Scheme)
}

// Scheme returns the underlying scheme.
func (r *Registry) Scheme() *runtime.Scheme {
	return r.scheme
}

// Root returns an empty typed object for kind, its descriptor, and the
// group/version/kind it was instantiated from.
//
// The declared apiVersion is preferred. When the scheme does not know it,
// any registered version of kind is used instead, so a manifest with an
// apiVersion no client serves can still be mapped and then rejected at dispatch.
func (r *Registry) Root(apiVersion, kind string) (runtime.Object, Descriptor, k8sschema.GroupVersionKind, error) {
	gvk, ok := r.resolve(apiVersion, kind)
	if !ok {
		return nil, Descriptor{}, k8sschema.GroupVersionKind{}, apperrors.UnsupportedKind("kind %s is not registered in any known API group", kind)
	}

	obj, err := r.scheme.New(gvk)
	if err != nil {
		return nil, Descriptor{}, k8sschema.GroupVersionKind{}, apperrors.UnsupportedKind("failed to instantiate %s: %v", gvk, err)
	}
	obj.GetObjectKind().SetGroupVersionKind(gvk)

	// the scheme may register a type under several versions; confirm which one we hold
	resolved, err := apiutil.GVKForObject(obj, r.scheme)
	if err != nil {
		return nil, Descriptor{}, k8sschema.GroupVersionKind{}, apperrors.UnsupportedKind("failed to identify %s: %v", gvk, err)
	}

	desc := Describe(reflect.TypeOf(obj))
	return obj, desc, resolved, nil
}

func (r *Registry) resolve(apiVersion, kind string) (k8sschema.GroupVersionKind, bool) {
	declared, err := k8sschema.ParseGroupVersion(apiVersion)
	if err == nil {
		gvk := declared.WithKind(kind)
		if r.scheme.Recognizes(gvk) {
			return gvk, true
		}
	}

	var candidates []k8sschema.GroupVersionKind
	for gvk := range r.scheme.AllKnownTypes() {
		if gvk.Kind == kind && gvk.Version != runtime.APIVersionInternal {
			candidates = append(candidates, gvk)
		}
	}
	if len(candidates) == 0 {
		return k8sschema.GroupVersionKind{}, false
	}

	rank := func(gvk k8sschema.GroupVersionKind) (int, int) {
		group := 2
		switch gvk.Group {
		case declared.Group:
			group = 0
		case "":
			group = 1
		}
		version := math.MaxInt
		for i, gv := range r.scheme.PrioritizedVersionsForGroup(gvk.Group) {
			if gv.Version == gvk.Version {
				version = i
				break
			}
		}
		return group, version
	}
	sort.Slice(candidates, func(i, j int) bool {
		gi, vi := rank(candidates[i])
		gj, vj := rank(candidates[j])
		if gi != gj {
			return gi < gj
		}
		if candidates[i].Group != candidates[j].Group {
			return candidates[i].Group < candidates[j].Group
		}
		if vi != vj {
			return vi < vj
		}
		return candidates[i].Version < candidates[j].Version
	})
	return candidates[0], true
}
