package dispatch

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var (
	contextType       = reflect.TypeOf((*context.Context)(nil)).Elem()
	stringType        = reflect.TypeOf("")
	errorType         = reflect.TypeOf((*error)(nil)).Elem()
	createOptionsType = reflect.TypeOf(metav1.CreateOptions{})
	deleteOptionsType = reflect.TypeOf(metav1.DeleteOptions{})
)

// accessor is a group client method returning the resource client for a
// kind, e.g. CoreV1Interface.LimitRanges(namespace).
type accessor struct {
	name   string
	method reflect.Value
	scope  Scope
}

// resource returns the resource client for namespace.
func (a accessor) resource(namespace string) reflect.Value {
	var args []reflect.Value
	if a.scope == Namespaced {
		args = []reflect.Value{reflect.ValueOf(namespace)}
	}
	out := a.method.Call(args)[0]
	if out.Kind() == reflect.Interface && !out.IsNil() {
		out = out.Elem()
	}
	return out
}

// accessorNames are the method names that may serve kind: the guessed
// plural resource name (LimitRange -> limitranges) and the kind itself.
func accessorNames(kind string) []string {
	plural, _ := meta.UnsafeGuessKindToResource(schema.GroupVersionKind{Kind: kind})
	return []string{plural.Resource, kind}
}

// findAccessor probes client for a method serving kind. A namespaced
// accessor is looked for before a cluster-scoped one.
func findAccessor(client interface{}, kind string) (accessor, bool) {
	rv := reflect.ValueOf(client)
	if !rv.IsValid() {
		return accessor{}, false
	}
	rt := rv.Type()

	var cluster *accessor
	for _, candidate := range accessorNames(kind) {
		for i := 0; i < rt.NumMethod(); i++ {
			m := rt.Method(i)
			if !strings.EqualFold(m.Name, candidate) {
				continue
			}
			mt := rv.Method(i).Type()
			if mt.NumOut() != 1 {
				continue
			}
			switch {
			case mt.NumIn() == 1 && mt.In(0) == stringType:
				return accessor{name: m.Name, method: rv.Method(i), scope: Namespaced}, true
			case mt.NumIn() == 0 && cluster == nil:
				cluster = &accessor{name: m.Name, method: rv.Method(i), scope: ClusterScoped}
			}
		}
	}
	if cluster != nil {
		return *cluster, true
	}
	return accessor{}, false
}

// conventionOperations derives operations for kind from the group client's
// method set. The declared scope of kind, when there is one, must match the
// accessor found.
func conventionOperations(client interface{}, kind string) (operations, error) {
	acc, ok := findAccessor(client, kind)
	if !ok {
		return operations{}, fmt.Errorf("%T has no accessor for %s", client, kind)
	}
	if scope, declared := declaredScope(kind); declared && scope != acc.scope {
		return operations{}, fmt.Errorf("%T.%s is %s but %s is declared %s", client, acc.name, acc.scope, kind, scope)
	}

	probe := acc.resource(metav1.NamespaceDefault)
	create := probe.MethodByName("Create")
	if !create.IsValid() || !isCreate(create.Type()) {
		return operations{}, fmt.Errorf("%T.%s has no Create method", client, acc.name)
	}
	del := probe.MethodByName("Delete")
	if !del.IsValid() || !isDelete(del.Type()) {
		return operations{}, fmt.Errorf("%T.%s has no Delete method", client, acc.name)
	}
	objectType := create.Type().In(1)

	return operations{
		scope:   acc.scope,
		applies: func(interface{}) bool { return true },
		create: func(ctx context.Context, _ interface{}, namespace string, obj runtime.Object, opts metav1.CreateOptions) (runtime.Object, error) {
			objValue := reflect.ValueOf(obj)
			if !objValue.IsValid() || !objValue.Type().AssignableTo(objectType) {
				return nil, fmt.Errorf("object is %T, operation expects %s", obj, objectType)
			}
			out := acc.resource(namespace).MethodByName("Create").Call([]reflect.Value{
				reflect.ValueOf(ctx), objValue, reflect.ValueOf(opts),
			})
			if err, _ := out[1].Interface().(error); err != nil {
				return nil, err
			}
			created, _ := out[0].Interface().(runtime.Object)
			return created, nil
		},
		delete: func(ctx context.Context, _ interface{}, namespace, name string, opts metav1.DeleteOptions) error {
			out := acc.resource(namespace).MethodByName("Delete").Call([]reflect.Value{
				reflect.ValueOf(ctx), reflect.ValueOf(name), reflect.ValueOf(opts),
			})
			err, _ := out[0].Interface().(error)
			return err
		},
	}, nil
}

// isCreate matches Create(context.Context, T, metav1.CreateOptions) (T, error).
func isCreate(t reflect.Type) bool {
	return t.NumIn() == 3 && t.NumOut() == 2 &&
		t.In(0) == contextType &&
		t.In(2) == createOptionsType &&
		t.Out(0) == t.In(1) &&
		t.Out(1) == errorType
}

// isDelete matches Delete(context.Context, string, metav1.DeleteOptions) error.
func isDelete(t reflect.Type) bool {
	return t.NumIn() == 3 && t.NumOut() == 1 &&
		t.In(0) == contextType &&
		t.In(1) == stringType &&
		t.In(2) == deleteOptionsType &&
		t.Out(0) == errorType
}
