// Package mapper converts generic document trees into typed Kubernetes objects.
package mapper

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/k8stag/k8stag/internal/schema"
	apperrors "github.com/k8stag/k8stag/pkg/errors"
	"github.com/k8stag/k8stag/pkg/logger"
	"github.com/spf13/cast"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/json"
)

// Mapper walks a document tree against the descriptors of a schema table.
// It holds no per-call state and is safe for concurrent use.
type Mapper struct {
	table *schema.Table
	log   logger.Logger
}

// New creates a Mapper. A nil table gets an empty one and a nil logger discards output.
func New(table *schema.Table, log logger.Logger) *Mapper {
	if table == nil {
		table = schema.NewTable()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Mapper{table: table, log: log}
}

// Map converts node to a value of desc.Type. A nil node yields the zero value.
func (m *Mapper) Map(ctx context.Context, desc schema.Descriptor, node interface{}) (reflect.Value, error) {
	return m.mapNode(ctx, desc, node, "")
}

// MapInto maps node onto the record obj points to, keeping fields the
// document does not mention.
func (m *Mapper) MapInto(ctx context.Context, obj interface{}, node interface{}) error {
	rv := reflect.ValueOf(obj)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return apperrors.InvalidInput("map target must be a non-nil pointer to a struct, got %T", obj)
	}
	if node == nil {
		return nil
	}
	return m.mapRecord(ctx, schema.Describe(rv.Type()), rv.Elem(), node, "")
}

func (m *Mapper) mapNode(ctx context.Context, desc schema.Descriptor, node interface{}, path string) (reflect.Value, error) {
	if node == nil {
		return reflect.Zero(desc.Type), nil
	}

	base := schema.Base(desc.Type)
	var (
		v   reflect.Value
		err error
	)
	switch desc.Kind {
	case schema.Timestamp:
		var ok bool
		if v, ok = m.mapTimestamp(ctx, base, node, path); !ok && desc.IsPointer() {
			return reflect.Zero(desc.Type), nil
		}
	case schema.Opaque:
		v, err = mapOpaque(base, node, path)
	case schema.Sequence:
		v, err = m.mapSequence(ctx, desc, node, path)
	case schema.Map:
		v, err = m.mapMap(ctx, desc, node, path)
	case schema.Record:
		v = reflect.New(base).Elem()
		err = m.mapRecord(ctx, desc, v, node, path)
	default:
		v, err = mapScalar(base, node, path)
	}
	if err != nil {
		return reflect.Value{}, err
	}

	if desc.IsPointer() {
		ptr := reflect.New(base)
		ptr.Elem().Set(v)
		return ptr, nil
	}
	return v, nil
}

// mapRecord assigns every field of node into target. Keys are visited in
// sorted order so the first error reported is deterministic.
func (m *Mapper) mapRecord(ctx context.Context, desc schema.Descriptor, target reflect.Value, node interface{}, path string) error {
	fields, ok := node.(map[string]interface{})
	if !ok {
		return apperrors.FieldType("%s: expected a mapping for %s, got %s", displayPath(path), desc.Name, describeNode(node))
	}

	m.log.Debugf(ctx, "Mapping %s at %s (%d fields)", desc.Name, displayPath(path), len(fields))

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fieldPath := joinPath(path, key)
		rule, err := m.table.Field(desc, key)
		if err != nil {
			if ufe, ok := apperrors.AsUnknownFieldError(err); ok {
				ufe.Path = fieldPath
			}
			return err
		}

		v, err := m.mapNode(ctx, rule.Desc, fields[key], fieldPath)
		if err != nil {
			return err
		}
		target.FieldByIndex(rule.Index).Set(v)
	}
	return nil
}

// mapSequence maps each element with the element descriptor, in order. A bare
// string is split into tokens and any other scalar becomes a single element.
func (m *Mapper) mapSequence(ctx context.Context, desc schema.Descriptor, node interface{}, path string) (reflect.Value, error) {
	var items []interface{}
	switch n := node.(type) {
	case []interface{}:
		items = n
	case string:
		split := desc.Split
		if split == nil {
			split = schema.DefaultSplit
		}
		for _, token := range split(n) {
			items = append(items, token)
		}
		m.log.Debugf(ctx, "Split string at %s into %d elements", displayPath(path), len(items))
	case map[string]interface{}:
		return reflect.Value{}, apperrors.FieldType("%s: expected a sequence for %s, got a mapping", displayPath(path), desc.Name)
	default:
		items = []interface{}{n}
	}

	base := schema.Base(desc.Type)
	elem := desc.Elem()
	out := reflect.MakeSlice(base, len(items), len(items))
	for i, item := range items {
		v, err := m.mapNode(ctx, elem, item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(v)
	}
	return out, nil
}

// mapMap maps free-form maps entry by entry with the value descriptor. Keys
// are kept as they are.
func (m *Mapper) mapMap(ctx context.Context, desc schema.Descriptor, node interface{}, path string) (reflect.Value, error) {
	entries, ok := node.(map[string]interface{})
	if !ok {
		return reflect.Value{}, apperrors.FieldType("%s: expected a mapping for %s, got %s", displayPath(path), desc.Name, describeNode(node))
	}

	base := schema.Base(desc.Type)
	if base.Key().Kind() != reflect.String {
		return reflect.Value{}, apperrors.FieldType("%s: unsupported map key type %s", displayPath(path), base.Key())
	}

	elem := desc.Elem()
	out := reflect.MakeMapWithSize(base, len(entries))
	for k, item := range entries {
		v, err := m.mapNode(ctx, elem, item, joinPath(path, k))
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetMapIndex(reflect.ValueOf(k).Convert(base.Key()), v)
	}
	return out, nil
}

// mapTimestamp never fails: unparsable input leaves the zero time and ok false.
func (m *Mapper) mapTimestamp(ctx context.Context, base reflect.Type, node interface{}, path string) (out reflect.Value, ok bool) {
	out = reflect.New(base).Elem()
	t, err := cast.ToTimeE(node)
	if err != nil {
		m.log.Debugf(ctx, "Ignoring unparsable timestamp at %s: %v", displayPath(path), err)
		return out, false
	}
	switch base {
	case reflect.TypeOf(metav1.MicroTime{}):
		out.Set(reflect.ValueOf(metav1.NewMicroTime(t)))
	default:
		out.Set(reflect.ValueOf(metav1.NewTime(t)))
	}
	return out, true
}

// mapOpaque lets the target decode itself from the JSON form of node.
func mapOpaque(base reflect.Type, node interface{}, path string) (reflect.Value, error) {
	raw, err := json.Marshal(node)
	if err != nil {
		return reflect.Value{}, apperrors.FieldType("%s: cannot encode %s: %v", displayPath(path), describeNode(node), err)
	}
	ptr := reflect.New(base)
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return reflect.Value{}, apperrors.FieldType("%s: invalid %s: %v", displayPath(path), base, err)
	}
	return ptr.Elem(), nil
}

func mapScalar(base reflect.Type, node interface{}, path string) (reflect.Value, error) {
	switch node.(type) {
	case map[string]interface{}, []interface{}:
		return reflect.Value{}, apperrors.FieldType("%s: expected %s, got %s", displayPath(path), base, describeNode(node))
	}

	out := reflect.New(base).Elem()
	switch base.Kind() {
	case reflect.String:
		s, err := cast.ToStringE(node)
		if err != nil {
			return reflect.Value{}, fieldTypeError(path, base, node, err)
		}
		out.SetString(s)
	case reflect.Bool:
		b, err := cast.ToBoolE(node)
		if err != nil {
			return reflect.Value{}, fieldTypeError(path, base, node, err)
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if err := checkIntegral(node); err != nil {
			return reflect.Value{}, fieldTypeError(path, base, node, err)
		}
		i, err := cast.ToInt64E(node)
		if err != nil {
			return reflect.Value{}, fieldTypeError(path, base, node, err)
		}
		if out.OverflowInt(i) {
			return reflect.Value{}, fieldTypeError(path, base, node, fmt.Errorf("value overflows %s", base))
		}
		out.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if err := checkIntegral(node); err != nil {
			return reflect.Value{}, fieldTypeError(path, base, node, err)
		}
		u, err := cast.ToUint64E(node)
		if err != nil {
			return reflect.Value{}, fieldTypeError(path, base, node, err)
		}
		if out.OverflowUint(u) {
			return reflect.Value{}, fieldTypeError(path, base, node, fmt.Errorf("value overflows %s", base))
		}
		out.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(node)
		if err != nil {
			return reflect.Value{}, fieldTypeError(path, base, node, err)
		}
		if out.OverflowFloat(f) {
			return reflect.Value{}, fieldTypeError(path, base, node, fmt.Errorf("value overflows %s", base))
		}
		out.SetFloat(f)
	default:
		return reflect.Value{}, apperrors.FieldType("%s: unsupported field type %s", displayPath(path), base)
	}
	return out, nil
}

// checkIntegral rejects fractional numbers, which cast would truncate.
func checkIntegral(node interface{}) error {
	var f float64
	switch n := node.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("%v is not an integer", node)
	}
	return nil
}

func fieldTypeError(path string, base reflect.Type, node interface{}, err error) error {
	return apperrors.FieldType("%s: cannot use %v as %s: %v", displayPath(path), node, base, err)
}

func describeNode(node interface{}) string {
	switch node.(type) {
	case map[string]interface{}:
		return "a mapping"
	case []interface{}:
		return "a sequence"
	default:
		return fmt.Sprintf("%T", node)
	}
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}
