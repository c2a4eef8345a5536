// Package schema describes the Go type surface of Kubernetes API objects so the
// mapper can walk a generic document tree against it.
package schema

import (
	"encoding/json"
	"reflect"
	"strings"
	"unicode"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Kind discriminates how a document node is converted to a typed value.
type Kind int

const (
	// Scalar is a string, bool or number field.
	Scalar Kind = iota
	// Timestamp is a metav1.Time or metav1.MicroTime field.
	Timestamp
	// Opaque is a type that knows how to decode itself from JSON
	// (resource.Quantity, intstr.IntOrString, runtime.RawExtension, []byte).
	Opaque
	// Sequence is a slice whose elements are mapped one by one.
	Sequence
	// Map is a free-form string-keyed map (labels, annotations, data).
	Map
	// Record is a struct with declared fields.
	Record
)

var kindNames = map[Kind]string{
	Scalar:    "scalar",
	Timestamp: "timestamp",
	Opaque:    "opaque",
	Sequence:  "sequence",
	Map:       "map",
	Record:    "record",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// SplitFunc tokenizes a bare string supplied where a sequence was declared.
type SplitFunc func(string) []string

// Descriptor identifies the target type of one node.
type Descriptor struct {
	Kind Kind
	// Type is the Go type the node maps to. It may be a pointer, in which
	// case the mapper allocates the pointee.
	Type reflect.Type
	// Name is the identity tag of the target: the Go type name for records
	// ("Container", "PodSpec", "ObjectMeta"), the type string otherwise.
	Name string
	// Split applies to sequences only.
	Split SplitFunc
}

var (
	timeType         = reflect.TypeOf(metav1.Time{})
	microTimeType    = reflect.TypeOf(metav1.MicroTime{})
	jsonUnmarshaler  = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
	defaultSplitFunc = SplitFunc(DefaultSplit)
)

// Describe derives the descriptor of a Go type.
func Describe(t reflect.Type) Descriptor {
	base := Base(t)
	d := Descriptor{Type: t, Name: base.String()}

	switch {
	case base == timeType || base == microTimeType:
		d.Kind = Timestamp
	case reflect.PointerTo(base).Implements(jsonUnmarshaler):
		d.Kind = Opaque
	case base.Kind() == reflect.Slice && base.Elem().Kind() == reflect.Uint8:
		d.Kind = Opaque
	case base.Kind() == reflect.Slice:
		d.Kind = Sequence
		d.Split = defaultSplitFunc
	case base.Kind() == reflect.Map:
		d.Kind = Map
	case base.Kind() == reflect.Struct:
		d.Kind = Record
		d.Name = base.Name()
	case base.Kind() == reflect.Interface:
		d.Kind = Opaque
	default:
		d.Kind = Scalar
	}
	return d
}

// Base strips one level of pointer.
func Base(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

// Elem returns the descriptor of a sequence element or a map value.
func (d Descriptor) Elem() Descriptor {
	return Describe(Base(d.Type).Elem())
}

// IsPointer reports whether the mapper must allocate the value.
func (d Descriptor) IsPointer() bool {
	return d.Type.Kind() == reflect.Pointer
}

// DefaultSplit strips surrounding brackets and splits on commas when the
// string has any, otherwise on whitespace. Empty tokens are dropped.
func DefaultSplit(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	var parts []string
	if strings.Contains(s, ",") {
		parts = strings.Split(s, ",")
	} else {
		parts = strings.FieldsFunc(s, unicode.IsSpace)
	}

	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}
