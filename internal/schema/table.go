package schema

import (
	"reflect"
	"strings"
	"sync"

	apperrors "github.com/k8stag/k8stag/pkg/errors"
)

// Key selects a rule. An empty Parent applies to the field under any record.
type Key struct {
	Parent string
	Field  string
}

// FieldRule says where a document field lands in its enclosing record.
type FieldRule struct {
	// Name is the document (json) field name.
	Name string
	// Index is the reflect field index path, through inlined structs.
	Index []int
	Desc  Descriptor
}

// RuleFunc adjusts the rule derived from the Go type, e.g. to install a
// different splitter for one field.
type RuleFunc func(FieldRule) FieldRule

// Table resolves (record type, field name) pairs to field rules.
// It is safe for concurrent use.
type Table struct {
	mu     sync.RWMutex
	fields map[reflect.Type]map[string]FieldRule
	rules  map[Key]RuleFunc
}

// NewTable returns a table with no rules registered.
func NewTable() *Table {
	return &Table{
		fields: make(map[reflect.Type]map[string]FieldRule),
		rules:  make(map[Key]RuleFunc),
	}
}

// Rule registers fn for key, replacing any rule already there.
func (t *Table) Rule(key Key, fn RuleFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rules[key] = fn
}

// Field resolves field under parent. A rule registered for the parent type
// wins over one registered for the bare field name. A field the record does
// not declare is an UnknownFieldError.
func (t *Table) Field(parent Descriptor, field string) (FieldRule, error) {
	if parent.Kind != Record {
		return FieldRule{}, apperrors.NewUnknownFieldError(field, parent.Name, "")
	}

	rule, ok := t.structFields(Base(parent.Type))[field]
	if !ok {
		return FieldRule{}, apperrors.NewUnknownFieldError(field, parent.Name, "")
	}

	t.mu.RLock()
	fn, ok := t.rules[Key{Parent: parent.Name, Field: field}]
	if !ok {
		fn, ok = t.rules[Key{Field: field}]
	}
	t.mu.RUnlock()
	if ok {
		rule = fn(rule)
	}
	return rule, nil
}

// Fields lists the document field names a record declares.
func (t *Table) Fields(parent Descriptor) []string {
	if parent.Kind != Record {
		return nil
	}
	fields := t.structFields(Base(parent.Type))
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	return names
}

func (t *Table) structFields(st reflect.Type) map[string]FieldRule {
	t.mu.RLock()
	fields, ok := t.fields[st]
	t.mu.RUnlock()
	if ok {
		return fields
	}

	fields = make(map[string]FieldRule)
	collectFields(st, nil, fields)

	t.mu.Lock()
	t.fields[st] = fields
	t.mu.Unlock()
	return fields
}

// collectFields walks the exported fields of st by their json names.
// Anonymous structs without a json name (TypeMeta) are inlined.
func collectFields(st reflect.Type, prefix []int, out map[string]FieldRule) {
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}

		index := make([]int, len(prefix)+1)
		copy(index, prefix)
		index[len(prefix)] = i

		if name == "" && f.Anonymous && f.Type.Kind() == reflect.Struct {
			collectFields(f.Type, index, out)
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		if existing, exists := out[name]; exists && len(existing.Index) <= len(index) {
			// shallower fields shadow inlined ones
			continue
		}
		out[name] = FieldRule{Name: name, Index: index, Desc: Describe(f.Type)}
	}
}
