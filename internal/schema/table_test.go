package schema

import (
	"reflect"
	"sort"
	"strings"
	"testing"

	apperrors "github.com/k8stag/k8stag/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
)

func TestTableField(t *testing.T) {
	table := NewTable()
	pod := Describe(reflect.TypeOf(&corev1.Pod{}))
	container := Describe(reflect.TypeOf(corev1.Container{}))
	service := Describe(reflect.TypeOf(&corev1.Service{}))

	tests := []struct {
		name         string
		parent       Descriptor
		field        string
		expectedKind Kind
		expectedName string
		expectedLen  int
	}{
		{name: "inline_type_meta_kind", parent: pod, field: "kind", expectedKind: Scalar, expectedName: "string", expectedLen: 2},
		{name: "inline_type_meta_api_version", parent: pod, field: "apiVersion", expectedKind: Scalar, expectedName: "string", expectedLen: 2},
		{name: "metadata", parent: pod, field: "metadata", expectedKind: Record, expectedName: "ObjectMeta", expectedLen: 1},
		{name: "pod_spec", parent: pod, field: "spec", expectedKind: Record, expectedName: "PodSpec", expectedLen: 1},
		{name: "service_status", parent: service, field: "status", expectedKind: Record, expectedName: "ServiceStatus", expectedLen: 1},
		{name: "pod_status", parent: pod, field: "status", expectedKind: Record, expectedName: "PodStatus", expectedLen: 1},
		{name: "container_args", parent: container, field: "args", expectedKind: Sequence, expectedName: "[]string", expectedLen: 1},
		{name: "container_env_from", parent: container, field: "envFrom", expectedKind: Sequence, expectedName: "[]v1.EnvFromSource", expectedLen: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := table.Field(tt.parent, tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.field, rule.Name)
			assert.Equal(t, tt.expectedKind, rule.Desc.Kind)
			assert.Equal(t, tt.expectedName, rule.Desc.Name)
			assert.Len(t, rule.Index, tt.expectedLen)
		})
	}
}

func TestTableFieldUnknown(t *testing.T) {
	table := NewTable()
	container := Describe(reflect.TypeOf(corev1.Container{}))

	_, err := table.Field(container, "imagePullSecret")
	require.Error(t, err)
	assert.True(t, apperrors.IsUnknownField(err))

	ufe, ok := apperrors.AsUnknownFieldError(err)
	require.True(t, ok)
	assert.Equal(t, "imagePullSecret", ufe.Field)
	assert.Equal(t, "Container", ufe.Type)
}

func TestTableFieldOnNonRecord(t *testing.T) {
	table := NewTable()
	labels := Describe(reflect.TypeOf(map[string]string{}))

	_, err := table.Field(labels, "app")
	assert.True(t, apperrors.IsUnknownField(err))
}

func TestTableFieldSkipsIgnoredAndUnexported(t *testing.T) {
	type sample struct {
		Visible string `json:"visible"`
		Ignored string `json:"-"`
		hidden  string
	}
	table := NewTable()
	d := Describe(reflect.TypeOf(sample{}))

	_, err := table.Field(d, "visible")
	assert.NoError(t, err)

	for _, field := range []string{"-", "Ignored", "hidden"} {
		_, err := table.Field(d, field)
		assert.True(t, apperrors.IsUnknownField(err), "field %s", field)
	}
}

func TestTableFieldShadowing(t *testing.T) {
	type inner struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	type outer struct {
		inner `json:",inline"`
		Name  string `json:"name"`
	}

	table := NewTable()
	d := Describe(reflect.TypeOf(outer{}))

	name, err := table.Field(d, "name")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, name.Index)

	kind, err := table.Field(d, "kind")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, kind.Index)
}

func TestTableRules(t *testing.T) {
	commaOnly := func(s string) []string { return strings.Split(s, ",") }
	upper := func(s string) []string { return []string{strings.ToUpper(s)} }

	table := NewTable()
	table.Rule(Key{Field: "args"}, func(r FieldRule) FieldRule {
		r.Desc.Split = commaOnly
		return r
	})
	table.Rule(Key{Parent: "Container", Field: "command"}, func(r FieldRule) FieldRule {
		r.Desc.Split = upper
		return r
	})

	container := Describe(reflect.TypeOf(corev1.Container{}))
	ephemeral := Describe(reflect.TypeOf(corev1.EphemeralContainerCommon{}))

	args, err := table.Field(container, "args")
	require.NoError(t, err)
	assert.Equal(t, []string{"a b", "c"}, args.Desc.Split("a b,c"))

	command, err := table.Field(container, "command")
	require.NoError(t, err)
	assert.Equal(t, []string{"SH"}, command.Desc.Split("sh"))

	// the parent-specific rule does not leak to other records
	other, err := table.Field(ephemeral, "command")
	require.NoError(t, err)
	assert.Equal(t, []string{"sh", "-c"}, other.Desc.Split("sh -c"))
}

func TestTableRuleParentWinsOverGeneric(t *testing.T) {
	table := NewTable()
	table.Rule(Key{Field: "args"}, func(r FieldRule) FieldRule {
		r.Desc.Name = "generic"
		return r
	})
	table.Rule(Key{Parent: "Container", Field: "args"}, func(r FieldRule) FieldRule {
		r.Desc.Name = "container"
		return r
	})

	rule, err := table.Field(Describe(reflect.TypeOf(corev1.Container{})), "args")
	require.NoError(t, err)
	assert.Equal(t, "container", rule.Desc.Name)
}

func TestTableFields(t *testing.T) {
	table := NewTable()
	names := table.Fields(Describe(reflect.TypeOf(&batchv1.CronJob{})))
	sort.Strings(names)
	assert.Equal(t, []string{"apiVersion", "kind", "metadata", "spec", "status"}, names)

	assert.Nil(t, table.Fields(Describe(reflect.TypeOf(""))))
}
