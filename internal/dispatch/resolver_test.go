package dispatch

import (
	"context"
	"testing"

	"github.com/k8stag/k8stag/internal/manifest"
	"github.com/k8stag/k8stag/pkg/constants"
	apperrors "github.com/k8stag/k8stag/pkg/errors"
	"github.com/k8stag/k8stag/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	autoscalingv1 "k8s.io/api/autoscaling/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

const cronJobYAML = `
apiVersion: batch/v1
kind: CronJob
metadata:
  name: n
  namespace: ns
spec:
  schedule: "* * * * *"
  jobTemplate:
    spec:
      template:
        spec:
          restartPolicy: OnFailure
          containers:
            - name: c
              image: busybox
              args: ["-l"]
`

func mustManifest(t *testing.T, source string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Parse(context.Background(), source)
	require.NoError(t, err)
	return m
}

// fakeResource lets tests pair any kind and apiVersion with any object
type fakeResource struct {
	kind, apiVersion, name, namespace string
	obj                               runtime.Object
}

func (f fakeResource) Kind() string           { return f.kind }
func (f fakeResource) APIVersion() string     { return f.apiVersion }
func (f fakeResource) Name() string           { return f.name }
func (f fakeResource) Namespace() string      { return f.namespace }
func (f fakeResource) Object() runtime.Object { return f.obj }

func TestResolveExplicitBindings(t *testing.T) {
	tests := []struct {
		name         string
		source       string
		verb         string
		expectedOp   string
		expectedArgs []interface{}
		scope        Scope
	}{
		{
			name:         "create_namespace_is_cluster_scoped",
			source:       "apiVersion: v1\nkind: Namespace\nmetadata:\n  name: team-a",
			verb:         constants.VerbCreate,
			expectedOp:   "createNamespace",
			scope:        ClusterScoped,
			expectedArgs: nil,
		},
		{
			name:         "delete_namespace",
			source:       "apiVersion: v1\nkind: Namespace\nmetadata:\n  name: team-a",
			verb:         constants.VerbDelete,
			expectedOp:   "deleteNamespace",
			scope:        ClusterScoped,
			expectedArgs: []interface{}{"team-a"},
		},
		{
			name:         "delete_cron_job_name_then_namespace",
			source:       cronJobYAML,
			verb:         constants.VerbDelete,
			expectedOp:   "deleteNamespacedCronJob",
			scope:        Namespaced,
			expectedArgs: []interface{}{"n", "ns"},
		},
		{
			name:         "delete_persistent_volume",
			source:       "apiVersion: v1\nkind: PersistentVolume\nmetadata:\n  name: pv0",
			verb:         constants.VerbDelete,
			expectedOp:   "deletePersistentVolume",
			scope:        ClusterScoped,
			expectedArgs: []interface{}{"pv0"},
		},
		{
			name:         "delete_pod_defaults_namespace",
			source:       "apiVersion: v1\nkind: Pod\nmetadata:\n  name: p",
			verb:         constants.VerbDelete,
			expectedOp:   "deleteNamespacedPod",
			scope:        Namespaced,
			expectedArgs: []interface{}{"p", "default"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(fake.NewSimpleClientset(), logger.NewTestLogger())
			b, err := r.Resolve(context.Background(), tt.verb, mustManifest(t, tt.source))
			require.NoError(t, err)

			assert.Equal(t, tt.expectedOp, b.Operation)
			assert.Equal(t, constants.StrategyExplicit, b.Strategy)
			assert.Equal(t, tt.scope, b.Scope)
			if tt.expectedArgs != nil {
				assert.Equal(t, tt.expectedArgs, b.Args)
			}
		})
	}
}

func TestResolveNamespaceCreateBindsObjectOnly(t *testing.T) {
	m := mustManifest(t, "apiVersion: v1\nkind: Namespace\nmetadata:\n  name: team-a")

	b, err := NewResolver(fake.NewSimpleClientset(), nil).Resolve(context.Background(), constants.VerbCreate, m)
	require.NoError(t, err)

	assert.Equal(t, "createNamespace", b.Operation)
	require.Len(t, b.Args, 1)
	assert.Same(t, m.Object(), b.Args[0])
	assert.Equal(t, "createNamespace(Namespace)", b.String())
}

func TestResolveCronJobCreate(t *testing.T) {
	m := mustManifest(t, cronJobYAML)

	b, err := NewResolver(fake.NewSimpleClientset(), nil).Resolve(context.Background(), constants.VerbCreate, m)
	require.NoError(t, err)

	assert.Equal(t, "createNamespacedCronJob", b.Operation)
	require.Len(t, b.Args, 2)
	assert.Equal(t, "ns", b.Args[0])
	assert.Same(t, m.Object(), b.Args[1])
	assert.Equal(t, "createNamespacedCronJob(ns, CronJob)", b.String())
}

func TestResolveUnsupportedAPIVersion(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	m := mustManifest(t, "apiVersion: foo/v9\nkind: Namespace\nmetadata:\n  name: x")

	_, err := NewResolver(clientset, nil).Resolve(context.Background(), constants.VerbCreate, m)
	require.Error(t, err)
	assert.True(t, apperrors.IsUnsupportedAPIVersion(err), "got %v", err)
	assert.Empty(t, clientset.Actions())
}

func TestResolveAPIVersionIsCaseInsensitive(t *testing.T) {
	res := fakeResource{kind: "ConfigMap", apiVersion: "V1", name: "c", obj: &corev1.ConfigMap{}}

	b, err := NewResolver(fake.NewSimpleClientset(), nil).Resolve(context.Background(), constants.VerbCreate, res)
	require.NoError(t, err)
	assert.Equal(t, "createNamespacedConfigMap", b.Operation)
}

func TestResolveUnsupportedKind(t *testing.T) {
	tests := []struct {
		name string
		res  Resource
	}{
		{
			name: "kind_served_by_another_group",
			res:  mustManifest(t, "apiVersion: v1\nkind: Deployment\nmetadata:\n  name: d"),
		},
		{
			name: "kind_nobody_serves",
			res:  fakeResource{kind: "Widget", apiVersion: "apps/v1", name: "w", obj: &corev1.ConfigMap{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clientset := fake.NewSimpleClientset()
			_, err := NewResolver(clientset, nil).Resolve(context.Background(), constants.VerbCreate, tt.res)
			require.Error(t, err)
			assert.True(t, apperrors.IsUnsupportedKind(err), "got %v", err)
			assert.Empty(t, clientset.Actions())
		})
	}
}

func TestResolveInvalidVerb(t *testing.T) {
	_, err := NewResolver(fake.NewSimpleClientset(), nil).Resolve(context.Background(), "patch", mustManifest(t, cronJobYAML))
	assert.True(t, apperrors.IsInvalidInput(err))

	_, err = NewResolver(nil, nil).Resolve(context.Background(), constants.VerbCreate, mustManifest(t, cronJobYAML))
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestInvokeExplicitCreateAndDelete(t *testing.T) {
	ctx := context.Background()
	clientset := fake.NewSimpleClientset()
	r := NewResolver(clientset, nil)
	m := mustManifest(t, cronJobYAML)

	create, err := r.Resolve(ctx, constants.VerbCreate, m)
	require.NoError(t, err)
	created, err := create.Invoke(ctx)
	require.NoError(t, err)
	require.NotNil(t, created)

	got, err := clientset.BatchV1().CronJobs("ns").Get(ctx, "n", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "* * * * *", got.Spec.Schedule)

	del, err := r.Resolve(ctx, constants.VerbDelete, m)
	require.NoError(t, err)
	deleted, err := del.Invoke(ctx)
	require.NoError(t, err)
	assert.Nil(t, deleted)

	_, err = clientset.BatchV1().CronJobs("ns").Get(ctx, "n", metav1.GetOptions{})
	assert.True(t, apierrors.IsNotFound(err))
}

func TestInvokeDefaultNamespace(t *testing.T) {
	ctx := context.Background()
	clientset := fake.NewSimpleClientset()
	m := mustManifest(t, "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: settings\ndata:\n  mode: fast")

	b, err := NewResolver(clientset, nil).Resolve(ctx, constants.VerbCreate, m)
	require.NoError(t, err)
	_, err = b.Invoke(ctx)
	require.NoError(t, err)

	got, err := clientset.CoreV1().ConfigMaps(constants.DefaultNamespace).Get(ctx, "settings", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "fast", got.Data["mode"])
}

func TestInvokeRemoteErrorsPassThrough(t *testing.T) {
	ctx := context.Background()
	clientset := fake.NewSimpleClientset()
	r := NewResolver(clientset, nil)
	m := mustManifest(t, "apiVersion: v1\nkind: Namespace\nmetadata:\n  name: team-a")

	b, err := r.Resolve(ctx, constants.VerbCreate, m)
	require.NoError(t, err)
	_, err = b.Invoke(ctx)
	require.NoError(t, err)

	_, err = b.Invoke(ctx)
	require.Error(t, err)
	assert.True(t, apierrors.IsAlreadyExists(err), "got %v", err)
	var coded apperrors.Coded
	assert.NotErrorAs(t, err, &coded)

	del, err := r.Resolve(ctx, constants.VerbDelete, mustManifest(t, "apiVersion: v1\nkind: Namespace\nmetadata:\n  name: missing"))
	require.NoError(t, err)
	_, err = del.Invoke(ctx)
	assert.True(t, apierrors.IsNotFound(err), "got %v", err)
}

func TestInvokeConventionNamespaced(t *testing.T) {
	ctx := context.Background()
	clientset := fake.NewSimpleClientset()
	r := NewResolver(clientset, nil)
	m := mustManifest(t, `
apiVersion: v1
kind: LimitRange
metadata:
  name: limits
  namespace: team-a
spec:
  limits:
    - type: Container
      default:
        cpu: 500m
`)

	create, err := r.Resolve(ctx, constants.VerbCreate, m)
	require.NoError(t, err)
	assert.Equal(t, constants.StrategyConvention, create.Strategy)
	assert.Equal(t, "createNamespacedLimitRange", create.Operation)
	assert.Equal(t, []interface{}{"team-a", m.Object()}, create.Args)

	created, err := create.Invoke(ctx)
	require.NoError(t, err)
	assert.IsType(t, &corev1.LimitRange{}, created)

	got, err := clientset.CoreV1().LimitRanges("team-a").Get(ctx, "limits", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, corev1.LimitTypeContainer, got.Spec.Limits[0].Type)

	del, err := r.Resolve(ctx, constants.VerbDelete, m)
	require.NoError(t, err)
	assert.Equal(t, "deleteNamespacedLimitRange", del.Operation)
	assert.Equal(t, []interface{}{"limits", "team-a"}, del.Args)
	_, err = del.Invoke(ctx)
	require.NoError(t, err)

	_, err = clientset.CoreV1().LimitRanges("team-a").Get(ctx, "limits", metav1.GetOptions{})
	assert.True(t, apierrors.IsNotFound(err))
}

func TestInvokeConventionClusterScoped(t *testing.T) {
	ctx := context.Background()
	clientset := fake.NewSimpleClientset()
	r := NewResolver(clientset, nil)
	m := mustManifest(t, "apiVersion: node.k8s.io/v1\nkind: RuntimeClass\nmetadata:\n  name: gvisor\nhandler: runsc")

	create, err := r.Resolve(ctx, constants.VerbCreate, m)
	require.NoError(t, err)
	assert.Equal(t, constants.StrategyConvention, create.Strategy)
	assert.Equal(t, "createRuntimeClass", create.Operation)
	assert.Equal(t, ClusterScoped, create.Scope)
	require.Len(t, create.Args, 1)

	_, err = create.Invoke(ctx)
	require.NoError(t, err)

	got, err := clientset.NodeV1().RuntimeClasses().Get(ctx, "gvisor", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "runsc", got.Handler)
}

func TestInvokeAutoscalingVersions(t *testing.T) {
	ctx := context.Background()
	clientset := fake.NewSimpleClientset()
	r := NewResolver(clientset, nil)

	v2 := mustManifest(t, "apiVersion: autoscaling/v2\nkind: HorizontalPodAutoscaler\nmetadata:\n  name: web\nspec:\n  maxReplicas: 5\n  scaleTargetRef:\n    kind: Deployment\n    name: web")
	require.IsType(t, &autoscalingv2.HorizontalPodAutoscaler{}, v2.Object())
	b, err := r.Resolve(ctx, constants.VerbCreate, v2)
	require.NoError(t, err)
	assert.Equal(t, constants.StrategyExplicit, b.Strategy)
	_, err = b.Invoke(ctx)
	require.NoError(t, err)

	v1 := mustManifest(t, "apiVersion: autoscaling/v1\nkind: HorizontalPodAutoscaler\nmetadata:\n  name: api\nspec:\n  maxReplicas: 3\n  scaleTargetRef:\n    kind: Deployment\n    name: api")
	require.IsType(t, &autoscalingv1.HorizontalPodAutoscaler{}, v1.Object())
	b, err = r.Resolve(ctx, constants.VerbCreate, v1)
	require.NoError(t, err)
	assert.Equal(t, constants.StrategyExplicit, b.Strategy)
	_, err = b.Invoke(ctx)
	require.NoError(t, err)

	got, err := clientset.AutoscalingV1().HorizontalPodAutoscalers("default").Get(ctx, "api", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), got.Spec.MaxReplicas)
}

func TestInvokeObjectMismatch(t *testing.T) {
	res := fakeResource{kind: "Pod", apiVersion: "v1", name: "p", obj: &corev1.ConfigMap{}}

	b, err := NewResolver(fake.NewSimpleClientset(), nil).Resolve(context.Background(), constants.VerbCreate, res)
	require.NoError(t, err)
	_, err = b.Invoke(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "*v1.Pod")
}

func TestDryRunOptions(t *testing.T) {
	ctx := context.Background()
	clientset := fake.NewSimpleClientset()

	var createDryRun, deleteDryRun []string
	clientset.PrependReactor("create", "configmaps", func(action k8stesting.Action) (bool, runtime.Object, error) {
		if a, ok := action.(interface{ GetCreateOptions() metav1.CreateOptions }); ok {
			createDryRun = a.GetCreateOptions().DryRun
		}
		return true, &corev1.ConfigMap{}, nil
	})
	clientset.PrependReactor("delete", "configmaps", func(action k8stesting.Action) (bool, runtime.Object, error) {
		if a, ok := action.(interface{ GetDeleteOptions() metav1.DeleteOptions }); ok {
			deleteDryRun = a.GetDeleteOptions().DryRun
		}
		return true, nil, nil
	})

	r := NewResolver(clientset, nil, WithDryRun(true))
	m := mustManifest(t, "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: c")

	create, err := r.Resolve(ctx, constants.VerbCreate, m)
	require.NoError(t, err)
	_, err = create.Invoke(ctx)
	require.NoError(t, err)

	del, err := r.Resolve(ctx, constants.VerbDelete, m)
	require.NoError(t, err)
	_, err = del.Invoke(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{metav1.DryRunAll}, createDryRun)
	assert.Equal(t, []string{metav1.DryRunAll}, deleteDryRun)
}

func TestResolveLogsStrategy(t *testing.T) {
	log, capture := logger.NewCaptureLogger()
	_, err := NewResolver(fake.NewSimpleClientset(), log).Resolve(context.Background(), constants.VerbCreate, mustManifest(t, cronJobYAML))
	require.NoError(t, err)

	assert.True(t, capture.Contains("Using explicit strategy for CronJob ns/n: createNamespacedCronJob(ns, CronJob)"), capture.Messages())
	assert.True(t, capture.Contains("operation=createNamespacedCronJob"), capture.Messages())
}

func TestBoundAPIVersions(t *testing.T) {
	versions := BoundAPIVersions()
	assert.Contains(t, versions, "v1")
	assert.Contains(t, versions, "batch/v1")
	assert.Contains(t, versions, "rbac.authorization.k8s.io/v1")
	assert.NotContains(t, versions, "foo/v9")
}
