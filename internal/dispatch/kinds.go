package dispatch

import (
	"context"
	"fmt"

	admissionregistrationv1 "k8s.io/api/admissionregistration/v1"
	appsv1 "k8s.io/api/apps/v1"
	autoscalingv1 "k8s.io/api/autoscaling/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	policyv1 "k8s.io/api/policy/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	schedulingv1 "k8s.io/api/scheduling/v1"
	storagev1 "k8s.io/api/storage/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	typedadmissionregistrationv1 "k8s.io/client-go/kubernetes/typed/admissionregistration/v1"
	typedappsv1 "k8s.io/client-go/kubernetes/typed/apps/v1"
	typedautoscalingv1 "k8s.io/client-go/kubernetes/typed/autoscaling/v1"
	typedautoscalingv2 "k8s.io/client-go/kubernetes/typed/autoscaling/v2"
	typedbatchv1 "k8s.io/client-go/kubernetes/typed/batch/v1"
	typedcorev1 "k8s.io/client-go/kubernetes/typed/core/v1"
	typednetworkingv1 "k8s.io/client-go/kubernetes/typed/networking/v1"
	typedpolicyv1 "k8s.io/client-go/kubernetes/typed/policy/v1"
	typedrbacv1 "k8s.io/client-go/kubernetes/typed/rbac/v1"
	typedschedulingv1 "k8s.io/client-go/kubernetes/typed/scheduling/v1"
	typedstoragev1 "k8s.io/client-go/kubernetes/typed/storage/v1"
)

// Scope says whether a kind's operations take a namespace.
type Scope int

const (
	Namespaced Scope = iota
	ClusterScoped
)

func (s Scope) String() string {
	if s == ClusterScoped {
		return "cluster"
	}
	return "namespaced"
}

// resourceInterface is the subset of a typed client-go resource client used here.
type resourceInterface[T runtime.Object] interface {
	Create(ctx context.Context, obj T, opts metav1.CreateOptions) (T, error)
	Delete(ctx context.Context, name string, opts metav1.DeleteOptions) error
}

// operations are the create and delete calls for one kind on one group client.
type operations struct {
	scope Scope
	// applies reports whether client is the group client these operations need
	applies func(client interface{}) bool
	create  func(ctx context.Context, client interface{}, namespace string, obj runtime.Object, opts metav1.CreateOptions) (runtime.Object, error)
	delete  func(ctx context.Context, client interface{}, namespace, name string, opts metav1.DeleteOptions) error
}

// namespaced builds operations from a namespaced accessor method expression,
// e.g. (typedbatchv1.BatchV1Interface).CronJobs.
func namespaced[T runtime.Object, C any, R resourceInterface[T]](accessor func(C, string) R) operations {
	return operations{
		scope:   Namespaced,
		applies: isClient[C],
		create: func(ctx context.Context, client interface{}, namespace string, obj runtime.Object, opts metav1.CreateOptions) (runtime.Object, error) {
			typed, ok := obj.(T)
			if !ok {
				return nil, objectMismatch[T](obj)
			}
			out, err := accessor(client.(C), namespace).Create(ctx, typed, opts)
			if err != nil {
				return nil, err
			}
			return out, nil
		},
		delete: func(ctx context.Context, client interface{}, namespace, name string, opts metav1.DeleteOptions) error {
			return accessor(client.(C), namespace).Delete(ctx, name, opts)
		},
	}
}

// clusterScoped builds operations from an accessor that takes no namespace,
// e.g. (typedcorev1.CoreV1Interface).Namespaces.
func clusterScoped[T runtime.Object, C any, R resourceInterface[T]](accessor func(C) R) operations {
	return operations{
		scope:   ClusterScoped,
		applies: isClient[C],
		create: func(ctx context.Context, client interface{}, _ string, obj runtime.Object, opts metav1.CreateOptions) (runtime.Object, error) {
			typed, ok := obj.(T)
			if !ok {
				return nil, objectMismatch[T](obj)
			}
			out, err := accessor(client.(C)).Create(ctx, typed, opts)
			if err != nil {
				return nil, err
			}
			return out, nil
		},
		delete: func(ctx context.Context, client interface{}, _, name string, opts metav1.DeleteOptions) error {
			return accessor(client.(C)).Delete(ctx, name, opts)
		},
	}
}

func isClient[C any](client interface{}) bool {
	_, ok := client.(C)
	return ok
}

func objectMismatch[T runtime.Object](obj runtime.Object) error {
	var want T
	return fmt.Errorf("object is %T, operation expects %T", obj, want)
}

// explicitKinds is the preferred dispatch tier: exact typed calls per kind.
// A kind can have entries for several group clients; the first one that
// applies to the resolved client is used.
var explicitKinds = map[string][]operations{
	// core/v1
	"Pod":                   {namespaced[*corev1.Pod]((typedcorev1.CoreV1Interface).Pods)},
	"Service":               {namespaced[*corev1.Service]((typedcorev1.CoreV1Interface).Services)},
	"ConfigMap":             {namespaced[*corev1.ConfigMap]((typedcorev1.CoreV1Interface).ConfigMaps)},
	"Secret":                {namespaced[*corev1.Secret]((typedcorev1.CoreV1Interface).Secrets)},
	"ServiceAccount":        {namespaced[*corev1.ServiceAccount]((typedcorev1.CoreV1Interface).ServiceAccounts)},
	"PersistentVolumeClaim": {namespaced[*corev1.PersistentVolumeClaim]((typedcorev1.CoreV1Interface).PersistentVolumeClaims)},
	"Namespace":             {clusterScoped[*corev1.Namespace]((typedcorev1.CoreV1Interface).Namespaces)},
	"PersistentVolume":      {clusterScoped[*corev1.PersistentVolume]((typedcorev1.CoreV1Interface).PersistentVolumes)},

	// apps/v1
	"Deployment":  {namespaced[*appsv1.Deployment]((typedappsv1.AppsV1Interface).Deployments)},
	"StatefulSet": {namespaced[*appsv1.StatefulSet]((typedappsv1.AppsV1Interface).StatefulSets)},
	"DaemonSet":   {namespaced[*appsv1.DaemonSet]((typedappsv1.AppsV1Interface).DaemonSets)},
	"ReplicaSet":  {namespaced[*appsv1.ReplicaSet]((typedappsv1.AppsV1Interface).ReplicaSets)},

	// batch/v1
	"Job":     {namespaced[*batchv1.Job]((typedbatchv1.BatchV1Interface).Jobs)},
	"CronJob": {namespaced[*batchv1.CronJob]((typedbatchv1.BatchV1Interface).CronJobs)},

	// rbac.authorization.k8s.io/v1
	"Role":               {namespaced[*rbacv1.Role]((typedrbacv1.RbacV1Interface).Roles)},
	"RoleBinding":        {namespaced[*rbacv1.RoleBinding]((typedrbacv1.RbacV1Interface).RoleBindings)},
	"ClusterRole":        {clusterScoped[*rbacv1.ClusterRole]((typedrbacv1.RbacV1Interface).ClusterRoles)},
	"ClusterRoleBinding": {clusterScoped[*rbacv1.ClusterRoleBinding]((typedrbacv1.RbacV1Interface).ClusterRoleBindings)},

	// networking.k8s.io/v1
	"Ingress":       {namespaced[*networkingv1.Ingress]((typednetworkingv1.NetworkingV1Interface).Ingresses)},
	"NetworkPolicy": {namespaced[*networkingv1.NetworkPolicy]((typednetworkingv1.NetworkingV1Interface).NetworkPolicies)},

	// storage.k8s.io/v1
	"StorageClass": {clusterScoped[*storagev1.StorageClass]((typedstoragev1.StorageV1Interface).StorageClasses)},

	// autoscaling
	"HorizontalPodAutoscaler": {
		namespaced[*autoscalingv2.HorizontalPodAutoscaler]((typedautoscalingv2.AutoscalingV2Interface).HorizontalPodAutoscalers),
		namespaced[*autoscalingv1.HorizontalPodAutoscaler]((typedautoscalingv1.AutoscalingV1Interface).HorizontalPodAutoscalers),
	},

	// policy/v1
	"PodDisruptionBudget": {namespaced[*policyv1.PodDisruptionBudget]((typedpolicyv1.PolicyV1Interface).PodDisruptionBudgets)},

	// scheduling.k8s.io/v1
	"PriorityClass": {clusterScoped[*schedulingv1.PriorityClass]((typedschedulingv1.SchedulingV1Interface).PriorityClasses)},

	// admissionregistration.k8s.io/v1
	"ValidatingWebhookConfiguration": {clusterScoped[*admissionregistrationv1.ValidatingWebhookConfiguration](
		(typedadmissionregistrationv1.AdmissionregistrationV1Interface).ValidatingWebhookConfigurations)},
	"MutatingWebhookConfiguration": {clusterScoped[*admissionregistrationv1.MutatingWebhookConfiguration](
		(typedadmissionregistrationv1.AdmissionregistrationV1Interface).MutatingWebhookConfigurations)},
}

// clusterScopedKinds declares the scope of kinds reachable only through the
// convention tier. Kinds in explicitKinds carry their own scope.
var clusterScopedKinds = map[string]bool{
	"Node":                             true,
	"ComponentStatus":                  true,
	"CertificateSigningRequest":        true,
	"CSIDriver":                        true,
	"CSINode":                          true,
	"VolumeAttachment":                 true,
	"RuntimeClass":                     true,
	"IngressClass":                     true,
	"ValidatingAdmissionPolicy":        true,
	"ValidatingAdmissionPolicyBinding": true,
}

// declaredScope returns the scope recorded for kind, if any.
func declaredScope(kind string) (Scope, bool) {
	if ops, ok := explicitKinds[kind]; ok {
		return ops[0].scope, true
	}
	if clusterScopedKinds[kind] {
		return ClusterScoped, true
	}
	return Namespaced, false
}
