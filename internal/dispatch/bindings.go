package dispatch

import (
	"strings"

	"k8s.io/client-go/kubernetes"
)

// groupClients maps lowercase group/version strings to the typed group client
// serving them. The value returned is the client-go group interface, e.g.
// typedbatchv1.BatchV1Interface for "batch/v1".
var groupClients = map[string]func(kubernetes.Interface) interface{}{
	"v1":                              func(cs kubernetes.Interface) interface{} { return cs.CoreV1() },
	"apps/v1":                         func(cs kubernetes.Interface) interface{} { return cs.AppsV1() },
	"batch/v1":                        func(cs kubernetes.Interface) interface{} { return cs.BatchV1() },
	"autoscaling/v1":                  func(cs kubernetes.Interface) interface{} { return cs.AutoscalingV1() },
	"autoscaling/v2":                  func(cs kubernetes.Interface) interface{} { return cs.AutoscalingV2() },
	"certificates.k8s.io/v1":          func(cs kubernetes.Interface) interface{} { return cs.CertificatesV1() },
	"policy/v1":                       func(cs kubernetes.Interface) interface{} { return cs.PolicyV1() },
	"rbac.authorization.k8s.io/v1":    func(cs kubernetes.Interface) interface{} { return cs.RbacV1() },
	"networking.k8s.io/v1":            func(cs kubernetes.Interface) interface{} { return cs.NetworkingV1() },
	"storage.k8s.io/v1":               func(cs kubernetes.Interface) interface{} { return cs.StorageV1() },
	"scheduling.k8s.io/v1":            func(cs kubernetes.Interface) interface{} { return cs.SchedulingV1() },
	"coordination.k8s.io/v1":          func(cs kubernetes.Interface) interface{} { return cs.CoordinationV1() },
	"discovery.k8s.io/v1":             func(cs kubernetes.Interface) interface{} { return cs.DiscoveryV1() },
	"node.k8s.io/v1":                  func(cs kubernetes.Interface) interface{} { return cs.NodeV1() },
	"events.k8s.io/v1":                func(cs kubernetes.Interface) interface{} { return cs.EventsV1() },
	"admissionregistration.k8s.io/v1": func(cs kubernetes.Interface) interface{} { return cs.AdmissionregistrationV1() },
}

// groupClient returns the group client bound to apiVersion.
func groupClient(cs kubernetes.Interface, apiVersion string) (interface{}, bool) {
	newClient, ok := groupClients[strings.ToLower(apiVersion)]
	if !ok {
		return nil, false
	}
	return newClient(cs), true
}

// BoundAPIVersions lists the group/versions a resolver can dispatch to.
func BoundAPIVersions() []string {
	versions := make([]string, 0, len(groupClients))
	for v := range groupClients {
		versions = append(versions, v)
	}
	return versions
}
