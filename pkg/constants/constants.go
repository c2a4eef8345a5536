package constants

// Well-known document fields and dispatch vocabulary shared by the manifest,
// dispatch and facade packages.

const (
	// FieldKind is the top-level document field naming the resource kind.
	// A document without it cannot become a manifest.
	FieldKind = "kind"

	// FieldAPIVersion is the top-level document field naming the API group/version.
	// Format: "v1", "batch/v1", "rbac.authorization.k8s.io/v1"
	FieldAPIVersion = "apiVersion"

	// FieldMetadata is the top-level document field holding name, namespace and labels.
	FieldMetadata = "metadata"

	// DefaultNamespace is used for namespaced operations when the manifest
	// metadata does not name a namespace.
	DefaultNamespace = "default"
)

// Verbs understood by the dispatch resolver.
const (
	VerbCreate = "create"
	VerbDelete = "delete"
)

// Strategy names reported by a resolved binding.
const (
	// StrategyExplicit marks an operation taken from the per-kind table.
	StrategyExplicit = "explicit"

	// StrategyConvention marks an operation derived by naming convention on the group client.
	StrategyConvention = "convention"
)
