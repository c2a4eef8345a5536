package k8s_client

import (
	"context"
	"time"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/k8stag/k8stag/pkg/errors"
	"github.com/k8stag/k8stag/pkg/logger"
	"github.com/k8stag/k8stag/pkg/validation"
	"github.com/k8stag/k8stag/pkg/version"
)

const (
	DefaultQPS   float32 = 100.0
	DefaultBurst int     = 200
)

// ClientConfig holds configuration for creating a Kubernetes clientset
type ClientConfig struct {
	// KubeConfigPath is the path to kubeconfig file
	// Leave empty ("") to use in-cluster ServiceAccount authentication
	KubeConfigPath string `yaml:"kubeconfig" validate:"omitempty,file"`
	// Context selects a kubeconfig context other than the current one
	Context string `yaml:"context" validate:"excluded_without=KubeConfigPath"`
	// QPS is the queries per second rate limiter
	QPS float32 `yaml:"qps" validate:"gte=0"`
	// Burst is the burst rate limiter
	Burst int `yaml:"burst" validate:"gte=0"`
	// Timeout bounds every request; zero means no limit
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	// UserAgent overrides version.UserAgent()
	UserAgent string `yaml:"userAgent"`
}

// RESTConfig resolves the rest.Config for config.
//
// Authentication Methods:
//  1. In-Cluster (ServiceAccount) - When KubeConfigPath is empty ("")
//     - Uses the ServiceAccount token and CA mounted into the pod
//     - Requires appropriate RBAC permissions for the ServiceAccount
//  2. Kubeconfig - When KubeConfigPath is set
//     - Uses the specified kubeconfig file, optionally with Context
func RESTConfig(ctx context.Context, config ClientConfig, log logger.Logger) (*rest.Config, error) {
	if err := validation.ValidateStruct(config); err != nil {
		return nil, err
	}

	var restConfig *rest.Config
	var err error

	if config.KubeConfigPath == "" {
		restConfig, err = rest.InClusterConfig()
		if err != nil {
			return nil, errors.KubernetesError("failed to create in-cluster config: %v", err)
		}
		log.Info(ctx, "Using in-cluster Kubernetes configuration (ServiceAccount)")
	} else {
		rules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: config.KubeConfigPath}
		overrides := &clientcmd.ConfigOverrides{CurrentContext: config.Context}
		restConfig, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
		if err != nil {
			return nil, errors.KubernetesError("failed to load kubeconfig from %s: %v", config.KubeConfigPath, err)
		}
		log.Infof(ctx, "Using kubeconfig from: %s", config.KubeConfigPath)
	}

	if config.QPS == 0 {
		restConfig.QPS = DefaultQPS
	} else {
		restConfig.QPS = config.QPS
	}
	if config.Burst == 0 {
		restConfig.Burst = DefaultBurst
	} else {
		restConfig.Burst = config.Burst
	}
	restConfig.Timeout = config.Timeout
	if config.UserAgent != "" {
		restConfig.UserAgent = config.UserAgent
	} else {
		restConfig.UserAgent = version.UserAgent()
	}

	return restConfig, nil
}

// NewClientset creates a typed clientset with automatic authentication detection
//
// Example Usage:
//
//	// For production deployment in K8s cluster (uses ServiceAccount)
//	clientset, err := NewClientset(ctx, ClientConfig{}, log)
//
//	// For local development (uses kubeconfig)
//	clientset, err := NewClientset(ctx, ClientConfig{KubeConfigPath: "/home/user/.kube/config"}, log)
func NewClientset(ctx context.Context, config ClientConfig, log logger.Logger) (kubernetes.Interface, error) {
	restConfig, err := RESTConfig(ctx, config, log)
	if err != nil {
		return nil, err
	}
	return NewClientsetFromConfig(ctx, restConfig, log)
}

// NewClientsetFromConfig creates a clientset from an existing rest.Config
func NewClientsetFromConfig(ctx context.Context, restConfig *rest.Config, log logger.Logger) (kubernetes.Interface, error) {
	if restConfig == nil {
		return nil, errors.KubernetesError("rest config is nil")
	}
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.KubernetesError("failed to create kubernetes clientset: %v", err)
	}
	log.Debugf(ctx, "Created clientset for %s (qps=%v burst=%d)", restConfig.Host, restConfig.QPS, restConfig.Burst)
	return clientset, nil
}
