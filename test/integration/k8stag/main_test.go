// main_test.go starts one API server shared by every test in the package.
// Local envtest binaries are used when KUBEBUILDER_ASSETS is set, otherwise
// a prebuilt envtest image is started in a container.

package k8stag_integration

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/k8stag/k8stag/internal/k8s_client"
	"github.com/k8stag/k8stag/pkg/logger"
)

const (
	envSkip         = "SKIP_K8S_INTEGRATION_TESTS"
	envAssets       = "KUBEBUILDER_ASSETS"
	envEnvtestImage = "INTEGRATION_ENVTEST_IMAGE"
)

// environment names the API server a test run uses
type environment string

const (
	environmentLocal     environment = "envtest"
	environmentContainer environment = "envtest-container"
)

// sharedEnv holds the API server and clientset for all integration tests
var sharedEnv *testEnv

// setupErr holds any error that occurred during setup
var setupErr error

type testEnv struct {
	kind      environment
	config    *rest.Config
	clientset kubernetes.Interface
	log       logger.Logger
	stop      func() error
}

// TestMain runs before all tests to set up the shared API server
func TestMain(m *testing.M) {
	flag.Parse()

	if testing.Short() {
		os.Exit(m.Run())
	}

	kind, err := selectEnvironment(os.Getenv)
	if err != nil {
		setupErr = err
		println("Integration tests will be skipped:", err.Error())
		os.Exit(m.Run())
	}

	switch kind {
	case environmentLocal:
		sharedEnv, setupErr = startLocalEnv()
	case environmentContainer:
		if setupErr = checkContainerRuntime(); setupErr == nil {
			sharedEnv, setupErr = startContainerEnv(os.Getenv(envEnvtestImage))
		}
	}
	if setupErr != nil {
		println("Integration tests will be skipped:", setupErr.Error())
	} else {
		println("Integration API server ready:", string(sharedEnv.kind), sharedEnv.config.Host)
	}

	exitCode := m.Run()

	if sharedEnv != nil {
		if err := sharedEnv.stop(); err != nil {
			println("Failed to stop", string(sharedEnv.kind)+":", err.Error())
		}
	}
	os.Exit(exitCode)
}

// selectEnvironment picks where the API server comes from
func selectEnvironment(getenv func(string) string) (environment, error) {
	switch {
	case getenv(envSkip) == "true":
		return "", fmt.Errorf("%s is set", envSkip)
	case getenv(envAssets) != "":
		return environmentLocal, nil
	case getenv(envEnvtestImage) != "":
		return environmentContainer, nil
	default:
		return "", fmt.Errorf("neither %s nor %s is set; install envtest binaries with setup-envtest or name a prebuilt envtest image",
			envAssets, envEnvtestImage)
	}
}

// checkContainerRuntime fails fast when no Docker compatible daemon answers
func checkContainerRuntime() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return fmt.Errorf("could not connect to container runtime: %w", err)
	}
	defer func() { _ = provider.Close() }()

	if _, err := provider.DaemonHost(ctx); err != nil {
		return fmt.Errorf("could not get container runtime info: %w", err)
	}
	return nil
}

// newTestEnv builds the clientset shared by the tests and makes sure the
// default namespace exists.
func newTestEnv(kind environment, cfg *rest.Config, stop func() error) (*testEnv, error) {
	ctx := context.Background()
	log := logger.NewTestLogger()

	clientset, err := k8s_client.NewClientsetFromConfig(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "default"}}
	if _, err := clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{}); err != nil && !apierrors.IsAlreadyExists(err) {
		return nil, fmt.Errorf("failed to create default namespace: %w", err)
	}

	return &testEnv{kind: kind, config: cfg, clientset: clientset, log: log, stop: stop}, nil
}

// getSharedEnv skips the test when no API server could be started.
func getSharedEnv(t *testing.T) *testEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if setupErr != nil {
		t.Skipf("integration environment unavailable: %v", setupErr)
	}
	require.NotNil(t, sharedEnv, "shared test environment is not initialized")
	return sharedEnv
}
