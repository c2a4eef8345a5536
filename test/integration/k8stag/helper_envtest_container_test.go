// This file starts a prebuilt envtest image with testcontainers.

package k8stag_integration

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"k8s.io/client-go/rest"
)

const (
	// envtestAPIServerPort is the port the kube-apiserver listens on inside the image
	envtestAPIServerPort = nat.Port("6443/tcp")

	// envtestReadyLog is printed by the image once the API server is up
	envtestReadyLog = "Envtest is running"

	// envtestBearerToken authenticates against the image's API server
	envtestBearerToken = "test-token"

	containerStartAttempts = 3
	containerStartTimeout  = 3 * time.Minute
)

func startContainerEnv(image string) (*testEnv, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{string(envtestAPIServerPort)},
		Env: map[string]string{
			"HTTP_PROXY":  os.Getenv("HTTP_PROXY"),
			"HTTPS_PROXY": os.Getenv("HTTPS_PROXY"),
			"NO_PROXY":    os.Getenv("NO_PROXY"),
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(envtestAPIServerPort).WithPollInterval(500*time.Millisecond),
			wait.ForLog(envtestReadyLog).WithPollInterval(500*time.Millisecond),
		).WithDeadline(2 * time.Minute),
	}

	container, err := runContainer(ctx, req)
	if err != nil {
		return nil, err
	}
	stop := func() error {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return container.Terminate(stopCtx)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = stop()
		return nil, fmt.Errorf("failed to get envtest container host: %w", err)
	}
	port, err := container.MappedPort(ctx, envtestAPIServerPort)
	if err != nil {
		_ = stop()
		return nil, fmt.Errorf("failed to get envtest container port: %w", err)
	}

	apiServer := fmt.Sprintf("https://%s:%s", host, port.Port())
	if err := waitForAPIServerReady(apiServer, 30*time.Second); err != nil {
		_ = stop()
		return nil, err
	}

	cfg := &rest.Config{
		Host:        apiServer,
		BearerToken: envtestBearerToken,
		TLSClientConfig: rest.TLSClientConfig{
			Insecure: true,
		},
	}
	te, err := newTestEnv(environmentContainer, cfg, stop)
	if err != nil {
		_ = stop()
		return nil, err
	}
	return te, nil
}

// runContainer starts req, retrying with a growing delay. A container that was
// created but never became ready is terminated before the next attempt.
func runContainer(ctx context.Context, req testcontainers.ContainerRequest) (testcontainers.Container, error) {
	var lastErr error
	for attempt := 1; attempt <= containerStartAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(time.Duration(attempt) * time.Second)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, containerStartTimeout)
		container, err := testcontainers.GenericContainer(attemptCtx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		cancel()
		if err == nil {
			return container, nil
		}
		lastErr = err

		if container != nil {
			termCtx, termCancel := context.WithTimeout(context.Background(), time.Minute)
			_ = container.Terminate(termCtx)
			termCancel()
		}
	}
	return nil, fmt.Errorf("failed to start envtest container %s after %d attempts: %w", req.Image, containerStartAttempts, lastErr)
}

// waitForAPIServerReady polls /healthz until it answers 200 or timeout passes
func waitForAPIServerReady(apiServer string, timeout time.Duration) error {
	client := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, //nolint:gosec // envtest serves a self-signed certificate
			},
		},
	}

	deadline := time.Now().Add(timeout)
	for {
		req, err := http.NewRequest(http.MethodGet, apiServer+"/healthz", nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+envtestBearerToken)

		resp, err := client.Do(req)
		status := 0
		if err == nil {
			status = resp.StatusCode
			_ = resp.Body.Close()
			if status == http.StatusOK {
				return nil
			}
		}

		if time.Now().After(deadline) {
			if err != nil {
				return fmt.Errorf("API server not ready after %v: %w", timeout, err)
			}
			return fmt.Errorf("API server not ready after %v: status %d", timeout, status)
		}
		time.Sleep(500 * time.Millisecond)
	}
}
