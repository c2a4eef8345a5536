// This file starts envtest from locally installed binaries.

package k8stag_integration

import (
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/envtest"
)

func startLocalEnv() (*testEnv, error) {
	env := &envtest.Environment{}
	cfg, err := env.Start()
	if err != nil {
		return nil, fmt.Errorf("failed to start envtest: %w", err)
	}

	te, err := newTestEnv(environmentLocal, cfg, env.Stop)
	if err != nil {
		_ = env.Stop()
		return nil, err
	}
	return te, nil
}
