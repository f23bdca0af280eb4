package model

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"os"
	"sync"
)

// BackendEnvVar is the environment variable GoMLX reads the backend configuration from.
const BackendEnvVar = "GOMLX_BACKEND"

var (
	// Backends are shared by all models, one per device configuration.
	muBackends    sync.Mutex
	backendsCache = make(map[string]backends.Backend)
)

// Backend returns the GoMLX backend for the device configuration (e.g. "xla:cuda", "xla:cpu", "simplego"),
// creating it on first use. An empty device selects GoMLX's default (or the one set in $GOMLX_BACKEND).
func Backend(device string) (backend backends.Backend, err error) {
	muBackends.Lock()
	defer muBackends.Unlock()
	if backend, found := backendsCache[device]; found {
		return backend, nil
	}
	if device != "" {
		if err = os.Setenv(BackendEnvVar, device); err != nil {
			return nil, errors.Wrapf(err, "failed to set $%s", BackendEnvVar)
		}
	}
	err = exceptions.TryCatch[error](func() { backend = backends.New() })
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create GoMLX backend for device %q", device)
	}
	klog.V(1).Infof("Backend %q: %s", device, backend.Description())
	backendsCache[device] = backend
	return backend, nil
}
