package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"aegisrt/internal/apicore"
	"aegisrt/internal/registry"
	"aegisrt/pkg/logging"
)

// ShutdownOne stops name within timeout: the registry invokes its
// optional shutdown hook, forcing the drop and recording a forced
// shutdown if the hook doesn't return in time (spec.md §4.E).
func (m *Manager) ShutdownOne(ctx context.Context, name string, timeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := m.registry.Shutdown(shutdownCtx, name)

	var timeoutErr *apicore.ShutdownTimeoutError
	if errors.As(err, &timeoutErr) {
		atomic.AddInt64(&m.forcedShutdowns, 1)
		return err
	}
	if err != nil {
		return err
	}
	atomic.AddInt64(&m.gracefulShutdowns, 1)
	return nil
}

// ShutdownAll walks the shutdown order (reverse of startup order) over
// every currently ACTIVE or SUSPENDED service, splitting totalTimeout
// evenly across them (spec.md §4.E step 4).
func (m *Manager) ShutdownAll(ctx context.Context, graphOrder []string, totalTimeout time.Duration) map[string]error {
	var active []string
	for _, name := range graphOrder {
		snap, ok := m.registry.Snapshot(name)
		if !ok {
			continue
		}
		if snap.State == registry.Active || snap.State == registry.Idle || snap.State == registry.Suspended {
			active = append(active, name)
		}
	}

	errs := make(map[string]error)
	if len(active) == 0 {
		return errs
	}

	per := totalTimeout / time.Duration(len(active))
	for _, name := range active {
		if err := m.ShutdownOne(ctx, name, per); err != nil {
			errs[name] = err
			logging.Error(lifecycleSubsystem, err, "shutdown of %s did not complete cleanly", name)
		}
	}
	return errs
}
