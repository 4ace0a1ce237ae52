package lifecycle

import (
	"context"
	"time"

	"aegisrt/internal/catalog"
	"aegisrt/internal/registry"
	"aegisrt/pkg/logging"
)

// RunIdleLoop polls the registry every interval (default 30s, spec.md
// §4.E) and suspends any ACTIVE, non-ESSENTIAL service whose
// idle_timeout has elapsed since last_accessed. It blocks until ctx is
// canceled.
func (m *Manager) RunIdleLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultIdleCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepIdle(ctx)
		}
	}
}

func (m *Manager) sweepIdle(ctx context.Context) {
	now := time.Now()
	for _, snap := range m.registry.Iter() {
		if snap.State != registry.Active {
			continue
		}
		svc, ok := m.catalog.Get(snap.Name)
		if !ok || svc.Classification == catalog.Essential || svc.IdleTimeoutSeconds == nil {
			continue
		}
		timeout := time.Duration(*svc.IdleTimeoutSeconds) * time.Second
		if now.Sub(snap.LastAccessed) < timeout {
			continue
		}

		if err := m.registry.Suspend(ctx, snap.Name); err != nil {
			logging.Warn(lifecycleSubsystem, "idle suspension of %s failed: %v", snap.Name, err)
			continue
		}
		logging.Info(lifecycleSubsystem, "suspended idle service %s after %s", snap.Name, timeout)
	}
}
