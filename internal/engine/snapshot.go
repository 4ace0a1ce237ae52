package engine

import (
	"sync"
	"time"

	"aegisrt/internal/apicore"
)

// recentAlertsCapacity mirrors original_source's 50-entry alerts cap.
const recentAlertsCapacity = 50

// alertHistory is a small ring buffer of the most recent resource
// alerts, fed by a subscriber goroutine started alongside the other
// background monitors so Snapshot never blocks on the monitor itself.
type alertHistory struct {
	mu     sync.Mutex
	alerts []apicore.ResourceAlert
}

func (h *alertHistory) record(a apicore.ResourceAlert) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alerts = append(h.alerts, a)
	if len(h.alerts) > recentAlertsCapacity {
		h.alerts = h.alerts[len(h.alerts)-recentAlertsCapacity:]
	}
}

func (h *alertHistory) snapshot() []apicore.ResourceAlert {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]apicore.ResourceAlert, len(h.alerts))
	copy(out, h.alerts)
	return out
}

// ServiceSnapshot is one service's row in a Snapshot report.
type ServiceSnapshot struct {
	Name            string `json:"name"`
	State           string `json:"state"`
	SuspensionCount int    `json:"suspension_count"`
	FailedAttempts  int    `json:"failed_attempts"`
	ForcedShutdowns int    `json:"forced_shutdowns"`
}

// Snapshot is the operational report described by spec.md §6: every
// service's state, suspension, failed-attempt and forced-shutdown
// counts, the engine-wide graceful/forced shutdown totals and recent
// alerts. It carries no startup estimates or actual startup times.
type Snapshot struct {
	Timestamp         time.Time               `json:"timestamp"`
	Services          []ServiceSnapshot       `json:"services"`
	GracefulShutdowns int64                   `json:"graceful_shutdowns"`
	ForcedShutdowns   int64                   `json:"forced_shutdowns"`
	RecentAlerts      []apicore.ResourceAlert `json:"recent_alerts"`
}

// Snapshot builds a point-in-time operational report, the CLI's
// "status" surface (spec.md §6).
func (e *Engine) Snapshot() Snapshot {
	snaps := e.Registry.Iter()
	services := make([]ServiceSnapshot, 0, len(snaps))
	for _, s := range snaps {
		services = append(services, ServiceSnapshot{
			Name:            s.Name,
			State:           string(s.State),
			SuspensionCount: s.SuspensionCount,
			FailedAttempts:  s.FailedAttempts,
			ForcedShutdowns: s.ForcedShutdowns,
		})
	}

	return Snapshot{
		Timestamp:         time.Now(),
		Services:          services,
		GracefulShutdowns: e.Lifecycle.GracefulShutdowns(),
		ForcedShutdowns:   e.Lifecycle.ForcedShutdowns(),
		RecentAlerts:      e.alerts.snapshot(),
	}
}
