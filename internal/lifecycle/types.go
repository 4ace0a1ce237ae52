// Package lifecycle drives startup orchestration, idle detection,
// graceful shutdown and service consolidation on top of a registry and
// its dependency graph (spec.md §4.E).
package lifecycle

import (
	"sync"
	"sync/atomic"
	"time"

	"aegisrt/internal/catalog"
	"aegisrt/internal/depgraph"
	"aegisrt/internal/lazyload"
	"aegisrt/internal/registry"
)

// StartupMode selects which services participate in start().
type StartupMode string

const (
	EssentialOnly StartupMode = "ESSENTIAL_ONLY"
	FastStart     StartupMode = "FAST_START"
	Normal        StartupMode = "NORMAL"
	Full          StartupMode = "FULL"
)

// fastStartPriorityCeiling is the startup_priority cutoff for OPTIONAL
// services included under FAST_START (spec.md §4.E).
const fastStartPriorityCeiling = 50

// defaultIdleCheckInterval is how often the idle-detection loop runs.
const defaultIdleCheckInterval = 30 * time.Second

// GroupResult records the wall-clock outcome of one parallel launch
// group during start().
type GroupResult struct {
	Services []string
	Duration time.Duration
}

// StartupReport summarizes one start() invocation.
type StartupReport struct {
	Mode              StartupMode
	Groups            []GroupResult
	PerServiceElapsed map[string]time.Duration
	EstimatedSeconds  float64
	ActualSeconds     float64
	Failures          map[string]error
}

// Manager is the lifecycle orchestrator: startup sequencing, idle
// suspension, graceful shutdown and consolidation.
type Manager struct {
	catalog  *catalog.Catalog
	registry *registry.Registry
	lazy     *lazyload.Controller

	monitorsOnce sync.Once
	onMonitors   func()

	gracefulShutdowns int64
	forcedShutdowns   int64

	facadesMu sync.RWMutex
	facades   map[string]string // secondary name -> primary name

	plansMu sync.Mutex
	plans   map[string]*ConsolidationPlan
}

// New returns a lifecycle manager over the given catalog, registry and
// lazy loading controller. onMonitors, if non-nil, is invoked exactly
// once after the first start() completes its final group (spec.md
// §4.E step 4): callers wire it to start the idle detector and resource
// sampler.
func New(cat *catalog.Catalog, reg *registry.Registry, lazy *lazyload.Controller, onMonitors func()) *Manager {
	return &Manager{
		catalog:    cat,
		registry:   reg,
		lazy:       lazy,
		onMonitors: onMonitors,
		facades:    make(map[string]string),
		plans:      make(map[string]*ConsolidationPlan),
	}
}

// IncludedServices returns the catalog services participating in mode.
func IncludedServices(cat *catalog.Catalog, mode StartupMode) []catalog.ServiceConfig {
	var out []catalog.ServiceConfig
	for _, svc := range cat.All() {
		switch mode {
		case EssentialOnly:
			if svc.Classification == catalog.Essential && svc.Enabled {
				out = append(out, svc)
			}
		case FastStart:
			if svc.Classification == catalog.Essential && svc.Enabled {
				out = append(out, svc)
			} else if svc.Classification == catalog.Optional && svc.Enabled && svc.StartupPriority <= fastStartPriorityCeiling {
				out = append(out, svc)
			}
		case Normal:
			if svc.Enabled {
				out = append(out, svc)
			}
		case Full:
			out = append(out, svc)
		}
	}
	return out
}

// GracefulShutdowns returns the running count of clean shutdowns.
func (m *Manager) GracefulShutdowns() int64 { return atomic.LoadInt64(&m.gracefulShutdowns) }

// ForcedShutdowns returns the running count of timeout-forced shutdowns.
func (m *Manager) ForcedShutdowns() int64 { return atomic.LoadInt64(&m.forcedShutdowns) }
