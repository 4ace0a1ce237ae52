// Package resourcemon samples system resource usage on an interval,
// detects sustained pressure per resource and triggers automatic
// optimization actions (spec.md §4.G).
package resourcemon

import "time"

// Resource names one of the sampled resource types.
type Resource string

const (
	CPU    Resource = "cpu"
	Memory Resource = "memory"
	Disk   Resource = "disk"
	GPU    Resource = "gpu"
)

// Threshold configures warning/critical/emergency percentages and how
// long a resource must stay above warning before an alert fires
// (spec.md §4.G).
type Threshold struct {
	Warning           float64
	Critical          float64
	Emergency         float64
	SustainedDuration time.Duration
}

// defaultThresholds mirrors original_source/resource_monitor.py's
// per-resource ResourceThreshold defaults.
func defaultThresholds() map[Resource]Threshold {
	return map[Resource]Threshold{
		CPU:    {Warning: 70, Critical: 85, Emergency: 95, SustainedDuration: 30 * time.Second},
		Memory: {Warning: 75, Critical: 90, Emergency: 98, SustainedDuration: 20 * time.Second},
		Disk:   {Warning: 80, Critical: 90, Emergency: 95, SustainedDuration: 60 * time.Second},
		GPU:    {Warning: 80, Critical: 90, Emergency: 95, SustainedDuration: 30 * time.Second},
	}
}

// defaultCheckInterval is how often the monitoring loop samples.
const defaultCheckInterval = 5 * time.Second

// historyCapacity bounds the in-memory ring buffer of snapshots.
const historyCapacity = 100

// Snapshot is one point-in-time reading of every sampled resource.
type Snapshot struct {
	Timestamp        time.Time
	CPUPercent       float64
	MemoryPercent    float64
	MemoryAvailable  uint64
	MemoryUsed       uint64
	DiskPercent      float64
	DiskFree         uint64
	GoroutineCount   int
	GPUPercent       *float64
	GPUMemoryPercent *float64
}

func (s Snapshot) value(r Resource) (float64, bool) {
	switch r {
	case CPU:
		return s.CPUPercent, true
	case Memory:
		return s.MemoryPercent, true
	case Disk:
		return s.DiskPercent, true
	case GPU:
		if s.GPUPercent == nil {
			return 0, false
		}
		return *s.GPUPercent, true
	default:
		return 0, false
	}
}

// CacheClearer is implemented by in-process caches that want to release
// memory when the monitor detects sustained memory pressure. Go has no
// GC-visible weak reference the way original_source's weakref.WeakSet
// does, so registrations are explicit and must be paired with
// Unregister by the owner before it goes out of scope.
type CacheClearer interface {
	Clear()
}

// OptimizationAction names one kind of auto-optimization step.
type OptimizationAction string

const (
	ActionForceGC          OptimizationAction = "force_gc"
	ActionClearCache       OptimizationAction = "clear_cache"
	ActionSuspendService   OptimizationAction = "suspend_service"
	ActionDrainGPUOffloads OptimizationAction = "drain_gpu_offloads"
)
