// Package lazyload wraps a registry with on-demand handle-based access,
// a process-wide LRU of hot services, usage-pattern tracking and
// critical-path-scored preloading (spec.md §4.D).
package lazyload

import (
	"sync"
	"time"
)

// Trigger is one of the preload conditions of spec.md §4.D.
type Trigger string

const (
	TriggerStartup          Trigger = "STARTUP"
	TriggerUserLogin        Trigger = "USER_LOGIN"
	TriggerHighUsage        Trigger = "HIGH_USAGE"
	TriggerDependencyLoaded Trigger = "DEPENDENCY_LOADED"
	TriggerScheduled        Trigger = "SCHEDULED"
)

// PreloadRule maps a trigger to the services it should preload, in
// priority order (lower number loads first).
type PreloadRule struct {
	Trigger  Trigger
	Services []string
	Priority int
}

// UsagePattern tracks how one service has been accessed over time.
// Mirrors the original dataclass field-for-field (spec.md §3).
type UsagePattern struct {
	mu sync.Mutex

	ServiceName            string
	AccessCount            int
	LastAccessed           time.Time
	AverageAccessInterval  time.Duration
	PeakUsageHours         map[int]bool
	CoAccessedServices     map[string]bool
	CriticalPathScore      float64
}

func newUsagePattern(name string) *UsagePattern {
	return &UsagePattern{
		ServiceName:        name,
		PeakUsageHours:     make(map[int]bool),
		CoAccessedServices: make(map[string]bool),
	}
}

// recordAccess updates access_count, last_accessed, average_access_interval
// and peak_usage_hours for a single access event at now.
func (p *UsagePattern) recordAccess(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.LastAccessed.IsZero() && p.AccessCount > 0 {
		interval := now.Sub(p.LastAccessed)
		p.AverageAccessInterval = (p.AverageAccessInterval*time.Duration(p.AccessCount-1) + interval) / time.Duration(p.AccessCount)
	}
	p.AccessCount++
	p.LastAccessed = now
	p.PeakUsageHours[now.Hour()] = true
}

// snapshot returns a race-free copy used for scoring and display.
func (p *UsagePattern) snapshot() UsagePatternView {
	p.mu.Lock()
	defer p.mu.Unlock()

	coAccessed := make([]string, 0, len(p.CoAccessedServices))
	for name := range p.CoAccessedServices {
		coAccessed = append(coAccessed, name)
	}
	return UsagePatternView{
		ServiceName:        p.ServiceName,
		AccessCount:        p.AccessCount,
		LastAccessed:       p.LastAccessed,
		CoAccessedServices: coAccessed,
		CriticalPathScore:  p.CriticalPathScore,
	}
}

// UsagePatternView is a read-only snapshot of a UsagePattern.
type UsagePatternView struct {
	ServiceName        string
	AccessCount        int
	LastAccessed       time.Time
	CoAccessedServices []string
	CriticalPathScore  float64
}
