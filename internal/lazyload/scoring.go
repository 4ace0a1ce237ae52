package lazyload

import (
	"context"
	"sort"
	"time"

	"aegisrt/pkg/logging"
)

// preloadScoreThreshold is the minimum critical_path_score (spec.md
// §4.D) a service must clear to be preload-eligible.
const preloadScoreThreshold = 0.5

// ScoredService pairs a service name with its freshly computed
// critical-path score.
type ScoredService struct {
	Name  string
	Score float64
}

// RecomputeScores recalculates every tracked service's critical-path
// score in place:
//
//	frequency      = access_count / max_access_count
//	co_access      = |co-accessed| / |tracked services|
//	recency        = max(0, 1 - hours_since_last_access/24)
//	peak_alignment = 1 if current hour in peak_usage_hours else 0
//	score = 0.4*frequency + 0.3*co_access + 0.2*recency + 0.1*peak_alignment
func (c *Controller) RecomputeScores() {
	now := time.Now()

	c.usageMu.Lock()
	patterns := make([]*UsagePattern, 0, len(c.usage))
	for _, p := range c.usage {
		patterns = append(patterns, p)
	}
	total := len(c.usage)
	c.usageMu.Unlock()

	var maxAccess int
	for _, p := range patterns {
		p.mu.Lock()
		if p.AccessCount > maxAccess {
			maxAccess = p.AccessCount
		}
		p.mu.Unlock()
	}
	if maxAccess == 0 {
		maxAccess = 1
	}

	for _, p := range patterns {
		p.mu.Lock()
		frequency := float64(p.AccessCount) / float64(maxAccess)

		coAccess := 0.0
		if total > 0 {
			coAccess = float64(len(p.CoAccessedServices)) / float64(total)
		}

		recency := 0.0
		if !p.LastAccessed.IsZero() {
			hoursSince := now.Sub(p.LastAccessed).Hours()
			recency = 1 - hoursSince/24
			if recency < 0 {
				recency = 0
			}
		}

		peakAlignment := 0.0
		if p.PeakUsageHours[now.Hour()] {
			peakAlignment = 1.0
		}

		p.CriticalPathScore = 0.4*frequency + 0.3*coAccess + 0.2*recency + 0.1*peakAlignment
		p.mu.Unlock()
	}
}

// TopScorers returns every tracked service whose critical-path score
// exceeds preloadScoreThreshold, sorted by descending score.
func (c *Controller) TopScorers() []ScoredService {
	c.RecomputeScores()

	c.usageMu.Lock()
	var scored []ScoredService
	for name, p := range c.usage {
		p.mu.Lock()
		score := p.CriticalPathScore
		p.mu.Unlock()
		if score > preloadScoreThreshold {
			scored = append(scored, ScoredService{Name: name, Score: score})
		}
	}
	c.usageMu.Unlock()

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored
}

// TriggerPreload loads every service bound to trigger, in ascending
// Priority order. Preload is best-effort: a failed load is logged and
// the remaining services are still attempted.
func (c *Controller) TriggerPreload(ctx context.Context, trigger Trigger) []string {
	c.rulesMu.Lock()
	rules := append([]PreloadRule(nil), c.rules[trigger]...)
	c.rulesMu.Unlock()

	var loaded []string
	for _, rule := range rules {
		for _, name := range rule.Services {
			if _, err := c.Get(ctx, name); err != nil {
				logging.Warn(lazyloadSubsystem, "preload of %s on trigger %s failed: %v", name, trigger, err)
				continue
			}
			loaded = append(loaded, name)
			c.metricsMu.Lock()
			c.metrics.ServicesPreloaded++
			c.metricsMu.Unlock()
		}
	}
	return loaded
}

// PreloadCriticalPath loads the services whose recomputed critical-path
// score exceeds the threshold, capped at the top 10 (spec.md §4.D).
func (c *Controller) PreloadCriticalPath(ctx context.Context) []string {
	scored := c.TopScorers()
	if len(scored) > 10 {
		scored = scored[:10]
	}

	var loaded []string
	for _, s := range scored {
		if _, err := c.Get(ctx, s.Name); err != nil {
			logging.Warn(lazyloadSubsystem, "critical-path preload of %s failed: %v", s.Name, err)
			continue
		}
		loaded = append(loaded, s.Name)
		c.metricsMu.Lock()
		c.metrics.ServicesPreloaded++
		c.metricsMu.Unlock()
	}
	return loaded
}
