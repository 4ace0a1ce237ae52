package lazyload

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"time"

	"aegisrt/internal/registry"
	"aegisrt/pkg/logging"
)

const lazyloadSubsystem = "LazyLoad"

const sessionWindow = time.Minute

// accessRecord is one entry in the sliding co-access window.
type accessRecord struct {
	name string
	at   time.Time
}

// Metrics holds the controller's running counters (spec.md §4.D).
type Metrics struct {
	CacheHits         int64
	CacheMisses       int64
	ServicesPreloaded int64
}

// Controller wraps a Registry with a process-wide LRU of hot service
// names, usage-pattern tracking for critical-path scoring, and
// trigger-based preloading.
type Controller struct {
	registry *registry.Registry
	capacity int

	mu       sync.Mutex
	lru      *list.List
	elements map[string]*list.Element

	usageMu sync.Mutex
	usage   map[string]*UsagePattern
	window  []accessRecord

	rulesMu sync.Mutex
	rules   map[Trigger][]PreloadRule

	metricsMu sync.Mutex
	metrics   Metrics
}

// New returns a lazy loading controller with an LRU of the given
// capacity over r's registered services.
func New(r *registry.Registry, capacity int) *Controller {
	if capacity <= 0 {
		capacity = 100
	}
	return &Controller{
		registry: r,
		capacity: capacity,
		lru:      list.New(),
		elements: make(map[string]*list.Element),
		usage:    make(map[string]*UsagePattern),
		rules:    make(map[Trigger][]PreloadRule),
	}
}

// ConfigurePreloadRules replaces the controller's preload rule table.
func (c *Controller) ConfigurePreloadRules(rules []PreloadRule) {
	byTrigger := make(map[Trigger][]PreloadRule)
	for _, rule := range rules {
		byTrigger[rule.Trigger] = append(byTrigger[rule.Trigger], rule)
	}
	for trigger := range byTrigger {
		sort.SliceStable(byTrigger[trigger], func(i, j int) bool {
			return byTrigger[trigger][i].Priority < byTrigger[trigger][j].Priority
		})
	}

	c.rulesMu.Lock()
	c.rules = byTrigger
	c.rulesMu.Unlock()
}

// Get dereferences a handle for name: a hit in the LRU returns the
// already-loaded instance, a miss loads it through the registry (whose
// own single-flight collapses concurrent cold dereferences) and inserts
// it into the LRU, evicting the least-recently-used entry if over
// capacity.
func (c *Controller) Get(ctx context.Context, name string) (any, error) {
	hit := c.touchLRU(name)

	c.metricsMu.Lock()
	if hit {
		c.metrics.CacheHits++
	} else {
		c.metrics.CacheMisses++
	}
	c.metricsMu.Unlock()

	instance, err := c.registry.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	c.recordAccess(name)

	if !hit {
		c.evictOverCapacity(ctx)
	}

	return instance, nil
}

// touchLRU marks name as most-recently-used, inserting it if absent.
// Returns true if name was already present (a cache hit).
func (c *Controller) touchLRU(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.elements[name]; ok {
		c.lru.MoveToFront(el)
		return true
	}
	el := c.lru.PushFront(name)
	c.elements[name] = el
	return false
}

// evictOverCapacity drops the least-recently-used name via registry
// Suspend (not Shutdown: an evicted handle is still registered, just
// cold) once the LRU exceeds capacity.
func (c *Controller) evictOverCapacity(ctx context.Context) {
	c.mu.Lock()
	var evicted string
	if c.lru.Len() > c.capacity {
		back := c.lru.Back()
		evicted = back.Value.(string)
		c.lru.Remove(back)
		delete(c.elements, evicted)
	}
	c.mu.Unlock()

	if evicted == "" {
		return
	}
	if err := c.registry.Suspend(ctx, evicted); err != nil {
		logging.Warn(lazyloadSubsystem, "LRU eviction of %s: %v", evicted, err)
	}
}

// recordAccess updates the accessed service's UsagePattern and the
// sliding-window co-access set.
func (c *Controller) recordAccess(name string) {
	now := time.Now()

	c.usageMu.Lock()
	pattern, ok := c.usage[name]
	if !ok {
		pattern = newUsagePattern(name)
		c.usage[name] = pattern
	}

	cutoff := now.Add(-sessionWindow)
	pruned := c.window[:0]
	for _, rec := range c.window {
		if rec.at.After(cutoff) {
			pruned = append(pruned, rec)
		}
	}
	c.window = pruned

	for _, rec := range c.window {
		if rec.name == name {
			continue
		}
		pattern.mu.Lock()
		pattern.CoAccessedServices[rec.name] = true
		pattern.mu.Unlock()

		if other, ok := c.usage[rec.name]; ok {
			other.mu.Lock()
			other.CoAccessedServices[name] = true
			other.mu.Unlock()
		}
	}
	c.window = append(c.window, accessRecord{name: name, at: now})
	c.usageMu.Unlock()

	pattern.recordAccess(now)
}

// UsagePatterns returns a snapshot of every tracked service's pattern.
func (c *Controller) UsagePatterns() []UsagePatternView {
	c.usageMu.Lock()
	patterns := make([]*UsagePattern, 0, len(c.usage))
	for _, p := range c.usage {
		patterns = append(patterns, p)
	}
	c.usageMu.Unlock()

	out := make([]UsagePatternView, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, p.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceName < out[j].ServiceName })
	return out
}

// Metrics returns a copy of the controller's running counters.
func (c *Controller) Metrics() Metrics {
	c.metricsMu.Lock()
	defer c.metricsMu.Unlock()
	return c.metrics
}
