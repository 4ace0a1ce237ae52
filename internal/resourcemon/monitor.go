package resourcemon

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"aegisrt/internal/apicore"
	"aegisrt/internal/catalog"
	"aegisrt/internal/registry"
	"aegisrt/pkg/logging"
)

const resourcemonSubsystem = "ResourceMon"

// Monitor samples system resources on an interval, detects sustained
// pressure and triggers automatic optimization when enabled (spec.md
// §4.G). It is the Go counterpart of original_source's ResourceMonitor.
type Monitor struct {
	catalog  *catalog.Catalog
	registry *registry.Registry

	diskPath      string
	checkInterval time.Duration
	autoOptimize  bool
	gpu           GPUSampler

	thresholdsMu sync.RWMutex
	thresholds   map[Resource]Threshold

	historyMu sync.Mutex
	history   []Snapshot

	pressureMu sync.Mutex
	pressureSince map[Resource]time.Time

	cachesMu sync.Mutex
	caches   map[string]CacheClearer

	alerts        *apicore.Publisher[apicore.ResourceAlert]
	optimizations *apicore.Publisher[apicore.OptimizationResult]
	snapshots     *apicore.Publisher[Snapshot]
}

// Option configures a Monitor at construction time.
type Option func(*Monitor)

// WithDiskPath overrides the path disk usage is sampled from (default "/").
func WithDiskPath(path string) Option {
	return func(m *Monitor) { m.diskPath = path }
}

// WithCheckInterval overrides the default 5s sampling interval.
func WithCheckInterval(d time.Duration) Option {
	return func(m *Monitor) { m.checkInterval = d }
}

// WithGPUSampler plugs in an optional GPU reader.
func WithGPUSampler(g GPUSampler) Option {
	return func(m *Monitor) { m.gpu = g }
}

// WithAutoOptimization toggles whether sustained pressure triggers
// TriggerCleanup automatically from RunLoop.
func WithAutoOptimization(enabled bool) Option {
	return func(m *Monitor) { m.autoOptimize = enabled }
}

// New returns a Monitor wired to cat/reg for auto-optimization's
// service suspension step. Either may be nil; optimizations that need
// them are skipped with a logged warning, matching original_source's
// "no service registry available" fallback.
func New(cat *catalog.Catalog, reg *registry.Registry, opts ...Option) *Monitor {
	m := &Monitor{
		catalog:       cat,
		registry:      reg,
		diskPath:      "/",
		checkInterval: defaultCheckInterval,
		autoOptimize:  true,
		thresholds:    defaultThresholds(),
		pressureSince: make(map[Resource]time.Time),
		caches:        make(map[string]CacheClearer),
		alerts:        apicore.NewPublisher[apicore.ResourceAlert](),
		optimizations: apicore.NewPublisher[apicore.OptimizationResult](),
		snapshots:     apicore.NewPublisher[Snapshot](),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ConfigureThreshold overrides the threshold for one resource.
func (m *Monitor) ConfigureThreshold(r Resource, t Threshold) {
	m.thresholdsMu.Lock()
	defer m.thresholdsMu.Unlock()
	m.thresholds[r] = t
	logging.Info(resourcemonSubsystem, "threshold for %s: warning=%.1f critical=%.1f emergency=%.1f sustained=%s",
		r, t.Warning, t.Critical, t.Emergency, t.SustainedDuration)
}

// RegisterCache registers a cache for automatic clearing under memory
// pressure. The caller owns cache's lifetime and should Unregister it
// before dropping the last other reference.
func (m *Monitor) RegisterCache(name string, cache CacheClearer) {
	m.cachesMu.Lock()
	defer m.cachesMu.Unlock()
	m.caches[name] = cache
}

// UnregisterCache removes a previously registered cache.
func (m *Monitor) UnregisterCache(name string) {
	m.cachesMu.Lock()
	defer m.cachesMu.Unlock()
	delete(m.caches, name)
}

// Alerts returns a channel of resource pressure alerts.
func (m *Monitor) Alerts(buffer int) <-chan apicore.ResourceAlert {
	return m.alerts.Subscribe(buffer)
}

// Optimizations returns a channel of auto-optimization results.
func (m *Monitor) Optimizations(buffer int) <-chan apicore.OptimizationResult {
	return m.optimizations.Subscribe(buffer)
}

// Snapshots returns a channel of every sampled resource reading, for a
// caller (the performance metrics store) that wants to record resource
// usage continuously rather than only polling History.
func (m *Monitor) Snapshots(buffer int) <-chan Snapshot {
	return m.snapshots.Subscribe(buffer)
}

// History returns up to limit most-recent snapshots (all of them if
// limit <= 0), oldest first.
func (m *Monitor) History(limit int) []Snapshot {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	if limit <= 0 || limit > len(m.history) {
		limit = len(m.history)
	}
	out := make([]Snapshot, limit)
	copy(out, m.history[len(m.history)-limit:])
	return out
}

func (m *Monitor) recordSnapshot(s Snapshot) {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	m.history = append(m.history, s)
	if len(m.history) > historyCapacity {
		m.history = m.history[len(m.history)-historyCapacity:]
	}
}

// RunLoop samples every checkInterval until ctx is canceled, detecting
// pressure and triggering cleanup when autoOptimize is enabled (spec.md
// §4.G).
func (m *Monitor) RunLoop(ctx context.Context) {
	interval := m.checkInterval
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	snap, err := m.Sample(ctx)
	if err != nil {
		logging.Error(resourcemonSubsystem, err, "resource sampling failed")
		return
	}
	m.recordSnapshot(snap)
	m.snapshots.Publish(snap)

	pressured := m.detectPressure(snap)
	if m.autoOptimize && len(pressured) > 0 {
		m.TriggerCleanup(ctx, snap, pressured)
	}
}

func newAlertID() string { return uuid.NewString() }
