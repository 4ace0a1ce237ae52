package resourcemon

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"aegisrt/internal/apicore"
	"aegisrt/internal/catalog"
	"aegisrt/internal/registry"
	"aegisrt/pkg/logging"
)

// TriggerCleanup runs the auto-optimization actions appropriate to
// which resources are pressured, mirroring original_source's
// trigger_resource_cleanup dispatch: memory pressure forces GC, clears
// registered caches and suspends BACKGROUND services; CPU pressure
// suspends OPTIONAL/BACKGROUND services; GPU pressure clears caches and
// flags GPU task drainage (spec.md §4.G).
func (m *Monitor) TriggerCleanup(ctx context.Context, snap Snapshot, pressured []Resource) []apicore.OptimizationResult {
	var results []apicore.OptimizationResult

	for _, resource := range pressured {
		switch resource {
		case Memory:
			results = append(results, m.optimizeMemory(ctx)...)
		case CPU:
			results = append(results, m.suspendByClassification(ctx, catalog.Optional, catalog.Background)...)
		case GPU:
			results = append(results, m.optimizeGPU(ctx)...)
		}
	}

	for _, r := range results {
		m.optimizations.Publish(r)
	}
	return results
}

// optimizeMemory forces GC, clears caches, then escalates: BACKGROUND
// services are suspended first, and OPTIONAL services too if memory is
// still at or above its critical threshold after that first pass
// (spec.md §4.G).
func (m *Monitor) optimizeMemory(ctx context.Context) []apicore.OptimizationResult {
	var results []apicore.OptimizationResult
	results = append(results, m.forceGC())
	results = append(results, m.clearCaches())
	results = append(results, m.suspendByClassification(ctx, catalog.Background)...)

	if snap, err := m.Sample(ctx); err == nil {
		m.thresholdsMu.RLock()
		critical := m.thresholds[Memory].Critical
		m.thresholdsMu.RUnlock()
		if snap.MemoryPercent >= critical {
			results = append(results, m.suspendByClassification(ctx, catalog.Optional)...)
		}
	}
	return results
}

func (m *Monitor) forceGC() apicore.OptimizationResult {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	runtime.GC()
	runtime.ReadMemStats(&after)

	var freed float64
	if before.HeapAlloc > after.HeapAlloc {
		freed = float64(before.HeapAlloc - after.HeapAlloc)
	}

	logging.Info(resourcemonSubsystem, "forced GC freed %.0f bytes of heap", freed)
	return apicore.OptimizationResult{
		ID:             newAlertID(),
		Action:         string(ActionForceGC),
		Success:        true,
		Message:        fmt.Sprintf("garbage collection freed %.0f bytes", freed),
		ResourcesFreed: map[string]float64{"heap_bytes": freed},
		Timestamp:      time.Now(),
	}
}

func (m *Monitor) clearCaches() apicore.OptimizationResult {
	m.cachesMu.Lock()
	defer m.cachesMu.Unlock()

	cleared := 0
	for name, cache := range m.caches {
		cache.Clear()
		cleared++
		logging.Info(resourcemonSubsystem, "cleared cache %q under resource pressure", name)
	}

	return apicore.OptimizationResult{
		ID:             newAlertID(),
		Action:         string(ActionClearCache),
		Success:        true,
		Message:        fmt.Sprintf("cleared %d registered caches", cleared),
		ResourcesFreed: map[string]float64{"caches_cleared": float64(cleared)},
		Timestamp:      time.Now(),
	}
}

// suspendByClassification suspends every ACTIVE service whose
// classification is in kinds, skipping ESSENTIAL unconditionally
// (registry.Suspend already refuses ESSENTIAL, this just avoids the
// wasted call and log noise).
func (m *Monitor) suspendByClassification(ctx context.Context, kinds ...catalog.Classification) []apicore.OptimizationResult {
	if m.catalog == nil || m.registry == nil {
		return []apicore.OptimizationResult{{
			ID:        newAlertID(),
			Action:    string(ActionSuspendService),
			Success:   false,
			Message:   "no service registry available for suspension-based optimization",
			Timestamp: time.Now(),
		}}
	}

	allowed := make(map[catalog.Classification]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}

	suspended := 0
	for _, snap := range m.registry.Iter() {
		if snap.State != registry.Active {
			continue
		}
		svc, ok := m.catalog.Get(snap.Name)
		if !ok || !allowed[svc.Classification] {
			continue
		}
		if err := m.registry.Suspend(ctx, snap.Name); err != nil {
			logging.Warn(resourcemonSubsystem, "failed to suspend %s for optimization: %v", snap.Name, err)
			continue
		}
		suspended++
		logging.Info(resourcemonSubsystem, "suspended %s for resource optimization", snap.Name)
	}

	return []apicore.OptimizationResult{{
		ID:             newAlertID(),
		Action:         string(ActionSuspendService),
		Success:        true,
		Message:        fmt.Sprintf("suspended %d services for resource optimization", suspended),
		ResourcesFreed: map[string]float64{"services_suspended": float64(suspended)},
		Timestamp:      time.Now(),
	}}
}

// optimizeGPU clears registered caches (covering GPU-backed caches the
// caller registered) and reports that GPU-tagged task offloads should
// be drained; the actual drain decision belongs to the task
// orchestrator's KindGPU queue, which the resource monitor only signals.
func (m *Monitor) optimizeGPU(ctx context.Context) []apicore.OptimizationResult {
	result := m.clearCaches()
	result.Action = string(ActionDrainGPUOffloads)
	result.Message = "GPU pressure: cleared caches and flagged KindGPU offloads for draining"
	return []apicore.OptimizationResult{result}
}
