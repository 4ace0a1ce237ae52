package lifecycle

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"aegisrt/internal/depgraph"
	"aegisrt/pkg/logging"
)

const lifecycleSubsystem = "Lifecycle"

// Start computes the startup sequence for mode via the dependency
// graph analyzer, then launches each parallel group in turn: every
// service within a group is loaded concurrently and the manager waits
// for the whole group before moving to the next (spec.md §4.E).
func (m *Manager) Start(ctx context.Context, mode StartupMode) (*StartupReport, error) {
	included := IncludedServices(m.catalog, mode)

	graph, err := depgraph.Build(included)
	if err != nil {
		return nil, fmt.Errorf("building dependency graph for mode %s: %w", mode, err)
	}
	for _, w := range graph.Warnings() {
		logging.Warn(lifecycleSubsystem, "%s", w)
	}

	groups, anomalies := graph.ParallelGroups()
	for _, a := range anomalies {
		logging.Warn(lifecycleSubsystem, "parallel group anomaly: %s", a)
	}

	report := &StartupReport{
		Mode:              mode,
		PerServiceElapsed: make(map[string]time.Duration),
		Failures:          make(map[string]error),
		EstimatedSeconds:  graph.CriticalPathEstimate(),
	}

	overallStart := time.Now()
	for _, group := range groups {
		groupStart := time.Now()

		eg, egCtx := errgroup.WithContext(ctx)

		type timing struct {
			name string
			d    time.Duration
			err  error
		}
		results := make(chan timing, len(group))

		for _, name := range group {
			name := name
			eg.Go(func() error {
				start := time.Now()
				_, loadErr := m.loadOne(egCtx, name)
				results <- timing{name: name, d: time.Since(start), err: loadErr}
				return nil // collect all errors individually; don't abort siblings
			})
		}
		_ = eg.Wait()
		close(results)

		for t := range results {
			report.PerServiceElapsed[t.name] = t.d
			if t.err != nil {
				report.Failures[t.name] = t.err
				logging.Error(lifecycleSubsystem, t.err, "failed to start service %s", t.name)
			}
		}

		report.Groups = append(report.Groups, GroupResult{Services: group, Duration: time.Since(groupStart)})
	}
	report.ActualSeconds = time.Since(overallStart).Seconds()

	m.monitorsOnce.Do(func() {
		if m.onMonitors != nil {
			m.onMonitors()
		}
	})

	return report, nil
}

// loadOne is the per-service entry point used during start(): it goes
// through the lazy loading controller when present so preload/usage
// tracking observes startup-time accesses too, falling back to the bare
// registry otherwise.
func (m *Manager) loadOne(ctx context.Context, name string) (any, error) {
	if m.lazy != nil {
		return m.lazy.Get(ctx, name)
	}
	return m.registry.Get(ctx, name)
}
