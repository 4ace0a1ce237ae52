package depgraph

import "sort"

// baseStartupSeconds gives the estimated load time for a bare service of
// each classification, before the dependency-count and memory-footprint
// multipliers are applied (spec.md §4.B).
var baseStartupSeconds = map[string]float64{
	"ESSENTIAL":  0.5,
	"OPTIONAL":   2.0,
	"BACKGROUND": 1.0,
}

// StartupOrder returns every service name in topological order, ties
// broken by ascending StartupPriority then by name for full determinism.
func (g *Graph) StartupOrder() []string {
	// indegree[name] counts unresolved dependencies remaining.
	indegree := make(map[string]int, len(g.services))
	for name, deps := range g.forward {
		indegree[name] = len(deps)
	}

	remaining := g.sortedNames()
	var order []string

	for len(remaining) > 0 {
		var ready []string
		for _, name := range remaining {
			if indegree[name] == 0 {
				ready = append(ready, name)
			}
		}
		sort.SliceStable(ready, func(i, j int) bool {
			pi, pj := g.services[ready[i]].StartupPriority, g.services[ready[j]].StartupPriority
			if pi != pj {
				return pi < pj
			}
			return ready[i] < ready[j]
		})

		next := ready[0]
		order = append(order, next)
		remaining = removeName(remaining, next)
		for _, dependent := range g.reverse[next] {
			indegree[dependent]--
		}
	}

	return order
}

// ParallelGroups performs greedy levelization: each emitted group is the
// full set of remaining services with zero unresolved dependencies in
// the remaining set. Anomalies (a residual cycle that validation should
// have already rejected) are reported rather than causing an infinite
// loop: the lowest-priority remaining name is forced into its own group.
func (g *Graph) ParallelGroups() (groups [][]string, anomalies []string) {
	indegree := make(map[string]int, len(g.services))
	for name, deps := range g.forward {
		indegree[name] = len(deps)
	}

	remaining := make(map[string]bool, len(g.services))
	for name := range g.services {
		remaining[name] = true
	}

	for len(remaining) > 0 {
		var ready []string
		for name := range remaining {
			if indegree[name] == 0 {
				ready = append(ready, name)
			}
		}

		if len(ready) == 0 {
			// Residual cycle: force progress on the lowest-priority name.
			var names []string
			for name := range remaining {
				names = append(names, name)
			}
			sort.SliceStable(names, func(i, j int) bool {
				pi, pj := g.services[names[i]].StartupPriority, g.services[names[j]].StartupPriority
				if pi != pj {
					return pi > pj // lowest priority == highest number first
				}
				return names[i] < names[j]
			})
			forced := names[0]
			anomalies = append(anomalies, "residual cycle broken at "+forced)
			ready = []string{forced}
		}

		sort.Strings(ready)
		groups = append(groups, ready)
		for _, name := range ready {
			delete(remaining, name)
			for _, dependent := range g.reverse[name] {
				indegree[dependent]--
			}
		}
	}

	return groups, anomalies
}

// ShutdownOrder is the reverse of StartupOrder.
func (g *Graph) ShutdownOrder() []string {
	start := g.StartupOrder()
	out := make([]string, len(start))
	for i, name := range start {
		out[len(start)-1-i] = name
	}
	return out
}

// ServiceEstimate is one service's contribution to a critical-path
// estimate: base(classification) * (1 + 0.2*|deps|) * (1 + memory_mb/1000).
func (g *Graph) ServiceEstimate(name string) float64 {
	svc, ok := g.services[name]
	if !ok {
		return 0
	}
	base := baseStartupSeconds[string(svc.Classification)]
	if base == 0 {
		base = baseStartupSeconds["BACKGROUND"]
	}
	depFactor := 1 + 0.2*float64(len(g.forward[name]))
	memFactor := 1 + float64(svc.Resources.MemoryMB)/1000.0
	return base * depFactor * memFactor
}

// CriticalPathEstimate sums, over each parallel group, the maximum
// per-service estimate in that group — the wall-clock estimate for a
// fully-parallel startup respecting dependency ordering.
func (g *Graph) CriticalPathEstimate() float64 {
	groups, _ := g.ParallelGroups()
	var total float64
	for _, group := range groups {
		var max float64
		for _, name := range group {
			if est := g.ServiceEstimate(name); est > max {
				max = est
			}
		}
		total += max
	}
	return total
}

// ConsolidationGroups returns services sharing a non-empty
// ConsolidationGroup label, keyed by label, each sorted by name.
func (g *Graph) ConsolidationGroups() map[string][]string {
	out := make(map[string][]string)
	for _, name := range g.sortedNames() {
		label := g.services[name].ConsolidationGroup
		if label == "" {
			continue
		}
		out[label] = append(out[label], name)
	}
	return out
}

func removeName(names []string, target string) []string {
	out := make([]string, 0, len(names)-1)
	for _, n := range names {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}
