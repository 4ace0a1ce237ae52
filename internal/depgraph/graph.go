// Package depgraph builds the forward/reverse dependency DAG over a
// service catalog and computes startup order, parallel launch groups,
// shutdown order and critical-path estimates (spec.md §4.B).
package depgraph

import (
	"fmt"
	"sort"

	"aegisrt/internal/apicore"
	"aegisrt/internal/catalog"
)

// Graph is the validated dependency DAG for one catalog snapshot. It is
// immutable after Build; concurrent reads need no synchronization.
type Graph struct {
	services map[string]catalog.ServiceConfig
	forward  map[string][]string // name -> its dependencies
	reverse  map[string][]string // name -> names that depend on it
	warnings []string
}

// Build validates and indexes every service in svcs. Unresolved
// dependency names are fatal (apicore.ErrServiceNotFound wrapped);
// cycles are fatal (apicore.ErrCycleDetected wrapped); an ESSENTIAL
// service depending on a non-ESSENTIAL one is a recorded warning only.
func Build(svcs []catalog.ServiceConfig) (*Graph, error) {
	g := &Graph{
		services: make(map[string]catalog.ServiceConfig, len(svcs)),
		forward:  make(map[string][]string, len(svcs)),
		reverse:  make(map[string][]string, len(svcs)),
	}

	for _, svc := range svcs {
		g.services[svc.Name] = svc
	}

	for _, svc := range svcs {
		deps := make([]string, len(svc.Dependencies))
		copy(deps, svc.Dependencies)
		g.forward[svc.Name] = deps
		for _, dep := range deps {
			if _, ok := g.services[dep]; !ok {
				return nil, fmt.Errorf("service %q depends on unresolved service %q: %w", svc.Name, dep, apicore.ErrServiceNotFound)
			}
			g.reverse[dep] = append(g.reverse[dep], svc.Name)
		}
	}

	if cycle := g.detectCycle(); cycle != nil {
		return nil, fmt.Errorf("dependency cycle detected: %v: %w", cycle, apicore.ErrCycleDetected)
	}

	for _, svc := range svcs {
		if svc.Classification != catalog.Essential {
			continue
		}
		for _, dep := range g.forward[svc.Name] {
			if g.services[dep].Classification != catalog.Essential {
				g.warnings = append(g.warnings, fmt.Sprintf(
					"ESSENTIAL service %q depends on non-ESSENTIAL service %q", svc.Name, dep))
			}
		}
	}

	return g, nil
}

// Warnings returns every validation warning recorded during Build.
func (g *Graph) Warnings() []string {
	out := make([]string, len(g.warnings))
	copy(out, g.warnings)
	return out
}

// Dependencies returns the immediate dependencies of name.
func (g *Graph) Dependencies(name string) []string {
	out := make([]string, len(g.forward[name]))
	copy(out, g.forward[name])
	return out
}

// Dependents returns the services that directly depend on name.
func (g *Graph) Dependents(name string) []string {
	out := make([]string, len(g.reverse[name]))
	copy(out, g.reverse[name])
	sort.Strings(out)
	return out
}

const (
	white = iota
	gray
	black
)

// detectCycle runs three-color DFS over the forward edges and returns
// the first cycle found as a slice of service names, or nil if acyclic.
func (g *Graph) detectCycle() []string {
	color := make(map[string]int, len(g.services))
	var path []string
	var cycle []string

	names := g.sortedNames()

	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = gray
		path = append(path, name)
		for _, dep := range g.forward[name] {
			switch color[dep] {
			case white:
				if visit(dep) {
					return true
				}
			case gray:
				// Found the back edge; extract the cycle from path.
				for i, n := range path {
					if n == dep {
						cycle = append([]string{}, path[i:]...)
						cycle = append(cycle, dep)
						break
					}
				}
				return true
			}
		}
		path = path[:len(path)-1]
		color[name] = black
		return false
	}

	for _, name := range names {
		if color[name] == white {
			if visit(name) {
				return cycle
			}
		}
	}
	return nil
}

func (g *Graph) sortedNames() []string {
	names := make([]string, 0, len(g.services))
	for name := range g.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
