package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegisrt/internal/catalog"
)

func svc(name string, class catalog.Classification, priority int, deps ...string) catalog.ServiceConfig {
	return catalog.ServiceConfig{
		Name:            name,
		Classification:  class,
		StartupPriority: priority,
		Dependencies:    deps,
	}
}

func TestBuild_UnresolvedDependencyIsFatal(t *testing.T) {
	_, err := Build([]catalog.ServiceConfig{
		svc("api", catalog.Optional, 10, "missing"),
	})
	require.Error(t, err)
}

func TestBuild_CycleIsFatal(t *testing.T) {
	_, err := Build([]catalog.ServiceConfig{
		svc("a", catalog.Optional, 10, "b"),
		svc("b", catalog.Optional, 10, "c"),
		svc("c", catalog.Optional, 10, "a"),
	})
	require.Error(t, err)
}

func TestBuild_EssentialDependsOnOptionalIsWarningNotFatal(t *testing.T) {
	g, err := Build([]catalog.ServiceConfig{
		svc("core", catalog.Essential, 0, "cache"),
		svc("cache", catalog.Optional, 5),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, g.Warnings())
}

func TestStartupOrder_RespectsDependenciesAndPriority(t *testing.T) {
	g, err := Build([]catalog.ServiceConfig{
		svc("db", catalog.Essential, 0),
		svc("auth", catalog.Essential, 1, "db"),
		svc("api", catalog.Optional, 2, "auth"),
		svc("batch", catalog.Background, 0, "db"),
	})
	require.NoError(t, err)

	order := g.StartupOrder()
	pos := make(map[string]int)
	for i, name := range order {
		pos[name] = i
	}

	assert.Less(t, pos["db"], pos["auth"])
	assert.Less(t, pos["auth"], pos["api"])
	assert.Less(t, pos["db"], pos["batch"])
}

func TestParallelGroups_IndependentServicesShareAGroup(t *testing.T) {
	g, err := Build([]catalog.ServiceConfig{
		svc("db", catalog.Essential, 0),
		svc("cache", catalog.Essential, 0),
		svc("api", catalog.Optional, 0, "db", "cache"),
	})
	require.NoError(t, err)

	groups, anomalies := g.ParallelGroups()
	require.Empty(t, anomalies)
	require.Len(t, groups, 2)
	assert.ElementsMatch(t, []string{"db", "cache"}, groups[0])
	assert.Equal(t, []string{"api"}, groups[1])
}

func TestShutdownOrder_IsReverseOfStartup(t *testing.T) {
	g, err := Build([]catalog.ServiceConfig{
		svc("db", catalog.Essential, 0),
		svc("api", catalog.Optional, 0, "db"),
	})
	require.NoError(t, err)

	start := g.StartupOrder()
	shutdown := g.ShutdownOrder()
	require.Len(t, shutdown, len(start))
	for i, name := range start {
		assert.Equal(t, name, shutdown[len(shutdown)-1-i])
	}
}

func TestCriticalPathEstimate_SumsGroupMaxima(t *testing.T) {
	g, err := Build([]catalog.ServiceConfig{
		svc("db", catalog.Essential, 0),
		svc("api", catalog.Optional, 0, "db"),
	})
	require.NoError(t, err)

	estimate := g.CriticalPathEstimate()
	assert.Greater(t, estimate, 0.0)
	assert.InDelta(t, g.ServiceEstimate("db")+g.ServiceEstimate("api"), estimate, 1e-9)
}

func TestConsolidationGroups_GroupsByLabel(t *testing.T) {
	a := svc("worker-a", catalog.Background, 0)
	a.ConsolidationGroup = "workers"
	b := svc("worker-b", catalog.Background, 0)
	b.ConsolidationGroup = "workers"
	c := svc("solo", catalog.Background, 0)

	g, err := Build([]catalog.ServiceConfig{a, b, c})
	require.NoError(t, err)

	groups := g.ConsolidationGroups()
	assert.ElementsMatch(t, []string{"worker-a", "worker-b"}, groups["workers"])
	assert.NotContains(t, groups, "")
}
