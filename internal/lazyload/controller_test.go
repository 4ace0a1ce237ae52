package lazyload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegisrt/internal/catalog"
	"aegisrt/internal/registry"
)

func mustRegister(t *testing.T, r *registry.Registry, name string, class catalog.Classification) {
	t.Helper()
	require.NoError(t, r.Register(catalog.ServiceConfig{
		Name:                    name,
		Classification:          class,
		Enabled:                 true,
		GracefulShutdownSeconds: 1,
		MaxRestartAttempts:      3,
	}, func(ctx context.Context) (any, error) {
		return name + "-instance", nil
	}))
}

func TestGet_TracksCacheHitsAndMisses(t *testing.T) {
	r := registry.New()
	mustRegister(t, r, "svc", catalog.Optional)

	c := New(r, 10)
	_, err := c.Get(context.Background(), "svc")
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "svc")
	require.NoError(t, err)

	m := c.Metrics()
	assert.EqualValues(t, 1, m.CacheMisses)
	assert.EqualValues(t, 1, m.CacheHits)
}

func TestGet_EvictsLeastRecentlyUsedOverCapacity(t *testing.T) {
	r := registry.New()
	mustRegister(t, r, "a", catalog.Optional)
	mustRegister(t, r, "b", catalog.Optional)
	mustRegister(t, r, "c", catalog.Optional)

	c := New(r, 2)
	ctx := context.Background()
	_, err := c.Get(ctx, "a")
	require.NoError(t, err)
	_, err = c.Get(ctx, "b")
	require.NoError(t, err)
	_, err = c.Get(ctx, "c")
	require.NoError(t, err)

	snap, ok := r.Snapshot("a")
	require.True(t, ok)
	assert.Equal(t, registry.Suspended, snap.State)
}

func TestRecordAccess_BuildsCoAccessWithinSessionWindow(t *testing.T) {
	r := registry.New()
	mustRegister(t, r, "a", catalog.Optional)
	mustRegister(t, r, "b", catalog.Optional)

	c := New(r, 10)
	ctx := context.Background()
	_, err := c.Get(ctx, "a")
	require.NoError(t, err)
	_, err = c.Get(ctx, "b")
	require.NoError(t, err)

	patterns := c.UsagePatterns()
	var aPattern UsagePatternView
	for _, p := range patterns {
		if p.ServiceName == "a" {
			aPattern = p
		}
	}
	assert.Contains(t, aPattern.CoAccessedServices, "b")
}

func TestTopScorers_OnlyAboveThreshold(t *testing.T) {
	r := registry.New()
	mustRegister(t, r, "hot", catalog.Optional)
	mustRegister(t, r, "cold", catalog.Optional)

	c := New(r, 10)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := c.Get(ctx, "hot")
		require.NoError(t, err)
	}

	scored := c.TopScorers()
	var names []string
	for _, s := range scored {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "hot")
}

func TestTriggerPreload_BestEffortLoadsConfiguredServices(t *testing.T) {
	r := registry.New()
	mustRegister(t, r, "a", catalog.Optional)
	mustRegister(t, r, "b", catalog.Optional)

	c := New(r, 10)
	c.ConfigurePreloadRules([]PreloadRule{
		{Trigger: TriggerStartup, Services: []string{"a"}, Priority: 10},
		{Trigger: TriggerStartup, Services: []string{"b"}, Priority: 20},
	})

	loaded := c.TriggerPreload(context.Background(), TriggerStartup)
	assert.Equal(t, []string{"a", "b"}, loaded)

	m := c.Metrics()
	assert.EqualValues(t, 2, m.ServicesPreloaded)
}
