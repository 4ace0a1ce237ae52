package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"aegisrt/internal/catalog"
	"aegisrt/internal/config"
	"aegisrt/internal/lifecycle"
	"aegisrt/internal/registry"
)

func buildCatalogDir(t *testing.T, services []catalog.ServiceConfig) string {
	t.Helper()
	dir := t.TempDir()
	servicesDir := filepath.Join(dir, "services")
	require.NoError(t, os.MkdirAll(servicesDir, 0o755))

	for _, svc := range services {
		data, err := yaml.Marshal(svc)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(servicesDir, svc.Name+".yaml"), data, 0o644))
	}

	profiles := []catalog.DeploymentProfile{{
		Name:                   "default",
		EnabledClassifications: []catalog.Classification{catalog.Essential, catalog.Optional, catalog.Background},
		MaxServices:            100,
	}}
	data, err := yaml.Marshal(profiles)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profiles.yaml"), data, 0o644))
	return dir
}

func stubFactories(svc catalog.ServiceConfig) registry.Factory {
	return func(ctx context.Context) (any, error) {
		return svc.Name + "-instance", nil
	}
}

func newTestEngine(t *testing.T, services []catalog.ServiceConfig) *Engine {
	t.Helper()
	dir := buildCatalogDir(t, services)
	cfg := config.Default()
	cfg.CatalogDir = dir
	cfg.Profile = "default"
	cfg.CheckInterval = 10 * time.Millisecond

	e, err := New(cfg, func(svc catalog.ServiceConfig) registry.Factory {
		return stubFactories(svc)
	})
	require.NoError(t, err)
	return e
}

func TestNew_WiresAllComponents(t *testing.T) {
	e := newTestEngine(t, []catalog.ServiceConfig{
		{Name: "db", Classification: catalog.Essential, Enabled: true},
		{Name: "cache", Classification: catalog.Optional, Enabled: true, Dependencies: []string{"db"}},
	})

	assert.NotNil(t, e.Catalog)
	assert.NotNil(t, e.Graph)
	assert.NotNil(t, e.Registry)
	assert.NotNil(t, e.Lazy)
	assert.NotNil(t, e.Lifecycle)
	assert.NotNil(t, e.TaskOrch)
	assert.NotNil(t, e.ResMon)
	assert.NotNil(t, e.Metrics)
	assert.NotNil(t, e.Detector)
	assert.NotNil(t, e.Exporter)
}

func TestNew_RejectsMissingFactory(t *testing.T) {
	dir := buildCatalogDir(t, []catalog.ServiceConfig{
		{Name: "db", Classification: catalog.Essential, Enabled: true},
	})
	cfg := config.Default()
	cfg.CatalogDir = dir
	cfg.Profile = "default"

	_, err := New(cfg, func(svc catalog.ServiceConfig) registry.Factory { return nil })
	assert.Error(t, err)
}

func TestEngine_StartAndShutdown(t *testing.T) {
	e := newTestEngine(t, []catalog.ServiceConfig{
		{Name: "db", Classification: catalog.Essential, Enabled: true},
	})

	ctx := context.Background()
	report, err := e.Start(ctx, lifecycle.EssentialOnly)
	require.NoError(t, err)
	assert.NotEmpty(t, report.Groups)

	snap := e.Snapshot()
	require.Len(t, snap.Services, 1)
	assert.Equal(t, "ACTIVE", snap.Services[0].State)

	results := e.Shutdown(ctx, time.Second)
	assert.NoError(t, results["db"])
}

func TestEngine_SnapshotIncludesRecentAlerts(t *testing.T) {
	e := newTestEngine(t, []catalog.ServiceConfig{
		{Name: "db", Classification: catalog.Essential, Enabled: true},
	})
	ctx := context.Background()
	_, err := e.Start(ctx, lifecycle.EssentialOnly)
	require.NoError(t, err)
	defer e.Shutdown(ctx, time.Second)

	time.Sleep(20 * time.Millisecond)
	snap := e.Snapshot()
	assert.NotNil(t, snap.RecentAlerts)
}
