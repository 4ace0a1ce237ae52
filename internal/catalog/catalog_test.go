package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name     string
	services []ServiceConfig
	profiles []DeploymentProfile
}

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) Load() (sourceFile, error) {
	return sourceFile{Services: f.services, Profiles: f.profiles}, nil
}

func TestLoad_LaterSourceOverridesEarlierByName(t *testing.T) {
	first := &fakeSource{name: "first", services: []ServiceConfig{
		{Name: "db", Classification: Essential, StartupPriority: 1},
	}}
	second := &fakeSource{name: "second", services: []ServiceConfig{
		{Name: "db", Classification: Essential, StartupPriority: 99},
	}}

	cat, err := Load(first, second)
	require.NoError(t, err)

	svc, ok := cat.Get("db")
	require.True(t, ok)
	assert.Equal(t, 99, svc.StartupPriority)
}

func TestLoad_NormalizesUnknownClassificationToBackground(t *testing.T) {
	src := &fakeSource{name: "src", services: []ServiceConfig{
		{Name: "mystery", Classification: Classification("WEIRD")},
	}}

	cat, err := Load(src)
	require.NoError(t, err)

	svc, ok := cat.Get("mystery")
	require.True(t, ok)
	assert.Equal(t, Background, svc.Classification)
	assert.NotEmpty(t, cat.Warnings())
}

func TestLoad_EssentialServiceIdleTimeoutIsIgnored(t *testing.T) {
	idle := 30
	src := &fakeSource{name: "src", services: []ServiceConfig{
		{Name: "core", Classification: Essential, IdleTimeoutSeconds: &idle},
	}}

	cat, err := Load(src)
	require.NoError(t, err)

	svc, ok := cat.Get("core")
	require.True(t, ok)
	assert.Nil(t, svc.IdleTimeoutSeconds)
}

func TestByClassification_FiltersAndSorts(t *testing.T) {
	src := &fakeSource{name: "src", services: []ServiceConfig{
		{Name: "z-opt", Classification: Optional},
		{Name: "a-opt", Classification: Optional},
		{Name: "core", Classification: Essential},
	}}

	cat, err := Load(src)
	require.NoError(t, err)

	opts := cat.ByClassification(Optional)
	require.Len(t, opts, 2)
	assert.Equal(t, "a-opt", opts[0].Name)
	assert.Equal(t, "z-opt", opts[1].Name)
}

func TestForProfile_UnknownProfileErrors(t *testing.T) {
	cat, err := Load(&fakeSource{name: "src"})
	require.NoError(t, err)

	_, err = cat.ForProfile("nonexistent")
	assert.Error(t, err)
}

func TestForProfile_PermitsByClassificationAndCapsAtMaxServices(t *testing.T) {
	src := &fakeSource{
		name: "src",
		services: []ServiceConfig{
			{Name: "core", Classification: Essential, StartupPriority: 0},
			{Name: "opt-low", Classification: Optional, StartupPriority: 10},
			{Name: "opt-high", Classification: Optional, StartupPriority: 90},
			{Name: "bg", Classification: Background, StartupPriority: 50},
		},
		profiles: []DeploymentProfile{
			{Name: "slim", EnabledClassifications: []Classification{Essential, Optional}, MaxServices: 2},
		},
	}

	cat, err := Load(src)
	require.NoError(t, err)

	resolved, err := cat.ForProfile("slim")
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, "core", resolved[0].Name)
	assert.Equal(t, "opt-low", resolved[1].Name)
	for _, svc := range resolved {
		assert.True(t, svc.Enabled)
	}
}
