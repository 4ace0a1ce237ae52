// Package config loads the top-level engine configuration: the active
// deployment profile, resource-monitor threshold overrides and lazy
// controller preload rules (spec.md §6 "Configuration inputs").
//
// This sits above the declarative service catalog (internal/catalog):
// the catalog describes individual services, this package describes
// how the engine as a whole should run them.
package config

import "time"

// EngineConfig is the root configuration document, normally loaded
// from config.yaml in a search-path directory via Load.
type EngineConfig struct {
	CatalogDir    string               `yaml:"catalog_dir"`
	Profile       string               `yaml:"profile"`
	CheckInterval time.Duration        `yaml:"check_interval"`
	DiskPath      string               `yaml:"disk_path"`
	AutoOptimize  bool                 `yaml:"auto_optimize"`
	Thresholds    map[string]Threshold `yaml:"thresholds"`
	PreloadRules  []PreloadRule        `yaml:"preload_rules"`
}

// Threshold mirrors resourcemon.Threshold's wire shape so this package
// has no import-time dependency on internal/resourcemon; the engine
// composition root converts between the two at startup.
type Threshold struct {
	Warning           float64       `yaml:"warning"`
	Critical          float64       `yaml:"critical"`
	Emergency         float64       `yaml:"emergency"`
	SustainedDuration time.Duration `yaml:"sustained_duration"`
}

// PreloadRule mirrors lazyload.PreloadRule's wire shape for the same
// reason.
type PreloadRule struct {
	Trigger  string   `yaml:"trigger"`
	Services []string `yaml:"services"`
	Priority int      `yaml:"priority"`
}
