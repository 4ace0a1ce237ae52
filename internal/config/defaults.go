package config

import "time"

// Default returns the engine configuration used when no config.yaml
// is found, matching original_source's built-in threshold defaults
// (spec.md §4.G).
func Default() EngineConfig {
	return EngineConfig{
		CatalogDir:    "catalog",
		Profile:       "default",
		CheckInterval: 5 * time.Second,
		DiskPath:      "/",
		AutoOptimize:  true,
		Thresholds: map[string]Threshold{
			"cpu":    {Warning: 70, Critical: 85, Emergency: 95, SustainedDuration: 30 * time.Second},
			"memory": {Warning: 75, Critical: 90, Emergency: 98, SustainedDuration: 20 * time.Second},
			"disk":   {Warning: 80, Critical: 90, Emergency: 95, SustainedDuration: 60 * time.Second},
			"gpu":    {Warning: 80, Critical: 90, Emergency: 95, SustainedDuration: 30 * time.Second},
		},
	}
}
