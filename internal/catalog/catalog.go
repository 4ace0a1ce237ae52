package catalog

import (
	"fmt"
	"sort"
	"sync"

	"aegisrt/pkg/logging"
)

const catalogSubsystem = "Catalog"

var validClassifications = map[Classification]bool{
	Essential:  true,
	Optional:   true,
	Background: true,
}

// Catalog is the immutable-after-load result of merging every source in
// the ordered search path (spec.md §4.A). No I/O happens after Load.
type Catalog struct {
	mu       sync.RWMutex
	services map[string]ServiceConfig
	profiles map[string]DeploymentProfile
	profile  string // active profile name, set by ApplyProfile
	warnings []string
}

// Load merges sources in order; a later source's entries override an
// earlier source's entries by service name. Unknown enum values are
// normalized to BACKGROUND with a recorded warning. Duplicate names
// within a single source are rejected by the source itself. Dependency
// references are not checked here; the caller's depgraph pass rejects
// unresolved references and cycles, but not a dependency listed twice.
func Load(sources ...Source) (*Catalog, error) {
	c := &Catalog{
		services: make(map[string]ServiceConfig),
		profiles: make(map[string]DeploymentProfile),
	}

	for _, src := range sources {
		data, err := src.Load()
		if err != nil {
			return nil, fmt.Errorf("loading source %s: %w", src.Name(), err)
		}

		for _, svc := range data.Services {
			if svc.Name == "" {
				return nil, fmt.Errorf("source %s: service with empty name", src.Name())
			}
			if !validClassifications[svc.Classification] {
				c.warnings = append(c.warnings, fmt.Sprintf(
					"source %s: service %q has unknown classification %q, normalized to BACKGROUND",
					src.Name(), svc.Name, svc.Classification))
				svc.Classification = Background
			}
			if svc.Classification == Essential && svc.IdleTimeoutSeconds != nil {
				c.warnings = append(c.warnings, fmt.Sprintf(
					"source %s: ESSENTIAL service %q declared an idle_timeout; ignoring it",
					src.Name(), svc.Name))
				svc.IdleTimeoutSeconds = nil
			}
			defaultGracefulShutdown(&svc)
			c.services[svc.Name] = svc
		}

		for _, profile := range data.Profiles {
			c.profiles[profile.Name] = profile
		}
	}

	for _, w := range c.warnings {
		logging.Warn(catalogSubsystem, "%s", w)
	}

	return c, nil
}

// Warnings returns every normalization warning recorded during Load.
func (c *Catalog) Warnings() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// Get returns a service config by name.
func (c *Catalog) Get(name string) (ServiceConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	svc, ok := c.services[name]
	return svc, ok
}

// All returns every service config, sorted by name for determinism.
func (c *Catalog) All() []ServiceConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ServiceConfig, 0, len(c.services))
	for _, svc := range c.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ByClassification returns every service with the given classification,
// sorted by name.
func (c *Catalog) ByClassification(cl Classification) []ServiceConfig {
	var out []ServiceConfig
	for _, svc := range c.All() {
		if svc.Classification == cl {
			out = append(out, svc)
		}
	}
	return out
}

// Profile returns a deployment profile by name.
func (c *Catalog) Profile(name string) (DeploymentProfile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.profiles[name]
	return p, ok
}

// ForProfile returns the set of services enabled under a deployment
// profile: a service is enabled only if its classification is in the
// profile's permitted set and it does not exceed MaxServices. Services
// beyond MaxServices are dropped by ascending startup_priority first
// (i.e. highest-priority-number services are dropped).
func (c *Catalog) ForProfile(profileName string) ([]ServiceConfig, error) {
	profile, ok := c.Profile(profileName)
	if !ok {
		return nil, fmt.Errorf("deployment profile %q not found", profileName)
	}

	var permitted []ServiceConfig
	for _, svc := range c.All() {
		if profile.permits(svc.Classification) {
			svc.Enabled = true
			permitted = append(permitted, svc)
		}
	}

	sort.SliceStable(permitted, func(i, j int) bool {
		return permitted[i].StartupPriority < permitted[j].StartupPriority
	})

	if profile.MaxServices > 0 && len(permitted) > profile.MaxServices {
		dropped := permitted[profile.MaxServices:]
		permitted = permitted[:profile.MaxServices]
		for _, d := range dropped {
			logging.Warn(catalogSubsystem, "profile %q: dropping service %q, MaxServices=%d exceeded",
				profileName, d.Name, profile.MaxServices)
		}
	}

	c.mu.Lock()
	c.profile = profileName
	c.mu.Unlock()

	return permitted, nil
}
