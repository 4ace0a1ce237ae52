// Package catalog loads declarative service configurations from an
// ordered search path of sources and resolves them against deployment
// profiles (spec.md §4.A).
package catalog

// Classification is one of ESSENTIAL, OPTIONAL or BACKGROUND.
type Classification string

const (
	Essential  Classification = "ESSENTIAL"
	Optional   Classification = "OPTIONAL"
	Background Classification = "BACKGROUND"
)

// ResourceRequirements describes the resources a service expects to
// consume; the Resource Monitor and Lifecycle Manager use these as
// scheduling hints, never as a hard container placement contract.
type ResourceRequirements struct {
	MemoryMB    int     `yaml:"memory_mb"`
	CPUCores    float64 `yaml:"cpu_cores"`
	GPUMemoryMB int     `yaml:"gpu_memory_mb"`
	DiskMB      int     `yaml:"disk_mb"`
	NetMbps     float64 `yaml:"net_mbps"`
}

// ServiceConfig is immutable once loaded (spec.md §3).
type ServiceConfig struct {
	Name                    string               `yaml:"name"`
	Classification          Classification       `yaml:"classification"`
	StartupPriority         int                  `yaml:"startup_priority"`
	Dependencies            []string             `yaml:"dependencies"`
	Resources               ResourceRequirements `yaml:"resource_requirements"`
	IdleTimeoutSeconds      *int                 `yaml:"idle_timeout"` // nil == never idle-suspend
	GracefulShutdownSeconds int                  `yaml:"graceful_shutdown_timeout"`
	MaxRestartAttempts      int                  `yaml:"max_restart_attempts"`
	ConsolidationGroup      string               `yaml:"consolidation_group,omitempty"`
	Enabled                 bool                 `yaml:"enabled"`
}

// DeploymentProfile names a policy selecting which classifications
// participate and hard caps on services/memory.
type DeploymentProfile struct {
	Name                   string           `yaml:"name"`
	EnabledClassifications []Classification `yaml:"enabled_classifications"`
	MaxMemoryMB            int              `yaml:"max_memory_mb"`
	MaxServices            int              `yaml:"max_services"`
	Flags                  map[string]bool  `yaml:"flags,omitempty"`
}

// sourceFile is the on-disk/ConfigMap shape each source decodes into.
type sourceFile struct {
	Services []ServiceConfig      `yaml:"services"`
	Profiles []DeploymentProfile  `yaml:"profiles"`
}

func defaultGracefulShutdown(s *ServiceConfig) {
	if s.GracefulShutdownSeconds <= 0 {
		s.GracefulShutdownSeconds = 10
	}
}

// permits reports whether classification c is allowed under profile p.
func (p DeploymentProfile) permits(c Classification) bool {
	for _, allowed := range p.EnabledClassifications {
		if allowed == c {
			return true
		}
	}
	return false
}
