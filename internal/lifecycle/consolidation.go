package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/google/uuid"

	"aegisrt/internal/catalog"
	"aegisrt/internal/depgraph"
	"aegisrt/internal/registry"
	"aegisrt/pkg/logging"
)

// stepFuncs carries sprig's string/list helpers (quote, join, upper) into
// the migration/rollback narrative templates below.
var stepFuncs = sprig.TxtFuncMap()

// renderStep executes a one-line narrative template against data. A
// template error collapses to the raw template text rather than failing
// the plan, since these strings are operator-facing narration only.
func renderStep(tmpl string, data any) string {
	t, err := template.New("step").Funcs(stepFuncs).Parse(tmpl)
	if err != nil {
		return tmpl
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return tmpl
	}
	return buf.String()
}

// OpportunityType names how a consolidation candidate set was
// discovered (spec.md §4.E).
type OpportunityType string

const (
	OpportunityDeclared        OpportunityType = "declared"
	OpportunityMemoryBased     OpportunityType = "memory_based"
	OpportunityDependencyBased OpportunityType = "dependency_based"
)

// Opportunity is a candidate set of services that might be consolidated.
type Opportunity struct {
	Type             OpportunityType
	Label            string
	Services         []string
	EstimatedSavings float64 // fraction, e.g. 0.15 == 15%
}

// Risk classifies how dangerous executing a ConsolidationPlan is.
type Risk string

const (
	RiskLow      Risk = "low"
	RiskMedium   Risk = "medium"
	RiskHigh     Risk = "high"
	RiskCritical Risk = "critical"
)

// ConsolidationPlan describes merging Secondaries into Primary.
type ConsolidationPlan struct {
	ID                 string
	Primary            string
	Secondaries        []string
	EstMemorySavingsMB float64
	EstCPUSavings      float64
	Risk               Risk
	MigrationSteps     []string
	RollbackSteps      []string
	APIContracts       []string
	Applied            bool
}

// memoryBucket returns which of the three footprint buckets (spec.md
// §4.E) a service's declared memory requirement falls into.
func memoryBucket(mb int) string {
	switch {
	case mb < 64:
		return "small"
	case mb <= 256:
		return "medium"
	default:
		return "large"
	}
}

// IdentifyOpportunities finds declared, memory-based and
// dependency-based consolidation candidates over graph.
func (m *Manager) IdentifyOpportunities(graph *depgraph.Graph) []Opportunity {
	var out []Opportunity

	for label, services := range graph.ConsolidationGroups() {
		out = append(out, Opportunity{
			Type:     OpportunityDeclared,
			Label:    label,
			Services: services,
		})
	}

	buckets := make(map[string][]string)
	for _, svc := range m.catalog.All() {
		bucket := memoryBucket(svc.Resources.MemoryMB)
		buckets[bucket] = append(buckets[bucket], svc.Name)
	}
	for bucket, names := range buckets {
		if len(names) >= 3 {
			sort.Strings(names)
			out = append(out, Opportunity{
				Type:             OpportunityMemoryBased,
				Label:            bucket,
				Services:         names,
				EstimatedSavings: 0.15,
			})
		}
	}

	if m.lazy != nil {
		for _, grouping := range m.dependencyBasedGroups() {
			out = append(out, Opportunity{
				Type:             OpportunityDependencyBased,
				Label:            grouping[0],
				Services:         grouping,
				EstimatedSavings: 0.20,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// dependencyBasedGroups finds services whose co-access sets overlap in
// at least two other services (spec.md §4.E).
func (m *Manager) dependencyBasedGroups() [][]string {
	patterns := m.lazy.UsagePatterns()
	var groups [][]string
	for i := range patterns {
		for j := i + 1; j < len(patterns); j++ {
			overlap := intersectCount(patterns[i].CoAccessedServices, patterns[j].CoAccessedServices)
			if overlap >= 2 {
				groups = append(groups, []string{patterns[i].ServiceName, patterns[j].ServiceName})
			}
		}
	}
	return groups
}

func intersectCount(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	count := 0
	for _, v := range b {
		if set[v] {
			count++
		}
	}
	return count
}

// classificationRank orders classifications for primary selection:
// ESSENTIAL > OPTIONAL > BACKGROUND.
func classificationRank(c catalog.Classification) int {
	switch c {
	case catalog.Essential:
		return 2
	case catalog.Optional:
		return 1
	default:
		return 0
	}
}

// Plan creates a ConsolidationPlan merging serviceNames into a chosen
// primary (spec.md §4.E `plan(services, type)`).
func (m *Manager) Plan(serviceNames []string, oppType OpportunityType) (*ConsolidationPlan, error) {
	if len(serviceNames) < 2 {
		return nil, fmt.Errorf("consolidation plan needs at least 2 services, got %d", len(serviceNames))
	}

	configs := make(map[string]catalog.ServiceConfig, len(serviceNames))
	for _, name := range serviceNames {
		cfg, ok := m.catalog.Get(name)
		if !ok {
			return nil, fmt.Errorf("consolidation plan: unknown service %q", name)
		}
		configs[name] = cfg
	}

	primary := m.selectPrimary(serviceNames, configs)
	var secondaries []string
	for _, name := range serviceNames {
		if name != primary {
			secondaries = append(secondaries, name)
		}
	}
	sort.Strings(secondaries)

	var memSavings float64
	for _, name := range secondaries {
		memSavings += float64(configs[name].Resources.MemoryMB) * 0.5
	}

	risk := m.assessRisk(configs, primary, secondaries)

	plan := &ConsolidationPlan{
		ID:                 uuid.NewString(),
		Primary:            primary,
		Secondaries:        secondaries,
		EstMemorySavingsMB: memSavings,
		EstCPUSavings:      0.1 * float64(len(secondaries)),
		Risk:               risk,
		MigrationSteps: []string{
			renderStep(`stop secondaries {{ join ", " .Secondaries | quote }} via graceful shutdown`, map[string]any{"Secondaries": secondaries}),
			renderStep(`register facade routes for {{ join ", " .Secondaries }} -> {{ .Primary | upper }}`, map[string]any{"Secondaries": secondaries, "Primary": primary}),
			"rewire dependent edges to primary",
		},
		RollbackSteps: []string{
			"remove facade routes",
			"restore dependent edges to secondaries",
			"reload secondaries through the registry",
		},
		APIContracts: serviceNames,
	}

	m.plansMu.Lock()
	m.plans[plan.ID] = plan
	m.plansMu.Unlock()

	return plan, nil
}

func (m *Manager) selectPrimary(names []string, configs map[string]catalog.ServiceConfig) string {
	best := names[0]
	bestScore := -1.0
	for _, name := range names {
		cfg := configs[name]
		score := float64(classificationRank(cfg.Classification)) * 100
		score -= float64(cfg.StartupPriority)
		score += float64(len(cfg.Dependencies)) // functionality breadth proxy
		if snap, ok := m.registry.Snapshot(name); ok && snap.State == registry.Active {
			score += 50
		}
		if score > bestScore {
			bestScore = score
			best = name
		}
	}
	return best
}

// assessRisk derives a Risk from classification sensitivity and
// dependency fan-in across the plan's participants.
func (m *Manager) assessRisk(configs map[string]catalog.ServiceConfig, primary string, secondaries []string) Risk {
	hasEssential := configs[primary].Classification == catalog.Essential
	maxFanIn := 0
	for _, name := range secondaries {
		if configs[name].Classification == catalog.Essential {
			hasEssential = true
		}
	}
	for name := range configs {
		if fanIn := len(configs[name].Dependencies); fanIn > maxFanIn {
			maxFanIn = fanIn
		}
	}

	switch {
	case hasEssential:
		return RiskCritical
	case maxFanIn >= 4:
		return RiskHigh
	case maxFanIn >= 2:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Validate gates execution: risk must be below critical, API contract
// names must be collision-free, and no secondary may list itself as its
// own dependent. It does not check that the rest of the dependency graph
// stays resolvable once secondaries are redirected to primary.
func (m *Manager) Validate(plan *ConsolidationPlan, graph *depgraph.Graph) (bool, []string) {
	var reasons []string

	if plan.Risk == RiskCritical {
		reasons = append(reasons, "risk is critical: plan involves an ESSENTIAL service")
	}

	seen := make(map[string]bool)
	for _, name := range plan.APIContracts {
		if seen[name] {
			reasons = append(reasons, fmt.Sprintf("duplicate contract name %q", name))
		}
		seen[name] = true
	}

	for _, secondary := range plan.Secondaries {
		for _, dependent := range graph.Dependents(secondary) {
			if dependent == plan.Primary {
				continue
			}
			// Every dependent must still resolve once secondary is
			// redirected to primary; primary's own deps must already
			// satisfy whatever secondary offered, which we can't verify
			// without a capability model, so we only check the rewired
			// edge itself doesn't create a self-loop.
			if dependent == secondary {
				reasons = append(reasons, fmt.Sprintf("self-dependency detected for %q", secondary))
			}
		}
	}

	return len(reasons) == 0, reasons
}

// Apply executes plan: secondaries are stopped via graceful shutdown,
// then registry lookups for their names are redirected to primary
// through a facade routing table (spec.md §4.E `apply(plan_id)`). On any
// step failure in a high-risk plan, Apply halts before any facade route
// is installed and returns the error; secondaries it already stopped
// stay SHUTDOWN and are not restarted by Apply.
func (m *Manager) Apply(ctx context.Context, planID string) error {
	m.plansMu.Lock()
	plan, ok := m.plans[planID]
	m.plansMu.Unlock()
	if !ok {
		return fmt.Errorf("consolidation plan %q not found", planID)
	}
	if plan.Applied {
		return nil
	}

	var stopped []string
	for _, secondary := range plan.Secondaries {
		if err := m.ShutdownOne(ctx, secondary, 10*time.Second); err != nil {
			if plan.Risk == RiskHigh || plan.Risk == RiskCritical {
				m.rollbackFacades(stopped)
				logging.Audit(logging.AuditEvent{
					Action:  "consolidation_apply",
					Outcome: "failure",
					Target:  plan.ID,
					Error:   err.Error(),
				})
				return fmt.Errorf("consolidation %s: stopping secondary %q: %w", plan.ID, secondary, err)
			}
			logging.Warn(lifecycleSubsystem, "consolidation %s: secondary %q did not stop cleanly: %v", plan.ID, secondary, err)
		}
		stopped = append(stopped, secondary)
	}

	m.facadesMu.Lock()
	for _, secondary := range plan.Secondaries {
		m.facades[secondary] = plan.Primary
	}
	m.facadesMu.Unlock()

	plan.Applied = true
	logging.Audit(logging.AuditEvent{
		Action:  "consolidation_apply",
		Outcome: "success",
		Target:  plan.ID,
		Details: fmt.Sprintf("merged %v into %s", plan.Secondaries, plan.Primary),
	})
	return nil
}

func (m *Manager) rollbackFacades(secondaries []string) {
	m.facadesMu.Lock()
	defer m.facadesMu.Unlock()
	for _, secondary := range secondaries {
		delete(m.facades, secondary)
	}
}

// Resolve returns the name a caller should actually look up in the
// registry for name: the plan's primary if name was consolidated away,
// or name itself otherwise. Post-consolidation, callers keep using
// pre-consolidation names transparently (spec.md §4.E).
func (m *Manager) Resolve(name string) string {
	m.facadesMu.RLock()
	defer m.facadesMu.RUnlock()
	if primary, ok := m.facades[name]; ok {
		return primary
	}
	return name
}

// Get is the consolidation-aware counterpart to the registry's Get: it
// resolves name through any active facade before delegating.
func (m *Manager) Get(ctx context.Context, name string) (any, error) {
	return m.loadOne(ctx, m.Resolve(name))
}
