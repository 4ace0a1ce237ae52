// Package engine wires the eight components (catalog, dependency
// graph, registry, lazy controller, lifecycle manager, task
// orchestrator, resource monitor, metrics store) into one runnable
// composition root, mirroring control flow from spec.md §2:
// configuration -> catalog -> dependency analyzer builds a plan ->
// lifecycle manager drives startup through the lazy controller using
// the registry; at runtime the resource monitor observes the system
// and feeds the lifecycle manager; the task orchestrator handles
// off-main-thread work; the metrics store records and analyzes
// continuously.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"aegisrt/internal/apicore"
	"aegisrt/internal/catalog"
	"aegisrt/internal/config"
	"aegisrt/internal/depgraph"
	"aegisrt/internal/lazyload"
	"aegisrt/internal/lifecycle"
	"aegisrt/internal/metrics"
	"aegisrt/internal/registry"
	"aegisrt/internal/resourcemon"
	"aegisrt/internal/taskorch"
	"aegisrt/pkg/logging"
)

const engineSubsystem = "Engine"

// lazyCacheCapacity bounds the LRU held by the lazy controller,
// independent of how many services the catalog declares.
const lazyCacheCapacity = 64

// Engine is the running composition of every component. It is built
// once via New and driven through Start/Run/Shutdown.
type Engine struct {
	cfg config.EngineConfig

	Catalog   *catalog.Catalog
	Graph     *depgraph.Graph
	Registry  *registry.Registry
	Lazy      *lazyload.Controller
	Lifecycle *lifecycle.Manager
	TaskOrch  *taskorch.Orchestrator
	ResMon    *resourcemon.Monitor
	Metrics   *metrics.Store
	Detector  *metrics.Detector
	Exporter  *metrics.Exporter

	alerts           alertHistory
	cancelBackground context.CancelFunc
	tracerProvider   *sdktrace.TracerProvider
}

// FactoryProvider resolves a service name to the Factory that
// constructs its instance. The engine itself owns no knowledge of how
// any individual service is built; that is supplied by the caller
// embedding this module (spec.md §6 "register(name, factory,
// config)").
type FactoryProvider func(svc catalog.ServiceConfig) registry.Factory

// New loads the catalog from cfg.CatalogDir, builds the dependency
// graph, and wires every component together. It does not start
// anything; call Start to run the startup sequence and Run to begin
// the background monitors.
func New(cfg config.EngineConfig, factories FactoryProvider) (*Engine, error) {
	cat, err := catalog.Load(catalog.NewFileSource(cfg.CatalogDir))
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", apicore.NewConfigurationError("", err.Error()))
	}

	services, err := cat.ForProfile(cfg.Profile)
	if err != nil {
		return nil, fmt.Errorf("resolving profile %q: %w", cfg.Profile, err)
	}

	graph, err := depgraph.Build(services)
	if err != nil {
		return nil, fmt.Errorf("building dependency graph: %w", apicore.NewConfigurationError("", err.Error()))
	}
	for _, w := range graph.Warnings() {
		logging.Warn(engineSubsystem, "%s", w)
	}

	reg := registry.New()
	for _, svc := range services {
		if !svc.Enabled {
			continue
		}
		factory := factories(svc)
		if factory == nil {
			return nil, apicore.NewConfigurationError(svc.Name, "no factory provided for enabled service")
		}
		if err := reg.Register(svc, factory); err != nil {
			return nil, fmt.Errorf("registering %s: %w", svc.Name, err)
		}
	}

	lazy := lazyload.New(reg, lazyCacheCapacity)
	lazy.ConfigurePreloadRules(convertPreloadRules(cfg.PreloadRules))

	store := metrics.NewStore()
	detector := metrics.NewDetector(store)
	exporter := metrics.NewExporter()
	store.Subscribe(exporter.Observe)

	orch := taskorch.New()

	e := &Engine{
		cfg:      cfg,
		Catalog:  cat,
		Graph:    graph,
		Registry: reg,
		Lazy:     lazy,
		TaskOrch: orch,
		Metrics:  store,
		Detector: detector,
		Exporter: exporter,
	}

	e.ResMon = resourcemon.New(cat, reg,
		resourcemon.WithDiskPath(cfg.DiskPath),
		resourcemon.WithCheckInterval(cfg.CheckInterval),
		resourcemon.WithAutoOptimization(cfg.AutoOptimize),
	)
	for name, t := range cfg.Thresholds {
		e.ResMon.ConfigureThreshold(resourcemon.Resource(name), resourcemon.Threshold{
			Warning:           t.Warning,
			Critical:          t.Critical,
			Emergency:         t.Emergency,
			SustainedDuration: t.SustainedDuration,
		})
	}

	e.Lifecycle = lifecycle.New(cat, reg, lazy, e.startBackgroundMonitors)

	e.tracerProvider = sdktrace.NewTracerProvider()
	otel.SetTracerProvider(e.tracerProvider)

	return e, nil
}

func convertPreloadRules(rules []config.PreloadRule) []lazyload.PreloadRule {
	out := make([]lazyload.PreloadRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, lazyload.PreloadRule{
			Trigger:  lazyload.Trigger(r.Trigger),
			Services: r.Services,
			Priority: r.Priority,
		})
	}
	return out
}

// Start runs the lifecycle manager's startup sequence under mode. Its
// onMonitors callback (wired in New) starts the idle detector and
// resource monitor loops exactly once, on the first successful start.
func (e *Engine) Start(ctx context.Context, mode lifecycle.StartupMode) (*lifecycle.StartupReport, error) {
	logging.Info(engineSubsystem, "starting in %s mode", mode)
	report, err := e.Lifecycle.Start(ctx, mode)
	if err != nil {
		return report, err
	}
	logging.Info(engineSubsystem, "startup complete: %d groups, %.2fs actual vs %.2fs estimated",
		len(report.Groups), report.ActualSeconds, report.EstimatedSeconds)
	return report, nil
}

// startBackgroundMonitors launches the idle sweep, resource sampling
// and regression detection loops. It is invoked once by the lifecycle
// manager after the first startup completes (spec.md §4.E step 4).
func (e *Engine) startBackgroundMonitors() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancelBackground = cancel

	go e.Lifecycle.RunIdleLoop(ctx, 30*time.Second)
	go e.ResMon.RunLoop(ctx)
	go e.Detector.RunLoop(ctx)
	go e.recordAlerts(ctx)
	go e.recordResourceSamples(ctx)
	logging.Info(engineSubsystem, "background monitors started: idle sweep, resource monitor, regression detector")
}

// recordAlerts drains the resource monitor's alert channel into the
// engine's bounded recent-alerts history for Snapshot to read.
func (e *Engine) recordAlerts(ctx context.Context) {
	ch := e.ResMon.Alerts(16)
	for {
		select {
		case <-ctx.Done():
			return
		case alert := <-ch:
			e.alerts.record(alert)
		}
	}
}

// recordResourceSamples feeds every resource monitor sample into the
// performance metrics store, so the /metrics endpoint has continuous
// data instead of an empty store (spec.md §2/§4.H). These samples carry
// no service name, so the regression detector, which analyzes
// per-service metrics only, does not examine them.
func (e *Engine) recordResourceSamples(ctx context.Context) {
	ch := e.ResMon.Snapshots(16)
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			e.Metrics.Record(metrics.Metric{Name: "cpu_percent", Value: snap.CPUPercent, Kind: metrics.KindGauge, Timestamp: snap.Timestamp, Unit: "percent"})
			e.Metrics.Record(metrics.Metric{Name: "memory_percent", Value: snap.MemoryPercent, Kind: metrics.KindGauge, Timestamp: snap.Timestamp, Unit: "percent"})
			e.Metrics.Record(metrics.Metric{Name: "disk_percent", Value: snap.DiskPercent, Kind: metrics.KindGauge, Timestamp: snap.Timestamp, Unit: "percent"})
			if snap.GPUPercent != nil {
				e.Metrics.Record(metrics.Metric{Name: "gpu_percent", Value: *snap.GPUPercent, Kind: metrics.KindGauge, Timestamp: snap.Timestamp, Unit: "percent"})
			}
		}
	}
}

// Shutdown cancels the background monitors and drives a full graceful
// shutdown of every service in reverse dependency order, then waits
// (up to totalTimeout) for any in-flight task-orchestrator work to
// drain (spec.md §5 cancellation policy).
func (e *Engine) Shutdown(ctx context.Context, totalTimeout time.Duration) map[string]error {
	if e.cancelBackground != nil {
		e.cancelBackground()
	}

	results := e.Lifecycle.ShutdownAll(ctx, e.Graph.ShutdownOrder(), totalTimeout)

	if e.tracerProvider != nil {
		if err := e.tracerProvider.Shutdown(ctx); err != nil {
			logging.Warn(engineSubsystem, "tracer provider shutdown: %v", err)
		}
	}

	orchCtx, cancel := context.WithTimeout(ctx, totalTimeout)
	defer cancel()
	if err := e.TaskOrch.Shutdown(orchCtx, true); err != nil {
		logging.Warn(engineSubsystem, "task orchestrator shutdown: %v", err)
	}

	forced := e.Lifecycle.ForcedShutdowns()
	if forced > 0 {
		logging.Warn(engineSubsystem, "shutdown complete with %d forced shutdowns", forced)
	} else {
		logging.Info(engineSubsystem, "shutdown complete, all services stopped gracefully")
	}
	return results
}
