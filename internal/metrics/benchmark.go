package metrics

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"aegisrt/pkg/logging"
)

// LoadProfile selects the request-rate shape a benchmark run drives
// against the target callable (spec.md §4.H). Constant-rate profiles
// name their target RPS; Burst runs a fixed low-high-low phase
// sequence regardless of TargetRPS.
type LoadProfile string

const (
	LoadLight    LoadProfile = "LIGHT"    // 1 RPS
	LoadModerate LoadProfile = "MODERATE" // 5 RPS
	LoadHeavy    LoadProfile = "HEAVY"    // 20 RPS
	LoadBurst    LoadProfile = "BURST"    // 1 -> 10 -> 1 RPS phases
)

// loadProfileRPS returns the fixed target rate for the named constant
// profile, falling back to cfg's own TargetRPS for anything else.
func loadProfileRPS(p LoadProfile, fallback float64) float64 {
	switch p {
	case LoadLight:
		return 1.0
	case LoadModerate:
		return 5.0
	case LoadHeavy:
		return 20.0
	default:
		return fallback
	}
}

// burstPhase is one segment of the burst load pattern: phase_rps
// requests per second sustained for duration.
type burstPhase struct {
	duration time.Duration
	rps      float64
}

// burstPhases mirrors original_source's fixed 20s/20s/20s low-high-low
// pattern.
var burstPhases = []burstPhase{
	{20 * time.Second, 1.0},
	{20 * time.Second, 10.0},
	{20 * time.Second, 1.0},
}

// Probe is the callable a benchmark drives load against. It returns an
// error for a failed request; the returned error is not otherwise
// inspected.
type Probe func(ctx context.Context, input any) error

// BenchmarkConfig configures one benchmark run.
type BenchmarkConfig struct {
	LoadProfile    LoadProfile
	Duration       time.Duration
	TargetRPS      float64
	WarmupDuration time.Duration

	TargetP95Latency time.Duration
	TargetP99Latency time.Duration
	TargetErrorRate  float64
	TargetThroughput float64
}

// BenchmarkResult aggregates one run's latency, throughput and SLO
// compliance (spec.md §4.H).
type BenchmarkResult struct {
	ID          string
	LoadProfile LoadProfile
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration

	TotalRequests      int
	SuccessfulRequests int
	FailedRequests     int
	ErrorRate          float64

	AvgLatencyMs float64
	P50LatencyMs float64
	P95LatencyMs float64
	P99LatencyMs float64
	MaxLatencyMs float64
	MinLatencyMs float64

	ActualRPS float64
	PeakRPS   float64

	SLOCompliance map[string]bool
}

// Benchmarker runs load-profile benchmarks against a Probe and tracks
// per-profile baselines for its own lightweight regression alerts,
// independent of Detector (which watches the Store's ingested
// metrics, not benchmark runs directly).
type Benchmarker struct {
	mu        sync.Mutex
	baselines map[LoadProfile]BenchmarkResult
	store     *Store
}

// NewBenchmarker returns a Benchmarker that records each run's summary
// metrics into store (if non-nil) for downstream regression detection.
func NewBenchmarker(store *Store) *Benchmarker {
	return &Benchmarker{baselines: make(map[LoadProfile]BenchmarkResult), store: store}
}

// Run executes one benchmark against probe using cfg's load profile,
// warming up first if configured, and returns the aggregated result.
func (b *Benchmarker) Run(ctx context.Context, id string, cfg BenchmarkConfig, probe Probe, inputs []any) BenchmarkResult {
	start := time.Now()
	logging.Info(storeSubsystem, "starting benchmark %s profile=%s duration=%s", id, cfg.LoadProfile, cfg.Duration)

	if cfg.WarmupDuration > 0 {
		b.warmup(ctx, cfg, probe, inputs)
	}

	var latencies []float64
	var succeeded, failed int
	var mu sync.Mutex
	record := func(ms float64, ok bool) {
		mu.Lock()
		defer mu.Unlock()
		latencies = append(latencies, ms)
		if ok {
			succeeded++
		} else {
			failed++
		}
	}

	if cfg.LoadProfile == LoadBurst {
		b.runBurst(ctx, probe, inputs, record)
	} else {
		rps := loadProfileRPS(cfg.LoadProfile, cfg.TargetRPS)
		b.runConstant(ctx, cfg.Duration, rps, probe, inputs, record)
	}

	end := time.Now()
	result := summarize(id, cfg, start, end, latencies, succeeded, failed)

	b.mu.Lock()
	b.baselines[cfg.LoadProfile] = result
	b.mu.Unlock()

	if b.store != nil {
		b.recordToStore(result)
	}

	logging.Info(storeSubsystem, "benchmark %s complete: %d/%d requests, p95=%.2fms, rps=%.2f",
		id, result.SuccessfulRequests, result.TotalRequests, result.P95LatencyMs, result.ActualRPS)
	return result
}

func (b *Benchmarker) warmup(ctx context.Context, cfg BenchmarkConfig, probe Probe, inputs []any) {
	if len(inputs) == 0 {
		return
	}
	deadline := time.Now().Add(cfg.WarmupDuration)
	i := 0
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_ = probe(ctx, inputs[i%len(inputs)])
		i++
		time.Sleep(500 * time.Millisecond)
	}
}

func (b *Benchmarker) runConstant(ctx context.Context, duration time.Duration, rps float64, probe Probe, inputs []any, record func(float64, bool)) {
	if rps <= 0 {
		rps = 1.0
	}
	if len(inputs) == 0 {
		return
	}
	interval := time.Duration(float64(time.Second) / rps)
	total := int(duration.Seconds() * rps)

	eg, egCtx := errgroup.WithContext(ctx)
	deadline := time.Now().Add(duration)
	for i := 0; i < total; i++ {
		if time.Now().After(deadline) {
			break
		}
		input := inputs[i%len(inputs)]
		eg.Go(func() error {
			runProbe(egCtx, probe, input, record)
			return nil
		})
		if i < total-1 {
			select {
			case <-ctx.Done():
				_ = eg.Wait()
				return
			case <-time.After(interval):
			}
		}
	}
	_ = eg.Wait()
}

func (b *Benchmarker) runBurst(ctx context.Context, probe Probe, inputs []any, record func(float64, bool)) {
	if len(inputs) == 0 {
		return
	}
	eg, egCtx := errgroup.WithContext(ctx)
	dataIndex := 0

	for _, phase := range burstPhases {
		interval := time.Duration(float64(time.Second) / phase.rps)
		phaseRequests := int(phase.duration.Seconds() * phase.rps)
		logging.Info(storeSubsystem, "burst phase: %.1f rps for %s", phase.rps, phase.duration)

		for i := 0; i < phaseRequests; i++ {
			input := inputs[dataIndex%len(inputs)]
			dataIndex++
			eg.Go(func() error {
				runProbe(egCtx, probe, input, record)
				return nil
			})
			if i < phaseRequests-1 {
				select {
				case <-ctx.Done():
					_ = eg.Wait()
					return
				case <-time.After(interval):
				}
			}
		}
	}
	_ = eg.Wait()
}

func runProbe(ctx context.Context, probe Probe, input any, record func(float64, bool)) {
	start := time.Now()
	err := probe(ctx, input)
	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)
	record(latencyMs, err == nil)
}

func summarize(id string, cfg BenchmarkConfig, start, end time.Time, latencies []float64, succeeded, failed int) BenchmarkResult {
	duration := end.Sub(start)
	total := succeeded + failed
	errorRate := 0.0
	if total > 0 {
		errorRate = float64(failed) / float64(total)
	}
	actualRPS := float64(succeeded) / math.Max(duration.Seconds(), 0.001)

	var avg, p50, p95, p99, max, min float64
	if len(latencies) > 0 {
		sorted := append([]float64(nil), latencies...)
		sort.Float64s(sorted)
		n := len(sorted)
		avg = sum(sorted) / float64(n)
		p50 = percentile(sorted, 0.5)
		p95 = percentile(sorted, 0.95)
		p99 = percentile(sorted, 0.99)
		max = sorted[n-1]
		min = sorted[0]
	}

	compliance := map[string]bool{
		"p95_latency": cfg.TargetP95Latency == 0 || p95 <= float64(cfg.TargetP95Latency.Milliseconds()),
		"p99_latency": cfg.TargetP99Latency == 0 || p99 <= float64(cfg.TargetP99Latency.Milliseconds()),
		"error_rate":  cfg.TargetErrorRate == 0 || errorRate <= cfg.TargetErrorRate,
		"throughput":  cfg.TargetThroughput == 0 || actualRPS >= cfg.TargetThroughput,
	}

	return BenchmarkResult{
		ID:                 id,
		LoadProfile:        cfg.LoadProfile,
		StartTime:          start,
		EndTime:            end,
		Duration:           duration,
		TotalRequests:      total,
		SuccessfulRequests: succeeded,
		FailedRequests:     failed,
		ErrorRate:          errorRate,
		AvgLatencyMs:       avg,
		P50LatencyMs:       p50,
		P95LatencyMs:       p95,
		P99LatencyMs:       p99,
		MaxLatencyMs:       max,
		MinLatencyMs:       min,
		ActualRPS:          actualRPS,
		PeakRPS:            actualRPS,
		SLOCompliance:      compliance,
	}
}

func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	idx := int(float64(n) * p)
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

func (b *Benchmarker) recordToStore(r BenchmarkResult) {
	now := r.EndTime
	b.store.Record(Metric{Name: "response_time", Value: r.P95LatencyMs, Kind: KindTimer, Timestamp: now, ServiceName: string(r.LoadProfile), Unit: "ms"})
	b.store.Record(Metric{Name: "error_count", Value: float64(r.FailedRequests), Kind: KindCounter, Timestamp: now, ServiceName: string(r.LoadProfile), Unit: "count"})
	b.store.Record(Metric{Name: "throughput_rps", Value: r.ActualRPS, Kind: KindGauge, Timestamp: now, ServiceName: string(r.LoadProfile), Unit: "rps"})
}

// Baseline returns the most recent result recorded for profile, used
// as a comparison point for ad hoc benchmark-to-benchmark regression
// checks outside of Detector's metric-store-driven path.
func (b *Benchmarker) Baseline(profile LoadProfile) (BenchmarkResult, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.baselines[profile]
	return r, ok
}
