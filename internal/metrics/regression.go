package metrics

import (
	"context"
	"sync"
	"time"

	"aegisrt/internal/apicore"
	"aegisrt/pkg/logging"
)

// baselineKey identifies a (metric, service) pair.
type baselineKey struct {
	metric  string
	service string
}

// Detector periodically compares recent samples of every baselined
// (metric, service) pair against its baseline and publishes a
// RegressionDetail when the drift exceeds the metric's threshold
// (spec.md §4.H).
type Detector struct {
	store *Store

	mu        sync.Mutex
	baselines map[baselineKey]Baseline

	regressions *apicore.Publisher[apicore.RegressionDetail]

	// recentSamples bounds how many of the most recent samples feed the
	// regression mean, per spec.md §4.H ("mean of the last min(10, N)
	// recent samples").
	recentSamples int
	checkInterval time.Duration
}

// NewDetector returns a Detector reading from store.
func NewDetector(store *Store) *Detector {
	return &Detector{
		store:         store,
		baselines:     make(map[baselineKey]Baseline),
		regressions:   apicore.NewPublisher[apicore.RegressionDetail](),
		recentSamples: 10,
		checkInterval: 30 * time.Second,
	}
}

// Regressions returns a channel of detected regressions.
func (d *Detector) Regressions(buffer int) <-chan apicore.RegressionDetail {
	return d.regressions.Subscribe(buffer)
}

// CreateBaseline computes and stores the mean of name/service over the
// trailing window, per spec.md §4.H's create_baseline(name, window).
// Recomputing an existing baseline overwrites it (idempotent).
func (d *Detector) CreateBaseline(name, service string, window time.Duration) (Baseline, bool) {
	since := time.Now().Add(-window)
	samples := d.store.QueryByService(service, since, time.Time{}, 0)
	var matched []Metric
	for _, m := range samples {
		if m.Name == name {
			matched = append(matched, m)
		}
	}
	if len(matched) == 0 {
		return Baseline{}, false
	}

	mean := meanOf(matched)
	baseline := Baseline{
		MetricName:  name,
		ServiceName: service,
		Mean:        mean,
		SampleCount: len(matched),
		Window:      window,
		ComputedAt:  time.Now(),
	}

	d.mu.Lock()
	d.baselines[baselineKey{metric: name, service: service}] = baseline
	d.mu.Unlock()

	logging.Info(storeSubsystem, "baseline for %s/%s: mean=%.2f over %d samples", name, service, mean, len(matched))
	return baseline, true
}

// Baseline returns the stored baseline for (name, service), if any.
func (d *Detector) Baseline(name, service string) (Baseline, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.baselines[baselineKey{metric: name, service: service}]
	return b, ok
}

// RunLoop periodically calls DetectAll until ctx is canceled (spec.md
// §5: "metrics-collector, and regression-detector background tasks...
// exits cleanly" on cancellation).
func (d *Detector) RunLoop(ctx context.Context) {
	interval := d.checkInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.DetectAll()
		}
	}
}

// DetectAll runs regression detection across every (metric, service)
// pair the store has samples for, auto-establishing a baseline the
// first time a pair is seen with no baseline yet (spec.md §4.H:
// "missing baselines auto-establish silently").
func (d *Detector) DetectAll() []apicore.RegressionDetail {
	var detected []apicore.RegressionDetail
	for _, service := range d.store.Services() {
		byName := make(map[string][]Metric)
		for _, m := range d.store.QueryByService(service, time.Time{}, time.Time{}, 0) {
			byName[m.Name] = append(byName[m.Name], m)
		}
		for name, samples := range byName {
			if detail, ok := d.detectOne(name, service, samples); ok {
				detected = append(detected, detail)
			}
		}
	}
	return detected
}

func (d *Detector) detectOne(name, service string, samples []Metric) (apicore.RegressionDetail, bool) {
	baseline, ok := d.Baseline(name, service)
	if !ok {
		d.CreateBaseline(name, service, 24*time.Hour)
		return apicore.RegressionDetail{}, false
	}

	n := d.recentSamples
	if n > len(samples) {
		n = len(samples)
	}
	if n == 0 || baseline.SampleCount < 1 {
		return apicore.RegressionDetail{}, false
	}
	recent := samples[len(samples)-n:]
	recentMean := meanOf(recent)

	if baseline.Mean == 0 {
		return apicore.RegressionDetail{}, false
	}
	percentChange := (recentMean - baseline.Mean) / baseline.Mean
	threshold := regressionThreshold(name)
	if absFloat(percentChange) < threshold {
		return apicore.RegressionDetail{}, false
	}

	detail := apicore.RegressionDetail{
		MetricName:   name,
		ServiceName:  service,
		BaselineMean: baseline.Mean,
		RecentMean:   recentMean,
		PercentDelta: percentChange,
		Severity:     string(classifySeverity(percentChange, threshold)),
		Timestamp:    time.Now(),
	}
	d.regressions.Publish(detail)
	logging.Warn(storeSubsystem, "regression on %s/%s: baseline=%.2f recent=%.2f delta=%.1f%% severity=%s",
		name, service, baseline.Mean, recentMean, percentChange*100, detail.Severity)
	return detail, true
}

func meanOf(samples []Metric) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, m := range samples {
		sum += m.Value
	}
	return sum / float64(len(samples))
}
