package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_QueryByNameRespectsWindowAndLimit(t *testing.T) {
	s := NewStore()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		s.Record(Metric{Name: "cpu", Value: float64(i), Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}

	all := s.QueryByName("cpu", time.Time{}, time.Time{}, 0)
	require.Len(t, all, 5)

	limited := s.QueryByName("cpu", time.Time{}, time.Time{}, 2)
	require.Len(t, limited, 2)
	assert.Equal(t, 4.0, limited[len(limited)-1].Value, "limit keeps the most recent rows")

	windowed := s.QueryByName("cpu", base.Add(2*time.Minute), time.Time{}, 0)
	assert.Len(t, windowed, 3)
}

func TestStore_QueryByServiceIndexesIndependently(t *testing.T) {
	s := NewStore()
	s.Record(Metric{Name: "latency", Value: 10, ServiceName: "api", Timestamp: time.Now()})
	s.Record(Metric{Name: "latency", Value: 20, ServiceName: "worker", Timestamp: time.Now()})

	apiMetrics := s.QueryByService("api", time.Time{}, time.Time{}, 0)
	require.Len(t, apiMetrics, 1)
	assert.Equal(t, 10.0, apiMetrics[0].Value)
}

func TestDetector_CreateBaselineComputesMean(t *testing.T) {
	s := NewStore()
	now := time.Now()
	for _, v := range []float64{10, 20, 30} {
		s.Record(Metric{Name: "response_time", Value: v, ServiceName: "api", Timestamp: now})
	}

	d := NewDetector(s)
	baseline, ok := d.CreateBaseline("response_time", "api", time.Hour)
	require.True(t, ok)
	assert.Equal(t, 20.0, baseline.Mean)
	assert.Equal(t, 3, baseline.SampleCount)
}

func TestDetector_DetectOneFlagsRegressionPastThreshold(t *testing.T) {
	s := NewStore()
	now := time.Now()
	for i := 0; i < 10; i++ {
		s.Record(Metric{Name: "response_time", Value: 100, ServiceName: "api", Timestamp: now.Add(time.Duration(i) * time.Second)})
	}

	d := NewDetector(s)
	_, ok := d.CreateBaseline("response_time", "api", time.Hour)
	require.True(t, ok)

	for i := 0; i < 10; i++ {
		s.Record(Metric{Name: "response_time", Value: 200, ServiceName: "api", Timestamp: now.Add(time.Minute + time.Duration(i)*time.Second)})
	}

	ch := d.Regressions(4)
	detected := d.DetectAll()
	require.Len(t, detected, 1)
	assert.Equal(t, "response_time", detected[0].MetricName)
	assert.Equal(t, SeverityCritical, Severity(detected[0].Severity), "100%% over a 25%% threshold is critical")

	select {
	case got := <-ch:
		assert.Equal(t, detected[0].MetricName, got.MetricName)
	default:
		t.Fatal("expected regression to be published")
	}
}

func TestDetector_MissingBaselineAutoEstablishesSilently(t *testing.T) {
	s := NewStore()
	s.Record(Metric{Name: "cpu", Value: 50, ServiceName: "api", Timestamp: time.Now()})

	d := NewDetector(s)
	detected := d.DetectAll()
	assert.Empty(t, detected, "first sighting only establishes a baseline, no regression yet")

	_, ok := d.Baseline("cpu", "api")
	assert.True(t, ok)
}

func TestClassifySeverity_ScalesWithMagnitude(t *testing.T) {
	threshold := 0.10
	assert.Equal(t, SeverityMinor, classifySeverity(0.11, threshold))
	assert.Equal(t, SeverityModerate, classifySeverity(0.13, threshold))
	assert.Equal(t, SeveritySevere, classifySeverity(0.16, threshold))
	assert.Equal(t, SeverityCritical, classifySeverity(0.25, threshold))
}

func TestBenchmarker_RunConstantLoadAggregatesLatencyAndSLO(t *testing.T) {
	b := NewBenchmarker(nil)
	cfg := BenchmarkConfig{
		LoadProfile:      LoadProfile("CUSTOM"), // falls back to TargetRPS
		Duration:         300 * time.Millisecond,
		TargetRPS:        20,
		TargetP95Latency: 50 * time.Millisecond,
		TargetErrorRate:  0.5,
		TargetThroughput: 0,
	}
	probe := func(ctx context.Context, input any) error {
		time.Sleep(time.Millisecond)
		return nil
	}

	result := b.Run(context.Background(), "bench-1", cfg, probe, []any{1, 2, 3})
	require.Greater(t, result.TotalRequests, 0)
	assert.Equal(t, result.TotalRequests, result.SuccessfulRequests)
	assert.Equal(t, 0.0, result.ErrorRate)
	assert.True(t, result.SLOCompliance["p95_latency"])
}

func TestBenchmarker_RunRecordsFailures(t *testing.T) {
	b := NewBenchmarker(nil)
	cfg := BenchmarkConfig{LoadProfile: LoadProfile("CUSTOM"), Duration: 300 * time.Millisecond, TargetRPS: 20}
	probe := func(ctx context.Context, input any) error {
		return errors.New("boom")
	}

	result := b.Run(context.Background(), "bench-2", cfg, probe, []any{1})
	require.Greater(t, result.TotalRequests, 0)
	assert.Equal(t, result.TotalRequests, result.FailedRequests)
	assert.Equal(t, 1.0, result.ErrorRate)
}

func TestBenchmarker_RecordsToStoreWhenConfigured(t *testing.T) {
	s := NewStore()
	b := NewBenchmarker(s)
	cfg := BenchmarkConfig{LoadProfile: LoadProfile("CUSTOM"), Duration: 300 * time.Millisecond, TargetRPS: 20}
	probe := func(ctx context.Context, input any) error { return nil }

	b.Run(context.Background(), "bench-3", cfg, probe, []any{1})
	metrics := s.QueryByService("CUSTOM", time.Time{}, time.Time{}, 0)
	assert.NotEmpty(t, metrics)
}

func TestExporter_ObserveExposesGaugeAndCounter(t *testing.T) {
	e := NewExporter()
	e.Observe(Metric{Name: "cpu", Value: 42.5, Kind: KindGauge, ServiceName: "api"})
	e.Observe(Metric{Name: "requests", Value: 3, Kind: KindCounter, ServiceName: "api"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "aegisrt_metric_value")
	assert.Contains(t, body, "aegisrt_metric_total")
}
