package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"aegisrt/internal/apicore"
	"aegisrt/internal/engine"
	"aegisrt/internal/metrics"
)

func TestFormatSnapshot_EmptyServices(t *testing.T) {
	out := FormatSnapshot(engine.Snapshot{})
	assert.Contains(t, out, "no services registered")
}

func TestFormatSnapshot_RendersServicesAndAlerts(t *testing.T) {
	snap := engine.Snapshot{
		Timestamp: time.Now(),
		Services: []engine.ServiceSnapshot{
			{Name: "db", State: "ACTIVE", SuspensionCount: 2},
		},
		GracefulShutdowns: 3,
		ForcedShutdowns:   1,
		RecentAlerts: []apicore.ResourceAlert{
			{ResourceType: "cpu", Level: apicore.AlertCritical, CurrentValue: 96.5, Timestamp: time.Now()},
		},
	}

	out := FormatSnapshot(snap)
	assert.Contains(t, out, "db")
	assert.Contains(t, out, "ACTIVE")
	assert.Contains(t, out, "cpu")
	assert.Contains(t, out, "Total:")
}

func TestFormatBenchmark_RendersFieldsAndSLO(t *testing.T) {
	r := metrics.BenchmarkResult{
		LoadProfile:        metrics.LoadModerate,
		TotalRequests:      100,
		SuccessfulRequests: 95,
		FailedRequests:     5,
		ErrorRate:          0.05,
		P95LatencyMs:       120,
		ActualRPS:          4.9,
		SLOCompliance:      map[string]bool{"p95": true, "error_rate": false},
	}

	out := FormatBenchmark(r)
	assert.Contains(t, out, "MODERATE")
	assert.Contains(t, out, "100")
	assert.Contains(t, out, "SLO compliance")
}
