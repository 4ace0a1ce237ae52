package resourcemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegisrt/internal/apicore"
)

func fixedSnapshot(cpuPct, memPct, diskPct float64) Snapshot {
	return Snapshot{Timestamp: time.Now(), CPUPercent: cpuPct, MemoryPercent: memPct, DiskPercent: diskPct}
}

func TestDetectPressure_RequiresSustainedDuration(t *testing.T) {
	m := New(nil, nil)
	m.ConfigureThreshold(CPU, Threshold{Warning: 50, Critical: 80, Emergency: 95, SustainedDuration: 10 * time.Millisecond})

	first := fixedSnapshot(90, 0, 0)
	pressured := m.detectPressure(first)
	assert.Empty(t, pressured, "first sample above warning should only start tracking, not alert yet")

	time.Sleep(15 * time.Millisecond)
	second := fixedSnapshot(90, 0, 0)
	second.Timestamp = first.Timestamp.Add(15 * time.Millisecond)
	pressured = m.detectPressure(second)
	assert.Contains(t, pressured, CPU)
}

func TestDetectPressure_DroppingBelowWarningClearsTracking(t *testing.T) {
	m := New(nil, nil)
	m.ConfigureThreshold(CPU, Threshold{Warning: 50, Critical: 80, Emergency: 95, SustainedDuration: 5 * time.Millisecond})

	m.detectPressure(fixedSnapshot(90, 0, 0))
	m.detectPressure(fixedSnapshot(10, 0, 0))
	assert.False(t, m.IsUnderPressure(CPU))
}

func TestDetectPressure_PublishesAlert(t *testing.T) {
	m := New(nil, nil)
	m.ConfigureThreshold(Memory, Threshold{Warning: 10, Critical: 20, Emergency: 30, SustainedDuration: 1 * time.Millisecond})

	ch := m.Alerts(4)
	base := time.Now()
	s1 := fixedSnapshot(0, 50, 0)
	s1.Timestamp = base
	m.detectPressure(s1)

	s2 := fixedSnapshot(0, 50, 0)
	s2.Timestamp = base.Add(5 * time.Millisecond)
	m.detectPressure(s2)

	select {
	case alert := <-ch:
		assert.Equal(t, "memory", alert.ResourceType)
		assert.Equal(t, apicore.AlertEmergency, alert.Level)
	default:
		t.Fatal("expected an alert to be published")
	}
}

func TestTriggerCleanup_MemoryPressureForcesGCAndClearsCaches(t *testing.T) {
	m := New(nil, nil)
	cache := &countingCache{}
	m.RegisterCache("test-cache", cache)

	results := m.TriggerCleanup(context.Background(), fixedSnapshot(0, 95, 0), []Resource{Memory})
	require.NotEmpty(t, results)
	assert.Equal(t, 1, cache.clears)

	var sawGC, sawClear bool
	for _, r := range results {
		switch r.Action {
		case string(ActionForceGC):
			sawGC = true
		case string(ActionClearCache):
			sawClear = true
		}
	}
	assert.True(t, sawGC)
	assert.True(t, sawClear)
}

func TestSuspendByClassification_NoRegistryReturnsFailureResult(t *testing.T) {
	m := New(nil, nil)
	results := m.suspendByClassification(context.Background())
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
}

type countingCache struct {
	clears int
}

func (c *countingCache) Clear() { c.clears++ }
