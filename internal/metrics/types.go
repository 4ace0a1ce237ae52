// Package metrics implements the performance metrics store: continuous
// ingestion of point-in-time metrics, baseline comparison, regression
// detection and a load-profile benchmark runner (spec.md §4.H).
package metrics

import "time"

// Kind classifies how a metric's value should be interpreted.
type Kind string

const (
	KindCounter   Kind = "COUNTER"
	KindGauge     Kind = "GAUGE"
	KindHistogram Kind = "HISTOGRAM"
	KindTimer     Kind = "TIMER"
)

// Metric is one ingested sample (spec.md §4.H, §6 wire format).
type Metric struct {
	Name        string
	Value       float64
	Kind        Kind
	Timestamp   time.Time
	ServiceName string
	Tags        map[string]string
	Unit        string
	Description string
}

// Baseline is the mean of a (metric, service) pair over the window it
// was computed from, used as the comparison point for regression
// detection.
type Baseline struct {
	MetricName  string
	ServiceName string
	Mean        float64
	SampleCount int
	Window      time.Duration
	ComputedAt  time.Time
}

// Severity classifies how far a regression's magnitude has drifted
// past its metric's threshold, adapted from original_source's
// performance_auditor._calculate_severity (renamed LOW/MEDIUM/HIGH/
// CRITICAL to minor/moderate/severe/critical).
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
)

// regressionThreshold returns the per-metric percent-change threshold
// beyond which a drift counts as a regression (spec.md §4.H).
func regressionThreshold(metricName string) float64 {
	switch metricName {
	case "cpu", "cpu_percent", "cpu_usage":
		return 0.20
	case "memory", "memory_percent", "memory_usage":
		return 0.15
	case "response_time", "latency", "latency_ms":
		return 0.25
	case "error_count", "error_rate":
		return 0.05
	default:
		return 0.10
	}
}

// classifySeverity scales with how far value has drifted past
// threshold, mirroring performance_auditor.py's magnitude bands: at or
// past a critical cutoff of 2x the nominal threshold is critical, 1.5x
// is severe, 1.2x is moderate, anything smaller that still cleared the
// regression bar is minor.
func classifySeverity(percentChange, threshold float64) Severity {
	magnitude := absFloat(percentChange)
	switch {
	case magnitude >= threshold*2.0:
		return SeverityCritical
	case magnitude >= threshold*1.5:
		return SeveritySevere
	case magnitude >= threshold*1.2:
		return SeverityModerate
	default:
		return SeverityMinor
	}
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
