package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter mirrors the in-process Store onto Prometheus collectors,
// exposed on an optional /metrics endpoint (SPEC_FULL.md domain stack:
// promotes the teacher's indirect client_golang dependency to direct).
type Exporter struct {
	registry *prometheus.Registry
	gauges   *prometheus.GaugeVec
	counters *prometheus.CounterVec
}

// NewExporter returns an Exporter with its own registry, independent
// of the default global one so tests and multiple engine instances
// don't collide on metric registration.
func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	gauges := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aegisrt",
		Name:      "metric_value",
		Help:      "Most recent value of a GAUGE or HISTOGRAM metric ingested into the performance metrics store.",
	}, []string{"name", "service"})
	counters := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegisrt",
		Name:      "metric_total",
		Help:      "Cumulative value observed for a COUNTER metric ingested into the performance metrics store.",
	}, []string{"name", "service"})

	reg.MustRegister(gauges, counters)
	return &Exporter{registry: reg, gauges: gauges, counters: counters}
}

// Observe mirrors m onto the matching Prometheus collector. TIMER
// metrics are treated as gauges (their latest sampled value), matching
// how the wire format's kind field is otherwise opaque to consumers.
func (e *Exporter) Observe(m Metric) {
	switch m.Kind {
	case KindCounter:
		e.counters.WithLabelValues(m.Name, m.ServiceName).Add(m.Value)
	default:
		e.gauges.WithLabelValues(m.Name, m.ServiceName).Set(m.Value)
	}
}

// Handler returns the /metrics HTTP handler serving the Exporter's
// registry in Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
