package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the injected stats collector for the hub. Tests construct their
// own instance against a private registry; nothing here is process-global.
type Metrics struct {
	registry *prometheus.Registry

	IngestBranches *prometheus.CounterVec
	SweepRuns      prometheus.Counter
	SweepFlips     prometheus.Counter
	SweepErrors    prometheus.Counter
	SweepDuration  prometheus.Histogram
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		IngestBranches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartdeck_ingest_branches_total",
			Help: "Ingestion fan-out branches by producer and outcome.",
		}, []string{"producer", "outcome"}),
		SweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartdeck_sweep_runs_total",
			Help: "Completed staleness sweeps.",
		}),
		SweepFlips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartdeck_sweep_flips_total",
			Help: "Cards flipped from current to stale by the sweep.",
		}),
		SweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartdeck_sweep_card_errors_total",
			Help: "Per-card failures skipped during a sweep.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chartdeck_sweep_duration_seconds",
			Help:    "Wall time of one staleness sweep.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.IngestBranches,
		m.SweepRuns,
		m.SweepFlips,
		m.SweepErrors,
		m.SweepDuration,
	)
	return m
}

// Handler exposes the registry for the /metrics route.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
