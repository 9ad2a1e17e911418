package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/models"
)

// metrics exposes the loaded run on a private registry
type metrics struct {
	registry *prometheus.Registry
	findings *prometheus.GaugeVec
	loads    prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		findings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "secops_findings",
				Help: "Findings of the loaded verification run",
			},
			[]string{"status", "category"},
		),
		loads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secops_results_loads_total",
			Help: "Number of verification runs loaded",
		}),
	}
	m.registry.MustRegister(m.findings, m.loads)
	return m
}

// update replaces the gauges with the counts of rows
func (m *metrics) update(rows []models.Row) {
	m.findings.Reset()
	for _, r := range rows {
		m.findings.WithLabelValues(string(r.Result.Status), string(r.Finding.Category)).Inc()
	}
	m.loads.Inc()
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
