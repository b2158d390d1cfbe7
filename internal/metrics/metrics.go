// Package metrics exposes report activity as Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements report.Observer. The counters only cover work done by
// this process; WatchReports adds gauges read from the shared store.
type Metrics struct {
	MergesTotal      *prometheus.CounterVec // merges by status
	BunchesTotal     prometheus.Counter     // bunches merged successfully
	SubmissionsTotal *prometheus.CounterVec // submissions by outcome

	registry *prometheus.Registry
}

func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		MergesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvestsmart_merges_total",
				Help: "Detection results merged into daily reports, by status",
			},
			[]string{"status"}, // status: success, error
		),
		BunchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvestsmart_bunches_total",
			Help: "Bunches counted across all successful merges",
		}),
		SubmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvestsmart_submissions_total",
				Help: "Daily report submissions, by outcome",
			},
			[]string{"outcome"}, // outcome: sent, already_sent, rejected, failed
		),
		registry: registry,
	}
	for _, c := range []prometheus.Collector{m.MergesTotal, m.BunchesTotal, m.SubmissionsTotal} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register report metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) ObserveMerge(_ string, bunches int, err error) {
	if err != nil {
		m.MergesTotal.WithLabelValues("error").Inc()
		return
	}
	m.MergesTotal.WithLabelValues("success").Inc()
	m.BunchesTotal.Add(float64(bunches))
}

func (m *Metrics) ObserveSubmit(_ string, outcome string) {
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
