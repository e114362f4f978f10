package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	namespace = "suitability"
	pushJob   = "aquaculture_suitability"
)

// Metrics holds the Prometheus collectors for a suitability run.
type Metrics struct {
	Runs              *prometheus.CounterVec   // labels: species, outcome={success,error}
	InvariantFailures *prometheus.CounterVec   // labels: invariant
	SuitableCells     *prometheus.GaugeVec     // labels: species
	RunDuration       *prometheus.HistogramVec // labels: species
	RegionPercent     *prometheus.GaugeVec     // labels: species, region

	gatherer prometheus.Gatherer
}

func newCollectors() *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Species pipeline runs by outcome.",
		}, []string{"species", "outcome"}),
		InvariantFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invariant_failures_total",
			Help:      "Precondition and postcondition violations by invariant.",
		}, []string{"invariant"}),
		SuitableCells: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "suitable_cells",
			Help:      "Number of suitable mask cells inside the regions.",
		}, []string{"species"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of one species pipeline run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"species"}),
		RegionPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "region_percent",
			Help:      "Percent of each region's reference area that is suitable.",
		}, []string{"species", "region"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Runs, m.InvariantFailures, m.SuitableCells, m.RunDuration, m.RegionPercent}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newCollectors()
	prometheus.MustRegister(m.collectors()...)
	m.gatherer = prometheus.DefaultGatherer
	return m
}

// NewMetricsForTesting creates Metrics on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newCollectors()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.collectors()...)
	m.gatherer = reg
	return m
}

// Push sends every gathered metric to a Prometheus Pushgateway, replacing the
// previous push for this job.
func (m *Metrics) Push(ctx context.Context, url string) error {
	if err := push.New(url, pushJob).Gatherer(m.gatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
