// Package metrics exposes Prometheus instruments for the background
// simulations and the analytics cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mapslead"

// Simulation kinds used as label values.
const (
	KindScrape   = "scrape"
	KindCampaign = "campaign"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	SimulationsStarted  *prometheus.CounterVec
	SimulationsFinished *prometheus.CounterVec
	SimulationsRunning  *prometheus.GaugeVec
	SimulationDuration  *prometheus.HistogramVec

	LeadsSynthesized prometheus.Counter
	EmailsSimulated  *prometheus.CounterVec

	AnalyticsCacheLookups *prometheus.CounterVec
}

// New creates and registers all metrics. A nil registerer uses the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SimulationsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "started_total",
			Help:      "Total number of simulations started",
		}, []string{"kind"}),
		SimulationsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "finished_total",
			Help:      "Total number of simulations finished, by outcome",
		}, []string{"kind", "outcome"}),
		SimulationsRunning: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "running",
			Help:      "Number of simulations currently running",
		}, []string{"kind"}),
		SimulationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "duration_seconds",
			Help:      "Wall time of a simulation run",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"kind"}),
		LeadsSynthesized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scraper",
			Name:      "leads_synthesized_total",
			Help:      "Total number of leads produced by scraping jobs",
		}),
		EmailsSimulated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "campaign",
			Name:      "emails_simulated_total",
			Help:      "Total number of simulated sends, by furthest engagement reached",
		}, []string{"outcome"}),
		AnalyticsCacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "cache_lookups_total",
			Help:      "Analytics cache lookups by family and result",
		}, []string{"family", "result"}),
	}
}

// NewNop returns metrics registered on a private registry, for tests and tools.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
