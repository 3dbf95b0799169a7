package linecalc

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the per-workbook collectors. each workbook owns its own
// registry so several workbooks in one process never collide.
type Metrics struct {
	registry *prometheus.Registry

	lineEvaluations   *prometheus.CounterVec
	recomputePasses   *prometheus.CounterVec
	cacheHits         prometheus.Counter
	currencyFallbacks prometheus.Counter
	recomputeDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lineEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linecalc_line_evaluations_total",
				Help: "Number of line evaluations, by recompute tier.",
			},
			[]string{"tier"},
		),
		recomputePasses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linecalc_recompute_passes_total",
				Help: "Number of per-sheet recompute passes, by tier.",
			},
			[]string{"tier"},
		),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linecalc_cache_hits_total",
			Help: "Pending lines whose cached result was kept.",
		}),
		currencyFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linecalc_currency_fallbacks_total",
			Help: "Currency conversions served from fallback rates.",
		}),
		recomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "linecalc_recompute_duration_seconds",
			Help:    "Duration of per-sheet recompute passes.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
	m.registry.MustRegister(m.lineEvaluations)
	m.registry.MustRegister(m.recomputePasses)
	m.registry.MustRegister(m.cacheHits)
	m.registry.MustRegister(m.currencyFallbacks)
	m.registry.MustRegister(m.recomputeDuration)
	return m
}

// Gatherer exposes the registry, e.g. to promhttp.HandlerFor
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
