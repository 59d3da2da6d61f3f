// ===== Metrics =====

package decoder

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts decoder activity on a private registry, so two decoders
// in one process never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	Sentences prometheus.Counter
	Failures  prometheus.Counter
	CacheHits prometheus.Counter
	Reloads   prometheus.Counter

	DecodeSeconds prometheus.Histogram
	CubePops      prometheus.Histogram
	ForestNodes   prometheus.Histogram
}

func newMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Sentences: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forester_sentences_total",
			Help: "Sentences decoded to a derivation.",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forester_decode_failures_total",
			Help: "Sentences with no goal derivation.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forester_cache_hits_total",
			Help: "Decodes served from the translation cache.",
		}),
		Reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forester_weight_reloads_total",
			Help: "Successful weight reloads.",
		}),
		DecodeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "forester_decode_seconds",
			Help:    "Wall time per decoded sentence.",
			Buckets: prometheus.DefBuckets,
		}),
		CubePops: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "forester_cube_pops",
			Help:    "Cube-pruning pops per sentence.",
			Buckets: prometheus.ExponentialBuckets(8, 4, 10),
		}),
		ForestNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "forester_forest_nodes",
			Help:    "Packed-forest nodes per sentence.",
			Buckets: prometheus.ExponentialBuckets(8, 4, 10),
		}),
	}
	m.registry.MustRegister(m.Sentences, m.Failures, m.CacheHits, m.Reloads,
		m.DecodeSeconds, m.CubePops, m.ForestNodes)
	return m
}

// Registry exposes the metrics for scraping; hand it to promhttp.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
