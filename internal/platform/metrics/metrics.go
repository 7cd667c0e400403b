package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pipeline. All record helpers
// are nil-safe so tests can pass a nil *Metrics without stubbing.
type Metrics struct {
	DocumentsGenerated  *prometheus.CounterVec
	StabilizeIterations prometheus.Histogram
	StabilizeOverflows  prometheus.Counter
	Uploads             *prometheus.CounterVec
	RegistryUpserts     *prometheus.CounterVec
	Resolutions         *prometheus.CounterVec
	FallbackSearches    prometheus.Counter
	HintCacheHits       prometheus.Counter
	HintCacheMisses     prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		DocumentsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_documents_generated_total",
			Help: "Certified documents generated, by lane.",
		}, []string{"lane"}),
		StabilizeIterations: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veridoc_stabilize_iterations",
			Help:    "Render iterations needed for the content hash to reach a fixed point.",
			Buckets: []float64{1, 2, 3, 4},
		}),
		StabilizeOverflows: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_stabilize_overflows_total",
			Help: "Stabilization runs that exhausted the iteration bound.",
		}),
		Uploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_blob_uploads_total",
			Help: "Blob uploads, by outcome.",
		}, []string{"outcome"}),
		RegistryUpserts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_registry_upserts_total",
			Help: "Registry upserts, by outcome (inserted, updated, collapsed).",
		}, []string{"outcome"}),
		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_resolutions_total",
			Help: "Artifact resolutions, by authority tier served.",
		}, []string{"tier"}),
		FallbackSearches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_resolution_fallback_searches_total",
			Help: "Resolutions that required a directory-listing fallback search.",
		}),
		HintCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_resolution_hint_cache_hits_total",
			Help: "Resolution hint cache hits.",
		}),
		HintCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_resolution_hint_cache_misses_total",
			Help: "Resolution hint cache misses.",
		}),
	}
}

func (m *Metrics) RecordGenerated(lane string) {
	if m == nil {
		return
	}
	m.DocumentsGenerated.WithLabelValues(lane).Inc()
}

func (m *Metrics) ObserveStabilizeIterations(n int) {
	if m == nil {
		return
	}
	m.StabilizeIterations.Observe(float64(n))
}

func (m *Metrics) RecordStabilizeOverflow() {
	if m == nil {
		return
	}
	m.StabilizeOverflows.Inc()
}

func (m *Metrics) RecordUpload(outcome string) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordUpsert(outcome string) {
	if m == nil {
		return
	}
	m.RegistryUpserts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordResolution(tier string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(tier).Inc()
}

func (m *Metrics) RecordFallbackSearch() {
	if m == nil {
		return
	}
	m.FallbackSearches.Inc()
}

func (m *Metrics) RecordHintCacheHit() {
	if m == nil {
		return
	}
	m.HintCacheHits.Inc()
}

func (m *Metrics) RecordHintCacheMiss() {
	if m == nil {
		return
	}
	m.HintCacheMisses.Inc()
}
