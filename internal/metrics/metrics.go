// Package metrics exposes Prometheus counters for the resolution pipeline.
// All methods are nil-safe so callers can run without a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	resolutions    *prometheus.CounterVec
	providerFetch  *prometheus.CounterVec
	cacheHits      *prometheus.CounterVec
	cacheMisses    prometheus.Counter
	syncRuns       *prometheus.CounterVec
	fetchDurations *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wert_resolutions_total",
			Help: "Price resolutions by outcome.",
		}, []string{"outcome"}),
		providerFetch: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wert_provider_fetches_total",
			Help: "Upstream fetch attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wert_cache_hits_total",
			Help: "Cache hits by tier.",
		}, []string{"tier"}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "wert_cache_misses_total",
			Help: "Lookups that fell through both cache tiers.",
		}),
		syncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wert_sync_runs_total",
			Help: "Scheduled resync runs by outcome.",
		}, []string{"outcome"}),
		fetchDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wert_provider_fetch_seconds",
			Help:    "Upstream fetch latency by provider.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
	}
}

func (m *Metrics) Resolution(outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ProviderFetch(provider, outcome string) {
	if m == nil {
		return
	}
	m.providerFetch.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) CacheHit(tier string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(tier).Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) SyncRun(outcome string) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) FetchDuration(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.fetchDurations.WithLabelValues(provider).Observe(seconds)
}
