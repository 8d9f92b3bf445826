package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the configuration engine.
type Metrics struct {
	// Cache metrics
	CacheHitsTotal          *prometheus.CounterVec
	CacheMissesTotal        *prometheus.CounterVec
	CacheInvalidationsTotal *prometheus.CounterVec
	CacheErrorsTotal        prometheus.Counter

	// Store metrics
	StoreReadsTotal  *prometheus.CounterVec
	StoreWritesTotal *prometheus.CounterVec
	StoreErrorsTotal prometheus.Counter
	ResolveDuration  *prometheus.HistogramVec
	ResolveFallbacks *prometheus.CounterVec

	// Change tracking metrics
	AuditRecordsTotal *prometheus.CounterVec
	ConfigVersion     *prometheus.GaugeVec
}

// NewMetrics creates and registers all metrics on the given registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecfg_cache_hits_total",
				Help: "Total number of version-valid cache hits",
			},
			[]string{"category"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecfg_cache_misses_total",
				Help: "Total number of cache misses, including stale entries",
			},
			[]string{"category"},
		),
		CacheInvalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecfg_cache_invalidations_total",
				Help: "Total number of cache invalidations",
			},
			[]string{"category"},
		),
		CacheErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sitecfg_cache_errors_total",
				Help: "Total number of cache transport failures",
			},
		),
		StoreReadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecfg_store_reads_total",
				Help: "Total number of persisted store reads",
			},
			[]string{"category"},
		),
		StoreWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecfg_store_writes_total",
				Help: "Total number of accepted writes",
			},
			[]string{"category", "operation"},
		),
		StoreErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sitecfg_store_errors_total",
				Help: "Total number of persisted store failures",
			},
		),
		ResolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitecfg_resolve_duration_seconds",
				Help:    "Configuration resolution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"category", "source"},
		),
		ResolveFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecfg_resolve_fallbacks_total",
				Help: "Total number of resolutions served from a fallback source",
			},
			[]string{"category", "fallback"},
		),
		AuditRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecfg_audit_records_total",
				Help: "Total number of audit records appended",
			},
			[]string{"category", "operation"},
		),
		ConfigVersion: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sitecfg_config_version",
				Help: "Latest known persisted version per category",
			},
			[]string{"category"},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.CacheHitsTotal, m.CacheMissesTotal, m.CacheInvalidationsTotal, m.CacheErrorsTotal,
			m.StoreReadsTotal, m.StoreWritesTotal, m.StoreErrorsTotal,
			m.ResolveDuration, m.ResolveFallbacks,
			m.AuditRecordsTotal, m.ConfigVersion,
		)
	}
	return m
}
