package observability

import (
	"sort"
	"time"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the tracker.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration  *prometheus.HistogramVec
	operationsTotal    *prometheus.CounterVec
	externalErrors     *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheInvalidations prometheus.Counter
	recalculations     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracker_operation_duration_seconds",
				Help:    "Duration of mutation and query operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_operations_total",
				Help: "Total operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_external_errors_total",
				Help: "Total errors from backing services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_cache_hits_total",
				Help: "Total cache hits per cached query.",
			},
			[]string{"query"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_cache_misses_total",
				Help: "Total cache misses per cached query.",
			},
			[]string{"query"},
		),
		cacheInvalidations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tracker_cache_invalidated_tags_total",
				Help: "Total tags invalidated.",
			},
		),
		recalculations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_recalculations_total",
				Help: "Aggregate recalculations by entry kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
	}
}

// RecordOperationDuration records the duration of an operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrOperation counts one operation with its outcome (success, failure, error).
func (m *Metrics) IncrOperation(operation, outcome string) {
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(query string) {
	m.cacheHits.WithLabelValues(query).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(query string) {
	m.cacheMisses.WithLabelValues(query).Inc()
}

// AddCacheInvalidations counts invalidated tags.
func (m *Metrics) AddCacheInvalidations(n int) {
	m.cacheInvalidations.Add(float64(n))
}

// IncrRecalculation counts one aggregate recalculation.
func (m *Metrics) IncrRecalculation(kind, outcome string) {
	m.recalculations.WithLabelValues(kind, outcome).Inc()
}

// GetCacheSnapshot returns per-query cache counters suitable for the
// GET /v1/metrics/cache endpoint.
func (m *Metrics) GetCacheSnapshot() *domain.CacheStats {
	hits := counterValues(m.cacheHits)
	misses := counterValues(m.cacheMisses)

	names := make([]string, 0, len(hits)+len(misses))
	for name := range hits {
		names = append(names, name)
	}
	for name := range misses {
		if _, ok := hits[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	stats := &domain.CacheStats{
		Queries:       make([]domain.QueryCacheStats, 0, len(names)),
		Invalidations: metricValue(m.cacheInvalidations),
	}
	for _, name := range names {
		q := domain.QueryCacheStats{Name: name, Hits: hits[name], Misses: misses[name]}
		if total := q.Hits + q.Misses; total > 0 {
			q.HitRatio = q.Hits / total
		}
		stats.Queries = append(stats.Queries, q)
	}
	return stats
}

// counterValues collects a single-label CounterVec into label -> value.
func counterValues(cv *prometheus.CounterVec) map[string]float64 {
	ch := make(chan prometheus.Metric)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	out := make(map[string]float64)
	for metric := range ch {
		pb := &dto.Metric{}
		if err := metric.Write(pb); err != nil || pb.Counter == nil || len(pb.Label) == 0 {
			continue
		}
		out[pb.Label[0].GetValue()] = pb.Counter.GetValue()
	}
	return out
}

// metricValue extracts the current float64 value of a counter.
func metricValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
