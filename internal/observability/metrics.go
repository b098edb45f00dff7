package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for StreamLedger.
type Metrics struct {
	// --- Claimable calculation engine ---
	CalcRequests *prometheus.CounterVec // source: cache | computed
	CalcErrors   *prometheus.CounterVec // field with the malformed amount
	CalcDuration prometheus.Histogram
	CacheEntries prometheus.Gauge

	// --- Ingestion ---
	IngestEventsApplied    *prometheus.CounterVec // event_type
	IngestEventsRejected   *prometheus.CounterVec // event_type, reason
	IngestApplyDuration    *prometheus.HistogramVec
	IdempotencyDuplicates  *prometheus.CounterVec // event_type, tier
	IdempotencyTier2Errors prometheus.Counter
	StaleEventsDropped     *prometheus.CounterVec // event_type
	ApplySequence          prometheus.Gauge
	PublishDrops           prometheus.Counter

	// --- Query API ---
	QueryRequests *prometheus.CounterVec // endpoint
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec // endpoint, reason
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	calcBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001,
	}

	applyBuckets := []float64{
		0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25,
	}

	return &Metrics{
		CalcRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_calc_requests_total",
			Help: "Claimable calculations served, by source (cache/computed)",
		}, []string{"source"}),

		CalcErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_calc_errors_total",
			Help: "Claimable calculations failed on malformed amount strings",
		}, []string{"field"}),

		CalcDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stream_calc_duration_seconds",
			Help:    "Time to compute a claimable amount on cache miss",
			Buckets: calcBuckets,
		}),

		CacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stream_calc_cache_entries",
			Help: "Entries currently held by the result cache",
		}),

		IngestEventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_ingest_events_applied_total",
			Help: "Contract events applied to the stream mirror",
		}, []string{"event_type"}),

		IngestEventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_ingest_events_rejected_total",
			Help: "Contract events rejected (parse, duplicate, stale)",
		}, []string{"event_type", "reason"}),

		IngestApplyDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stream_ingest_apply_duration_seconds",
			Help:    "NATS receive to Postgres commit per event",
			Buckets: applyBuckets,
		}, []string{"event_type"}),

		IdempotencyDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_idempotency_duplicates_total",
			Help: "Duplicates caught (lru/postgres)",
		}, []string{"event_type", "tier"}),

		IdempotencyTier2Errors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stream_idempotency_tier2_errors_total",
			Help: "Postgres dedup lookups that failed",
		}),

		StaleEventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_stale_events_dropped_total",
			Help: "Events dropped for regressing ledger sequence",
		}, []string{"event_type"}),

		ApplySequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stream_apply_sequence",
			Help: "Current local event-log sequence",
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stream_publish_drops_total",
			Help: "Outbound notifications dropped due to full publish channel",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_query_requests_total",
			Help: "Query API requests",
		}, []string{"endpoint"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stream_query_duration_seconds",
			Help:    "Query API latency",
			Buckets: applyBuckets,
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_query_errors_total",
			Help: "Query API errors",
		}, []string{"endpoint", "reason"}),
	}
}
