package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the exchange.
type Metrics struct {
	// --- Exchange operations ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec
	Journals    *prometheus.CounterVec
	Sequence    prometheus.Gauge

	// --- Settlement ---
	MatchesSettled *prometheus.CounterVec
	MatchedVolume  *prometheus.CounterVec
	FeesCollected  *prometheus.CounterVec

	// --- Registry cache ---
	RegistryCacheHits      *prometheus.CounterVec
	RegistryCacheSize      prometheus.Gauge
	RegistryCacheEvictions prometheus.Counter

	// --- Ingestion ---
	CommandsReceived *prometheus.CounterVec
	CommandsNaked    *prometheus.CounterVec
	IngestToApply    *prometheus.HistogramVec

	// --- Publishing ---
	PublishFailures *prometheus.CounterVec

	// --- Persistence ---
	PersistEventsWritten   prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistBatchSize       prometheus.Histogram
	PersistBatchDur        prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	PersistLastSequence    prometheus.Gauge
	PersistBackpressure    prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	latencyBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.002, 0.005, 0.01, 0.05, 0.1,
	}

	return &Metrics{
		OpsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wyvern_ops_applied_total",
			Help: "Operations committed by the exchange",
		}, []string{"op"}),

		OpsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wyvern_ops_rejected_total",
			Help: "Operations rejected, by error code",
		}, []string{"op", "code"}),

		OpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wyvern_op_duration_seconds",
			Help:    "Time to run one exchange operation including commit",
			Buckets: latencyBuckets,
		}, []string{"op"}),

		Journals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wyvern_journals_generated_total",
			Help: "Transfer legs committed",
		}, []string{"journal_type"}),

		Sequence: f.NewGauge(prometheus.GaugeOpts{
			Name: "wyvern_event_sequence",
			Help: "Last committed event sequence",
		}),

		MatchesSettled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wyvern_matches_settled_total",
			Help: "Matches settled",
		}, []string{"fee_method", "currency"}),

		MatchedVolume: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wyvern_matched_volume",
			Help: "Sum of match prices (float approximation)",
		}, []string{"currency"}),

		FeesCollected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wyvern_fees_collected",
			Help: "Sum of fee legs (float approximation)",
		}, []string{"journal_type"}),

		RegistryCacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wyvern_registry_cache_lookups_total",
			Help: "Finalized-hash lookups by tier",
		}, []string{"tier"}),

		RegistryCacheSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "wyvern_registry_cache_size",
			Help: "Finalized hashes held in the LRU",
		}),

		RegistryCacheEvictions: f.NewCounter(prometheus.CounterOpts{
			Name: "wyvern_registry_cache_evictions_total",
			Help: "LRU evictions",
		}),

		CommandsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wyvern_commands_received_total",
			Help: "Commands received from NATS",
		}, []string{"command"}),

		CommandsNaked: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wyvern_commands_naked_total",
			Help: "Commands returned for redelivery",
		}, []string{"command"}),

		IngestToApply: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wyvern_ingest_to_apply_seconds",
			Help:    "NATS receive to exchange commit",
			Buckets: latencyBuckets,
		}, []string{"command"}),

		PublishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wyvern_publish_failures_total",
			Help: "Event publish failures by sink",
		}, []string{"sink"}),

		PersistEventsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "wyvern_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistJournalsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "wyvern_persist_journals_written_total",
			Help: "Journal entries written to Postgres",
		}),

		PersistBatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "wyvern_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "wyvern_persist_batch_duration_seconds",
			Help:    "Time to write one batch",
			Buckets: prometheus.DefBuckets,
		}),

		PersistErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wyvern_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistLastSequence: f.NewGauge(prometheus.GaugeOpts{
			Name: "wyvern_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		PersistBackpressure: f.NewCounter(prometheus.CounterOpts{
			Name: "wyvern_persist_backpressure_total",
			Help: "Publishes that blocked on a full persistence queue",
		}),
	}
}
