package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all metrics
type Metrics struct {
	VectorInserts prometheus.Counter
	SearchQueries prometheus.Counter
	SearchErrors  prometheus.Counter
	SearchLatency prometheus.Histogram
}

// NewMetrics creates metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		VectorInserts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "alexvdb_vector_inserts_total",
			Help: "Total vector insertions",
		}),
		SearchQueries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "alexvdb_search_queries_total",
			Help: "Total search queries",
		}),
		SearchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "alexvdb_search_errors_total",
			Help: "Total search errors",
		}),
		SearchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "alexvdb_search_latency_seconds",
			Help: "Search latency",
		}),
	}
}

// KVMetrics holds metrics for the learned-index key/value engine,
// registered separately from Metrics since a caller may open a Storage
// without ever creating a Database.
type KVMetrics struct {
	Inserts     prometheus.Counter
	Deletes     prometheus.Counter
	Gets        prometheus.Counter
	Compactions prometheus.Counter
}

// NewKVMetrics creates the learned-index engine's metrics instance.
func NewKVMetrics() *KVMetrics {
	return &KVMetrics{
		Inserts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "alexvdb_kv_inserts_total",
			Help: "Total key/value inserts",
		}),
		Deletes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "alexvdb_kv_deletes_total",
			Help: "Total key/value deletes",
		}),
		Gets: promauto.NewCounter(prometheus.CounterOpts{
			Name: "alexvdb_kv_gets_total",
			Help: "Total key/value point lookups",
		}),
		Compactions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "alexvdb_kv_compactions_total",
			Help: "Total tree compaction passes",
		}),
	}
}
