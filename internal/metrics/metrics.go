package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the service's Prometheus collectors behind one handler.
type Registry struct {
	reg *prometheus.Registry

	QueriesTotal      prometheus.Counter
	QueryFailures     prometheus.Counter
	RecordsFetched    prometheus.Counter
	FetchLatencySec   prometheus.Histogram
	LedgerWritesTotal prometheus.Counter
	EventsPublished   prometheus.Counter
}

// NewRegistry creates a registry with all collectors registered.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	queries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shipment_queries_total",
		Help: "Number of shipment queries run through the pipeline.",
	})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shipment_query_failures_total",
		Help: "Number of shipment queries that returned an error.",
	})
	fetched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shipment_records_fetched_total",
		Help: "Number of raw shipment records fetched from the ledger.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "shipment_fetch_latency_seconds",
		Help:    "Latency of ledger fetch batches.",
		Buckets: prometheus.DefBuckets,
	})
	writes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_writes_total",
		Help: "Number of transactions submitted to the ledger.",
	})
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shipment_events_published_total",
		Help: "Number of shipment events published to Kafka.",
	})

	r.MustRegister(queries, failures, fetched, latency, writes, published)

	return &Registry{
		reg:               r,
		QueriesTotal:      queries,
		QueryFailures:     failures,
		RecordsFetched:    fetched,
		FetchLatencySec:   latency,
		LedgerWritesTotal: writes,
		EventsPublished:   published,
	}
}

// Handler returns the HTTP handler serving this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
