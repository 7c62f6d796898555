package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planstore_http_requests_total",
		Help: "The total number of HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planstore_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// Plan operation metrics
	PlanOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planstore_plan_operations_total",
		Help: "The total number of plan operations",
	}, []string{"operation", "status"})

	// Key index metrics
	IndexRebuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planstore_index_rebuilds_total",
		Help: "The total number of key index rebuilds",
	}, []string{"status"})

	// Event dispatcher metrics
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planstore_events_published_total",
		Help: "The total number of change events handed to the sink",
	}, []string{"status"})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planstore_events_dropped_total",
		Help: "The total number of change events dropped because the queue was full",
	})

	EventQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planstore_event_queue_depth",
		Help: "The current number of change events waiting to be published",
	})
)
