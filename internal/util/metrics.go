package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	ScansAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scans_accepted_total",
		Help: "Total number of unit scans accepted",
	})

	ScansRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scans_rejected_total",
		Help: "Total number of unit scans rejected",
	}, []string{"reason"})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of successful order status transitions",
	}, []string{"from", "to"})

	TransitionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_rejected_total",
		Help: "Total number of rejected order status transitions",
	}, []string{"reason"})

	SnapshotsAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_snapshots_applied_total",
		Help: "Total number of change-feed snapshots applied to the local cache",
	})

	SnapshotsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_snapshots_published_total",
		Help: "Total number of order snapshots published to the change feed",
	})

	OptimisticRollbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "optimistic_rollbacks_total",
		Help: "Total number of optimistic local updates rolled back",
	})

	StoreUnavailableTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_unavailable_total",
		Help: "Total number of operations that failed on store unavailability",
	}, []string{"op"})

	PersistLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "persist_latency_seconds",
		Help:    "Latency of store persistence operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
