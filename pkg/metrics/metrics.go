package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	TasksCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solrunner_tasks_created_total",
		Help: "The total number of deferred swap tasks created",
	}, []string{"trigger"})

	TasksExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solrunner_tasks_executed_total",
		Help: "The total number of deferred swap tasks executed by outcome",
	}, []string{"trigger", "status"})

	TasksExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solrunner_tasks_expired_total",
		Help: "The total number of deferred swap tasks dropped at their expiry horizon",
	})

	PendingTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "solrunner_pending_tasks",
		Help: "The number of pending tasks waiting on their trigger",
	})

	SwapsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solrunner_swaps_executed_total",
		Help: "The total number of swap executions by status",
	}, []string{"status"})

	TransfersExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solrunner_transfers_executed_total",
		Help: "The total number of transfer executions by status",
	}, []string{"status"})

	ExecutionTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solrunner_execution_seconds",
		Help:    "Time taken to execute an operation end to end",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10), // Start at 1s with 10 buckets doubling in size
	}, []string{"operation"})

	SafetyRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solrunner_safety_rejections_total",
		Help: "Total number of operations rejected by pre-flight safety checks",
	}, []string{"reason"})

	ExecutionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solrunner_execution_errors_total",
		Help: "Total number of execution errors by type",
	}, []string{"error_type"})

	QuoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solrunner_quote_requests_total",
		Help: "Total number of aggregator quote requests by status",
	}, []string{"status"})

	PriceLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solrunner_price_lookups_total",
		Help: "Total number of price feed lookups by status",
	}, []string{"status"})

	PriceCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solrunner_price_cache_hits_total",
		Help: "Total number of price lookups served from cache",
	})

	ConfirmationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solrunner_confirmation_outcomes_total",
		Help: "Total number of user confirmation gate outcomes",
	}, []string{"outcome"})

	InflightTransactions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "solrunner_inflight_transactions",
		Help: "The number of submitted transactions still awaiting a terminal status",
	})

	LateConfirmations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solrunner_late_confirmations_total",
		Help: "Transactions that confirmed after their synchronous polling window",
	})

	SchedulerTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "solrunner_scheduler_tick_seconds",
		Help:    "Time taken to evaluate all pending tasks in one scheduler tick",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)
