package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskgate_deliveries_total",
			Help: "Total number of inbound webhook deliveries by outcome.",
		},
		[]string{"outcome"}, // success, duplicate, rejected, failed
	)

	AdmitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskgate_admits_total",
			Help: "Total number of idempotency gate decisions by result.",
		},
		[]string{"result"}, // created, conflict, error
	)

	TaskDeletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskgate_task_deletions_total",
			Help: "Total number of queue task deletions by mode and result.",
		},
		[]string{"mode", "result"}, // mode: ack|abandon, result: ok|error
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskgate_retry_attempts_total",
			Help: "Total number of retried outbound attempts by operation.",
		},
		[]string{"operation"},
	)

	AbandonsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskgate_abandons_total",
			Help: "Total number of tasks deleted without successful processing.",
		},
	)
)

// RecordDelivery increments the delivery counter for the given outcome
func RecordDelivery(outcome string) {
	DeliveriesTotal.WithLabelValues(outcome).Inc()
}

// RecordAdmit increments the gate decision counter for the given result
func RecordAdmit(result string) {
	AdmitsTotal.WithLabelValues(result).Inc()
}

// RecordTaskDeletion increments the task deletion counter
func RecordTaskDeletion(mode, result string) {
	TaskDeletionsTotal.WithLabelValues(mode, result).Inc()
}

// RecordRetryAttempt increments the retry counter for an outbound operation
func RecordRetryAttempt(operation string) {
	RetryAttemptsTotal.WithLabelValues(operation).Inc()
}

// RecordAbandon increments the abandon counter
func RecordAbandon() {
	AbandonsTotal.Inc()
}

func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(DeliveriesTotal, AdmitsTotal, TaskDeletionsTotal, RetryAttemptsTotal, AbandonsTotal)
}
