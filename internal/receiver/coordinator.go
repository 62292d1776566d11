package receiver

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/calebrw/taskgate/internal/ack"
	"github.com/calebrw/taskgate/internal/config"
	"github.com/calebrw/taskgate/internal/idempotency"
	"github.com/calebrw/taskgate/internal/logging"
	"github.com/calebrw/taskgate/internal/metrics"
	"github.com/calebrw/taskgate/internal/queue"
	"github.com/calebrw/taskgate/internal/store"
	"github.com/calebrw/taskgate/internal/tracing"
	"github.com/calebrw/taskgate/internal/work"
)

// Outcome of coordinating one delivery.
type Outcome int

const (
	// OutcomeSuccess: first delivery, work done, record completed, task acked.
	OutcomeSuccess Outcome = iota
	// OutcomeDuplicate: suppressed; task still acked to stop redelivery.
	OutcomeDuplicate
	// OutcomeRetry: work failed with retries remaining; task left standing.
	OutcomeRetry
	// OutcomeAbandoned: work failed with the retry budget exhausted; task
	// force-deleted.
	OutcomeAbandoned
)

// Coordinator sequences the idempotency gate, the work unit and the task
// acknowledger for one delivery. It is deliberately thin: every correctness
// property lives in the gate and the store underneath it.
type Coordinator struct {
	gate     *idempotency.Gate
	ack      *ack.Acknowledger
	unit     work.Unit
	records  store.RecordStore
	queueCfg config.Queue
	log      *logging.Logger
}

func NewCoordinator(gate *idempotency.Gate, acker *ack.Acknowledger, unit work.Unit, records store.RecordStore, queueCfg config.Queue, log *logging.Logger) *Coordinator {
	if log == nil {
		log = logging.New("receiver")
	}
	if unit == nil {
		unit = work.Noop{}
	}
	return &Coordinator{
		gate:     gate,
		ack:      acker,
		unit:     unit,
		records:  records,
		queueCfg: queueCfg,
		log:      log,
	}
}

// TaskPath resolves a queue-assigned task name into its full path.
func (c *Coordinator) TaskPath(taskName string) string {
	return queue.TaskPath(c.queueCfg.ProjectID, c.queueCfg.Location, c.queueCfg.QueueName, taskName)
}

// Process runs one delivery through the gate, the work unit and the
// acknowledger. The returned error is non-nil only for OutcomeRetry and
// OutcomeAbandoned and carries the work-unit failure.
func (c *Coordinator) Process(ctx context.Context, d work.Delivery) (Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "receiver.process",
		attribute.String("event_id", d.EventID),
		attribute.String("task_name", d.TaskName),
		attribute.Int("retry_count", d.RetryCount),
	)
	defer span.End()

	taskPath := c.TaskPath(d.TaskName)

	admitted, err := c.gate.Admit(ctx, d.EventID)
	if err != nil {
		// Contract violation; the handler rejects empty event ids before
		// calling Process, so this indicates a programming error.
		return OutcomeRetry, err
	}
	if !admitted {
		// Duplicate deliveries still acknowledge the task, otherwise the
		// queue keeps redelivering an event we will never process.
		tracing.AddSpanEvent(ctx, "duplicate_suppressed")
		c.ack.Ack(ctx, taskPath)
		metrics.RecordDelivery("duplicate")
		return OutcomeDuplicate, nil
	}

	if workErr := c.unit.Process(ctx, d); workErr != nil {
		tracing.SetSpanError(ctx, workErr)
		c.gate.Revert(ctx, d.EventID)
		metrics.RecordDelivery("failed")

		if d.RetryCount >= c.queueCfg.MaxRetries {
			reason := fmt.Sprintf("retry budget exhausted after %d retries", d.RetryCount)
			c.log.WithContext(ctx).WithEvent(d.EventID).WithTask(taskPath).WithError(workErr).
				Critical("abandoning task, event will not be processed")
			c.ack.Abandon(ctx, taskPath, reason)
			return OutcomeAbandoned, workErr
		}

		c.log.WithContext(ctx).WithEvent(d.EventID).WithTask(taskPath).WithFields(map[string]any{
			"retry_count": d.RetryCount,
			"max_retries": c.queueCfg.MaxRetries,
		}).WithError(workErr).Warn("processing failed, leaving task for redelivery")
		return OutcomeRetry, workErr
	}

	c.gate.Complete(ctx, d.EventID)
	c.ack.Ack(ctx, taskPath)
	metrics.RecordDelivery("success")
	return OutcomeSuccess, nil
}
