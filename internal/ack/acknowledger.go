package ack

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/calebrw/taskgate/internal/audit"
	"github.com/calebrw/taskgate/internal/logging"
	"github.com/calebrw/taskgate/internal/metrics"
	"github.com/calebrw/taskgate/internal/queue"
	"github.com/calebrw/taskgate/internal/tracing"
)

// Acknowledger deletes queue tasks and leaves an audit trail that separates
// "acked after success" from "deleted without success". It never escalates
// deletion failures to the caller: an undeleted task is simply redelivered,
// which is wasteful but safe.
type Acknowledger struct {
	deleter  queue.Deleter
	recorder *audit.Recorder
	log      *logging.Logger
}

func New(deleter queue.Deleter, recorder *audit.Recorder, log *logging.Logger) *Acknowledger {
	if log == nil {
		log = logging.New("ack")
	}
	return &Acknowledger{deleter: deleter, recorder: recorder, log: log}
}

// Ack acknowledges successful processing by deleting the task. The audit
// record is INFO on success; on failure it is ERROR plus a separate
// operator-facing error log.
func (a *Acknowledger) Ack(ctx context.Context, taskPath string) {
	ctx, span := tracing.StartSpan(ctx, "ack.ack",
		attribute.String("task_path", taskPath),
	)
	defer span.End()

	if err := a.deleter.DeleteTask(ctx, taskPath); err != nil {
		tracing.SetSpanError(ctx, err)
		metrics.RecordTaskDeletion("ack", "error")
		a.recorder.Record(ctx, audit.NewDeletionEvent(taskPath, audit.OutcomeAck, "ERROR", "", err.Error()))
		a.log.WithContext(ctx).WithTask(taskPath).WithError(err).
			Error("task deletion failed, task will be redelivered")
		return
	}
	metrics.RecordTaskDeletion("ack", "ok")
	a.recorder.Record(ctx, audit.NewDeletionEvent(taskPath, audit.OutcomeAck, "INFO", "processed", ""))
}

// Abandon removes the task without successful processing, after the retry
// budget is exhausted. The audit record is CRITICAL so alerting can catch
// it: from the sender's perspective this event is now lost.
func (a *Acknowledger) Abandon(ctx context.Context, taskPath, reason string) {
	ctx, span := tracing.StartSpan(ctx, "ack.abandon",
		attribute.String("task_path", taskPath),
	)
	defer span.End()

	if err := a.deleter.DeleteTask(ctx, taskPath); err != nil {
		tracing.SetSpanError(ctx, err)
		metrics.RecordTaskDeletion("abandon", "error")
		a.recorder.Record(ctx, audit.NewDeletionEvent(taskPath, audit.OutcomeAbandon, "ERROR", reason, err.Error()))
		a.log.WithContext(ctx).WithTask(taskPath).WithError(err).
			Error("abandon deletion failed, task will be redelivered")
		return
	}
	metrics.RecordTaskDeletion("abandon", "ok")
	metrics.RecordAbandon()
	a.recorder.Record(ctx, audit.NewDeletionEvent(taskPath, audit.OutcomeAbandon, "CRITICAL", reason, ""))
}
