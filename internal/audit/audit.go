package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"github.com/calebrw/taskgate/internal/logging"
)

const EventType = "task.deletion"

// Outcome tags a deletion event so a normal ack is distinguishable from a
// task removed without successful processing in any downstream audit trail.
type Outcome string

const (
	OutcomeAck     Outcome = "ack"
	OutcomeAbandon Outcome = "abandon"
)

// DeletionEvent is one auditable queue-task deletion.
type DeletionEvent struct {
	ID       string  `json:"id"`
	Type     string  `json:"type"`     // "task.deletion"
	Version  string  `json:"version"`  // schema version
	At       string  `json:"at"`       // RFC3339 time of the deletion attempt
	TaskPath string  `json:"task_path"`
	Outcome  Outcome `json:"outcome"`
	Severity string  `json:"severity"` // INFO | ERROR | CRITICAL
	Reason   string  `json:"reason,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// NewDeletionEvent builds an audit event for a task deletion attempt.
func NewDeletionEvent(taskPath string, outcome Outcome, severity, reason, errText string) DeletionEvent {
	return DeletionEvent{
		ID:       uuid.NewString(),
		Type:     EventType,
		Version:  "v1",
		At:       time.Now().UTC().Format(time.RFC3339Nano),
		TaskPath: taskPath,
		Outcome:  outcome,
		Severity: severity,
		Reason:   reason,
		Error:    errText,
	}
}

// Publisher is the subset of nsq.Producer the recorder needs.
type Publisher interface {
	Publish(topic string, body []byte) error
}

var _ Publisher = (*nsq.Producer)(nil)

// Recorder writes deletion-audit events to the audit log channel and,
// when configured, publishes them to a message topic so alerting rules can
// consume them independently of log transport.
type Recorder struct {
	log   *logging.Logger
	pub   Publisher
	topic string
}

// NewRecorder builds a recorder. pub may be nil to disable topic publishing.
func NewRecorder(log *logging.Logger, pub Publisher, topic string) *Recorder {
	if log == nil {
		log = logging.New("audit")
	}
	return &Recorder{log: log, pub: pub, topic: topic}
}

// Record emits the event on the audit channel and the topic. Publish
// failures are logged, never propagated: losing an audit copy must not fail
// the deletion path it describes.
func (r *Recorder) Record(ctx context.Context, ev DeletionEvent) {
	entry := r.log.WithContext(ctx).WithChannel(logging.ChannelAudit).WithFields(map[string]any{
		"audit_id":  ev.ID,
		"task_path": ev.TaskPath,
		"outcome":   string(ev.Outcome),
	})
	if ev.Error != "" {
		entry = entry.WithField("error", ev.Error)
	}

	switch ev.Severity {
	case "CRITICAL":
		entry.Critical("queue task deleted without successful processing")
	case "ERROR":
		entry.Error("queue task deletion failed")
	default:
		entry.Info("queue task deleted")
	}

	if r.pub == nil || r.topic == "" {
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		r.log.WithContext(ctx).WithError(err).Error("marshal audit event failed")
		return
	}
	if err := r.pub.Publish(r.topic, body); err != nil {
		r.log.WithContext(ctx).WithField("topic", r.topic).WithError(err).
			Error("audit publish failed")
	}
}
