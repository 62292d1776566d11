package ack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/calebrw/taskgate/internal/audit"
	"github.com/calebrw/taskgate/internal/logging"
)

type fakeDeleter struct {
	calls []string
	err   error
}

func (f *fakeDeleter) DeleteTask(_ context.Context, path string) error {
	f.calls = append(f.calls, path)
	return f.err
}

type fakePublisher struct {
	events []audit.DeletionEvent
}

func (f *fakePublisher) Publish(_ string, body []byte) error {
	var ev audit.DeletionEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return err
	}
	f.events = append(f.events, ev)
	return nil
}

func newTestAcknowledger(deleter *fakeDeleter, pub *fakePublisher, buf *bytes.Buffer) *Acknowledger {
	log := logging.NewWithWriter("ack-test", buf)
	return New(deleter, audit.NewRecorder(log, pub, "task_deletions"), log)
}

func TestAcknowledger_Ack_Success(t *testing.T) {
	deleter := &fakeDeleter{}
	pub := &fakePublisher{}
	a := newTestAcknowledger(deleter, pub, &bytes.Buffer{})

	a.Ack(context.Background(), "projects/p/locations/l/queues/q/tasks/t")

	if len(deleter.calls) != 1 {
		t.Fatalf("DeleteTask called %d times, want 1", len(deleter.calls))
	}
	if len(pub.events) != 1 {
		t.Fatalf("audit events = %d, want 1", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Outcome != audit.OutcomeAck || ev.Severity != "INFO" {
		t.Errorf("audit event = outcome %q severity %q, want ack/INFO", ev.Outcome, ev.Severity)
	}
}

func TestAcknowledger_Ack_DeletionFailure(t *testing.T) {
	var buf bytes.Buffer
	deleter := &fakeDeleter{err: errors.New("queue unavailable")}
	pub := &fakePublisher{}
	a := newTestAcknowledger(deleter, pub, &buf)

	// Must not panic or propagate: the task is simply redelivered.
	a.Ack(context.Background(), "tasks/t")

	if len(pub.events) != 1 {
		t.Fatalf("audit events = %d, want 1", len(pub.events))
	}
	if pub.events[0].Severity != "ERROR" {
		t.Errorf("audit severity = %q, want ERROR", pub.events[0].Severity)
	}
	if pub.events[0].Error == "" {
		t.Error("audit event is missing the deletion error")
	}
	if !strings.Contains(buf.String(), "task deletion failed") {
		t.Error("operator-facing error log missing")
	}
}

func TestAcknowledger_Abandon(t *testing.T) {
	deleter := &fakeDeleter{}
	pub := &fakePublisher{}
	a := newTestAcknowledger(deleter, pub, &bytes.Buffer{})

	a.Abandon(context.Background(), "tasks/t", "retry budget exhausted after 5 retries")

	if len(deleter.calls) != 1 {
		t.Fatalf("DeleteTask called %d times, want 1", len(deleter.calls))
	}
	ev := pub.events[0]
	if ev.Outcome != audit.OutcomeAbandon {
		t.Errorf("audit outcome = %q, want abandon", ev.Outcome)
	}
	if ev.Severity != "CRITICAL" {
		t.Errorf("audit severity = %q, want CRITICAL (must be alertable)", ev.Severity)
	}
	if ev.Reason == "" {
		t.Error("abandon audit event is missing the reason")
	}
}

func TestAcknowledger_Abandon_DeletionFailure(t *testing.T) {
	deleter := &fakeDeleter{err: errors.New("queue unavailable")}
	pub := &fakePublisher{}
	a := newTestAcknowledger(deleter, pub, &bytes.Buffer{})

	a.Abandon(context.Background(), "tasks/t", "exhausted")

	if len(pub.events) != 1 {
		t.Fatalf("audit events = %d, want 1", len(pub.events))
	}
	if pub.events[0].Severity != "ERROR" {
		t.Errorf("audit severity = %q, want ERROR", pub.events[0].Severity)
	}
}
