package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, line)
	}
	return entry
}

func TestLoggerEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("test-service", &buf)

	log.WithContext(context.Background()).WithEvent("e1").WithTask("tasks/t1").
		WithField("retry_count", 3).Info("delivery received")

	entry := decodeLine(t, &buf)
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
	if entry["msg"] != "delivery received" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["service"] != "test-service" {
		t.Errorf("service = %v", entry["service"])
	}
	if entry["event_id"] != "e1" || entry["task_name"] != "tasks/t1" {
		t.Errorf("event/task = %v / %v", entry["event_id"], entry["task_name"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["retry_count"] != float64(3) {
		t.Errorf("fields = %v", entry["fields"])
	}
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(e *LogEntry)
		level string
	}{
		{name: "debug", log: func(e *LogEntry) { e.Debug("m") }, level: "debug"},
		{name: "info", log: func(e *LogEntry) { e.Info("m") }, level: "info"},
		{name: "warn", log: func(e *LogEntry) { e.Warn("m") }, level: "warn"},
		{name: "error", log: func(e *LogEntry) { e.Error("m") }, level: "error"},
		{name: "critical", log: func(e *LogEntry) { e.Critical("m") }, level: "critical"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter("test", &buf)
			tt.log(log.Plain())
			if entry := decodeLine(t, &buf); entry["level"] != tt.level {
				t.Errorf("level = %v, want %v", entry["level"], tt.level)
			}
		})
	}
}

func TestLoggerFormatted(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("test", &buf)

	log.Plain().Warnf("attempt %d of %d", 2, 5)
	if entry := decodeLine(t, &buf); entry["msg"] != "attempt 2 of 5" {
		t.Errorf("msg = %v", entry["msg"])
	}
}

func TestLoggerErrorField(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("test", &buf)

	log.Plain().WithError(errors.New("boom")).Error("failed")
	entry := decodeLine(t, &buf)
	fields, _ := entry["fields"].(map[string]any)
	if fields["error"] != "boom" {
		t.Errorf("error field = %v, want boom", fields["error"])
	}

	buf.Reset()
	log.Plain().WithError(nil).Info("ok")
	if entry := decodeLine(t, &buf); entry["fields"] != nil {
		t.Errorf("nil error produced fields: %v", entry["fields"])
	}
}

func TestLoggerAuditChannel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("test", &buf)

	log.WithContext(context.Background()).WithChannel(ChannelAudit).Critical("task abandoned")
	entry := decodeLine(t, &buf)
	if entry["channel"] != ChannelAudit {
		t.Errorf("channel = %v, want %v", entry["channel"], ChannelAudit)
	}
}

func TestLoggerOmitsEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("test", &buf)

	log.Plain().Info("bare")
	entry := decodeLine(t, &buf)
	for _, key := range []string{"fields", "trace_id", "event_id", "task_name", "channel"} {
		if _, present := entry[key]; present {
			t.Errorf("empty %q serialized: %v", key, entry[key])
		}
	}
}
