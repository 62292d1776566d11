package retry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/calebrw/taskgate/internal/logging"
)

// countLevel parses the captured JSON log lines and counts entries at level.
func countLevel(t *testing.T, buf *bytes.Buffer, level string) int {
	t.Helper()
	count := 0
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry struct {
			Level string `json:"level"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %v\n%s", err, line)
		}
		if entry.Level == level {
			count++
		}
	}
	return count
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "500 status", err: &StatusError{Code: 500}, want: true},
		{name: "503 status", err: &StatusError{Code: 503}, want: true},
		{name: "400 status", err: &StatusError{Code: 400}, want: false},
		{name: "404 status", err: &StatusError{Code: 404}, want: false},
		{name: "429 status", err: &StatusError{Code: 429}, want: false},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, want: true},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "wrapped status", err: errors.Join(errors.New("outer"), &StatusError{Code: 404}), want: false},
		{name: "unclassified error", err: errors.New("something broke"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatusError_Error(t *testing.T) {
	e := &StatusError{Code: 503, Body: "unavailable"}
	if e.Error() != "unexpected status 503: unavailable" {
		t.Errorf("Error() = %q", e.Error())
	}
	e = &StatusError{Code: 404}
	if e.Error() != "unexpected status 404" {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestPolicy_Do_SucceedsAfterTransientFailures(t *testing.T) {
	var buf bytes.Buffer
	p := Policy{MaxAttempts: 3, Delay: 0, Logger: logging.NewWithWriter("retry-test", &buf)}

	attempts := 0
	err := p.Do(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return &StatusError{Code: 503}
		}
		return nil
	})
	if err != nil {
		t.Errorf("Do() error = %v, want nil", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}

	// One warning per retried attempt, nothing louder.
	if warns := countLevel(t, &buf, "warn"); warns != 2 {
		t.Errorf("warn log entries = %d, want 2", warns)
	}
	if errs := countLevel(t, &buf, "error"); errs != 0 {
		t.Errorf("error log entries = %d, want 0", errs)
	}
}

func TestPolicy_Do_NonRetryableShortCircuits(t *testing.T) {
	p := Policy{MaxAttempts: 5, Delay: 0}

	attempts := 0
	err := p.Do(context.Background(), "op", func(context.Context) error {
		attempts++
		return &StatusError{Code: 404}
	})

	var se *StatusError
	if !errors.As(err, &se) || se.Code != 404 {
		t.Errorf("Do() error = %v, want 404 StatusError", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retries on client error)", attempts)
	}
}

func TestPolicy_Do_ExhaustionReturnsLastError(t *testing.T) {
	var buf bytes.Buffer
	p := Policy{MaxAttempts: 3, Delay: 0, Logger: logging.NewWithWriter("retry-test", &buf)}

	attempts := 0
	wantErr := &StatusError{Code: 502, Body: "final"}
	err := p.Do(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts == 3 {
			return wantErr
		}
		return &StatusError{Code: 503}
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Do() error = %v, want the last failure", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}

	if warns := countLevel(t, &buf, "warn"); warns != 2 {
		t.Errorf("warn log entries = %d, want 2", warns)
	}
	if errs := countLevel(t, &buf, "error"); errs != 1 {
		t.Errorf("error log entries = %d, want 1 (exhaustion)", errs)
	}
}

func TestPolicy_Do_ZeroMaxAttemptsRunsOnce(t *testing.T) {
	p := Policy{MaxAttempts: 0, Delay: 0}

	attempts := 0
	_ = p.Do(context.Background(), "op", func(context.Context) error {
		attempts++
		return &StatusError{Code: 500}
	})
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestPolicy_Do_ContextCancelDuringDelay(t *testing.T) {
	p := Policy{MaxAttempts: 3, Delay: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, "op", func(context.Context) error {
			return &StatusError{Code: 503}
		})
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do() did not return after context cancellation")
	}
}

func TestPolicy_Do_CustomRetryable(t *testing.T) {
	p := Policy{
		MaxAttempts: 3,
		Delay:       0,
		Retryable:   func(error) bool { return false },
	}

	attempts := 0
	_ = p.Do(context.Background(), "op", func(context.Context) error {
		attempts++
		return &StatusError{Code: 503}
	})
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 with custom non-retryable predicate", attempts)
	}
}
