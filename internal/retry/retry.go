package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/calebrw/taskgate/internal/logging"
	"github.com/calebrw/taskgate/internal/metrics"
)

// StatusError carries an HTTP-class status code for an outbound call, so the
// policy can distinguish transient server failures from terminal client ones.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Policy defines how an outbound operation is retried: a bounded number of
// attempts with a fixed delay in between. Transient failures (network errors,
// timeouts, 5xx-class responses) are retried; 4xx-class failures propagate
// immediately.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// Retryable overrides the default transient-failure classification.
	Retryable func(error) bool

	Logger *logging.Logger
}

// Retryable reports whether err is considered transient under the default
// classification: network/timeout errors and 5xx-class status errors retry,
// 4xx-class status errors do not. Unclassified errors are treated as
// transient, matching at-least-once semantics where ambiguity resolves
// toward another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 && se.Code < 600
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return true
}

// Do runs op under the policy. It returns nil on the first success, the
// failure immediately if it is non-retryable, and the last transient failure
// after all attempts are exhausted. The inter-attempt sleep honors ctx
// cancellation.
func (p Policy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = Retryable
	}
	log := p.Logger
	if log == nil {
		log = logging.New("retry")
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		if !retryable(err) {
			log.WithContext(ctx).WithField("operation", name).WithError(err).
				Error("non-retryable failure, giving up")
			return err
		}

		lastErr = err
		if attempt == maxAttempts {
			break
		}

		log.WithContext(ctx).WithFields(map[string]any{
			"operation":    name,
			"attempt":      attempt,
			"max_attempts": maxAttempts,
			"delay":        p.Delay.String(),
		}).WithError(err).Warn("transient failure, retrying")
		metrics.RecordRetryAttempt(name)

		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	log.WithContext(ctx).WithFields(map[string]any{
		"operation":    name,
		"max_attempts": maxAttempts,
	}).WithError(lastErr).Errorf("all %d attempts failed", maxAttempts)
	return lastErr
}
