package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/calebrw/taskgate/internal/logging"
	"github.com/calebrw/taskgate/internal/metrics"
	"github.com/calebrw/taskgate/internal/store"
	"github.com/calebrw/taskgate/internal/tracing"
)

// ErrEmptyEventID is returned when a caller passes an empty event identifier.
// That is a contract violation, not a duplicate.
var ErrEmptyEventID = errors.New("empty event id")

// Gate decides whether a delivery is the first attempt for its event or a
// duplicate, and tracks per-event completion. Correctness rests entirely on
// the store's atomic create-if-absent; the in-process mutex only narrows
// same-process races, since redeliveries may land on other instances.
type Gate struct {
	store store.RecordStore
	log   *logging.Logger
	mu    sync.Mutex
}

func NewGate(s store.RecordStore, log *logging.Logger) *Gate {
	if log == nil {
		log = logging.New("idempotency")
	}
	return &Gate{store: s, log: log}
}

// Key derives the storage key for an event identifier: a fixed-length
// SHA-256 digest, so raw identifier structure never leaks into the store's
// key space and key size stays bounded.
func Key(eventID string) string {
	sum := sha256.Sum256([]byte(eventID))
	return hex.EncodeToString(sum[:])
}

// Admit classifies the delivery. It returns true exactly when this caller
// created the PROCESSING record, false for a duplicate. Any other storage
// failure also returns false: proceeding without the ability to later mark
// completion risks unbounded duplicate execution, so an unknown gate state
// is treated as a duplicate.
func (g *Gate) Admit(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, ErrEmptyEventID
	}

	ctx, span := tracing.StartSpan(ctx, "idempotency.admit",
		attribute.String("event_id", eventID),
	)
	defer span.End()

	g.mu.Lock()
	defer g.mu.Unlock()

	result, err := g.store.CreateIfAbsent(ctx, Key(eventID))
	metrics.RecordAdmit(result.String())
	switch result {
	case store.ResultCreated:
		g.log.WithContext(ctx).WithEvent(eventID).Debug("event admitted, record set to PROCESSING")
		return true, nil
	case store.ResultConflict:
		g.log.WithContext(ctx).WithEvent(eventID).Info("duplicate event detected, suppressing")
		return false, nil
	default:
		// Ambiguous: the record may or may not exist server-side. Fail
		// safe toward duplicate.
		tracing.SetSpanError(ctx, err)
		g.log.WithContext(ctx).WithEvent(eventID).WithError(err).
			Error("store failure during admit, suppressing delivery")
		return false, nil
	}
}

// Complete marks the event record COMPLETED. Idempotent: a missing or
// already-completed record is logged and swallowed, so double invocation of
// the success path cleanup never fails the caller.
func (g *Gate) Complete(ctx context.Context, eventID string) {
	if eventID == "" {
		return
	}

	ctx, span := tracing.StartSpan(ctx, "idempotency.complete",
		attribute.String("event_id", eventID),
	)
	defer span.End()

	err := g.store.MarkCompleted(ctx, Key(eventID))
	switch {
	case err == nil:
		g.log.WithContext(ctx).WithEvent(eventID).Debug("event record set to COMPLETED")
	case errors.Is(err, store.ErrNotFound):
		g.log.WithContext(ctx).WithEvent(eventID).Warn("complete on absent record, ignoring")
	default:
		tracing.SetSpanError(ctx, err)
		g.log.WithContext(ctx).WithEvent(eventID).WithError(err).
			Error("failed to mark event completed")
	}
}

// Revert deletes the event record, returning the gate to "never seen" so a
// legitimate redelivery is not permanently blocked by a transient failure.
// Deletion failures are logged, not propagated; a record stuck in PROCESSING
// is an accepted degraded mode, recoverable via the admin record endpoints.
func (g *Gate) Revert(ctx context.Context, eventID string) {
	if eventID == "" {
		return
	}

	ctx, span := tracing.StartSpan(ctx, "idempotency.revert",
		attribute.String("event_id", eventID),
	)
	defer span.End()

	if err := g.store.Delete(ctx, Key(eventID)); err != nil {
		tracing.SetSpanError(ctx, err)
		g.log.WithContext(ctx).WithEvent(eventID).WithError(err).
			Error("failed to revert event record, may be stuck in PROCESSING")
		return
	}
	g.log.WithContext(ctx).WithEvent(eventID).Debug("event record reverted")
}
