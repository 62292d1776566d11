package store

import (
	"context"
	"errors"
	"time"
)

// Status of a tracked event record. Absence of a record is itself a state
// ("never seen"), so only these two values are ever persisted.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
)

// Record is one persisted idempotency record, keyed by the digest of the
// application-level event identifier.
type Record struct {
	Key       string    `json:"key"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateResult classifies the outcome of an atomic create-if-absent, letting
// callers branch on an explicit result instead of matching error types.
type CreateResult int

const (
	// ResultCreated means the record did not exist and was created now.
	ResultCreated CreateResult = iota
	// ResultConflict means a record already exists for the key.
	ResultConflict
	// ResultError means the store could not answer; neither outcome is known.
	ResultError
)

func (r CreateResult) String() string {
	switch r {
	case ResultCreated:
		return "created"
	case ResultConflict:
		return "conflict"
	default:
		return "error"
	}
}

// ErrNotFound is returned when an operation targets a key with no record.
var ErrNotFound = errors.New("record not found")

// RecordStore is the durable key-value store the idempotency gate persists
// event records in. The atomic create-if-absent is the primitive the whole
// dedup design rests on; everything else is plain keyed access.
type RecordStore interface {
	// CreateIfAbsent atomically creates a PROCESSING record at key. The
	// error is non-nil only when the result is ResultError.
	CreateIfAbsent(ctx context.Context, key string) (CreateResult, error)

	// MarkCompleted sets the record status to COMPLETED. Returns
	// ErrNotFound when no record exists for the key.
	MarkCompleted(ctx context.Context, key string) error

	// Delete removes the record. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// Get fetches the record for a key, ErrNotFound when absent.
	Get(ctx context.Context, key string) (*Record, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	Close()
}
