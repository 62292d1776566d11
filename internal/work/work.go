package work

import (
	"context"
	"encoding/json"
)

// Delivery is the information the work unit receives about an admitted
// webhook delivery.
type Delivery struct {
	EventID    string
	TaskName   string
	RetryCount int
	Payload    json.RawMessage
}

// Unit is the opaque business logic invoked exactly once per unique event.
// Its own durability is the implementation's responsibility; the gate only
// guarantees single invocation.
type Unit interface {
	Process(ctx context.Context, d Delivery) error
}

// Func adapts a plain function to a Unit.
type Func func(ctx context.Context, d Delivery) error

func (f Func) Process(ctx context.Context, d Delivery) error {
	return f(ctx, d)
}

// Noop does nothing and always succeeds. Used when no downstream forward is
// configured and the receiver only deduplicates and acknowledges.
type Noop struct{}

func (Noop) Process(ctx context.Context, d Delivery) error { return nil }
