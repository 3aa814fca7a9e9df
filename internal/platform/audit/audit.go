// Package audit records billing mutations to a durable sink. Every state
// change in the ledger, claims, and fee domains emits exactly one event.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is a single audit record.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id,omitempty"`
	Action    string    `json:"action"`
	AccountID uuid.UUID `json:"account_id"`
	Detail    string    `json:"detail,omitempty"`
}

// Sink receives audit events. Implementations must not mutate the event.
type Sink interface {
	Record(ctx context.Context, evt Event) error
}

// NopSink discards all events. Useful in tests.
type NopSink struct{}

func (NopSink) Record(ctx context.Context, evt Event) error { return nil }
