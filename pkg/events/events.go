// Package events implements the typed publish/subscribe hub that every
// imthedev component communicates through. Producers publish immutable
// Events; consumers register synchronous or asynchronous handlers per
// event type. Handler failures are contained and surfaced on a
// diagnostic channel, never propagated to the publisher.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies an event category.
type Type string

// Command lifecycle events.
const (
	CommandProposed    Type = "command.proposed"
	CommandApproved    Type = "command.approved"
	CommandRejected    Type = "command.rejected"
	ExecutionStarted   Type = "execution.started"
	OutputChunk        Type = "execution.output"
	ExecutionCompleted Type = "execution.completed"
	ExecutionFailed    Type = "execution.failed"
	ExecutionCancelled Type = "execution.cancelled"
)

// Application state events.
const (
	StateChanged Type = "state.changed"
)

// Event is an immutable record delivered through the Bus. Payload is a
// type-specific struct owned by the producing package; subscribers that
// persist or display events marshal it as JSON.
type Event struct {
	ID        uuid.UUID
	Type      Type
	Timestamp time.Time
	Payload   any
}

// New builds an Event with a fresh ID and the current time.
func New(typ Type, payload any) Event {
	return Event{
		ID:        uuid.New(),
		Type:      typ,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}
