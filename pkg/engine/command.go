// Package engine enforces the command lifecycle: an AI proposer submits a
// candidate shell command, a caller (or autopilot) approves or rejects it,
// approved commands execute as subprocesses with streamed output, and every
// transition is published on the event bus. The engine is the sole mutator
// of command records; callers receive snapshots.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is a command's position in the lifecycle state machine.
type Status string

// Lifecycle states. Proposed is initial; Rejected, Completed, Failed and
// Cancelled are terminal.
const (
	StatusProposed  Status = "proposed"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// transitions lists the legal successor states for each state.
var transitions = map[Status][]Status{
	StatusProposed:  {StatusApproved, StatusRejected},
	StatusApproved:  {StatusExecuting},
	StatusExecuting: {StatusCompleted, StatusFailed, StatusCancelled},
}

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// canTransition reports whether s -> to is a legal edge.
func (s Status) canTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Sentinel errors returned by engine operations.
var (
	ErrNotFound          = errors.New("command not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmptyCommand      = errors.New("command text is empty")
	ErrNotExecuting      = errors.New("command is not executing")
)

func invalidTransition(id uuid.UUID, from, to Status) error {
	return fmt.Errorf("command %s: %s -> %s: %w", id, from, to, ErrInvalidTransition)
}

// Command is one unit of delegated work. ID, Text and Reasoning are set at
// proposal time and never change. Stdout and Stderr accumulate only while
// Executing; ExitCode is meaningful only in Completed or Failed.
type Command struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Text      string
	Reasoning string
	Status    Status

	Stdout       string
	Stderr       string
	ExitCode     int
	FailureCause string
	RejectReason string

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// Output streams for execution chunks.
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// Event payloads. Field names mirror the wire taxonomy consumed by the
// event trail and UI subscribers.

// ProposedPayload accompanies CommandProposed.
type ProposedPayload struct {
	CommandID uuid.UUID `json:"command_id"`
	ProjectID uuid.UUID `json:"project_id"`
	Text      string    `json:"command_text"`
	Reasoning string    `json:"reasoning"`
}

// ApprovedPayload accompanies CommandApproved.
type ApprovedPayload struct {
	CommandID uuid.UUID `json:"command_id"`
	ProjectID uuid.UUID `json:"project_id"`
}

// RejectedPayload accompanies CommandRejected.
type RejectedPayload struct {
	CommandID uuid.UUID `json:"command_id"`
	ProjectID uuid.UUID `json:"project_id"`
	Reason    string    `json:"reason"`
}

// StartedPayload accompanies ExecutionStarted.
type StartedPayload struct {
	CommandID uuid.UUID `json:"command_id"`
	ProjectID uuid.UUID `json:"project_id"`
	Text      string    `json:"command_text"`
}

// OutputPayload accompanies OutputChunk. Chunks for one stream of one
// command are published in production order.
type OutputPayload struct {
	CommandID uuid.UUID `json:"command_id"`
	Stream    string    `json:"stream"`
	Data      string    `json:"data"`
}

// CompletedPayload accompanies ExecutionCompleted.
type CompletedPayload struct {
	CommandID uuid.UUID `json:"command_id"`
	ProjectID uuid.UUID `json:"project_id"`
	ExitCode  int       `json:"exit_code"`
	Stdout    string    `json:"stdout"`
	Stderr    string    `json:"stderr"`
}

// FailedPayload accompanies ExecutionFailed.
type FailedPayload struct {
	CommandID uuid.UUID `json:"command_id"`
	ProjectID uuid.UUID `json:"project_id"`
	ExitCode  int       `json:"exit_code"`
	Cause     string    `json:"error"`
}

// CancelledPayload accompanies ExecutionCancelled.
type CancelledPayload struct {
	CommandID uuid.UUID `json:"command_id"`
	ProjectID uuid.UUID `json:"project_id"`
}
