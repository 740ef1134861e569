package models

import (
	"time"

	"github.com/google/uuid"
)

// OperationState is the lifecycle state of a SwapOperation.
type OperationState string

const (
	OpPending    OperationState = "pending"
	OpCommitted  OperationState = "committed"
	OpRolledBack OperationState = "rolled_back"
)

// SwapOperation is one date exchange between two sessions, carrying the
// snapshots needed to apply it optimistically and to undo it.
type SwapOperation struct {
	ID        uuid.UUID
	SourceID  string
	TargetID  string
	Kind      Kind
	Source    Session
	Target    Session
	Previous  WeekSnapshot
	Proposed  WeekSnapshot
	State     OperationState
	Error     string
	CreatedAt time.Time
	SettledAt time.Time
}
