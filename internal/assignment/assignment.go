// Package assignment defines the read-only view of the assignment service
// that the occurrence book consumes: lifecycle snapshots per officer.
package assignment

import (
	"context"
	"time"
)

// Status is the assignment lifecycle state. The ordered forward path is
// pending → assigned → en_route → active → completed; cancelled is a
// terminal reachable from any non-terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
	StatusEnRoute   Status = "en_route"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Snapshot is one observation of an assignment's state.
type Snapshot struct {
	ID        string    `json:"id"`
	Reference string    `json:"reference"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Service is the narrow interface the observer consumes. Both operations
// may fail transiently.
type Service interface {
	// Subscribe delivers assignment snapshots for the officer until the
	// returned cancel function is called.
	Subscribe(cpoID string, onChange func(Snapshot)) (cancel func(), err error)

	// ActiveAssignment returns the officer's currently active assignment,
	// or nil when there is none.
	ActiveAssignment(ctx context.Context, cpoID string) (*Snapshot, error)
}
