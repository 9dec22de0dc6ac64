package store

import (
	"errors"
	"time"
)

// Sentinel errors. ErrImmutable and ErrNotOwner are integrity violations;
// ErrNotFound is a distinct kind so callers can map them differently.
var (
	ErrNotFound    = errors.New("store: entry not found")
	ErrNotOwner    = errors.New("store: entry belongs to another officer")
	ErrImmutable   = errors.New("store: entry is immutable")
	ErrDuplicateID = errors.New("store: entry id already exists")
)

// Filter selects entries in a query. All fields are optional and combine
// with AND.
type Filter struct {
	AssignmentID string
	Start        *time.Time // inclusive lower bound on Timestamp
	End          *time.Time // inclusive upper bound on Timestamp
	EntryType    string
	EventType    string
	SearchQuery  string // case-insensitive substring match on Description
}
