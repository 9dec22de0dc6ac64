// Package logbook is the single construction path for occurrence-book
// entries: the manual path used by the DOB screen and the auto path used by
// the transition observer and the geofence monitor.
package logbook

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"dob-backend/internal/assignment"
	"dob-backend/internal/geo"
	"dob-backend/internal/model"
	"dob-backend/internal/store"
)

// MaxDescriptionLen bounds manual-entry descriptions.
const MaxDescriptionLen = 1000

// ErrValidation marks rejected input. It is surfaced synchronously and
// nothing is persisted.
var ErrValidation = errors.New("logbook: invalid entry")

// Notifier receives every successfully stored entry.
type Notifier interface {
	Publish(entry model.Entry)
}

// Service validates, constructs, and persists entries. Entries are
// immutable from the moment they are created, on both paths.
type Service struct {
	store    store.Store
	notifier Notifier
	now      func() time.Time
}

// NewService creates the entry factory. notifier may be nil.
func NewService(s store.Store, notifier Notifier) *Service {
	return &Service{store: s, notifier: notifier, now: time.Now}
}

// Input carries the fields common to both entry paths.
type Input struct {
	AssignmentID        string
	AssignmentReference string
	CPOID               string
	EventType           model.EventType
	Timestamp           time.Time
	Position            *geo.Position
	Description         string
	Metadata            model.Metadata
}

// CreateManualEntry validates and persists an operator-submitted entry.
// Persistence failures are returned to the operator for retry.
func (s *Service) CreateManualEntry(ctx context.Context, in Input) (*model.Entry, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}
	if len(in.Description) > MaxDescriptionLen {
		return nil, fmt.Errorf("%w: description exceeds %d characters", ErrValidation, MaxDescriptionLen)
	}
	if in.Timestamp.After(s.now()) {
		return nil, fmt.Errorf("%w: timestamp must not be in the future", ErrValidation)
	}

	entry := s.build(in, model.EntryTypeManual)
	submitted := s.now()
	entry.SubmittedAt = &submitted
	return s.persist(ctx, entry)
}

// CreateAutoEntry persists an observer- or monitor-originated entry.
func (s *Service) CreateAutoEntry(ctx context.Context, in Input) (*model.Entry, error) {
	if in.Timestamp.IsZero() {
		in.Timestamp = s.now()
	}
	if in.Description == "" {
		in.Description = defaultDescription(in.EventType, in.AssignmentReference)
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}
	in.Metadata.AutoGenerated = true
	return s.persist(ctx, s.build(in, model.EntryTypeAuto))
}

func (s *Service) validate(in Input) error {
	if in.CPOID == "" {
		return fmt.Errorf("%w: cpoId is required", ErrValidation)
	}
	if in.EventType == "" {
		return fmt.Errorf("%w: eventType is required", ErrValidation)
	}
	if in.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrValidation)
	}
	if in.Description == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	return nil
}

func (s *Service) build(in Input, entryType model.EntryType) *model.Entry {
	entry := &model.Entry{
		CPOID:       in.CPOID,
		EntryType:   entryType,
		EventType:   in.EventType,
		Timestamp:   in.Timestamp,
		Description: in.Description,
		Metadata:    in.Metadata,
		IsImmutable: true,
	}
	if in.AssignmentID != "" {
		id := in.AssignmentID
		entry.AssignmentID = &id
	}
	if in.AssignmentReference != "" {
		ref := in.AssignmentReference
		entry.AssignmentReference = &ref
	}
	if in.Position != nil {
		entry.SetPosition(in.Position.Latitude, in.Position.Longitude, in.Position.AccuracyMeters)
	}
	return entry
}

// persist writes the entry, retrying once on a transient failure. Integrity
// and duplicate errors are not transient and are never retried.
func (s *Service) persist(ctx context.Context, entry *model.Entry) (*model.Entry, error) {
	stored, err := s.store.Create(ctx, entry)
	if err != nil && isTransient(err) {
		log.Printf("logbook: create failed, retrying once: %v", err)
		stored, err = s.store.Create(ctx, entry)
	}
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.Publish(*stored)
	}
	return stored, nil
}

// FinalizeEntry flips a mutable entry to immutable and announces it. The
// factory itself never creates mutable entries; this is the only legal path
// for entries that were created mutable through direct store use.
func (s *Service) FinalizeEntry(ctx context.Context, id, cpoID string) (*model.Entry, error) {
	entry, err := s.store.Finalize(ctx, id, cpoID)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.Publish(*entry)
	}
	return entry, nil
}

func isTransient(err error) bool {
	return !errors.Is(err, store.ErrDuplicateID) &&
		!errors.Is(err, store.ErrImmutable) &&
		!errors.Is(err, store.ErrNotOwner) &&
		!errors.Is(err, store.ErrNotFound)
}

func defaultDescription(event model.EventType, ref string) string {
	if ref == "" {
		ref = "assignment"
	}
	switch event {
	case model.EventAssignmentStart:
		return fmt.Sprintf("Assignment %s accepted; detail commenced", ref)
	case model.EventAssignmentEnd:
		return fmt.Sprintf("Assignment %s completed; detail stood down", ref)
	case model.EventPrincipalPickup:
		return fmt.Sprintf("Principal picked up for %s", ref)
	case model.EventPrincipalDropoff:
		return fmt.Sprintf("Principal dropped off for %s", ref)
	case model.EventLocationChange:
		return fmt.Sprintf("Location changed during %s", ref)
	case model.EventRouteDeviation:
		return fmt.Sprintf("Route deviation during %s", ref)
	default:
		return fmt.Sprintf("Occurrence recorded for %s", ref)
	}
}

// The six auto-log helpers fix the event type and build a default
// description; caller-supplied text overrides the default.

func (s *Service) LogAssignmentStart(ctx context.Context, cpoID string, snap assignment.Snapshot, pos *geo.Position, description string) (*model.Entry, error) {
	return s.CreateAutoEntry(ctx, Input{
		AssignmentID:        snap.ID,
		AssignmentReference: snap.Reference,
		CPOID:               cpoID,
		EventType:           model.EventAssignmentStart,
		Position:            pos,
		Description:         description,
		Metadata:            model.Metadata{TriggerStatus: string(assignment.StatusAssigned)},
	})
}

func (s *Service) LogAssignmentEnd(ctx context.Context, cpoID string, snap assignment.Snapshot, pos *geo.Position, description string) (*model.Entry, error) {
	return s.CreateAutoEntry(ctx, Input{
		AssignmentID:        snap.ID,
		AssignmentReference: snap.Reference,
		CPOID:               cpoID,
		EventType:           model.EventAssignmentEnd,
		Position:            pos,
		Description:         description,
		Metadata:            model.Metadata{TriggerStatus: string(assignment.StatusCompleted)},
	})
}

func (s *Service) LogPrincipalPickup(ctx context.Context, cpoID string, snap assignment.Snapshot, pos *geo.Position, description string) (*model.Entry, error) {
	return s.CreateAutoEntry(ctx, Input{
		AssignmentID:        snap.ID,
		AssignmentReference: snap.Reference,
		CPOID:               cpoID,
		EventType:           model.EventPrincipalPickup,
		Position:            pos,
		Description:         description,
		Metadata:            model.Metadata{TriggerStatus: string(assignment.StatusActive)},
	})
}

func (s *Service) LogPrincipalDropoff(ctx context.Context, cpoID string, snap assignment.Snapshot, pos *geo.Position, description string) (*model.Entry, error) {
	return s.CreateAutoEntry(ctx, Input{
		AssignmentID:        snap.ID,
		AssignmentReference: snap.Reference,
		CPOID:               cpoID,
		EventType:           model.EventPrincipalDropoff,
		Position:            pos,
		Description:         description,
		Metadata:            model.Metadata{TriggerStatus: string(assignment.StatusCompleted)},
	})
}

func (s *Service) LogLocationChange(ctx context.Context, cpoID string, snap assignment.Snapshot, pos geo.Position, distanceMeters float64) (*model.Entry, error) {
	return s.CreateAutoEntry(ctx, Input{
		AssignmentID:        snap.ID,
		AssignmentReference: snap.Reference,
		CPOID:               cpoID,
		EventType:           model.EventLocationChange,
		Position:            &pos,
		Description:         fmt.Sprintf("Moved %d m during %s", int(distanceMeters+0.5), refOr(snap.Reference)),
		Metadata:            model.Metadata{DistanceMeters: distanceMeters},
	})
}

func (s *Service) LogRouteDeviation(ctx context.Context, cpoID string, snap assignment.Snapshot, pos *geo.Position, reason string) (*model.Entry, error) {
	return s.CreateAutoEntry(ctx, Input{
		AssignmentID:        snap.ID,
		AssignmentReference: snap.Reference,
		CPOID:               cpoID,
		EventType:           model.EventRouteDeviation,
		Position:            pos,
		Metadata:            model.Metadata{DeviationReason: reason},
	})
}

func refOr(ref string) string {
	if ref == "" {
		return "assignment"
	}
	return ref
}
