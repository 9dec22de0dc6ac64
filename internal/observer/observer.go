// Package observer turns assignment lifecycle transitions into occurrence
// entries. One session exists per observed officer; there is no shared
// package-level state.
package observer

import (
	"context"
	"log"
	"sync"
	"time"

	"dob-backend/internal/assignment"
	"dob-backend/internal/geo"
	"dob-backend/internal/geofence"
	"dob-backend/internal/logbook"
	"dob-backend/internal/model"
)

// DefaultGPSTimeout bounds the one-shot position read taken per event.
const DefaultGPSTimeout = 10 * time.Second

// transitions maps an exact (previous → current) status pair to the events
// it produces, in emission order. Only exact matches fire; everything else
// is a no-op.
var transitions = map[[2]assignment.Status][]model.EventType{
	{assignment.StatusPending, assignment.StatusAssigned}:  {model.EventAssignmentStart},
	{assignment.StatusAssigned, assignment.StatusActive}:   {model.EventPrincipalPickup},
	{assignment.StatusActive, assignment.StatusCompleted}:  {model.EventPrincipalDropoff, model.EventAssignmentEnd},
	{assignment.StatusEnRoute, assignment.StatusCompleted}: {model.EventPrincipalDropoff, model.EventAssignmentEnd},
}

// Session observes one officer's assignment stream. It keeps the most
// recently seen snapshot per assignment id as the comparison baseline.
type Session struct {
	cpoID      string
	provider   geo.Provider
	logbook    *logbook.Service
	monitor    *geofence.Monitor
	gpsTimeout time.Duration

	mu        sync.Mutex
	baselines map[string]assignment.Snapshot
}

// NewSession creates a session for one officer. monitor may be nil when
// movement tracking is not wanted (tests).
func NewSession(cpoID string, provider geo.Provider, lb *logbook.Service, monitor *geofence.Monitor, gpsTimeout time.Duration) *Session {
	if gpsTimeout <= 0 {
		gpsTimeout = DefaultGPSTimeout
	}
	return &Session{
		cpoID:      cpoID,
		provider:   provider,
		logbook:    lb,
		monitor:    monitor,
		gpsTimeout: gpsTimeout,
		baselines:  make(map[string]assignment.Snapshot),
	}
}

// Observe processes one snapshot. The first snapshot for an assignment only
// records the baseline. The baseline always advances to the new snapshot,
// even when logging an emitted event fails: the transition is considered
// observed, trading log completeness for assignment-flow availability.
func (s *Session) Observe(ctx context.Context, snap assignment.Snapshot) {
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	prev, seen := s.baselines[snap.ID]
	s.baselines[snap.ID] = snap
	s.mu.Unlock()

	if !seen {
		return
	}

	events := transitions[[2]assignment.Status{prev.Status, snap.Status}]
	for _, event := range events {
		s.emit(ctx, event, snap)
	}

	// Passive geofence trigger: unchanged active status means no transition
	// fired, but movement may still need logging.
	if len(events) == 0 && prev.Status == assignment.StatusActive && snap.Status == assignment.StatusActive && s.monitor != nil {
		s.monitor.Check(ctx, snap)
	}

	if s.monitor != nil && snap.Status != assignment.StatusActive {
		s.monitor.Forget(snap.ID)
	}

	// Terminal assignments never transition again; drop their baselines so
	// a long-lived session does not accumulate every assignment ever seen.
	if snap.Status == assignment.StatusCompleted || snap.Status == assignment.StatusCancelled {
		s.mu.Lock()
		delete(s.baselines, snap.ID)
		s.mu.Unlock()
	}
}

// emit writes one event. Each event takes a fresh best-effort position
// read; a missing position never blocks the event, and a persistence
// failure is logged and swallowed.
func (s *Session) emit(ctx context.Context, event model.EventType, snap assignment.Snapshot) {
	pos := s.bestEffortPosition(ctx)

	var err error
	switch event {
	case model.EventAssignmentStart:
		_, err = s.logbook.LogAssignmentStart(ctx, s.cpoID, snap, pos, "")
	case model.EventPrincipalPickup:
		_, err = s.logbook.LogPrincipalPickup(ctx, s.cpoID, snap, pos, "")
	case model.EventPrincipalDropoff:
		_, err = s.logbook.LogPrincipalDropoff(ctx, s.cpoID, snap, pos, "")
	case model.EventAssignmentEnd:
		_, err = s.logbook.LogAssignmentEnd(ctx, s.cpoID, snap, pos, "")
	}
	if err != nil {
		log.Printf("observer: failed to log %s for officer %s assignment %s: %v", event, s.cpoID, snap.ID, err)
	}
}

func (s *Session) bestEffortPosition(ctx context.Context) *geo.Position {
	readCtx, cancel := context.WithTimeout(ctx, s.gpsTimeout)
	defer cancel()

	pos, err := s.provider.CurrentPosition(readCtx, s.cpoID)
	if err != nil {
		return nil
	}
	return &pos
}
