// Package geofence detects operationally significant movement during an
// active assignment and logs it as a location-change entry.
package geofence

import (
	"context"
	"log"
	"sync"
	"time"

	"dob-backend/internal/assignment"
	"dob-backend/internal/geo"
	"dob-backend/internal/logbook"
)

const (
	// DefaultThresholdMeters is the fixed movement threshold. GPS jitter is
	// typically 10-50 m, so anything under this is treated as noise.
	DefaultThresholdMeters = 500.0

	// DefaultPollInterval is the active-polling period.
	DefaultPollInterval = 30 * time.Second
)

// Monitor tracks one officer's movement. It keeps the last reference point
// per assignment; references are ephemeral and never persisted.
type Monitor struct {
	cpoID     string
	provider  geo.Provider
	logbook   *logbook.Service
	threshold float64
	now       func() time.Time

	mu   sync.Mutex
	refs map[string]geo.Sample
}

// NewMonitor creates a monitor for one officer session.
func NewMonitor(cpoID string, provider geo.Provider, lb *logbook.Service, thresholdMeters float64) *Monitor {
	if thresholdMeters <= 0 {
		thresholdMeters = DefaultThresholdMeters
	}
	return &Monitor{
		cpoID:     cpoID,
		provider:  provider,
		logbook:   lb,
		threshold: thresholdMeters,
		now:       time.Now,
		refs:      make(map[string]geo.Sample),
	}
}

// Check samples the current position against the stored reference for the
// assignment. The first sample only seeds the reference. A move of at least
// the threshold logs a location change and replaces the reference; anything
// smaller leaves the reference where it is so small drifts cannot creep the
// baseline.
func (m *Monitor) Check(ctx context.Context, snap assignment.Snapshot) {
	pos, err := m.provider.CurrentPosition(ctx, m.cpoID)
	if err != nil {
		// Best effort: no position this cycle, try again next time.
		return
	}

	m.mu.Lock()
	ref, seen := m.refs[snap.ID]
	if !seen {
		m.refs[snap.ID] = geo.Sample{Position: pos, TakenAt: m.now()}
		m.mu.Unlock()
		return
	}

	distance := geo.Distance(ref.Latitude, ref.Longitude, pos.Latitude, pos.Longitude)
	if distance < m.threshold {
		m.mu.Unlock()
		return
	}
	m.refs[snap.ID] = geo.Sample{Position: pos, TakenAt: m.now()}
	m.mu.Unlock()

	if _, err := m.logbook.LogLocationChange(ctx, m.cpoID, snap, pos, distance); err != nil {
		// Movement tracking must not disturb the assignment flow; the
		// failure stays in the operational log for audit.
		log.Printf("geofence: failed to log location change for officer %s assignment %s: %v", m.cpoID, snap.ID, err)
	}
}

// Forget drops the stored reference for an assignment, typically when it
// leaves the active status.
func (m *Monitor) Forget(assignmentID string) {
	m.mu.Lock()
	delete(m.refs, assignmentID)
	m.mu.Unlock()
}

// Run is the active-polling trigger: every interval it asks the assignment
// service whether the officer has an active assignment and, if so, runs a
// check. It returns when ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, svc assignment.Service, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			snap, err := svc.ActiveAssignment(ctx, m.cpoID)
			if err != nil {
				log.Printf("geofence: active assignment lookup for officer %s failed: %v", m.cpoID, err)
			} else if snap != nil && snap.Status == assignment.StatusActive {
				m.Check(ctx, *snap)
			}
			timer.Reset(interval)
		}
	}
}
