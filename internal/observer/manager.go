package observer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"dob-backend/internal/assignment"
	"dob-backend/internal/geo"
	"dob-backend/internal/geofence"
	"dob-backend/internal/logbook"
)

// Options tunes a manager's sessions.
type Options struct {
	GPSTimeout      time.Duration
	PollInterval    time.Duration
	ThresholdMeters float64
}

type activeSession struct {
	cancel      context.CancelFunc
	unsubscribe func()
}

// Manager owns one observation session per officer: the assignment
// subscription, the session state, and the geofence polling goroutine.
type Manager struct {
	svc      assignment.Service
	provider geo.Provider
	logbook  *logbook.Service
	opts     Options

	mu       sync.Mutex
	sessions map[string]*activeSession
}

// NewManager creates an empty session manager.
func NewManager(svc assignment.Service, provider geo.Provider, lb *logbook.Service, opts Options) *Manager {
	return &Manager{
		svc:      svc,
		provider: provider,
		logbook:  lb,
		opts:     opts,
		sessions: make(map[string]*activeSession),
	}
}

// Start begins observing an officer: subscribes to their assignment stream
// and starts the geofence polling timer. Starting an already-observed
// officer is a no-op.
func (m *Manager) Start(cpoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[cpoID]; ok {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	monitor := geofence.NewMonitor(cpoID, m.provider, m.logbook, m.opts.ThresholdMeters)
	session := NewSession(cpoID, m.provider, m.logbook, monitor, m.opts.GPSTimeout)

	unsubscribe, err := m.svc.Subscribe(cpoID, func(snap assignment.Snapshot) {
		session.Observe(ctx, snap)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to assignments for officer %s: %w", cpoID, err)
	}

	go monitor.Run(ctx, m.svc, m.opts.PollInterval)

	m.sessions[cpoID] = &activeSession{cancel: cancel, unsubscribe: unsubscribe}
	log.Printf("observer: session started for officer %s", cpoID)
	return nil
}

// Stop tears down an officer's session: the polling timer stops and the
// assignment subscription is cancelled. In-flight persistence calls finish
// but their results are discarded by the cancelled context.
func (m *Manager) Stop(cpoID string) {
	m.mu.Lock()
	sess, ok := m.sessions[cpoID]
	if ok {
		delete(m.sessions, cpoID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	sess.unsubscribe()
	sess.cancel()
	log.Printf("observer: session stopped for officer %s", cpoID)
}

// StopAll tears down every session, for shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*activeSession)
	m.mu.Unlock()

	for cpoID, sess := range sessions {
		sess.unsubscribe()
		sess.cancel()
		log.Printf("observer: session stopped for officer %s", cpoID)
	}
}
