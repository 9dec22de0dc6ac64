package observer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"dob-backend/internal/assignment"
	"dob-backend/internal/geo"
	"dob-backend/internal/logbook"
	"dob-backend/internal/model"
	"dob-backend/internal/store"
)

// captureStore is an in-memory store that can be made to fail.
type captureStore struct {
	entries      []model.Entry
	failuresLeft int
}

func (c *captureStore) Create(ctx context.Context, entry *model.Entry) (*model.Entry, error) {
	if c.failuresLeft > 0 {
		c.failuresLeft--
		return nil, errors.New("persistence unavailable")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	c.entries = append(c.entries, *entry)
	return entry, nil
}

func (c *captureStore) Finalize(ctx context.Context, id, cpoID string) (*model.Entry, error) {
	return nil, store.ErrNotFound
}

func (c *captureStore) Update(ctx context.Context, entry *model.Entry) (*model.Entry, error) {
	return nil, store.ErrImmutable
}

func (c *captureStore) Query(ctx context.Context, cpoID string, filter store.Filter) ([]model.Entry, error) {
	return c.entries, nil
}

func (c *captureStore) Get(ctx context.Context, id, cpoID string) (*model.Entry, error) {
	return nil, store.ErrNotFound
}

func (c *captureStore) DB() *gorm.DB { return nil }

func (c *captureStore) eventTypes() []model.EventType {
	types := make([]model.EventType, len(c.entries))
	for i, e := range c.entries {
		types[i] = e.EventType
	}
	return types
}

// fakeProvider returns a fixed position or an error.
type fakeProvider struct {
	pos   geo.Position
	err   error
	calls int
}

func (p *fakeProvider) CurrentPosition(ctx context.Context, cpoID string) (geo.Position, error) {
	p.calls++
	if p.err != nil {
		return geo.Position{}, p.err
	}
	return p.pos, nil
}

func newTestSession(cs *captureStore, provider geo.Provider) *Session {
	lb := logbook.NewService(cs, nil)
	return NewSession("cpo-1", provider, lb, nil, time.Second)
}

func snap(id string, status assignment.Status) assignment.Snapshot {
	return assignment.Snapshot{ID: id, Reference: "A-100", Status: status, UpdatedAt: time.Now()}
}

func TestObserve_FirstSnapshotOnlyRecordsBaseline(t *testing.T) {
	cs := &captureStore{}
	s := newTestSession(cs, &fakeProvider{})

	s.Observe(context.Background(), snap("a-1", assignment.StatusPending))
	assert.Empty(t, cs.entries)
}

func TestObserve_TransitionTable(t *testing.T) {
	testCases := []struct {
		name     string
		previous assignment.Status
		current  assignment.Status
		expected []model.EventType
	}{
		{"pending to assigned", assignment.StatusPending, assignment.StatusAssigned, []model.EventType{model.EventAssignmentStart}},
		{"assigned to active", assignment.StatusAssigned, assignment.StatusActive, []model.EventType{model.EventPrincipalPickup}},
		{"active to completed", assignment.StatusActive, assignment.StatusCompleted, []model.EventType{model.EventPrincipalDropoff, model.EventAssignmentEnd}},
		{"en_route to completed", assignment.StatusEnRoute, assignment.StatusCompleted, []model.EventType{model.EventPrincipalDropoff, model.EventAssignmentEnd}},
		{"assigned repeated", assignment.StatusAssigned, assignment.StatusAssigned, nil},
		{"completed repeated", assignment.StatusCompleted, assignment.StatusCompleted, nil},
		{"pending to active skips", assignment.StatusPending, assignment.StatusActive, nil},
		{"assigned to cancelled", assignment.StatusAssigned, assignment.StatusCancelled, nil},
		{"active to en_route", assignment.StatusActive, assignment.StatusEnRoute, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cs := &captureStore{}
			s := newTestSession(cs, &fakeProvider{pos: geo.Position{Latitude: 51.5, Longitude: -0.1}})

			s.Observe(context.Background(), snap("a-1", tc.previous))
			s.Observe(context.Background(), snap("a-1", tc.current))

			assert.Equal(t, tc.expected, func() []model.EventType {
				if len(cs.entries) == 0 {
					return nil
				}
				return cs.eventTypes()
			}())
		})
	}
}

func TestObserve_AttachesGPSBestEffort(t *testing.T) {
	cs := &captureStore{}
	provider := &fakeProvider{pos: geo.Position{Latitude: 51.5074, Longitude: -0.1278, AccuracyMeters: 8}}
	s := newTestSession(cs, provider)

	s.Observe(context.Background(), snap("a-1", assignment.StatusPending))
	s.Observe(context.Background(), snap("a-1", assignment.StatusAssigned))

	require.Len(t, cs.entries, 1)
	assert.True(t, cs.entries[0].HasPosition())
	assert.Equal(t, 51.5074, *cs.entries[0].Latitude)
}

func TestObserve_GeolocationFailureDoesNotBlockEvent(t *testing.T) {
	cs := &captureStore{}
	s := newTestSession(cs, &fakeProvider{err: geo.ErrUnavailable})

	s.Observe(context.Background(), snap("a-1", assignment.StatusPending))
	s.Observe(context.Background(), snap("a-1", assignment.StatusAssigned))

	require.Len(t, cs.entries, 1)
	assert.Equal(t, model.EventAssignmentStart, cs.entries[0].EventType)
	assert.False(t, cs.entries[0].HasPosition())
}

func TestObserve_BaselineAdvancesEvenWhenLoggingFails(t *testing.T) {
	// Two failures cover the create and its single retry, so the
	// assignment_start entry is lost entirely.
	cs := &captureStore{failuresLeft: 2}
	s := newTestSession(cs, &fakeProvider{})
	ctx := context.Background()

	s.Observe(ctx, snap("a-1", assignment.StatusPending))
	s.Observe(ctx, snap("a-1", assignment.StatusAssigned))
	require.Empty(t, cs.entries, "logging failed, entry not persisted")

	// The baseline still moved to assigned: the next transition is
	// assigned→active, which emits exactly one pickup. Had the baseline
	// stayed at pending, pending→active would emit nothing.
	s.Observe(ctx, snap("a-1", assignment.StatusActive))
	require.Len(t, cs.entries, 1)
	assert.Equal(t, model.EventPrincipalPickup, cs.entries[0].EventType)
}

func TestObserve_EachEventTakesAFreshPositionRead(t *testing.T) {
	cs := &captureStore{}
	provider := &fakeProvider{pos: geo.Position{Latitude: 1, Longitude: 1}}
	s := newTestSession(cs, provider)
	ctx := context.Background()

	s.Observe(ctx, snap("a-1", assignment.StatusActive))
	s.Observe(ctx, snap("a-1", assignment.StatusCompleted))

	require.Len(t, cs.entries, 2)
	assert.Equal(t, 2, provider.calls)
}

func TestObserve_TracksAssignmentsIndependently(t *testing.T) {
	cs := &captureStore{}
	s := newTestSession(cs, &fakeProvider{})
	ctx := context.Background()

	s.Observe(ctx, snap("a-1", assignment.StatusPending))
	// First sight of a-2 is a baseline, not a transition from a-1's state.
	s.Observe(ctx, snap("a-2", assignment.StatusAssigned))
	assert.Empty(t, cs.entries)

	s.Observe(ctx, snap("a-1", assignment.StatusAssigned))
	require.Len(t, cs.entries, 1)
	assert.Equal(t, model.EventAssignmentStart, cs.entries[0].EventType)
}

func TestObserve_EvictsTerminalAssignmentBaselines(t *testing.T) {
	cs := &captureStore{}
	s := newTestSession(cs, &fakeProvider{})
	ctx := context.Background()

	s.Observe(ctx, snap("a-1", assignment.StatusActive))
	s.Observe(ctx, snap("a-1", assignment.StatusCompleted))
	s.Observe(ctx, snap("a-2", assignment.StatusAssigned))
	s.Observe(ctx, snap("a-2", assignment.StatusCancelled))
	s.Observe(ctx, snap("a-3", assignment.StatusAssigned))

	// Terminal assignments are gone; the live one keeps its baseline.
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.NotContains(t, s.baselines, "a-1")
	assert.NotContains(t, s.baselines, "a-2")
	assert.Contains(t, s.baselines, "a-3")
}

func TestObserve_CancelledContextIsANoOp(t *testing.T) {
	cs := &captureStore{}
	s := newTestSession(cs, &fakeProvider{})

	ctx, cancel := context.WithCancel(context.Background())
	s.Observe(ctx, snap("a-1", assignment.StatusPending))
	cancel()

	s.Observe(ctx, snap("a-1", assignment.StatusAssigned))
	assert.Empty(t, cs.entries)
}
