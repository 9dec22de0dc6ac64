package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"dob-backend/internal/model"
)

// Store defines all occurrence-book database operations. Immutability and
// ownership are enforced here, not left to callers.
type Store interface {
	Create(ctx context.Context, entry *model.Entry) (*model.Entry, error)
	Finalize(ctx context.Context, id, cpoID string) (*model.Entry, error)
	Update(ctx context.Context, entry *model.Entry) (*model.Entry, error)
	Query(ctx context.Context, cpoID string, filter Filter) ([]model.Entry, error)
	Get(ctx context.Context, id, cpoID string) (*model.Entry, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db, locks: make(map[string]*sync.Mutex)}
}

// DB exposes the underlying connection for collaborators that manage their
// own tables (device subscriptions).
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// officerLock returns the write lock for one officer. Writes for the same
// officer are serialized so a finalize and a concurrent create cannot race;
// officers never contend with each other.
func (s *gormStore) officerLock(cpoID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[cpoID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[cpoID] = l
	}
	return l
}

// Create persists a new entry and returns it with its generated id and
// timestamps. An existing id is never overwritten.
func (s *gormStore) Create(ctx context.Context, entry *model.Entry) (*model.Entry, error) {
	l := s.officerLock(entry.CPOID)
	l.Lock()
	defer l.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	} else {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.Entry{}).Where("id = ?", entry.ID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check for existing entry %s: %w", entry.ID, err)
		}
		if count > 0 {
			return nil, fmt.Errorf("entry %s: %w", entry.ID, ErrDuplicateID)
		}
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create entry %s: %w", entry.ID, err)
	}
	return entry, nil
}

// Finalize flips an entry to immutable. It is idempotent: finalizing an
// already-immutable entry is a no-op, not an error. Ownership is verified
// before anything else.
func (s *gormStore) Finalize(ctx context.Context, id, cpoID string) (*model.Entry, error) {
	l := s.officerLock(cpoID)
	l.Lock()
	defer l.Unlock()

	entry, err := s.load(ctx, id, cpoID)
	if err != nil {
		return nil, err
	}
	if entry.IsImmutable {
		return entry, nil
	}

	if err := s.db.WithContext(ctx).Model(entry).Update("is_immutable", true).Error; err != nil {
		return nil, fmt.Errorf("failed to finalize entry %s: %w", id, err)
	}
	entry.IsImmutable = true
	return entry, nil
}

// Update rewrites the mutable fields of a mutable entry. An immutable entry
// is rejected with ErrImmutable and left byte-for-byte unchanged.
func (s *gormStore) Update(ctx context.Context, entry *model.Entry) (*model.Entry, error) {
	l := s.officerLock(entry.CPOID)
	l.Lock()
	defer l.Unlock()

	current, err := s.load(ctx, entry.ID, entry.CPOID)
	if err != nil {
		return nil, err
	}
	if current.IsImmutable {
		return nil, fmt.Errorf("entry %s: %w", entry.ID, ErrImmutable)
	}

	updates := model.Entry{Description: entry.Description, Metadata: entry.Metadata}
	err = s.db.WithContext(ctx).Model(current).
		Select("description", "metadata").
		Where("is_immutable = ?", false).
		Updates(updates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update entry %s: %w", entry.ID, err)
	}
	return s.load(ctx, entry.ID, entry.CPOID)
}

// Query returns the officer's entries matching all supplied filters, newest
// occurrence first.
func (s *gormStore) Query(ctx context.Context, cpoID string, filter Filter) ([]model.Entry, error) {
	q := s.db.WithContext(ctx).Where("cpo_id = ?", cpoID)

	if filter.AssignmentID != "" {
		q = q.Where("assignment_id = ?", filter.AssignmentID)
	}
	if filter.Start != nil {
		q = q.Where("timestamp >= ?", *filter.Start)
	}
	if filter.End != nil {
		q = q.Where("timestamp <= ?", *filter.End)
	}
	if filter.EntryType != "" {
		q = q.Where("entry_type = ?", filter.EntryType)
	}
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}
	if filter.SearchQuery != "" {
		pattern := "%" + strings.ToLower(filter.SearchQuery) + "%"
		q = q.Where("LOWER(description) LIKE ?", pattern)
	}

	var entries []model.Entry
	if err := q.Order("timestamp DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to query entries for officer %s: %w", cpoID, err)
	}
	return entries, nil
}

// Get returns a single entry after verifying ownership, not just existence.
func (s *gormStore) Get(ctx context.Context, id, cpoID string) (*model.Entry, error) {
	return s.load(ctx, id, cpoID)
}

func (s *gormStore) load(ctx context.Context, id, cpoID string) (*model.Entry, error) {
	var entry model.Entry
	err := s.db.WithContext(ctx).First(&entry, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entry %s: %w", id, err)
	}
	if entry.CPOID != cpoID {
		return nil, fmt.Errorf("entry %s: %w", id, ErrNotOwner)
	}
	return &entry, nil
}
