// Package history defines where classification results are kept after the
// engine returns them, plus an in-memory Store.
package history

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/menta2k/leafscan/pkg/types"
)

// Entry is a saved result
type Entry struct {
	ID         uuid.UUID             `json:"id"`
	Timestamp  time.Time             `json:"timestamp"`
	Result     types.InferenceResult `json:"result"`
	IsFavorite bool                  `json:"isFavorite"`
}

// Store persists results
type Store interface {
	Save(ctx context.Context, result types.InferenceResult, isFavorite bool) (Entry, error)
	// FetchEntries returns entries newest first
	FetchEntries(ctx context.Context) ([]Entry, error)
	// UpdateFavorite changes the favorite flag; an unknown id is ignored
	UpdateFavorite(ctx context.Context, id uuid.UUID, isFavorite bool) error
}

// MemoryStore is a Store backed by a slice
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Save prepends a new entry
func (s *MemoryStore) Save(_ context.Context, result types.InferenceResult, isFavorite bool) (Entry, error) {
	entry := Entry{
		ID:         uuid.New(),
		Timestamp:  s.now(),
		Result:     result,
		IsFavorite: isFavorite,
	}

	s.mu.Lock()
	s.entries = slices.Insert(s.entries, 0, entry)
	s.mu.Unlock()
	return entry, nil
}

// FetchEntries returns a copy of all entries, newest first
func (s *MemoryStore) FetchEntries(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries), nil
}

// UpdateFavorite sets the favorite flag of the entry with id
func (s *MemoryStore) UpdateFavorite(_ context.Context, id uuid.UUID, isFavorite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.entries, func(e Entry) bool { return e.ID == id })
	if i >= 0 {
		s.entries[i].IsFavorite = isFavorite
	}
	return nil
}

// Len returns the number of entries
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
