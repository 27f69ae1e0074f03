package store

import (
	"errors"
	"sync"

	"github.com/i474232898/aqi-collector/internal/airquality"
)

var (
	// ErrNotFound is returned before the first successful fetch.
	ErrNotFound = errors.New("no air quality reading available")
)

// MemoryStore is a concurrency-safe holder of the latest reading.
//
// Each save swaps in a new immutable *Reading under the write lock, and
// readers copy the value out under the read lock, so a reader always sees one
// complete reading. No I/O happens while the lock is held.
type MemoryStore struct {
	mu     sync.RWMutex
	latest *airquality.Reading
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveReading replaces the cached reading.
func (s *MemoryStore) SaveReading(r airquality.Reading) {
	snapshot := r

	s.mu.Lock()
	s.latest = &snapshot
	s.mu.Unlock()
}

// Latest returns the cached reading.
func (s *MemoryStore) Latest() (airquality.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return airquality.Reading{}, ErrNotFound
	}
	return *s.latest, nil
}
