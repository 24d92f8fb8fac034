package watermark

import (
	"context"
	"sync"
	"time"
)

// Store persists the per-table high-water mark of the batch pipeline. The
// cursor only moves forward, and only after the rows up to it have been
// durably loaded. A nil cursor means the table has never been synced and a
// full initial load is due.
//
// The store is owned exclusively by the batch pipeline, one writer per
// table; the streaming pipeline's position lives in the broker.
type Store interface {
	Get(ctx context.Context, table string) (*time.Time, error)
	Set(ctx context.Context, table string, cursor time.Time) error
}

// MemoryStore keeps watermarks in process memory. Cursors are lost on
// restart, which is safe: the next run re-extracts from the beginning and
// versioned appends absorb the replay.
type MemoryStore struct {
	mu      sync.Mutex
	cursors map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cursors: make(map[string]time.Time)}
}

func (s *MemoryStore) Get(ctx context.Context, table string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cursor, ok := s.cursors[table]
	if !ok {
		return nil, nil
	}
	return &cursor, nil
}

// Set records the cursor for a table. A cursor older than the stored one is
// ignored, keeping the watermark monotonically non-decreasing.
func (s *MemoryStore) Set(ctx context.Context, table string, cursor time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.cursors[table]; ok && cursor.Before(current) {
		return nil
	}
	s.cursors[table] = cursor
	return nil
}
