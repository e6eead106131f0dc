package metastore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/tts-cache/internal/core"
)

const dirPermissions = 0o755

type memoryEntry struct {
	record  core.Artifact
	expires time.Time
}

// MemoryStore keeps records in process memory. Entries older than the TTL
// are treated as absent.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryStore returns an empty store. A zero ttl keeps records forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// WithClock replaces the time source. Used by tests to step past the TTL.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.now = now

	return m
}

// Get returns a copy of the record for contentID or core.ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, contentID string) (*core.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[contentID]
	if ok && !entry.expires.IsZero() && !m.now().Before(entry.expires) {
		delete(m.entries, contentID)

		ok = false
	}

	if !ok {
		return nil, fmt.Errorf("record '%s': %w", contentID, core.ErrNotFound)
	}

	record := entry.record

	return &record, nil
}

// Put stores a copy of record and restarts its TTL.
func (m *MemoryStore) Put(_ context.Context, record *core.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{record: *record}
	if m.ttl > 0 {
		entry.expires = m.now().Add(m.ttl)
	}

	m.entries[record.ContentID] = entry

	return nil
}

// Delete removes the record for contentID.
func (m *MemoryStore) Delete(_ context.Context, contentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, contentID)

	return nil
}
