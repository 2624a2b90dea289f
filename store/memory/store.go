// Package memory provides a fully in-memory snapshot store. Safe for
// concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/chrono/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps the last saved snapshot set in memory.
type Store struct {
	mu    sync.RWMutex
	snaps map[string]store.Snapshot
}

// New returns a new empty Store.
func New() *Store {
	return &Store{snaps: make(map[string]store.Snapshot)}
}

// Load returns the saved snapshots sorted by job ID.
func (m *Store) Load(_ context.Context) ([]store.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]store.Snapshot, 0, len(m.snaps))
	for _, snap := range m.snaps {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// Save replaces the stored set.
func (m *Store) Save(_ context.Context, snaps []store.Snapshot) error {
	next := make(map[string]store.Snapshot, len(snaps))
	for _, snap := range snaps {
		next[snap.ID.String()] = snap
	}

	m.mu.Lock()
	m.snaps = next
	m.mu.Unlock()
	return nil
}

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }
