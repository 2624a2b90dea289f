// Package store defines the optional persistence contract for job
// definitions. A Store holds serializable snapshots of the job table so a
// scheduler can restore its jobs across restarts; handlers are re-bound by
// name from the registry at restore time.
//
// Backends: store/memory for testing and development, store/sqlite for a
// single-file durable store.
package store

import (
	"context"
	"time"

	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/trigger"
)

// Snapshot is the persistable shape of one scheduled job. It carries the
// trigger as its declarative spec rather than the live trigger, and names
// the handler instead of referencing the callable.
type Snapshot struct {
	ID   id.JobID `json:"id"`
	Name string   `json:"name"`

	Trigger trigger.Spec `json:"trigger"`

	MaxInstances int           `json:"max_instances"`
	MisfireGrace time.Duration `json:"misfire_grace"`
	Timeout      time.Duration `json:"timeout,omitempty"`
	MaxRetries   int           `json:"max_retries,omitempty"`
	Paused       bool          `json:"paused,omitempty"`
}

// Store persists job snapshots. Save replaces the full set; Load returns
// whatever was last saved.
type Store interface {
	// Load returns every persisted snapshot.
	Load(ctx context.Context) ([]Snapshot, error)

	// Save atomically replaces the persisted set with the given snapshots.
	Save(ctx context.Context, snaps []Snapshot) error

	// Close releases backend resources.
	Close() error
}
