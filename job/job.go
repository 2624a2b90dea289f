package job

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/trigger"
)

// Errors raised by job table addressing and state checks.
var (
	// ErrDuplicateID means a job with the same ID is already registered.
	ErrDuplicateID = errors.New("job: duplicate id")
	// ErrNotFound means no job with the given ID exists.
	ErrNotFound = errors.New("job: not found")
	// ErrRemoved means the job has been removed (possibly with instances
	// still draining) or its trigger is exhausted.
	ErrRemoved = errors.New("job: removed")
	// ErrPaused means the job is paused and must not fire.
	ErrPaused = errors.New("job: paused")
	// ErrInstanceCeiling means the job already has its maximum number of
	// concurrent instances running.
	ErrInstanceCeiling = errors.New("job: instance ceiling reached")
	// ErrExhaustedTrigger means the trigger has no future occurrence at
	// registration time.
	ErrExhaustedTrigger = errors.New("job: trigger already exhausted")
)

// State is the run state of a job.
type State string

// Run states.
const (
	// StateScheduled means the job is waiting for its next fire time.
	StateScheduled State = "scheduled"
	// StateRunning means at least one instance is currently executing.
	StateRunning State = "running"
	// StatePaused means future fires are suspended until resumed.
	StatePaused State = "paused"
	// StateRemoved means the job is removed but instances are still
	// draining; the record disappears once the last one completes.
	StateRemoved State = "removed"
)

// HandlerFunc is the job callable. The context carries the cancellation
// signal the executor exposes on timeout and forced shutdown; honoring
// it is the handler's own concern.
type HandlerFunc func(ctx context.Context) error

// Record is the mutable state container for one scheduled unit of work.
// Records are owned by the Table; reads through Get and Jobs return
// snapshot copies that are safe to retain.
type Record struct {
	ID      id.JobID
	Name    string
	Trigger trigger.Trigger
	Handler HandlerFunc

	State State

	// MaxInstances bounds overlapping executions of this job.
	MaxInstances int
	// MisfireGrace is the maximum lateness before a due occurrence is
	// abandoned rather than dispatched.
	MisfireGrace time.Duration
	// Timeout is the per-execution deadline. Zero means unlimited.
	Timeout time.Duration
	// MaxRetries is how many times a failed execution is re-attempted
	// in place before it is reported as an error.
	MaxRetries int

	// NextFire is the next computed fire time. Nil while paused or once
	// the trigger is exhausted.
	NextFire *time.Time
	// LastFire is the scheduled time of the most recent dispatch.
	LastFire *time.Time

	// Running is the number of in-flight instances.
	Running int

	CreatedAt time.Time

	// exhausted marks a trigger with no further occurrences; the record
	// is deleted once the last running instance completes.
	exhausted bool
	// heapIndex is the record's position in the table's deadline heap,
	// -1 when not indexed.
	heapIndex int
}

// Definition describes a job to register: a name, a firing rule, the
// callable, and per-job options.
type Definition struct {
	Name    string
	Trigger trigger.Trigger
	Handler HandlerFunc
	Opts    Options
}

// NewDefinition creates a job definition with the given options applied
// over defaults.
func NewDefinition(name string, tr trigger.Trigger, handler HandlerFunc, opts ...Option) *Definition {
	def := &Definition{
		Name:    name,
		Trigger: tr,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}
