// Package event defines the job lifecycle events the scheduler pushes
// to subscribers, and the in-process Bus that fans them out.
package event

import (
	"time"

	"github.com/xraph/chrono/id"
)

// Type identifies a job lifecycle event.
type Type string

// Event types emitted over a job's lifetime.
const (
	// TypeSubmitted fires when a due job is accepted for execution.
	TypeSubmitted Type = "submitted"
	// TypeExecuted fires when an execution completes successfully.
	TypeExecuted Type = "executed"
	// TypeError fires when an execution fails (after any retries).
	TypeError Type = "error"
	// TypeMissed fires when a due occurrence could not be dispatched.
	TypeMissed Type = "missed"
	// TypeTimedOut fires when an execution exceeds its configured timeout.
	TypeTimedOut Type = "timed_out"
	// TypeRetrying fires before a failed execution is retried in place.
	TypeRetrying Type = "retrying"
	// TypeAbandoned fires for executions still running at forced shutdown.
	TypeAbandoned Type = "abandoned"
)

// Reason explains why an occurrence was missed.
type Reason string

// Missed-fire reasons.
const (
	// ReasonGraceExceeded means the scheduler woke too long after the
	// fire time (past the job's misfire grace).
	ReasonGraceExceeded Reason = "grace_exceeded"
	// ReasonJobCeiling means the job already had its maximum number of
	// concurrent instances running.
	ReasonJobCeiling Reason = "job_ceiling"
	// ReasonGlobalCeiling means the scheduler-wide concurrency ceiling
	// was reached.
	ReasonGlobalCeiling Reason = "global_ceiling"
	// ReasonRateLimited means the submission rate limiter rejected the fire.
	ReasonRateLimited Reason = "rate_limited"
)

// Event is a single job lifecycle notification.
type Event struct {
	Type    Type      `json:"type"`
	JobID   id.JobID  `json:"job_id"`
	JobName string    `json:"job_name,omitempty"`

	// ScheduledAt is the fire time the trigger computed.
	ScheduledAt time.Time `json:"scheduled_at"`
	// ActualAt is when the event actually occurred. Zero for events that
	// never started (missed).
	ActualAt time.Time `json:"actual_at,omitempty"`

	// Duration is the execution wall time for executed/error/timed_out.
	Duration time.Duration `json:"duration,omitempty"`

	// Err carries the failure for error and retrying events.
	Err error `json:"-"`

	// Reason explains missed events.
	Reason Reason `json:"reason,omitempty"`

	// Attempt is the retry attempt number for retrying events (1-indexed).
	Attempt int `json:"attempt,omitempty"`

	// Skipped is how many occurrences one missed event stands for when a
	// stall is collapsed into a single batch report.
	Skipped int `json:"skipped,omitempty"`
}
