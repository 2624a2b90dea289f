package job

import (
	"time"

	"github.com/xraph/chrono/id"
)

// DefaultMisfireGrace is the misfire grace applied when none is set.
const DefaultMisfireGrace = time.Minute

// Options configures per-job behavior such as concurrency ceiling,
// misfire grace, timeout, and retries.
type Options struct {
	// ID is the job identifier. Nil means the table assigns one.
	ID id.JobID

	// MaxInstances bounds how many overlapping executions of this job
	// may run simultaneously.
	MaxInstances int

	// MisfireGrace is the maximum allowed lateness before a due
	// occurrence is skipped instead of dispatched.
	MisfireGrace time.Duration

	// Timeout is the maximum duration one execution may run. Zero means
	// unlimited.
	Timeout time.Duration

	// MaxRetries is the number of in-place retry attempts after a failed
	// execution. Zero means failures are reported immediately.
	MaxRetries int

	// Paused registers the job in the paused state; it will not fire
	// until resumed.
	Paused bool
}

// DefaultOptions returns Options with the package defaults: a single
// instance, one minute of misfire grace, no timeout, no retries.
func DefaultOptions() Options {
	return Options{
		MaxInstances: 1,
		MisfireGrace: DefaultMisfireGrace,
	}
}

// Option is a functional option for configuring a job definition.
type Option func(*Options)

// WithID sets an explicit job identifier.
func WithID(jobID id.JobID) Option {
	return func(o *Options) { o.ID = jobID }
}

// WithMaxInstances sets how many overlapping executions may run at once.
// Values below 1 are clamped to 1.
func WithMaxInstances(n int) Option {
	return func(o *Options) {
		if n < 1 {
			n = 1
		}
		o.MaxInstances = n
	}
}

// WithMisfireGrace sets the maximum lateness before a fire is skipped.
func WithMisfireGrace(d time.Duration) Option {
	return func(o *Options) { o.MisfireGrace = d }
}

// WithTimeout sets the per-execution deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithMaxRetries sets the in-place retry budget for failed executions.
func WithMaxRetries(n int) Option {
	return func(o *Options) { o.MaxRetries = n }
}

// WithPaused registers the job paused.
func WithPaused() Option {
	return func(o *Options) { o.Paused = true }
}
