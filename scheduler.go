package chrono

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xraph/chrono/backoff"
	"github.com/xraph/chrono/clock"
	"github.com/xraph/chrono/event"
	"github.com/xraph/chrono/executor"
	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/job"
	"github.com/xraph/chrono/middleware"
	"github.com/xraph/chrono/store"
)

// Scheduler is the central coordinator: it owns the job table, the timing
// loop that waits for the next fire, the executor that runs due jobs, and
// the event bus that reports their lifecycle.
//
// Create one with New and functional options, add jobs, then Start. A
// stopped Scheduler cannot be restarted.
type Scheduler struct {
	config Config
	logger *slog.Logger
	clk    clock.Clock
	store  store.Store
	bo     backoff.Strategy
	mws    []middleware.Middleware

	registry *job.Registry
	table    *job.Table
	bus      *event.Bus
	exec     *executor.Executor
	loop     *loop

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates a Scheduler with the given options.
func New(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		config:   DefaultConfig(),
		logger:   slog.Default(),
		clk:      clock.NewReal(),
		registry: job.NewRegistry(),
		table:    job.NewTable(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	s.bus = event.NewBus(s.logger, event.WithBufferSize(s.config.EventBufferSize))

	execOpts := []executor.Option{
		executor.WithMaxConcurrent(s.config.MaxConcurrent),
		executor.WithClock(s.clk),
	}
	if s.config.RateLimit > 0 {
		execOpts = append(execOpts, executor.WithRateLimit(s.config.RateLimit, s.config.RateBurst))
	}
	if s.bo != nil {
		execOpts = append(execOpts, executor.WithBackoff(s.bo))
	}
	if len(s.mws) > 0 {
		execOpts = append(execOpts, executor.WithMiddleware(s.mws...))
	}
	s.exec = executor.New(s.table, s.bus, s.logger, execOpts...)
	s.loop = newLoop(s.table, s.exec, s.bus, s.clk, s.logger)

	return s, nil
}

// Logger returns the scheduler's logger.
func (s *Scheduler) Logger() *slog.Logger { return s.logger }

// Config returns a copy of the scheduler's configuration.
func (s *Scheduler) Config() Config { return s.config }

// RegisterHandler binds a handler name to a callable so persisted jobs can
// be restored. Registering an existing name replaces the handler.
func (s *Scheduler) RegisterHandler(name string, h job.HandlerFunc) {
	s.registry.Register(name, h)
}

// Start launches the timing loop. It returns immediately.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	s.logger.Info("scheduler starting",
		slog.Int("max_concurrent", s.config.MaxConcurrent),
		slog.Int("jobs", s.table.Len()),
	)

	go s.loop.run()
	return nil
}

// Stop halts the timing loop, refuses further submissions, and drains
// in-flight executions until the context expires. If a store is configured
// the surviving jobs are snapshotted before it is closed. Stop is
// idempotent; a stopped Scheduler cannot be restarted.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	s.logger.Info("scheduler stopping")

	if started {
		s.loop.stop()
	}

	var firstErr error
	if err := s.exec.Stop(ctx); err != nil {
		firstErr = err
	}

	if s.store != nil {
		if err := s.snapshotJobs(ctx); err != nil {
			s.logger.Error("snapshot on stop failed", slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
		if err := s.store.Close(); err != nil {
			s.logger.Error("store close failed", slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.bus.Close()
	return firstErr
}

func (s *Scheduler) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// AddJob inserts a job definition into the table. The timing loop picks up
// the new deadline immediately.
func (s *Scheduler) AddJob(def *job.Definition) (id.JobID, error) {
	if s.isStopped() {
		return id.JobID{}, ErrSchedulerStopped
	}
	rec, err := s.table.Insert(def, s.clk.Now())
	if err != nil {
		return id.JobID{}, err
	}
	s.logger.Info("job added",
		slog.String("job_id", rec.ID.String()),
		slog.String("job_name", rec.Name),
	)
	return rec.ID, nil
}

// RemoveJob removes a job. Executions already in flight finish; the record
// is hidden immediately and dropped once they drain.
func (s *Scheduler) RemoveJob(jobID id.JobID) error {
	if s.isStopped() {
		return ErrSchedulerStopped
	}
	return s.table.Remove(jobID)
}

// PauseJob suspends future fires. In-flight executions are unaffected.
func (s *Scheduler) PauseJob(jobID id.JobID) error {
	if s.isStopped() {
		return ErrSchedulerStopped
	}
	return s.table.Pause(jobID)
}

// ResumeJob reinstates a paused job. Its next fire is computed from now;
// occurrences that fell inside the pause are not backfilled.
func (s *Scheduler) ResumeJob(jobID id.JobID) error {
	if s.isStopped() {
		return ErrSchedulerStopped
	}
	return s.table.Resume(jobID, s.clk.Now())
}

// GetJob returns a snapshot of one job. Unlike the mutating calls, reads
// stay available after Stop and reflect the final job set.
func (s *Scheduler) GetJob(jobID id.JobID) (job.Record, error) {
	return s.table.Get(jobID)
}

// Jobs returns snapshots of every visible job, ordered by ID. Stays
// available after Stop.
func (s *Scheduler) Jobs() []job.Record {
	return s.table.Jobs()
}

// JobsByState returns snapshots of the jobs in the given state. Stays
// available after Stop.
func (s *Scheduler) JobsByState(state job.State) []job.Record {
	return s.table.JobsByState(state)
}

// State reports the timing loop's current state.
func (s *Scheduler) State() LoopState {
	return s.loop.State()
}

// Subscribe registers a new event subscriber. The returned cancel function
// releases it.
func (s *Scheduler) Subscribe() (<-chan event.Event, func()) {
	return s.bus.Subscribe()
}

// Restore loads persisted snapshots from the store and inserts them into
// the table, re-binding handlers by name from the registry. Jobs whose
// triggers are already exhausted are skipped.
func (s *Scheduler) Restore(ctx context.Context) error {
	if s.store == nil {
		return ErrNoStore
	}
	if s.isStopped() {
		return ErrSchedulerStopped
	}

	snaps, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("chrono: restore: %w", err)
	}

	now := s.clk.Now()
	restored := 0
	for _, snap := range snaps {
		tr, err := snap.Trigger.Build()
		if err != nil {
			return fmt.Errorf("chrono: restore job %s: %w", snap.ID, err)
		}

		handler, ok := s.registry.Get(snap.Name)
		if !ok {
			return fmt.Errorf("%w: %q for job %s", ErrUnknownHandler, snap.Name, snap.ID)
		}

		opts := []job.Option{
			job.WithID(snap.ID),
			job.WithMaxInstances(snap.MaxInstances),
			job.WithMisfireGrace(snap.MisfireGrace),
			job.WithTimeout(snap.Timeout),
			job.WithMaxRetries(snap.MaxRetries),
		}
		if snap.Paused {
			opts = append(opts, job.WithPaused())
		}

		_, err = s.table.Insert(job.NewDefinition(snap.Name, tr, handler, opts...), now)
		switch {
		case errors.Is(err, job.ErrExhaustedTrigger):
			s.logger.Warn("skipping exhausted job on restore",
				slog.String("job_id", snap.ID.String()),
				slog.String("job_name", snap.Name),
			)
		case errors.Is(err, job.ErrDuplicateID):
			s.logger.Warn("skipping already present job on restore",
				slog.String("job_id", snap.ID.String()),
			)
		case err != nil:
			return fmt.Errorf("chrono: restore job %s: %w", snap.ID, err)
		default:
			restored++
		}
	}

	s.logger.Info("jobs restored", slog.Int("count", restored))
	return nil
}

// Snapshot persists the current job set to the store.
func (s *Scheduler) Snapshot(ctx context.Context) error {
	if s.store == nil {
		return ErrNoStore
	}
	return s.snapshotJobs(ctx)
}

func (s *Scheduler) snapshotJobs(ctx context.Context) error {
	recs := s.table.Jobs()
	snaps := make([]store.Snapshot, 0, len(recs))
	for _, rec := range recs {
		snaps = append(snaps, store.Snapshot{
			ID:           rec.ID,
			Name:         rec.Name,
			Trigger:      rec.Trigger.Spec(),
			MaxInstances: rec.MaxInstances,
			MisfireGrace: rec.MisfireGrace,
			Timeout:      rec.Timeout,
			MaxRetries:   rec.MaxRetries,
			Paused:       rec.State == job.StatePaused,
		})
	}
	return s.store.Save(ctx, snaps)
}
