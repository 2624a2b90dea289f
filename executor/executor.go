// Package executor runs due job occurrences on concurrent goroutines,
// bounded by a scheduler-wide ceiling, per-job instance ceilings, and an
// optional submission rate limit. Executions flow through the middleware
// chain and report their lifecycle on the event bus.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/chrono/backoff"
	"github.com/xraph/chrono/clock"
	"github.com/xraph/chrono/event"
	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/job"
	"github.com/xraph/chrono/middleware"
)

// Submission errors.
var (
	// ErrStopped is returned by Submit after Stop has been called.
	ErrStopped = errors.New("executor: stopped")
	// ErrGlobalCeiling is returned when the scheduler-wide concurrency
	// ceiling is reached.
	ErrGlobalCeiling = errors.New("executor: global concurrency ceiling reached")
	// ErrRateLimited is returned when the submission rate limiter rejects
	// a fire.
	ErrRateLimited = errors.New("executor: submission rate limited")
)

// Ticket identifies one in-flight execution.
type Ticket struct {
	ID        id.TicketID
	JobID     id.JobID
	JobName   string
	FireAt    time.Time
	StartedAt time.Time
}

type ticketEntry struct {
	Ticket
	cancel context.CancelFunc
}

// Executor dispatches acquired job instances onto goroutines. It owns the
// global concurrency ceiling and the per-execution retry and timeout logic;
// per-job instance ceilings are enforced by the table at acquire time.
type Executor struct {
	table  *job.Table
	bus    *event.Bus
	clk    clock.Clock
	logger *slog.Logger

	mw            middleware.Middleware
	bo            backoff.Strategy
	limiter       *rate.Limiter
	maxConcurrent int

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu      sync.Mutex
	active  int
	tickets map[string]*ticketEntry
	stopped bool

	stopCh chan struct{}
	wg     sync.WaitGroup

	userMW []middleware.Middleware
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxConcurrent sets the scheduler-wide concurrency ceiling. Zero or
// negative means unbounded, which is the default.
func WithMaxConcurrent(n int) Option {
	return func(e *Executor) { e.maxConcurrent = n }
}

// WithRateLimit caps dispatch throughput at perSecond submissions with the
// given burst. A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(e *Executor) {
		if perSecond > 0 {
			if burst < 1 {
				burst = 1
			}
			e.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithBackoff sets the delay strategy applied between retry attempts.
func WithBackoff(s backoff.Strategy) Option {
	return func(e *Executor) {
		if s != nil {
			e.bo = s
		}
	}
}

// WithMiddleware appends middleware to the execution chain, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Executor) { e.userMW = append(e.userMW, mws...) }
}

// WithClock sets the time source. Intended for tests.
func WithClock(c clock.Clock) Option {
	return func(e *Executor) {
		if c != nil {
			e.clk = c
		}
	}
}

// New creates an Executor bound to the given table and event bus.
func New(table *job.Table, bus *event.Bus, logger *slog.Logger, opts ...Option) *Executor {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	e := &Executor{
		table:      table,
		bus:        bus,
		clk:        clock.NewReal(),
		logger:     logger,
		bo:         backoff.Default(),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		tickets:    make(map[string]*ticketEntry),
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	// Recover sits innermost so a handler panic becomes an error before
	// user middleware observes the result.
	e.mw = middleware.Chain(append(e.userMW, middleware.Recover(logger))...)
	return e
}

// Submit acquires an execution slot for the job and launches it on a new
// goroutine. The occurrence is rejected with ErrStopped, ErrRateLimited,
// ErrGlobalCeiling, or one of the table's acquire errors; a nil return
// means the execution was launched.
func (e *Executor) Submit(jobID id.JobID, fireAt time.Time) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrStopped
	}
	if e.maxConcurrent > 0 && e.active >= e.maxConcurrent {
		e.mu.Unlock()
		return ErrGlobalCeiling
	}

	rec, err := e.table.Acquire(jobID)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	// The token is consumed last so a fire rejected by a ceiling or the
	// table does not starve the next submission.
	if e.limiter != nil && !e.limiter.Allow() {
		e.table.Release(rec.ID)
		e.mu.Unlock()
		return ErrRateLimited
	}

	ctx, cancel := context.WithCancel(e.baseCtx)
	entry := &ticketEntry{
		Ticket: Ticket{
			ID:        id.NewTicketID(),
			JobID:     rec.ID,
			JobName:   rec.Name,
			FireAt:    fireAt,
			StartedAt: e.clk.Now(),
		},
		cancel: cancel,
	}
	e.active++
	e.tickets[entry.ID.String()] = entry
	e.wg.Add(1)
	e.mu.Unlock()

	e.bus.Publish(event.Event{
		Type:        event.TypeSubmitted,
		JobID:       rec.ID,
		JobName:     rec.Name,
		ScheduledAt: fireAt,
		ActualAt:    entry.StartedAt,
	})

	go e.run(ctx, entry, rec)
	return nil
}

// run drives one execution through its retry attempts.
func (e *Executor) run(ctx context.Context, entry *ticketEntry, rec job.Record) {
	defer e.finish(entry, rec)

	maxAttempts := rec.MaxRetries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := e.clk.Now()
		timedOut, err := e.invoke(ctx, &rec)
		elapsed := e.clk.Now().Sub(start)

		if timedOut {
			e.logger.Warn("job execution timed out",
				slog.String("job_id", rec.ID.String()),
				slog.String("job_name", rec.Name),
				slog.Duration("timeout", rec.Timeout),
			)
			e.bus.Publish(event.Event{
				Type:        event.TypeTimedOut,
				JobID:       rec.ID,
				JobName:     rec.Name,
				ScheduledAt: entry.FireAt,
				ActualAt:    e.clk.Now(),
				Duration:    elapsed,
				Err:         err,
			})
			// A timed-out attempt is abandoned, not retried.
			return
		}

		if err == nil {
			e.bus.Publish(event.Event{
				Type:        event.TypeExecuted,
				JobID:       rec.ID,
				JobName:     rec.Name,
				ScheduledAt: entry.FireAt,
				ActualAt:    e.clk.Now(),
				Duration:    elapsed,
			})
			return
		}

		if attempt < maxAttempts {
			delay := e.bo.Delay(attempt)
			e.logger.Info("retrying job",
				slog.String("job_id", rec.ID.String()),
				slog.String("job_name", rec.Name),
				slog.Int("attempt", attempt),
				slog.Int("max_retries", rec.MaxRetries),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()),
			)
			e.bus.Publish(event.Event{
				Type:        event.TypeRetrying,
				JobID:       rec.ID,
				JobName:     rec.Name,
				ScheduledAt: entry.FireAt,
				ActualAt:    e.clk.Now(),
				Attempt:     attempt,
				Err:         err,
			})
			if !e.wait(ctx, delay) {
				return
			}
			continue
		}

		e.logger.Error("job failed",
			slog.String("job_id", rec.ID.String()),
			slog.String("job_name", rec.Name),
			slog.Int("attempts", maxAttempts),
			slog.String("error", err.Error()),
		)
		e.bus.Publish(event.Event{
			Type:        event.TypeError,
			JobID:       rec.ID,
			JobName:     rec.Name,
			ScheduledAt: entry.FireAt,
			ActualAt:    e.clk.Now(),
			Duration:    elapsed,
			Err:         err,
		})
	}
}

// invoke runs one attempt of the handler through the middleware chain.
// When the job has a timeout, the handler runs on an inner goroutine and
// the wait is abandoned once the deadline passes; the handler's context is
// cancelled so cooperative handlers can stop.
func (e *Executor) invoke(ctx context.Context, rec *job.Record) (bool, error) {
	terminal := func(c context.Context) error { return rec.Handler(c) }

	if rec.Timeout <= 0 {
		return false, e.mw(ctx, rec, terminal)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- e.mw(runCtx, rec, terminal)
	}()

	timer := e.clk.NewTimer(rec.Timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		cancel()
		return false, err
	case <-timer.C():
		cancel()
		return true, context.DeadlineExceeded
	}
}

// wait sleeps for the backoff delay, returning false if interrupted by
// shutdown or cancellation.
func (e *Executor) wait(ctx context.Context, d time.Duration) bool {
	timer := e.clk.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C():
		return true
	case <-e.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

func (e *Executor) finish(entry *ticketEntry, rec job.Record) {
	entry.cancel()

	e.mu.Lock()
	e.active--
	delete(e.tickets, entry.ID.String())
	e.mu.Unlock()

	e.table.Release(rec.ID)
	e.wg.Done()
}

// Active returns the number of in-flight executions.
func (e *Executor) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Tickets returns a snapshot of the in-flight executions.
func (e *Executor) Tickets() []Ticket {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Ticket, 0, len(e.tickets))
	for _, entry := range e.tickets {
		out = append(out, entry.Ticket)
	}
	return out
}

// Stop refuses further submissions and waits for in-flight executions to
// drain. If the context expires first, remaining executions are reported
// as abandoned and their contexts cancelled; Stop then returns without
// waiting further. An abandoned callable that ignores its context may
// still be running in the background.
func (e *Executor) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	e.mu.Unlock()

	close(e.stopCh)

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("executor drained")
	case <-ctx.Done():
		e.logger.Warn("executor drain timed out, abandoning active executions")
		e.mu.Lock()
		for _, entry := range e.tickets {
			e.bus.Publish(event.Event{
				Type:        event.TypeAbandoned,
				JobID:       entry.JobID,
				JobName:     entry.JobName,
				ScheduledAt: entry.FireAt,
				ActualAt:    e.clk.Now(),
			})
		}
		e.mu.Unlock()
		// The wait is bounded by the context: cancel and return. A
		// callable that never honors cancellation must not pin Stop.
		e.baseCancel()
		return nil
	}

	e.baseCancel()
	return nil
}
