package chrono

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/xraph/chrono/clock"
	"github.com/xraph/chrono/event"
	"github.com/xraph/chrono/executor"
	"github.com/xraph/chrono/job"
	"github.com/xraph/chrono/trigger"
)

// LoopState describes what the timing loop is doing.
type LoopState string

const (
	// LoopIdle means the table is empty and the loop sleeps until a job
	// arrives.
	LoopIdle LoopState = "idle"
	// LoopWaiting means the loop sleeps until the earliest fire time.
	LoopWaiting LoopState = "waiting"
	// LoopDispatching means due jobs are being handed to the executor.
	LoopDispatching LoopState = "dispatching"
	// LoopStopped means the loop has exited.
	LoopStopped LoopState = "stopped"
)

// missedWalkCap bounds the trigger walk that counts how many occurrences a
// stall swallowed.
const missedWalkCap = 10000

// loop is the single goroutine that waits for the earliest deadline and
// dispatches due jobs. Any table mutation signals the wake channel so the
// wait is re-evaluated immediately.
type loop struct {
	table  *job.Table
	exec   *executor.Executor
	bus    *event.Bus
	clk    clock.Clock
	logger *slog.Logger

	state  atomic.Value
	stopCh chan struct{}
	doneCh chan struct{}
}

func newLoop(table *job.Table, exec *executor.Executor, bus *event.Bus, clk clock.Clock, logger *slog.Logger) *loop {
	l := &loop{
		table:  table,
		exec:   exec,
		bus:    bus,
		clk:    clk,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	l.state.Store(LoopIdle)
	return l
}

// State returns the loop's current state.
func (l *loop) State() LoopState {
	return l.state.Load().(LoopState)
}

// stop signals the loop and waits for it to exit.
func (l *loop) stop() {
	close(l.stopCh)
	<-l.doneCh
}

func (l *loop) run() {
	defer close(l.doneCh)
	defer l.state.Store(LoopStopped)

	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		earliest, ok := l.table.Earliest()
		if !ok {
			l.state.Store(LoopIdle)
			select {
			case <-l.table.Wake():
			case <-l.stopCh:
				return
			}
			continue
		}

		now := l.clk.Now()
		if earliest.After(now) {
			l.state.Store(LoopWaiting)
			timer := l.clk.NewTimer(earliest.Sub(now))
			select {
			case <-timer.C():
			case <-l.table.Wake():
				timer.Stop()
			case <-l.stopCh:
				timer.Stop()
				return
			}
			continue
		}

		l.state.Store(LoopDispatching)
		l.dispatch(now)
	}
}

// dispatch submits every due job and advances its deadline. Occurrences
// past their misfire grace, or refused by a ceiling or the rate limiter,
// become missed events instead of executions.
func (l *loop) dispatch(now time.Time) {
	for _, due := range l.table.DueAt(now) {
		select {
		case <-l.stopCh:
			return
		default:
		}

		if due.Grace > 0 && now.Sub(due.FireAt) > due.Grace {
			l.reportMissed(due, now, event.ReasonGraceExceeded)
			l.table.Advance(due.JobID, now)
			continue
		}

		err := l.exec.Submit(due.JobID, due.FireAt)
		switch {
		case err == nil:
		case errors.Is(err, executor.ErrStopped):
			return
		case errors.Is(err, executor.ErrRateLimited):
			l.reportMissed(due, now, event.ReasonRateLimited)
		case errors.Is(err, executor.ErrGlobalCeiling):
			l.reportMissed(due, now, event.ReasonGlobalCeiling)
		case errors.Is(err, job.ErrInstanceCeiling):
			l.reportMissed(due, now, event.ReasonJobCeiling)
		case errors.Is(err, job.ErrNotFound), errors.Is(err, job.ErrRemoved), errors.Is(err, job.ErrPaused):
			// The job changed under us between DueAt and Submit.
			continue
		default:
			l.logger.Error("submit failed",
				slog.String("job_id", due.JobID.String()),
				slog.String("job_name", due.Name),
				slog.String("error", err.Error()),
			)
		}

		l.table.Advance(due.JobID, now)
	}
}

// reportMissed publishes one missed event for the occurrence, folding any
// further occurrences the stall swallowed into the Skipped count. Advance
// then jumps the job past all of them, so a long stall yields a single
// batch report per job.
func (l *loop) reportMissed(due job.Due, now time.Time, reason event.Reason) {
	skipped := countSkipped(due.Trigger, due.FireAt, now)
	l.bus.Publish(event.Event{
		Type:        event.TypeMissed,
		JobID:       due.JobID,
		JobName:     due.Name,
		ScheduledAt: due.FireAt,
		Reason:      reason,
		Skipped:     skipped,
	})
	l.logger.Warn("missed fire",
		slog.String("job_id", due.JobID.String()),
		slog.String("job_name", due.Name),
		slog.Time("scheduled_at", due.FireAt),
		slog.String("reason", string(reason)),
		slog.Int("skipped", skipped),
	)
}

// countSkipped walks the trigger from the missed occurrence and counts how
// many further occurrences are already in the past. The walk is capped so a
// pathological trigger cannot stall the loop.
func countSkipped(tr trigger.Trigger, from, now time.Time) int {
	count := 0
	at := from
	for count < missedWalkCap {
		next, ok := tr.Next(at)
		if !ok || next.After(now) {
			break
		}
		count++
		at = next
	}
	return count
}
