package chrono

import (
	"log/slog"

	"github.com/xraph/chrono/backoff"
	"github.com/xraph/chrono/clock"
	"github.com/xraph/chrono/middleware"
	"github.com/xraph/chrono/store"
)

// Option configures a Scheduler.
type Option func(*Scheduler) error

// WithLogger sets the structured logger for the scheduler.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) error {
		if l != nil {
			s.logger = l
		}
		return nil
	}
}

// WithClock sets the time source. Intended for tests.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) error {
		if c != nil {
			s.clk = c
		}
		return nil
	}
}

// WithStore sets the persistence backend used by Restore and Snapshot.
func WithStore(st store.Store) Option {
	return func(s *Scheduler) error {
		s.store = st
		return nil
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(s *Scheduler) error {
		s.config = cfg
		return nil
	}
}

// WithMaxConcurrent sets the scheduler-wide concurrency ceiling.
func WithMaxConcurrent(n int) Option {
	return func(s *Scheduler) error {
		s.config.MaxConcurrent = n
		return nil
	}
}

// WithRateLimit caps dispatch throughput at perSecond submissions with the
// given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Scheduler) error {
		s.config.RateLimit = perSecond
		s.config.RateBurst = burst
		return nil
	}
}

// WithEventBufferSize sets the per-subscriber event channel capacity.
func WithEventBufferSize(n int) Option {
	return func(s *Scheduler) error {
		if n > 0 {
			s.config.EventBufferSize = n
		}
		return nil
	}
}

// WithBackoff sets the delay strategy applied between retry attempts.
func WithBackoff(b backoff.Strategy) Option {
	return func(s *Scheduler) error {
		if b != nil {
			s.bo = b
		}
		return nil
	}
}

// WithMiddleware appends middleware to the execution chain, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Scheduler) error {
		s.mws = append(s.mws, mws...)
		return nil
	}
}
