// Package trigger provides the firing rules for scheduled jobs. A
// Trigger is a pure computation from a reference time to the next fire
// time; it never reads the wall clock and never fails at evaluation
// time. Malformed parameters are rejected at construction.
package trigger

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSpec is wrapped by all construction-time validation errors.
var ErrInvalidSpec = errors.New("trigger: invalid spec")

// Kind identifies a trigger variant.
type Kind string

// Kind constants for all trigger variants.
const (
	KindOneShot  Kind = "oneshot"
	KindInterval Kind = "interval"
	KindCalendar Kind = "calendar"
)

// Trigger computes when a job fires next. Implementations are
// deterministic and side-effect-free: the same after value always yields
// the same result.
type Trigger interface {
	// Kind returns the trigger variant.
	Kind() Kind

	// Next returns the first fire time strictly after the given time.
	// The second return is false when the trigger is exhausted.
	Next(after time.Time) (time.Time, bool)

	// Spec returns a serializable description of this trigger.
	Spec() Spec
}

// OneShot fires exactly once at a fixed instant, then is exhausted.
type OneShot struct {
	at time.Time
}

// NewOneShot creates a trigger that fires once at the given time.
func NewOneShot(at time.Time) (*OneShot, error) {
	if at.IsZero() {
		return nil, fmt.Errorf("%w: one-shot time must be set", ErrInvalidSpec)
	}
	return &OneShot{at: at}, nil
}

// Kind returns KindOneShot.
func (o *OneShot) Kind() Kind { return KindOneShot }

// At returns the configured fire time.
func (o *OneShot) At() time.Time { return o.at }

// Next returns the configured time if it is still in the future of
// after, otherwise reports exhausted.
func (o *OneShot) Next(after time.Time) (time.Time, bool) {
	if o.at.After(after) {
		return o.at, true
	}
	return time.Time{}, false
}

// Spec returns the serializable form.
func (o *OneShot) Spec() Spec {
	at := o.at
	return Spec{Kind: KindOneShot, At: &at}
}

// Interval fires at start, start+period, start+2*period, ... optionally
// capped at an end time (inclusive).
type Interval struct {
	start  time.Time
	period time.Duration
	end    *time.Time
}

// IntervalOption configures an Interval trigger.
type IntervalOption func(*Interval)

// WithEnd caps the interval series at the given time (inclusive).
func WithEnd(end time.Time) IntervalOption {
	return func(i *Interval) {
		e := end
		i.end = &e
	}
}

// NewInterval creates a trigger firing every period starting at start.
func NewInterval(start time.Time, period time.Duration, opts ...IntervalOption) (*Interval, error) {
	if start.IsZero() {
		return nil, fmt.Errorf("%w: interval start must be set", ErrInvalidSpec)
	}
	if period <= 0 {
		return nil, fmt.Errorf("%w: interval period must be positive, got %s", ErrInvalidSpec, period)
	}

	i := &Interval{start: start, period: period}
	for _, opt := range opts {
		opt(i)
	}

	if i.end != nil && i.end.Before(i.start) {
		return nil, fmt.Errorf("%w: interval end %s precedes start %s", ErrInvalidSpec, i.end, i.start)
	}
	return i, nil
}

// Kind returns KindInterval.
func (i *Interval) Kind() Kind { return KindInterval }

// Period returns the configured period.
func (i *Interval) Period() time.Duration { return i.period }

// Next returns the smallest start + k*period strictly after the given
// time, for integer k >= 0, capped at the end time if one is set.
func (i *Interval) Next(after time.Time) (time.Time, bool) {
	var next time.Time
	if after.Before(i.start) {
		next = i.start
	} else {
		k := after.Sub(i.start)/i.period + 1
		next = i.start.Add(k * i.period)
	}

	if i.end != nil && next.After(*i.end) {
		return time.Time{}, false
	}
	return next, true
}

// Spec returns the serializable form.
func (i *Interval) Spec() Spec {
	start := i.start
	s := Spec{Kind: KindInterval, Start: &start, Period: i.period}
	if i.end != nil {
		e := *i.end
		s.End = &e
	}
	return s
}
