package trigger

import (
	"fmt"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// calendarParser supports standard 5-field cron and descriptors like
// "@hourly" or "@every 30s".
var calendarParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// probeReference seeds the construction-time monotonicity probe. A fixed
// instant keeps the trigger package free of wall-clock reads.
var probeReference = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Calendar fires on a cron-style recurrence evaluated in a fixed
// timezone. Nonexistent local times (spring-forward) are skipped to the
// next valid instant and ambiguous local times (fall-back) resolve to
// the first occurrence; both behaviors come from the underlying cron
// schedule arithmetic.
type Calendar struct {
	expr  string
	loc   *time.Location
	sched cronlib.Schedule
}

// NewCalendar parses a cron expression and creates a calendar trigger
// evaluated in loc. A nil loc means time.Local.
//
// Construction runs a monotonicity probe: two successive evaluations of
// the schedule must strictly advance. A rule that could yield the same
// instant twice is rejected here, never at evaluation time.
func NewCalendar(expr string, loc *time.Location) (*Calendar, error) {
	if loc == nil {
		loc = time.Local
	}

	sched, err := calendarParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %q: %v", ErrInvalidSpec, expr, err)
	}

	c := &Calendar{expr: expr, loc: loc, sched: sched}

	first, ok := c.Next(probeReference.In(loc))
	if ok {
		second, ok2 := c.Next(first)
		if ok2 && !second.After(first) {
			return nil, fmt.Errorf("%w: %q does not strictly advance (%s twice)", ErrInvalidSpec, expr, first)
		}
	}

	return c, nil
}

// Kind returns KindCalendar.
func (c *Calendar) Kind() Kind { return KindCalendar }

// Expr returns the cron expression.
func (c *Calendar) Expr() string { return c.expr }

// Location returns the timezone the recurrence is evaluated in.
func (c *Calendar) Location() *time.Location { return c.loc }

// Next returns the next instant matching the recurrence strictly after
// the given time. Reports exhausted when the schedule has no further
// occurrence in its search horizon.
func (c *Calendar) Next(after time.Time) (time.Time, bool) {
	next := c.sched.Next(after.In(c.loc))
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// Spec returns the serializable form.
func (c *Calendar) Spec() Spec {
	return Spec{Kind: KindCalendar, Expr: c.expr, Location: c.loc.String()}
}
