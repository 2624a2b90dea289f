package trigger

import (
	"fmt"
	"time"
)

// Spec is the serializable description of a trigger, suitable for JSON
// persistence. Build reconstructs the trigger, re-running all
// construction-time validation.
type Spec struct {
	Kind Kind `json:"kind"`

	// One-shot.
	At *time.Time `json:"at,omitempty"`

	// Interval.
	Start  *time.Time    `json:"start,omitempty"`
	Period time.Duration `json:"period,omitempty"`
	End    *time.Time    `json:"end,omitempty"`

	// Calendar.
	Expr     string `json:"expr,omitempty"`
	Location string `json:"location,omitempty"`
}

// Build reconstructs a Trigger from the spec.
func (s Spec) Build() (Trigger, error) {
	switch s.Kind {
	case KindOneShot:
		if s.At == nil {
			return nil, fmt.Errorf("%w: one-shot spec missing at", ErrInvalidSpec)
		}
		return NewOneShot(*s.At)

	case KindInterval:
		if s.Start == nil {
			return nil, fmt.Errorf("%w: interval spec missing start", ErrInvalidSpec)
		}
		var opts []IntervalOption
		if s.End != nil {
			opts = append(opts, WithEnd(*s.End))
		}
		return NewInterval(*s.Start, s.Period, opts...)

	case KindCalendar:
		loc := time.Local
		if s.Location != "" {
			var err error
			loc, err = time.LoadLocation(s.Location)
			if err != nil {
				return nil, fmt.Errorf("%w: load location %q: %v", ErrInvalidSpec, s.Location, err)
			}
		}
		return NewCalendar(s.Expr, loc)

	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSpec, s.Kind)
	}
}
