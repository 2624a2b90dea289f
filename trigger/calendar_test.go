package trigger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/chrono/trigger"
)

func TestCalendarNext(t *testing.T) {
	tr, err := trigger.NewCalendar("30 9 * * *", time.UTC)
	if err != nil {
		t.Fatalf("construct error: %v", err)
	}

	after := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	next, ok := tr.Next(after)
	if !ok {
		t.Fatal("expected an occurrence")
	}
	want := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}

	// Strictly after: same-day 09:30 reference rolls to the next day.
	next, ok = tr.Next(want)
	if !ok {
		t.Fatal("expected an occurrence")
	}
	if !next.Equal(want.AddDate(0, 0, 1)) {
		t.Errorf("expected next day, got %v", next)
	}
}

func TestCalendarTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone database unavailable: %v", err)
	}

	tr, err := trigger.NewCalendar("0 9 * * *", loc)
	if err != nil {
		t.Fatalf("construct error: %v", err)
	}

	after := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	next, ok := tr.Next(after)
	if !ok {
		t.Fatal("expected an occurrence")
	}

	localNext := next.In(loc)
	if localNext.Hour() != 9 || localNext.Minute() != 0 {
		t.Errorf("expected 09:00 local, got %v", localNext)
	}
}

func TestCalendarSpringForwardGap(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone database unavailable: %v", err)
	}

	// 2025-03-09: clocks jump from 02:00 to 03:00 EST→EDT. A daily
	// 02:30 rule has no valid instant that day; the occurrence must be
	// skipped forward, never dropped into a nonexistent local time.
	tr, err := trigger.NewCalendar("30 2 * * *", loc)
	if err != nil {
		t.Fatalf("construct error: %v", err)
	}

	after := time.Date(2025, 3, 9, 1, 0, 0, 0, loc)
	next, ok := tr.Next(after)
	if !ok {
		t.Fatal("expected an occurrence")
	}

	localNext := next.In(loc)
	if localNext.Day() == 9 && localNext.Hour() == 2 {
		t.Errorf("fired inside the DST gap: %v", localNext)
	}
	if !next.After(after) {
		t.Errorf("next %v not after %v", next, after)
	}
}

func TestCalendarEveryDescriptor(t *testing.T) {
	tr, err := trigger.NewCalendar("@every 30s", time.UTC)
	if err != nil {
		t.Fatalf("construct error: %v", err)
	}

	after := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	next, ok := tr.Next(after)
	if !ok {
		t.Fatal("expected an occurrence")
	}
	if got := next.Sub(after); got != 30*time.Second {
		t.Errorf("expected +30s, got +%s", got)
	}
}

func TestCalendarRejectsMalformedExpr(t *testing.T) {
	for _, expr := range []string{"", "not a cron", "61 * * * *", "* * * *"} {
		if _, err := trigger.NewCalendar(expr, time.UTC); !errors.Is(err, trigger.ErrInvalidSpec) {
			t.Errorf("%q: expected ErrInvalidSpec, got %v", expr, err)
		}
	}
}

func TestCalendarNilLocationDefaultsLocal(t *testing.T) {
	tr, err := trigger.NewCalendar("0 * * * *", nil)
	if err != nil {
		t.Fatalf("construct error: %v", err)
	}
	if tr.Location() != time.Local {
		t.Errorf("expected time.Local, got %v", tr.Location())
	}
}

func TestCalendarConstructionDeterministic(t *testing.T) {
	// Construction must not depend on the wall clock: two triggers built
	// at different moments agree on every evaluation.
	first, err := trigger.NewCalendar("30 4 * * 1", time.UTC)
	if err != nil {
		t.Fatalf("construct error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := trigger.NewCalendar("30 4 * * 1", time.UTC)
	if err != nil {
		t.Fatalf("second construct error: %v", err)
	}

	after := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	for range 5 {
		a, aok := first.Next(after)
		b, bok := second.Next(after)
		if aok != bok || !a.Equal(b) {
			t.Fatalf("evaluations diverge: %v/%v vs %v/%v", a, aok, b, bok)
		}
		after = a
	}
}

func TestCalendarSparseScheduleConstructs(t *testing.T) {
	// Leap day: the construction-time self-check has to walk years ahead.
	tr, err := trigger.NewCalendar("0 0 29 2 *", time.UTC)
	if err != nil {
		t.Fatalf("construct error: %v", err)
	}

	next, ok := tr.Next(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatal("expected a next occurrence")
	}
	want := time.Date(2028, time.February, 29, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}
