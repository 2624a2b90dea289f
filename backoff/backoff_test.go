package backoff_test

import (
	"testing"
	"time"

	"github.com/xraph/chrono/backoff"
)

func TestNone(t *testing.T) {
	s := backoff.NewNone()
	for attempt := 1; attempt <= 5; attempt++ {
		if d := s.Delay(attempt); d != 0 {
			t.Errorf("attempt %d: expected 0, got %s", attempt, d)
		}
	}
}

func TestFixed(t *testing.T) {
	s := backoff.NewFixed(5 * time.Second)
	for attempt := 1; attempt <= 5; attempt++ {
		if d := s.Delay(attempt); d != 5*time.Second {
			t.Errorf("attempt %d: expected 5s, got %s", attempt, d)
		}
	}
}

func TestExponential(t *testing.T) {
	s := backoff.NewExponential(time.Second, time.Minute)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{7, 64 * time.Second}, // capped below
	}

	for _, tt := range tests {
		got := s.Delay(tt.attempt)
		want := tt.want
		if want > time.Minute {
			want = time.Minute
		}
		if got != want {
			t.Errorf("attempt %d: expected %s, got %s", tt.attempt, want, got)
		}
	}
}

func TestExponentialCap(t *testing.T) {
	s := backoff.NewExponential(time.Second, 10*time.Second)
	if d := s.Delay(30); d != 10*time.Second {
		t.Errorf("expected cap at 10s, got %s", d)
	}
}

func TestExponentialWithJitterBounds(t *testing.T) {
	s := backoff.NewExponentialWithJitter(time.Second, time.Minute)

	for attempt := 1; attempt <= 6; attempt++ {
		bound := time.Duration(1<<uint(attempt-1)) * time.Second
		if bound > time.Minute {
			bound = time.Minute
		}
		for range 50 {
			d := s.Delay(attempt)
			if d < 0 || d >= bound {
				t.Fatalf("attempt %d: delay %s outside [0, %s)", attempt, d, bound)
			}
		}
	}
}

func TestDelayClampsBadAttempt(t *testing.T) {
	s := backoff.NewExponential(time.Second, time.Minute)
	if d := s.Delay(0); d != time.Second {
		t.Errorf("attempt 0 should clamp to 1, got %s", d)
	}
}
