package clock_test

import (
	"testing"
	"time"

	"github.com/xraph/chrono/clock"
)

func TestManualNow(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := clock.NewManual(start)

	if !c.Now().Equal(start) {
		t.Fatalf("expected %v, got %v", start, c.Now())
	}

	c.Advance(90 * time.Second)
	want := start.Add(90 * time.Second)
	if !c.Now().Equal(want) {
		t.Fatalf("expected %v, got %v", want, c.Now())
	}
}

func TestManualTimerFiresOnAdvance(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := clock.NewManual(start)

	timer := c.NewTimer(time.Minute)

	select {
	case <-timer.C():
		t.Fatal("timer fired before deadline")
	default:
	}

	c.Advance(time.Minute)

	select {
	case fired := <-timer.C():
		if !fired.Equal(start.Add(time.Minute)) {
			t.Errorf("expected fire at %v, got %v", start.Add(time.Minute), fired)
		}
	default:
		t.Fatal("timer did not fire at deadline")
	}
}

func TestManualTimerImmediate(t *testing.T) {
	c := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	timer := c.NewTimer(0)

	select {
	case <-timer.C():
	default:
		t.Fatal("non-positive timer should fire immediately")
	}
}

func TestManualTimerStop(t *testing.T) {
	c := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	timer := c.NewTimer(time.Minute)
	if !timer.Stop() {
		t.Fatal("expected Stop to report true for pending timer")
	}

	c.Advance(2 * time.Minute)

	select {
	case <-timer.C():
		t.Fatal("stopped timer fired")
	default:
	}

	if timer.Stop() {
		t.Error("second Stop should report false")
	}
}

func TestManualSetNeverMovesBackward(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := clock.NewManual(start)

	c.Set(start.Add(-time.Hour))
	if !c.Now().Equal(start) {
		t.Fatalf("Set moved time backward to %v", c.Now())
	}

	c.Set(start.Add(time.Hour))
	if !c.Now().Equal(start.Add(time.Hour)) {
		t.Fatalf("Set did not advance, now %v", c.Now())
	}
}

func TestRealTimer(t *testing.T) {
	c := clock.NewReal()

	timer := c.NewTimer(5 * time.Millisecond)
	select {
	case <-timer.C():
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
}
