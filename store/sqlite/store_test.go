package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/store"
	"github.com/xraph/chrono/trigger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chrono.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func calendarSnap(name, expr string) store.Snapshot {
	return store.Snapshot{
		ID:   id.NewJobID(),
		Name: name,
		Trigger: trigger.Spec{
			Kind:     trigger.KindCalendar,
			Expr:     expr,
			Location: "UTC",
		},
		MaxInstances: 2,
		MisfireGrace: 30 * time.Second,
		Timeout:      time.Minute,
		MaxRetries:   3,
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	s := openTestStore(t)

	snaps, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("expected empty store, got %d", len(snaps))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := calendarSnap("nightly", "0 3 * * *")
	want.Paused = true

	if err := s.Save(ctx, []store.Snapshot{want}); err != nil {
		t.Fatalf("save error: %v", err)
	}

	snaps, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}

	got := snaps[0]
	if got.ID.String() != want.ID.String() {
		t.Errorf("id mismatch: %s vs %s", got.ID, want.ID)
	}
	if got.Name != want.Name {
		t.Errorf("name mismatch: %s", got.Name)
	}
	if got.Trigger.Expr != want.Trigger.Expr || got.Trigger.Location != "UTC" {
		t.Errorf("trigger spec mismatch: %+v", got.Trigger)
	}
	if got.MaxInstances != 2 || got.MisfireGrace != 30*time.Second ||
		got.Timeout != time.Minute || got.MaxRetries != 3 || !got.Paused {
		t.Errorf("options mismatch: %+v", got)
	}
	if _, err := got.Trigger.Build(); err != nil {
		t.Errorf("loaded trigger does not rebuild: %v", err)
	}
}

func TestSaveReplacesPreviousSet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, []store.Snapshot{
		calendarSnap("a", "* * * * *"),
		calendarSnap("b", "0 * * * *"),
	}); err != nil {
		t.Fatalf("save error: %v", err)
	}
	if err := s.Save(ctx, []store.Snapshot{calendarSnap("c", "30 2 * * *")}); err != nil {
		t.Fatalf("second save error: %v", err)
	}

	snaps, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Name != "c" {
		t.Fatalf("expected only the replacement set, got %+v", snaps)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chrono.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	want := calendarSnap("durable", "15 4 * * 1")
	if err := s.Save(ctx, []store.Snapshot{want}); err != nil {
		t.Fatalf("save error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close error: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	snaps, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Name != "durable" {
		t.Fatalf("expected persisted snapshot, got %+v", snaps)
	}
}
