package memory

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/store"
	"github.com/xraph/chrono/trigger"
)

func intervalSnap(name string) store.Snapshot {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return store.Snapshot{
		ID:   id.NewJobID(),
		Name: name,
		Trigger: trigger.Spec{
			Kind:   trigger.KindInterval,
			Start:  &start,
			Period: time.Minute,
		},
		MaxInstances: 1,
		MisfireGrace: time.Minute,
	}
}

func TestLoadEmpty(t *testing.T) {
	t.Parallel()

	snaps, err := New().Load(context.Background())
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("expected empty, got %d", len(snaps))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	a := intervalSnap("a")
	b := intervalSnap("b")
	b.Paused = true

	if err := s.Save(ctx, []store.Snapshot{a, b}); err != nil {
		t.Fatalf("save error: %v", err)
	}

	snaps, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	for _, snap := range snaps {
		if _, err := snap.Trigger.Build(); err != nil {
			t.Errorf("snapshot %s trigger does not rebuild: %v", snap.Name, err)
		}
	}
}

func TestSaveReplaces(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	if err := s.Save(ctx, []store.Snapshot{intervalSnap("old")}); err != nil {
		t.Fatalf("save error: %v", err)
	}
	replacement := intervalSnap("new")
	if err := s.Save(ctx, []store.Snapshot{replacement}); err != nil {
		t.Fatalf("second save error: %v", err)
	}

	snaps, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Name != "new" {
		t.Fatalf("expected only the replacement, got %+v", snaps)
	}
}

func TestClose(t *testing.T) {
	t.Parallel()

	if err := New().Close(); err != nil {
		t.Fatalf("close error: %v", err)
	}
}
