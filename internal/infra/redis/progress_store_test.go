package redis

import (
	"context"
	"errors"
	"sync"
	"testing"

	"live-quiz-service/internal/domain"
)

func TestProgressStoreRecordsMaximum(t *testing.T) {
	mr := newMiniredis(t)
	store := NewProgressStore(newClient(mr))
	ctx := context.Background()

	if got, _ := store.Progress(ctx, "quiz-1", "u1"); got != 0 {
		t.Fatalf("expected 0 before any answer, got %d", got)
	}
	for _, tc := range []struct{ in, want int }{{3, 3}, {1, 3}, {3, 3}, {7, 7}, {5, 7}} {
		got, err := store.RecordProgress(ctx, "quiz-1", "u1", tc.in)
		if err != nil {
			t.Fatalf("record %d: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("record %d returned %d, want %d", tc.in, got, tc.want)
		}
	}
	if v := mr.HGet("quiz:quiz-1:progress", "u1"); v != "7" {
		t.Fatalf("unexpected stored value %q", v)
	}

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = store.RecordProgress(ctx, "quiz-1", "u2", n)
		}(i)
	}
	wg.Wait()
	all, err := store.AllProgress(ctx, "quiz-1")
	if err != nil || all["u1"] != 7 || all["u2"] != 20 {
		t.Fatalf("unexpected progress %v, %v", all, err)
	}
}

func TestProgressStorePausePointsAndSnapshot(t *testing.T) {
	mr := newMiniredis(t)
	store := NewProgressStore(newClient(mr))
	ctx := context.Background()

	if err := store.SetPausePoints(ctx, "quiz-1", []int{10, 3}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.SetPausePoints(ctx, "quiz-1", []int{4, 8}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	points, err := store.PausePoints(ctx, "quiz-1")
	if err != nil || len(points) != 2 || points[0] != 4 || points[1] != 8 {
		t.Fatalf("expected [4 8], got %v, %v", points, err)
	}

	snap, err := store.Snapshot(ctx, "quiz-1", "nobody")
	if err != nil || snap.Progress != 0 || len(snap.PausePoints) != 2 {
		t.Fatalf("unexpected snapshot %+v, %v", snap, err)
	}
	_, _ = store.RecordProgress(ctx, "quiz-1", "u1", 2)
	snap, err = store.Snapshot(ctx, "quiz-1", "u1")
	if err != nil || snap.Progress != 2 {
		t.Fatalf("unexpected snapshot %+v, %v", snap, err)
	}

	if err := store.ClearPausePoints(ctx, "quiz-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ := store.Progress(ctx, "quiz-1", "u1"); got != 2 {
		t.Fatalf("clear touched progress: %d", got)
	}

	_ = store.SetPausePoints(ctx, "quiz-1", []int{5})
	if err := store.ResetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if mr.Exists("quiz:quiz-1:pauses") || mr.Exists("quiz:quiz-1:progress") {
		t.Fatalf("reset left keys behind")
	}
}

func TestProgressStoreReportsUnavailable(t *testing.T) {
	mr := newMiniredis(t)
	store := NewProgressStore(newClient(mr))
	mr.Close()

	if _, err := store.RecordProgress(context.Background(), "quiz-1", "u1", 1); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	if _, err := store.Snapshot(context.Background(), "quiz-1", "u1"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}
