package gate_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/gate"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/metrics"
)

func newTracker(t *testing.T) (*gate.Tracker, *metrics.Metrics) {
	t.Helper()
	quiz := domain.Quiz{ID: "quiz-1"}
	for _, id := range []string{"q1", "q2", "q3", "q4", "q5", "q6", "q7", "q8"} {
		quiz.Questions = append(quiz.Questions, domain.Question{ID: id, Options: []string{"a", "b"}})
	}
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": quiz}), time.Minute)
	m := metrics.New(prometheus.NewRegistry())
	return gate.NewTracker(memory.NewProgressStore(), repo, nil, m), m
}

func TestCanAnswerBeforeAndAfterClearing(t *testing.T) {
	ctx := context.Background()
	tracker, m := newTracker(t)

	if _, err := tracker.RecordProgress(ctx, "quiz-1", "p", 4); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := tracker.SetPausePoints(ctx, "quiz-1", []int{5}); err != nil {
		t.Fatalf("set pause points: %v", err)
	}
	if paused, _ := tracker.IsPaused(ctx, "quiz-1"); !paused {
		t.Fatalf("expected paused quiz")
	}

	want := map[int]bool{4: true, 5: false, 6: false}
	for n, allowed := range want {
		d, err := tracker.CanAnswer(ctx, "quiz-1", "p", n)
		if err != nil {
			t.Fatalf("can answer %d: %v", n, err)
		}
		if d.Allowed != allowed {
			t.Fatalf("question %d: allowed=%v, want %v (%+v)", n, d.Allowed, allowed, d)
		}
	}
	if got := testutil.ToFloat64(m.GateDecisions.WithLabelValues("blocked", string(domain.ReasonPausePending))); got != 1 {
		t.Fatalf("expected one pending block counted, got %v", got)
	}

	if err := tracker.ClearPausePoints(ctx, "quiz-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	for n := range want {
		d, err := tracker.CanAnswer(ctx, "quiz-1", "p", n)
		if err != nil || !d.Allowed {
			t.Fatalf("question %d after clear: %+v, %v", n, d, err)
		}
	}
	if p, _ := tracker.Progress(ctx, "quiz-1", "p"); p != 4 {
		t.Fatalf("clearing changed progress to %d", p)
	}
	if paused, _ := tracker.IsPaused(ctx, "quiz-1"); paused {
		t.Fatalf("expected unpaused quiz")
	}
}

func TestRecordProgressIsMonotonicAndIdempotent(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTracker(t)

	for _, n := range []int{3, 3, 1, 6, 2} {
		if _, err := tracker.RecordProgress(ctx, "quiz-1", "p", n); err != nil {
			t.Fatalf("record %d: %v", n, err)
		}
	}
	if p, _ := tracker.Progress(ctx, "quiz-1", "p"); p != 6 {
		t.Fatalf("expected 6, got %d", p)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = tracker.RecordProgress(ctx, "quiz-1", "q", n%8+1)
		}(i)
	}
	wg.Wait()
	if p, _ := tracker.Progress(ctx, "quiz-1", "q"); p != 8 {
		t.Fatalf("concurrent records should converge to 8, got %d", p)
	}
}

func TestTrackerRejectsMalformedInput(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTracker(t)

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"empty quiz id", func() error { _, err := tracker.CanAnswer(ctx, "", "p", 1); return err }, domain.ErrInvalidInput},
		{"empty participant", func() error { _, err := tracker.CanAnswer(ctx, "quiz-1", " ", 1); return err }, domain.ErrInvalidInput},
		{"zero question", func() error { _, err := tracker.RecordProgress(ctx, "quiz-1", "p", 0); return err }, domain.ErrInvalidInput},
		{"beyond quiz length", func() error { _, err := tracker.RecordProgress(ctx, "quiz-1", "p", 9); return err }, domain.ErrInvalidInput},
		{"unknown quiz", func() error { _, err := tracker.CanAnswer(ctx, "quiz-x", "p", 1); return err }, domain.ErrNotFound},
		{"negative pause point", func() error { _, err := tracker.SetPausePoints(ctx, "quiz-1", []int{2, -1}); return err }, domain.ErrInvalidInput},
		{"duplicate pause point", func() error { _, err := tracker.SetPausePoints(ctx, "quiz-1", []int{2, 2}); return err }, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if p, _ := tracker.Progress(ctx, "quiz-1", "p"); p != 0 {
		t.Fatalf("rejected calls recorded progress %d", p)
	}
	if points, _ := tracker.PausePoints(ctx, "quiz-1"); len(points) != 0 {
		t.Fatalf("rejected calls stored pause points %v", points)
	}
}

func TestSetPausePointsOverwritesSorted(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTracker(t)

	_, _ = tracker.SetPausePoints(ctx, "quiz-1", []int{2, 7})
	stored, err := tracker.SetPausePoints(ctx, "quiz-1", []int{6, 4})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	points, _ := tracker.PausePoints(ctx, "quiz-1")
	if len(points) != 2 || points[0] != 4 || points[1] != 6 || stored[0] != 4 {
		t.Fatalf("expected full overwrite [4 6], got %v", points)
	}
}

func TestSaveAndRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTracker(t)

	if _, err := tracker.SetPausePoints(ctx, "quiz-1", []int{3}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := tracker.RecordProgress(ctx, "quiz-1", "u1", 2); err != nil {
		t.Fatalf("record: %v", err)
	}
	saved, err := tracker.Save(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := tracker.Reset(ctx, "quiz-1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := tracker.Restore(ctx, "quiz-1", saved); err != nil {
		t.Fatalf("restore: %v", err)
	}

	points, _ := tracker.PausePoints(ctx, "quiz-1")
	if len(points) != 1 || points[0] != 3 {
		t.Fatalf("expected pause points [3], got %v", points)
	}
	if p, _ := tracker.Progress(ctx, "quiz-1", "u1"); p != 2 {
		t.Fatalf("expected progress 2, got %d", p)
	}
}
