package memory

import (
	"testing"
	"time"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStoreWithClock(func() time.Time { return time.Unix(0, 0) })

	session := store.GetOrCreate("quiz-1")
	if session == nil {
		t.Fatalf("expected session")
	}
	if again := store.GetOrCreate("quiz-1"); again != session {
		t.Fatalf("expected the same session on second call")
	}
	if got, ok := store.Get("quiz-1"); !ok || got != session {
		t.Fatalf("expected Get to return the created session")
	}

	store.DeleteIfEmpty("quiz-1")
	if _, ok := store.Get("quiz-1"); ok {
		t.Fatalf("expected session removed when empty")
	}
	store.DeleteIfEmpty("quiz-unknown")
}
