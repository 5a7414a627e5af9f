package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/gate"
)

// ProgressStore is an in-memory gate.ProgressStore. Each quiz has its own lock so unrelated
// quizzes never contend; the outer lock only guards the quiz map itself.
type ProgressStore struct {
	mu      sync.RWMutex
	quizzes map[string]*quizProgress
}

type quizProgress struct {
	mu       sync.Mutex
	points   []int
	progress map[string]int
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{quizzes: make(map[string]*quizProgress)}
}

func (s *ProgressStore) quiz(quizID string) *quizProgress {
	s.mu.RLock()
	q, ok := s.quizzes[quizID]
	s.mu.RUnlock()
	if ok {
		return q
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.quizzes[quizID]; ok {
		return q
	}
	q = &quizProgress{progress: make(map[string]int)}
	s.quizzes[quizID] = q
	return q
}

func (s *ProgressStore) RecordProgress(_ context.Context, quizID, participantID string, questionNumber int) (int, error) {
	q := s.quiz(quizID)
	q.mu.Lock()
	defer q.mu.Unlock()
	if questionNumber > q.progress[participantID] {
		q.progress[participantID] = questionNumber
	}
	return q.progress[participantID], nil
}

func (s *ProgressStore) Progress(_ context.Context, quizID, participantID string) (int, error) {
	q := s.quiz(quizID)
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.progress[participantID], nil
}

func (s *ProgressStore) AllProgress(_ context.Context, quizID string) (map[string]int, error) {
	q := s.quiz(quizID)
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]int, len(q.progress))
	for id, n := range q.progress {
		out[id] = n
	}
	return out, nil
}

func (s *ProgressStore) SetPausePoints(_ context.Context, quizID string, points []int) error {
	q := s.quiz(quizID)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.points = append([]int(nil), points...)
	return nil
}

func (s *ProgressStore) PausePoints(_ context.Context, quizID string) ([]int, error) {
	q := s.quiz(quizID)
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]int{}, q.points...), nil
}

func (s *ProgressStore) ClearPausePoints(_ context.Context, quizID string) error {
	q := s.quiz(quizID)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.points = nil
	return nil
}

func (s *ProgressStore) Snapshot(_ context.Context, quizID, participantID string) (gate.Snapshot, error) {
	q := s.quiz(quizID)
	q.mu.Lock()
	defer q.mu.Unlock()
	return gate.Snapshot{
		PausePoints: append([]int(nil), q.points...),
		Progress:    q.progress[participantID],
	}, nil
}

func (s *ProgressStore) ResetQuiz(_ context.Context, quizID string) error {
	q := s.quiz(quizID)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.points = nil
	q.progress = make(map[string]int)
	return nil
}
