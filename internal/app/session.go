package app

import (
	"sort"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/scoring"
)

// Session is the in-memory live view of a running quiz: who is connected, the answers
// accepted so far and the pause points. Subscribers receive a provisional leaderboard on
// every change; the authoritative ranking comes from an evaluation.
type Session struct {
	id           string
	now          func() time.Time
	mu           sync.RWMutex
	quiz         domain.Quiz
	pausePoints  []int
	participants map[string]*domain.Participant
	answers      map[string]map[string]domain.AnswerSubmission
	subscribers  map[chan domain.Leaderboard]struct{}
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id string) *Session {
	return NewSessionWithClock(id, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(id string, now func() time.Time) *Session {
	return &Session{
		id:           id,
		now:          now,
		participants: make(map[string]*domain.Participant),
		answers:      make(map[string]map[string]domain.AnswerSubmission),
		subscribers:  make(map[chan domain.Leaderboard]struct{}),
	}
}

// IsEmpty reports whether the session has no participants.
func (s *Session) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants) == 0
}

func (s *Session) join(quiz domain.Quiz, p domain.Participant, pausePoints []int) domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quiz = quiz
	s.pausePoints = append([]int(nil), pausePoints...)
	if existing, ok := s.participants[p.ID]; ok {
		existing.DisplayName = p.DisplayName
	} else {
		joined := p
		s.participants[p.ID] = &joined
	}
	return s.broadcastLocked()
}

func (s *Session) recordAnswer(answer domain.AnswerSubmission) domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()

	byQuestion, ok := s.answers[answer.ParticipantID]
	if !ok {
		byQuestion = make(map[string]domain.AnswerSubmission)
		s.answers[answer.ParticipantID] = byQuestion
	}
	byQuestion[answer.QuestionID] = answer
	return s.broadcastLocked()
}

func (s *Session) setPausePoints(points []int) domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pausePoints = append([]int(nil), points...)
	return s.broadcastLocked()
}

func (s *Session) reset() domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = make(map[string]map[string]domain.AnswerSubmission)
	s.pausePoints = nil
	return s.broadcastLocked()
}

func (s *Session) leave(participantID string) domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants, participantID)
	return s.broadcastLocked()
}

func (s *Session) snapshot() domain.Leaderboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	// The channel is new and buffered, so the first send cannot block under the lock.
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() domain.Leaderboard {
	lb := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- lb:
		default:
			// Slow subscriber: drop its oldest update so the newest one fits.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- lb:
			default:
			}
		}
	}
	return lb
}

func (s *Session) snapshotLocked() domain.Leaderboard {
	order := make([]string, 0, len(s.participants))
	names := make(map[string]string, len(s.participants))
	for id, p := range s.participants {
		order = append(order, id)
		names[id] = p.DisplayName
	}
	sort.Slice(order, func(i, j int) bool {
		pi, pj := s.participants[order[i]], s.participants[order[j]]
		if !pi.JoinedAt.Equal(pj.JoinedAt) {
			return pi.JoinedAt.Before(pj.JoinedAt)
		}
		return order[i] < order[j]
	})
	// Participants who answered and then left still count.
	var departed []string
	for id := range s.answers {
		if _, ok := s.participants[id]; !ok {
			departed = append(departed, id)
		}
	}
	sort.Strings(departed)
	order = append(order, departed...)

	answers := make(map[string][]domain.AnswerSubmission, len(s.answers))
	for id, byQuestion := range s.answers {
		list := make([]domain.AnswerSubmission, 0, len(byQuestion))
		for _, a := range byQuestion {
			list = append(list, a)
		}
		answers[id] = list
	}

	ranked := scoring.Standings(order, answers, s.quiz)
	return domain.Leaderboard{
		QuizID:      s.id,
		Entries:     scoring.Entries(ranked, names, len(s.quiz.Questions)),
		PausePoints: append([]int{}, s.pausePoints...),
		UpdatedAt:   s.now(),
	}
}
