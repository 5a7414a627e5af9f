package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

type answerKey struct {
	participantID string
	questionID    string
}

type quizRecords struct {
	state        domain.QuizState
	answers      map[answerKey]domain.AnswerSubmission
	participants map[string]domain.Participant
	report       *domain.LeaderboardReport
}

// Store keeps answers, participants, quiz lifecycle state and leaderboard reports in
// memory. It satisfies the same contracts as the Postgres store and is used for local runs
// and tests.
type Store struct {
	mu      sync.RWMutex
	clock   func() time.Time
	quizzes map[string]*quizRecords
}

func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock allows deterministic timestamps in tests.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{clock: now, quizzes: make(map[string]*quizRecords)}
}

// records must be called with mu held for writing.
func (s *Store) records(quizID string) *quizRecords {
	r, ok := s.quizzes[quizID]
	if !ok {
		r = &quizRecords{
			state:        domain.QuizState{QuizID: quizID, CreatedAt: s.clock()},
			answers:      make(map[answerKey]domain.AnswerSubmission),
			participants: make(map[string]domain.Participant),
		}
		s.quizzes[quizID] = r
	}
	return r
}

func (s *Store) UpsertAnswer(_ context.Context, answer domain.AnswerSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.records(answer.QuizID)
	if answer.SelectedOption != nil {
		selected := *answer.SelectedOption
		answer.SelectedOption = &selected
	}
	r.answers[answerKey{answer.ParticipantID, answer.QuestionID}] = answer
	return nil
}

// Answers returns the stored answers ordered by submission time, then participant and
// question, so repeated reads see the same order.
func (s *Store) Answers(_ context.Context, quizID string) ([]domain.AnswerSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.quizzes[quizID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.AnswerSubmission, 0, len(r.answers))
	for _, a := range r.answers {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		if out[i].ParticipantID != out[j].ParticipantID {
			return out[i].ParticipantID < out[j].ParticipantID
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out, nil
}

func (s *Store) RegisterParticipant(_ context.Context, quizID string, p domain.Participant) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.records(quizID)
	if existing, ok := r.participants[p.ID]; ok {
		existing.DisplayName = p.DisplayName
		r.participants[p.ID] = existing
		return existing, nil
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = s.clock()
	}
	r.participants[p.ID] = p
	return p, nil
}

// Participants returns the quiz participants in join order.
func (s *Store) Participants(_ context.Context, quizID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.quizzes[quizID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) QuizState(_ context.Context, quizID string) (domain.QuizState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records(quizID).state, nil
}

func (s *Store) SaveQuizState(_ context.Context, state domain.QuizState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records(state.QuizID).state = state
	return nil
}

func (s *Store) CommitEvaluation(_ context.Context, report domain.LeaderboardReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.records(report.QuizID)
	stored := report
	stored.Entries = append([]domain.LeaderboardEntry(nil), report.Entries...)
	r.report = &stored
	r.state.Active = false
	return nil
}

func (s *Store) LatestReport(_ context.Context, quizID string) (domain.LeaderboardReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.quizzes[quizID]
	if !ok || r.report == nil {
		return domain.LeaderboardReport{}, domain.ErrReportNotFound
	}
	return *r.report, nil
}

func (s *Store) ResetQuiz(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.records(quizID)
	r.answers = make(map[answerKey]domain.AnswerSubmission)
	r.report = nil
	r.state.Active = false
	r.state.StartedAt = nil
	return nil
}
