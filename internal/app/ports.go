package app

import (
	"context"

	"live-quiz-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (e.g., document DB).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizCache is implemented by repositories that cache content; Reload drops the entry.
type QuizCache interface {
	Invalidate(ctx context.Context, quizID string) error
}

// SessionRepository abstracts how live quiz sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	GetOrCreate(quizID string) *Session
	Get(quizID string) (*Session, bool)
	DeleteIfEmpty(quizID string)
}

// AnswerStore persists answers keyed by (participant, quiz, question). UpsertAnswer
// replaces an existing answer with the same key instead of adding a second one.
type AnswerStore interface {
	UpsertAnswer(ctx context.Context, answer domain.AnswerSubmission) error
	Answers(ctx context.Context, quizID string) ([]domain.AnswerSubmission, error)
}

// ParticipantDirectory resolves participant identities and display names.
type ParticipantDirectory interface {
	RegisterParticipant(ctx context.Context, quizID string, p domain.Participant) (domain.Participant, error)
	Participants(ctx context.Context, quizID string) ([]domain.Participant, error)
}

// QuizStateStore holds the lifecycle flags of a quiz.
type QuizStateStore interface {
	QuizState(ctx context.Context, quizID string) (domain.QuizState, error)
	SaveQuizState(ctx context.Context, state domain.QuizState) error
}

// ReportStore persists evaluations. CommitEvaluation replaces the previous report and marks
// the quiz inactive in one atomic step; ResetQuiz deletes answers and reports and returns
// the quiz to its inactive start state, also atomically.
type ReportStore interface {
	CommitEvaluation(ctx context.Context, report domain.LeaderboardReport) error
	LatestReport(ctx context.Context, quizID string) (domain.LeaderboardReport, error)
	ResetQuiz(ctx context.Context, quizID string) error
}

// Store is the durable side of the service.
type Store interface {
	AnswerStore
	ParticipantDirectory
	QuizStateStore
	ReportStore
}
