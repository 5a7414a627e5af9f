package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/gate"
	"live-quiz-service/internal/metrics"
	"live-quiz-service/internal/scoring"
)

var tracer = otel.Tracer("live-quiz-service/internal/app")

// QuizService contains the core quiz use cases: joining, answering under the gate,
// lifecycle changes and evaluation.
type QuizService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	store    Store
	gate     *gate.Tracker
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewQuizService(sessions SessionRepository, quizzes QuizRepository, store Store, tracker *gate.Tracker, logger *zap.Logger, m *metrics.Metrics) *QuizService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{
		sessions: sessions,
		quizzes:  quizzes,
		store:    store,
		gate:     tracker,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// WithClock replaces the service clock; tests use it for deterministic timestamps.
func (s *QuizService) WithClock(now func() time.Time) *QuizService {
	s.now = now
	return s
}

// Join registers or refreshes a participant and attaches them to the live session.
func (s *QuizService) Join(ctx context.Context, quizID, participantID, displayName string) (domain.Leaderboard, error) {
	if err := requireIDs(quizID, participantID); err != nil {
		return domain.Leaderboard{}, err
	}
	// Users cannot join unknown quizzes; this also warms the content cache.
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = participantID
	}

	p, err := s.store.RegisterParticipant(ctx, quizID, domain.Participant{
		ID:          participantID,
		DisplayName: displayName,
		ShortID:     shortID(),
		JoinedAt:    s.now(),
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	points, err := s.gate.PausePoints(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	session := s.sessions.GetOrCreate(quizID)
	lb := session.join(quiz, p, points)
	s.logger.Info("participant joined",
		zap.String("quizId", quizID),
		zap.String("participantId", participantID),
		zap.String("shortId", p.ShortID),
	)
	return lb, nil
}

// CanAnswer exposes the gate decision without submitting anything.
func (s *QuizService) CanAnswer(ctx context.Context, quizID, participantID string, questionNumber int) (domain.Decision, error) {
	return s.gate.CanAnswer(ctx, quizID, participantID, questionNumber)
}

// SubmitAnswer validates the submission, asks the gate, persists the answer and only then
// advances the participant's progress. A gate rejection is returned as *domain.BlockedError.
func (s *QuizService) SubmitAnswer(ctx context.Context, quizID, participantID string, submission domain.AnswerSubmission) (result domain.AnswerResult, err error) {
	ctx, span := tracer.Start(ctx, "QuizService.SubmitAnswer", trace.WithAttributes(
		attribute.String("quiz.id", quizID),
		attribute.String("participant.id", participantID),
	))
	defer func() { endSpan(span, err) }()

	if err := requireIDs(quizID, participantID); err != nil {
		return domain.AnswerResult{}, err
	}
	if strings.TrimSpace(submission.QuestionID) == "" {
		return domain.AnswerResult{}, domain.InvalidInput("question id is required")
	}
	if submission.ResponseTimeMs < 0 {
		return domain.AnswerResult{}, domain.InvalidInput("response time %d must not be negative", submission.ResponseTimeMs)
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	number, ok := quiz.QuestionNumber(submission.QuestionID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrQuestionNotFound
	}
	question := quiz.Questions[number-1]
	if sel := submission.SelectedOption; sel != nil && (*sel < 0 || *sel >= len(question.Options)) {
		return domain.AnswerResult{}, domain.InvalidInput("option %d out of range for question %s", *sel, question.ID)
	}

	state, err := s.store.QuizState(ctx, quizID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if !state.Active || state.Deactivated {
		s.metrics.ObserveDecision(false, string(domain.ReasonQuizInactive))
		return domain.AnswerResult{}, &domain.BlockedError{Decision: domain.Decision{
			Reason:         domain.ReasonQuizInactive,
			Message:        "quiz is not accepting answers",
			QuestionNumber: number,
		}}
	}

	decision, err := s.gate.CanAnswer(ctx, quizID, participantID, number)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if !decision.Allowed {
		return domain.AnswerResult{}, &domain.BlockedError{Decision: decision}
	}

	submission.ParticipantID = participantID
	submission.QuizID = quizID
	submission.QuestionNumber = number
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = s.now()
	}
	if submission.QuestionStartedAt.IsZero() {
		submission.QuestionStartedAt = submission.SubmittedAt.Add(-time.Duration(submission.ResponseTimeMs) * time.Millisecond)
	}
	if err := s.store.UpsertAnswer(ctx, submission); err != nil {
		return domain.AnswerResult{}, err
	}
	progress, err := s.gate.RecordProgress(ctx, quizID, participantID, number)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	s.metrics.AnswerAccepted()

	if session, ok := s.sessions.Get(quizID); ok {
		session.recordAnswer(submission)
	}

	awarded := scoring.ScoreAnswer(submission.SelectedOption, question.CorrectAnswers, submission.ResponseTimeMs, quiz.TimeLimitMs())
	return domain.AnswerResult{
		QuestionID:     question.ID,
		QuestionNumber: number,
		Correct:        awarded > 0,
		Awarded:        awarded,
		Progress:       progress,
	}, nil
}

// Subscribe returns a channel that receives leaderboard updates for a quiz.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, quizID string) (<-chan domain.Leaderboard, func(), error) {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Live returns the current provisional leaderboard of the live session.
func (s *QuizService) Live(_ context.Context, quizID string) (domain.Leaderboard, error) {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return domain.Leaderboard{}, domain.ErrSessionNotFound
	}
	return session.snapshot(), nil
}

// Leave removes a participant from the session and drops the session if empty.
func (s *QuizService) Leave(_ context.Context, quizID, participantID string) {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return
	}
	session.leave(participantID)
	if session.IsEmpty() {
		s.sessions.DeleteIfEmpty(quizID)
	}
}

// Progress returns how far a participant has answered.
func (s *QuizService) Progress(ctx context.Context, quizID, participantID string) (int, error) {
	return s.gate.Progress(ctx, quizID, participantID)
}

func requireIDs(quizID, participantID string) error {
	if strings.TrimSpace(quizID) == "" {
		return domain.InvalidInput("quiz id is required")
	}
	if strings.TrimSpace(participantID) == "" {
		return domain.InvalidInput("participant id is required")
	}
	return nil
}

func requireQuizID(quizID string) error {
	if strings.TrimSpace(quizID) == "" {
		return domain.InvalidInput("quiz id is required")
	}
	return nil
}

// shortID is the human-friendly code shown next to display names.
func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
