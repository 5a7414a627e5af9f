// Package gate decides whether a participant may answer a question right now, based on
// the quiz's pause points and the participant's furthest answered question.
package gate

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

// Snapshot is a consistent read of a quiz's pause points and one participant's progress.
type Snapshot struct {
	PausePoints []int
	Progress    int
}

// ProgressStore keeps per-quiz pause points and per-participant progress. Implementations
// must scope all state by quiz and give RecordProgress compare-and-set-to-max semantics.
type ProgressStore interface {
	// RecordProgress stores max(current, questionNumber) and returns the stored value.
	RecordProgress(ctx context.Context, quizID, participantID string, questionNumber int) (int, error)
	Progress(ctx context.Context, quizID, participantID string) (int, error)
	// AllProgress returns every recorded progress of a quiz keyed by participant.
	AllProgress(ctx context.Context, quizID string) (map[string]int, error)
	SetPausePoints(ctx context.Context, quizID string, points []int) error
	PausePoints(ctx context.Context, quizID string) ([]int, error)
	ClearPausePoints(ctx context.Context, quizID string) error
	Snapshot(ctx context.Context, quizID, participantID string) (Snapshot, error)
	// ResetQuiz drops the pause points and all progress of a quiz.
	ResetQuiz(ctx context.Context, quizID string) error
}

// QuizLookup resolves quiz content; unknown quizzes return domain.ErrQuizNotFound.
type QuizLookup interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Tracker is the single source of truth for "may participant P answer question N of quiz Q".
type Tracker struct {
	store   ProgressStore
	quizzes QuizLookup
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewTracker(store ProgressStore, quizzes QuizLookup, logger *zap.Logger, m *metrics.Metrics) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: store, quizzes: quizzes, logger: logger, metrics: m}
}

// RecordProgress raises the participant's progress to questionNumber if it is higher.
func (t *Tracker) RecordProgress(ctx context.Context, quizID, participantID string, questionNumber int) (int, error) {
	if err := t.checkQuestion(ctx, quizID, participantID, questionNumber); err != nil {
		return 0, err
	}
	return t.store.RecordProgress(ctx, quizID, participantID, questionNumber)
}

// Progress returns the furthest answered question number, 0 if none.
func (t *Tracker) Progress(ctx context.Context, quizID, participantID string) (int, error) {
	if err := t.checkIDs(quizID, participantID); err != nil {
		return 0, err
	}
	return t.store.Progress(ctx, quizID, participantID)
}

// AllProgress returns the progress of every participant that answered in the quiz.
func (t *Tracker) AllProgress(ctx context.Context, quizID string) (map[string]int, error) {
	if err := t.checkQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	return t.store.AllProgress(ctx, quizID)
}

// SetPausePoints replaces the quiz's pause points. Non-positive or duplicate values are
// rejected; the stored set is sorted ascending.
func (t *Tracker) SetPausePoints(ctx context.Context, quizID string, points []int) ([]int, error) {
	if err := t.checkQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	sorted, err := checkPausePoints(points)
	if err != nil {
		return nil, err
	}
	if err := t.store.SetPausePoints(ctx, quizID, sorted); err != nil {
		return nil, err
	}
	t.logger.Info("pause points set", zap.String("quizId", quizID), zap.Ints("points", sorted))
	return sorted, nil
}

// ClearPausePoints removes all blocking for the quiz. Progress is left as is.
func (t *Tracker) ClearPausePoints(ctx context.Context, quizID string) error {
	if err := t.checkQuiz(ctx, quizID); err != nil {
		return err
	}
	if err := t.store.ClearPausePoints(ctx, quizID); err != nil {
		return err
	}
	t.logger.Info("pause points cleared", zap.String("quizId", quizID))
	return nil
}

// PausePoints returns the current pause points in ascending order.
func (t *Tracker) PausePoints(ctx context.Context, quizID string) ([]int, error) {
	if err := t.checkQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	return t.store.PausePoints(ctx, quizID)
}

// IsPaused reports whether the quiz has any pause point set.
func (t *Tracker) IsPaused(ctx context.Context, quizID string) (bool, error) {
	points, err := t.PausePoints(ctx, quizID)
	if err != nil {
		return false, err
	}
	return len(points) > 0, nil
}

// CanAnswer evaluates the gate for one request. A rejection is a normal Decision, not an
// error; errors are reserved for malformed input, unknown quizzes and store failures.
func (t *Tracker) CanAnswer(ctx context.Context, quizID, participantID string, questionNumber int) (domain.Decision, error) {
	if err := t.checkQuestion(ctx, quizID, participantID, questionNumber); err != nil {
		return domain.Decision{}, err
	}
	snap, err := t.store.Snapshot(ctx, quizID, participantID)
	if err != nil {
		return domain.Decision{}, err
	}
	d := Decide(snap.PausePoints, snap.Progress, questionNumber)
	t.metrics.ObserveDecision(d.Allowed, string(d.Reason))
	if !d.Allowed {
		t.logger.Debug("answer blocked",
			zap.String("quizId", quizID),
			zap.String("participantId", participantID),
			zap.Int("question", questionNumber),
			zap.String("reason", string(d.Reason)),
			zap.Int("blockingPausePoint", d.BlockingPausePoint),
		)
	}
	return d, nil
}

// Saved is the whole gate state of one quiz.
type Saved struct {
	PausePoints []int
	Progress    map[string]int
}

// Save reads the pause points and every participant's progress of the quiz.
func (t *Tracker) Save(ctx context.Context, quizID string) (Saved, error) {
	points, err := t.PausePoints(ctx, quizID)
	if err != nil {
		return Saved{}, err
	}
	progress, err := t.store.AllProgress(ctx, quizID)
	if err != nil {
		return Saved{}, err
	}
	return Saved{PausePoints: points, Progress: progress}, nil
}

// Restore writes back state taken by Save. Progress is raised, never lowered.
func (t *Tracker) Restore(ctx context.Context, quizID string, saved Saved) error {
	if len(saved.PausePoints) > 0 {
		if err := t.store.SetPausePoints(ctx, quizID, saved.PausePoints); err != nil {
			return err
		}
	} else if err := t.store.ClearPausePoints(ctx, quizID); err != nil {
		return err
	}
	for participantID, n := range saved.Progress {
		if _, err := t.store.RecordProgress(ctx, quizID, participantID, n); err != nil {
			return err
		}
	}
	t.logger.Info("gate state restored",
		zap.String("quizId", quizID),
		zap.Ints("pausePoints", saved.PausePoints),
		zap.Int("participants", len(saved.Progress)),
	)
	return nil
}

// Reset clears pause points and progress for a restarted quiz.
func (t *Tracker) Reset(ctx context.Context, quizID string) error {
	if strings.TrimSpace(quizID) == "" {
		return domain.InvalidInput("quiz id is required")
	}
	return t.store.ResetQuiz(ctx, quizID)
}

func (t *Tracker) checkIDs(quizID, participantID string) error {
	if strings.TrimSpace(quizID) == "" {
		return domain.InvalidInput("quiz id is required")
	}
	if strings.TrimSpace(participantID) == "" {
		return domain.InvalidInput("participant id is required")
	}
	return nil
}

func (t *Tracker) checkQuiz(ctx context.Context, quizID string) error {
	if strings.TrimSpace(quizID) == "" {
		return domain.InvalidInput("quiz id is required")
	}
	_, err := t.quizzes.GetQuiz(ctx, quizID)
	return err
}

func (t *Tracker) checkQuestion(ctx context.Context, quizID, participantID string, questionNumber int) error {
	if err := t.checkIDs(quizID, participantID); err != nil {
		return err
	}
	if questionNumber <= 0 {
		return domain.InvalidInput("question number %d must be positive", questionNumber)
	}
	quiz, err := t.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if questionNumber > len(quiz.Questions) {
		return domain.InvalidInput("question number %d exceeds quiz length %d", questionNumber, len(quiz.Questions))
	}
	return nil
}
