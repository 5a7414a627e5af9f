package app

import (
	"context"

	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/gate"
)

// Start opens the quiz for submissions. Deactivated quizzes must be reactivated first.
func (s *QuizService) Start(ctx context.Context, quizID string) (domain.QuizState, error) {
	return s.updateState(ctx, quizID, "quiz started", func(st *domain.QuizState) error {
		if st.Deactivated {
			return domain.ErrQuizDeactivated
		}
		now := s.now()
		st.Active = true
		st.StartedAt = &now
		return nil
	})
}

// Stop closes the quiz for submissions without touching answers.
func (s *QuizService) Stop(ctx context.Context, quizID string) (domain.QuizState, error) {
	return s.updateState(ctx, quizID, "quiz stopped", func(st *domain.QuizState) error {
		st.Active = false
		return nil
	})
}

// Deactivate retires the quiz until it is explicitly reactivated.
func (s *QuizService) Deactivate(ctx context.Context, quizID string) (domain.QuizState, error) {
	return s.updateState(ctx, quizID, "quiz deactivated", func(st *domain.QuizState) error {
		st.Active = false
		st.Deactivated = true
		return nil
	})
}

// Reactivate clears the deactivation and resets the creation time. The quiz stays inactive.
func (s *QuizService) Reactivate(ctx context.Context, quizID string) (domain.QuizState, error) {
	return s.updateState(ctx, quizID, "quiz reactivated", func(st *domain.QuizState) error {
		st.Deactivated = false
		st.CreatedAt = s.now()
		return nil
	})
}

// State returns the lifecycle flags of the quiz.
func (s *QuizService) State(ctx context.Context, quizID string) (domain.QuizState, error) {
	if err := s.requireQuiz(ctx, quizID); err != nil {
		return domain.QuizState{}, err
	}
	return s.store.QuizState(ctx, quizID)
}

func (s *QuizService) updateState(ctx context.Context, quizID, msg string, mutate func(*domain.QuizState) error) (domain.QuizState, error) {
	if err := s.requireQuiz(ctx, quizID); err != nil {
		return domain.QuizState{}, err
	}
	state, err := s.store.QuizState(ctx, quizID)
	if err != nil {
		return domain.QuizState{}, err
	}
	if err := mutate(&state); err != nil {
		return domain.QuizState{}, err
	}
	if err := s.store.SaveQuizState(ctx, state); err != nil {
		return domain.QuizState{}, err
	}
	s.logger.Info(msg, zap.String("quizId", quizID), zap.Bool("active", state.Active), zap.Bool("deactivated", state.Deactivated))
	return state, nil
}

// Pause blocks answering at the given question numbers. Raw admin input is normalised
// first; nothing usable left is an error rather than a silent resume.
func (s *QuizService) Pause(ctx context.Context, quizID string, raw []int) ([]int, error) {
	points := gate.NormalizePausePoints(raw)
	if len(points) == 0 {
		return nil, domain.InvalidInput("at least one positive pause point is required")
	}
	stored, err := s.gate.SetPausePoints(ctx, quizID, points)
	if err != nil {
		return nil, err
	}
	if session, ok := s.sessions.Get(quizID); ok {
		session.setPausePoints(stored)
	}
	return stored, nil
}

// Resume removes every pause point of the quiz.
func (s *QuizService) Resume(ctx context.Context, quizID string) error {
	if err := s.gate.ClearPausePoints(ctx, quizID); err != nil {
		return err
	}
	if session, ok := s.sessions.Get(quizID); ok {
		session.setPausePoints(nil)
	}
	return nil
}

// PausePoints returns the quiz's current pause points.
func (s *QuizService) PausePoints(ctx context.Context, quizID string) ([]int, error) {
	return s.gate.PausePoints(ctx, quizID)
}

// GateStatus reports whether the quiz is paused and how far every participant has answered.
func (s *QuizService) GateStatus(ctx context.Context, quizID string) (domain.GateStatus, error) {
	paused, err := s.gate.IsPaused(ctx, quizID)
	if err != nil {
		return domain.GateStatus{}, err
	}
	points, err := s.gate.PausePoints(ctx, quizID)
	if err != nil {
		return domain.GateStatus{}, err
	}
	progress, err := s.gate.AllProgress(ctx, quizID)
	if err != nil {
		return domain.GateStatus{}, err
	}
	return domain.GateStatus{QuizID: quizID, Paused: paused, PausePoints: points, Progress: progress}, nil
}

// Reload drops cached quiz content so the next read goes to the loader. Live sessions keep
// the content they were joined with.
func (s *QuizService) Reload(ctx context.Context, quizID string) error {
	if err := requireQuizID(quizID); err != nil {
		return err
	}
	if cache, ok := s.quizzes.(QuizCache); ok {
		if err := cache.Invalidate(ctx, quizID); err != nil {
			return err
		}
	}
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return err
	}
	s.logger.Info("quiz content reloaded", zap.String("quizId", quizID))
	return nil
}

func (s *QuizService) requireQuiz(ctx context.Context, quizID string) error {
	if err := requireQuizID(quizID); err != nil {
		return err
	}
	_, err := s.quizzes.GetQuiz(ctx, quizID)
	return err
}
