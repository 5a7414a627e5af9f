package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/gate"
	"live-quiz-service/internal/scoring"
)

// quizData is everything an evaluation or validation run reads.
type quizData struct {
	quiz         domain.Quiz
	answers      []domain.AnswerSubmission
	participants []domain.Participant
}

func (s *QuizService) load(ctx context.Context, quizID string) (quizData, error) {
	var data quizData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		quiz, err := s.quizzes.GetQuiz(gctx, quizID)
		data.quiz = quiz
		return err
	})
	g.Go(func() error {
		answers, err := s.store.Answers(gctx, quizID)
		data.answers = answers
		return err
	})
	g.Go(func() error {
		participants, err := s.store.Participants(gctx, quizID)
		data.participants = participants
		return err
	})
	if err := g.Wait(); err != nil {
		return quizData{}, err
	}
	return data, nil
}

// Evaluate scores every stored answer, ranks the participants and persists the report.
// Persisting replaces the previous report and closes the quiz in one store call.
func (s *QuizService) Evaluate(ctx context.Context, quizID string) (report domain.LeaderboardReport, err error) {
	ctx, span := tracer.Start(ctx, "QuizService.Evaluate", trace.WithAttributes(attribute.String("quiz.id", quizID)))
	defer func() { endSpan(span, err) }()

	if err := requireQuizID(quizID); err != nil {
		return domain.LeaderboardReport{}, err
	}
	started := time.Now()
	data, err := s.load(ctx, quizID)
	if err != nil {
		return domain.LeaderboardReport{}, err
	}

	grouped := make(map[string][]domain.AnswerSubmission)
	for _, a := range data.answers {
		grouped[a.ParticipantID] = append(grouped[a.ParticipantID], a)
	}
	names := make(map[string]string, len(data.participants))
	order := make([]string, 0, len(grouped))
	for _, p := range data.participants {
		names[p.ID] = p.DisplayName
		order = append(order, p.ID)
	}
	// Answers from participants missing in the directory are still scored, after the known ones.
	var unknown []string
	for id := range grouped {
		if _, ok := names[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	order = append(order, unknown...)

	ranked := scoring.Standings(order, grouped, data.quiz)
	report = domain.LeaderboardReport{
		ID:                uuid.NewString(),
		QuizID:            quizID,
		Entries:           scoring.Entries(ranked, names, len(data.quiz.Questions)),
		Stats:             scoring.Summarize(ranked),
		EvaluatedAt:       s.now(),
		TotalParticipants: len(data.participants),
	}
	if err := s.store.CommitEvaluation(ctx, report); err != nil {
		return domain.LeaderboardReport{}, err
	}
	s.metrics.ObserveEvaluation(time.Since(started))
	span.SetAttributes(attribute.Int("report.entries", len(report.Entries)))
	s.logger.Info("quiz evaluated",
		zap.String("quizId", quizID),
		zap.String("reportId", report.ID),
		zap.Int("ranked", len(report.Entries)),
		zap.Int("answers", len(data.answers)),
	)
	return report, nil
}

// Report returns the last persisted evaluation of the quiz.
func (s *QuizService) Report(ctx context.Context, quizID string) (domain.LeaderboardReport, error) {
	if err := requireQuizID(quizID); err != nil {
		return domain.LeaderboardReport{}, err
	}
	return s.store.LatestReport(ctx, quizID)
}

// Restart wipes answers and reports, returns the quiz to its inactive start state and
// drops all pause points and progress. The gate is cleared before the durable wipe; if
// either step fails, the saved gate state is written back so nothing is half reset.
func (s *QuizService) Restart(ctx context.Context, quizID string) (err error) {
	ctx, span := tracer.Start(ctx, "QuizService.Restart", trace.WithAttributes(attribute.String("quiz.id", quizID)))
	defer func() { endSpan(span, err) }()

	if err := s.requireQuiz(ctx, quizID); err != nil {
		return err
	}
	saved, err := s.gate.Save(ctx, quizID)
	if err != nil {
		return err
	}
	if err := s.gate.Reset(ctx, quizID); err != nil {
		// The reset may have applied before failing.
		s.restoreGate(ctx, quizID, saved)
		return err
	}
	if err := s.store.ResetQuiz(ctx, quizID); err != nil {
		s.restoreGate(ctx, quizID, saved)
		return err
	}
	if session, ok := s.sessions.Get(quizID); ok {
		session.reset()
	}
	s.logger.Info("quiz restarted", zap.String("quizId", quizID))
	return nil
}

func (s *QuizService) restoreGate(ctx context.Context, quizID string, saved gate.Saved) {
	if err := s.gate.Restore(context.WithoutCancel(ctx), quizID, saved); err != nil {
		s.logger.Error("gate state not restored after failed restart",
			zap.String("quizId", quizID),
			zap.Ints("pausePoints", saved.PausePoints),
			zap.Any("progress", saved.Progress),
			zap.Error(err),
		)
	}
}

// Validate scans stored answers for integrity problems. It never modifies data; every
// category is present in the report, empty when nothing was found.
func (s *QuizService) Validate(ctx context.Context, quizID string) (report domain.ValidationReport, err error) {
	ctx, span := tracer.Start(ctx, "QuizService.Validate", trace.WithAttributes(attribute.String("quiz.id", quizID)))
	defer func() { endSpan(span, err) }()

	if err := requireQuizID(quizID); err != nil {
		return domain.ValidationReport{}, err
	}
	data, err := s.load(ctx, quizID)
	if err != nil {
		return domain.ValidationReport{}, err
	}

	known := make(map[string]struct{}, len(data.participants))
	for _, p := range data.participants {
		known[p.ID] = struct{}{}
	}
	found := make(map[domain.IssueCategory][]domain.ValidationIssue)
	add := func(c domain.IssueCategory, a domain.AnswerSubmission, format string, args ...any) {
		found[c] = append(found[c], domain.ValidationIssue{
			ParticipantID: a.ParticipantID,
			QuestionID:    a.QuestionID,
			Detail:        fmt.Sprintf(format, args...),
		})
	}

	type key struct{ participant, question string }
	seen := make(map[key]int)
	for _, a := range data.answers {
		if a.ParticipantID == "" || a.QuestionID == "" || a.QuizID == "" {
			add(domain.IssueMissingFields, a, "answer is missing participant, question or quiz id")
		}
		if a.ResponseTimeMs < 0 {
			add(domain.IssueInvalidResponseTime, a, "response time %dms is negative", a.ResponseTimeMs)
		}
		number, ok := 0, false
		if a.QuestionID != "" {
			number, ok = data.quiz.QuestionNumber(a.QuestionID)
			if !ok {
				add(domain.IssueUnknownQuestion, a, "question %q is not part of quiz %s", a.QuestionID, quizID)
			}
		}
		if a.ParticipantID != "" {
			if _, ok := known[a.ParticipantID]; !ok {
				add(domain.IssueUnknownParticipant, a, "participant %q never joined quiz %s", a.ParticipantID, quizID)
			}
		}
		if a.ParticipantID != "" && a.QuestionID != "" {
			k := key{a.ParticipantID, a.QuestionID}
			seen[k]++
			if seen[k] > 1 {
				add(domain.IssueDuplicateAnswer, a, "more than one answer stored for the same question")
			}
		}
		switch {
		case a.QuestionNumber <= 0:
			add(domain.IssueMissingRound, a, "answer has no question number")
		case ok && a.QuestionNumber != number:
			add(domain.IssueMissingRound, a, "answer recorded as question %d, quiz has it at %d", a.QuestionNumber, number)
		case a.QuestionStartedAt.IsZero():
			add(domain.IssueMissingRound, a, "answer has no question start time")
		}
	}

	report = domain.ValidationReport{
		QuizID:       quizID,
		TotalAnswers: len(data.answers),
		Valid:        true,
		Categories:   make([]domain.ValidationCategory, 0, len(domain.IssueCategories)),
		CheckedAt:    s.now(),
	}
	for _, c := range domain.IssueCategories {
		issues := found[c]
		if issues == nil {
			issues = []domain.ValidationIssue{}
		}
		if len(issues) > 0 {
			report.Valid = false
		}
		report.Categories = append(report.Categories, domain.ValidationCategory{
			Category: c,
			Count:    len(issues),
			Issues:   issues,
		})
	}
	s.logger.Info("quiz validated", zap.String("quizId", quizID), zap.Bool("valid", report.Valid), zap.Int("answers", report.TotalAnswers))
	return report, nil
}

// RecoverProgress re-derives every participant's progress from the stored answers. It
// repairs a crash between persisting an answer and recording progress; progress that is
// already higher is kept.
func (s *QuizService) RecoverProgress(ctx context.Context, quizID string) (map[string]int, error) {
	if err := requireQuizID(quizID); err != nil {
		return nil, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.Answers(ctx, quizID)
	if err != nil {
		return nil, err
	}

	furthest := make(map[string]int)
	for _, a := range answers {
		if a.ParticipantID == "" {
			continue
		}
		if n, ok := quiz.QuestionNumber(a.QuestionID); ok && n > furthest[a.ParticipantID] {
			furthest[a.ParticipantID] = n
		}
	}
	ids := make([]string, 0, len(furthest))
	for id := range furthest {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	recovered := make(map[string]int, len(ids))
	for _, id := range ids {
		stored, err := s.gate.RecordProgress(ctx, quizID, id, furthest[id])
		if err != nil {
			return nil, err
		}
		recovered[id] = stored
	}
	s.logger.Info("progress recovered", zap.String("quizId", quizID), zap.Int("participants", len(recovered)))
	return recovered, nil
}
