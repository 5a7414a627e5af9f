package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live-quiz-service/internal/domain"
)

// Store is the durable app.Store: answers, participants, quiz lifecycle columns and the
// latest leaderboard report per quiz. Multi-row changes run in one transaction.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// UpsertAnswer relies on the (participant_id, quiz_id, question_id) primary key: a
// resubmission replaces the stored row.
func (s *Store) UpsertAnswer(ctx context.Context, a domain.AnswerSubmission) error {
	var selected sql.NullInt32
	if a.SelectedOption != nil {
		selected = sql.NullInt32{Int32: int32(*a.SelectedOption), Valid: true}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO answers (participant_id, quiz_id, question_id, question_number, selected_option,
			question_started_at, response_time_ms, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (participant_id, quiz_id, question_id) DO UPDATE SET
			question_number = EXCLUDED.question_number,
			selected_option = EXCLUDED.selected_option,
			question_started_at = EXCLUDED.question_started_at,
			response_time_ms = EXCLUDED.response_time_ms,
			submitted_at = EXCLUDED.submitted_at`,
		a.ParticipantID, a.QuizID, a.QuestionID, a.QuestionNumber, selected,
		a.QuestionStartedAt, a.ResponseTimeMs, a.SubmittedAt)
	return unavailable("upsert answer", err)
}

func (s *Store) Answers(ctx context.Context, quizID string) ([]domain.AnswerSubmission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT participant_id, quiz_id, question_id, question_number, selected_option,
			question_started_at, response_time_ms, submitted_at
		FROM answers WHERE quiz_id = $1
		ORDER BY submitted_at, participant_id, question_id`, quizID)
	if err != nil {
		return nil, unavailable("list answers", err)
	}
	defer rows.Close()

	var out []domain.AnswerSubmission
	for rows.Next() {
		var a domain.AnswerSubmission
		var selected sql.NullInt32
		if err := rows.Scan(&a.ParticipantID, &a.QuizID, &a.QuestionID, &a.QuestionNumber, &selected,
			&a.QuestionStartedAt, &a.ResponseTimeMs, &a.SubmittedAt); err != nil {
			return nil, unavailable("scan answer", err)
		}
		if selected.Valid {
			option := int(selected.Int32)
			a.SelectedOption = &option
		}
		out = append(out, a)
	}
	return out, unavailable("list answers", rows.Err())
}

func (s *Store) RegisterParticipant(ctx context.Context, quizID string, p domain.Participant) (domain.Participant, error) {
	var out domain.Participant
	err := s.pool.QueryRow(ctx, `
		INSERT INTO participants (quiz_id, participant_id, display_name, short_id, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (quiz_id, participant_id) DO UPDATE SET display_name = EXCLUDED.display_name
		RETURNING participant_id, display_name, short_id, joined_at`,
		quizID, p.ID, p.DisplayName, p.ShortID, p.JoinedAt,
	).Scan(&out.ID, &out.DisplayName, &out.ShortID, &out.JoinedAt)
	if err != nil {
		return domain.Participant{}, unavailable("register participant", err)
	}
	return out, nil
}

func (s *Store) Participants(ctx context.Context, quizID string) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT participant_id, display_name, short_id, joined_at
		FROM participants WHERE quiz_id = $1
		ORDER BY joined_at, participant_id`, quizID)
	if err != nil {
		return nil, unavailable("list participants", err)
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.ShortID, &p.JoinedAt); err != nil {
			return nil, unavailable("scan participant", err)
		}
		out = append(out, p)
	}
	return out, unavailable("list participants", rows.Err())
}

func (s *Store) QuizState(ctx context.Context, quizID string) (domain.QuizState, error) {
	state := domain.QuizState{QuizID: quizID}
	var started sql.NullTime
	err := s.pool.QueryRow(ctx, `
		SELECT active, deactivated, created_at, started_at FROM quizzes WHERE id = $1`, quizID,
	).Scan(&state.Active, &state.Deactivated, &state.CreatedAt, &started)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizState{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizState{}, unavailable("read quiz state", err)
	}
	if started.Valid {
		state.StartedAt = &started.Time
	}
	return state, nil
}

func (s *Store) SaveQuizState(ctx context.Context, state domain.QuizState) error {
	var started sql.NullTime
	if state.StartedAt != nil {
		started = sql.NullTime{Time: *state.StartedAt, Valid: true}
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE quizzes SET active = $2, deactivated = $3, created_at = $4, started_at = $5
		WHERE id = $1`, state.QuizID, state.Active, state.Deactivated, state.CreatedAt, started)
	if err != nil {
		return unavailable("save quiz state", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

// CommitEvaluation replaces the quiz's report and closes the quiz in one transaction.
func (s *Store) CommitEvaluation(ctx context.Context, report domain.LeaderboardReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report %s: %w", report.ID, err)
	}
	err = s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO leaderboard_reports (quiz_id, report_id, evaluated_at, report)
			VALUES ($1, $2, $3, $4::jsonb)
			ON CONFLICT (quiz_id) DO UPDATE SET
				report_id = EXCLUDED.report_id,
				evaluated_at = EXCLUDED.evaluated_at,
				report = EXCLUDED.report`,
			report.QuizID, report.ID, report.EvaluatedAt, string(payload)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE quizzes SET active = FALSE WHERE id = $1`, report.QuizID)
		return err
	})
	return unavailable("commit evaluation", err)
}

func (s *Store) LatestReport(ctx context.Context, quizID string) (domain.LeaderboardReport, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT report FROM leaderboard_reports WHERE quiz_id = $1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LeaderboardReport{}, domain.ErrReportNotFound
	}
	if err != nil {
		return domain.LeaderboardReport{}, unavailable("read report", err)
	}
	var report domain.LeaderboardReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return domain.LeaderboardReport{}, fmt.Errorf("unmarshal report for %s: %w", quizID, err)
	}
	return report, nil
}

// ResetQuiz deletes answers and the report and returns the quiz to its inactive start
// state. Registered participants are kept.
func (s *Store) ResetQuiz(ctx context.Context, quizID string) error {
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM answers WHERE quiz_id = $1`, quizID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM leaderboard_reports WHERE quiz_id = $1`, quizID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE quizzes SET active = FALSE, started_at = NULL WHERE id = $1`, quizID)
		return err
	})
	return unavailable("reset quiz", err)
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return unavailable("ping postgres", s.pool.Ping(ctx))
}

// unavailable maps driver failures to StoreUnavailable; domain errors pass through.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.Unavailable(op, err)
}
