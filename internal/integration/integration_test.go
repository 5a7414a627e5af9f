package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/gate"
	"live-quiz-service/internal/infra/postgres"
	pgmigrations "live-quiz-service/internal/infra/postgres/migrations"
	infraredis "live-quiz-service/internal/infra/redis"
)

type env struct {
	service  *app.QuizService
	store    *postgres.Store
	progress *infraredis.ProgressStore
}

func setup(t *testing.T, ctx context.Context) env {
	t.Helper()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	loader := postgres.NewQuizLoader(pool)
	if err := loader.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("save quiz: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	store := postgres.NewStore(pool)
	progress := infraredis.NewProgressStore(redisClient)
	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute, nil)
	tracker := gate.NewTracker(progress, quizRepo, nil, nil)
	service := app.NewQuizService(infraredis.NewSessionStore(redisClient, 5*time.Minute, nil), quizRepo, store, tracker, nil, nil)
	return env{service: service, store: store, progress: progress}
}

func TestQuizRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	e := setup(t, ctx)

	if _, err := e.service.Start(ctx, "quiz-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := e.service.Join(ctx, "quiz-1", "u1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := e.service.Join(ctx, "quiz-1", "u2", "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := e.service.Pause(ctx, "quiz-1", []int{2}); err != nil {
		t.Fatalf("pause: %v", err)
	}

	res, err := e.service.SubmitAnswer(ctx, "quiz-1", "u2", domain.AnswerSubmission{QuestionID: "q1", SelectedOption: opt(1), ResponseTimeMs: 3000})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Awarded != 124 || res.Progress != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := e.service.SubmitAnswer(ctx, "quiz-1", "u1", domain.AnswerSubmission{QuestionID: "q1", SelectedOption: opt(0), ResponseTimeMs: 1000}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = e.service.SubmitAnswer(ctx, "quiz-1", "u2", domain.AnswerSubmission{QuestionID: "q2", SelectedOption: opt(1), ResponseTimeMs: 1000})
	var blocked *domain.BlockedError
	if !errors.As(err, &blocked) || blocked.Decision.Reason != domain.ReasonPausePoint {
		t.Fatalf("expected pause point block, got %v", err)
	}

	report, err := e.service.Evaluate(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(report.Entries) != 2 || report.Entries[0].ParticipantID != "u2" || report.Entries[0].DisplayName != "Bob" {
		t.Fatalf("expected bob leading, got %+v", report.Entries)
	}
	if report.TotalParticipants != 2 {
		t.Fatalf("expected 2 participants, got %d", report.TotalParticipants)
	}
	stored, err := e.service.Report(ctx, "quiz-1")
	if err != nil || stored.ID != report.ID {
		t.Fatalf("expected report %s persisted, got %+v (%v)", report.ID, stored.ID, err)
	}
	state, err := e.service.State(ctx, "quiz-1")
	if err != nil || state.Active {
		t.Fatalf("expected evaluation to close the quiz, got %+v (%v)", state, err)
	}

	if err := e.service.Restart(ctx, "quiz-1"); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if _, err := e.service.Report(ctx, "quiz-1"); !errors.Is(err, domain.ErrReportNotFound) {
		t.Fatalf("expected report wiped, got %v", err)
	}
	answers, err := e.store.Answers(ctx, "quiz-1")
	if err != nil || len(answers) != 0 {
		t.Fatalf("expected answers wiped, got %d (%v)", len(answers), err)
	}
	points, err := e.service.PausePoints(ctx, "quiz-1")
	if err != nil || len(points) != 0 {
		t.Fatalf("expected pause points cleared, got %v (%v)", points, err)
	}
}

func TestConcurrentProgressKeepsMaximum(t *testing.T) {
	ctx := context.Background()
	e := setup(t, ctx)

	var wg sync.WaitGroup
	for n := 1; n <= 5; n++ {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				if _, err := e.progress.RecordProgress(ctx, "quiz-1", "u1", n); err != nil {
					t.Errorf("record %d: %v", n, err)
				}
			}(n)
		}
	}
	wg.Wait()

	got, err := e.progress.Progress(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if got != 5 {
		t.Fatalf("expected progress 5, got %d", got)
	}
}

func TestRecoverProgressFromStoredAnswers(t *testing.T) {
	ctx := context.Background()
	e := setup(t, ctx)

	// An answer that reached the database without its progress update.
	now := time.Now().UTC()
	if err := e.store.UpsertAnswer(ctx, domain.AnswerSubmission{
		ParticipantID: "u1", QuizID: "quiz-1", QuestionID: "q3", QuestionNumber: 3,
		SelectedOption: opt(1), ResponseTimeMs: 2000, QuestionStartedAt: now.Add(-2 * time.Second), SubmittedAt: now,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	recovered, err := e.service.RecoverProgress(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered["u1"] != 3 {
		t.Fatalf("expected progress 3, got %v", recovered)
	}
}

func opt(i int) *int { return &i }

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	quiz := domain.Quiz{ID: "quiz-1", Title: "Integration", QuestionTimeMs: 15000}
	for i := 1; i <= 3; i++ {
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:             fmt.Sprintf("q%d", i),
			Prompt:         fmt.Sprintf("Question %d", i),
			Options:        []string{"A", "B", "C"},
			CorrectAnswers: []domain.CorrectAnswer{{Option: 1, Points: 100}},
		})
	}
	return quiz
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
