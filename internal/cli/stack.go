package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/gate"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	redisstore "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/metrics"
	transport "live-quiz-service/internal/transport/http"
)

// stack is the assembled service with the resources it holds open.
type stack struct {
	service *app.QuizService
	metrics *metrics.Metrics
	pingers map[string]transport.Pinger
	closers []func()
}

func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// buildStack picks the backends from cfg: Postgres for durable records and quiz content,
// Redis for progress, pause points and the content cache, memory for whatever is unset.
func buildStack(ctx context.Context, cfg config.Config, logger *zap.Logger) (*stack, error) {
	st := &stack{
		metrics: metrics.New(prometheus.NewRegistry()),
		pingers: make(map[string]transport.Pinger),
	}
	questionTime := config.TTLDuration(cfg.Quiz.QuestionTime, 15*time.Second)

	var (
		loader app.QuizLoader
		store  app.Store
	)
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		st.closers = append(st.closers, pool.Close)
		pg := postgres.NewStore(pool)
		st.pingers["postgres"] = pg
		loader, store = postgres.NewQuizLoader(pool), pg
	} else {
		static := memory.NewStaticQuizLoader(sampleQuizzes(questionTime))
		logger.Info("serving built-in quizzes", zap.Strings("quizIds", static.IDs()))
		loader, store = static, memory.NewStore()
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var (
		quizzes  app.QuizRepository
		progress gate.ProgressStore
		sessions app.SessionRepository
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		st.closers = append(st.closers, func() { _ = client.Close() })
		st.pingers["redis"] = pingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
		quizzes = redisstore.NewQuizRepository(client, loader, quizTTL, logger)
		progress = redisstore.NewProgressStore(client)
		sessions = redisstore.NewSessionStore(client, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute), logger)
	} else {
		quizzes = memory.NewQuizRepository(loader, quizTTL)
		progress = memory.NewProgressStore()
		sessions = memory.NewSessionStore()
	}

	tracker := gate.NewTracker(progress, quizzes, logger, st.metrics)
	st.service = app.NewQuizService(sessions, quizzes, store, tracker, logger, st.metrics)
	return st, nil
}

// sampleQuizzes is the content served when no database is configured.
func sampleQuizzes(questionTime time.Duration) map[string]domain.Quiz {
	ms := questionTime.Milliseconds()
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:             "quiz-1",
			Title:          "Warm-up",
			QuestionTimeMs: ms,
			Questions: []domain.Question{
				{
					ID:             "q1",
					Prompt:         "What is 2 + 2?",
					Options:        []string{"3", "4", "5"},
					CorrectAnswers: []domain.CorrectAnswer{{Option: 1, Points: 100}},
				},
				{
					ID:             "q2",
					Prompt:         "Which of these are primes?",
					Options:        []string{"4", "7", "9", "11"},
					CorrectAnswers: []domain.CorrectAnswer{{Option: 1, Points: 50}, {Option: 3, Points: 50}},
				},
				{
					ID:             "q3",
					Prompt:         "How many minutes are in an hour?",
					Options:        []string{"60", "100", "30"},
					CorrectAnswers: []domain.CorrectAnswer{{Option: 0, Points: 100}},
				},
			},
		},
	}
}
