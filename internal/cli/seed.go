package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/postgres"
	redisstore "live-quiz-service/internal/infra/redis"
)

// NewSeedCmd loads quiz content from JSON files into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE...",
		Short: "Store quiz content from JSON files in Postgres",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			ctx := cmd.Context()
			if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			loader := postgres.NewQuizLoader(pool)
			// A shared Redis cache would keep serving the old content until it expires.
			var cache *redisstore.QuizRepository
			if cfg.Redis.Addr != "" {
				client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
				defer client.Close()
				cache = redisstore.NewQuizRepository(client, loader, config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute), logger)
			}
			questionTime := config.TTLDuration(cfg.Quiz.QuestionTime, 15*time.Second)
			for _, path := range args {
				quiz, err := readQuiz(path, questionTime)
				if err != nil {
					return err
				}
				if err := loader.SaveQuiz(ctx, quiz); err != nil {
					return err
				}
				if cache != nil {
					if err := cache.Invalidate(ctx, quiz.ID); err != nil {
						logger.Warn("cached quiz not invalidated", zap.String("quizId", quiz.ID), zap.Error(err))
					}
				}
				logger.Info("quiz stored", zap.String("quizId", quiz.ID), zap.Int("questions", len(quiz.Questions)))
			}
			return nil
		},
	}
}

// readQuiz decodes one quiz document and applies the configured answer window when the
// document has none.
func readQuiz(path string, questionTime time.Duration) (domain.Quiz, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Quiz{}, err
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if quiz.ID == "" || len(quiz.Questions) == 0 {
		return domain.Quiz{}, fmt.Errorf("%s: quiz needs an id and at least one question", path)
	}
	if quiz.QuestionTimeMs <= 0 {
		quiz.QuestionTimeMs = questionTime.Milliseconds()
	}
	return quiz, nil
}
