package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"live-quiz-service/internal/app"
)

// NewAdminCmd groups the operator commands that run against the configured stores
// without starting the server.
func NewAdminCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operate on a quiz: lifecycle, pause points, evaluation and integrity checks",
	}

	quizCmd := func(use, short string, run func(ctx context.Context, s *app.QuizService, quizID string) (any, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " QUIZ_ID",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withService(cmd, *configPath, func(ctx context.Context, s *app.QuizService) error {
					out, err := run(ctx, s, args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd, out)
				})
			},
		}
	}

	cmd.AddCommand(
		quizCmd("start", "Open a quiz for answers", func(ctx context.Context, s *app.QuizService, id string) (any, error) {
			return s.Start(ctx, id)
		}),
		quizCmd("stop", "Close a quiz for answers", func(ctx context.Context, s *app.QuizService, id string) (any, error) {
			return s.Stop(ctx, id)
		}),
		quizCmd("deactivate", "Retire a quiz", func(ctx context.Context, s *app.QuizService, id string) (any, error) {
			return s.Deactivate(ctx, id)
		}),
		quizCmd("reactivate", "Bring a retired quiz back", func(ctx context.Context, s *app.QuizService, id string) (any, error) {
			return s.Reactivate(ctx, id)
		}),
		quizCmd("evaluate", "Score all answers and store the final leaderboard", func(ctx context.Context, s *app.QuizService, id string) (any, error) {
			return s.Evaluate(ctx, id)
		}),
		quizCmd("report", "Print the last stored leaderboard", func(ctx context.Context, s *app.QuizService, id string) (any, error) {
			return s.Report(ctx, id)
		}),
		quizCmd("validate", "Check stored answers for integrity problems", func(ctx context.Context, s *app.QuizService, id string) (any, error) {
			return s.Validate(ctx, id)
		}),
		quizCmd("restart", "Wipe answers, reports, pause points and progress", func(ctx context.Context, s *app.QuizService, id string) (any, error) {
			return map[string]string{"restarted": id}, s.Restart(ctx, id)
		}),
		quizCmd("recover-progress", "Rebuild participant progress from stored answers", func(ctx context.Context, s *app.QuizService, id string) (any, error) {
			return s.RecoverProgress(ctx, id)
		}),
		quizCmd("resume", "Remove every pause point", func(ctx context.Context, s *app.QuizService, id string) (any, error) {
			return []int{}, s.Resume(ctx, id)
		}),
		quizCmd("gate-status", "Print pause points and every participant's progress", func(ctx context.Context, s *app.QuizService, id string) (any, error) {
			return s.GateStatus(ctx, id)
		}),
		newPauseCmd(configPath),
	)
	return cmd
}

func newPauseCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "pause QUIZ_ID QUESTION...",
		Short: "Block answering at the given question numbers",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			points := make([]int, 0, len(args)-1)
			for _, raw := range args[1:] {
				n, err := strconv.Atoi(raw)
				if err != nil {
					return fmt.Errorf("pause point %q is not a number", raw)
				}
				points = append(points, n)
			}
			return withService(cmd, *configPath, func(ctx context.Context, s *app.QuizService) error {
				stored, err := s.Pause(ctx, args[0], points)
				if err != nil {
					return err
				}
				return printJSON(cmd, stored)
			})
		},
	}
}

func withService(cmd *cobra.Command, configPath string, fn func(context.Context, *app.QuizService) error) error {
	cfg, logger, err := loadRuntime(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st.service)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
