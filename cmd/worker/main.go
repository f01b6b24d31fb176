// Command worker consumes evaluation tasks, scores answers and appends the
// results to the feedback log. It is the single writer of automatic entries.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fairyhunter13/immigration-assistant/internal/adapter/ai/openai"
	"github.com/fairyhunter13/immigration-assistant/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/immigration-assistant/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/immigration-assistant/internal/config"
	"github.com/fairyhunter13/immigration-assistant/internal/domain"
	"github.com/fairyhunter13/immigration-assistant/internal/observability"
	"github.com/fairyhunter13/immigration-assistant/internal/usecase"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	repo := postgres.NewFeedbackRepo(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	evaluator := usecase.NewEvaluator(openai.New(cfg))
	feedback := usecase.NewFeedbackService(repo)

	handler := func(ctx context.Context, task domain.EvaluationTask) error {
		ev := evaluator.Evaluate(ctx, task)
		id, err := feedback.RecordAutomatic(ctx, task, ev)
		if err != nil {
			return err
		}
		slog.Info("answer evaluated",
			slog.String("entry_id", id),
			slog.Float64("overall", ev.Overall),
			slog.String("language", task.Language))
		return nil
	}

	consumer, err := redpanda.NewConsumer(cfg.KafkaBrokers, "evaluation-workers", handler)
	if err != nil {
		return err
	}
	defer consumer.Close()

	slog.Info("worker starting", slog.String("env", cfg.AppEnv))
	return consumer.Run(ctx)
}
