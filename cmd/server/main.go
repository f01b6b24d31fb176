// Command server runs the immigration assistant HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fairyhunter13/immigration-assistant/internal/adapter/ai"
	"github.com/fairyhunter13/immigration-assistant/internal/adapter/ai/openai"
	"github.com/fairyhunter13/immigration-assistant/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/immigration-assistant/internal/adapter/cache/redis"
	"github.com/fairyhunter13/immigration-assistant/internal/adapter/httpserver"
	"github.com/fairyhunter13/immigration-assistant/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/immigration-assistant/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/immigration-assistant/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/immigration-assistant/internal/app"
	"github.com/fairyhunter13/immigration-assistant/internal/config"
	"github.com/fairyhunter13/immigration-assistant/internal/domain"
	"github.com/fairyhunter13/immigration-assistant/internal/observability"
	"github.com/fairyhunter13/immigration-assistant/internal/service/keepalive"
	"github.com/fairyhunter13/immigration-assistant/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.Any("error", err))
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

	shutdownTracing, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Warn("tracing setup failed, continuing without traces", slog.Any("error", err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	langs, err := config.LoadLanguageMap(cfg.LanguageMapFile)
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	feedbackRepo := postgres.NewFeedbackRepo(pool)
	if err := feedbackRepo.EnsureSchema(ctx); err != nil {
		return err
	}

	oa := openai.New(cfg)
	aiClient := ai.NewEmbedCache(oa, cfg.EmbedCacheSize)

	vecClient := qdrant.New(cfg.QdrantURL, cfg.QdrantAPIKey)
	if err := vecClient.EnsureCollection(ctx, cfg.QdrantCollection, cfg.VectorSize, "Cosine"); err != nil {
		// Retrieval degrades to apologies while the index is unreachable.
		slog.Warn("qdrant collection setup failed", slog.Any("error", err))
	}
	index := qdrant.NewIndex(vecClient, aiClient, cfg.QdrantCollection)

	textCache := redis.New(cfg.RedisAddr, cfg.TextCacheTTL)
	defer textCache.Close()

	var queue domain.Queue
	var producer *redpanda.Producer
	producer, err = redpanda.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		slog.Warn("evaluation queue unavailable, answers will not be evaluated", slog.Any("error", err))
	} else {
		queue = producer
		defer producer.Close()
	}

	tokens := tokencount.NewCounter(cfg.ChatModel)
	rag := usecase.NewRAGService(aiClient, index, tokens, cfg.RetrievalTopK, cfg.PromptTokenBudget)
	intents := usecase.NewIntentClassifier(aiClient, textCache)
	translator := usecase.NewTranslationService(aiClient, textCache, langs)
	ask := usecase.NewAskService(intents, rag, translator, queue)
	feedback := usecase.NewFeedbackService(feedbackRepo)

	srv := httpserver.NewServer(ask, feedback, oa, cfg.UploadDir, cfg.MaxUploadMB,
		app.BuildProbes(pool, textCache, vecClient, producer))
	srv.OpenAPIPath = "api/openapi.yaml"

	router := app.NewRouter(cfg, srv)
	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	var ka *keepalive.Service
	if cfg.KeepAliveEnabled {
		url := cfg.KeepAliveURL
		if url == "" {
			url = fmt.Sprintf("http://localhost:%d", cfg.Port)
		}
		ka = keepalive.New(url+"/healthz", cfg.KeepAliveInterval)
		ka.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", slog.Int("port", cfg.Port), slog.String("env", cfg.AppEnv))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	if ka != nil {
		ka.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("tracing shutdown failed", slog.Any("error", err))
	}
	slog.Info("shutdown complete")
	return nil
}
