// Command ingest loads the document corpus, chunks it and indexes it into
// the vector store. Run it once after the corpus changes.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/fairyhunter13/immigration-assistant/internal/adapter/ai"
	"github.com/fairyhunter13/immigration-assistant/internal/adapter/ai/openai"
	"github.com/fairyhunter13/immigration-assistant/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/immigration-assistant/internal/config"
	"github.com/fairyhunter13/immigration-assistant/internal/observability"
	"github.com/fairyhunter13/immigration-assistant/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("ingest failed", slog.Any("error", err))
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

	dir := flag.String("dir", cfg.CorpusDir, "directory of corpus .txt files")
	flag.Parse()

	ctx := context.Background()

	aiClient := ai.NewEmbedCache(openai.New(cfg), cfg.EmbedCacheSize)
	vecClient := qdrant.New(cfg.QdrantURL, cfg.QdrantAPIKey)
	if err := vecClient.EnsureCollection(ctx, cfg.QdrantCollection, cfg.VectorSize, "Cosine"); err != nil {
		return err
	}
	index := qdrant.NewIndex(vecClient, aiClient, cfg.QdrantCollection)

	svc, err := usecase.NewIngestService(index, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return err
	}
	n, err := svc.IngestDir(ctx, *dir)
	if err != nil {
		return err
	}
	slog.Info("ingest complete", slog.Int("chunks", n), slog.String("dir", *dir))
	return nil
}
