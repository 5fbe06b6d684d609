package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/email-thread-rag/internal/config"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/extractor"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/email-thread-rag/internal/ingest"
	"github.com/kirillkom/email-thread-rag/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("ingest", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	attachments, err := localfs.New(cfg.AttachmentDir)
	if err != nil {
		slog.Error("init attachment storage", "error", err)
		os.Exit(1)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	embedder := ollama.NewEmbedder(ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel), executor)

	pipeline := ingest.NewPipeline(
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		extractor.New(attachments),
		embedder,
		cfg.EmbedBatchSize,
		logger,
	)

	if err := pipeline.Run(ctx, cfg.EmailExport, cfg.DataDir); err != nil {
		slog.Error("ingest failed", "export", cfg.EmailExport, "error", err)
		os.Exit(1)
	}
}
