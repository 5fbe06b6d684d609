// Package bootstrap assembles the runtime object graphs for the API
// and archive worker binaries from configuration.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/email-thread-rag/internal/config"
	"github.com/kirillkom/email-thread-rag/internal/core/domain"
	"github.com/kirillkom/email-thread-rag/internal/core/ports"
	"github.com/kirillkom/email-thread-rag/internal/core/usecase"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/corpus"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/session"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/trace"
	"github.com/kirillkom/email-thread-rag/internal/observability/metrics"
)

// App is the wired API process: the loaded corpus, session store,
// use cases, and server metrics.
type App struct {
	Config   config.Config
	Corpus   ports.CorpusIndex
	Sessions ports.SessionStore

	AskUC      *usecase.AskUseCase
	TimelineUC *usecase.TimelineUseCase

	Metrics *metrics.HTTPServerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	store, err := corpus.Load(cfg.DataDir, cfg.BM25K1, cfg.BM25B)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	sessions := session.NewStore(cfg.MaxRecentTurns)
	executor := resilience.NewExecutor(resilience.DefaultConfig())

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel)
	embedder := ollama.NewEmbedder(ollamaClient, executor)

	m := metrics.NewHTTPServerMetrics("api")

	jsonlSink, err := trace.NewJSONLSink(cfg.TracePath)
	if err != nil {
		return nil, fmt.Errorf("open trace log: %w", err)
	}

	sinks := []ports.TraceSink{jsonlSink}
	var queue *nats.Queue
	if cfg.NATSEnabled {
		queue, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			_ = jsonlSink.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		sinks = append(sinks, queue)
	}

	traces := &meteredSink{
		next:    trace.NewFanout(sinks...),
		metrics: m,
		service: "api",
	}

	askUC := usecase.NewAskUseCase(sessions, store, embedder, traces, usecase.AskConfig{
		TopK:                cfg.TopK,
		LexicalWeight:       cfg.LexicalWeight,
		SemanticWeight:      cfg.SemanticWeight,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		SnippetMaxChars:     cfg.SnippetMaxChars,
		RewriteEntityHints:  cfg.RewriteEntityHints,
	})
	timelineUC := usecase.NewTimelineUseCase(sessions, store)

	return &App{
		Config:   cfg,
		Corpus:   store,
		Sessions: sessions,

		AskUC:      askUC,
		TimelineUC: timelineUC,

		Metrics: m,

		closeFn: func() {
			if queue != nil {
				queue.Close()
			}
			_ = jsonlSink.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// WorkerApp is the wired archive worker: the trace subscription and
// the Postgres archive it drains into.
type WorkerApp struct {
	Config  config.Config
	Queue   *nats.Queue
	Traces  *postgres.TraceRepository
	Metrics *metrics.WorkerMetrics

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config) (*WorkerApp, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewTraceRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	return &WorkerApp{
		Config:  cfg,
		Queue:   queue,
		Traces:  repo,
		Metrics: metrics.NewWorkerMetrics("worker"),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *WorkerApp) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// meteredSink counts append failures without changing sink semantics;
// the caller still decides whether a failure is fatal.
type meteredSink struct {
	next    ports.TraceSink
	metrics *metrics.HTTPServerMetrics
	service string
}

func (s *meteredSink) Append(ctx context.Context, record domain.TraceRecord) error {
	err := s.next.Append(ctx, record)
	if err != nil {
		s.metrics.RecordTraceAppendFailure(s.service)
	}
	return err
}
