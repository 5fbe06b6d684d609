package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
	"github.com/kirillkom/email-thread-rag/internal/core/ports"
)

// AskConfig carries the tunable retrieval and synthesis constants.
// Zero values fall back to the documented defaults (top-8, 0.6/0.4
// weights, 0.2 confidence threshold, 300-char snippets, 3 hints).
type AskConfig struct {
	TopK                int
	LexicalWeight       float64
	SemanticWeight      float64
	ConfidenceThreshold float64
	SnippetMaxChars     int
	RewriteEntityHints  int
}

// AskUseCase runs one full question turn: rewrite, hybrid retrieval,
// entity extraction and merge, answer synthesis, turn recording, and
// trace logging. The pipeline is synchronous; only the session store
// is mutated and only the trace sink performs durable I/O.
type AskUseCase struct {
	sessions ports.SessionStore
	corpus   ports.CorpusIndex
	embedder ports.QueryEmbedder
	traces   ports.TraceSink
	cfg      AskConfig
}

func NewAskUseCase(
	sessions ports.SessionStore,
	corpus ports.CorpusIndex,
	embedder ports.QueryEmbedder,
	traces ports.TraceSink,
	cfg AskConfig,
) *AskUseCase {
	return &AskUseCase{
		sessions: sessions,
		corpus:   corpus,
		embedder: embedder,
		traces:   traces,
		cfg:      cfg,
	}
}

func (uc *AskUseCase) Ask(
	ctx context.Context,
	sessionID, text string,
	searchOutsideThread bool,
) (*domain.TurnResult, error) {
	session, err := uc.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	start := time.Now()

	rewrite := rewriteQuery(text, session, uc.cfg.RewriteEntityHints)

	lexScores := uc.corpus.LexicalScores(strings.Fields(rewrite))
	queryVector, err := uc.embedder.EmbedQuery(ctx, rewrite)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	retrieved := rankHybrid(uc.corpus, lexScores, queryVector, rankParams{
		ThreadID:            session.ThreadID,
		SearchOutsideThread: searchOutsideThread,
		TopK:                uc.cfg.TopK,
		LexicalWeight:       uc.cfg.LexicalWeight,
		SemanticWeight:      uc.cfg.SemanticWeight,
	})

	if found := extractEntities(text, retrieved); len(found) > 0 {
		uc.sessions.MergeEntities(sessionID, found)
	}

	answer, citations, outcome := synthesizeAnswer(text, retrieved, answerParams{
		ConfidenceThreshold: uc.cfg.ConfidenceThreshold,
		SnippetMaxChars:     uc.cfg.SnippetMaxChars,
	})

	uc.sessions.RecordTurn(sessionID, domain.Turn{Question: text, Answer: answer})

	latency := time.Since(start).Seconds()
	traceID := uc.appendTrace(ctx, sessionID, text, rewrite, retrieved, answer, citations)

	return &domain.TurnResult{
		Answer:     answer,
		Outcome:    outcome,
		Citations:  citations,
		Rewrite:    rewrite,
		Retrieved:  retrieved,
		TraceID:    traceID,
		LatencySec: latency,
	}, nil
}

// appendTrace builds and appends the audit record for one turn. Trace
// logging never fails the turn: append errors are logged and the
// fresh trace id is returned regardless.
func (uc *AskUseCase) appendTrace(
	ctx context.Context,
	sessionID, text, rewrite string,
	retrieved []domain.RetrievedChunk,
	answer string,
	citations []domain.Citation,
) string {
	summaries := make([]domain.TraceRetrieved, 0, len(retrieved))
	for _, r := range retrieved {
		summaries = append(summaries, domain.TraceRetrieved{
			ChunkID:       r.ChunkID,
			ThreadID:      r.ThreadID,
			MessageID:     r.MessageID,
			PageNo:        r.PageNo,
			ScoreBM25:     r.ScoreBM25,
			ScoreSem:      r.ScoreSem,
			ScoreCombined: r.ScoreCombined,
		})
	}

	record := domain.TraceRecord{
		TraceID:   uuid.NewString(),
		SessionID: sessionID,
		UserText:  text,
		Rewrite:   rewrite,
		Retrieved: summaries,
		Answer:    answer,
		Citations: citations,
		Timestamp: time.Now().UTC(),
	}
	// Thread id is best effort: a concurrently unknown session leaves
	// it null rather than failing the append.
	if session, err := uc.sessions.Get(sessionID); err == nil {
		threadID := session.ThreadID
		record.ThreadID = &threadID
	}

	if err := uc.traces.Append(ctx, record); err != nil {
		slog.Warn("trace_append_failed",
			"trace_id", record.TraceID,
			"session_id", sessionID,
			"error", err,
		)
	}
	return record.TraceID
}
