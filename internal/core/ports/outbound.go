package ports

import (
	"context"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
)

// SessionStore owns all mutable session state. Get returns a deep
// snapshot; every mutation goes through one of the update entry
// points below and nowhere else.
type SessionStore interface {
	Start(threadID string) domain.Session
	Get(sessionID string) (domain.Session, error)
	Reset(sessionID string)
	MergeEntities(sessionID string, found map[string][]string)
	RecordTurn(sessionID string, turn domain.Turn)
}

// CorpusIndex is the read-only view of the loaded corpus: chunk
// records with embeddings, the lexical index, and thread metadata.
// Safe for unsynchronized concurrent reads after load.
type CorpusIndex interface {
	Count() int
	Record(i int) domain.CorpusRecord
	// LexicalScores returns one relevance score per corpus record, in
	// record order. Higher is more relevant; the range is unbounded.
	LexicalScores(tokens []string) []float64
	ThreadIDs() []string
	ThreadMessages(threadID string) []domain.Message
}

// QueryEmbedder turns query text into a normalized vector aligned
// with the corpus embedding space.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TraceSink appends one immutable trace record per turn. Appends must
// preserve per-session order; failures are tolerated by callers.
type TraceSink interface {
	Append(ctx context.Context, record domain.TraceRecord) error
}
