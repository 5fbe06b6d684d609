// Package corpus loads the prebuilt retrieval corpus from disk and
// serves it as an immutable in-memory index.
package corpus

import (
	"sort"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/lexical"
)

// Store is the loaded corpus: chunk records joined with their
// embeddings, a BM25 index over the chunk texts, and thread metadata.
// Read-only after Load, so concurrent reads need no locking.
type Store struct {
	records   []domain.CorpusRecord
	lex       *lexical.Index
	threads   map[string][]string
	messages  map[string]domain.Message
	threadIDs []string
}

func (s *Store) Count() int { return len(s.records) }

func (s *Store) Record(i int) domain.CorpusRecord { return s.records[i] }

func (s *Store) LexicalScores(tokens []string) []float64 {
	return s.lex.Scores(tokens)
}

// ThreadIDs returns all known thread ids in sorted order.
func (s *Store) ThreadIDs() []string {
	out := make([]string, len(s.threadIDs))
	copy(out, s.threadIDs)
	return out
}

// ThreadMessages returns the messages of a thread in manifest order.
// Message ids without metadata are skipped; an unknown thread yields
// an empty slice.
func (s *Store) ThreadMessages(threadID string) []domain.Message {
	ids := s.threads[threadID]
	out := make([]domain.Message, 0, len(ids))
	for _, id := range ids {
		msg, ok := s.messages[id]
		if !ok {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func newStore(records []domain.CorpusRecord, lex *lexical.Index, threads map[string][]string, messages map[string]domain.Message) *Store {
	ids := make([]string, 0, len(threads))
	for id := range threads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &Store{
		records:   records,
		lex:       lex,
		threads:   threads,
		messages:  messages,
		threadIDs: ids,
	}
}
