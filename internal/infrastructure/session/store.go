// Package session holds the in-memory session store. Sessions live
// for the process lifetime; there is no expiry and no persistence.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
)

// Store owns every session. All reads hand out deep snapshots and all
// mutations happen under the lock, so concurrent turns on different
// sessions never interfere. Two concurrent turns on the same session
// are last-writer-wins on entity merges; callers are expected to keep
// at most one turn in flight per session.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	maxTurns int
}

func NewStore(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = domain.MaxRecentTurns
	}
	return &Store{
		sessions: make(map[string]*domain.Session),
		maxTurns: maxTurns,
	}
}

// Start allocates a fresh session bound to threadID. It always
// succeeds; the thread binding is immutable afterwards.
func (s *Store) Start(threadID string) domain.Session {
	now := time.Now().UTC()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess.Clone()
}

// Get returns a snapshot of the session or ErrSessionNotFound.
func (s *Store) Get(sessionID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Reset replaces the session's turn history and entity memory with
// fresh empty state while keeping the id and thread binding. Unknown
// ids are a silent no-op.
func (s *Store) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	s.sessions[sessionID] = &domain.Session{
		ID:        sess.ID,
		ThreadID:  sess.ThreadID,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: time.Now().UTC(),
	}
}

// MergeEntities appends newly seen values per category, preserving
// first-seen order and skipping exact duplicates. This is the only
// mutator of entity memory. Unknown ids and empty input are no-ops.
func (s *Store) MergeEntities(sessionID string, found map[string][]string) {
	if len(found) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	for _, category := range domain.EntityCategories {
		if values, present := found[category]; present {
			sess.Entities.Merge(category, values)
		}
	}
	sess.UpdatedAt = time.Now().UTC()
}

// RecordTurn appends a question/answer pair, evicting the oldest turn
// beyond the cap. Unknown ids are a silent no-op.
func (s *Store) RecordTurn(sessionID string, turn domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	sess.RecentTurns = append(sess.RecentTurns, turn)
	if len(sess.RecentTurns) > s.maxTurns {
		sess.RecentTurns = sess.RecentTurns[len(sess.RecentTurns)-s.maxTurns:]
	}
	sess.UpdatedAt = time.Now().UTC()
}
