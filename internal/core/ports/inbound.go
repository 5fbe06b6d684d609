package ports

import (
	"context"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
)

// SessionLifecycle is the inbound contract for session management.
type SessionLifecycle interface {
	Start(threadID string) domain.Session
	Get(sessionID string) (domain.Session, error)
	Reset(sessionID string)
}

// QuestionService is the inbound contract for one ask turn.
type QuestionService interface {
	Ask(ctx context.Context, sessionID, text string, searchOutsideThread bool) (*domain.TurnResult, error)
}

// TimelineService renders the message timeline of a session's thread.
type TimelineService interface {
	Timeline(sessionID string) (string, error)
}
