package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
	"github.com/kirillkom/email-thread-rag/internal/core/ports"
)

// TimelineUseCase renders a markdown timeline of the messages in the
// thread a session is bound to.
type TimelineUseCase struct {
	sessions ports.SessionStore
	corpus   ports.CorpusIndex
}

func NewTimelineUseCase(sessions ports.SessionStore, corpus ports.CorpusIndex) *TimelineUseCase {
	return &TimelineUseCase{sessions: sessions, corpus: corpus}
}

func (uc *TimelineUseCase) Timeline(sessionID string) (string, error) {
	session, err := uc.sessions.Get(sessionID)
	if err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}
	return renderTimeline(session.ThreadID, uc.corpus.ThreadMessages(session.ThreadID)), nil
}

// renderTimeline formats one line per message, sorted by the raw date
// string. Parseable dates are reformatted; anything else is shown
// verbatim.
func renderTimeline(threadID string, messages []domain.Message) string {
	if len(messages) == 0 {
		return fmt.Sprintf("No messages found for thread %s.", threadID)
	}

	type entry struct {
		rawDate string
		line    string
	}
	entries := make([]entry, 0, len(messages))
	for _, m := range messages {
		sender := m.From
		if sender == "" {
			sender = "(unknown)"
		}
		subject := m.Subject
		if subject == "" {
			subject = "(no subject)"
		}
		dateText := m.Date
		if dt, ok := parseEmailDate(m.Date); ok {
			dateText = dt.Format("2006-01-02 15:04")
		}
		entries = append(entries, entry{
			rawDate: m.Date,
			line:    fmt.Sprintf("- **%s** | **%s** | _%s_ [msg: %s]", dateText, sender, subject, m.MessageID),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].rawDate < entries[j].rawDate
	})

	lines := make([]string, 0, len(entries)+2)
	lines = append(lines, fmt.Sprintf("### Timeline for thread %s", threadID), "")
	for _, e := range entries {
		lines = append(lines, e.line)
	}
	return strings.Join(lines, "\n")
}
