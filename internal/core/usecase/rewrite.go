package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
)

// maxEntityHints caps how many remembered values per category are
// injected into a rewritten query.
const maxEntityHints = 3

// rewriteQuery builds the retrieval query for one turn: it names the
// session's bound thread, summarizes known entities as a compact hint
// clause, and appends the original question verbatim. Pure function.
func rewriteQuery(text string, session domain.Session, maxHints int) string {
	if maxHints <= 0 {
		maxHints = maxEntityHints
	}

	bits := make([]string, 0, len(domain.EntityCategories))
	for _, category := range domain.EntityCategories {
		values := session.Entities.Category(category)
		if len(values) == 0 {
			continue
		}
		if len(values) > maxHints {
			values = values[:maxHints]
		}
		bits = append(bits, fmt.Sprintf("%s: %s", category, strings.Join(values, ", ")))
	}

	contextClause := ""
	if len(bits) > 0 {
		contextClause = "Known entities in this thread: " + strings.Join(bits, "; ") + ". "
	}

	return fmt.Sprintf("In thread %s, %sanswer this question: %s", session.ThreadID, contextClause, text)
}
