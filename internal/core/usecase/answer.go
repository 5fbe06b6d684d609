package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
)

const (
	noContentMessage = "I couldn't find any emails or content in this thread that clearly answer your question."

	lowConfidenceMessage = "Within this thread, I don't see any email that clearly answers this question. " +
		"You may need to search outside this thread or check other conversations."

	defaultConfidenceThreshold = 0.2
	defaultSnippetMaxChars     = 300
)

type answerParams struct {
	ConfidenceThreshold float64
	SnippetMaxChars     int
}

func (p answerParams) normalize() answerParams {
	out := p
	if out.ConfidenceThreshold <= 0 {
		out.ConfidenceThreshold = defaultConfidenceThreshold
	}
	if out.SnippetMaxChars <= 0 {
		out.SnippetMaxChars = defaultSnippetMaxChars
	}
	return out
}

// synthesizeAnswer builds a grounded answer from ranked results. The
// policy is an ordered chain; the first applicable outcome wins:
//
//  1. no results at all -> fixed no-content message
//  2. best combined score below the threshold, or no question-token
//     overlap with any result -> fixed low-confidence fallback
//  3. "when" questions get a direct-answer line naming the latest
//     dated result, when any result carries a parseable date
//  4. deduplicated snippet list with [msg: ...] citation markers
func synthesizeAnswer(question string, retrieved []domain.RetrievedChunk, params answerParams) (string, []domain.Citation, string) {
	params = params.normalize()
	citations := make([]domain.Citation, 0, len(retrieved))

	if len(retrieved) == 0 {
		return noContentMessage, citations, domain.OutcomeNoContent
	}

	tokens := questionTokens(question)
	bestScore := retrieved[0].ScoreCombined
	anyOverlap := false
	for _, r := range retrieved {
		if r.ScoreCombined > bestScore {
			bestScore = r.ScoreCombined
		}
		if !anyOverlap && hasTokenOverlap(tokens, r.Text) {
			anyOverlap = true
		}
	}
	if bestScore < params.ConfidenceThreshold || !anyOverlap {
		return lowConfidenceMessage, citations, domain.OutcomeLowConfidence
	}

	directLine := ""
	if strings.Contains(strings.ToLower(question), "when") {
		if best, ok := latestDatedResult(retrieved); ok {
			dt, _ := parseEmailDate(best.Date)
			directLine = fmt.Sprintf(
				"**Answer:** The most relevant approval email in this thread was sent on **%s** [msg: %s].",
				dt.Format("2006-01-02 15:04"), best.MessageID,
			)
		}
	}

	lines := make([]string, 0, len(retrieved)+6)
	if directLine != "" {
		lines = append(lines, directLine, "")
	}
	lines = append(lines, fmt.Sprintf("**Question:** %s", question), "", "**Relevant information:**")

	type snippetKey struct {
		messageID string
		snippet   string
	}
	seen := make(map[snippetKey]struct{}, len(retrieved))

	for _, r := range retrieved {
		snippet := truncateSnippet(strings.ReplaceAll(r.Text, "\n", " "), params.SnippetMaxChars)
		key := snippetKey{messageID: r.MessageID, snippet: snippet}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		marker := fmt.Sprintf("[msg: %s]", r.MessageID)
		if r.PageNo != nil {
			marker = fmt.Sprintf("[msg: %s, page: %d]", r.MessageID, *r.PageNo)
		}
		lines = append(lines, fmt.Sprintf("- %s %s", snippet, marker))
		citations = append(citations, domain.Citation{
			MessageID: r.MessageID,
			PageNo:    r.PageNo,
			ChunkID:   r.ChunkID,
		})
	}

	return strings.Join(lines, "\n"), citations, domain.OutcomeAnswered
}

// questionTokens lowercases the question and keeps whitespace-split
// words longer than 3 characters.
func questionTokens(question string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(question) {
		if len(w) > 3 {
			out[strings.ToLower(w)] = struct{}{}
		}
	}
	return out
}

const overlapCutset = ".,!?;:()[]"

func hasTokenOverlap(tokens map[string]struct{}, text string) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, w := range strings.Fields(text) {
		w = strings.Trim(strings.ToLower(w), overlapCutset)
		if _, ok := tokens[w]; ok {
			return true
		}
	}
	return false
}

// latestDatedResult picks the result with the latest parseable date.
// Results without a parseable date are skipped; ok is false when none
// qualifies.
func latestDatedResult(retrieved []domain.RetrievedChunk) (domain.RetrievedChunk, bool) {
	var best domain.RetrievedChunk
	var bestAt time.Time
	found := false
	for _, r := range retrieved {
		dt, ok := parseEmailDate(r.Date)
		if !ok {
			continue
		}
		if !found || dt.After(bestAt) {
			best = r
			bestAt = dt
			found = true
		}
	}
	return best, found
}

var emailDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseEmailDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range emailDateLayouts {
		if dt, err := time.Parse(layout, s); err == nil {
			return dt, true
		}
	}
	return time.Time{}, false
}

func truncateSnippet(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars]) + "…"
}
