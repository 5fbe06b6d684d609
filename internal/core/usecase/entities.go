package usecase

import (
	"regexp"
	"sort"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
)

// Fixed pattern matchers for per-turn entity extraction. These are
// deliberately shallow: email-shaped tokens, document filenames,
// currency-ish numbers, and D/D/D dates.
var (
	emailPattern  = regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)
	filePattern   = regexp.MustCompile(`(?i)\b[\w\-.]+\.(?:pdf|docx?|xls[xm]?|pptx?|txt)\b`)
	amountPattern = regexp.MustCompile(`(?:\$|\bUSD\s*|\b)\d{1,3}(?:,\d{3})*(?:\.\d+)?\b`)
	datePattern   = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
)

// extractEntities scans the question and the retrieved evidence for
// the four entity categories. Sender/recipient addresses count as
// people. The result maps category name to a sorted deduplicated
// value list; categories without matches are omitted entirely.
func extractEntities(text string, retrieved []domain.RetrievedChunk) map[string][]string {
	people := make(map[string]struct{})
	files := make(map[string]struct{})
	amounts := make(map[string]struct{})
	dates := make(map[string]struct{})

	for _, r := range retrieved {
		for _, addr := range []string{r.FromAddr, r.ToAddr} {
			if addr == "" {
				continue
			}
			for _, m := range emailPattern.FindAllString(addr, -1) {
				people[m] = struct{}{}
			}
		}
	}

	texts := make([]string, 0, len(retrieved)+1)
	texts = append(texts, text)
	for _, r := range retrieved {
		texts = append(texts, r.Text)
	}

	for _, t := range texts {
		for _, m := range emailPattern.FindAllString(t, -1) {
			people[m] = struct{}{}
		}
		for _, m := range filePattern.FindAllString(t, -1) {
			files[m] = struct{}{}
		}
		dateSpans := datePattern.FindAllStringIndex(t, -1)
		for _, d := range dateSpans {
			dates[t[d[0]:d[1]]] = struct{}{}
		}
		// Date components like 3/4/2024 would otherwise register as
		// three separate amounts; skip matches inside a date span.
		for _, span := range amountPattern.FindAllStringIndex(t, -1) {
			if insideAnySpan(span, dateSpans) {
				continue
			}
			amounts[t[span[0]:span[1]]] = struct{}{}
		}
	}

	out := make(map[string][]string, 4)
	for category, set := range map[string]map[string]struct{}{
		domain.EntityPeople:  people,
		domain.EntityFiles:   files,
		domain.EntityAmounts: amounts,
		domain.EntityDates:   dates,
	} {
		if len(set) == 0 {
			continue
		}
		values := make([]string, 0, len(set))
		for v := range set {
			values = append(values, v)
		}
		sort.Strings(values)
		out[category] = values
	}
	return out
}

func insideAnySpan(span []int, spans [][]int) bool {
	for _, s := range spans {
		if span[0] >= s[0] && span[1] <= s[1] {
			return true
		}
	}
	return false
}
