package usecase

import (
	"strings"
	"testing"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
)

func TestRewriteEmptyMemoryHasNoHintClause(t *testing.T) {
	session := domain.Session{ID: "s", ThreadID: "thread-9"}

	got := rewriteQuery("who approved it?", session, 0)

	want := "In thread thread-9, answer this question: who approved it?"
	if got != want {
		t.Fatalf("rewrite = %q, want %q", got, want)
	}
}

func TestRewriteInjectsEntityHintsInFixedOrder(t *testing.T) {
	session := domain.Session{
		ID:       "s",
		ThreadID: "thread-9",
		Entities: domain.EntityMemory{
			People:  []string{"a@x.com"},
			Files:   []string{"q3.pdf"},
			Amounts: []string{"1,200"},
			Dates:   []string{"3/4/2024"},
		},
	}

	got := rewriteQuery("status?", session, 0)

	want := "In thread thread-9, Known entities in this thread: " +
		"people: a@x.com; files: q3.pdf; amounts: 1,200; dates: 3/4/2024. " +
		"answer this question: status?"
	if got != want {
		t.Fatalf("rewrite = %q, want %q", got, want)
	}
}

func TestRewriteCapsHintsAtThreePerCategory(t *testing.T) {
	session := domain.Session{
		ID:       "s",
		ThreadID: "t",
		Entities: domain.EntityMemory{
			People: []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com"},
		},
	}

	got := rewriteQuery("q", session, 0)

	if strings.Contains(got, "d@x.com") {
		t.Fatalf("fourth entity should be dropped, got %q", got)
	}
	if !strings.Contains(got, "people: a@x.com, b@x.com, c@x.com") {
		t.Fatalf("expected first three people in order, got %q", got)
	}
}

func TestRewriteQuestionAppearsVerbatimAsSuffix(t *testing.T) {
	session := domain.Session{ID: "s", ThreadID: "t-1"}
	question := "When was the Q3 budget $5,000 approved?"

	got := rewriteQuery(question, session, 0)

	if !strings.HasSuffix(got, question) {
		t.Fatalf("rewrite must end with the question verbatim, got %q", got)
	}
	if !strings.Contains(got, "t-1") {
		t.Fatalf("rewrite must name the thread, got %q", got)
	}
}
