package trace

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
)

func sampleRecord(id string) domain.TraceRecord {
	tid := "t1"
	return domain.TraceRecord{
		TraceID:   id,
		SessionID: "s1",
		ThreadID:  &tid,
		UserText:  "who approved the budget?",
		Rewrite:   "In thread t1, answer this question: who approved the budget?",
		Answer:    "**Answer:** see below",
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestJSONLSinkAppendsOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "traces.jsonl")
	sink, err := NewJSONLSink(path)
	if err != nil {
		t.Fatalf("NewJSONLSink: %v", err)
	}
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Append(ctx, sampleRecord("tr1")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := sink.Append(ctx, sampleRecord("tr2")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read traces: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var decoded domain.TraceRecord
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if decoded.TraceID != "tr2" || decoded.ThreadID == nil || *decoded.ThreadID != "t1" {
		t.Fatalf("unexpected record: %+v", decoded)
	}
}

func TestJSONLSinkReopensExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")

	first, err := NewJSONLSink(path)
	if err != nil {
		t.Fatalf("NewJSONLSink: %v", err)
	}
	if err := first.Append(context.Background(), sampleRecord("tr1")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	first.Close()

	second, err := NewJSONLSink(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if err := second.Append(context.Background(), sampleRecord("tr2")); err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}

	data, _ := os.ReadFile(path)
	if got := strings.Count(string(data), "\n"); got != 2 {
		t.Fatalf("expected both records preserved, got %d lines", got)
	}
}

type stubSink struct {
	records []domain.TraceRecord
	err     error
}

func (s *stubSink) Append(_ context.Context, record domain.TraceRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

func TestFanoutContinuesPastFailingSink(t *testing.T) {
	failing := &stubSink{err: errors.New("queue down")}
	healthy := &stubSink{}
	fanout := NewFanout(failing, healthy)

	err := fanout.Append(context.Background(), sampleRecord("tr1"))
	if err == nil || !strings.Contains(err.Error(), "queue down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(healthy.records) != 1 {
		t.Fatalf("healthy sink should still receive the record")
	}
}

func TestFanoutAllHealthy(t *testing.T) {
	a, b := &stubSink{}, &stubSink{}
	if err := NewFanout(a, b).Append(context.Background(), sampleRecord("tr1")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(a.records) != 1 || len(b.records) != 1 {
		t.Fatalf("both sinks should receive the record")
	}
}
