package ingest

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/corpus"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/extractor"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/lexical"
)

type memOpener map[string][]byte

func (m memOpener) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type embedderFake struct {
	batches [][]string
}

func (e *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.batches = append(e.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

const exportFixture = `{"message_id":"m1","thread_id":"t1","from":"alice@corp.com","to":"bob@corp.com","date":"2024-03-01T10:00:00","subject":"Invoice","body":"Please approve the invoice for $1,200.50 by Friday.","attachments":["invoice.txt"]}
{"message_id":"m2","thread_id":"t1","from":"bob@corp.com","to":"alice@corp.com","date":"2024-03-02T09:00:00","subject":"Re: Invoice","body":"Approved, go ahead."}
{"message_id":"m3","thread_id":"t2","from":"carol@corp.com","to":"dave@corp.com","date":"2024-03-05T12:00:00","subject":"Lunch","body":"Lunch on Friday?"}`

func writeExport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "emails.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write export: %v", err)
	}
	return path
}

func newPipeline(embedder Embedder) *Pipeline {
	opener := memOpener{"invoice.txt": []byte("Invoice total: $1,200.50 due 3/15/2024")}
	return NewPipeline(chunking.NewSplitter(900, 150), extractor.New(opener), embedder, 2, nil)
}

func TestRunWritesLoadableCorpus(t *testing.T) {
	embedder := &embedderFake{}
	pipeline := newPipeline(embedder)
	outDir := t.TempDir()

	if err := pipeline.Run(context.Background(), writeExport(t, exportFixture), outDir); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	store, err := corpus.Load(outDir, lexical.DefaultK1, lexical.DefaultB)
	if err != nil {
		t.Fatalf("output corpus does not load: %v", err)
	}

	// 3 email bodies plus one attachment page.
	if store.Count() != 4 {
		t.Fatalf("Count = %d, want 4", store.Count())
	}

	var attachment *domain.Chunk
	for i := 0; i < store.Count(); i++ {
		chunk := store.Record(i).Chunk
		if chunk.Source == domain.SourceAttachment {
			c := chunk
			attachment = &c
		}
	}
	if attachment == nil {
		t.Fatalf("no attachment chunk produced")
	}
	if attachment.PageNo == nil || *attachment.PageNo != 1 {
		t.Fatalf("attachment page_no = %v", attachment.PageNo)
	}
	if attachment.MessageID != "m1" || !strings.Contains(attachment.Text, "$1,200.50") {
		t.Fatalf("unexpected attachment chunk: %+v", attachment)
	}

	ids := store.ThreadIDs()
	if len(ids) != 2 || ids[0] != "t1" || ids[1] != "t2" {
		t.Fatalf("ThreadIDs = %v", ids)
	}
	if msgs := store.ThreadMessages("t1"); len(msgs) != 2 || msgs[0].MessageID != "m1" {
		t.Fatalf("t1 messages = %+v", msgs)
	}
}

func TestRunBatchesEmbeddings(t *testing.T) {
	embedder := &embedderFake{}
	pipeline := newPipeline(embedder)

	if err := pipeline.Run(context.Background(), writeExport(t, exportFixture), t.TempDir()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// 4 chunks at batch size 2.
	if len(embedder.batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(embedder.batches))
	}
	for _, batch := range embedder.batches {
		if len(batch) > 2 {
			t.Fatalf("batch exceeds size: %v", batch)
		}
	}
}

func TestRunRejectsDuplicateMessageID(t *testing.T) {
	export := `{"message_id":"m1","thread_id":"t1","body":"a"}
{"message_id":"m1","thread_id":"t1","body":"b"}`
	err := newPipeline(&embedderFake{}).Run(context.Background(), writeExport(t, export), t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "duplicate message_id") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestRunRejectsMissingAttachment(t *testing.T) {
	export := `{"message_id":"m1","thread_id":"t1","body":"a","attachments":["gone.pdf"]}`
	err := newPipeline(&embedderFake{}).Run(context.Background(), writeExport(t, export), t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "gone.pdf") {
		t.Fatalf("expected attachment error, got %v", err)
	}
}

func TestRunRejectsEmptyExport(t *testing.T) {
	err := newPipeline(&embedderFake{}).Run(context.Background(), writeExport(t, ""), t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "no emails") {
		t.Fatalf("expected empty export error, got %v", err)
	}
}
