// Package ingest builds the retrieval corpus offline: it reads a raw
// email export plus attachments, splits and extracts text, embeds
// every chunk, and writes the four files the API loads at startup.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/extractor"
)

// RawEmail is one line of the export file.
type RawEmail struct {
	MessageID   string   `json:"message_id"`
	ThreadID    string   `json:"thread_id"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Date        string   `json:"date"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments,omitempty"`
}

// Embedder is the batch side of the embedding client.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Pipeline struct {
	splitter  *chunking.Splitter
	extractor *extractor.Extractor
	embedder  Embedder
	batchSize int
	logger    *slog.Logger
}

func NewPipeline(splitter *chunking.Splitter, ex *extractor.Extractor, embedder Embedder, batchSize int, logger *slog.Logger) *Pipeline {
	if batchSize <= 0 {
		batchSize = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		splitter:  splitter,
		extractor: ex,
		embedder:  embedder,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run reads the export at emailsPath and writes chunks.jsonl,
// embeddings.jsonl, threads.json, and messages.json into outDir.
func (p *Pipeline) Run(ctx context.Context, emailsPath, outDir string) error {
	emails, err := readEmails(emailsPath)
	if err != nil {
		return err
	}
	if len(emails) == 0 {
		return fmt.Errorf("ingest: no emails in %s", emailsPath)
	}

	chunks, threads, messages, err := p.buildChunks(ctx, emails)
	if err != nil {
		return err
	}
	p.logger.Info("corpus_built",
		"emails", len(emails),
		"chunks", len(chunks),
		"threads", len(threads),
	)

	vectors, err := p.embedAll(ctx, chunks)
	if err != nil {
		return err
	}

	return writeCorpus(outDir, chunks, vectors, threads, messages)
}

func (p *Pipeline) buildChunks(ctx context.Context, emails []RawEmail) ([]domain.Chunk, map[string][]string, map[string]domain.Message, error) {
	var chunks []domain.Chunk
	threads := make(map[string][]string)
	messages := make(map[string]domain.Message)

	for _, email := range emails {
		if email.MessageID == "" || email.ThreadID == "" {
			return nil, nil, nil, fmt.Errorf("ingest: email missing message_id or thread_id: %+v", email)
		}
		if _, dup := messages[email.MessageID]; dup {
			return nil, nil, nil, fmt.Errorf("ingest: duplicate message_id %q", email.MessageID)
		}

		messages[email.MessageID] = domain.Message{
			MessageID: email.MessageID,
			ThreadID:  email.ThreadID,
			From:      email.From,
			Subject:   email.Subject,
			Date:      email.Date,
		}
		threads[email.ThreadID] = append(threads[email.ThreadID], email.MessageID)

		for i, text := range p.splitter.Split(email.Body) {
			chunks = append(chunks, domain.Chunk{
				ChunkID:   fmt.Sprintf("%s::body::%d", email.MessageID, i),
				ThreadID:  email.ThreadID,
				MessageID: email.MessageID,
				Source:    domain.SourceEmail,
				Text:      text,
				FromAddr:  email.From,
				ToAddr:    email.To,
				Date:      email.Date,
			})
		}

		for _, attachment := range email.Attachments {
			pages, err := p.extractor.ExtractPages(ctx, attachment)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("ingest: attachment %s of %s: %w", attachment, email.MessageID, err)
			}
			for idx, page := range pages {
				if page == "" {
					continue
				}
				pageNo := idx + 1
				chunks = append(chunks, domain.Chunk{
					ChunkID:   fmt.Sprintf("%s::%s::p%d", email.MessageID, filepath.Base(attachment), pageNo),
					ThreadID:  email.ThreadID,
					MessageID: email.MessageID,
					PageNo:    &pageNo,
					Source:    domain.SourceAttachment,
					Text:      page,
					Date:      email.Date,
				})
			}
		}
	}
	return chunks, threads, messages, nil
}

func (p *Pipeline) embedAll(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}

		batch, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("ingest: embed batch at %d: %w", start, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("ingest: embed batch at %d: %d texts but %d vectors", start, len(texts), len(batch))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func readEmails(path string) ([]RawEmail, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open export: %w", err)
	}
	defer f.Close()

	var emails []RawEmail
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var email RawEmail
		if err := json.Unmarshal(line, &email); err != nil {
			return nil, fmt.Errorf("ingest: export line %d: %w", lineNo, err)
		}
		emails = append(emails, email)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ingest: read export: %w", err)
	}
	return emails, nil
}

func writeCorpus(outDir string, chunks []domain.Chunk, vectors [][]float32, threads map[string][]string, messages map[string]domain.Message) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("ingest: create out dir: %w", err)
	}

	chunksOut, err := os.Create(filepath.Join(outDir, "chunks.jsonl"))
	if err != nil {
		return fmt.Errorf("ingest: create chunks.jsonl: %w", err)
	}
	defer chunksOut.Close()
	embedOut, err := os.Create(filepath.Join(outDir, "embeddings.jsonl"))
	if err != nil {
		return fmt.Errorf("ingest: create embeddings.jsonl: %w", err)
	}
	defer embedOut.Close()

	chunkEnc := json.NewEncoder(chunksOut)
	embedEnc := json.NewEncoder(embedOut)
	for i, chunk := range chunks {
		if err := chunkEnc.Encode(chunk); err != nil {
			return fmt.Errorf("ingest: write chunk %s: %w", chunk.ChunkID, err)
		}
		line := struct {
			ChunkID string    `json:"chunk_id"`
			Vector  []float32 `json:"vector"`
		}{ChunkID: chunk.ChunkID, Vector: vectors[i]}
		if err := embedEnc.Encode(line); err != nil {
			return fmt.Errorf("ingest: write embedding %s: %w", chunk.ChunkID, err)
		}
	}

	if err := writeJSON(filepath.Join(outDir, "threads.json"), threads); err != nil {
		return err
	}
	return writeJSON(filepath.Join(outDir, "messages.json"), messages)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("ingest: marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("ingest: write %s: %w", filepath.Base(path), err)
	}
	return nil
}
