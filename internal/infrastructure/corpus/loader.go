package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
	"github.com/kirillkom/email-thread-rag/internal/infrastructure/lexical"
)

const (
	chunksFile     = "chunks.jsonl"
	embeddingsFile = "embeddings.jsonl"
	threadsFile    = "threads.json"
	messagesFile   = "messages.json"
)

// scanner line cap; attachment pages can be large
const maxLineBytes = 4 * 1024 * 1024

type embeddingLine struct {
	ChunkID string    `json:"chunk_id"`
	Vector  []float32 `json:"vector"`
}

// Load reads the four corpus files from dir and builds the in-memory
// store. Any structural problem (duplicate or empty chunk id, empty
// chunk text, embedding count or id mismatch) is an error: a corpus
// that loads is a corpus the pipeline can trust.
func Load(dir string, k1, b float64) (*Store, error) {
	chunks, err := loadChunks(filepath.Join(dir, chunksFile))
	if err != nil {
		return nil, err
	}

	vectors, err := loadEmbeddings(filepath.Join(dir, embeddingsFile))
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("corpus: %d chunks but %d embeddings", len(chunks), len(vectors))
	}

	records := make([]domain.CorpusRecord, len(chunks))
	docs := make([][]string, len(chunks))
	for i, chunk := range chunks {
		vec, ok := vectors[chunk.ChunkID]
		if !ok {
			return nil, fmt.Errorf("corpus: chunk %q has no embedding", chunk.ChunkID)
		}
		records[i] = domain.CorpusRecord{Chunk: chunk, Vector: normalize(vec)}
		docs[i] = strings.Fields(chunk.Text)
	}

	var threads map[string][]string
	if err := loadJSON(filepath.Join(dir, threadsFile), &threads); err != nil {
		return nil, err
	}
	var messages map[string]domain.Message
	if err := loadJSON(filepath.Join(dir, messagesFile), &messages); err != nil {
		return nil, err
	}
	for id, msg := range messages {
		if msg.MessageID == "" {
			msg.MessageID = id
			messages[id] = msg
		}
	}

	return newStore(records, lexical.NewIndex(docs, k1, b), threads, messages), nil
}

func loadChunks(path string) ([]domain.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: open chunks: %w", err)
	}
	defer f.Close()

	var chunks []domain.Chunk
	seen := make(map[string]struct{})

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var chunk domain.Chunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, fmt.Errorf("corpus: chunks line %d: %w", lineNo, err)
		}
		if chunk.ChunkID == "" {
			return nil, fmt.Errorf("corpus: chunks line %d: empty chunk_id", lineNo)
		}
		if _, dup := seen[chunk.ChunkID]; dup {
			return nil, fmt.Errorf("corpus: duplicate chunk_id %q", chunk.ChunkID)
		}
		seen[chunk.ChunkID] = struct{}{}
		if chunk.Text == "" {
			return nil, fmt.Errorf("corpus: chunk %q has empty text", chunk.ChunkID)
		}
		if chunk.Source == "" {
			chunk.Source = domain.SourceEmail
		}
		chunks = append(chunks, chunk)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("corpus: read chunks: %w", err)
	}
	return chunks, nil
}

func loadEmbeddings(path string) (map[string][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: open embeddings: %w", err)
	}
	defer f.Close()

	vectors := make(map[string][]float32)

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var eb embeddingLine
		if err := json.Unmarshal(line, &eb); err != nil {
			return nil, fmt.Errorf("corpus: embeddings line %d: %w", lineNo, err)
		}
		if eb.ChunkID == "" {
			return nil, fmt.Errorf("corpus: embeddings line %d: empty chunk_id", lineNo)
		}
		if _, dup := vectors[eb.ChunkID]; dup {
			return nil, fmt.Errorf("corpus: duplicate embedding for chunk %q", eb.ChunkID)
		}
		if len(eb.Vector) == 0 {
			return nil, fmt.Errorf("corpus: empty vector for chunk %q", eb.ChunkID)
		}
		vectors[eb.ChunkID] = eb.Vector
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("corpus: read embeddings: %w", err)
	}
	return vectors, nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("corpus: open %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("corpus: parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
