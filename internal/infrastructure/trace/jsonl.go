// Package trace persists per-turn audit records. The JSONL file is
// the durable local log; additional sinks (queue fan-out) are layered
// on top with Fanout.
package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
)

// JSONLSink appends trace records to a single append-only file, one
// JSON object per line. Appends are serialized so records never
// interleave.
type JSONLSink struct {
	mu   sync.Mutex
	file *os.File
}

func NewJSONLSink(path string) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("trace: create dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}
	return &JSONLSink{file: file}, nil
}

func (s *JSONLSink) Append(_ context.Context, record domain.TraceRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("trace: marshal record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("trace: append record: %w", err)
	}
	return nil
}

func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
