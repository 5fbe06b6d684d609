package chunking

import (
	"strings"
	"testing"
)

func TestSplitShortBodyStaysWhole(t *testing.T) {
	s := NewSplitter(100, 20)
	chunks := s.Split("Please review the attached invoice by Friday.")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestSplitOverlapsWindows(t *testing.T) {
	s := NewSplitter(10, 4)
	chunks := s.Split("abcdefghijklmnopqrst")
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != "abcdefghij" || chunks[1] != "ghijklmnop" {
		t.Fatalf("unexpected windows: %v", chunks)
	}
	// Overlap means each window repeats the tail of the previous one.
	if !strings.HasPrefix(chunks[1], chunks[0][6:]) {
		t.Fatalf("windows do not overlap: %v", chunks)
	}
}

func TestSplitEmptyAndWhitespace(t *testing.T) {
	s := NewSplitter(10, 2)
	if chunks := s.Split(""); chunks != nil {
		t.Fatalf("empty text should yield nil, got %v", chunks)
	}
	if chunks := s.Split("        "); len(chunks) != 0 {
		t.Fatalf("whitespace-only text should yield nothing, got %v", chunks)
	}
}

func TestNewSplitterClampsBadConfig(t *testing.T) {
	s := NewSplitter(0, -1)
	if s.ChunkSize != 900 || s.Overlap != 0 {
		t.Fatalf("defaults not applied: %+v", s)
	}
	s = NewSplitter(100, 100)
	if s.Overlap != 25 {
		t.Fatalf("overlap not clamped: %+v", s)
	}
}
