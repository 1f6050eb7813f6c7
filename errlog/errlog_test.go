package errlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAppend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	s.Append("transcribe", "transcription failed (401): denied")
	s.Append("insert text", "line one\nline two")
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	s.Append("dropped", "after close")

	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), data)
	}
	if !strings.Contains(lines[0], `level=ERROR`) || !strings.Contains(lines[0], `msg=transcribe`) ||
		!strings.Contains(lines[0], `message="transcription failed (401): denied"`) {
		t.Errorf("line 0 = %s", lines[0])
	}
	if !strings.Contains(lines[1], `message="line one\nline two"`) {
		t.Errorf("line 1 = %s", lines[1])
	}
}

func TestAppendReopens(t *testing.T) {
	dir := t.TempDir()
	for _, msg := range []string{"first", "second"} {
		s, err := Open(dir)
		if err != nil {
			t.Fatal(err)
		}
		s.Append("start recording", msg)
		s.Close()
	}
	data, _ := os.ReadFile(filepath.Join(dir, fileName))
	if n := strings.Count(string(data), "\n"); n != 2 {
		t.Errorf("file has %d records, want 2", n)
	}
}

func TestNilSink(t *testing.T) {
	var s *Sink
	s.Append("x", "y")
}
