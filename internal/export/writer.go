package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	SummaryFile    = "interview_summary.txt"
	StructuredFile = "interview_responses.json"
)

// Writer persists the two export artifacts.
type Writer interface {
	WriteSummary(ctx context.Context, summary string) error
	WriteStructured(ctx context.Context, outcome Outcome) error
}

// FileWriter writes artifacts into Dir, replacing files from earlier runs.
type FileWriter struct {
	Dir string
}

func NewFileWriter(dir string) *FileWriter {
	if dir == "" {
		dir = "."
	}
	return &FileWriter{Dir: dir}
}

func (w *FileWriter) WriteSummary(_ context.Context, summary string) error {
	return w.write(SummaryFile, []byte(summary))
}

func (w *FileWriter) WriteStructured(_ context.Context, outcome Outcome) error {
	b, err := json.MarshalIndent(outcome, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal structured export: %w", err)
	}
	return w.write(StructuredFile, b)
}

func (w *FileWriter) write(name string, data []byte) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(w.Dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// MemoryWriter keeps the latest artifacts in memory.
type MemoryWriter struct {
	mu         sync.Mutex
	summary    string
	structured Outcome
}

func (w *MemoryWriter) WriteSummary(_ context.Context, summary string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.summary = summary
	return nil
}

func (w *MemoryWriter) WriteStructured(_ context.Context, outcome Outcome) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.structured = outcome
	return nil
}

func (w *MemoryWriter) Latest() (string, Outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.summary, w.structured
}
