package transcript

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const csvTimeLayout = "15:04:05"

var csvHeader = []string{"Time", "Speaker", "Text"}

// CSVStore writes a Time,Speaker,Text file, one row per turn. The file holds a
// single interview; Reset truncates it.
type CSVStore struct {
	mu   sync.Mutex
	path string
}

func NewCSVStore(path string) (*CSVStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create transcript directory: %w", err)
		}
	}
	return &CSVStore{path: path}, nil
}

// Path returns the file the store writes to.
func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) Append(_ context.Context, _ string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript csv: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat transcript csv: %w", err)
	}
	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	if err := w.Write([]string{turn.Time.Format(csvTimeLayout), turn.Speaker, turn.Text}); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	w.Flush()
	return w.Error()
}

func (s *CSVStore) Relabel(_ context.Context, _ string, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readRows()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		if len(row) >= 2 && row[1] == from {
			row[1] = to
		}
	}

	return rewriteCSV(s.path, rows)
}

// rewriteCSV replaces path with header plus rows through a temp file.
func rewriteCSV(path string, rows [][]string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create transcript csv: %w", err)
	}
	// no-op once the rename lands
	defer os.Remove(tmp)

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("rewrite csv rows: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close transcript csv: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace transcript csv: %w", err)
	}
	return nil
}

func (s *CSVStore) Reset(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove transcript csv: %w", err)
	}
	return nil
}

// ReadAll parses the file back into turns. Times carry only the clock part.
func (s *CSVStore) ReadAll() ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.readRows()
	if err != nil {
		return nil, err
	}
	out := make([]Turn, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		ts, _ := time.Parse(csvTimeLayout, row[0])
		out = append(out, Turn{Time: ts, Speaker: row[1], Text: row[2]})
	}
	return out, nil
}

func (s *CSVStore) Close() error { return nil }

// readRows returns data rows without the header. Caller holds s.mu.
func (s *CSVStore) readRows() ([][]string, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open transcript csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows [][]string
	header := true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read transcript csv: %w", err)
		}
		if header {
			header = false
			continue
		}
		rows = append(rows, rec)
	}
	return rows, nil
}
