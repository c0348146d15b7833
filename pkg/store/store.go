// Package store persists report records to an append-only CSV file, one
// record per line, and reads them back skipping malformed lines.
package store

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/itohio/godigester/pkg/pipeline"
)

// Store appends records to a single file. Appends are best-effort: the
// caller is expected to log and ignore failures, never retry.
type Store struct {
	path string

	mu sync.Mutex
	f  *os.File
}

// Open opens (creating if necessary) the record file for appending.
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open record file %s: %w", path, err)
	}
	return &Store{path: path, f: f}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Append writes one record as a single line.
func (s *Store) Append(rec pipeline.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return fmt.Errorf("store %s is closed", s.path)
	}

	line := rec.AppendText(nil)
	line = append(line, '\n')
	if _, err := s.f.Write(line); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// Close closes the backing file. Append returns an error afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// Load reads all records from a record file. Malformed lines are skipped and
// counted, never aborting the pass; blank lines are ignored without being
// counted.
func Load(path string) ([]pipeline.Record, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open record file %s: %w", path, err)
	}
	defer f.Close()

	var (
		records []pipeline.Record
		skipped int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		rec, err := pipeline.ParseRecord(line)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, skipped, fmt.Errorf("failed to read record file %s: %w", path, err)
	}

	return records, skipped, nil
}

// Write saves a set of records to a new file, replacing any existing
// content. Used by the capture tool to materialize a device dump.
func Write(path string, records []pipeline.Record) error {
	var buf []byte
	for _, rec := range records {
		buf = rec.AppendText(buf)
		buf = append(buf, '\n')
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("failed to write record file %s: %w", path, err)
	}
	return nil
}
