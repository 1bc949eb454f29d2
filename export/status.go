package export

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// StatusLog tracks which files have been confirmed stored on the remote
// node. It is backed by a newline-delimited file of paths, read once on
// open and appended to on every successful send, so an interrupted
// transfer can resume without re-sending.
type StatusLog struct {
	mu   sync.Mutex
	file *os.File
	sent map[string]bool
}

// OpenStatusLog loads the status file at path, creating it when absent.
// An empty path yields an in-memory log with no persistence.
func OpenStatusLog(path string) (*StatusLog, error) {
	log := &StatusLog{sent: make(map[string]bool)}
	if path == "" {
		return log, nil
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open status file %s: %w", path, err)
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			log.sent[line] = true
		}
	}
	if err := scanner.Err(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read status file %s: %w", path, err)
	}

	if _, err := file.Seek(0, 2); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to seek status file %s: %w", path, err)
	}

	log.file = file
	return log, nil
}

// Contains reports whether the file at path was previously confirmed
// stored. A listed file is trusted without re-verification.
func (s *StatusLog) Contains(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[path]
}

// MarkSent records a confirmed store in memory and appends it to the
// status file.
func (s *StatusLog) MarkSent(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sent[path] {
		return nil
	}
	s.sent[path] = true

	if s.file == nil {
		return nil
	}
	if _, err := fmt.Fprintln(s.file, path); err != nil {
		return fmt.Errorf("failed to append to status file: %w", err)
	}
	return nil
}

// Len returns the number of files recorded as sent.
func (s *StatusLog) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// Close releases the underlying status file.
func (s *StatusLog) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
