// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package state

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// FileSet is a visited set kept as an append-only newline-delimited log and
// mirrored in memory.
type FileSet struct {
	mu  sync.Mutex
	f   *os.File
	ids map[string]struct{}
}

// OpenFileSet loads the log at path, creating it when absent. A trailing
// line without a newline is the remnant of an interrupted append and is
// truncated away.
func OpenFileSet(path string) (*FileSet, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading visited log: %w", err)
	}

	s := &FileSet{ids: make(map[string]struct{})}
	if n := len(data); n > 0 && data[n-1] != '\n' {
		data = data[:bytes.LastIndexByte(data, '\n')+1]
		if err := os.Truncate(path, int64(len(data))); err != nil {
			return nil, fmt.Errorf("truncating torn visited log: %w", err)
		}
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			s.ids[id] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning visited log: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening visited log: %w", err)
	}
	s.f = f
	return s, nil
}

func (s *FileSet) Contains(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok, nil
}

// MarkVisited appends the new ids and syncs the log before they become
// visible to Contains.
func (s *FileSet) MarkVisited(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	var fresh []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || strings.ContainsAny(id, "\r\n") {
			continue
		}
		if _, ok := s.ids[id]; ok {
			continue
		}
		buf.WriteString(id)
		buf.WriteByte('\n')
		fresh = append(fresh, id)
	}
	if len(fresh) == 0 {
		return nil
	}

	if _, err := s.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("appending visited log: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("syncing visited log: %w", err)
	}
	for _, id := range fresh {
		s.ids[id] = struct{}{}
	}
	return nil
}

func (s *FileSet) Len(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids), nil
}

func (s *FileSet) Close() error {
	return s.f.Close()
}
