// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package state persists what a harvest has already committed: the set of
// visited item identifiers and the resumption cursor. Both live under one
// state directory and are only advanced after the records they cover are
// durable at their destination.
package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/sgd-harvest/pkg/types"
)

// File names under the state directory.
const (
	CursorFile  = "cursor.yaml"
	VisitedFile = "visited.txt"
	VisitedDB   = "visited.db"
	ShardsDir   = "shards"
)

// Set is the cross-run record of committed item identifiers. Membership
// only grows.
type Set interface {
	Contains(ctx context.Context, id string) (bool, error)
	// MarkVisited durably adds ids; ids already present are ignored.
	MarkVisited(ctx context.Context, ids []string) error
	Len(ctx context.Context) (int, error)
	Close() error
}

// Store groups the visited set and cursor of one state directory.
type Store struct {
	Dir     string
	Visited Set
}

// Open creates the state directory if needed and opens the configured
// visited-set backend.
func Open(cfg types.StateConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	var (
		set Set
		err error
	)
	switch cfg.Visited {
	case types.VisitedSQLite:
		set, err = OpenSQLiteSet(filepath.Join(cfg.Dir, VisitedDB))
	case types.VisitedFile, "":
		set, err = OpenFileSet(filepath.Join(cfg.Dir, VisitedFile))
	default:
		return nil, fmt.Errorf("unknown visited backend %q", cfg.Visited)
	}
	if err != nil {
		return nil, err
	}
	return &Store{Dir: cfg.Dir, Visited: set}, nil
}

// ShardDir returns the directory holding unconfirmed shards.
func (s *Store) ShardDir() string {
	return filepath.Join(s.Dir, ShardsDir)
}

// Cursor loads the persisted cursor, or the initial cursor when none exists.
func (s *Store) Cursor() (types.Cursor, error) {
	return LoadCursor(filepath.Join(s.Dir, CursorFile))
}

// Commit records ids as visited and then persists cursor. Callers invoke it
// only once the records of ids are durable at their destination.
func (s *Store) Commit(ctx context.Context, ids []string, cursor types.Cursor) error {
	if err := s.Visited.MarkVisited(ctx, ids); err != nil {
		return fmt.Errorf("marking visited: %w", err)
	}
	if err := SaveCursor(filepath.Join(s.Dir, CursorFile), cursor); err != nil {
		return fmt.Errorf("saving cursor: %w", err)
	}
	return nil
}

// Close releases the visited set.
func (s *Store) Close() error {
	return s.Visited.Close()
}
