// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSet is a visited set stored in a SQLite table.
type SQLiteSet struct {
	db *sql.DB
}

// OpenSQLiteSet opens or creates the database at path.
func OpenSQLiteSet(path string) (*SQLiteSet, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("opening visited database: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS visited (
		id TEXT PRIMARY KEY,
		visited_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteSet{db: db}, nil
}

func (s *SQLiteSet) Contains(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM visited WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying visited: %w", err)
	}
	return true, nil
}

// MarkVisited inserts ids in one transaction.
func (s *SQLiteSet) MarkVisited(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO visited (id, visited_at) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, id, now); err != nil {
			return fmt.Errorf("inserting %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteSet) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM visited`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting visited: %w", err)
	}
	return n, nil
}

func (s *SQLiteSet) Close() error {
	return s.db.Close()
}
