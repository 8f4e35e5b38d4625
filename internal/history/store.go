// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history persists search terms in a SQLite database so that name
// and content histories survive between runs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/filescout/internal/search"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrInvalidKind   = errors.New("invalid history kind")
	ErrEmptyTerm     = errors.New("empty history term")
	ErrDatabaseError = errors.New("database error")
	ErrClosed        = errors.New("history store closed")
)

// History kinds.
const (
	KindName    = search.HistoryName
	KindContent = search.HistoryContent
)

// =============================================================================
// STORE
// =============================================================================

// Config holds history store configuration.
type Config struct {
	// DatabasePath is where to store the SQLite database
	DatabasePath string

	// MaxEntries is the number of terms kept per kind (0 = unlimited)
	MaxEntries int
}

// DefaultConfig returns a configuration storing history.db in dir.
func DefaultConfig(dir string) Config {
	return Config{
		DatabasePath: filepath.Join(dir, "history.db"),
		MaxEntries:   100,
	}
}

// Entry is one stored term.
type Entry struct {
	Kind   string
	Term   string
	UsedAt time.Time
	Uses   int
}

// Store is a SQLite-backed search history. It implements
// search.HistoryRecorder.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	config Config
	now    func() time.Time
}

// Open opens or creates the history database.
func Open(config Config) (*Store, error) {
	if config.DatabasePath == "" {
		return nil, errors.New("database path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(config.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	return &Store{db: db, config: config, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func validKind(kind string) error {
	switch kind {
	case KindName, KindContent:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
}

// Record stores term, or marks an existing term as just used. Older terms
// beyond MaxEntries are pruned.
func (s *Store) Record(ctx context.Context, kind, term string) error {
	if err := validKind(kind); err != nil {
		return err
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return ErrEmptyTerm
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (kind, term, used_at) VALUES (?, ?, ?)
		ON CONFLICT(kind, term) DO UPDATE SET used_at = excluded.used_at, uses = uses + 1`,
		kind, term, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("%w: record: %v", ErrDatabaseError, err)
	}

	if s.config.MaxEntries > 0 {
		if _, err := s.pruneKind(ctx, kind, s.config.MaxEntries); err != nil {
			return err
		}
	}
	return nil
}

// Recent returns up to limit entries of kind, most recently used first.
// An empty kind returns entries of every kind.
func (s *Store) Recent(ctx context.Context, kind string, limit int) ([]Entry, error) {
	if kind != "" {
		if err := validKind(kind); err != nil {
			return nil, err
		}
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, term, used_at, uses FROM history
		WHERE (? = '' OR kind = ?)
		ORDER BY used_at DESC, id DESC
		LIMIT ?`, kind, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: recent: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e      Entry
			usedAt int64
		)
		if err := rows.Scan(&e.Kind, &e.Term, &usedAt, &e.Uses); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrDatabaseError, err)
		}
		e.UsedAt = time.Unix(0, usedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: recent: %v", ErrDatabaseError, err)
	}
	return entries, nil
}

// Terms returns the most recent terms of kind, ready for
// search.Options.NameHistory or ContentHistory.
func (s *Store) Terms(ctx context.Context, kind string, limit int) ([]string, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	entries, err := s.Recent(ctx, kind, limit)
	if err != nil {
		return nil, err
	}
	terms := make([]string, 0, len(entries))
	for _, e := range entries {
		terms = append(terms, e.Term)
	}
	return terms, nil
}

// Prune keeps the keep most recent terms of each kind and returns how many
// rows were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, ErrClosed
	}

	var total int64
	for _, kind := range []string{KindName, KindContent} {
		n, err := s.pruneKind(ctx, kind, keep)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// pruneKind must be called with s.mu held.
func (s *Store) pruneKind(ctx context.Context, kind string, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM history WHERE kind = ? AND id NOT IN (
			SELECT id FROM history WHERE kind = ? ORDER BY used_at DESC, id DESC LIMIT ?
		)`, kind, kind, keep)
	if err != nil {
		return 0, fmt.Errorf("%w: prune: %v", ErrDatabaseError, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Clear deletes the history of kind, or all history when kind is empty.
func (s *Store) Clear(ctx context.Context, kind string) (int64, error) {
	if kind != "" {
		if err := validKind(kind); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, ErrClosed
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM history WHERE (? = '' OR kind = ?)", kind, kind)
	if err != nil {
		return 0, fmt.Errorf("%w: clear: %v", ErrDatabaseError, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
