package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists backend session tokens across process restarts, the
// CLI stand-in for a browser cookie. The content tree itself is never
// persisted.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Init(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
  backend TEXT PRIMARY KEY,
  token TEXT NOT NULL,
  saved_at TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Store) SaveToken(ctx context.Context, backend, token string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions (backend, token, saved_at)
VALUES (?, ?, ?)
ON CONFLICT(backend) DO UPDATE SET
  token=excluded.token,
  saved_at=excluded.saved_at
`, backend, token, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save token for %s: %w", backend, err)
	}
	return nil
}

// LoadToken returns the stored token, or "" when none has been saved.
func (s *Store) LoadToken(ctx context.Context, backend string) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT token FROM sessions WHERE backend = ?`, backend).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load token for %s: %w", backend, err)
	}
	return token, nil
}

func (s *Store) ClearToken(ctx context.Context, backend string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE backend = ?`, backend); err != nil {
		return fmt.Errorf("clear token for %s: %w", backend, err)
	}
	return nil
}
