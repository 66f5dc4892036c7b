// Package store provides the durable blob backends the assistant persists its logs to.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"coolcar/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLite keeps one row per namespace in a local database file.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLite(dbPath string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	// One writer: the whole-blob read/modify/write cycle relies on it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS blobs (
		namespace  TEXT PRIMARY KEY,
		data       BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);`)
	return err
}

func (s *SQLite) Get(ctx context.Context, namespace string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE namespace = ?`, namespace).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", namespace, err)
	}
	return data, nil
}

func (s *SQLite) Put(ctx context.Context, namespace string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (namespace, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(namespace) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		namespace, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", namespace, err)
	}
	return nil
}

// Namespaces lists stored namespaces with their sizes, for diagnostics.
func (s *SQLite) Namespaces(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT namespace, length(data) FROM blobs ORDER BY namespace`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var ns string
		var n int
		if err := rows.Scan(&ns, &n); err != nil {
			return nil, err
		}
		out[ns] = n
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
