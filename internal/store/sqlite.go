package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS upstream_attempts (
		id TEXT PRIMARY KEY,
		session_key TEXT NOT NULL,
		turn_id TEXT NOT NULL,
		attempt INTEGER NOT NULL,
		status_code INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		duration_ms INTEGER NOT NULL,
		delay_ms INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_created ON upstream_attempts(created_at);
	CREATE INDEX IF NOT EXISTS idx_attempts_session ON upstream_attempts(session_key, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordAttempt inserts one attempt row.
func (s *SQLiteStore) RecordAttempt(ctx context.Context, rec *domain.AttemptRecord) error {
	query := `
	INSERT INTO upstream_attempts
		(id, session_key, turn_id, attempt, status_code, error, duration_ms, delay_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var errText interface{}
	if rec.Error != "" {
		errText = rec.Error
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.SessionKey, rec.TurnID, rec.Attempt, rec.StatusCode, errText,
		rec.Duration.Milliseconds(), rec.Delay.Milliseconds(), rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// ListAttempts returns recent attempts, newest first.
func (s *SQLiteStore) ListAttempts(ctx context.Context, sessionKey string, limit int) ([]*domain.AttemptRecord, error) {
	query := `
		SELECT id, session_key, turn_id, attempt, status_code, error,
		       duration_ms, delay_ms, created_at
		FROM upstream_attempts`
	args := []interface{}{}
	if sessionKey != "" {
		query += ` WHERE session_key = ?`
		args = append(args, sessionKey)
	}
	query += ` ORDER BY created_at DESC, attempt DESC LIMIT ?`
	args = append(args, clampLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []*domain.AttemptRecord
	for rows.Next() {
		var rec domain.AttemptRecord
		var errText sql.NullString
		var durationMs, delayMs, createdAt int64

		if err := rows.Scan(
			&rec.ID, &rec.SessionKey, &rec.TurnID, &rec.Attempt, &rec.StatusCode, &errText,
			&durationMs, &delayMs, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan attempt row: %w", err)
		}

		rec.Error = errText.String
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.Delay = time.Duration(delayMs) * time.Millisecond
		rec.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}

// CleanupAttempts deletes attempts older than retention.
func (s *SQLiteStore) CleanupAttempts(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UnixMilli()
	result, err := s.db.ExecContext(ctx, `DELETE FROM upstream_attempts WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup attempts: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return rows, nil
}
