// Package store persists upstream attempt diagnostics.
package store

import (
	"context"
	"time"

	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/domain"
)

// DefaultListLimit and MaxListLimit bound ListAttempts.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Repository defines the interface for persisting attempt diagnostics.
// Conversations themselves are never stored.
type Repository interface {
	// RecordAttempt stores one upstream attempt.
	RecordAttempt(ctx context.Context, rec *domain.AttemptRecord) error

	// ListAttempts returns the newest attempts first. An empty sessionKey
	// lists across all sessions.
	ListAttempts(ctx context.Context, sessionKey string, limit int) ([]*domain.AttemptRecord, error)

	// CleanupAttempts removes attempts older than retention.
	CleanupAttempts(ctx context.Context, retention time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
