// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// IsSQLiteBusyError checks if the error is a SQLITE_BUSY error.
func IsSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "SQLITE_BUSY")
}

// IsSQLiteLockedError checks if the error is a "database is locked" error.
func IsSQLiteLockedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "database is locked")
}

// IsSQLiteConflictError reports either form of SQLite lock contention.
func IsSQLiteConflictError(err error) bool {
	return IsSQLiteBusyError(err) || IsSQLiteLockedError(err)
}

// RetryOnConflict runs fn up to attempts times, backing off exponentially from
// base while fn fails with a SQLite conflict. Other errors return at once.
func RetryOnConflict(ctx context.Context, attempts int, base time.Duration, op string, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if err == nil || !IsSQLiteConflictError(err) || i == attempts-1 {
			return err
		}

		delay := base * time.Duration(1<<i)
		slog.Debug("Database locked, retrying", "op", op, "attempt", i+1, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
