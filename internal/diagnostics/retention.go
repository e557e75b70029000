package diagnostics

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner deletes records past their retention.
type Cleaner interface {
	CleanupAttempts(ctx context.Context, retention time.Duration) (int64, error)
}

// RunRetention prunes old attempt records every interval until ctx is done.
func RunRetention(ctx context.Context, repo Cleaner, interval, retention time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deleted, err := repo.CleanupAttempts(ctx, retention)
			if err != nil {
				slog.Error("Diagnostics retention failed", "error", err)
				continue
			}
			if deleted > 0 {
				slog.Info("Diagnostics retention pruned attempts", "count", deleted)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
