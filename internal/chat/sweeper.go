package chat

import (
	"context"
	"log/slog"
	"time"
)

// ExpireCallback is called with the key of every session the sweeper closes.
type ExpireCallback func(key string)

// RunSweeper periodically closes idle sessions until ctx is done. It blocks
// and always returns nil, so it can run under an errgroup.
func (r *Registry) RunSweeper(ctx context.Context, interval, ttl time.Duration, onExpire ExpireCallback) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("Session sweeper started", "interval", interval, "ttl", ttl)

	for {
		select {
		case <-ticker.C:
			r.sweepOnce(ttl, onExpire)
		case <-ctx.Done():
			slog.Info("Session sweeper shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

func (r *Registry) sweepOnce(ttl time.Duration, onExpire ExpireCallback) {
	keys := r.Sweep(ttl)
	if len(keys) == 0 {
		return
	}
	for _, key := range keys {
		slog.Info("Session sweeper closed idle session", "session_key", key)
		if onExpire != nil {
			onExpire(key)
		}
	}
	slog.Info("Session sweep completed", "closed", len(keys), "remaining", r.Len())
}
