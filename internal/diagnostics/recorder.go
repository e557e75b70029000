// Package diagnostics records upstream attempts asynchronously so the
// completion path never waits on the database.
package diagnostics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/domain"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/observability"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/shared"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/upstream"
)

const (
	defaultQueueSize = 256
	writeTimeout     = 5 * time.Second
	drainTimeout     = 5 * time.Second
)

// Writer persists attempt records.
type Writer interface {
	RecordAttempt(ctx context.Context, rec *domain.AttemptRecord) error
}

// Recorder queues attempts and writes them from a single worker.
type Recorder struct {
	repo    Writer
	queue   chan *domain.AttemptRecord
	now     func() time.Time
	dropped atomic.Int64
	written atomic.Int64
}

var _ upstream.Observer = (*Recorder)(nil)

// NewRecorder creates a Recorder with a bounded queue.
func NewRecorder(repo Writer, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Recorder{
		repo:  repo,
		queue: make(chan *domain.AttemptRecord, queueSize),
		now:   time.Now,
	}
}

// OnAttempt enqueues one attempt. When the queue is full the record is
// dropped and counted.
func (r *Recorder) OnAttempt(ctx context.Context, a upstream.Attempt) {
	rec := &domain.AttemptRecord{
		ID:         uuid.NewString(),
		SessionKey: observability.SessionKeyFromContext(ctx),
		TurnID:     observability.TurnIDFromContext(ctx),
		Attempt:    a.Number,
		StatusCode: a.StatusCode,
		Duration:   a.Duration,
		Delay:      a.Delay,
		CreatedAt:  r.now(),
	}
	if a.Err != nil {
		rec.Error = a.Err.Error()
	}

	select {
	case r.queue <- rec:
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			slog.Warn("Diagnostics queue full, dropping attempt record", "dropped_total", n)
		}
	}
}

// Run writes queued records until ctx is done, then drains what is left.
// It always returns nil.
func (r *Recorder) Run(ctx context.Context) error {
	slog.Info("Diagnostics recorder started", "queue_size", cap(r.queue))
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		case <-ctx.Done():
			r.drain()
			slog.Info("Diagnostics recorder stopped", "written", r.written.Load(), "dropped", r.dropped.Load())
			return nil
		}
	}
}

func (r *Recorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec *domain.AttemptRecord) {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err := shared.RetryOnConflict(writeCtx, 3, 50*time.Millisecond, "record_attempt", func(ctx context.Context) error {
		return r.repo.RecordAttempt(ctx, rec)
	})
	if err != nil {
		slog.Warn("Failed to record upstream attempt", "error", err, "session_key", rec.SessionKey, "attempt", rec.Attempt)
		return
	}
	r.written.Add(1)
}

// Dropped returns how many records were discarded because the queue was full.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Written returns how many records were persisted.
func (r *Recorder) Written() int64 { return r.written.Load() }
