package upstream

import (
	"context"
	"math/rand"
	"time"
)

const (
	// DefaultMaxAttempts is the total number of tries, including the first.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the backoff unit before the second attempt.
	DefaultBaseDelay = time.Second
	// DefaultMaxJitter bounds the random delay added to every backoff.
	DefaultMaxJitter = time.Second
	// DefaultMaxResponseBytes caps how much of a response body is read.
	DefaultMaxResponseBytes = 8 << 20
)

// Policy controls how many times a request is tried and how long to wait
// between tries.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
}

// DefaultPolicy returns 3 attempts with 1s/2s base delays and up to 1s jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxJitter:   DefaultMaxJitter,
	}
}

// Delay returns the wait before attempt index attempt+1, where attempt is the
// 0-based index of the attempt that just failed.
func (p Policy) Delay(attempt int, jitter time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.BaseDelay*time.Duration(1<<uint(attempt)) + jitter
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxJitter < 0 {
		p.MaxJitter = 0
	}
	return p
}

// Clock waits between attempts.
type Clock interface {
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// JitterFunc returns a duration in [0, max).
type JitterFunc func(max time.Duration) time.Duration

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RealClock returns a Clock backed by timers.
func RealClock() Clock { return realClock{} }

// UniformJitter draws uniformly from [0, max).
func UniformJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
