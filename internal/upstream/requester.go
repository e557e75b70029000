// Package upstream sends fully formed HTTP requests with bounded retries and
// exponential backoff.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/observability"
)

// Request is a complete outbound call, re-sent verbatim on every attempt.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// RawResponse is a successful (2xx) answer with its body fully read.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Doer executes one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Attempt is reported to an Observer after every try.
type Attempt struct {
	Number     int // 1-based
	StatusCode int
	Err        error
	Duration   time.Duration
	// Delay is the backoff scheduled after this attempt; zero on success or
	// after the last attempt.
	Delay time.Duration
}

// Observer receives a callback for each attempt. Implementations must not
// block.
type Observer interface {
	OnAttempt(ctx context.Context, a Attempt)
}

// Requester sends requests according to a Policy.
type Requester struct {
	doer             Doer
	policy           Policy
	clock            Clock
	jitter           JitterFunc
	observer         Observer
	maxResponseBytes int64
}

// Option customizes a Requester.
type Option func(*Requester)

// WithClock replaces the timer-based clock.
func WithClock(c Clock) Option {
	return func(r *Requester) { r.clock = c }
}

// WithJitter replaces the uniform jitter source.
func WithJitter(j JitterFunc) Option {
	return func(r *Requester) { r.jitter = j }
}

// WithObserver installs an attempt observer.
func WithObserver(o Observer) Option {
	return func(r *Requester) { r.observer = o }
}

// WithMaxResponseBytes caps the response body size.
func WithMaxResponseBytes(n int64) Option {
	return func(r *Requester) {
		if n > 0 {
			r.maxResponseBytes = n
		}
	}
}

// New creates a Requester. A nil doer uses http.DefaultClient.
func New(doer Doer, policy Policy, opts ...Option) *Requester {
	if doer == nil {
		doer = http.DefaultClient
	}
	r := &Requester{
		doer:             doer,
		policy:           policy.normalized(),
		clock:            RealClock(),
		jitter:           UniformJitter,
		maxResponseBytes: DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the effective retry policy.
func (r *Requester) Policy() Policy { return r.policy }

// Send tries req up to MaxAttempts times and returns the first 2xx response.
// When every attempt fails it returns *ExhaustedRetriesError wrapping the
// last cause. A context cancelled while waiting between attempts aborts with
// the context error.
func (r *Requester) Send(ctx context.Context, req *Request) (*RawResponse, error) {
	logger := observability.LoggerFromContext(ctx)
	var lastErr error

	for i := 0; i < r.policy.MaxAttempts; i++ {
		start := time.Now()
		resp, err := r.do(ctx, req)
		elapsed := time.Since(start)

		if err == nil {
			r.observe(ctx, Attempt{Number: i + 1, StatusCode: resp.StatusCode, Duration: elapsed})
			if i > 0 {
				logger.Info("Upstream request succeeded after retry", "attempt", i+1)
			}
			return resp, nil
		}
		lastErr = err

		var delay time.Duration
		last := i == r.policy.MaxAttempts-1
		if !last {
			delay = r.policy.Delay(i, r.jitter(r.policy.MaxJitter))
		}

		status := 0
		var te *TransportError
		if errors.As(err, &te) {
			status = te.StatusCode
		}
		r.observe(ctx, Attempt{Number: i + 1, StatusCode: status, Err: err, Duration: elapsed, Delay: delay})
		logger.Warn("Upstream attempt failed",
			"attempt", i+1,
			"max_attempts", r.policy.MaxAttempts,
			"status", status,
			"url", redactURL(req.URL),
			"retry_in", delay,
			"error", err)

		if last {
			break
		}
		if err := r.clock.Sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("upstream: wait before attempt %d: %w", i+2, err)
		}
	}

	return nil, &ExhaustedRetriesError{Attempts: r.policy.MaxAttempts, Last: lastErr}
}

func (r *Requester) do(ctx context.Context, req *Request) (*RawResponse, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("build request for %s: invalid url", redactURL(req.URL))}
	}
	httpReq.Header = req.Header.Clone()
	if httpReq.Header == nil {
		httpReq.Header = make(http.Header)
	}

	resp, err := r.doer.Do(httpReq)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = redactURL(uerr.URL)
		}
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxResponseBytes+1))
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(data)) > r.maxResponseBytes {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("response exceeds %d bytes", r.maxResponseBytes)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(resp.StatusCode, data)
	}
	return &RawResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (r *Requester) observe(ctx context.Context, a Attempt) {
	if r.observer != nil {
		r.observer.OnAttempt(ctx, a)
	}
}

// redactURL drops the query string so credentials passed as parameters
// never reach the logs.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	if u.RawQuery != "" {
		u.RawQuery = "REDACTED"
	}
	return u.String()
}
