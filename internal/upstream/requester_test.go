package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
	err    error
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	return c.err
}

func (c *fakeClock) recorded() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type recordingObserver struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (o *recordingObserver) OnAttempt(_ context.Context, a Attempt) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts = append(o.attempts, a)
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func fixedJitter(d time.Duration) JitterFunc {
	return func(time.Duration) time.Duration { return d }
}

// statusServer answers with the given statuses in order, repeating the last.
func statusServer(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32, *bodies) {
	t.Helper()
	var calls atomic.Int32
	seen := &bodies{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		data, _ := io.ReadAll(r.Body)
		seen.add(string(data))
		status := statuses[len(statuses)-1]
		if n < len(statuses) {
			status = statuses[n]
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"attempt":`+strconv.Itoa(n+1)+`}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls, seen
}

type bodies struct {
	mu   sync.Mutex
	list []string
}

func (b *bodies) add(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.list = append(b.list, s)
}

func (b *bodies) all() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.list...)
}

func newTestRequester(clock Clock, jitter time.Duration, opts ...Option) *Requester {
	opts = append([]Option{WithClock(clock), WithJitter(fixedJitter(jitter))}, opts...)
	return New(&http.Client{Timeout: 5 * time.Second}, DefaultPolicy(), opts...)
}

func TestSend_FirstAttemptSucceeds(t *testing.T) {
	srv, calls, _ := statusServer(t, http.StatusOK)
	clock := &fakeClock{}
	r := newTestRequester(clock, 0)

	resp, err := r.Send(context.Background(), &Request{Method: http.MethodPost, URL: srv.URL, Body: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"attempt":1}`, string(resp.Body))
	assert.EqualValues(t, 1, calls.Load())
	assert.Empty(t, clock.recorded())
}

func TestSend_RetriesThenSucceeds(t *testing.T) {
	srv, calls, _ := statusServer(t, http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusOK)
	clock := &fakeClock{}
	r := newTestRequester(clock, 250*time.Millisecond)

	resp, err := r.Send(context.Background(), &Request{URL: srv.URL, Body: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, `{"attempt":3}`, string(resp.Body))
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []time.Duration{1250 * time.Millisecond, 2250 * time.Millisecond}, clock.recorded())
}

func TestSend_ExhaustsAfterThreeAttempts(t *testing.T) {
	srv, calls, _ := statusServer(t, http.StatusServiceUnavailable)
	clock := &fakeClock{}
	r := newTestRequester(clock, 0)

	resp, err := r.Send(context.Background(), &Request{URL: srv.URL, Body: []byte(`{}`)})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.EqualValues(t, 3, calls.Load())
	assert.Len(t, clock.recorded(), 2, "no wait after the final attempt")

	assert.True(t, errors.Is(err, ErrExhaustedRetries))
	var exhausted *ExhaustedRetriesError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
}

func TestSend_ClientErrorsAreRetried(t *testing.T) {
	srv, calls, _ := statusServer(t, http.StatusNotFound, http.StatusOK)
	r := newTestRequester(&fakeClock{}, 0)

	_, err := r.Send(context.Background(), &Request{URL: srv.URL})
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSend_BodyIsIdenticalOnEveryAttempt(t *testing.T) {
	srv, _, seen := statusServer(t, http.StatusBadGateway)
	r := newTestRequester(&fakeClock{}, 0)
	payload := []byte(`{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`)

	_, err := r.Send(context.Background(), &Request{URL: srv.URL, Body: payload})
	require.Error(t, err)
	require.Len(t, seen.all(), 3)
	for _, b := range seen.all() {
		assert.Equal(t, string(payload), b)
	}
}

func TestSend_TransportFailureIsRetried(t *testing.T) {
	var calls atomic.Int32
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("connection refused")
	})
	clock := &fakeClock{}
	r := New(doer, DefaultPolicy(), WithClock(clock), WithJitter(fixedJitter(0)))

	_, err := r.Send(context.Background(), &Request{URL: "http://example.invalid/x"})
	require.ErrorIs(t, err, ErrExhaustedRetries)
	assert.EqualValues(t, 3, calls.Load())
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSend_ContextCancelledWhileWaiting(t *testing.T) {
	srv, calls, _ := statusServer(t, http.StatusInternalServerError)
	clock := &fakeClock{err: context.Canceled}
	r := newTestRequester(clock, 0)

	_, err := r.Send(context.Background(), &Request{URL: srv.URL})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrExhaustedRetries))
	assert.EqualValues(t, 1, calls.Load())
}

func TestSend_ReportsAttemptsToObserver(t *testing.T) {
	srv, _, _ := statusServer(t, http.StatusTooManyRequests, http.StatusOK)
	obs := &recordingObserver{}
	r := newTestRequester(&fakeClock{}, 100*time.Millisecond, WithObserver(obs))

	_, err := r.Send(context.Background(), &Request{URL: srv.URL})
	require.NoError(t, err)

	require.Len(t, obs.attempts, 2)
	assert.Equal(t, 1, obs.attempts[0].Number)
	assert.Equal(t, http.StatusTooManyRequests, obs.attempts[0].StatusCode)
	assert.Error(t, obs.attempts[0].Err)
	assert.Equal(t, 1100*time.Millisecond, obs.attempts[0].Delay)
	assert.Equal(t, 2, obs.attempts[1].Number)
	assert.NoError(t, obs.attempts[1].Err)
	assert.Zero(t, obs.attempts[1].Delay)
}

func TestSend_RejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("x", 64))
	}))
	t.Cleanup(srv.Close)
	r := newTestRequester(&fakeClock{}, 0, WithMaxResponseBytes(16))

	_, err := r.Send(context.Background(), &Request{URL: srv.URL})
	require.ErrorIs(t, err, ErrExhaustedRetries)
	assert.Contains(t, err.Error(), "exceeds 16 bytes")
}

func TestSend_DoesNotMutateRequest(t *testing.T) {
	srv, _, _ := statusServer(t, http.StatusOK)
	r := newTestRequester(&fakeClock{}, 0)
	req := &Request{URL: srv.URL, Header: http.Header{"Content-Type": {"application/json"}}, Body: []byte(`{}`)}

	_, err := r.Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "", req.Method)
	assert.Equal(t, http.Header{"Content-Type": {"application/json"}}, req.Header)
	assert.Equal(t, `{}`, string(req.Body))
}

func TestPolicyDelay(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		attempt int
		jitter  time.Duration
		want    time.Duration
	}{
		{0, 0, time.Second},
		{0, 999 * time.Millisecond, 1999 * time.Millisecond},
		{1, 0, 2 * time.Second},
		{1, 500 * time.Millisecond, 2500 * time.Millisecond},
		{2, 0, 4 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempt, tt.jitter), "attempt %d jitter %v", tt.attempt, tt.jitter)
	}
}

func TestUniformJitterRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		j := UniformJitter(time.Second)
		require.GreaterOrEqual(t, j, time.Duration(0))
		require.Less(t, j, time.Second)
	}
	assert.Zero(t, UniformJitter(0))
}

func TestRealClockHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RealClock().Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://generativelanguage.googleapis.com/v1beta/models/m:generateContent?key=secret")
	assert.NotContains(t, got, "secret")
	assert.Contains(t, got, "/v1beta/models/m:generateContent")
}

func TestTransportErrorMessageTruncatesBody(t *testing.T) {
	err := newStatusError(500, []byte(strings.Repeat("a", 2000)))
	assert.Less(t, len(err.Error()), 600)
	assert.Nil(t, errors.Unwrap(err))
}
