package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/domain"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/intent"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeCompleter records every call. When gate is set, calls block until the
// gate is closed or the context ends.
type fakeCompleter struct {
	mu     sync.Mutex
	calls  [][]domain.Message
	gate   chan struct{}
	result domain.Completion
	err    error
}

func (f *fakeCompleter) Complete(ctx context.Context, history []domain.Message) (domain.Completion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, history)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.Completion{}, ctx.Err()
		}
	}
	return f.result, f.err
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeCompleter) lastCall() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestSession(c Completer) *Session {
	return NewSession("anon_test:tab-1", c, intent.NewRouter(), Options{})
}

var ignoreUpdatedAt = cmpopts.IgnoreFields(domain.SessionState{}, "UpdatedAt")

func TestNewSession_SeedsWelcome(t *testing.T) {
	s := newTestSession(&fakeCompleter{})
	defer s.Close()

	want := domain.SessionState{
		History:   []domain.Message{domain.AssistantMessage(WelcomeText)},
		Mode:      domain.ModeChat,
		Citations: []domain.Citation{},
	}
	if diff := cmp.Diff(want, s.Snapshot(), ignoreUpdatedAt); diff != "" {
		t.Errorf("initial state mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, domain.PhaseIdle, s.Snapshot().Phase())
}

func TestSubmit_BlankIsIgnored(t *testing.T) {
	c := &fakeCompleter{}
	s := newTestSession(c)
	defer s.Close()

	for _, in := range []string{"", "   ", "\n\t"} {
		assert.Equal(t, OutcomeIgnored, s.Submit(in))
	}
	assert.Len(t, s.Snapshot().History, 1)
	assert.Zero(t, c.callCount())
}

func TestSubmit_ChatTurnSucceeds(t *testing.T) {
	c := &fakeCompleter{
		gate: make(chan struct{}),
		result: domain.Completion{
			Text:      "Go is a language.",
			Citations: []domain.Citation{{URI: "https://go.dev", Title: "Go"}},
		},
	}
	s := newTestSession(c)
	defer s.Close()

	require.Equal(t, OutcomeDispatched, s.Submit("  What is Go?  "))

	mid := s.Snapshot()
	assert.True(t, mid.Pending)
	assert.Equal(t, domain.PhaseAwaiting, mid.Phase())
	assert.Empty(t, mid.Citations)
	require.Len(t, mid.History, 2)
	assert.Equal(t, domain.UserMessage("What is Go?"), mid.History[1])

	close(c.gate)
	s.Wait()

	got := s.Snapshot()
	want := domain.SessionState{
		History: []domain.Message{
			domain.AssistantMessage(WelcomeText),
			domain.UserMessage("What is Go?"),
			domain.AssistantMessage("Go is a language."),
		},
		Mode:      domain.ModeChat,
		Citations: []domain.Citation{{URI: "https://go.dev", Title: "Go"}},
	}
	if diff := cmp.Diff(want, got, ignoreUpdatedAt); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}

	sent := c.lastCall()
	assert.Equal(t, []domain.Message{
		domain.AssistantMessage(WelcomeText),
		domain.UserMessage("What is Go?"),
	}, sent)
}

func TestSubmit_FailureAppendsFallback(t *testing.T) {
	c := &fakeCompleter{err: errors.New("upstream: 3 attempts failed")}
	s := newTestSession(c)
	defer s.Close()

	require.Equal(t, OutcomeDispatched, s.Submit("hello"))
	s.Wait()

	got := s.Snapshot()
	assert.False(t, got.Pending)
	assert.Empty(t, got.Citations)
	last, ok := got.LastMessage()
	require.True(t, ok)
	assert.Equal(t, domain.AssistantMessage(ConnectionFailureText), last)
	assert.Len(t, got.History, 3)
}

func TestSubmit_NewTurnClearsPreviousCitations(t *testing.T) {
	c := &fakeCompleter{result: domain.Completion{Text: "a", Citations: []domain.Citation{{URI: "u", Title: "t"}}}}
	s := newTestSession(c)
	defer s.Close()

	s.Submit("first")
	s.Wait()
	require.Len(t, s.Snapshot().Citations, 1)

	c.mu.Lock()
	c.err = errors.New("boom")
	c.mu.Unlock()

	s.Submit("second")
	s.Wait()
	assert.Empty(t, s.Snapshot().Citations)
}

func TestSubmit_RejectedWhilePending(t *testing.T) {
	c := &fakeCompleter{gate: make(chan struct{}), result: domain.Completion{Text: "ok"}}
	s := newTestSession(c)
	defer s.Close()

	require.Equal(t, OutcomeDispatched, s.Submit("one"))
	before := s.Snapshot()

	assert.Equal(t, OutcomeBusy, s.Submit("two"))
	assert.Equal(t, OutcomeBusy, s.Submit("how to prompt better?"))
	assert.Equal(t, OutcomeIgnored, s.Submit(" "))

	after := s.Snapshot()
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("state changed while pending (-before +after):\n%s", diff)
	}

	close(c.gate)
	s.Wait()
	assert.Equal(t, 1, c.callCount())
	assert.Len(t, s.Snapshot().History, 3)
}

func TestSubmit_GuideIntentSkipsNetwork(t *testing.T) {
	c := &fakeCompleter{result: domain.Completion{Text: "x", Citations: []domain.Citation{{URI: "u", Title: "t"}}}}
	s := newTestSession(c)
	defer s.Close()

	s.Submit("search something")
	s.Wait()
	require.Equal(t, 1, c.callCount())

	assert.Equal(t, OutcomeGuide, s.Submit("Teach me about PROMPTING please"))
	assert.Equal(t, 1, c.callCount())

	got := s.Snapshot()
	assert.Equal(t, domain.ModeGuide, got.Mode)
	assert.Equal(t, domain.PhaseGuide, got.Phase())
	assert.False(t, got.Pending)
	assert.Equal(t, []domain.Citation{{URI: "u", Title: "t"}}, got.Citations, "citations untouched")
	require.Len(t, got.History, 5)
	assert.Equal(t, domain.UserMessage("Teach me about PROMPTING please"), got.History[3])
	assert.Equal(t, domain.AssistantMessage(GuideAcknowledgementText), got.History[4])
}

func TestSetMode(t *testing.T) {
	s := newTestSession(&fakeCompleter{})

	require.Equal(t, OutcomeGuide, s.Submit("prompt guide"))
	history := s.Snapshot().History

	require.NoError(t, s.SetMode(domain.ModeChat))
	got := s.Snapshot()
	assert.Equal(t, domain.ModeChat, got.Mode)
	assert.Equal(t, history, got.History)

	require.NoError(t, s.SetMode(domain.ModeGuide))
	assert.Equal(t, domain.ModeGuide, s.Snapshot().Mode)

	assert.Error(t, s.SetMode(domain.Mode("settings")))

	s.Close()
	assert.ErrorIs(t, s.SetMode(domain.ModeChat), ErrSessionClosed)
}

func TestClose_DiscardsLateCompletion(t *testing.T) {
	c := &fakeCompleter{gate: make(chan struct{}), result: domain.Completion{Text: "late"}}
	s := newTestSession(c)

	require.Equal(t, OutcomeDispatched, s.Submit("hello"))
	s.Close()
	s.Wait()

	got := s.Snapshot()
	assert.Len(t, got.History, 2, "no assistant turn after close")
	assert.False(t, got.Pending)
	assert.True(t, s.Closed())
	assert.Equal(t, OutcomeClosed, s.Submit("again"))

	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Close")
	}
	s.Close()
}

func TestSubscribe_NotifiesOnChange(t *testing.T) {
	c := &fakeCompleter{result: domain.Completion{Text: "hi"}}
	s := newTestSession(c)

	updates, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.SetMode(domain.ModeGuide))
	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("no notification after SetMode")
	}

	s.Close()
	for range updates {
	}

	late, cancelLate := s.Subscribe()
	defer cancelLate()
	_, open := <-late
	assert.False(t, open, "subscribing to a closed session returns a closed channel")
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	s := newTestSession(&fakeCompleter{})
	defer s.Close()

	updates, cancel := s.Subscribe()
	cancel()
	cancel()
	_, open := <-updates
	assert.False(t, open)
	require.NoError(t, s.SetMode(domain.ModeGuide))
}

func TestSessionsAreIsolated(t *testing.T) {
	c := &fakeCompleter{result: domain.Completion{Text: "answer"}}
	a := NewSession("u:a", c, intent.NewRouter(), Options{})
	b := NewSession("u:b", c, intent.NewRouter(), Options{})
	defer a.Close()
	defer b.Close()

	a.Submit("question")
	a.Wait()
	b.Submit("prompting tips")

	assert.Len(t, a.Snapshot().History, 3)
	assert.Equal(t, domain.ModeChat, a.Snapshot().Mode)
	assert.Equal(t, domain.ModeGuide, b.Snapshot().Mode)
	assert.Len(t, b.Snapshot().History, 3)
}

func TestSubmit_TimeoutResolvesToFallback(t *testing.T) {
	c := &fakeCompleter{gate: make(chan struct{})}
	s := NewSession("u:t", c, intent.NewRouter(), Options{Timeout: 10 * time.Millisecond})
	defer s.Close()

	s.Submit("slow")
	s.Wait()

	last, _ := s.Snapshot().LastMessage()
	assert.Equal(t, ConnectionFailureText, last.Text)
	assert.False(t, s.Pending())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "dispatched", OutcomeDispatched.String())
	assert.Equal(t, "busy", OutcomeBusy.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}
