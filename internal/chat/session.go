// Package chat implements the per-tab conversation state machine and the
// registry that owns live sessions.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/domain"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/observability"
)

// Canned assistant turns.
const (
	WelcomeText = "Hello! I'm Prayu, your friendly AI companion. I can search the web for current information. " +
		"Try switching to the 'Prompt Guide' if you need tips!"
	GuideAcknowledgementText = "That's a fantastic question! To help you master prompting, I'm switching you over to " +
		"our dedicated Prompt Guide now. Take a look at the tips on Clarity, Context, and Constraints."
	ConnectionFailureText = "I'm having trouble connecting right now. Please try again soon."
)

// ErrSessionClosed is returned by operations on a torn-down session.
var ErrSessionClosed = errors.New("chat: session closed")

// Completer produces an assistant answer for the full history.
type Completer interface {
	Complete(ctx context.Context, history []domain.Message) (domain.Completion, error)
}

// Classifier routes an utterance.
type Classifier interface {
	Classify(utterance string) domain.Intent
}

// Outcome reports what Submit did with an utterance.
type Outcome int

const (
	// OutcomeIgnored means the utterance was blank.
	OutcomeIgnored Outcome = iota
	// OutcomeBusy means a completion is already in flight.
	OutcomeBusy
	// OutcomeClosed means the session was torn down.
	OutcomeClosed
	// OutcomeGuide means the user was sent to the guide without a model call.
	OutcomeGuide
	// OutcomeDispatched means a completion was started.
	OutcomeDispatched
)

var outcomeNames = map[Outcome]string{
	OutcomeIgnored:    "ignored",
	OutcomeBusy:       "busy",
	OutcomeClosed:     "closed",
	OutcomeGuide:      "guide",
	OutcomeDispatched: "dispatched",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// Options tunes a Session.
type Options struct {
	// Timeout bounds one completion including retries. Zero means no bound.
	Timeout time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
	// Parent is the context completions derive from. Defaults to Background.
	Parent context.Context
}

// Session is one isolated conversation. All methods are safe for concurrent
// use; state changes are serialized by mu.
type Session struct {
	key       string
	completer Completer
	router    Classifier
	timeout   time.Duration
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	history    []domain.Message
	mode       domain.Mode
	pending    bool
	citations  []domain.Citation
	generation uint64
	closed     bool
	updatedAt  time.Time
	subs       map[int]chan struct{}
	nextSub    int

	inflight sync.WaitGroup
}

// NewSession creates a session seeded with the welcome turn in chat mode.
func NewSession(key string, completer Completer, router Classifier, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Parent == nil {
		opts.Parent = context.Background()
	}
	ctx, cancel := context.WithCancel(observability.WithSessionKey(opts.Parent, key))

	return &Session{
		key:       key,
		completer: completer,
		router:    router,
		timeout:   opts.Timeout,
		now:       opts.Now,
		ctx:       ctx,
		cancel:    cancel,
		history:   []domain.Message{domain.AssistantMessage(WelcomeText)},
		mode:      domain.ModeChat,
		citations: []domain.Citation{},
		updatedAt: opts.Now(),
		subs:      make(map[int]chan struct{}),
	}
}

// Key returns the registry key of the session.
func (s *Session) Key() string { return s.key }

// Submit handles one user utterance. It never blocks on the network: a chat
// turn is dispatched in the background and its result lands in the state
// later.
func (s *Session) Submit(utterance string) Outcome {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return OutcomeIgnored
	}

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return OutcomeClosed
	case s.pending:
		s.mu.Unlock()
		return OutcomeBusy
	}

	if s.router.Classify(text) == domain.IntentSwitchToGuide {
		s.history = append(s.history,
			domain.UserMessage(text),
			domain.AssistantMessage(GuideAcknowledgementText))
		s.mode = domain.ModeGuide
		s.touchLocked()
		s.mu.Unlock()
		s.notify()
		observability.LoggerFromContext(s.ctx).Info("Switched to prompt guide by intent")
		return OutcomeGuide
	}

	s.history = append(s.history, domain.UserMessage(text))
	s.citations = []domain.Citation{}
	s.pending = true
	s.generation++
	gen := s.generation
	history := append([]domain.Message(nil), s.history...)
	s.touchLocked()

	turnCtx := observability.WithTurnID(s.ctx, observability.NewTurnID())
	var cancel context.CancelFunc
	if s.timeout > 0 {
		turnCtx, cancel = context.WithTimeout(turnCtx, s.timeout)
	} else {
		turnCtx, cancel = context.WithCancel(turnCtx)
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	s.notify()

	observability.LoggerFromContext(turnCtx).Info("Chat turn dispatched", "turns", len(history))
	go s.complete(turnCtx, cancel, gen, history)
	return OutcomeDispatched
}

func (s *Session) complete(ctx context.Context, cancel context.CancelFunc, gen uint64, history []domain.Message) {
	defer s.inflight.Done()
	defer cancel()

	logger := observability.LoggerFromContext(ctx)
	start := time.Now()
	result, err := s.completer.Complete(ctx, history)

	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		logger.Debug("Discarding stale completion", "generation", gen)
		return
	}
	if err != nil {
		s.history = append(s.history, domain.AssistantMessage(ConnectionFailureText))
		s.citations = []domain.Citation{}
	} else {
		s.history = append(s.history, domain.AssistantMessage(result.Text))
		s.citations = append([]domain.Citation{}, result.Citations...)
	}
	s.pending = false
	s.touchLocked()
	s.mu.Unlock()
	s.notify()

	if err != nil {
		logger.Warn("Chat turn failed", "error", err, "duration", time.Since(start))
		return
	}
	logger.Info("Chat turn completed", "citations", len(result.Citations), "duration", time.Since(start))
}

// SetMode switches the visible panel. History is untouched.
func (s *Session) SetMode(mode domain.Mode) error {
	if _, err := domain.ParseMode(string(mode)); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	changed := s.mode != mode
	s.mode = mode
	if changed {
		s.touchLocked()
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionState{
		History:   append([]domain.Message(nil), s.history...),
		Mode:      s.mode,
		Pending:   s.pending,
		Citations: append([]domain.Citation{}, s.citations...),
		UpdatedAt: s.updatedAt,
	}
}

// Subscribe returns a channel that receives a signal after every state
// change. The channel is closed when the session closes or when the returned
// cancel func is called. Signals coalesce; read Snapshot after each one.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close tears the session down. In-flight completions are cancelled and
// their results dropped. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	s.pending = false
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()
	s.cancel()
}

// Pending reports whether a completion is in flight.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Done is closed when the session closes or its parent context ends.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Wait blocks until every dispatched completion has returned.
func (s *Session) Wait() { s.inflight.Wait() }

func (s *Session) touchLocked() { s.updatedAt = s.now() }
