package chat

import (
	"log/slog"
	"sync"
	"time"
)

// Factory builds a new session for a key.
type Factory func(key string) *Session

// SessionKey joins a device identity and a tab session id.
func SessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Registry owns the live sessions, one per browser tab.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	factory  Factory
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		factory:  factory,
		now:      time.Now,
	}
}

// Get returns the session for key, creating it on first use, and marks it
// as seen.
func (r *Registry) Get(key string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[key]; ok {
		e.lastSeen = r.now()
		return e.session
	}

	s := r.factory(key)
	r.sessions[key] = &entry{session: s, lastSeen: r.now()}
	slog.Info("Chat session created", "session_key", key)
	return s
}

// Lookup returns an existing session without creating or touching it.
func (r *Registry) Lookup(key string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[key]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Touch marks an existing session as seen without creating one. It reports
// whether the session exists.
func (r *Registry) Touch(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[key]
	if ok {
		e.lastSeen = r.now()
	}
	return ok
}

// Close tears down and forgets the session for key. It reports whether a
// session existed.
func (r *Registry) Close(key string) bool {
	r.mu.Lock()
	e, ok := r.sessions[key]
	if ok {
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	e.session.Close()
	slog.Info("Chat session closed", "session_key", key)
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions not seen within ttl and returns their keys. A session
// with a completion in flight is kept.
func (r *Registry) Sweep(ttl time.Duration) []string {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	var expired []*entry
	var keys []string
	for key, e := range r.sessions {
		if e.lastSeen.After(cutoff) || e.session.Pending() {
			continue
		}
		expired = append(expired, e)
		keys = append(keys, key)
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	for _, e := range expired {
		e.session.Close()
	}
	return keys
}

// CloseAll tears down every session and waits for in-flight completions.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for key, e := range r.sessions {
		all = append(all, e.session)
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	for _, s := range all {
		s.Wait()
	}
}
