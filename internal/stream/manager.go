// Package stream pushes session snapshots to the widget over WebSocket.
package stream

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Conn is the part of *websocket.Conn the manager needs.
type Conn interface {
	Close(code websocket.StatusCode, reason string) error
}

// Manager tracks the live push connection of each chat session. A tab has at
// most one; a reconnect replaces the older socket.
type Manager struct {
	mu     sync.RWMutex
	active map[string]Conn
}

// NewManager creates an empty connection manager.
func NewManager() *Manager {
	return &Manager{active: make(map[string]Conn)}
}

// Active returns the connection registered for a session key.
func (m *Manager) Active(key string) Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[key]
}

// Register adds a connection for key, closing any older one.
func (m *Manager) Register(key string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.active[key]; ok && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}
	m.active[key] = conn
	slog.Info("Stream registered", "session_key", key)
}

// Unregister removes conn if it is still the one registered for key.
func (m *Manager) Unregister(key string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.active[key]; ok && current == conn {
		delete(m.active, key)
		slog.Info("Stream unregistered", "session_key", key)
	}
}

// CloseSession closes the connection for key. It is the registry's expiry
// callback.
func (m *Manager) CloseSession(key string) {
	m.mu.Lock()
	conn, ok := m.active[key]
	delete(m.active, key)
	m.mu.Unlock()

	if !ok {
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "session closed")
	slog.Info("Stream closed", "session_key", key)
}

// CloseAll closes every connection, used during shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	conns := m.active
	m.active = make(map[string]Conn)
	m.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// Len returns the number of live connections.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}
