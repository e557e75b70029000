package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/chat"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/domain"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/identity"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/observability"
)

const writeTimeout = 10 * time.Second

// Message types sent to the widget.
const (
	TypeSnapshot = "snapshot"
	TypeClosed   = "closed"
	TypePong     = "pong"
)

// Message is one server-to-client frame.
type Message struct {
	Type  string               `json:"type"`
	State *domain.SessionState `json:"state,omitempty"`
	Phase domain.Phase         `json:"phase,omitempty"`
}

type clientMessage struct {
	Type string `json:"type"`
}

// Handler upgrades GET /ws/session and streams snapshots of the caller's
// session until either side goes away.
type Handler struct {
	registry      *chat.Registry
	conns         *Manager
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a stream handler.
func NewHandler(registry *chat.Registry, conns *Manager, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		registry:      registry,
		conns:         conns,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := chat.SessionKey(identity.UserIDFromContext(r.Context()), identity.SessionIDFromContext(r.Context()))
	logger := observability.LoggerFromContext(observability.WithSessionKey(r.Context(), key))
	logger.Info("WebSocket connection request", "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logger.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	h.conns.Register(key, ws)
	defer h.conns.Unregister(key, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session := h.registry.Get(key)
	updates, unsubscribe := session.Subscribe()
	defer unsubscribe()

	go func() {
		defer cancel()
		h.readLoop(ctx, ws, key, logger)
	}()

	if err := writeJSON(ctx, ws, snapshotMessage(session.Snapshot())); err != nil {
		logger.Debug("Failed to send initial snapshot", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stream ended")
			return
		case _, ok := <-updates:
			if !ok {
				if err := writeJSON(ctx, ws, Message{Type: TypeClosed}); err != nil {
					logger.Debug("Failed to send closed notice", "error", err)
				}
				_ = ws.Close(websocket.StatusNormalClosure, "session closed")
				logger.Info("Stream closed with session")
				return
			}
			if err := writeJSON(ctx, ws, snapshotMessage(session.Snapshot())); err != nil {
				logger.Debug("Failed to push snapshot", "error", err)
				return
			}
		}
	}
}

// readLoop answers pings and keeps the session marked as seen. It returns
// when the client goes away.
func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, key string, logger *slog.Logger) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				logger.Debug("WebSocket closed by client")
			} else if ctx.Err() == nil {
				logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug("Ignoring malformed client frame", "error", err)
			continue
		}
		if msg.Type == "ping" {
			h.registry.Touch(key)
			if err := writeJSON(ctx, ws, Message{Type: TypePong}); err != nil {
				logger.Debug("Failed to send pong", "error", err)
				return
			}
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func snapshotMessage(state domain.SessionState) Message {
	return Message{Type: TypeSnapshot, State: &state, Phase: state.Phase()}
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(wctx, websocket.MessageText, data)
}
