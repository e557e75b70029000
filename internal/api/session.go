package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/chat"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/domain"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/identity"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/observability"
)

// SessionHandler exposes the caller's conversation.
type SessionHandler struct {
	registry     *chat.Registry
	maxBodyBytes int64
}

// NewSessionHandler creates a session handler. maxBodyBytes <= 0 uses
// DefaultMaxBodyBytes.
func NewSessionHandler(registry *chat.Registry, maxBodyBytes int64) *SessionHandler {
	return &SessionHandler{registry: registry, maxBodyBytes: maxBodyBytes}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Post("/messages", h.PostMessage)
		r.Put("/mode", h.PutMode)
	})
}

// SessionView is the wire form of a session snapshot.
type SessionView struct {
	domain.SessionState
	Phase domain.Phase `json:"phase"`
}

// NewSessionView wraps a snapshot with its derived phase.
func NewSessionView(state domain.SessionState) SessionView {
	return SessionView{SessionState: state, Phase: state.Phase()}
}

type messageRequest struct {
	Text string `json:"text"`
}

type messageResponse struct {
	Outcome string      `json:"outcome"`
	State   SessionView `json:"state"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

// SessionKeyFromRequest returns the registry key for the caller's tab.
func SessionKeyFromRequest(r *http.Request) string {
	ctx := r.Context()
	return chat.SessionKey(identity.UserIDFromContext(ctx), identity.SessionIDFromContext(ctx))
}

func (h *SessionHandler) session(r *http.Request) *chat.Session {
	return h.registry.Get(SessionKeyFromRequest(r))
}

// Get returns the current snapshot, creating the session on first use.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, NewSessionView(h.session(r).Snapshot()))
}

// PostMessage submits one utterance. Chat turns complete in the background;
// clients poll Get or subscribe over the WebSocket for the answer.
func (h *SessionHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	key := SessionKeyFromRequest(r)
	logger := observability.LoggerFromContext(observability.WithSessionKey(r.Context(), key))

	s := h.registry.Get(key)
	outcome := s.Submit(req.Text)
	if outcome == chat.OutcomeClosed {
		// Swept between lookup and submit; the next Get builds a fresh one.
		s = h.registry.Get(key)
		outcome = s.Submit(req.Text)
	}

	resp := messageResponse{Outcome: outcome.String(), State: NewSessionView(s.Snapshot())}
	switch outcome {
	case chat.OutcomeDispatched, chat.OutcomeGuide:
		JSON(w, http.StatusAccepted, resp)
	case chat.OutcomeIgnored:
		JSON(w, http.StatusOK, resp)
	case chat.OutcomeBusy:
		logger.Info("Message rejected while awaiting response")
		JSON(w, http.StatusConflict, resp)
	default:
		logger.Warn("Message submitted to closed session")
		JSON(w, http.StatusConflict, resp)
	}
}

// PutMode switches between chat and guide panels.
func (h *SessionHandler) PutMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	mode, err := domain.ParseMode(req.Mode)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	s := h.session(r)
	if err := s.SetMode(mode); err != nil {
		if errors.Is(err, chat.ErrSessionClosed) {
			Error(w, http.StatusConflict, "session closed")
			return
		}
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, NewSessionView(s.Snapshot()))
}

// Delete tears the caller's session down. Any in-flight answer is dropped.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existed := h.registry.Close(SessionKeyFromRequest(r))
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":  "closed",
		"existed": existed,
	})
}
