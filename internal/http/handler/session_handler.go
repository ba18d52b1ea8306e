package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetway/fleetway/internal/http/middleware"
	"github.com/fleetway/fleetway/internal/http/response"
	"github.com/fleetway/fleetway/internal/observability"
	"github.com/fleetway/fleetway/internal/service"
)

type SessionHandler struct {
	sessions *service.SessionService
	tokens   *service.TokenService
}

func NewSessionHandler(sessions *service.SessionService, tokens *service.TokenService) *SessionHandler {
	return &SessionHandler{sessions: sessions, tokens: tokens}
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	views, err := h.sessions.ListSessions(claims.Subject, h.currentTokenHash(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"sessions": views})
}

func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	sessionID := chi.URLParam(r, "session_id")
	revoked, err := h.sessions.RevokeSession(claims.Subject, sessionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !revoked {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
		return
	}
	observability.Audit(r, "session_revoked", "account_id", claims.Subject, "session_id", sessionID)
	response.NoContent(w)
}

func (h *SessionHandler) RevokeOthers(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	revoked, err := h.sessions.RevokeOtherSessions(claims.Subject, h.currentTokenHash(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "other_sessions_revoked", "account_id", claims.Subject, "count", revoked)
	response.JSON(w, r, http.StatusOK, map[string]int64{"revoked": revoked})
}

// currentTokenHash identifies the caller's own session so list and
// revoke-others can spare it. Only the refresh cookie identifies a session;
// callers without it simply get no current-session marker.
func (h *SessionHandler) currentTokenHash(r *http.Request) string {
	cookie, err := r.Cookie("refresh_token")
	if err != nil || cookie.Value == "" {
		return ""
	}
	return h.tokens.HashToken(cookie.Value)
}
