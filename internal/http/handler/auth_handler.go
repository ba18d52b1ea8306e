package handler

import (
	"net/http"
	"time"

	"github.com/fleetway/fleetway/internal/http/middleware"
	"github.com/fleetway/fleetway/internal/http/response"
	"github.com/fleetway/fleetway/internal/observability"
	"github.com/fleetway/fleetway/internal/service"
)

// CookiePolicy controls how tokens are mirrored into cookies. Tokens are
// always returned in the body too, so non-browser clients never need cookies.
type CookiePolicy struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type AuthHandler struct {
	auth    *service.AuthService
	creds   *service.CredentialService
	tokens  *service.TokenService
	cookies CookiePolicy
}

func NewAuthHandler(auth *service.AuthService, creds *service.CredentialService, tokens *service.TokenService, cookies CookiePolicy) *AuthHandler {
	return &AuthHandler{auth: auth, creds: creds, tokens: tokens, cookies: cookies}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.auth.Login(r.Context(), req.Username, req.Password, req.TOTPCode, sessionMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if result.TOTPRequired {
		response.JSON(w, r, http.StatusOK, map[string]any{"totp_required": true})
		return
	}
	h.setTokenCookies(w, result.Tokens)
	observability.Audit(r, "login", "account_id", result.Account.ID)
	response.JSON(w, r, http.StatusOK, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw := h.refreshTokenFrom(r)
	if raw == "" {
		response.Error(w, r, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "missing refresh token", nil)
		return
	}
	pair, err := h.auth.Refresh(r.Context(), raw, sessionMeta(r))
	if err != nil {
		h.clearTokenCookies(w)
		writeServiceError(w, r, err)
		return
	}
	h.setTokenCookies(w, pair)
	response.JSON(w, r, http.StatusOK, pair)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if raw := h.refreshTokenFrom(r); raw != "" {
		if err := h.auth.Logout(raw); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	h.clearTokenCookies(w)
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		observability.Audit(r, "logout", "account_id", claims.Subject)
	}
	response.NoContent(w)
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	changed, err := h.creds.ChangePassword(claims.Subject, req.OldPassword, req.NewPassword)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !changed {
		response.Error(w, r, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "invalid credentials", nil)
		return
	}
	h.clearTokenCookies(w)
	observability.Audit(r, "password_changed", "account_id", claims.Subject)
	response.NoContent(w)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	account, err := h.creds.GetAccount(claims.Subject)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, account)
}

func (h *AuthHandler) refreshTokenFrom(r *http.Request) string {
	if cookie, err := r.Cookie("refresh_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var req refreshRequest
	if r.Body != nil {
		_ = jsonDecodeQuiet(r, &req)
	}
	return req.RefreshToken
}

func (h *AuthHandler) setTokenCookies(w http.ResponseWriter, pair *service.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(h.cookies.AccessTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    pair.RefreshToken,
		Path:     "/api/v1/auth",
		MaxAge:   int(h.cookies.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: h.cookies.Secure})
	http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "", Path: "/api/v1/auth", MaxAge: -1, HttpOnly: true, Secure: h.cookies.Secure})
}
