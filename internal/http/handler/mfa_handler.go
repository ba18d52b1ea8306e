package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetway/fleetway/internal/http/middleware"
	"github.com/fleetway/fleetway/internal/http/response"
	"github.com/fleetway/fleetway/internal/observability"
	"github.com/fleetway/fleetway/internal/service"
)

type MFAHandler struct {
	totp *service.TOTPService
}

func NewMFAHandler(totp *service.TOTPService) *MFAHandler {
	return &MFAHandler{totp: totp}
}

// Setup returns the secret, provisioning URI, QR image, and the one and only
// plaintext copy of the backup codes.
func (h *MFAHandler) Setup(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	setup, err := h.totp.Setup(claims.Subject)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "totp_setup_started", "account_id", claims.Subject)
	response.JSON(w, r, http.StatusOK, setup)
}

type codeRequest struct {
	Code string `json:"code"`
}

func (h *MFAHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	enabled, err := h.totp.VerifyAndEnable(claims.Subject, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !enabled {
		response.Error(w, r, http.StatusBadRequest, "INVALID_CODE", "code did not verify", nil)
		return
	}
	observability.Audit(r, "totp_enabled", "account_id", claims.Subject)
	response.JSON(w, r, http.StatusOK, map[string]bool{"enabled": true})
}

type disableRequest struct {
	Password string `json:"password"`
}

func (h *MFAHandler) Disable(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	var req disableRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	disabled, err := h.totp.Disable(r.Context(), claims.Subject, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !disabled {
		response.Error(w, r, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "invalid credentials", nil)
		return
	}
	observability.Audit(r, "totp_disabled", "account_id", claims.Subject)
	response.NoContent(w)
}

func (h *MFAHandler) RegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	codes, err := h.totp.RegenerateBackupCodes(claims.Subject)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "backup_codes_regenerated", "account_id", claims.Subject)
	response.JSON(w, r, http.StatusOK, map[string]any{"backup_codes": codes})
}

func (h *MFAHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	status, err := h.totp.Status(claims.Subject)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, status)
}

// AdminReset clears another account's factor; the route guard has already
// established the caller is an admin.
func (h *MFAHandler) AdminReset(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if err := h.totp.AdminReset(accountID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "totp_admin_reset", "target_account_id", accountID)
	response.NoContent(w)
}
