package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fleetway/fleetway/internal/http/response"
	"github.com/fleetway/fleetway/internal/repository"
	"github.com/fleetway/fleetway/internal/service"
)

// writeServiceError maps service sentinels onto the HTTP error vocabulary.
// Anything unmapped is a 500 with no detail leaked.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrGroupNameTaken):
		response.Error(w, r, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, service.ErrDefaultGroupProtected),
		errors.Is(err, service.ErrTOTPRequiredByPolicy):
		response.Error(w, r, http.StatusUnprocessableEntity, "POLICY_VIOLATION", err.Error(), nil)
	case errors.Is(err, service.ErrTOTPAlreadyEnabled),
		errors.Is(err, service.ErrTOTPNotEnabled),
		errors.Is(err, service.ErrInvalidRole):
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken):
		response.Error(w, r, http.StatusUnauthorized, "AUTHENTICATION_FAILED", err.Error(), nil)
	case errors.Is(err, service.ErrLoginThrottled):
		response.Error(w, r, http.StatusTooManyRequests, "THROTTLED", err.Error(), nil)
	case errors.Is(err, repository.ErrAccountNotFound),
		errors.Is(err, repository.ErrGroupNotFound),
		errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, repository.ErrMembershipNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed request body", nil)
		return false
	}
	return true
}
