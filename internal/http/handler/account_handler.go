package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetway/fleetway/internal/http/response"
	"github.com/fleetway/fleetway/internal/observability"
	"github.com/fleetway/fleetway/internal/service"
)

// AccountHandler is the admin surface over accounts.
type AccountHandler struct {
	creds  *service.CredentialService
	groups *service.GroupService
	tokens *service.TokenService
}

func NewAccountHandler(creds *service.CredentialService, groups *service.GroupService, tokens *service.TokenService) *AccountHandler {
	return &AccountHandler{creds: creds, groups: groups, tokens: tokens}
}

type createAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Elevated bool   `json:"elevated"`
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	account, err := h.creds.CreateAccount(req.Username, req.Password, req.Elevated)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "account_created", "account_id", account.ID, "username", account.Username, "elevated", account.Elevated)
	response.JSON(w, r, http.StatusCreated, account)
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.creds.ListAccounts()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.creds.GetAccount(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	memberships, err := h.groups.ListAccountMemberships(account.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"account": account, "memberships": memberships})
}

func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.creds.DeleteAccount(id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "account_deleted", "account_id", id)
	response.NoContent(w)
}

// RevokeSessions force-logs-out every session of the target account.
func (h *AccountHandler) RevokeSessions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	revoked, err := h.tokens.RevokeAllForAccount(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "account_sessions_revoked", "account_id", id, "count", revoked)
	response.JSON(w, r, http.StatusOK, map[string]int64{"revoked": revoked})
}
