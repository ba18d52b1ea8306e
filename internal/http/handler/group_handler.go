package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetway/fleetway/internal/domain"
	"github.com/fleetway/fleetway/internal/http/response"
	"github.com/fleetway/fleetway/internal/observability"
	"github.com/fleetway/fleetway/internal/service"
)

type GroupHandler struct {
	groups *service.GroupService
}

func NewGroupHandler(groups *service.GroupService) *GroupHandler {
	return &GroupHandler{groups: groups}
}

type groupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	RequireTOTP bool   `json:"require_totp"`
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	group, err := h.groups.CreateGroup(req.Name, req.Description, req.RequireTOTP)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "group_created", "group_id", group.ID, "name", group.Name)
	response.JSON(w, r, http.StatusCreated, group)
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.ListGroups()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"groups": groups})
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	group, err := h.groups.GetGroup(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, group)
}

func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	group, err := h.groups.UpdateGroup(chi.URLParam(r, "id"), req.Name, req.Description, req.RequireTOTP)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "group_updated", "group_id", group.ID)
	response.JSON(w, r, http.StatusOK, group)
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.groups.DeleteGroup(id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "group_deleted", "group_id", id)
	response.NoContent(w)
}

type memberRequest struct {
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
}

func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	groupID := chi.URLParam(r, "id")
	if err := h.groups.AddAccountToGroup(req.AccountID, groupID, domain.Role(req.Role)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "group_member_added", "group_id", groupID, "account_id", req.AccountID, "role", req.Role)
	response.NoContent(w)
}

func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	accountID := chi.URLParam(r, "account_id")
	if err := h.groups.RemoveAccountFromGroup(accountID, groupID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "group_member_removed", "group_id", groupID, "account_id", accountID)
	response.NoContent(w)
}

func (h *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.groups.ListGroupMembers(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"members": members})
}
