package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apiContext "projecthub/internal/api/context"
	"projecthub/internal/api/middleware"
	"projecthub/internal/engine/authz"
	"projecthub/internal/engine/membership"
	"projecthub/internal/pkg/errors"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

type MemberHandler struct {
	members    *repositories.MemberRepository
	reconciler *membership.Reconciler
}

func NewMemberHandler(members *repositories.MemberRepository, reconciler *membership.Reconciler) *MemberHandler {
	return &MemberHandler{members: members, reconciler: reconciler}
}

// List returns the workspace's members, reconciling against the directory
// first when explicitly asked (?sync=true) or on what looks like a first
// load. Reconciliation is convergent, so running it on page load is cheap
// once the workspace is in sync.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	wsCtx := r.Context().Value(apiContext.Workspace).(*middleware.WorkspaceContext)
	ws := wsCtx.Workspace

	members, err := h.members.ListByWorkspace(ws.ID)
	if err != nil {
		log.Error().Err(err).Str("workspace_id", ws.ID).Msg("failed to list members")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstreamFailure, "Operation failed", nil)
		return
	}

	forceSync := r.URL.Query().Get("sync") == "true"
	if ws.ExternalOrgID != "" && (forceSync || len(members) <= 1) {
		if err := h.reconciler.Reconcile(r.Context(), ws.ID, ws.ExternalOrgID); err != nil {
			// Reconciliation is best-effort; serve what we have.
			log.Error().Err(err).Str("workspace_id", ws.ID).Msg("membership reconciliation failed")
		} else {
			if refreshed, err := h.members.ListByWorkspace(ws.ID); err == nil {
				members = refreshed
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"members": members})
}

type updateRoleRequest struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
}

// UpdateRole changes a member's local role. The workspace middleware has
// already required at-least-admin; the remaining rule is that only an owner
// may change a member who currently is an owner.
func (h *MemberHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	wsCtx := r.Context().Value(apiContext.Workspace).(*middleware.WorkspaceContext)
	caller := wsCtx.Member
	if caller == nil {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Role management requires a user session", nil)
		return
	}

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.UserID == "" || req.Role == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "user_id and role are required", nil)
		return
	}
	if !req.Role.Valid() {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Unknown role", nil)
		return
	}

	target, err := h.members.GetByWorkspaceUser(wsCtx.Workspace.ID, req.UserID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load target member")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstreamFailure, "Operation failed", nil)
		return
	}
	if target == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Member not found", nil)
		return
	}

	if err := authz.CanChangeRole(caller, target); err != nil {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Only an owner may change another owner's role", nil)
		return
	}

	updated, err := h.members.UpdateLocalRole(wsCtx.Workspace.ID, req.UserID, req.Role)
	if err != nil {
		log.Error().Err(err).Msg("failed to update member role")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstreamFailure, "Operation failed", nil)
		return
	}
	if !updated {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Member not found", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"updated": true})
}
