package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apiContext "projecthub/internal/api/context"
	"projecthub/internal/api/middleware"
	"projecthub/internal/engine/identity"
	"projecthub/internal/engine/membership"
	"projecthub/internal/pkg/errors"
	"projecthub/internal/platform/models"
)

type WorkspaceHandler struct {
	reconciler *membership.Reconciler
}

func NewWorkspaceHandler(reconciler *membership.Reconciler) *WorkspaceHandler {
	return &WorkspaceHandler{reconciler: reconciler}
}

type workspaceWithRole struct {
	*models.Workspace
	LocalRole    models.Role `json:"local_role"`
	ExternalRole string      `json:"external_role"`
}

// List returns the caller's workspaces, syncing from the directory first so
// a newly provisioned organization shows up on first load.
func (h *WorkspaceHandler) List(w http.ResponseWriter, r *http.Request) {
	cred, _ := r.Context().Value(apiContext.Credential).(*identity.Credential)
	if cred == nil || cred.Kind != identity.KindSession {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Workspace listing requires a user session", nil)
		return
	}

	workspaces, members, err := h.reconciler.SyncUserWorkspaces(r.Context(), cred.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", cred.UserID).Msg("failed to sync user workspaces")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstreamFailure, "Operation failed", nil)
		return
	}

	result := make([]workspaceWithRole, 0, len(workspaces))
	for i, ws := range workspaces {
		result = append(result, workspaceWithRole{
			Workspace:    ws,
			LocalRole:    members[i].LocalRole,
			ExternalRole: members[i].ExternalRole,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"workspaces": result})
}

func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	wsCtx := r.Context().Value(apiContext.Workspace).(*middleware.WorkspaceContext)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(wsCtx.Workspace)
}
