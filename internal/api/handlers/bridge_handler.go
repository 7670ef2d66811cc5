package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apiContext "projecthub/internal/api/context"
	"projecthub/internal/api/middleware"
	"projecthub/internal/engine/apikeys"
	"projecthub/internal/engine/authz"
	"projecthub/internal/engine/identity"
	"projecthub/internal/pkg/errors"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

// BridgeHandler is the machine-facing request boundary: it accepts every
// credential kind, resolves the target workspace, runs the gate and then
// dispatches to read or write operations.
type BridgeHandler struct {
	gate       *authz.Gate
	workspaces *repositories.WorkspaceRepository
	members    *repositories.MemberRepository
	projects   *repositories.ProjectRepository
	tasks      *repositories.TaskRepository
}

func NewBridgeHandler(gate *authz.Gate, workspaces *repositories.WorkspaceRepository, members *repositories.MemberRepository, projects *repositories.ProjectRepository, tasks *repositories.TaskRepository) *BridgeHandler {
	return &BridgeHandler{
		gate:       gate,
		workspaces: workspaces,
		members:    members,
		projects:   projects,
		tasks:      tasks,
	}
}

var bridgeCapabilities = []string{
	"create_task",
	"update_task",
	"delete_task",
	"update_project",
	"create_milestone",
	"create_cycle",
}

// resolveWorkspace determines the workspace a bridge request operates on.
// API keys carry their scope; sessions must name a workspace explicitly; an
// unpinned legacy credential gets an empty id, meaning an unscoped view.
func (h *BridgeHandler) resolveWorkspace(w http.ResponseWriter, r *http.Request, cred *identity.Credential) (string, bool) {
	if cred.WorkspaceID != "" {
		return cred.WorkspaceID, true
	}

	if cred.Kind == identity.KindSession {
		slug := r.URL.Query().Get("workspace")
		if slug == "" {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "workspace query parameter is required for session credentials", nil)
			return "", false
		}
		ws, err := h.workspaces.GetBySlug(slug)
		if err != nil {
			log.Error().Err(err).Str("slug", slug).Msg("failed to load workspace")
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstreamFailure, "Operation failed", nil)
			return "", false
		}
		if ws == nil {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Workspace not found", nil)
			return "", false
		}
		return ws.ID, true
	}

	return "", true
}

func (h *BridgeHandler) authorize(w http.ResponseWriter, cred *identity.Credential, workspaceID string, req authz.Requirement) bool {
	if workspaceID == "" {
		// Unscoped legacy caller: the configured shared secret is the
		// trust anchor, scopes are still enforced.
		if req.Write && !cred.HasScope(apikeys.ScopeWrite) {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Credential does not grant write access", nil)
			return false
		}
		return true
	}

	if _, err := h.gate.Authorize(cred, workspaceID, req); err != nil {
		middleware.WriteAuthzError(w, err)
		return false
	}
	return true
}

// GetContext responds with a workspace-scoped snapshot of the system:
// projects, open tasks and members, plus the write capabilities the caller
// may invoke.
func (h *BridgeHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	cred := r.Context().Value(apiContext.Credential).(*identity.Credential)

	workspaceID, ok := h.resolveWorkspace(w, r, cred)
	if !ok {
		return
	}
	if !h.authorize(w, cred, workspaceID, authz.BridgeRead) {
		return
	}

	var projects []*models.Project
	var err error
	if workspaceID != "" {
		projects, err = h.projects.ListByWorkspace(workspaceID)
	} else {
		projects, err = h.projects.ListAll(50)
	}
	if err != nil {
		log.Error().Err(err).Msg("bridge: failed to load projects")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstreamFailure, "Operation failed", nil)
		return
	}

	tasks, err := h.tasks.ListOpen(workspaceID, 50)
	if err != nil {
		log.Error().Err(err).Msg("bridge: failed to load tasks")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstreamFailure, "Operation failed", nil)
		return
	}

	var members []*models.Member
	if workspaceID != "" {
		members, err = h.members.ListByWorkspace(workspaceID)
		if err != nil {
			log.Error().Err(err).Msg("bridge: failed to load members")
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstreamFailure, "Operation failed", nil)
			return
		}
	}

	keyName := cred.KeyName
	if keyName == "" {
		keyName = string(cred.Kind)
	}

	snapshot := map[string]interface{}{
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"workspace_scoped": workspaceID != "",
		"key_name":         keyName,
		"stats": map[string]int{
			"projects_count": len(projects),
			"tasks_count":    len(tasks),
			"members_count":  len(members),
		},
		"active_context": map[string]interface{}{
			"active_projects": projects,
			"pending_tasks":   tasks,
			"team_members":    members,
		},
		"capabilities": bridgeCapabilities,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

type bridgeActionRequest struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

// ExecuteAction dispatches a named write action. Unknown action names are a
// 400; every storage write is scoped to the resolved workspace so a key can
// never mutate another tenant's rows.
func (h *BridgeHandler) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	cred := r.Context().Value(apiContext.Credential).(*identity.Credential)

	workspaceID, ok := h.resolveWorkspace(w, r, cred)
	if !ok {
		return
	}
	if !h.authorize(w, cred, workspaceID, authz.BridgeWrite) {
		return
	}

	var req bridgeActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	result, err := h.dispatch(workspaceID, req)
	if err != nil {
		switch err {
		case errUnknownAction:
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Unsupported action: "+req.Action, nil)
		case errBadActionParams:
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid action parameters", nil)
		case errTargetNotFound:
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Target not found", nil)
		default:
			log.Error().Err(err).Str("action", req.Action).Msg("bridge action failed")
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstreamFailure, "Operation failed", nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "success",
		"action": req.Action,
		"result": result,
	})
}

