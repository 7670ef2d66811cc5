package handlers

import (
	"encoding/json"
	goerrors "errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	apiContext "projecthub/internal/api/context"
	"projecthub/internal/api/middleware"
	"projecthub/internal/engine/apikeys"
	"projecthub/internal/pkg/errors"
	"projecthub/internal/platform/models"
)

type APIKeyHandler struct {
	keys *apikeys.Service
}

func NewAPIKeyHandler(keys *apikeys.Service) *APIKeyHandler {
	return &APIKeyHandler{keys: keys}
}

type createKeyRequest struct {
	Name      string   `json:"name"`
	Scopes    []string `json:"scopes"`
	ExpiresAt *int64   `json:"expires_at"`
}

type createKeyResponse struct {
	Key      *models.APIKey `json:"key"`
	PlainKey string         `json:"plain_key"`
}

// Create issues a new key. The plaintext appears in this response and
// nowhere else, ever.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	wsCtx := r.Context().Value(apiContext.Workspace).(*middleware.WorkspaceContext)
	member := wsCtx.Member
	if member == nil {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Key management requires a user session", nil)
		return
	}

	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	plainKey, key, err := h.keys.Generate(wsCtx.Workspace.ID, member.UserID, req.Name, req.Scopes, req.ExpiresAt)
	if err != nil {
		if goerrors.Is(err, errors.ErrInvalid) {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
			return
		}
		log.Error().Err(err).Str("workspace_id", wsCtx.Workspace.ID).Msg("failed to create api key")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstreamFailure, "Operation failed", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(createKeyResponse{Key: key, PlainKey: plainKey})
}

func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	wsCtx := r.Context().Value(apiContext.Workspace).(*middleware.WorkspaceContext)

	keys, err := h.keys.List(wsCtx.Workspace.ID)
	if err != nil {
		log.Error().Err(err).Str("workspace_id", wsCtx.Workspace.ID).Msg("failed to list api keys")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstreamFailure, "Operation failed", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"keys": keys})
}

func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	wsCtx := r.Context().Value(apiContext.Workspace).(*middleware.WorkspaceContext)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	keyID := params.ByName("key_id")

	revoked, err := h.keys.Revoke(keyID, wsCtx.Workspace.ID)
	if err != nil {
		log.Error().Err(err).Str("key_id", keyID).Msg("failed to revoke api key")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstreamFailure, "Operation failed", nil)
		return
	}
	if !revoked {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Key not found", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"revoked": true})
}
