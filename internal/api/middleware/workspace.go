package middleware

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	apiContext "projecthub/internal/api/context"
	"projecthub/internal/engine/authz"
	"projecthub/internal/engine/identity"
	"projecthub/internal/pkg/errors"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

type WorkspaceContext struct {
	Workspace *models.Workspace
	// Member is the caller's row when the credential is a session;
	// nil for API-key and legacy callers.
	Member *models.Member
}

type WorkspaceMiddleware struct {
	workspaces *repositories.WorkspaceRepository
	gate       *authz.Gate
}

func NewWorkspaceMiddleware(workspaces *repositories.WorkspaceRepository, gate *authz.Gate) *WorkspaceMiddleware {
	return &WorkspaceMiddleware{workspaces: workspaces, gate: gate}
}

// Require resolves the :slug route param to a workspace and authorizes the
// request's credential against it. An unknown slug and a workspace the
// caller cannot see produce the same 404, so cross-tenant probing cannot
// distinguish "absent" from "forbidden".
func (m *WorkspaceMiddleware) Require(req authz.Requirement) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			cred, ok := r.Context().Value(apiContext.Credential).(*identity.Credential)
			if !ok {
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthenticated, "No credential found", nil)
				return
			}

			params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
			slug := params.ByName("slug")

			ws, err := m.workspaces.GetBySlug(slug)
			if err != nil {
				log.Error().Err(err).Str("slug", slug).Msg("failed to load workspace")
				errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstreamFailure, "Operation failed", nil)
				return
			}
			if ws == nil {
				errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Workspace not found", nil)
				return
			}

			member, err := m.gate.Authorize(cred, ws.ID, req)
			if err != nil {
				WriteAuthzError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), apiContext.Workspace, &WorkspaceContext{
				Workspace: ws,
				Member:    member,
			})
			next(w, r.WithContext(ctx))
		}
	}
}

// WriteAuthzError maps gate errors onto the HTTP taxonomy. A non-member gets
// the same 404 an unknown slug produces, so responses never reveal whether a
// workspace exists. Anything outside the deterministic local errors is an
// upstream failure and stays generic.
func WriteAuthzError(w http.ResponseWriter, err error) {
	switch err {
	case errors.ErrUnauthenticated:
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthenticated, "Unauthenticated", nil)
	case errors.ErrOutOfScope:
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeOutOfScope, "Credential is not valid for this workspace", nil)
	case errors.ErrNoAccess:
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Workspace not found", nil)
	case errors.ErrForbidden:
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient role or scope", nil)
	default:
		log.Error().Err(err).Msg("authorization check failed")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstreamFailure, "Operation failed", nil)
	}
}
