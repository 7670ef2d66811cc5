package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "projecthub/internal/api/context"
	"projecthub/internal/api/handlers"
	"projecthub/internal/api/middleware"
	"projecthub/internal/engine/authz"
)

type Dependencies struct {
	WorkspaceHandler    *handlers.WorkspaceHandler
	MemberHandler       *handlers.MemberHandler
	APIKeyHandler       *handlers.APIKeyHandler
	BridgeHandler       *handlers.BridgeHandler
	HealthHandler       *handlers.HealthHandler
	AuthMiddleware      *middleware.AuthMiddleware
	WorkspaceMiddleware *middleware.WorkspaceMiddleware
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	router.GET("/health", wrap(deps.HealthHandler.Handle))

	authMid := deps.AuthMiddleware
	wsMid := deps.WorkspaceMiddleware

	// Agent bridge: accepts API keys, the legacy shared secret, and user
	// sessions (with an explicit ?workspace= target).
	router.GET("/api/v1/bridge",
		chain(deps.BridgeHandler.GetContext, authMid.Handle))
	router.POST("/api/v1/bridge",
		chain(deps.BridgeHandler.ExecuteAction, authMid.Handle))

	// Workspace directory
	router.GET("/api/v1/workspaces",
		chain(deps.WorkspaceHandler.List, authMid.Handle))
	router.GET("/api/v1/workspaces/:slug",
		chain(deps.WorkspaceHandler.Get, authMid.Handle, wsMid.Require(authz.ViewWorkspace)))

	// Membership
	router.GET("/api/v1/workspaces/:slug/members",
		chain(deps.MemberHandler.List, authMid.Handle, wsMid.Require(authz.ViewWorkspace)))
	router.PATCH("/api/v1/workspaces/:slug/members",
		chain(deps.MemberHandler.UpdateRole, authMid.Handle, wsMid.Require(authz.ManageMembers)))

	// API keys
	router.GET("/api/v1/workspaces/:slug/keys",
		chain(deps.APIKeyHandler.List, authMid.Handle, wsMid.Require(authz.ViewWorkspace)))
	router.POST("/api/v1/workspaces/:slug/keys",
		chain(deps.APIKeyHandler.Create, authMid.Handle, wsMid.Require(authz.CreateAPIKey)))
	router.DELETE("/api/v1/workspaces/:slug/keys/:key_id",
		chain(deps.APIKeyHandler.Revoke, authMid.Handle, wsMid.Require(authz.RevokeAPIKey)))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
