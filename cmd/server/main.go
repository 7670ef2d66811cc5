package main

import (
	"fmt"
	"log"
	"net/http"

	"projecthub/internal/api"
	"projecthub/internal/api/handlers"
	"projecthub/internal/api/middleware"
	"projecthub/internal/engine/apikeys"
	"projecthub/internal/engine/authz"
	"projecthub/internal/engine/identity"
	"projecthub/internal/engine/membership"
	"projecthub/internal/pkg/logger"
	"projecthub/internal/platform/auth"
	"projecthub/internal/platform/config"
	"projecthub/internal/platform/database"
	"projecthub/internal/platform/directory"
	"projecthub/internal/platform/repositories"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Repositories
	workspaceRepo := repositories.NewWorkspaceRepository(db)
	userRepo := repositories.NewUserRepository(db)
	memberRepo := repositories.NewMemberRepository(db)
	keyRepo := repositories.NewAPIKeyRepository(db)
	projectRepo := repositories.NewProjectRepository(db)
	taskRepo := repositories.NewTaskRepository(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	keySvc := apikeys.NewService(keyRepo)
	verifier := identity.NewVerifier(keySvc, tokenSvc, cfg.Bridge)
	gate := authz.NewGate(memberRepo)
	dir := directory.NewClient(cfg.Directory)
	reconciler := membership.NewReconciler(dir, workspaceRepo, userRepo, memberRepo, cfg.Sync.MemberWorkers)

	// Handlers
	deps := &api.Dependencies{
		WorkspaceHandler:    handlers.NewWorkspaceHandler(reconciler),
		MemberHandler:       handlers.NewMemberHandler(memberRepo, reconciler),
		APIKeyHandler:       handlers.NewAPIKeyHandler(keySvc),
		BridgeHandler:       handlers.NewBridgeHandler(gate, workspaceRepo, memberRepo, projectRepo, taskRepo),
		HealthHandler:       handlers.NewHealthHandler(db),
		AuthMiddleware:      middleware.NewAuthMiddleware(verifier),
		WorkspaceMiddleware: middleware.NewWorkspaceMiddleware(workspaceRepo, gate),
	}

	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
