package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"projecthub/internal/engine/membership"
	"projecthub/internal/pkg/logger"
	"projecthub/internal/platform/config"
	"projecthub/internal/platform/database"
	"projecthub/internal/platform/directory"
	"projecthub/internal/platform/repositories"
	"projecthub/internal/workers"
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

	workspaceRepo := repositories.NewWorkspaceRepository(db)
	userRepo := repositories.NewUserRepository(db)
	memberRepo := repositories.NewMemberRepository(db)
	keyRepo := repositories.NewAPIKeyRepository(db)

	dir := directory.NewClient(cfg.Directory)
	reconciler := membership.NewReconciler(dir, workspaceRepo, userRepo, memberRepo, cfg.Sync.MemberWorkers)
	worker := workers.NewSyncWorker(reconciler, workspaceRepo, keyRepo)

	membershipSchedule := cfg.Sync.SweepSchedule
	if membershipSchedule == "" {
		membershipSchedule = "0 1 * * *"
	}
	keySchedule := cfg.Sync.KeyExpirySchedule
	if keySchedule == "" {
		keySchedule = "@hourly"
	}

	c := cron.New()
	if _, err := c.AddFunc(membershipSchedule, func() {
		worker.SweepMemberships(context.Background())
	}); err != nil {
		log.Fatalf("Invalid membership sweep schedule: %v", err)
	}
	if _, err := c.AddFunc(keySchedule, func() {
		worker.SweepExpiredKeys(context.Background())
	}); err != nil {
		log.Fatalf("Invalid key expiry schedule: %v", err)
	}

	log.Println("Starting background workers...")
	c.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	<-c.Stop().Done()
}
