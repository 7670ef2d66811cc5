package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"projecthub/internal/engine/membership"
	"projecthub/internal/platform/repositories"
)

type SyncWorker struct {
	reconciler *membership.Reconciler
	workspaces *repositories.WorkspaceRepository
	keys       *repositories.APIKeyRepository
}

func NewSyncWorker(reconciler *membership.Reconciler, workspaces *repositories.WorkspaceRepository, keys *repositories.APIKeyRepository) *SyncWorker {
	return &SyncWorker{reconciler: reconciler, workspaces: workspaces, keys: keys}
}

// SweepMemberships runs the full bootstrap path for every active workspace:
// the workspace record is refreshed from the directory (names, slugs and
// logos change upstream) and membership is reconciled. One workspace failing
// does not stop the sweep.
func (w *SyncWorker) SweepMemberships(ctx context.Context) {
	workspaces, err := w.workspaces.ListActive()
	if err != nil {
		log.Error().Err(err).Msg("membership sweep: failed to list workspaces")
		return
	}

	for _, ws := range workspaces {
		if ws.ExternalOrgID == "" {
			continue
		}
		if _, err := w.reconciler.Bootstrap(ctx, ws.ExternalOrgID); err != nil {
			log.Error().Err(err).Str("workspace_id", ws.ID).Msg("membership sweep: sync failed")
		}
	}

	log.Info().Int("workspaces", len(workspaces)).Msg("membership sweep completed")
}

// SweepExpiredKeys deactivates keys past their expiry so listings reflect
// reality. Verification rejects expired keys regardless, so this sweep is
// not load-bearing for security.
func (w *SyncWorker) SweepExpiredKeys(ctx context.Context) {
	n, err := w.keys.DeactivateExpired(time.Now().Unix())
	if err != nil {
		log.Error().Err(err).Msg("key expiry sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int64("deactivated", n).Msg("deactivated expired api keys")
	}
}
