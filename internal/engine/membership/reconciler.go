package membership

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"projecthub/internal/platform/directory"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

// Directory is the read-only contract this package needs from the external
// identity system.
type Directory interface {
	GetOrganization(ctx context.Context, orgID string) (*directory.Organization, error)
	ListOrganizationMembers(ctx context.Context, orgID string) ([]directory.OrgMember, error)
	ListUserOrganizations(ctx context.Context, userID string) ([]directory.OrgMembership, error)
	GetUserProfile(ctx context.Context, userID string) (*directory.UserProfile, error)
}

// MapExternalRole translates a directory role into the local role granted on
// first sync. Anything unrecognized gets the lowest role.
func MapExternalRole(externalRole string) models.Role {
	switch externalRole {
	case "owner":
		return models.RoleOwner
	case "admin":
		return models.RoleAdmin
	default:
		return models.RoleMember
	}
}

// Reconciler merges directory membership into the local workspace model.
// The directory owns existence and suggested role; the local model owns the
// granted role once a Member row exists. Reconciliation only ever inserts
// membership, so manual role changes survive every sync.
type Reconciler struct {
	dir        Directory
	workspaces *repositories.WorkspaceRepository
	users      *repositories.UserRepository
	members    *repositories.MemberRepository
	workers    int
}

func NewReconciler(dir Directory, workspaces *repositories.WorkspaceRepository, users *repositories.UserRepository, members *repositories.MemberRepository, workers int) *Reconciler {
	if workers <= 0 {
		workers = 4
	}
	return &Reconciler{
		dir:        dir,
		workspaces: workspaces,
		users:      users,
		members:    members,
		workers:    workers,
	}
}

// Reconcile inserts directory members not yet present in the workspace.
// Cheap when already converged: one local read and one directory fetch, then
// a no-op. Per-member failures are logged and skipped; the member simply
// stays in the delta for the next run.
func (r *Reconciler) Reconcile(ctx context.Context, workspaceID, externalOrgID string) error {
	knownIDs, err := r.members.ListUserIDs(workspaceID)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = struct{}{}
	}

	orgMembers, err := r.dir.ListOrganizationMembers(ctx, externalOrgID)
	if err != nil {
		return fmt.Errorf("listing members of org %s: %w", externalOrgID, err)
	}

	var delta []directory.OrgMember
	for _, om := range orgMembers {
		if om.Status == "removed" {
			continue
		}
		if _, ok := known[om.UserID]; ok {
			continue
		}
		delta = append(delta, om)
	}
	if len(delta) == 0 {
		return nil
	}

	log.Info().
		Str("workspace_id", workspaceID).
		Str("external_org_id", externalOrgID).
		Int("delta", len(delta)).
		Msg("reconciling workspace membership")

	// Members are independent, so the fan-out is bounded-parallel. Insert
	// order does not matter: the (workspace, user) unique key makes every
	// insert idempotent-or-ignore.
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, om := range delta {
		om := om
		g.Go(func() error {
			if err := r.syncMember(ctx, workspaceID, om); err != nil {
				log.Warn().Err(err).
					Str("workspace_id", workspaceID).
					Str("user_id", om.UserID).
					Msg("skipping member during reconciliation")
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Reconciler) syncMember(ctx context.Context, workspaceID string, om directory.OrgMember) error {
	profile, err := r.dir.GetUserProfile(ctx, om.UserID)
	if err != nil {
		return fmt.Errorf("fetching profile: %w", err)
	}

	user := &models.User{
		ID:          om.UserID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		AvatarURL:   profile.AvatarURL,
	}
	if err := r.users.Upsert(user); err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}

	externalRole := om.Role
	if externalRole == "" {
		externalRole = "member"
	}

	return r.members.InsertIgnore(&models.Member{
		WorkspaceID:  workspaceID,
		UserID:       om.UserID,
		ExternalRole: externalRole,
		LocalRole:    MapExternalRole(externalRole),
		IsActive:     true,
	})
}

// Bootstrap is the explicit full-sync path for one workspace: a true upsert
// of the workspace record (name, slug and logo can change upstream) followed
// by membership reconciliation, which still only inserts.
func (r *Reconciler) Bootstrap(ctx context.Context, externalOrgID string) (*models.Workspace, error) {
	org, err := r.dir.GetOrganization(ctx, externalOrgID)
	if err != nil {
		return nil, fmt.Errorf("fetching org %s: %w", externalOrgID, err)
	}

	ws := &models.Workspace{
		ExternalOrgID: externalOrgID,
		Name:          org.Name,
		Slug:          org.Slug,
		LogoURL:       org.LogoURL,
		IsActive:      true,
	}
	if err := r.workspaces.UpsertByExternalOrg(ws); err != nil {
		return nil, err
	}

	if err := r.Reconcile(ctx, ws.ID, externalOrgID); err != nil {
		return nil, err
	}
	return ws, nil
}

// SyncUserWorkspaces refreshes the calling user's workspaces from their
// directory organization list, then returns the local view. Typically run
// on login or first page load.
func (r *Reconciler) SyncUserWorkspaces(ctx context.Context, userID string) ([]*models.Workspace, []*models.Member, error) {
	orgs, err := r.dir.ListUserOrganizations(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing orgs for user: %w", err)
	}

	if profile, err := r.dir.GetUserProfile(ctx, userID); err == nil {
		_ = r.users.Upsert(&models.User{
			ID:          userID,
			DisplayName: profile.DisplayName,
			Email:       profile.Email,
			AvatarURL:   profile.AvatarURL,
		})
	}

	for _, org := range orgs {
		if org.Status == "removed" || org.Organization.ID == "" {
			continue
		}

		ws := &models.Workspace{
			ExternalOrgID: org.Organization.ID,
			Name:          org.Organization.Name,
			Slug:          org.Organization.Slug,
			LogoURL:       org.Organization.LogoURL,
			IsActive:      true,
		}
		if err := r.workspaces.UpsertByExternalOrg(ws); err != nil {
			log.Error().Err(err).Str("external_org_id", org.Organization.ID).Msg("failed to upsert workspace")
			continue
		}

		externalRole := org.Role
		if externalRole == "" {
			externalRole = "member"
		}
		if err := r.members.InsertIgnore(&models.Member{
			WorkspaceID:  ws.ID,
			UserID:       userID,
			ExternalRole: externalRole,
			LocalRole:    MapExternalRole(externalRole),
			IsActive:     true,
		}); err != nil {
			log.Error().Err(err).Str("workspace_id", ws.ID).Msg("failed to insert membership")
		}
	}

	return r.workspaces.ListForUser(userID)
}
