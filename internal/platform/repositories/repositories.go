package repositories

import (
	"database/sql"
	"time"

	"projecthub/internal/platform/models"
	"github.com/google/uuid"
)

type WorkspaceRepository struct {
	db *sql.DB
}

func NewWorkspaceRepository(db *sql.DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

// UpsertByExternalOrg creates or refreshes a workspace keyed by its external
// org id. Name, slug and logo can change upstream; the local id never does.
func (r *WorkspaceRepository) UpsertByExternalOrg(ws *models.Workspace) error {
	if ws.ID == "" {
		ws.ID = "ws_" + uuid.New().String()
	}
	now := time.Now().Unix()
	ws.UpdatedAt = now
	if ws.CreatedAt == 0 {
		ws.CreatedAt = now
	}

	_, err := r.db.Exec(`
		INSERT INTO workspaces (id, external_org_id, name, slug, logo_url, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(external_org_id) DO UPDATE SET
			name = excluded.name,
			slug = excluded.slug,
			logo_url = excluded.logo_url,
			is_active = 1,
			updated_at = excluded.updated_at
	`, ws.ID, ws.ExternalOrgID, ws.Name, ws.Slug, ws.LogoURL, ws.CreatedAt, ws.UpdatedAt)
	if err != nil {
		return err
	}

	// The insert id is discarded on conflict; read back the canonical row.
	stored, err := r.GetByExternalOrgID(ws.ExternalOrgID)
	if err != nil {
		return err
	}
	if stored != nil {
		*ws = *stored
	}
	return nil
}

func (r *WorkspaceRepository) GetByID(id string) (*models.Workspace, error) {
	return r.scanOne(r.db.QueryRow(`
		SELECT id, external_org_id, name, slug, logo_url, is_active, created_at, updated_at
		FROM workspaces WHERE id = ?
	`, id))
}

func (r *WorkspaceRepository) GetBySlug(slug string) (*models.Workspace, error) {
	return r.scanOne(r.db.QueryRow(`
		SELECT id, external_org_id, name, slug, logo_url, is_active, created_at, updated_at
		FROM workspaces WHERE slug = ? AND is_active = 1
	`, slug))
}

func (r *WorkspaceRepository) GetByExternalOrgID(externalOrgID string) (*models.Workspace, error) {
	return r.scanOne(r.db.QueryRow(`
		SELECT id, external_org_id, name, slug, logo_url, is_active, created_at, updated_at
		FROM workspaces WHERE external_org_id = ?
	`, externalOrgID))
}

func (r *WorkspaceRepository) ListActive() ([]*models.Workspace, error) {
	rows, err := r.db.Query(`
		SELECT id, external_org_id, name, slug, logo_url, is_active, created_at, updated_at
		FROM workspaces WHERE is_active = 1 ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workspaces []*models.Workspace
	for rows.Next() {
		ws := &models.Workspace{}
		if err := rows.Scan(&ws.ID, &ws.ExternalOrgID, &ws.Name, &ws.Slug, &ws.LogoURL, &ws.IsActive, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
			return nil, err
		}
		workspaces = append(workspaces, ws)
	}
	return workspaces, rows.Err()
}

// ListForUser returns the active workspaces the user is an active member of,
// with the member's roles attached.
func (r *WorkspaceRepository) ListForUser(userID string) ([]*models.Workspace, []*models.Member, error) {
	rows, err := r.db.Query(`
		SELECT w.id, w.external_org_id, w.name, w.slug, w.logo_url, w.is_active, w.created_at, w.updated_at,
		       m.id, m.external_role, m.local_role, m.joined_at, m.updated_at
		FROM workspace_members m
		JOIN workspaces w ON w.id = m.workspace_id
		WHERE m.user_id = ? AND m.is_active = 1 AND w.is_active = 1
		ORDER BY w.name
	`, userID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var workspaces []*models.Workspace
	var members []*models.Member
	for rows.Next() {
		ws := &models.Workspace{}
		m := &models.Member{UserID: userID, IsActive: true}
		if err := rows.Scan(&ws.ID, &ws.ExternalOrgID, &ws.Name, &ws.Slug, &ws.LogoURL, &ws.IsActive, &ws.CreatedAt, &ws.UpdatedAt,
			&m.ID, &m.ExternalRole, &m.LocalRole, &m.JoinedAt, &m.UpdatedAt); err != nil {
			return nil, nil, err
		}
		m.WorkspaceID = ws.ID
		workspaces = append(workspaces, ws)
		members = append(members, m)
	}
	return workspaces, members, rows.Err()
}

func (r *WorkspaceRepository) scanOne(row *sql.Row) (*models.Workspace, error) {
	ws := &models.Workspace{}
	err := row.Scan(&ws.ID, &ws.ExternalOrgID, &ws.Name, &ws.Slug, &ws.LogoURL, &ws.IsActive, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return ws, nil
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert is keyed by the external user id, so syncing the same user from two
// workspaces converges on one row.
func (r *UserRepository) Upsert(user *models.User) error {
	now := time.Now().Unix()
	user.UpdatedAt = now
	if user.CreatedAt == 0 {
		user.CreatedAt = now
	}

	_, err := r.db.Exec(`
		INSERT INTO users (id, display_name, email, avatar_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			email = excluded.email,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at
	`, user.ID, user.DisplayName, user.Email, user.AvatarURL, user.CreatedAt, user.UpdatedAt)
	return err
}

func (r *UserRepository) GetByID(id string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRow(`
		SELECT id, display_name, email, avatar_url, created_at, updated_at
		FROM users WHERE id = ?
	`, id).Scan(&user.ID, &user.DisplayName, &user.Email, &user.AvatarURL, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

type MemberRepository struct {
	db *sql.DB
}

func NewMemberRepository(db *sql.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// ListUserIDs returns every user already represented in the workspace,
// active or not. A deactivated member is still "known" to reconciliation.
func (r *MemberRepository) ListUserIDs(workspaceID string) ([]string, error) {
	rows, err := r.db.Query(`SELECT user_id FROM workspace_members WHERE workspace_id = ?`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertIgnore adds a member row, ignoring the (workspace_id, user_id)
// unique conflict so concurrent reconciliations degrade to a no-op.
func (r *MemberRepository) InsertIgnore(m *models.Member) error {
	if m.ID == "" {
		m.ID = "member_" + uuid.New().String()
	}
	now := time.Now().Unix()
	if m.JoinedAt == 0 {
		m.JoinedAt = now
	}
	m.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT OR IGNORE INTO workspace_members (id, workspace_id, user_id, external_role, local_role, is_active, joined_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.WorkspaceID, m.UserID, m.ExternalRole, m.LocalRole, m.IsActive, m.JoinedAt, m.UpdatedAt)
	return err
}

func (r *MemberRepository) GetByWorkspaceUser(workspaceID, userID string) (*models.Member, error) {
	m := &models.Member{}
	err := r.db.QueryRow(`
		SELECT id, workspace_id, user_id, external_role, local_role, is_active, joined_at, updated_at
		FROM workspace_members WHERE workspace_id = ? AND user_id = ? AND is_active = 1
	`, workspaceID, userID).Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.ExternalRole, &m.LocalRole, &m.IsActive, &m.JoinedAt, &m.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (r *MemberRepository) ListByWorkspace(workspaceID string) ([]*models.Member, error) {
	rows, err := r.db.Query(`
		SELECT m.id, m.workspace_id, m.user_id, m.external_role, m.local_role, m.is_active, m.joined_at, m.updated_at,
		       u.display_name, u.email, u.avatar_url
		FROM workspace_members m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.workspace_id = ? AND m.is_active = 1
		ORDER BY m.joined_at
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		m := &models.Member{}
		var displayName, email, avatarURL sql.NullString
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.ExternalRole, &m.LocalRole, &m.IsActive, &m.JoinedAt, &m.UpdatedAt,
			&displayName, &email, &avatarURL); err != nil {
			return nil, err
		}
		if displayName.Valid || email.Valid {
			m.User = &models.User{
				ID:          m.UserID,
				DisplayName: displayName.String,
				Email:       email.String,
				AvatarURL:   avatarURL.String,
			}
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpdateLocalRole is the only write path that changes local_role.
// Reconciliation never calls it.
func (r *MemberRepository) UpdateLocalRole(workspaceID, userID string, role models.Role) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE workspace_members SET local_role = ?, updated_at = ?
		WHERE workspace_id = ? AND user_id = ?
	`, role, time.Now().Unix(), workspaceID, userID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
