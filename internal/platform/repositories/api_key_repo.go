package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"projecthub/internal/platform/models"
	"github.com/google/uuid"
)

type APIKeyRepository struct {
	db *sql.DB
}

func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) Create(key *models.APIKey) error {
	if key.ID == "" {
		key.ID = "key_" + uuid.New().String()
	}
	key.CreatedAt = time.Now().Unix()
	key.IsActive = true

	scopesJSON, err := json.Marshal(key.Scopes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO api_keys (id, workspace_id, created_by, name, key_hash, key_prefix, scopes, is_active, total_requests, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, 0, ?, ?)
	`
	_, err = r.db.Exec(query, key.ID, key.WorkspaceID, key.CreatedBy, key.Name, key.KeyHash, key.KeyPrefix, string(scopesJSON), key.CreatedAt, key.ExpiresAt)
	return err
}

func (r *APIKeyRepository) GetByHash(hash string) (*models.APIKey, error) {
	query := `
		SELECT id, workspace_id, created_by, name, key_prefix, scopes, is_active, total_requests, last_used_at, expires_at, revoked_at, created_at
		FROM api_keys WHERE key_hash = ?
	`
	row := r.db.QueryRow(query, hash)

	k := &models.APIKey{}
	var scopesStr string
	var lastUsedAt, expiresAt, revokedAt sql.NullInt64

	err := row.Scan(&k.ID, &k.WorkspaceID, &k.CreatedBy, &k.Name, &k.KeyPrefix, &scopesStr, &k.IsActive, &k.TotalRequests, &lastUsedAt, &expiresAt, &revokedAt, &k.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if lastUsedAt.Valid {
		k.LastUsedAt = &lastUsedAt.Int64
	}
	if expiresAt.Valid {
		k.ExpiresAt = &expiresAt.Int64
	}
	if revokedAt.Valid {
		k.RevokedAt = &revokedAt.Int64
	}

	json.Unmarshal([]byte(scopesStr), &k.Scopes)
	k.KeyHash = hash

	return k, nil
}

// ListByWorkspace returns keys newest-first, joined with the creator's
// display name. Hashes never leave the repository here.
func (r *APIKeyRepository) ListByWorkspace(workspaceID string) ([]*models.APIKey, error) {
	query := `
		SELECT k.id, k.created_by, k.name, k.key_prefix, k.scopes, k.is_active, k.total_requests, k.last_used_at, k.expires_at, k.revoked_at, k.created_at,
		       u.display_name
		FROM api_keys k
		LEFT JOIN users u ON u.id = k.created_by
		WHERE k.workspace_id = ?
		ORDER BY k.created_at DESC
	`
	rows, err := r.db.Query(query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		k := &models.APIKey{}
		var scopesStr string
		var lastUsedAt, expiresAt, revokedAt sql.NullInt64
		var creatorName sql.NullString

		if err := rows.Scan(&k.ID, &k.CreatedBy, &k.Name, &k.KeyPrefix, &scopesStr, &k.IsActive, &k.TotalRequests, &lastUsedAt, &expiresAt, &revokedAt, &k.CreatedAt, &creatorName); err != nil {
			return nil, err
		}

		if lastUsedAt.Valid {
			k.LastUsedAt = &lastUsedAt.Int64
		}
		if expiresAt.Valid {
			k.ExpiresAt = &expiresAt.Int64
		}
		if revokedAt.Valid {
			k.RevokedAt = &revokedAt.Int64
		}
		json.Unmarshal([]byte(scopesStr), &k.Scopes)
		k.WorkspaceID = workspaceID
		if creatorName.Valid {
			k.CreatedByName = creatorName.String
		} else {
			k.CreatedByName = "Unknown"
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Revoke is filtered by both key id and workspace id so a caller can never
// revoke another tenant's key. Returns whether a row was updated.
func (r *APIKeyRepository) Revoke(id, workspaceID string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE api_keys SET is_active = 0, revoked_at = ?
		WHERE id = ? AND workspace_id = ?
	`, time.Now().Unix(), id, workspaceID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *APIKeyRepository) TouchUsage(id string) error {
	_, err := r.db.Exec(`
		UPDATE api_keys SET last_used_at = ?, total_requests = total_requests + 1
		WHERE id = ?
	`, time.Now().Unix(), id)
	return err
}

// DeactivateExpired flips is_active on keys past their expiry. Display
// hygiene only; verification checks expiry independently of the flag.
func (r *APIKeyRepository) DeactivateExpired(now int64) (int64, error) {
	res, err := r.db.Exec(`
		UPDATE api_keys SET is_active = 0
		WHERE is_active = 1 AND expires_at IS NOT NULL AND expires_at < ?
	`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
