package models

type APIKey struct {
	ID            string   `json:"id"`
	WorkspaceID   string   `json:"workspace_id"`
	CreatedBy     string   `json:"created_by"`
	Name          string   `json:"name"`
	KeyHash       string   `json:"-"`
	KeyPrefix     string   `json:"key_prefix"`
	Scopes        []string `json:"scopes"` // JSON array in DB
	IsActive      bool     `json:"is_active"`
	TotalRequests int64    `json:"total_requests"`
	LastUsedAt    *int64   `json:"last_used_at,omitempty"`
	ExpiresAt     *int64   `json:"expires_at,omitempty"`
	RevokedAt     *int64   `json:"revoked_at,omitempty"`
	CreatedAt     int64    `json:"created_at"`

	CreatedByName string `json:"created_by_name,omitempty"`
}
