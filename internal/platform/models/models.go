package models

type Workspace struct {
	ID            string `json:"id"`
	ExternalOrgID string `json:"external_org_id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	LogoURL       string `json:"logo_url,omitempty"`
	IsActive      bool   `json:"is_active"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

// User rows mirror the external identity system: the id is the external user
// id, so an upsert from any workspace converges on the same row.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// Member binds a user to a workspace. ExternalRole mirrors the identity
// provider and is informational; LocalRole is authoritative and is never
// overwritten by reconciliation once the row exists.
type Member struct {
	ID           string `json:"id"`
	WorkspaceID  string `json:"workspace_id"`
	UserID       string `json:"user_id"`
	ExternalRole string `json:"external_role"`
	LocalRole    Role   `json:"local_role"`
	IsActive     bool   `json:"is_active"`
	JoinedAt     int64  `json:"joined_at"`
	UpdatedAt    int64  `json:"updated_at"`

	User *User `json:"user,omitempty"`
}
