package identity

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"projecthub/internal/engine/apikeys"
	pkgerrors "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/auth"
	"projecthub/internal/platform/config"
	"projecthub/internal/platform/repositories"
)

func setupVerifier(t *testing.T) (*Verifier, *apikeys.Service, *auth.TokenService, *sql.DB) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE api_keys (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			created_by TEXT NOT NULL,
			name TEXT NOT NULL,
			key_hash TEXT UNIQUE NOT NULL,
			key_prefix TEXT NOT NULL,
			scopes TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			total_requests INTEGER NOT NULL DEFAULT 0,
			last_used_at INTEGER,
			expires_at INTEGER,
			revoked_at INTEGER,
			created_at INTEGER NOT NULL
		);
	`); err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}

	keySvc := apikeys.NewService(repositories.NewAPIKeyRepository(db))
	tokenSvc := auth.NewTokenService(config.JWTConfig{
		Secret:         "test-secret",
		AccessTokenTTL: time.Hour,
	})
	verifier := NewVerifier(keySvc, tokenSvc, config.BridgeConfig{
		LegacyAgentKey:    "legacy-shared-secret",
		LegacyWorkspaceID: "",
	})
	return verifier, keySvc, tokenSvc, db
}

func TestVerifyAPIKeyCredential(t *testing.T) {
	verifier, keySvc, _, db := setupVerifier(t)
	defer db.Close()

	plain, key, err := keySvc.Generate("ws_1", "user_1", "agent", []string{"read"}, nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	cred, err := verifier.Verify(plain)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if cred.Kind != KindAPIKey {
		t.Errorf("Expected kind %s, got %s", KindAPIKey, cred.Kind)
	}
	if cred.WorkspaceID != "ws_1" {
		t.Errorf("Expected workspace scope ws_1, got %s", cred.WorkspaceID)
	}
	if cred.KeyID != key.ID || cred.KeyName != "agent" {
		t.Errorf("Expected key label, got id=%s name=%s", cred.KeyID, cred.KeyName)
	}
	if cred.HasScope(apikeys.ScopeWrite) {
		t.Error("Read-only key must not carry the write scope")
	}
}

func TestVerifyRevokedAPIKey(t *testing.T) {
	verifier, keySvc, _, db := setupVerifier(t)
	defer db.Close()

	plain, key, err := keySvc.Generate("ws_1", "user_1", "agent", nil, nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := keySvc.Revoke(key.ID, "ws_1"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	if _, err := verifier.Verify(plain); err != pkgerrors.ErrUnauthenticated {
		t.Errorf("Expected ErrUnauthenticated, got %v", err)
	}
}

func TestVerifyLegacySecret(t *testing.T) {
	verifier, _, _, db := setupVerifier(t)
	defer db.Close()

	cred, err := verifier.Verify("legacy-shared-secret")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if cred.Kind != KindLegacy {
		t.Errorf("Expected kind %s, got %s", KindLegacy, cred.Kind)
	}
	if cred.UserID != "" {
		t.Error("Legacy credential must not carry a user id")
	}
	if cred.WorkspaceID != "" {
		t.Error("Unpinned legacy credential must not carry a workspace scope")
	}
	if !cred.HasScope(apikeys.ScopeRead) || !cred.HasScope(apikeys.ScopeWrite) {
		t.Errorf("Expected maximal scopes, got %v", cred.Scopes)
	}
}

func TestVerifyLegacyDisabledWhenUnset(t *testing.T) {
	_, keySvc, tokenSvc, db := setupVerifier(t)
	defer db.Close()

	verifier := NewVerifier(keySvc, tokenSvc, config.BridgeConfig{})
	if _, err := verifier.Verify("legacy-shared-secret"); err != pkgerrors.ErrUnauthenticated {
		t.Errorf("Expected ErrUnauthenticated with no legacy key configured, got %v", err)
	}
}

func TestVerifySessionToken(t *testing.T) {
	verifier, _, tokenSvc, db := setupVerifier(t)
	defer db.Close()

	token, err := tokenSvc.GenerateAccessToken("user_42", "u@example.com")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	cred, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if cred.Kind != KindSession {
		t.Errorf("Expected kind %s, got %s", KindSession, cred.Kind)
	}
	if cred.UserID != "user_42" {
		t.Errorf("Expected user_42, got %s", cred.UserID)
	}
	if cred.WorkspaceID != "" || len(cred.Scopes) != 0 {
		t.Error("Session credential must carry no inherent workspace scope")
	}
}

func TestVerifyFailsClosed(t *testing.T) {
	verifier, _, _, db := setupVerifier(t)
	defer db.Close()

	for _, bearer := range []string{"", "not-a-credential", "eyJhbGciOiJIUzI1NiJ9.broken.sig"} {
		if _, err := verifier.Verify(bearer); err != pkgerrors.ErrUnauthenticated {
			t.Errorf("Verify(%q): expected ErrUnauthenticated, got %v", bearer, err)
		}
	}
}
