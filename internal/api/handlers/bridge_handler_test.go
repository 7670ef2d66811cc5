package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"projecthub/internal/api/middleware"
	"projecthub/internal/engine/apikeys"
	"projecthub/internal/engine/authz"
	"projecthub/internal/engine/identity"
	"projecthub/internal/platform/auth"
	"projecthub/internal/platform/config"
	"projecthub/internal/platform/repositories"
)

type bridgeFixture struct {
	db     *sql.DB
	keys   *apikeys.Service
	get    http.HandlerFunc
	post   http.HandlerFunc
	tokens *auth.TokenService
}

func setupBridge(t *testing.T) *bridgeFixture {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	db.SetMaxOpenConns(1)

	query := `
	CREATE TABLE workspaces (
		id TEXT PRIMARY KEY,
		external_org_id TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		slug TEXT UNIQUE NOT NULL,
		logo_url TEXT DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE users (
		id TEXT PRIMARY KEY,
		display_name TEXT DEFAULT '',
		email TEXT DEFAULT '',
		avatar_url TEXT DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE workspace_members (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		external_role TEXT NOT NULL DEFAULT 'member',
		local_role TEXT NOT NULL DEFAULT 'member',
		is_active INTEGER NOT NULL DEFAULT 1,
		joined_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE (workspace_id, user_id)
	);
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
	CREATE TABLE projects (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		priority TEXT DEFAULT '',
		target_date INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE tasks (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		project_id TEXT DEFAULT '',
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'todo',
		priority TEXT DEFAULT '',
		assignee_id TEXT DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE milestones (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		due_date INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE cycles (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		name TEXT NOT NULL,
		starts_at INTEGER,
		ends_at INTEGER,
		created_at INTEGER NOT NULL
	);
	INSERT INTO workspaces (id, external_org_id, name, slug, is_active, created_at, updated_at)
		VALUES ('ws_1', 'org_1', 'Acme', 'acme', 1, 100, 100),
		       ('ws_2', 'org_2', 'Umbra', 'umbra', 1, 100, 100);
	`
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}

	workspaces := repositories.NewWorkspaceRepository(db)
	members := repositories.NewMemberRepository(db)
	projects := repositories.NewProjectRepository(db)
	tasks := repositories.NewTaskRepository(db)
	keys := apikeys.NewService(repositories.NewAPIKeyRepository(db))
	tokens := auth.NewTokenService(config.JWTConfig{Secret: "test-secret", AccessTokenTTL: time.Hour})
	verifier := identity.NewVerifier(keys, tokens, config.BridgeConfig{})
	gate := authz.NewGate(members)

	handler := NewBridgeHandler(gate, workspaces, members, projects, tasks)
	authMid := middleware.NewAuthMiddleware(verifier)

	return &bridgeFixture{
		db:     db,
		keys:   keys,
		get:    authMid.Handle(handler.GetContext),
		post:   authMid.Handle(handler.ExecuteAction),
		tokens: tokens,
	}
}

func (f *bridgeFixture) mintKey(t *testing.T, workspaceID string, scopes []string) string {
	plain, _, err := f.keys.Generate(workspaceID, "user_1", "test agent", scopes, nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return plain
}

func TestBridgeSnapshot(t *testing.T) {
	f := setupBridge(t)
	defer f.db.Close()
	plain := f.mintKey(t, "ws_1", []string{"read"})

	r := httptest.NewRequest(http.MethodGet, "/api/v1/bridge", nil)
	r.Header.Set("Authorization", "Bearer "+plain)
	rec := httptest.NewRecorder()
	f.get(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var snapshot map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if scoped, _ := snapshot["workspace_scoped"].(bool); !scoped {
		t.Error("Expected workspace_scoped true for an API key")
	}
	if snapshot["key_name"] != "test agent" {
		t.Errorf("Expected key name in snapshot, got %v", snapshot["key_name"])
	}
	if _, ok := snapshot["capabilities"].([]interface{}); !ok {
		t.Error("Expected capabilities list in snapshot")
	}
}

func TestBridgeCreateTask(t *testing.T) {
	f := setupBridge(t)
	defer f.db.Close()
	plain := f.mintKey(t, "ws_1", []string{"read", "write"})

	body := `{"action": "create_task", "params": {"title": "Ship it", "priority": "high"}}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/bridge", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer "+plain)
	rec := httptest.NewRecorder()
	f.post(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var count int
	if err := f.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE workspace_id = 'ws_1' AND title = 'Ship it'`).Scan(&count); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected task created in key's workspace, got %d rows", count)
	}
}

func TestBridgeWriteRequiresWriteScope(t *testing.T) {
	f := setupBridge(t)
	defer f.db.Close()
	plain := f.mintKey(t, "ws_1", []string{"read"})

	body := `{"action": "create_task", "params": {"title": "nope"}}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/bridge", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer "+plain)
	rec := httptest.NewRecorder()
	f.post(rec, r)

	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for read-only key, got %d", rec.Code)
	}

	var count int
	if err := f.db.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&count); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Error("Denied action must not write")
	}
}

func TestBridgeUnknownAction(t *testing.T) {
	f := setupBridge(t)
	defer f.db.Close()
	plain := f.mintKey(t, "ws_1", []string{"read", "write"})

	body := `{"action": "drop_tables", "params": {}}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/bridge", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer "+plain)
	rec := httptest.NewRecorder()
	f.post(rec, r)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown action, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "drop_tables") {
		t.Error("Expected response to echo the rejected action name")
	}
}

func TestBridgeCrossTenantUpdateIsNotFound(t *testing.T) {
	f := setupBridge(t)
	defer f.db.Close()
	plain := f.mintKey(t, "ws_1", []string{"read", "write"})

	_, err := f.db.Exec(`
		INSERT INTO tasks (id, workspace_id, title, status, created_at, updated_at)
		VALUES ('task_other', 'ws_2', 'secret', 'todo', 100, 100)
	`)
	if err != nil {
		t.Fatalf("Failed to seed task: %v", err)
	}

	body := `{"action": "update_task", "params": {"id": "task_other", "updates": {"status": "done"}}}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/bridge", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer "+plain)
	rec := httptest.NewRecorder()
	f.post(rec, r)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for another tenant's task, got %d", rec.Code)
	}

	var status string
	if err := f.db.QueryRow(`SELECT status FROM tasks WHERE id = 'task_other'`).Scan(&status); err != nil {
		t.Fatalf("Failed to read task: %v", err)
	}
	if status != "todo" {
		t.Error("Another tenant's task must not change")
	}
}

func TestBridgeMilestoneProjectMustBeInWorkspace(t *testing.T) {
	f := setupBridge(t)
	defer f.db.Close()
	plain := f.mintKey(t, "ws_1", []string{"read", "write"})

	_, err := f.db.Exec(`
		INSERT INTO projects (id, workspace_id, name, status, created_at, updated_at)
		VALUES ('proj_own', 'ws_1', 'Ours', 'active', 100, 100),
		       ('proj_other', 'ws_2', 'Theirs', 'active', 100, 100)
	`)
	if err != nil {
		t.Fatalf("Failed to seed projects: %v", err)
	}

	body := `{"action": "create_milestone", "params": {"project_id": "proj_other", "name": "v1"}}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/bridge", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer "+plain)
	rec := httptest.NewRecorder()
	f.post(rec, r)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for another tenant's project, got %d", rec.Code)
	}
	var count int
	if err := f.db.QueryRow(`SELECT COUNT(*) FROM milestones`).Scan(&count); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Error("Milestone must not attach to another tenant's project")
	}

	body = `{"action": "create_milestone", "params": {"project_id": "proj_own", "name": "v1"}}`
	r = httptest.NewRequest(http.MethodPost, "/api/v1/bridge", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer "+plain)
	rec = httptest.NewRecorder()
	f.post(rec, r)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for own project, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := f.db.QueryRow(`SELECT COUNT(*) FROM milestones WHERE project_id = 'proj_own'`).Scan(&count); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected one milestone on own project, got %d", count)
	}
}

func TestBridgeSessionNeedsWorkspaceParam(t *testing.T) {
	f := setupBridge(t)
	defer f.db.Close()

	token, err := f.tokens.GenerateAccessToken("user_1", "u@example.com")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	_, err = f.db.Exec(`
		INSERT INTO workspace_members (id, workspace_id, user_id, external_role, local_role, is_active, joined_at, updated_at)
		VALUES ('mem_1', 'ws_1', 'user_1', 'member', 'member', 1, 100, 100)
	`)
	if err != nil {
		t.Fatalf("Failed to seed member: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/bridge", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.get(rec, r)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without workspace param, got %d", rec.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/bridge?workspace=acme", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	f.get(rec, r)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with workspace param, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestBridgeMissingAuthorization(t *testing.T) {
	f := setupBridge(t)
	defer f.db.Close()

	r := httptest.NewRequest(http.MethodGet, "/api/v1/bridge", nil)
	rec := httptest.NewRecorder()
	f.get(rec, r)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}
