package repositories

import (
	"database/sql"
	"time"

	"projecthub/internal/platform/models"
	"github.com/google/uuid"
)

type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) ListByWorkspace(workspaceID string) ([]*models.Project, error) {
	rows, err := r.db.Query(`
		SELECT id, workspace_id, name, status, priority, target_date, created_at, updated_at
		FROM projects WHERE workspace_id = ? ORDER BY created_at DESC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProjects(rows)
}

func (r *ProjectRepository) ListAll(limit int) ([]*models.Project, error) {
	rows, err := r.db.Query(`
		SELECT id, workspace_id, name, status, priority, target_date, created_at, updated_at
		FROM projects ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProjects(rows)
}

func (r *ProjectRepository) GetByID(id string) (*models.Project, error) {
	p := &models.Project{}
	var targetDate sql.NullInt64
	err := r.db.QueryRow(`
		SELECT id, workspace_id, name, status, priority, target_date, created_at, updated_at
		FROM projects WHERE id = ?
	`, id).Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Status, &p.Priority, &targetDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if targetDate.Valid {
		p.TargetDate = &targetDate.Int64
	}
	return p, nil
}

type ProjectUpdate struct {
	Name       *string `json:"name,omitempty"`
	Status     *string `json:"status,omitempty"`
	Priority   *string `json:"priority,omitempty"`
	TargetDate *int64  `json:"target_date,omitempty"`
}

// Update applies the non-nil fields, scoped to the workspace when one is
// given. Returns whether a row matched.
func (r *ProjectRepository) Update(id, workspaceID string, upd ProjectUpdate) (bool, error) {
	query := `UPDATE projects SET updated_at = ?`
	args := []interface{}{time.Now().Unix()}

	if upd.Name != nil {
		query += `, name = ?`
		args = append(args, *upd.Name)
	}
	if upd.Status != nil {
		query += `, status = ?`
		args = append(args, *upd.Status)
	}
	if upd.Priority != nil {
		query += `, priority = ?`
		args = append(args, *upd.Priority)
	}
	if upd.TargetDate != nil {
		query += `, target_date = ?`
		args = append(args, *upd.TargetDate)
	}

	query += ` WHERE id = ?`
	args = append(args, id)
	if workspaceID != "" {
		query += ` AND workspace_id = ?`
		args = append(args, workspaceID)
	}

	res, err := r.db.Exec(query, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *ProjectRepository) Create(p *models.Project) error {
	if p.ID == "" {
		p.ID = "proj_" + uuid.New().String()
	}
	now := time.Now().Unix()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = "active"
	}
	_, err := r.db.Exec(`
		INSERT INTO projects (id, workspace_id, name, status, priority, target_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.WorkspaceID, p.Name, p.Status, p.Priority, p.TargetDate, p.CreatedAt, p.UpdatedAt)
	return err
}

func scanProjects(rows *sql.Rows) ([]*models.Project, error) {
	var projects []*models.Project
	for rows.Next() {
		p := &models.Project{}
		var targetDate sql.NullInt64
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Status, &p.Priority, &targetDate, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if targetDate.Valid {
			p.TargetDate = &targetDate.Int64
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(t *models.Task) error {
	if t.ID == "" {
		t.ID = "task_" + uuid.New().String()
	}
	now := time.Now().Unix()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = "todo"
	}
	_, err := r.db.Exec(`
		INSERT INTO tasks (id, workspace_id, project_id, title, status, priority, assignee_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.WorkspaceID, t.ProjectID, t.Title, t.Status, t.Priority, t.AssigneeID, t.CreatedAt, t.UpdatedAt)
	return err
}

type TaskUpdate struct {
	Title      *string `json:"title,omitempty"`
	Status     *string `json:"status,omitempty"`
	Priority   *string `json:"priority,omitempty"`
	AssigneeID *string `json:"assignee_id,omitempty"`
}

func (r *TaskRepository) Update(id, workspaceID string, upd TaskUpdate) (bool, error) {
	query := `UPDATE tasks SET updated_at = ?`
	args := []interface{}{time.Now().Unix()}

	if upd.Title != nil {
		query += `, title = ?`
		args = append(args, *upd.Title)
	}
	if upd.Status != nil {
		query += `, status = ?`
		args = append(args, *upd.Status)
	}
	if upd.Priority != nil {
		query += `, priority = ?`
		args = append(args, *upd.Priority)
	}
	if upd.AssigneeID != nil {
		query += `, assignee_id = ?`
		args = append(args, *upd.AssigneeID)
	}

	query += ` WHERE id = ?`
	args = append(args, id)
	if workspaceID != "" {
		query += ` AND workspace_id = ?`
		args = append(args, workspaceID)
	}

	res, err := r.db.Exec(query, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *TaskRepository) Delete(id, workspaceID string) (bool, error) {
	query := `DELETE FROM tasks WHERE id = ?`
	args := []interface{}{id}
	if workspaceID != "" {
		query += ` AND workspace_id = ?`
		args = append(args, workspaceID)
	}

	res, err := r.db.Exec(query, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *TaskRepository) ListOpen(workspaceID string, limit int) ([]*models.Task, error) {
	query := `
		SELECT id, workspace_id, project_id, title, status, priority, assignee_id, created_at, updated_at
		FROM tasks WHERE status != 'done'
	`
	args := []interface{}{}
	if workspaceID != "" {
		query += ` AND workspace_id = ?`
		args = append(args, workspaceID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t := &models.Task{}
		if err := rows.Scan(&t.ID, &t.WorkspaceID, &t.ProjectID, &t.Title, &t.Status, &t.Priority, &t.AssigneeID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) CreateMilestone(m *models.Milestone) error {
	if m.ID == "" {
		m.ID = "ms_" + uuid.New().String()
	}
	m.CreatedAt = time.Now().Unix()
	_, err := r.db.Exec(`
		INSERT INTO milestones (id, project_id, name, due_date, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.ProjectID, m.Name, m.DueDate, m.CreatedAt)
	return err
}

func (r *TaskRepository) CreateCycle(c *models.Cycle) error {
	if c.ID == "" {
		c.ID = "cycle_" + uuid.New().String()
	}
	c.CreatedAt = time.Now().Unix()
	_, err := r.db.Exec(`
		INSERT INTO cycles (id, workspace_id, name, starts_at, ends_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.WorkspaceID, c.Name, c.StartsAt, c.EndsAt, c.CreatedAt)
	return err
}
