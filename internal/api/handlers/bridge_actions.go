package handlers

import (
	"encoding/json"
	"errors"

	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

var (
	errUnknownAction   = errors.New("unknown bridge action")
	errBadActionParams = errors.New("invalid bridge action parameters")
	errTargetNotFound  = errors.New("bridge action target not found")
)

// dispatch routes one named action. workspaceID is empty only for unscoped
// legacy callers, in which case params must name the workspace themselves.
func (h *BridgeHandler) dispatch(workspaceID string, req bridgeActionRequest) (interface{}, error) {
	switch req.Action {
	case "create_task":
		var p struct {
			WorkspaceID string `json:"workspace_id"`
			ProjectID   string `json:"project_id"`
			Title       string `json:"title"`
			Status      string `json:"status"`
			Priority    string `json:"priority"`
			AssigneeID  string `json:"assignee_id"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil || p.Title == "" {
			return nil, errBadActionParams
		}
		wsID := workspaceID
		if wsID == "" {
			wsID = p.WorkspaceID
		}
		if wsID == "" {
			return nil, errBadActionParams
		}
		task := &models.Task{
			WorkspaceID: wsID,
			ProjectID:   p.ProjectID,
			Title:       p.Title,
			Status:      p.Status,
			Priority:    p.Priority,
			AssigneeID:  p.AssigneeID,
		}
		if err := h.tasks.Create(task); err != nil {
			return nil, err
		}
		return task, nil

	case "update_task":
		var p struct {
			ID      string                  `json:"id"`
			Updates repositories.TaskUpdate `json:"updates"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil || p.ID == "" {
			return nil, errBadActionParams
		}
		updated, err := h.tasks.Update(p.ID, workspaceID, p.Updates)
		if err != nil {
			return nil, err
		}
		if !updated {
			return nil, errTargetNotFound
		}
		return map[string]bool{"updated": true}, nil

	case "delete_task":
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil || p.ID == "" {
			return nil, errBadActionParams
		}
		deleted, err := h.tasks.Delete(p.ID, workspaceID)
		if err != nil {
			return nil, err
		}
		if !deleted {
			return nil, errTargetNotFound
		}
		return map[string]bool{"deleted": true}, nil

	case "update_project":
		var p struct {
			ID      string                     `json:"id"`
			Updates repositories.ProjectUpdate `json:"updates"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil || p.ID == "" {
			return nil, errBadActionParams
		}
		updated, err := h.projects.Update(p.ID, workspaceID, p.Updates)
		if err != nil {
			return nil, err
		}
		if !updated {
			return nil, errTargetNotFound
		}
		return map[string]bool{"updated": true}, nil

	case "create_milestone":
		var p struct {
			ProjectID string `json:"project_id"`
			Name      string `json:"name"`
			DueDate   *int64 `json:"due_date"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil || p.ProjectID == "" || p.Name == "" {
			return nil, errBadActionParams
		}
		// Milestones address their project directly, so the project must be
		// checked against the caller's workspace before inserting.
		project, err := h.projects.GetByID(p.ProjectID)
		if err != nil {
			return nil, err
		}
		if project == nil || (workspaceID != "" && project.WorkspaceID != workspaceID) {
			return nil, errTargetNotFound
		}
		ms := &models.Milestone{ProjectID: p.ProjectID, Name: p.Name, DueDate: p.DueDate}
		if err := h.tasks.CreateMilestone(ms); err != nil {
			return nil, err
		}
		return ms, nil

	case "create_cycle":
		var p struct {
			WorkspaceID string `json:"workspace_id"`
			Name        string `json:"name"`
			StartsAt    *int64 `json:"starts_at"`
			EndsAt      *int64 `json:"ends_at"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil || p.Name == "" {
			return nil, errBadActionParams
		}
		wsID := workspaceID
		if wsID == "" {
			wsID = p.WorkspaceID
		}
		if wsID == "" {
			return nil, errBadActionParams
		}
		cycle := &models.Cycle{WorkspaceID: wsID, Name: p.Name, StartsAt: p.StartsAt, EndsAt: p.EndsAt}
		if err := h.tasks.CreateCycle(cycle); err != nil {
			return nil, err
		}
		return cycle, nil

	default:
		return nil, errUnknownAction
	}
}
