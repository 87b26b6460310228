package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/planstore/pkg/types"
)

// UpdateTaskStats applies updates to the task with taskID inside the plan.
// Keys are Task JSON field names (status, actual_hours, assignee_name, ...).
// The task is located by walking Epics, Stories and Tasks; the first match
// wins. One "task_updated" entry records task_id, task_title, the updates
// and the previous value of every updated field.
//
// Returns false when the plan or task does not exist. Unknown keys return
// ErrUnknownField, task_id returns ErrImmutableField, values of the wrong
// type return ErrInvalidData, and a status outside the vocabulary returns
// ErrInvalidStatus. A status change the configured workflow forbids returns
// ErrInvalidTransition.
func (r *Repository) UpdateTaskStats(ctx context.Context, planID, taskID string, updates map[string]any, user string) (bool, error) {
	if len(updates) == 0 {
		return false, fmt.Errorf("update task %s: %w: no fields to update", taskID, types.ErrInvalidData)
	}

	found := false
	err := r.store.Update(ctx, func(plans []types.Plan) ([]types.Plan, error) {
		i := indexOf(plans, planID)
		if i < 0 {
			return nil, types.ErrNoChange
		}
		p := &plans[i]
		task, ok := p.FindTask(taskID)
		if !ok {
			return nil, types.ErrNoChange
		}

		old, err := r.applyTaskUpdates(task, updates)
		if err != nil {
			return nil, err
		}
		p.AppendAudit(r.entry(user, types.ActionTaskUpdated, map[string]any{
			"task_id":    task.TaskID,
			"task_title": task.Title,
			"updates":    updates,
			"old_values": old,
		}))
		found = true
		return plans, nil
	})
	if err != nil {
		return false, fmt.Errorf("update task %s in plan %s: %w", taskID, planID, err)
	}
	return found, nil
}

// AddTaskComment appends a comment to the task and records one
// "task_updated" entry carrying the comment text. Returns false when the
// plan or task does not exist.
func (r *Repository) AddTaskComment(ctx context.Context, planID, taskID, user, text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, fmt.Errorf("comment on task %s: %w", taskID, types.ErrInvalidContent)
	}
	if user == "" {
		user = DefaultUser
	}

	found := false
	err := r.store.Update(ctx, func(plans []types.Plan) ([]types.Plan, error) {
		i := indexOf(plans, planID)
		if i < 0 {
			return nil, types.ErrNoChange
		}
		p := &plans[i]
		task, ok := p.FindTask(taskID)
		if !ok {
			return nil, types.ErrNoChange
		}

		task.Comments = append(task.Comments, types.Comment{
			User:      user,
			Text:      text,
			Timestamp: r.now(),
		})
		p.AppendAudit(r.entry(user, types.ActionTaskUpdated, map[string]any{
			"task_id":    task.TaskID,
			"task_title": task.Title,
			"comment":    text,
		}))
		found = true
		return plans, nil
	})
	if err != nil {
		return false, fmt.Errorf("comment on task %s in plan %s: %w", taskID, planID, err)
	}
	return found, nil
}

// applyTaskUpdates sets the named fields on task through its JSON form and
// returns the previous value of each updated field. The task is left
// untouched when any update is rejected.
func (r *Repository) applyTaskUpdates(task *types.Task, updates map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}

	old := make(map[string]any, len(updates))
	for key, value := range updates {
		if key == "task_id" {
			return nil, fmt.Errorf("%w: %s", types.ErrImmutableField, key)
		}
		prev, ok := fields[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q", types.ErrUnknownField, key)
		}
		old[key] = prev
		fields[key] = value
	}

	raw, err = json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	var next types.Task
	if err := json.Unmarshal(raw, &next); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}

	if !next.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidStatus, next.Status)
	}
	if next.Status != task.Status && !r.workflow.Allows(task.Status, next.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", types.ErrInvalidTransition, task.Status, next.Status)
	}

	*task = next
	return old, nil
}
