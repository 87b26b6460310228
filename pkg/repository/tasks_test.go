package repository

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/planstore/pkg/types"
)

func TestUpdateTaskStatsDeepUpdate(t *testing.T) {
	ctx := context.Background()
	r, _ := newMemRepo(t)

	p := buildPlan("p1", 2, 2, 3)
	_, err := r.SavePlan(ctx, p, "planner")
	require.NoError(t, err)
	before, _ := r.GetPlan(ctx, "p1")

	target := "p1-e1-s0-t2"
	ok, err := r.UpdateTaskStats(ctx, "p1", target, map[string]any{
		"status":       "in_progress",
		"actual_hours": 3.5,
	}, "dev")
	require.NoError(t, err)
	require.True(t, ok)

	after, _ := r.GetPlan(ctx, "p1")
	task, found := after.FindTask(target)
	require.True(t, found)
	assert.Equal(t, types.TaskInProgress, task.Status)
	assert.Equal(t, 3.5, task.ActualHours)
	assert.Equal(t, "Task 1.0.2", task.Title)

	// want points into before, so before now describes the expected plan.
	want, _ := before.FindTask(target)
	want.Status = types.TaskInProgress
	want.ActualHours = 3.5
	if diff := cmp.Diff(before.Epics, after.Epics); diff != "" {
		t.Errorf("unexpected change outside the target task (-want +got):\n%s", diff)
	}

	last := requireLast(t, after)
	assert.Equal(t, types.ActionTaskUpdated, last.Action)
	assert.Equal(t, "dev", last.User)
	assert.Equal(t, target, last.Details["task_id"])
	assert.Equal(t, "Task 1.0.2", last.Details["task_title"])
	assert.Equal(t, map[string]any{"status": "in_progress", "actual_hours": 3.5}, last.Details["updates"])
	assert.Equal(t, map[string]any{"status": "not_started", "actual_hours": 0.0}, last.Details["old_values"])
}

func TestUpdateTaskStatsNotFound(t *testing.T) {
	ctx := context.Background()
	r, _ := newMemRepo(t)
	_, err := r.SavePlan(ctx, buildPlan("p1", 1, 1, 1), "planner")
	require.NoError(t, err)

	ok, err := r.UpdateTaskStats(ctx, "missing", "p1-e0-s0-t0", map[string]any{"actual_hours": 1}, "dev")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.UpdateTaskStats(ctx, "p1", "missing", map[string]any{"actual_hours": 1}, "dev")
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := r.GetPlan(ctx, "p1")
	assert.Len(t, got.History, 1)
}

func TestUpdateTaskStatsRejects(t *testing.T) {
	tests := []struct {
		name    string
		updates map[string]any
		wantErr error
	}{
		{"empty", map[string]any{}, types.ErrInvalidData},
		{"unknown field", map[string]any{"priority": "high"}, types.ErrUnknownField},
		{"task id", map[string]any{"task_id": "t9"}, types.ErrImmutableField},
		{"wrong type", map[string]any{"actual_hours": "lots"}, types.ErrInvalidData},
		{"unknown status", map[string]any{"status": "done"}, types.ErrInvalidStatus},
		{"partial rejection", map[string]any{"actual_hours": 2, "colour": "red"}, types.ErrUnknownField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			r, _ := newMemRepo(t)
			_, err := r.SavePlan(ctx, buildPlan("p1", 1, 1, 1), "planner")
			require.NoError(t, err)
			before, _ := r.GetPlan(ctx, "p1")

			ok, err := r.UpdateTaskStats(ctx, "p1", "p1-e0-s0-t0", tt.updates, "dev")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, ok)

			after, _ := r.GetPlan(ctx, "p1")
			assert.Equal(t, before, after)
		})
	}
}

func TestUpdateTaskStatsStandardWorkflow(t *testing.T) {
	ctx := context.Background()
	r, _ := newMemRepo(t, WithTaskWorkflow(types.StandardWorkflow{}))
	_, err := r.SavePlan(ctx, buildPlan("p1", 1, 1, 1), "planner")
	require.NoError(t, err)

	_, err = r.UpdateTaskStats(ctx, "p1", "p1-e0-s0-t0", map[string]any{"status": "verified_closed"}, "dev")
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	ok, err := r.UpdateTaskStats(ctx, "p1", "p1-e0-s0-t0", map[string]any{"status": "in_progress"}, "dev")
	require.NoError(t, err)
	assert.True(t, ok)

	// Non-status updates are never subject to the workflow.
	ok, err = r.UpdateTaskStats(ctx, "p1", "p1-e0-s0-t0", map[string]any{"assignee_name": "Bo"}, "dev")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateTaskStatsPermissiveByDefault(t *testing.T) {
	ctx := context.Background()
	r, _ := newMemRepo(t)
	_, err := r.SavePlan(ctx, buildPlan("p1", 1, 1, 1), "planner")
	require.NoError(t, err)

	ok, err := r.UpdateTaskStats(ctx, "p1", "p1-e0-s0-t0", map[string]any{"status": "verified_closed"}, "dev")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAddTaskComment(t *testing.T) {
	ctx := context.Background()
	r, _ := newMemRepo(t)
	_, err := r.SavePlan(ctx, buildPlan("p1", 1, 1, 2), "planner")
	require.NoError(t, err)

	ok, err := r.AddTaskComment(ctx, "p1", "p1-e0-s0-t1", "Ana", "  waiting on API keys \n")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = r.AddTaskComment(ctx, "p1", "p1-e0-s0-t1", "", "unblocked")
	require.NoError(t, err)
	require.True(t, ok)

	got, _ := r.GetPlan(ctx, "p1")
	task, _ := got.FindTask("p1-e0-s0-t1")
	require.Len(t, task.Comments, 2)
	assert.Equal(t, "Ana", task.Comments[0].User)
	assert.Equal(t, "waiting on API keys", task.Comments[0].Text)
	assert.Equal(t, DefaultUser, task.Comments[1].User)
	assert.True(t, task.Comments[1].Timestamp.After(task.Comments[0].Timestamp))

	require.Len(t, got.History, 3)
	last := requireLast(t, got)
	assert.Equal(t, types.ActionTaskUpdated, last.Action)
	assert.Equal(t, "unblocked", last.Details["comment"])

	sibling, _ := got.FindTask("p1-e0-s0-t0")
	assert.Empty(t, sibling.Comments)
}

func TestAddTaskCommentRejectsBlank(t *testing.T) {
	ctx := context.Background()
	r, _ := newMemRepo(t)
	_, err := r.SavePlan(ctx, buildPlan("p1", 1, 1, 1), "planner")
	require.NoError(t, err)

	ok, err := r.AddTaskComment(ctx, "p1", "p1-e0-s0-t0", "Ana", "   ")
	assert.ErrorIs(t, err, types.ErrInvalidContent)
	assert.False(t, ok)

	ok, err = r.AddTaskComment(ctx, "p1", "missing", "Ana", "hello")
	require.NoError(t, err)
	assert.False(t, ok)
}
