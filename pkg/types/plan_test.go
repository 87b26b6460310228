package types

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlan() Plan {
	return Plan{
		PlanID: "plan-1",
		Title:  "Checkout rewrite",
		Status: PlanDraft,
		Epics: []Epic{
			{
				EpicID: "e1",
				Stories: []Story{
					{StoryID: "s1", Tasks: []Task{
						{TaskID: "t1", Status: TaskNotStarted},
						{TaskID: "t2", Status: TaskInProgress},
					}},
					{StoryID: "s2", Tasks: []Task{
						{TaskID: "t3", Status: TaskBlocked},
					}},
				},
			},
			{
				EpicID: "e2",
				Stories: []Story{
					{StoryID: "s3", Tasks: []Task{
						{TaskID: "t4", Status: TaskCompleted},
					}},
				},
			},
		},
	}
}

func TestPlanTasksOrder(t *testing.T) {
	p := samplePlan()
	var ids []string
	for task := range p.Tasks() {
		ids = append(ids, task.TaskID)
	}
	assert.Equal(t, []string{"t1", "t2", "t3", "t4"}, ids)
	assert.Equal(t, 4, p.TaskCount())
}

func TestPlanTasksStopsEarly(t *testing.T) {
	p := samplePlan()
	n := 0
	for range p.Tasks() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestPlanFindTaskReturnsStoragePointer(t *testing.T) {
	p := samplePlan()

	task, ok := p.FindTask("t3")
	require.True(t, ok)
	task.ActualHours = 7

	assert.Equal(t, 7.0, p.Epics[0].Stories[1].Tasks[0].ActualHours)

	_, ok = p.FindTask("missing")
	assert.False(t, ok)
}

func TestPlanValidate(t *testing.T) {
	p := samplePlan()
	require.NoError(t, p.Validate())

	p.Status = "archived"
	assert.ErrorIs(t, p.Validate(), ErrInvalidStatus)

	p = samplePlan()
	p.Epics[1].Stories[0].Tasks[0].Status = "done"
	err := p.Validate()
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Contains(t, err.Error(), "t4")
}

func TestPlanJSONFieldNames(t *testing.T) {
	p := samplePlan()
	p.CreatedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{
		"plan_id", "title", "description", "status", "created_at", "engineer_level",
		"team", "estimated_total_days", "epics", "history", "sticky_notes",
	} {
		assert.Contains(t, raw, key)
	}

	task := raw["epics"].([]any)[0].(map[string]any)["stories"].([]any)[0].(map[string]any)["tasks"].([]any)[0].(map[string]any)
	for _, key := range []string{
		"task_id", "title", "description", "estimated_hours", "actual_hours", "status",
		"assignee_id", "assignee_name", "start_day_offset", "duration_days", "comments", "dependencies",
	} {
		assert.Contains(t, task, key)
	}
}

func TestAppendAuditBoundsHistory(t *testing.T) {
	var p Plan
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < MaxHistory+25; i++ {
		p.AppendAudit(AuditEntry{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			User:      fmt.Sprintf("u%d", i),
			Action:    ActionUpdated,
		})
	}

	require.Len(t, p.History, MaxHistory)
	assert.Equal(t, "u25", p.History[0].User)
	assert.Equal(t, fmt.Sprintf("u%d", MaxHistory+24), p.History[MaxHistory-1].User)
	for i := 1; i < len(p.History); i++ {
		assert.True(t, p.History[i].Timestamp.After(p.History[i-1].Timestamp))
	}

	last, ok := p.LastAudit()
	require.True(t, ok)
	assert.Equal(t, ActionUpdated, last.Action)
	assert.NotNil(t, last.Details)
}

func TestAppendAuditDoesNotAlterEarlierSnapshot(t *testing.T) {
	var p Plan
	for i := 0; i < MaxHistory; i++ {
		p.AppendAudit(AuditEntry{User: fmt.Sprintf("u%d", i), Action: ActionUpdated})
	}
	snapshot := p.History

	p.AppendAudit(AuditEntry{User: "late", Action: ActionDeleted})

	assert.Equal(t, "u0", snapshot[0].User)
	assert.Equal(t, "u1", p.History[0].User)
	assert.Equal(t, "late", p.History[MaxHistory-1].User)
}

func TestLastAuditEmpty(t *testing.T) {
	var p Plan
	_, ok := p.LastAudit()
	assert.False(t, ok)
}
