package metrics

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/planstore/pkg/types"
)

var created = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func planWithTasks(tasks ...types.Task) *types.Plan {
	return &types.Plan{
		PlanID:             "p1",
		Status:             types.PlanInProgress,
		CreatedAt:          created,
		EstimatedTotalDays: 4,
		Epics: []types.Epic{{
			EpicID: "e1",
			Stories: []types.Story{{
				StoryID: "s1",
				Tasks:   tasks,
			}},
		}},
	}
}

// scenarioPlan has two 4-hour tasks: A completed with 3 actual hours and B
// not started.
func scenarioPlan() *types.Plan {
	return planWithTasks(
		types.Task{TaskID: "a", EstimatedHours: 4, ActualHours: 3, Status: types.TaskCompleted, AssigneeName: "Ana"},
		types.Task{TaskID: "b", EstimatedHours: 4, Status: types.TaskNotStarted, AssigneeName: "Bo"},
	)
}

func TestCalculateVelocityScenario(t *testing.T) {
	now := created.Add(3*24*time.Hour + 5*time.Hour)
	v := CalculateVelocity(scenarioPlan(), now)

	assert.Equal(t, 3.0, v.CompletedHours)
	assert.Equal(t, 4.0, v.RemainingHours)
	assert.Equal(t, 8.0, v.EstimatedTotalHours)
	assert.Equal(t, 3, v.DaysWorked)
	assert.Equal(t, 1.0, v.VelocityPerDay)
	assert.Equal(t, 4.0, v.PredictedDaysRemaining)
}

func TestCalculateVelocityZeroBoundary(t *testing.T) {
	p := planWithTasks(
		types.Task{TaskID: "a", EstimatedHours: 5, Status: types.TaskInProgress, ActualHours: 2},
		types.Task{TaskID: "b", EstimatedHours: 3, Status: types.TaskBlocked},
	)
	v := CalculateVelocity(p, created.Add(10*24*time.Hour))

	assert.Zero(t, v.CompletedHours)
	assert.Zero(t, v.VelocityPerDay)
	assert.Zero(t, v.PredictedDaysRemaining)
	assert.Equal(t, 8.0, v.RemainingHours)
}

func TestCalculateVelocityDaysWorkedFloor(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{"same instant", 0, 1},
		{"clock skew", -2 * time.Hour, 1},
		{"under a day", 23 * time.Hour, 1},
		{"just over two days", 49 * time.Hour, 2},
		{"a week", 7 * 24 * time.Hour, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := CalculateVelocity(scenarioPlan(), created.Add(tt.elapsed))
			assert.Equal(t, tt.want, v.DaysWorked)
		})
	}
}

func TestCalculateVelocityUsesEstimateWithoutActuals(t *testing.T) {
	p := planWithTasks(
		types.Task{TaskID: "a", EstimatedHours: 6, Status: types.TaskVerifiedClosed},
		types.Task{TaskID: "b", EstimatedHours: 2, ActualHours: 1, Status: types.TaskCompleted},
	)
	v := CalculateVelocity(p, created.Add(48*time.Hour))
	assert.Equal(t, 7.0, v.CompletedHours)
	assert.Zero(t, v.RemainingHours)
	assert.Zero(t, v.PredictedDaysRemaining)
}

func TestCalculateTaskHealthScenario(t *testing.T) {
	assert.Equal(t, TaskHealth{OnTrack: 2}, CalculateTaskHealth(scenarioPlan()))
}

func TestCalculateTaskHealthThresholds(t *testing.T) {
	tests := []struct {
		name string
		task types.Task
		want TaskHealth
	}{
		{"blocked wins over hours", types.Task{EstimatedHours: 1, ActualHours: 9, Status: types.TaskBlocked}, TaskHealth{Blocked: 1}},
		{"completed over estimate", types.Task{EstimatedHours: 1, ActualHours: 9, Status: types.TaskCompleted}, TaskHealth{OnTrack: 1}},
		{"verified closed", types.Task{EstimatedHours: 1, ActualHours: 9, Status: types.TaskVerifiedClosed}, TaskHealth{OnTrack: 1}},
		{"over 120 percent", types.Task{EstimatedHours: 10, ActualHours: 12.5, Status: types.TaskInProgress}, TaskHealth{Overdue: 1}},
		{"exactly 120 percent", types.Task{EstimatedHours: 10, ActualHours: 12, Status: types.TaskInProgress}, TaskHealth{AtRisk: 1}},
		{"over 80 percent", types.Task{EstimatedHours: 10, ActualHours: 8.5, Status: types.TaskCodeReview}, TaskHealth{AtRisk: 1}},
		{"exactly 80 percent", types.Task{EstimatedHours: 10, ActualHours: 8, Status: types.TaskUnitTesting}, TaskHealth{OnTrack: 1}},
		{"no estimate with hours", types.Task{ActualHours: 1, Status: types.TaskInProgress}, TaskHealth{Overdue: 1}},
		{"nothing logged", types.Task{EstimatedHours: 10, Status: types.TaskNotStarted}, TaskHealth{OnTrack: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateTaskHealth(planWithTasks(tt.task))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, got.Total())
		})
	}
}

func TestCalculateBurndown(t *testing.T) {
	now := created.Add(2 * 24 * time.Hour)
	p := scenarioPlan()

	points := CalculateBurndown(p, now)
	require.Len(t, points, 3)

	assert.Equal(t, BurndownPoint{Day: 0, Date: "2026-03-02", IdealRemaining: 8, ActualRemaining: 8}, points[0])
	// 8 hours over 4 days burns 2 per day; two days in, 4 remain ideally.
	assert.Equal(t, BurndownPoint{Day: 2, Date: "2026-03-04", IdealRemaining: 4, ActualRemaining: 4}, points[1])
	// Velocity 1.5h/day leaves 4h for another 8/3 days.
	assert.InDelta(t, 2+8.0/3, points[2].Day, 1e-9)
	assert.Equal(t, "2026-03-06", points[2].Date)
	assert.Zero(t, points[2].IdealRemaining)
	assert.Zero(t, points[2].ActualRemaining)
}

func TestCalculateBurndownSlowVelocity(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(200 * 24 * time.Hour)
	p := planWithTasks(
		types.Task{TaskID: "a", EstimatedHours: 1, Status: types.TaskCompleted},
		types.Task{TaskID: "b", EstimatedHours: 1000, Status: types.TaskNotStarted},
	)
	p.CreatedAt = start

	points := CalculateBurndown(p, now)
	require.Len(t, points, 3)
	assert.InDelta(t, 200200.0, points[2].Day, 1e-6)

	projected, err := time.Parse(DateLayout, points[2].Date)
	require.NoError(t, err)
	assert.False(t, projected.Before(now.Truncate(24*time.Hour)), "projected %s before %s", points[2].Date, now)
	assert.Equal(t, start.AddDate(0, 0, 200200).Format(DateLayout), points[2].Date)
}

func TestProjectedDateCapped(t *testing.T) {
	got := projectedDate(created, math.Inf(1))
	assert.Equal(t, created.AddDate(0, 0, MaxProjectedDays), got)
	assert.Equal(t, created.Add(36*time.Hour), projectedDate(created, 1.5))
}

func TestCalculateBurndownWithoutVelocity(t *testing.T) {
	p := planWithTasks(types.Task{TaskID: "a", EstimatedHours: 5, Status: types.TaskNotStarted})
	points := CalculateBurndown(p, created.Add(10*24*time.Hour))
	require.Len(t, points, 2)
	assert.Zero(t, points[1].IdealRemaining, "ideal line floors at zero past the estimate")
	assert.Equal(t, 5.0, points[1].ActualRemaining)
}

func TestCalculateBurndownFlatIdealWithoutEstimate(t *testing.T) {
	p := scenarioPlan()
	p.EstimatedTotalDays = 0
	points := CalculateBurndown(p, created.Add(3*24*time.Hour))
	assert.Equal(t, 8.0, points[1].IdealRemaining)
}

func TestGetAssigneeWorkload(t *testing.T) {
	p := planWithTasks(
		types.Task{TaskID: "1", EstimatedHours: 4, AssigneeName: "Bo", Status: types.TaskCompleted},
		types.Task{TaskID: "2", EstimatedHours: 6, AssigneeName: "Bo", Status: types.TaskInProgress},
		types.Task{TaskID: "3", EstimatedHours: 10, AssigneeName: "Ana", Status: types.TaskNotStarted},
		types.Task{TaskID: "4", EstimatedHours: 3, Status: types.TaskNotStarted},
		types.Task{TaskID: "5", EstimatedHours: 2, AssigneeName: "Cy", Status: types.TaskVerifiedClosed},
		types.Task{TaskID: "6", EstimatedHours: 1, AssigneeName: "Cy", Status: types.TaskBlocked},
	)

	got := GetAssigneeWorkload(p)
	want := []Workload{
		{Assignee: "Ana", TotalHours: 10, RemainingHours: 10, TaskCount: 1},
		{Assignee: "Bo", TotalHours: 10, CompletedHours: 4, RemainingHours: 6, TaskCount: 2},
		{Assignee: "Cy", TotalHours: 3, CompletedHours: 2, RemainingHours: 1, TaskCount: 2},
		{Assignee: Unassigned, TotalHours: 3, RemainingHours: 3, TaskCount: 1},
	}
	assert.Equal(t, want, got)
}

func TestMetricsDoNotModifyPlan(t *testing.T) {
	p := scenarioPlan()
	before, err := json.Marshal(p)
	require.NoError(t, err)

	NewDashboard(p, created.Add(72*time.Hour))

	after, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestNewDashboard(t *testing.T) {
	d := NewDashboard(scenarioPlan(), created.Add(72*time.Hour))
	assert.Equal(t, "p1", d.PlanID)
	assert.Equal(t, 2, d.Health.Total())
	assert.Len(t, d.Workload, 2)
	assert.Len(t, d.Burndown, 3)

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Contains(t, fields["velocity"], "predicted_days_remaining")
	assert.Contains(t, fields["health"], "on_track")
}

func TestEmptyPlan(t *testing.T) {
	p := planWithTasks()
	assert.Equal(t, Velocity{DaysWorked: 1}, CalculateVelocity(p, created))
	assert.Equal(t, TaskHealth{}, CalculateTaskHealth(p))
	assert.Empty(t, GetAssigneeWorkload(p))
	assert.Len(t, CalculateBurndown(p, created), 2)
}
