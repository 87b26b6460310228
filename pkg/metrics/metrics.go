// Package metrics derives progress analytics from a plan snapshot: velocity,
// burndown, task health and per-assignee workload.
//
// Every function is pure. The plan is read, never retained or modified, and
// the current time is passed in so results are reproducible.
package metrics

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/mesh-intelligence/planstore/pkg/types"
)

// DateLayout formats burndown point dates.
const DateLayout = "2006-01-02"

// Unassigned labels workload for tasks with no assignee_name.
const Unassigned = "Unassigned"

// MaxProjectedDays caps the day offset used to date a projected completion.
const MaxProjectedDays = 1_000_000

// Health thresholds, as multiples of a task's estimated hours.
const (
	OverdueRatio = 1.2
	AtRiskRatio  = 0.8
)

// Velocity summarizes completed effort against elapsed time.
type Velocity struct {
	CompletedHours         float64 `json:"completed_hours"`
	DaysWorked             int     `json:"days_worked"`
	VelocityPerDay         float64 `json:"velocity_per_day"`
	EstimatedTotalHours    float64 `json:"estimated_total_hours"`
	RemainingHours         float64 `json:"remaining_hours"`
	PredictedDaysRemaining float64 `json:"predicted_days_remaining"`
}

// BurndownPoint is one sample of the ideal and actual remaining effort.
type BurndownPoint struct {
	Day             float64 `json:"day"`
	Date            string  `json:"date"`
	IdealRemaining  float64 `json:"ideal_remaining"`
	ActualRemaining float64 `json:"actual_remaining"`
}

// TaskHealth counts tasks per health bucket. The buckets partition the
// plan's tasks.
type TaskHealth struct {
	OnTrack int `json:"on_track"`
	AtRisk  int `json:"at_risk"`
	Overdue int `json:"overdue"`
	Blocked int `json:"blocked"`
}

// Total returns the number of classified tasks.
func (h TaskHealth) Total() int {
	return h.OnTrack + h.AtRisk + h.Overdue + h.Blocked
}

// Workload is the effort assigned to one person.
type Workload struct {
	Assignee       string  `json:"assignee"`
	TotalHours     float64 `json:"total_hours"`
	CompletedHours float64 `json:"completed_hours"`
	RemainingHours float64 `json:"remaining_hours"`
	TaskCount      int     `json:"task_count"`
}

// Dashboard bundles every metric for one plan.
type Dashboard struct {
	PlanID   string          `json:"plan_id"`
	Velocity Velocity        `json:"velocity"`
	Burndown []BurndownPoint `json:"burndown"`
	Health   TaskHealth      `json:"health"`
	Workload []Workload      `json:"workload"`
}

// CalculateVelocity measures completed hours per day since the plan was
// created. Completed hours use actual_hours, or estimated_hours when no
// actual hours were logged, over tasks in a done status. Remaining hours are
// the estimates of tasks not yet done. With no completed work the velocity
// and prediction are both zero.
func CalculateVelocity(p *types.Plan, now time.Time) Velocity {
	var v Velocity
	if p == nil {
		v.DaysWorked = 1
		return v
	}
	for t := range p.Tasks() {
		v.EstimatedTotalHours += t.EstimatedHours
		if !t.Status.IsDone() {
			v.RemainingHours += t.EstimatedHours
			continue
		}
		if t.ActualHours > 0 {
			v.CompletedHours += t.ActualHours
		} else {
			v.CompletedHours += t.EstimatedHours
		}
	}

	v.DaysWorked = daysBetween(p.CreatedAt, now)
	v.VelocityPerDay = v.CompletedHours / float64(v.DaysWorked)
	if v.VelocityPerDay > 0 {
		v.PredictedDaysRemaining = v.RemainingHours / v.VelocityPerDay
	}
	return v
}

// CalculateBurndown returns the creation point, the current point and, when
// the plan has measurable velocity, a projected completion point.
//
// The ideal line burns total hours evenly over estimated_total_days; a plan
// without a positive estimate has a flat ideal line.
func CalculateBurndown(p *types.Plan, now time.Time) []BurndownPoint {
	if p == nil {
		return []BurndownPoint{}
	}
	v := CalculateVelocity(p, now)
	total := v.EstimatedTotalHours

	var burnRate float64
	if p.EstimatedTotalDays > 0 {
		burnRate = total / p.EstimatedTotalDays
	}
	start := p.CreatedAt

	points := []BurndownPoint{
		{
			Day:             0,
			Date:            start.Format(DateLayout),
			IdealRemaining:  total,
			ActualRemaining: total,
		},
		{
			Day:             float64(v.DaysWorked),
			Date:            now.Format(DateLayout),
			IdealRemaining:  math.Max(0, total-burnRate*float64(v.DaysWorked)),
			ActualRemaining: v.RemainingHours,
		},
	}
	if v.VelocityPerDay > 0 {
		day := float64(v.DaysWorked) + v.PredictedDaysRemaining
		points = append(points, BurndownPoint{
			Day:  day,
			Date: projectedDate(start, day).Format(DateLayout),
		})
	}
	return points
}

// projectedDate returns start plus day days. Whole days are added on the
// calendar so large offsets cannot overflow a time.Duration.
func projectedDate(start time.Time, day float64) time.Time {
	day = math.Min(day, MaxProjectedDays)
	whole := math.Floor(day)
	return start.AddDate(0, 0, int(whole)).Add(time.Duration((day - whole) * float64(24*time.Hour)))
}

// CalculateTaskHealth classifies every task. Blocked tasks count as blocked
// and done tasks as on track. Other tasks are overdue past 120% of their
// estimate, at risk past 80%, and on track otherwise.
func CalculateTaskHealth(p *types.Plan) TaskHealth {
	var h TaskHealth
	if p == nil {
		return h
	}
	for t := range p.Tasks() {
		switch {
		case t.Status == types.TaskBlocked:
			h.Blocked++
		case t.Status.IsDone():
			h.OnTrack++
		case t.ActualHours > OverdueRatio*t.EstimatedHours:
			h.Overdue++
		case t.ActualHours > AtRiskRatio*t.EstimatedHours:
			h.AtRisk++
		default:
			h.OnTrack++
		}
	}
	return h
}

// GetAssigneeWorkload groups task estimates by assignee_name, sorted by
// total hours descending and then by name. Tasks without an assignee are
// grouped under Unassigned.
func GetAssigneeWorkload(p *types.Plan) []Workload {
	rows := []Workload{}
	if p == nil {
		return rows
	}
	index := map[string]int{}
	for t := range p.Tasks() {
		name := t.AssigneeName
		if name == "" {
			name = Unassigned
		}
		i, ok := index[name]
		if !ok {
			i = len(rows)
			index[name] = i
			rows = append(rows, Workload{Assignee: name})
		}
		w := &rows[i]
		w.TotalHours += t.EstimatedHours
		w.TaskCount++
		if t.Status.IsDone() {
			w.CompletedHours += t.EstimatedHours
		}
	}
	for i := range rows {
		rows[i].RemainingHours = rows[i].TotalHours - rows[i].CompletedHours
	}

	slices.SortFunc(rows, func(a, b Workload) int {
		if c := cmp.Compare(b.TotalHours, a.TotalHours); c != 0 {
			return c
		}
		return cmp.Compare(a.Assignee, b.Assignee)
	})
	return rows
}

// NewDashboard computes every metric for p.
func NewDashboard(p *types.Plan, now time.Time) Dashboard {
	d := Dashboard{
		Velocity: CalculateVelocity(p, now),
		Burndown: CalculateBurndown(p, now),
		Health:   CalculateTaskHealth(p),
		Workload: GetAssigneeWorkload(p),
	}
	if p != nil {
		d.PlanID = p.PlanID
	}
	return d
}

// daysBetween returns whole days from start to now, never less than one.
func daysBetween(start, now time.Time) int {
	days := int(math.Floor(now.Sub(start).Hours() / 24))
	return max(1, days)
}
