package types

import (
	"fmt"
	"iter"
	"time"
)

// Plan is the top-level delivery planning document. A Plan owns its Epics,
// which own Stories, which own Tasks; the store never moves a Task between
// Stories.
type Plan struct {
	PlanID             string       `json:"plan_id"`
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	Status             PlanStatus   `json:"status"`
	CreatedAt          time.Time    `json:"created_at"`
	EngineerLevel      string       `json:"engineer_level"`
	Team               []TeamMember `json:"team"`
	EstimatedTotalDays float64      `json:"estimated_total_days"`
	Epics              []Epic       `json:"epics"`
	History            []AuditEntry `json:"history"`
	StickyNotes        []StickyNote `json:"sticky_notes"`
}

// TeamMember describes a person the plan was sized for.
type TeamMember struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Level string `json:"level"`
}

// Epic is the largest unit of the work breakdown. EpicID is unique within
// its Plan.
type Epic struct {
	EpicID        string  `json:"epic_id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	EstimatedDays float64 `json:"estimated_days"`
	Stories       []Story `json:"stories"`
}

// Story groups Tasks under an Epic. StoryID is unique within its Plan.
type Story struct {
	StoryID            string   `json:"story_id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	EstimatedHours     float64  `json:"estimated_hours"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	Tasks              []Task   `json:"tasks"`
}

// Task is the smallest unit of work. TaskID is unique across the whole store
// so a Task can be addressed without knowing its Epic or Story.
//
// Task fields deliberately carry no omitempty: UpdateTaskStats addresses
// fields by their JSON names and relies on every name being present.
type Task struct {
	TaskID         string     `json:"task_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	EstimatedHours float64    `json:"estimated_hours"`
	ActualHours    float64    `json:"actual_hours"`
	Status         TaskStatus `json:"status"`
	AssigneeID     string     `json:"assignee_id"`
	AssigneeName   string     `json:"assignee_name"`
	StartDayOffset int        `json:"start_day_offset"`
	DurationDays   float64    `json:"duration_days"`
	Comments       []Comment  `json:"comments"`
	Dependencies   []string   `json:"dependencies"`
}

// Comment is a remark left on a Task.
type Comment struct {
	User      string    `json:"user"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// StickyNote is a free-form collaborative note pinned to a plan board.
// Sticky notes are scratch space and are not audited.
type StickyNote struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author,omitempty"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Tasks yields every Task in the plan in Epic, Story, Task order. The
// yielded pointers address the plan's own storage.
func (p *Plan) Tasks() iter.Seq[*Task] {
	return func(yield func(*Task) bool) {
		for ei := range p.Epics {
			stories := p.Epics[ei].Stories
			for si := range stories {
				tasks := stories[si].Tasks
				for ti := range tasks {
					if !yield(&tasks[ti]) {
						return
					}
				}
			}
		}
	}
}

// FindTask walks Epics, Stories and Tasks and returns the first Task whose
// ID matches.
func (p *Plan) FindTask(taskID string) (*Task, bool) {
	for t := range p.Tasks() {
		if t.TaskID == taskID {
			return t, true
		}
	}
	return nil, false
}

// TaskCount returns the number of Tasks in the plan.
func (p *Plan) TaskCount() int {
	n := 0
	for range p.Tasks() {
		n++
	}
	return n
}

// Validate checks the plan and task status values against their closed
// vocabularies. It does not check dependencies or ID uniqueness.
func (p *Plan) Validate() error {
	if !p.Status.Valid() {
		return fmt.Errorf("plan %s: %w: %q", p.PlanID, ErrInvalidStatus, p.Status)
	}
	for t := range p.Tasks() {
		if !t.Status.Valid() {
			return fmt.Errorf("task %s: %w: %q", t.TaskID, ErrInvalidStatus, t.Status)
		}
	}
	return nil
}
