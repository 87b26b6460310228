package types

import "fmt"

// PlanStatus is the lifecycle state of a whole Plan.
type PlanStatus string

// Plan states.
const (
	PlanDraft           PlanStatus = "draft"
	PlanPendingApproval PlanStatus = "pending_approval"
	PlanApproved        PlanStatus = "approved"
	PlanInProgress      PlanStatus = "in_progress"
	PlanCompleted       PlanStatus = "completed"
)

// PlanStatuses lists every Plan state in lifecycle order.
var PlanStatuses = []PlanStatus{
	PlanDraft,
	PlanPendingApproval,
	PlanApproved,
	PlanInProgress,
	PlanCompleted,
}

// Valid reports whether s belongs to the Plan vocabulary.
func (s PlanStatus) Valid() bool {
	for _, v := range PlanStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParsePlanStatus converts s to a PlanStatus. Returns ErrInvalidStatus for
// values outside the vocabulary.
func ParsePlanStatus(s string) (PlanStatus, error) {
	ps := PlanStatus(s)
	if !ps.Valid() {
		return "", fmt.Errorf("%w: plan status %q", ErrInvalidStatus, s)
	}
	return ps, nil
}

// TaskStatus is the workflow state of a Task.
type TaskStatus string

// Task states. NotStarted is initial; Completed and VerifiedClosed are
// terminal.
const (
	TaskNotStarted     TaskStatus = "not_started"
	TaskInProgress     TaskStatus = "in_progress"
	TaskCodeReview     TaskStatus = "code_review"
	TaskUnitTesting    TaskStatus = "unit_testing"
	TaskCompleted      TaskStatus = "completed"
	TaskBlocked        TaskStatus = "blocked"
	TaskVerifiedClosed TaskStatus = "verified_closed"
)

// TaskStatuses lists every Task state.
var TaskStatuses = []TaskStatus{
	TaskNotStarted,
	TaskInProgress,
	TaskCodeReview,
	TaskUnitTesting,
	TaskCompleted,
	TaskBlocked,
	TaskVerifiedClosed,
}

// Valid reports whether s belongs to the Task vocabulary.
func (s TaskStatus) Valid() bool {
	for _, v := range TaskStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsDone reports whether the task counts as finished work.
func (s TaskStatus) IsDone() bool {
	return s == TaskCompleted || s == TaskVerifiedClosed
}

// ParseTaskStatus converts s to a TaskStatus. Returns ErrInvalidStatus for
// values outside the vocabulary.
func ParseTaskStatus(s string) (TaskStatus, error) {
	ts := TaskStatus(s)
	if !ts.Valid() {
		return "", fmt.Errorf("%w: task status %q", ErrInvalidStatus, s)
	}
	return ts, nil
}

// TaskWorkflow decides whether a task may move from one status to another.
// The store itself never enforces a graph; a workflow is a caller-side policy.
type TaskWorkflow interface {
	Allows(from, to TaskStatus) bool
}

// PermissiveWorkflow allows every transition, including to the same state.
// A person can always correct a status.
type PermissiveWorkflow struct{}

// Allows always returns true.
func (PermissiveWorkflow) Allows(from, to TaskStatus) bool { return true }

// StandardWorkflow encodes the conventional delivery flow:
//
//	not_started -> in_progress -> code_review -> unit_testing -> completed -> verified_closed
//
// Review and testing may fall back to in_progress, a completed task may be
// reopened, and any non-terminal state may move to or from blocked.
// Setting the current state again is always allowed.
type StandardWorkflow struct{}

var standardTransitions = map[TaskStatus][]TaskStatus{
	TaskNotStarted:  {TaskInProgress, TaskBlocked},
	TaskInProgress:  {TaskCodeReview, TaskBlocked},
	TaskCodeReview:  {TaskUnitTesting, TaskInProgress, TaskBlocked},
	TaskUnitTesting: {TaskCompleted, TaskInProgress, TaskBlocked},
	TaskCompleted:   {TaskVerifiedClosed, TaskInProgress},
	TaskBlocked:     {TaskNotStarted, TaskInProgress, TaskCodeReview, TaskUnitTesting},
}

// Allows reports whether from -> to is part of the standard flow.
func (StandardWorkflow) Allows(from, to TaskStatus) bool {
	if from == to {
		return true
	}
	for _, next := range standardTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
