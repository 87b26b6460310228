// Package types defines the plan document model, the Plan and Task status
// vocabularies, the audit trail entry, the PlanStore interface, and the
// standard error values shared by every plan store backend.
package types
