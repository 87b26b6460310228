package types

import "time"

// MaxHistory bounds the audit trail kept on each plan. The oldest entries
// are evicted first.
const MaxHistory = 100

// AuditAction names the kind of mutation an AuditEntry records.
type AuditAction string

// Audit actions.
const (
	ActionCreated       AuditAction = "created"
	ActionUpdated       AuditAction = "updated"
	ActionStatusChanged AuditAction = "status_changed"
	ActionTaskUpdated   AuditAction = "task_updated"
	ActionDeleted       AuditAction = "deleted"
)

// AuditEntry records a single mutation of a plan. Entries are never edited
// once appended.
type AuditEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	User      string         `json:"user"`
	Action    AuditAction    `json:"action"`
	Details   map[string]any `json:"details"`
}

// AppendAudit appends e to the plan history and truncates the front of the
// history so that at most MaxHistory entries remain.
func (p *Plan) AppendAudit(e AuditEntry) {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	p.History = append(p.History, e)
	if over := len(p.History) - MaxHistory; over > 0 {
		kept := make([]AuditEntry, MaxHistory)
		copy(kept, p.History[over:])
		p.History = kept
	}
}

// LastAudit returns the most recent audit entry, if any.
func (p *Plan) LastAudit() (AuditEntry, bool) {
	if len(p.History) == 0 {
		return AuditEntry{}, false
	}
	return p.History[len(p.History)-1], true
}
