// Package repository implements the plan repository: whole-document CRUD
// over a types.PlanStore, targeted Task mutations, and the per-plan audit
// trail.
//
// Every mutating call runs as one read-modify-write cycle inside a single
// PlanStore.Update lock span, so two writers never interleave within a call.
// Across calls the last full write wins. Every successful mutation except
// UpdateStickyNotes appends exactly one audit entry to the owning plan.
//
// Read operations never fail: a lock timeout or corrupt store is logged and
// reported as an empty result. Write operations return every failure.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/planstore/pkg/types"
)

// DefaultUser is recorded in audit entries when the caller names no user.
const DefaultUser = "system"

// Repository is the entry point for plan storage. It keeps no plan state of
// its own; every call goes to the backing store.
type Repository struct {
	store    types.PlanStore
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
	workflow types.TaskWorkflow
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock sets the time source used for audit entries, comments and plan
// creation.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator sets the generator used by CreatePlan.
func WithIDGenerator(gen func() string) Option {
	return func(r *Repository) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// WithTaskWorkflow sets the policy consulted when UpdateTaskStats changes a
// task status. The default, types.PermissiveWorkflow, allows any transition.
func WithTaskWorkflow(w types.TaskWorkflow) Option {
	return func(r *Repository) {
		if w != nil {
			r.workflow = w
		}
	}
}

// New returns a Repository backed by store.
func New(store types.PlanStore, opts ...Option) *Repository {
	r := &Repository{
		store:    store,
		logger:   zap.NewNop(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    generateUUID,
		workflow: types.PermissiveWorkflow{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// generateUUID generates a new UUID v7 for entity IDs.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}

// ReadAll returns every stored plan. Store failures are logged and yield an
// empty slice.
func (r *Repository) ReadAll(ctx context.Context) []types.Plan {
	plans, err := r.store.ReadAll(ctx)
	if err != nil {
		r.logger.Warn("reading plans failed; reporting empty store", zap.Error(err))
		return []types.Plan{}
	}
	return plans
}

// WriteAll replaces the entire stored collection. Prefer the targeted
// operations; WriteAll appends no audit entries.
func (r *Repository) WriteAll(ctx context.Context, plans []types.Plan) error {
	return r.store.WriteAll(ctx, plans)
}

// GetPlan returns the plan with the given ID.
func (r *Repository) GetPlan(ctx context.Context, planID string) (types.Plan, bool) {
	plans := r.ReadAll(ctx)
	if i := indexOf(plans, planID); i >= 0 {
		return plans[i], true
	}
	return types.Plan{}, false
}

// GetAllPlans returns every stored plan in stored order.
func (r *Repository) GetAllPlans(ctx context.Context) []types.Plan {
	return r.ReadAll(ctx)
}

// GetPlansByStatus returns the plans whose status equals status exactly.
func (r *Repository) GetPlansByStatus(ctx context.Context, status types.PlanStatus) []types.Plan {
	matched := []types.Plan{}
	for _, p := range r.ReadAll(ctx) {
		if p.Status == status {
			matched = append(matched, p)
		}
	}
	return matched
}

func indexOf(plans []types.Plan, planID string) int {
	for i := range plans {
		if plans[i].PlanID == planID {
			return i
		}
	}
	return -1
}

func (r *Repository) entry(user string, action types.AuditAction, details map[string]any) types.AuditEntry {
	if user == "" {
		user = DefaultUser
	}
	return types.AuditEntry{
		Timestamp: r.now(),
		User:      user,
		Action:    action,
		Details:   details,
	}
}
