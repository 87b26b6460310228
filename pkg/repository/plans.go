package repository

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/planstore/pkg/types"
)

// SavePlan inserts or replaces the plan with plan.PlanID.
//
// An insert appends a "created" entry. A replace keeps the stored history
// and creation time, then appends an "updated" entry whose details carry
// only the status change, if any:
//
//	{"changes": {"status": {"old": "draft", "new": "approved"}}}
//
// Other field changes are not itemized. SavePlan rejects unknown status
// values, empty nested IDs, and task IDs already used by another plan.
func (r *Repository) SavePlan(ctx context.Context, plan types.Plan, user string) (string, error) {
	if plan.PlanID == "" {
		return "", fmt.Errorf("save plan: %w: empty plan_id", types.ErrInvalidID)
	}
	if err := plan.Validate(); err != nil {
		return "", fmt.Errorf("save plan: %w", err)
	}
	plan.History = slices.Clone(plan.History)

	err := r.store.Update(ctx, func(plans []types.Plan) ([]types.Plan, error) {
		if err := checkIDs(plans, &plan); err != nil {
			return nil, err
		}

		i := indexOf(plans, plan.PlanID)
		if i < 0 {
			plan.AppendAudit(r.entry(user, types.ActionCreated, map[string]any{
				"title": plan.Title,
			}))
			return append(plans, plan), nil
		}

		stored := plans[i]
		plan.History = stored.History
		plan.CreatedAt = stored.CreatedAt

		changes := map[string]any{}
		if stored.Status != plan.Status {
			changes["status"] = map[string]any{
				"old": string(stored.Status),
				"new": string(plan.Status),
			}
		}
		plan.AppendAudit(r.entry(user, types.ActionUpdated, map[string]any{
			"changes": changes,
		}))
		plans[i] = plan
		return plans, nil
	})
	if err != nil {
		return "", fmt.Errorf("save plan %s: %w", plan.PlanID, err)
	}

	r.logger.Debug("plan saved", zap.String("plan_id", plan.PlanID), zap.String("user", user))
	return plan.PlanID, nil
}

// CreatePlan stores a freshly generated plan payload. It assigns a new
// plan_id and new epic, story and task IDs to every nested entity, rewrites
// task dependencies that referenced the payload's own task IDs, fills in
// default statuses and the creation time, discards any history carried by
// the payload, and appends a "created" entry. The payload is not modified.
func (r *Repository) CreatePlan(ctx context.Context, payload types.Plan, user string) (string, error) {
	plan, err := clonePlan(payload)
	if err != nil {
		return "", fmt.Errorf("create plan: %w", err)
	}
	if plan.Status == "" {
		plan.Status = types.PlanDraft
	}
	for t := range plan.Tasks() {
		if t.Status == "" {
			t.Status = types.TaskNotStarted
		}
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = r.now()
	}
	plan.History = nil
	if err := plan.Validate(); err != nil {
		return "", fmt.Errorf("create plan: %w", err)
	}

	err = r.store.Update(ctx, func(plans []types.Plan) ([]types.Plan, error) {
		if err := r.assignIDs(plans, &plan); err != nil {
			return nil, err
		}
		plan.AppendAudit(r.entry(user, types.ActionCreated, map[string]any{
			"title": plan.Title,
		}))
		return append(plans, plan), nil
	})
	if err != nil {
		return "", fmt.Errorf("create plan: %w", err)
	}

	r.logger.Info("plan created",
		zap.String("plan_id", plan.PlanID),
		zap.Int("tasks", plan.TaskCount()),
		zap.String("user", user))
	return plan.PlanID, nil
}

// DeletePlan removes the plan. A final "deleted" entry is appended to the
// plan before removal and written to the log, since the plan document and
// its history leave the store together. Returns false when no such plan
// exists.
func (r *Repository) DeletePlan(ctx context.Context, planID, user string) (bool, error) {
	found := false
	err := r.store.Update(ctx, func(plans []types.Plan) ([]types.Plan, error) {
		i := indexOf(plans, planID)
		if i < 0 {
			return nil, types.ErrNoChange
		}
		p := plans[i]
		p.AppendAudit(r.entry(user, types.ActionDeleted, map[string]any{
			"title": p.Title,
		}))
		last, _ := p.LastAudit()
		r.logger.Info("plan deleted",
			zap.String("plan_id", planID),
			zap.String("user", last.User),
			zap.Time("at", last.Timestamp),
			zap.Int("history_len", len(p.History)))
		found = true
		return slices.Delete(plans, i, i+1), nil
	})
	if err != nil {
		return false, fmt.Errorf("delete plan %s: %w", planID, err)
	}
	return found, nil
}

// UpdatePlanStatus sets the plan status and appends one "status_changed"
// entry carrying old_status and new_status. Returns false when no such plan
// exists.
func (r *Repository) UpdatePlanStatus(ctx context.Context, planID string, status types.PlanStatus, user string) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("update plan status: %w: %q", types.ErrInvalidStatus, status)
	}

	found := false
	err := r.store.Update(ctx, func(plans []types.Plan) ([]types.Plan, error) {
		i := indexOf(plans, planID)
		if i < 0 {
			return nil, types.ErrNoChange
		}
		p := &plans[i]
		old := p.Status
		p.Status = status
		p.AppendAudit(r.entry(user, types.ActionStatusChanged, map[string]any{
			"old_status": string(old),
			"new_status": string(status),
		}))
		found = true
		return plans, nil
	})
	if err != nil {
		return false, fmt.Errorf("update plan %s status: %w", planID, err)
	}
	return found, nil
}

// UpdateStickyNotes replaces the plan's sticky notes wholesale. Sticky notes
// are collaborative scratch space, so no audit entry is written. Returns
// false when no such plan exists.
func (r *Repository) UpdateStickyNotes(ctx context.Context, planID string, notes []types.StickyNote, user string) (bool, error) {
	found := false
	err := r.store.Update(ctx, func(plans []types.Plan) ([]types.Plan, error) {
		i := indexOf(plans, planID)
		if i < 0 {
			return nil, types.ErrNoChange
		}
		plans[i].StickyNotes = slices.Clone(notes)
		found = true
		return plans, nil
	})
	if err != nil {
		return false, fmt.Errorf("update sticky notes on %s: %w", planID, err)
	}
	r.logger.Debug("sticky notes replaced",
		zap.String("plan_id", planID),
		zap.Int("notes", len(notes)),
		zap.String("user", user))
	return found, nil
}
