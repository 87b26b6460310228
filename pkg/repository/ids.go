package repository

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/planstore/pkg/types"
)

// maxIDAttempts bounds regeneration when a generated ID collides.
const maxIDAttempts = 8

// checkIDs verifies that plan carries non-empty nested IDs, that epic and
// story IDs are unique within the plan, and that its task IDs are unique
// within the plan and unused by every other stored plan.
func checkIDs(plans []types.Plan, plan *types.Plan) error {
	foreign := map[string]string{}
	for i := range plans {
		if plans[i].PlanID == plan.PlanID {
			continue
		}
		for t := range plans[i].Tasks() {
			foreign[t.TaskID] = plans[i].PlanID
		}
	}

	epics := map[string]bool{}
	stories := map[string]bool{}
	tasks := map[string]bool{}
	for _, e := range plan.Epics {
		if e.EpicID == "" {
			return fmt.Errorf("%w: empty epic_id", types.ErrInvalidID)
		}
		if epics[e.EpicID] {
			return fmt.Errorf("%w: epic %s", types.ErrDuplicateID, e.EpicID)
		}
		epics[e.EpicID] = true

		for _, s := range e.Stories {
			if s.StoryID == "" {
				return fmt.Errorf("%w: empty story_id", types.ErrInvalidID)
			}
			if stories[s.StoryID] {
				return fmt.Errorf("%w: story %s", types.ErrDuplicateID, s.StoryID)
			}
			stories[s.StoryID] = true

			for _, t := range s.Tasks {
				if t.TaskID == "" {
					return fmt.Errorf("%w: empty task_id", types.ErrInvalidID)
				}
				if tasks[t.TaskID] {
					return fmt.Errorf("%w: task %s", types.ErrDuplicateID, t.TaskID)
				}
				if owner, ok := foreign[t.TaskID]; ok {
					return fmt.Errorf("%w: task %s already belongs to plan %s", types.ErrDuplicateID, t.TaskID, owner)
				}
				tasks[t.TaskID] = true
			}
		}
	}
	return nil
}

// assignIDs gives plan and every nested entity a fresh ID. Plan and task IDs
// are unique across the store; epic and story IDs within the plan. Task
// dependencies naming a payload task ID are rewritten to the new ID.
func (r *Repository) assignIDs(plans []types.Plan, plan *types.Plan) error {
	planIDs := map[string]bool{}
	taskIDs := map[string]bool{}
	for i := range plans {
		planIDs[plans[i].PlanID] = true
		for t := range plans[i].Tasks() {
			taskIDs[t.TaskID] = true
		}
	}

	var err error
	if plan.PlanID, err = r.uniqueID(planIDs); err != nil {
		return err
	}

	local := map[string]bool{}
	renamed := map[string]string{}
	for ei := range plan.Epics {
		e := &plan.Epics[ei]
		if e.EpicID, err = r.uniqueID(local); err != nil {
			return err
		}
		for si := range e.Stories {
			s := &e.Stories[si]
			if s.StoryID, err = r.uniqueID(local); err != nil {
				return err
			}
			for ti := range s.Tasks {
				t := &s.Tasks[ti]
				old := t.TaskID
				if t.TaskID, err = r.uniqueID(taskIDs); err != nil {
					return err
				}
				if old != "" {
					renamed[old] = t.TaskID
				}
			}
		}
	}

	for t := range plan.Tasks() {
		for i, dep := range t.Dependencies {
			if id, ok := renamed[dep]; ok {
				t.Dependencies[i] = id
			}
		}
	}
	return nil
}

// uniqueID draws IDs until one is absent from taken, then records it.
func (r *Repository) uniqueID(taken map[string]bool) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := r.newID()
		if id != "" && !taken[id] {
			taken[id] = true
			return id, nil
		}
		r.logger.Debug("generated ID collided; regenerating", zap.String("id", id))
	}
	return "", fmt.Errorf("%w: no unique ID after %d attempts", types.ErrDuplicateID, maxIDAttempts)
}

// clonePlan deep-copies p through its JSON encoding.
func clonePlan(p types.Plan) (types.Plan, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return types.Plan{}, fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	var out types.Plan
	if err := json.Unmarshal(data, &out); err != nil {
		return types.Plan{}, fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	return out, nil
}
