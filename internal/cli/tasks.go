package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/planstore/pkg/types"
)

func newTaskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Update tasks inside a plan",
	}
	cmd.AddCommand(newTaskUpdateCmd(a), newTaskCommentCmd(a))
	return cmd
}

func newTaskUpdateCmd(a *app) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "update <plan-id> <task-id> --set key=value...",
		Short: "Set task fields",
		Long: `Update sets fields of one task. Keys are task field names such as status,
actual_hours, assignee_name or start_day_offset. Values are parsed as JSON
when possible and used as strings otherwise. Text fields such as title and
assignee_name always keep the value as written.

Valid task statuses: ` + joinStatuses(types.TaskStatuses) + `.`,
		Example: "  planstore task update p1 t3 --set status=in_progress --set actual_hours=2.5",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(sets) == 0 {
				return fmt.Errorf("%w: at least one --set is required", types.ErrInvalidData)
			}
			updates, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}
			ok, err := repo.UpdateTaskStats(cmd.Context(), args[0], args[1], updates, a.user())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("task %s in plan %s: %w", args[1], args[0], types.ErrNotFound)
			}

			p, _ := repo.GetPlan(cmd.Context(), args[0])
			task, found := p.FindTask(args[1])
			if !found {
				return fmt.Errorf("task %s in plan %s: %w", args[1], args[0], types.ErrNotFound)
			}
			return a.output(cmd, task, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Updated task %s: %s\n", task.TaskID, formatDetails(updates))
				return err
			})
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field assignment key=value (repeatable)")
	return cmd
}

// stringFields are task fields whose values are always taken verbatim.
var stringFields = map[string]bool{
	"title":         true,
	"description":   true,
	"status":        true,
	"assignee_id":   true,
	"assignee_name": true,
}

// parseAssignments parses key=value pairs. Values that are valid JSON keep
// their JSON type; anything else is a string. String-typed fields keep the
// raw value unless it is a quoted JSON string.
func parseAssignments(pairs []string) (map[string]any, error) {
	updates := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: invalid assignment %q (expected key=value)", types.ErrInvalidData, pair)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		if _, isString := parsed.(string); stringFields[key] && !isString {
			parsed = value
		}
		updates[key] = parsed
	}
	return updates, nil
}

func newTaskCommentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <plan-id> <task-id> <text>...",
		Short: "Add a comment to a task",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args[2:], " ")
			repo, err := a.repository()
			if err != nil {
				return err
			}
			ok, err := repo.AddTaskComment(cmd.Context(), args[0], args[1], a.user(), text)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("task %s in plan %s: %w", args[1], args[0], types.ErrNotFound)
			}
			result := map[string]string{"plan_id": args[0], "task_id": args[1], "comment": strings.TrimSpace(text)}
			return a.output(cmd, result, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Commented on task %s\n", args[1])
				return err
			})
		},
	}
}
