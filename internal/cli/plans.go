package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/planstore/internal/intake"
	"github.com/mesh-intelligence/planstore/pkg/types"
)

func newImportCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create a plan from a generated payload",
		Long: "Import reads a plan payload (JSON or YAML, \"-\" for stdin), assigns fresh\n" +
			"IDs to the plan and every epic, story and task, and stores it as a new plan.\n" +
			"Slightly malformed JSON is repaired before decoding.",
		Example: "  planstore import plan.json\n  generate-plan | planstore import - --format json",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := intake.ParseFormat(format)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			payload, err := intake.NewDecoder(a.logger).Decode(data, f)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			repo, err := a.repository()
			if err != nil {
				return err
			}
			id, err := repo.CreatePlan(cmd.Context(), payload, a.user())
			if err != nil {
				return err
			}
			return a.output(cmd, map[string]string{"plan_id": id}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Created plan %s (%d tasks)\n", id, payload.TaskCount())
				return err
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", string(intake.FormatAuto), "payload format: auto, json or yaml")
	return cmd
}

// readInput reads the named file, or stdin for "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", types.ErrNotFound, name)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func newListCmd(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository()
			if err != nil {
				return err
			}

			var plans []types.Plan
			if status == "" {
				plans = repo.GetAllPlans(cmd.Context())
			} else {
				s, err := types.ParsePlanStatus(status)
				if err != nil {
					return err
				}
				plans = repo.GetPlansByStatus(cmd.Context(), s)
			}

			return a.output(cmd, plans, func(w io.Writer) error {
				if len(plans) == 0 {
					_, err := fmt.Fprintln(w, "No plans.")
					return err
				}
				rows := make([][]string, 0, len(plans))
				for i := range plans {
					p := &plans[i]
					rows = append(rows, []string{
						p.PlanID,
						string(p.Status),
						strconv.Itoa(p.TaskCount()),
						p.CreatedAt.Format(time.DateOnly),
						truncate(p.Title, 48),
					})
				}
				return table(w, []string{"PLAN ID", "STATUS", "TASKS", "CREATED", "TITLE"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only plans with this status")
	return cmd
}

// getPlan loads planID, returning ErrNotFound when it does not exist.
func (a *app) getPlan(cmd *cobra.Command, planID string) (types.Plan, error) {
	repo, err := a.repository()
	if err != nil {
		return types.Plan{}, err
	}
	p, ok := repo.GetPlan(cmd.Context(), planID)
	if !ok {
		return types.Plan{}, fmt.Errorf("plan %s: %w", planID, types.ErrNotFound)
	}
	return p, nil
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Show a plan and its work breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.getPlan(cmd, args[0])
			if err != nil {
				return err
			}
			return a.output(cmd, p, func(w io.Writer) error {
				return writePlan(w, &p, newPalette(w))
			})
		},
	}
}

func writePlan(w io.Writer, p *types.Plan, pal palette) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  [%s]\n", p.Title, pal.status(string(p.Status), 0))
	fmt.Fprintf(&b, "id: %s  created: %s  estimate: %g days\n", p.PlanID, p.CreatedAt.Format(time.DateOnly), p.EstimatedTotalDays)
	if p.Description != "" {
		fmt.Fprintf(&b, "%s\n", p.Description)
	}
	for _, m := range p.Team {
		fmt.Fprintf(&b, "team: %s (%s, %s)\n", m.Name, m.Role, m.Level)
	}
	for _, e := range p.Epics {
		fmt.Fprintf(&b, "\nEpic %s: %s (%g days)\n", e.EpicID, e.Title, e.EstimatedDays)
		for _, s := range e.Stories {
			fmt.Fprintf(&b, "  Story %s: %s (%s)\n", s.StoryID, s.Title, formatHours(s.EstimatedHours))
			for _, t := range s.Tasks {
				assignee := t.AssigneeName
				if assignee == "" {
					assignee = "-"
				}
				fmt.Fprintf(&b, "    %-16s %s %s/%s  %s  %s\n",
					t.TaskID, pal.status(string(t.Status), 15), formatHours(t.ActualHours), formatHours(t.EstimatedHours), assignee, t.Title)
			}
		}
	}
	if len(p.StickyNotes) > 0 {
		fmt.Fprintf(&b, "\n%d sticky notes\n", len(p.StickyNotes))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "status <plan-id> <status>",
		Short:     "Change a plan's status",
		Long:      "Change a plan's status. Valid statuses: " + joinStatuses(types.PlanStatuses) + ".",
		Args:      cobra.ExactArgs(2),
		ValidArgs: statusNames(types.PlanStatuses),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := types.ParsePlanStatus(args[1])
			if err != nil {
				return err
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}
			ok, err := repo.UpdatePlanStatus(cmd.Context(), args[0], status, a.user())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("plan %s: %w", args[0], types.ErrNotFound)
			}
			return a.output(cmd, map[string]string{"plan_id": args[0], "status": string(status)}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Plan %s is now %s\n", args[0], status)
				return err
			})
		},
	}
}

func statusNames[S ~string](statuses []S) []string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return names
}

func joinStatuses[S ~string](statuses []S) string {
	return strings.Join(statusNames(statuses), ", ")
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <plan-id>",
		Short: "Delete a plan and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository()
			if err != nil {
				return err
			}
			ok, err := repo.DeletePlan(cmd.Context(), args[0], a.user())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("plan %s: %w", args[0], types.ErrNotFound)
			}
			return a.output(cmd, map[string]any{"plan_id": args[0], "deleted": true}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Deleted plan %s\n", args[0])
				return err
			})
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history <plan-id>",
		Short: "Show a plan's audit trail, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.getPlan(cmd, args[0])
			if err != nil {
				return err
			}
			history := p.History
			if history == nil {
				history = []types.AuditEntry{}
			}
			return a.output(cmd, history, func(w io.Writer) error {
				rows := make([][]string, 0, len(history))
				for _, e := range history {
					rows = append(rows, []string{
						e.Timestamp.Format(time.RFC3339),
						e.User,
						string(e.Action),
						formatDetails(e.Details),
					})
				}
				return table(w, []string{"TIME", "USER", "ACTION", "DETAILS"}, rows)
			})
		},
	}
}

// formatDetails renders audit details as sorted key=value pairs.
func formatDetails(details map[string]any) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := details[k]
		var s string
		if str, ok := v.(string); ok {
			s = str
		} else if raw, err := json.Marshal(v); err == nil {
			s = string(raw)
		} else {
			s = fmt.Sprint(v)
		}
		parts = append(parts, k+"="+s)
	}
	return truncate(strings.Join(parts, " "), 120)
}
