package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/planstore/pkg/metrics"
	"github.com/mesh-intelligence/planstore/pkg/types"
)

// timeNow is the clock used for metrics and note timestamps.
var timeNow = func() time.Time { return time.Now().UTC() }

func newMetricsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics [plan-id...]",
		Short: "Show velocity, burndown, task health and workload",
		Long: "Metrics reports progress analytics for the named plans, or for every\n" +
			"plan when none is named.",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository()
			if err != nil {
				return err
			}

			var plans []types.Plan
			if len(args) == 0 {
				plans = repo.GetAllPlans(cmd.Context())
			} else {
				for _, id := range args {
					p, ok := repo.GetPlan(cmd.Context(), id)
					if !ok {
						return fmt.Errorf("plan %s: %w", id, types.ErrNotFound)
					}
					plans = append(plans, p)
				}
			}

			dashboards := computeDashboards(plans, timeNow())
			return a.output(cmd, dashboards, func(w io.Writer) error {
				for i, d := range dashboards {
					if i > 0 {
						fmt.Fprintln(w)
					}
					if err := writeDashboard(w, d); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

// computeDashboards computes every plan's dashboard concurrently, keeping
// the input order. The group only bounds the fan-out; no task fails.
func computeDashboards(plans []types.Plan, now time.Time) []metrics.Dashboard {
	out := make([]metrics.Dashboard, len(plans))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range plans {
		g.Go(func() error {
			out[i] = metrics.NewDashboard(&plans[i], now)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func writeDashboard(w io.Writer, d metrics.Dashboard) error {
	v := d.Velocity
	h := d.Health
	var b strings.Builder
	fmt.Fprintf(&b, "Plan %s\n", d.PlanID)
	fmt.Fprintf(&b, "  velocity:  %.2fh/day over %d days (%s done, %s remaining of %s)\n",
		v.VelocityPerDay, v.DaysWorked, formatHours(v.CompletedHours), formatHours(v.RemainingHours), formatHours(v.EstimatedTotalHours))
	if v.VelocityPerDay > 0 {
		fmt.Fprintf(&b, "  predicted: %.1f days remaining\n", v.PredictedDaysRemaining)
	} else {
		fmt.Fprintf(&b, "  predicted: no completed work yet\n")
	}
	fmt.Fprintf(&b, "  health:    %d on track, %d at risk, %d overdue, %d blocked\n",
		h.OnTrack, h.AtRisk, h.Overdue, h.Blocked)
	fmt.Fprintf(&b, "  burndown:\n")
	for _, p := range d.Burndown {
		fmt.Fprintf(&b, "    day %5.1f  %s  ideal %s  actual %s\n",
			p.Day, p.Date, formatHours(p.IdealRemaining), formatHours(p.ActualRemaining))
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	if len(d.Workload) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(d.Workload))
	for _, wl := range d.Workload {
		rows = append(rows, []string{
			"  " + wl.Assignee,
			formatHours(wl.TotalHours),
			formatHours(wl.CompletedHours),
			formatHours(wl.RemainingHours),
			fmt.Sprint(wl.TaskCount),
		})
	}
	return table(w, []string{"  ASSIGNEE", "TOTAL", "DONE", "REMAINING", "TASKS"}, rows)
}
