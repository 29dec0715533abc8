package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pulse-metrics/pulse/internal/app/report"
	"github.com/pulse-metrics/pulse/internal/daemon"
	"github.com/pulse-metrics/pulse/internal/domain"
)

func init() {
	f := snapshotCmd.Flags()
	f.BoolVar(&snapshotJSON, "json", false, "Print the snapshot as JSON")
	f.IntVar(&snapshotGoal, "goal", 0, "Goal total (overrides config)")
	f.IntVar(&snapshotWindow, "window", 0, "Challenge length in days (overrides config)")
	f.IntVar(&snapshotElapsed, "elapsed", 0, "Elapsed days (default: derived from start date)")
	f.StringVar(&snapshotTarget, "target", "", "Field the goal counts (overrides config)")
	rootCmd.AddCommand(snapshotCmd)
}

var (
	snapshotJSON    bool
	snapshotGoal    int
	snapshotWindow  int
	snapshotElapsed int
	snapshotTarget  string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Compute and print the current metrics",
	RunE:  runSnapshot,
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	var o report.Overrides
	if cmd.Flags().Changed("goal") {
		o.GoalTotal = &snapshotGoal
	}
	if cmd.Flags().Changed("window") {
		o.WindowDays = &snapshotWindow
	}
	if cmd.Flags().Changed("elapsed") {
		o.ElapsedDays = &snapshotElapsed
	}
	o.TargetField = snapshotTarget

	snap, err := d.Reports.Snapshot(cmd.Context(), o)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if snapshotJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return printSnapshot(out, snap)
}

func printSnapshot(out io.Writer, snap domain.MetricsSnapshot) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "FUNNEL\tTOTAL\tRATE")
	for i, st := range snap.Funnel.Stages {
		rate := "-"
		if i > 0 {
			rate = fmt.Sprintf("%.1f%%", snap.Funnel.Rates[i-1].Rate)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", st.Name, st.Total, rate)
	}
	fmt.Fprintf(w, "overall\t\t%.1f%%\n\n", snap.Funnel.OverallRate)

	p := snap.Projection
	fmt.Fprintln(w, "PROJECTION\tVALUE")
	fmt.Fprintf(w, "target\t%s\n", p.TargetField)
	fmt.Fprintf(w, "accumulated\t%d\n", p.Accumulated)
	fmt.Fprintf(w, "day\t%d (%d remaining)\n", p.ElapsedDays, p.RemainingDays)
	fmt.Fprintf(w, "avg/day\t%.1f\n", p.AvgDaily)
	fmt.Fprintf(w, "projected\t%.0f\n", p.ProjectedTotal)
	fmt.Fprintf(w, "gap\t%.0f\n", p.GapToGoal)
	fmt.Fprintf(w, "needed/day\t%.1f\n", p.RequiredDailyToCloseGap)
	fmt.Fprintf(w, "success\t%.0f%%\n\n", p.SuccessProbability)

	if len(snap.Streaks) > 0 {
		fmt.Fprintln(w, "HABIT\tCURRENT\tLONGEST\tDONE\tRATE")
		for _, s := range snap.Streaks {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d/%d\t%.0f%%\n",
				s.Habit, s.CurrentStreak, s.LongestStreak, s.CompletedDays, s.TotalDays, s.SuccessRate)
		}
		fmt.Fprintln(w)
	}

	if len(snap.GoalProgress) > 0 {
		fmt.Fprintln(w, "TODAY\tCURRENT\tGOAL\tPROGRESS")
		for _, g := range snap.GoalProgress {
			fmt.Fprintf(w, "%s\t%d\t%d\t%.0f%%\n", g.Field, g.Current, g.Goal, g.Percent)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "achievements\t%d unlocked\n", len(snap.Achievements))
	return w.Flush()
}
