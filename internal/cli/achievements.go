package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pulse-metrics/pulse/internal/app/engagement"
	"github.com/pulse-metrics/pulse/internal/app/report"
	"github.com/pulse-metrics/pulse/internal/daemon"
)

func init() {
	rootCmd.AddCommand(achievementsCmd)
}

var achievementsCmd = &cobra.Command{
	Use:     "achievements",
	Aliases: []string{"ach"},
	Short:   "List achievements and which are unlocked",
	RunE:    runAchievements,
}

func runAchievements(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	snap, err := d.Reports.Snapshot(cmd.Context(), report.Overrides{})
	if err != nil {
		return err
	}

	defs := engagement.AllAchievements()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, " \tACHIEVEMENT\tCATEGORY\tID")
	for _, a := range defs {
		mark := "·"
		if snap.Unlocked(a.ID) {
			mark = a.Icon
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, a.Name, a.Category, a.ID)
	}
	fmt.Fprintf(w, "\n%d/%d unlocked (rules %s)\n", len(snap.Achievements), len(defs), snap.RuleSetVersion)
	return w.Flush()
}
