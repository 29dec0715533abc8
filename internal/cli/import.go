package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pulse-metrics/pulse/internal/app/ingest"
	"github.com/pulse-metrics/pulse/internal/daemon"
)

func init() {
	importHabitsCmd.Flags().StringSliceVar(&importHabitNames, "habits", nil, "Habit columns to read (default: every column but the date)")
	importHistoryCmd.Flags().IntVar(&importHistoryLimit, "limit", 20, "Number of batches to show")

	importCmd.AddCommand(importDailyCmd, importHabitsCmd, importHistoryCmd)
	rootCmd.AddCommand(importCmd)
}

var (
	importHabitNames   []string
	importHistoryLimit int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import tracker rows from a YAML or JSON file",
}

var importDailyCmd = &cobra.Command{
	Use:   "daily FILE",
	Short: "Import daily outreach counters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], false)
	},
}

var importHabitsCmd = &cobra.Command{
	Use:   "habits FILE",
	Short: "Import habit completion marks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], true)
	},
}

var importHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List past imports",
	RunE:  runImportHistory,
}

func runImport(cmd *cobra.Command, path string, habits bool) error {
	rows, err := ingest.ReadFile(path)
	if err != nil {
		return err
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	source := filepath.Base(path)
	var res ingest.Result
	if habits {
		res, err = d.Importer.ImportHabits(cmd.Context(), source, rows, importHabitNames)
	} else {
		res, err = d.Importer.ImportDaily(cmd.Context(), source, rows)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	b := res.Batch
	fmt.Fprintf(out, "Imported %d %s rows from %s (batch %s)\n", b.Rows, b.Kind, source, b.ID)
	if b.Malformed > 0 {
		fmt.Fprintf(out, "  %d malformed cells read as 0\n", b.Malformed)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(out, "  skipped %s\n", e.Error())
	}
	return nil
}

func runImportHistory(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	list, err := d.DB.ListImports(cmd.Context(), importHistoryLimit)
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No imports yet. Run 'pulse import daily <file>' to get started.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BATCH\tKIND\tSOURCE\tROWS\tSKIPPED\tMALFORMED\tIMPORTED")
	for _, b := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			strings.SplitN(b.ID, "-", 2)[0],
			b.Kind, b.Source, b.Rows, b.Skipped, b.Malformed,
			b.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}
