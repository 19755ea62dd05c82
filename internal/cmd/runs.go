package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/chainminer/internal/display"
)

// NewRunsCommand creates the runs command
func NewRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded mining runs",
		Args:  cobra.NoArgs,
		RunE:  runRuns,
	}

	addStoreFlags(cmd)
	cmd.Flags().Int("limit", 20, "Maximum number of runs to show (0 = all)")

	return cmd
}

// runRuns implements the runs command logic
func runRuns(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	st, dbPath, err := openExistingStore(cmd)
	if err != nil {
		return err
	}
	if st == nil {
		fmt.Fprintf(out, "No mining store found at: %s\n", dbPath)
		return nil
	}
	defer st.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := st.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs recorded.\n")
		return nil
	}

	fmt.Fprintln(out, display.RunsTable(runs, display.UseColor(out)))
	return nil
}
