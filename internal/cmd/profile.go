package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/chainminer/internal/display"
	"github.com/harrison/chainminer/internal/filelock"
	"github.com/harrison/chainminer/internal/miner"
)

// NewProfileCommand creates the profile command
func NewProfileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show trace lengths per bucket",
		Long: `Show how many cases of each length every stored bucket holds.

Rows are buckets, columns are the trace lengths seen anywhere in the range,
and missing lengths count as zero.

Examples:
  chainminer profile
  chainminer profile --since 2018-03-01 --csv lengths.csv`,
		Args: cobra.NoArgs,
		RunE: runProfile,
	}

	addStoreFlags(cmd)
	addRangeFlags(cmd)
	cmd.Flags().String("csv", "", "Also write the table as CSV to this file")

	return cmd
}

// runProfile implements the profile command logic
func runProfile(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	st, dbPath, err := openExistingStore(cmd)
	if err != nil {
		return err
	}
	if st == nil {
		fmt.Fprintf(out, "No mining store found at: %s\nRun 'chainminer mine' first.\n", dbPath)
		return nil
	}
	defer st.Close()

	hist, err := st.TraceLengths(cmd.Context(), rangeFromFlags(cmd))
	if err != nil {
		return err
	}
	if len(hist) == 0 {
		fmt.Fprintf(out, "No mined buckets in range.\n")
		return nil
	}

	fmt.Fprintln(out, display.LengthTable(hist, display.UseColor(out)))

	if path, _ := cmd.Flags().GetString("csv"); path != "" {
		content, err := (&miner.CSVExporter{Table: miner.TableLengths}).Export(&miner.Report{Histogram: hist})
		if err != nil {
			return err
		}
		if err := filelock.LockAndWrite(path, []byte(content)); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", path)
	}
	return nil
}
