package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewClearCommand creates the clear command
func NewClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every run and bucket from the mining store",
		Long: `Delete every recorded run and bucket aggregate from the mining store.
The database and its schema are kept.

Examples:
  # Clear the store (requires confirmation)
  chainminer clear

  # Clear without asking
  chainminer clear --yes`,
		Args: cobra.NoArgs,
		RunE: runClear,
	}

	addStoreFlags(cmd)
	cmd.Flags().Bool("yes", false, "Do not ask for confirmation")

	return cmd
}

// runClear implements the clear command logic
func runClear(cmd *cobra.Command, args []string) error {
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

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		fmt.Fprintf(out, "WARNING: This will delete ALL mining data from %s.\n", dbPath)
		if !confirmAction(cmd.InOrStdin(), out) {
			fmt.Fprintf(out, "Operation cancelled.\n")
			return nil
		}
	}

	if err := st.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("clear mining store: %w", err)
	}
	fmt.Fprintf(out, "Mining store cleared.\n")
	return nil
}
