package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for chainminer
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chainminer",
		Short: "Heuristic process miner for blockchain call traces",
		Long: `chainminer turns Ethereum call traces into event logs and mines them
for a dependency graph between behavioral categories (contract and user
senders and receivers).

Event logs are split into time buckets, mined concurrently and recorded in a
local SQLite store, so totals over any bucket range can be rebuilt without
re-reading the logs.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewParseCommand())
	cmd.AddCommand(NewMineCommand())
	cmd.AddCommand(NewGraphCommand())
	cmd.AddCommand(NewProfileCommand())
	cmd.AddCommand(NewRunsCommand())
	cmd.AddCommand(NewClearCommand())

	return cmd
}
