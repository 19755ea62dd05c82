package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/chainminer/internal/display"
	"github.com/harrison/chainminer/internal/miner"
	"github.com/harrison/chainminer/internal/pipeline"
)

// NewGraphCommand creates the graph command
func NewGraphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Rebuild the dependency graph from stored buckets",
		Long: `Rebuild the dependency graph over a range of stored buckets.

Transition counts of every bucket in the range are read from the mining
store and summed, then confidence and cutoffs are applied to the totals. Cutoffs can
differ from the ones used while mining.

With --output or --format the totals are also exported as
rgd_<first>_to_<last>_*.

Examples:
  chainminer graph
  chainminer graph --since 2018-03-01 --until 2018-03-31
  chainminer graph --significance-cutoff 0.9 --format md --output reports/`,
		Args: cobra.NoArgs,
		RunE: runGraph,
	}

	addStoreFlags(cmd)
	addRangeFlags(cmd)
	cmd.Flags().Float64("relative-cutoff", 0, "Drop edges whose share of transitions is not above this, in [0, 1)")
	cmd.Flags().Float64("significance-cutoff", 0, "Drop edges whose confidence is not above this, in [-1, 1)")
	cmd.Flags().StringSlice("format", nil, "Export format: csv, json, markdown, html (repeatable)")
	cmd.Flags().String("output", "", "Directory for exported tables")

	return cmd
}

// runGraph implements the graph command logic
func runGraph(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("relative-cutoff") {
		cfg.Mining.RelativeCutoff, _ = flags.GetFloat64("relative-cutoff")
	}
	if flags.Changed("significance-cutoff") {
		cfg.Mining.SignificanceCutoff, _ = flags.GetFloat64("significance-cutoff")
	}
	if flags.Changed("output") {
		cfg.OutputDir, _ = flags.GetString("output")
	}
	if formats, _ := flags.GetStringSlice("format"); len(formats) > 0 {
		cfg.Formats = formats
	}
	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	m, err := pipeline.New(opts)
	if err != nil {
		return err
	}

	st, dbPath, err := openExistingStore(cmd)
	if err != nil {
		return err
	}
	if st == nil {
		fmt.Fprintf(out, "No mining store found at: %s\nRun 'chainminer mine' first.\n", dbPath)
		return nil
	}
	defer st.Close()

	ctx := cmd.Context()
	r := rangeFromFlags(cmd)

	series, err := st.BucketTransitions(ctx, r)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		fmt.Fprintf(out, "No mined buckets in range.\n")
		return nil
	}
	first, last, err := st.BucketSpan(ctx, r)
	if err != nil {
		return err
	}

	totals, err := m.Fold(series.Totals())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Dependency graph %s to %s (%d transitions):\n", first, last, totals.Counts.Total())
	fmt.Fprintln(out, display.GraphTable(totals.Graph, display.UseColor(out)))

	if !flags.Changed("output") && !flags.Changed("format") {
		return nil
	}

	hist, err := st.TraceLengths(ctx, r)
	if err != nil {
		return err
	}
	report := &miner.Report{
		Name:       "totals",
		Counts:     totals.Counts,
		Confidence: totals.Confidence,
		Graph:      totals.Graph,
		Histogram:  hist,
		Series:     series,
	}
	paths, err := miner.WriteReport(report, cfg.OutputDir, fmt.Sprintf("rgd_%s_to_%s", first, last), cfg.Formats)
	if err != nil {
		return fmt.Errorf("export totals: %w", err)
	}
	fmt.Fprintf(out, "Exported %d file(s) to %s\n", len(paths), cfg.OutputDir)
	return nil
}
