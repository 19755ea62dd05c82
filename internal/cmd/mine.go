package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/harrison/chainminer/internal/display"
	"github.com/harrison/chainminer/internal/eventlog"
	"github.com/harrison/chainminer/internal/fileutil"
	"github.com/harrison/chainminer/internal/logger"
	"github.com/harrison/chainminer/internal/miner"
	"github.com/harrison/chainminer/internal/models"
	"github.com/harrison/chainminer/internal/pipeline"
	"github.com/harrison/chainminer/internal/store"
)

// NewMineCommand creates the mine command
func NewMineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mine <event-log-or-directory>...",
		Short: "Mine event logs for a dependency graph",
		Long: `Mine one or more event logs.

Each log is split into time buckets (one UTC day by default). Every bucket
is mined on its own and exported as mr_<bucket>_in_<log>_*. Buckets of all
logs of this invocation are summed into rgd_<first>_to_<last>_*: a per-bucket
dependencies table plus the totals, whose graph is printed as a table.

Directories are scanned for *_event_log.csv files, or for any .csv file when
none match. Files whose columns are not an event log are skipped.

Configuration is loaded from .chainminer/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  chainminer mine out/ps_5000000_5100000_event_log.csv
  chainminer mine out/ --bucket hour --format csv --format md
  chainminer mine out/ --relative-cutoff 0.05 --significance-cutoff 0.8
  chainminer mine out/ --no-store --metrics-file mine.prom`,
		Args: cobra.MinimumNArgs(1),
		RunE: runMine,
	}

	addStoreFlags(cmd)
	cmd.Flags().String("output", "", "Directory for exported tables")
	cmd.Flags().String("bucket", "", "Time bucket: day, hour or none")
	cmd.Flags().Float64("relative-cutoff", 0, "Drop edges whose share of transitions is not above this, in [0, 1)")
	cmd.Flags().Float64("significance-cutoff", 0, "Drop edges whose confidence is not above this, in [-1, 1)")
	cmd.Flags().Int("max-concurrency", -1, "Maximum number of buckets mined in parallel (0 = unlimited, -1 = use config)")
	cmd.Flags().StringSlice("format", nil, "Export format: csv, json, markdown, html (repeatable)")
	cmd.Flags().Bool("no-store", false, "Do not record buckets in the mining store")
	cmd.Flags().Bool("allow-case-id-reuse", false, "Treat a case id reappearing after its case ended as a new case")
	cmd.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.Flags().String("log-dir", "", "Directory for run logs")
	cmd.Flags().Bool("recursive", false, "Scan directories recursively")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics of the run to this file")

	return cmd
}

// runMine implements the mine command logic
func runMine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	var maxConcurrencyPtr *int
	if flags.Changed("max-concurrency") {
		v, _ := flags.GetInt("max-concurrency")
		maxConcurrencyPtr = &v
	}
	var bucketPtr, outputPtr *string
	if flags.Changed("bucket") {
		v, _ := flags.GetString("bucket")
		bucketPtr = &v
	}
	if flags.Changed("output") {
		v, _ := flags.GetString("output")
		outputPtr = &v
	}
	var relPtr, sigPtr *float64
	if flags.Changed("relative-cutoff") {
		v, _ := flags.GetFloat64("relative-cutoff")
		relPtr = &v
	}
	if flags.Changed("significance-cutoff") {
		v, _ := flags.GetFloat64("significance-cutoff")
		sigPtr = &v
	}
	var storePtr, reusePtr *bool
	if flags.Changed("no-store") {
		v, _ := flags.GetBool("no-store")
		enabled := !v
		storePtr = &enabled
	}
	if flags.Changed("allow-case-id-reuse") {
		v, _ := flags.GetBool("allow-case-id-reuse")
		reusePtr = &v
	}
	formats, _ := flags.GetStringSlice("format")

	cfg.MergeWithFlags(maxConcurrencyPtr, bucketPtr, relPtr, sigPtr, outputPtr, formats, storePtr, reusePtr)
	if level, _ := flags.GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}

	recursive, _ := flags.GetBool("recursive")
	files, err := collectEventLogs(args, recursive)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no event logs found in %v", args)
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	logDir, err := resolveLogDir(cmd, cfg)
	if err != nil {
		return err
	}
	fileLog, err := logger.NewFileLoggerWithDirAndLevel(logDir, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer fileLog.Close()
	log := logger.NewMultiLogger(logger.NewConsoleLogger(out, cfg.LogLevel), fileLog)

	reg := prometheus.NewRegistry()
	options := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithMetrics(pipeline.NewMetrics(reg)),
	}

	if cfg.Store.Enabled {
		dbPath, err := resolveDBPath(cmd, cfg)
		if err != nil {
			return err
		}
		st, err := store.NewStore(dbPath)
		if err != nil {
			return fmt.Errorf("open mining store: %w", err)
		}
		defer st.Close()
		options = append(options, pipeline.WithRecorder(st))
	}

	m, err := pipeline.New(opts, options...)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		series      = miner.BucketedCounts{}
		hists       []miner.TraceLengthHistogram
		failed      int
		skipped     []string
		allExported []string
	)

	progress := display.NewProgressIndicator(out, len(files), "event log")
	progress.Start("Mining")
	for _, file := range files {
		progress.Step(file)

		events, err := eventlog.ReadFile(file)
		if err != nil {
			if errors.Is(err, eventlog.ErrColumnsMismatch) || errors.Is(err, models.ErrEmptyInput) {
				skipped = append(skipped, file)
				log.LogWarn(fmt.Sprintf("skipping %s: %v", filepath.Base(file), err))
				continue
			}
			return err
		}

		res, err := m.Run(ctx, file, events)
		var bucketErr *pipeline.BucketError
		if err != nil && !errors.As(err, &bucketErr) {
			return fmt.Errorf("mine %s: %w", file, err)
		}
		if bucketErr != nil {
			failed += len(res.Failed)
			display.WarnFailedBuckets(filepath.Base(file), res.Failed).Display(errOut)
		}

		exported, err := exportBuckets(res, cfg.OutputDir, fileutil.Stem(file), cfg.Formats)
		if err != nil {
			return err
		}
		allExported = append(allExported, exported...)

		series = series.Merge(res.Series())
		hists = append(hists, res.Histogram)
	}
	progress.Complete("Mined")

	if len(skipped) > 0 {
		display.Warning{
			Title:    fmt.Sprintf("%d file(s) skipped", len(skipped)),
			Message:  fmt.Sprintf("Empty, or missing the event log columns %v", eventlog.RequiredColumns),
			Items:    skipped,
			ItemNoun: "file",
		}.Display(errOut)
	}

	totals, err := m.Fold(series.Totals())
	if err != nil {
		return err
	}
	if spans := series.Buckets(); len(spans) > 0 {
		report := &miner.Report{
			Name:       "totals",
			Counts:     totals.Counts,
			Confidence: totals.Confidence,
			Graph:      totals.Graph,
			Histogram:  miner.TraceLengthHistogram{}.Merge(hists...),
			Series:     series,
		}
		prefix := fmt.Sprintf("rgd_%s_to_%s", spans[0], spans[len(spans)-1])
		exported, err := miner.WriteReport(report, cfg.OutputDir, prefix, cfg.Formats)
		if err != nil {
			return fmt.Errorf("export totals: %w", err)
		}
		allExported = append(allExported, exported...)
	}

	fmt.Fprintf(out, "\nDependency graph (%d transitions):\n", totals.Counts.Total())
	fmt.Fprintln(out, display.GraphTable(totals.Graph, display.UseColor(out)))
	fmt.Fprintf(out, "Exported %d file(s) to %s\n", len(allExported), cfg.OutputDir)
	fmt.Fprintf(out, "Run log: %s\n", fileLog.RunFile())

	if metricsFile, _ := flags.GetString("metrics-file"); metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d bucket(s) failed to mine", failed)
	}
	return nil
}

// collectEventLogs resolves every argument and drops duplicates
func collectEventLogs(args []string, recursive bool) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, arg := range args {
		found, err := fileutil.FindEventLogs(arg, recursive)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	return files, nil
}

// exportBuckets writes mr_<bucket>_in_<name>_* for every successful bucket
func exportBuckets(res *pipeline.Result, dir, name string, formats []string) ([]string, error) {
	var written []string
	for _, key := range res.BucketKeys() {
		br := res.Buckets[key]
		if br.Err != nil {
			continue
		}
		prefix := fmt.Sprintf("mr_%s_in_%s", key, name)
		paths, err := miner.WriteReport(br.Report(name), dir, prefix, formats)
		if err != nil {
			return written, fmt.Errorf("export bucket %s: %w", key, err)
		}
		written = append(written, paths...)
	}
	return written, nil
}
