package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/chainminer/internal/display"
	"github.com/harrison/chainminer/internal/eventlog"
	"github.com/harrison/chainminer/internal/fileutil"
	"github.com/harrison/chainminer/internal/parser"
)

// NewParseCommand creates the parse command
func NewParseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <trace-file-or-directory>...",
		Short: "Turn raw call traces into event logs",
		Long: `Parse raw call traces (CSV or JSON lines) into event logs.

Only traces of type "call" are kept. Each one becomes an event of its
transaction, categorized by whether sender and receiver are contracts
(CtC, CtU, UtC, UtU), and placed on the time axis by its block.

For every input file three tables are written to the output directory:
  ps_<name>_event_log.csv
  ps_<name>_address_lookup.csv
  ps_<name>_transaction_lookup.csv

Examples:
  chainminer parse traces/ --contracts contracts.csv --block-times blocks.csv
  chainminer parse traces_5000000.jsonl --contracts c.csv --block-times b.csv --output out/`,
		Args: cobra.MinimumNArgs(1),
		RunE: runParse,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .chainminer/config.yaml)")
	cmd.Flags().String("contracts", "", "CSV with result.address and isERC20 columns")
	cmd.Flags().String("block-times", "", "CSV with number and timestamp columns")
	cmd.Flags().String("output", "", "Directory for event logs and lookup tables")
	cmd.Flags().Int64("block-padding", 0, "Block number multiplier for event positions (0 = use config)")
	cmd.Flags().Bool("recursive", false, "Scan directories recursively")
	_ = cmd.MarkFlagRequired("contracts")
	_ = cmd.MarkFlagRequired("block-times")

	return cmd
}

// runParse implements the parse command logic
func runParse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("output") {
		cfg.OutputDir, _ = cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("block-padding") {
		cfg.Parser.BlockPadding, _ = cmd.Flags().GetInt64("block-padding")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	contractsPath, _ := cmd.Flags().GetString("contracts")
	contracts, err := readTable(contractsPath, parser.ReadContracts)
	if err != nil {
		return err
	}
	blockTimesPath, _ := cmd.Flags().GetString("block-times")
	blockTimes, err := readTable(blockTimesPath, parser.ReadBlockTimes)
	if err != nil {
		return err
	}

	recursive, _ := cmd.Flags().GetBool("recursive")
	var files []string
	for _, arg := range args {
		found, err := fileutil.FindTraceFiles(arg, recursive)
		if err != nil {
			return err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return fmt.Errorf("no trace files found in %v", args)
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	opts := parser.Options{BlockPadding: cfg.Parser.BlockPadding}

	var skipped []string
	progress := display.NewProgressIndicator(out, len(files), "trace file")
	progress.Start("Parsing")
	for _, file := range files {
		progress.Step(file)

		res, err := parser.ParseFile(file, contracts, blockTimes, opts)
		if err != nil {
			if errors.Is(err, eventlog.ErrColumnsMismatch) {
				skipped = append(skipped, file)
				continue
			}
			return err
		}

		paths, err := parser.WriteOutputs(cfg.OutputDir, parser.Infix(file), res)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "    %d event(s), %d transaction(s), %d address(es) -> %s\n",
			len(res.Events), len(res.Transactions), len(res.Addresses), filepath.Base(paths.EventLog))

		if w, ok := display.WarnDroppedTraces(filepath.Base(file), res.MissingBlockTime); ok {
			w.Display(errOut)
		}
	}
	progress.Complete("Parsed")

	if len(skipped) > 0 {
		display.Warning{
			Title:    fmt.Sprintf("%d file(s) are not raw traces", len(skipped)),
			Message:  fmt.Sprintf("Required columns: %v", parser.TraceColumns),
			Items:    skipped,
			ItemNoun: "file",
		}.Display(errOut)
	}
	return nil
}

func readTable[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	v, err := read(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}
