package display

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
)

// ProgressIndicator reports progress over a list of input files.
type ProgressIndicator struct {
	writer  io.Writer
	total   int
	current int
	noun    string
	colored bool
}

// NewProgressIndicator creates a progress indicator for total items of noun
// ("event log", "trace file").
func NewProgressIndicator(w io.Writer, total int, noun string) *ProgressIndicator {
	return &ProgressIndicator{
		writer:  w,
		total:   total,
		noun:    noun,
		colored: UseColor(w),
	}
}

// Start displays the header, e.g. "Mining 3 event logs:".
func (p *ProgressIndicator) Start(verb string) {
	fmt.Fprintf(p.writer, "%s %s:\n", verb, pluralize(p.total, p.noun))
}

// Step displays the current item as "[N/Total] basename" in cyan.
func (p *ProgressIndicator) Step(filename string) {
	p.current++
	line := fmt.Sprintf("  [%d/%d] %s", p.current, p.total, filepath.Base(filename))
	paint(p.colored, color.FgCyan).Fprintln(p.writer, line)
}

// Complete displays a green check mark with the finished count.
func (p *ProgressIndicator) Complete(verb string) {
	check := paint(p.colored, color.FgGreen).Sprint("✓")
	fmt.Fprintf(p.writer, "%s %s %s\n", check, verb, pluralize(p.current, p.noun))
}

// DisplaySingleFile shows a one-line message for a single input.
func DisplaySingleFile(w io.Writer, verb, filename string) {
	fmt.Fprintf(w, "%s %s...\n", verb, filename)
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
