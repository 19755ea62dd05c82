package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Warning represents a user-facing warning message
type Warning struct {
	Title      string   // Main warning title
	Message    string   // Detailed explanation (optional)
	Items      []string // Affected files or buckets (optional)
	ItemNoun   string   // Singular noun for Items, defaults to "item"
	Suggestion string   // Action to take (optional)
}

// Display shows the warning, in yellow on a terminal
func (w Warning) Display(out io.Writer) {
	var b strings.Builder

	b.WriteString("⚠️  Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")

	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}

	if len(w.Items) > 0 {
		noun := w.ItemNoun
		if noun == "" {
			noun = "item"
		}
		if len(w.Items) == 1 {
			fmt.Fprintf(&b, "    Affected %s:\n", noun)
		} else {
			fmt.Fprintf(&b, "    Affected %ss:\n", noun)
		}
		for i, item := range w.Items {
			fmt.Fprintf(&b, "      %d. %s\n", i+1, item)
		}
	}

	if w.Suggestion != "" {
		b.WriteString("    Suggestion:\n")
		b.WriteString("    ")
		b.WriteString(w.Suggestion)
		b.WriteString("\n")
	}

	paint(UseColor(out), color.FgYellow).Fprint(out, b.String())
}

// WarnDroppedTraces reports traces the parser could not place on the time
// axis. It returns false when nothing was dropped.
func WarnDroppedTraces(source string, missingBlockTime int) (Warning, bool) {
	if missingBlockTime == 0 {
		return Warning{}, false
	}
	return Warning{
		Title:      fmt.Sprintf("%s: %d trace(s) dropped", source, missingBlockTime),
		Message:    "Their blocks have no entry in the block times table.",
		Suggestion: "Extend the block times export to cover every traced block",
	}, true
}

// WarnFailedBuckets reports buckets that failed to mine.
func WarnFailedBuckets(source string, failed []string) Warning {
	return Warning{
		Title:      fmt.Sprintf("%s: %d bucket(s) failed", source, len(failed)),
		Message:    "Failed buckets are left out of the totals.",
		Items:      failed,
		ItemNoun:   "bucket",
		Suggestion: "Check the run log for the error of each bucket",
	}
}
