package logger

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/harrison/chainminer/internal/models"
)

// colorScheme defines consistent colors for different metric types.
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	value   *color.Color
}

func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		value:   color.New(color.FgWhite),
	}
}

// formatColorizedMetric formats a single metric with colorized label and value.
// Format: "label: value"
func formatColorizedMetric(label string, value interface{}, scheme *colorScheme) string {
	return fmt.Sprintf("%s: %s", scheme.label.Sprint(label), scheme.value.Sprintf("%v", value))
}

// formatBucketMetrics renders the plain metric list of a bucket summary.
// Format: "cases: N, transitions: N, edges: N"
func formatBucketMetrics(s models.BucketSummary) string {
	parts := []string{
		fmt.Sprintf("cases: %d", s.Cases),
		fmt.Sprintf("transitions: %d", s.Transitions),
		fmt.Sprintf("edges: %d", s.Edges),
	}
	return strings.Join(parts, ", ")
}

// formatColorizedBucketMetrics is formatBucketMetrics with color coding.
// A bucket whose graph kept no edges is highlighted as a warning.
func formatColorizedBucketMetrics(s models.BucketSummary) string {
	scheme := newColorScheme()
	parts := []string{
		formatColorizedMetric("cases", s.Cases, scheme),
		formatColorizedMetric("transitions", s.Transitions, scheme),
	}
	if s.Edges == 0 {
		parts = append(parts, fmt.Sprintf("%s: %s", scheme.warn.Sprint("edges"), scheme.warn.Sprint(0)))
	} else {
		parts = append(parts, fmt.Sprintf("%s: %s", scheme.success.Sprint("edges"), scheme.value.Sprintf("%d", s.Edges)))
	}
	return strings.Join(parts, ", ")
}
