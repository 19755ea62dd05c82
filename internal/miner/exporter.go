package miner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/harrison/chainminer/internal/filelock"
	"github.com/harrison/chainminer/internal/models"
)

// Report bundles the tables produced for one bucket or for the totals.
// Any field may be empty; exporters skip empty sections.
type Report struct {
	Name       string // Source name, e.g. the event log file stem
	Bucket     string // Bucket key, empty for totals
	Records    []models.TransitionRecord
	Counts     TransitionCounts
	Confidence Confidence
	Graph      *DependencyGraph
	Histogram  TraceLengthHistogram
	Series     BucketedCounts // per-bucket counts behind a cross-bucket report
}

// Validate checks that the report is consistent enough to export.
func (r *Report) Validate() error {
	for t, n := range r.Counts {
		if n < 0 {
			return fmt.Errorf("%w: %s has count %d", models.ErrNegativeCount, t.Label(), n)
		}
	}
	for b, counts := range r.Series {
		for t, n := range counts {
			if n < 0 {
				return fmt.Errorf("%w: %s has count %d in bucket %s", models.ErrNegativeCount, t.Label(), n, b)
			}
		}
	}
	for t, c := range r.Confidence {
		if c < -1 || c > 1 {
			return fmt.Errorf("confidence of %s out of range: %v", t.Label(), c)
		}
	}
	return nil
}

// Table selects one tabular section of a report.
type Table string

// Report tables, named after the files they are written to.
const (
	TableRecords    Table = "transitions"
	TableCounts     Table = "transitions_agg"
	TableConfidence Table = "confidence"
	TableGraph      Table = "graph"
	TableLengths    Table = "trace_lengths"
	TableSeries     Table = "dependencies"
)

// AllTables lists the tables in export order.
var AllTables = []Table{TableRecords, TableCounts, TableConfidence, TableGraph, TableLengths, TableSeries}

// Exporter renders a report to a string.
type Exporter interface {
	Export(report *Report) (string, error)
}

// CSVExporter renders a single table as CSV.
type CSVExporter struct {
	Table Table
}

// Export renders the selected table. Columns:
//
//	transitions:     position,timestamp,transition
//	transitions_agg: bucket,transition,count
//	confidence:      transition,confidence
//	graph:           from,to,count,relative,significance,label
//	trace_lengths:   bucket,length,cases
//	dependencies:    bucket,<one column per transition>,total_transitions
//
// With a Series, transitions_agg has one row per bucket and transition.
func (ce *CSVExporter) Export(report *Report) (string, error) {
	if report == nil {
		return "", fmt.Errorf("report cannot be nil")
	}
	if err := report.Validate(); err != nil {
		return "", fmt.Errorf("invalid report: %w", err)
	}

	var sb strings.Builder
	switch ce.Table {
	case TableRecords:
		sb.WriteString("position,timestamp,transition\n")
		for _, r := range report.Records {
			sb.WriteString(fmt.Sprintf("%d,%d,%s\n", r.Position, r.Timestamp, r.Transition.Label()))
		}
	case TableCounts:
		sb.WriteString("bucket,transition,count\n")
		if len(report.Series) > 0 {
			for _, b := range report.Series.Buckets() {
				counts := report.Series[b]
				for _, t := range counts.Transitions() {
					sb.WriteString(fmt.Sprintf("%s,%s,%d\n", escapeCSV(b), t.Label(), counts[t]))
				}
			}
			break
		}
		for _, t := range report.Counts.Transitions() {
			sb.WriteString(fmt.Sprintf("%s,%s,%d\n", escapeCSV(report.Bucket), t.Label(), report.Counts[t]))
		}
	case TableConfidence:
		sb.WriteString("transition,confidence\n")
		for _, t := range report.Confidence.Transitions() {
			sb.WriteString(fmt.Sprintf("%s,%.4f\n", t.Label(), report.Confidence[t]))
		}
	case TableGraph:
		sb.WriteString("from,to,count,relative,significance,label\n")
		if report.Graph != nil {
			for _, e := range report.Graph.Edges {
				sb.WriteString(fmt.Sprintf("%s,%s,%d,%.4f,%.2f,%s\n",
					e.Transition.From, e.Transition.To, e.Count, e.Relative, e.Significance, escapeCSV(e.Label)))
			}
		}
	case TableLengths:
		sb.WriteString("bucket,length,cases\n")
		buckets, lengths, rows := report.Histogram.Aligned()
		for i, b := range buckets {
			for j, n := range lengths {
				sb.WriteString(fmt.Sprintf("%s,%d,%d\n", escapeCSV(b), n, rows[i][j]))
			}
		}
	case TableSeries:
		labels := report.Series.Totals().Transitions()
		sb.WriteString("bucket")
		for _, t := range labels {
			sb.WriteString("," + t.Label())
		}
		sb.WriteString(",total_transitions\n")
		for _, b := range report.Series.Buckets() {
			counts := report.Series[b]
			sb.WriteString(escapeCSV(b))
			for _, t := range labels {
				sb.WriteString(fmt.Sprintf(",%d", counts[t]))
			}
			sb.WriteString(fmt.Sprintf(",%d\n", counts.Total()))
		}
	default:
		return "", fmt.Errorf("unsupported table: %s", ce.Table)
	}
	return sb.String(), nil
}

// escapeCSV escapes special characters in CSV fields
func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n\r") {
		s = strings.ReplaceAll(s, "\"", "\"\"")
		return "\"" + s + "\""
	}
	return s
}

// JSONExporter exports the whole report in JSON format
type JSONExporter struct {
	Pretty bool // Enable pretty printing with indentation
}

// jsonReport is the serialized form of Report with label-keyed maps.
type jsonReport struct {
	Name         string                    `json:"name"`
	Bucket       string                    `json:"bucket,omitempty"`
	Transitions  int                       `json:"total_transitions"`
	Counts       map[string]int            `json:"counts"`
	Confidence   map[string]float64        `json:"confidence"`
	Graph        *DependencyGraph          `json:"graph,omitempty"`
	TraceLengths map[string]map[string]int `json:"trace_lengths,omitempty"`
	Series       map[string]map[string]int `json:"series,omitempty"`
}

// Export converts the report to a JSON string
func (je *JSONExporter) Export(report *Report) (string, error) {
	if report == nil {
		return "", fmt.Errorf("report cannot be nil")
	}
	if err := report.Validate(); err != nil {
		return "", fmt.Errorf("invalid report: %w", err)
	}

	out := jsonReport{
		Name:        report.Name,
		Bucket:      report.Bucket,
		Transitions: report.Counts.Total(),
		Counts:      make(map[string]int, len(report.Counts)),
		Confidence:  make(map[string]float64, len(report.Confidence)),
		Graph:       report.Graph,
	}
	for t, n := range report.Counts {
		out.Counts[t.Label()] = n
	}
	for t, c := range report.Confidence {
		out.Confidence[t.Label()] = c
	}
	if len(report.Histogram) > 0 {
		out.TraceLengths = make(map[string]map[string]int, len(report.Histogram))
		for b, row := range report.Histogram {
			r := make(map[string]int, len(row))
			for n, cases := range row {
				r[fmt.Sprintf("%d", n)] = cases
			}
			out.TraceLengths[b] = r
		}
	}

	if len(report.Series) > 0 {
		out.Series = make(map[string]map[string]int, len(report.Series))
		for b, counts := range report.Series {
			row := make(map[string]int, len(counts))
			for t, n := range counts {
				row[t.Label()] = n
			}
			out.Series[b] = row
		}
	}

	var data []byte
	var err error
	if je.Pretty {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// MarkdownExporter exports the report in Markdown format
type MarkdownExporter struct {
	IncludeTimestamp bool // Include export timestamp in header
}

// Export converts the report to a Markdown string
func (me *MarkdownExporter) Export(report *Report) (string, error) {
	if report == nil {
		return "", fmt.Errorf("report cannot be nil")
	}
	if err := report.Validate(); err != nil {
		return "", fmt.Errorf("invalid report: %w", err)
	}

	var sb strings.Builder

	title := "Process Mining Report"
	if report.Name != "" {
		title += ": " + report.Name
	}
	sb.WriteString("# " + title + "\n\n")
	if me.IncludeTimestamp {
		sb.WriteString(fmt.Sprintf("**Generated**: %s\n\n", time.Now().Format("2006-01-02 15:04:05")))
	}

	sb.WriteString("## Summary\n\n")
	if report.Bucket != "" {
		sb.WriteString(fmt.Sprintf("- **Bucket**: %s\n", report.Bucket))
	}
	sb.WriteString(fmt.Sprintf("- **Total Transitions**: %d\n", report.Counts.Total()))
	sb.WriteString(fmt.Sprintf("- **Distinct Transitions**: %d\n", len(report.Counts)))
	if report.Graph != nil {
		sb.WriteString(fmt.Sprintf("- **Nodes**: %d\n", len(report.Graph.Nodes)))
		sb.WriteString(fmt.Sprintf("- **Edges**: %d\n", len(report.Graph.Edges)))
	}
	sb.WriteString("\n")

	if report.Graph != nil && len(report.Graph.Edges) > 0 {
		sb.WriteString("## Dependency Graph\n\n")
		sb.WriteString("| From | To | Count | Relative | Significance |\n")
		sb.WriteString("|------|----|-------|----------|--------------|\n")
		for _, e := range report.Graph.Edges {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %.2f%% | %.2f |\n",
				e.Transition.From, e.Transition.To, e.Count, e.Relative*100, e.Significance))
		}
		sb.WriteString("\n")
	}

	if len(report.Counts) > 0 {
		sb.WriteString("## Transitions\n\n")
		sb.WriteString("| Transition | Count | Confidence |\n")
		sb.WriteString("|------------|-------|------------|\n")
		for _, t := range report.Counts.Transitions() {
			confidence := "-"
			if c, ok := report.Confidence[t]; ok {
				confidence = fmt.Sprintf("%.2f", c)
			}
			sb.WriteString(fmt.Sprintf("| `%s` | %d | %s |\n", t.Label(), report.Counts[t], confidence))
		}
		sb.WriteString("\n")
	}

	if len(report.Series) > 0 {
		sb.WriteString("## Transitions per Bucket\n\n")
		sb.WriteString("| Bucket | Transitions | Distinct |\n")
		sb.WriteString("|--------|-------------|----------|\n")
		for _, b := range report.Series.Buckets() {
			counts := report.Series[b]
			sb.WriteString(fmt.Sprintf("| %s | %d | %d |\n", b, counts.Total(), len(counts)))
		}
		sb.WriteString("\n")
	}

	if len(report.Histogram) > 0 {
		buckets, lengths, rows := report.Histogram.Aligned()
		sb.WriteString("## Trace Lengths\n\n")
		sb.WriteString("| Bucket |")
		for _, n := range lengths {
			sb.WriteString(fmt.Sprintf(" %d |", n))
		}
		sb.WriteString("\n|--------|")
		for range lengths {
			sb.WriteString("---|")
		}
		sb.WriteString("\n")
		for i, b := range buckets {
			sb.WriteString("| " + b + " |")
			for _, cases := range rows[i] {
				sb.WriteString(fmt.Sprintf(" %d |", cases))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// HTMLExporter renders the Markdown report to HTML with goldmark.
type HTMLExporter struct {
	IncludeTimestamp bool
}

// Export converts the report to an HTML document
func (he *HTMLExporter) Export(report *Report) (string, error) {
	md, err := (&MarkdownExporter{IncludeTimestamp: he.IncludeTimestamp}).Export(report)
	if err != nil {
		return "", err
	}

	renderer := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := renderer.Convert([]byte(md), &body); err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>chainminer report</title></head>\n<body>\n")
	sb.Write(body.Bytes())
	sb.WriteString("</body>\n</html>\n")
	return sb.String(), nil
}

// normalizeFormat maps format aliases to canonical names.
func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "md" {
		format = "markdown"
	}
	return format
}

// exporterFor returns the whole-report exporter for format.
func exporterFor(format string) (Exporter, string, error) {
	switch normalizeFormat(format) {
	case "json":
		return &JSONExporter{Pretty: true}, "json", nil
	case "markdown":
		return &MarkdownExporter{IncludeTimestamp: true}, "md", nil
	case "html":
		return &HTMLExporter{IncludeTimestamp: true}, "html", nil
	default:
		return nil, "", fmt.Errorf("unsupported format: %s (supported: csv, json, markdown, html)", format)
	}
}

// ExportToString exports the report in the given format. For "csv" the
// counts table is rendered.
func ExportToString(report *Report, format string) (string, error) {
	if report == nil {
		return "", fmt.Errorf("report cannot be nil")
	}
	if normalizeFormat(format) == "csv" {
		return (&CSVExporter{Table: TableCounts}).Export(report)
	}
	exporter, _, err := exporterFor(format)
	if err != nil {
		return "", err
	}
	return exporter.Export(report)
}

// ExportToFile exports the report to path in the given format, holding the
// path's lock while the file is atomically replaced.
func ExportToFile(report *Report, path string, format string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	content, err := ExportToString(report, format)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	return filelock.LockAndWrite(path, []byte(content))
}

// WriteReport writes the report into dir in every requested format and
// returns the written paths. CSV writes one file per non-empty table named
// <prefix>_<table>.csv; other formats write <prefix>_report.<ext>.
func WriteReport(report *Report, dir, prefix string, formats []string) ([]string, error) {
	if report == nil {
		return nil, fmt.Errorf("report cannot be nil")
	}
	var written []string
	for _, format := range formats {
		if normalizeFormat(format) == "csv" {
			for _, table := range AllTables {
				if !report.hasTable(table) {
					continue
				}
				content, err := (&CSVExporter{Table: table}).Export(report)
				if err != nil {
					return written, fmt.Errorf("export %s: %w", table, err)
				}
				path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", prefix, table))
				if err := filelock.LockAndWrite(path, []byte(content)); err != nil {
					return written, err
				}
				written = append(written, path)
			}
			continue
		}

		exporter, ext, err := exporterFor(format)
		if err != nil {
			return written, err
		}
		content, err := exporter.Export(report)
		if err != nil {
			return written, fmt.Errorf("export %s: %w", format, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_report.%s", prefix, ext))
		if err := filelock.LockAndWrite(path, []byte(content)); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// hasTable reports whether the report carries data for table.
func (r *Report) hasTable(table Table) bool {
	switch table {
	case TableRecords:
		return len(r.Records) > 0
	case TableCounts:
		return len(r.Counts) > 0 || len(r.Series) > 0
	case TableConfidence:
		return len(r.Confidence) > 0
	case TableGraph:
		return r.Graph != nil
	case TableLengths:
		return len(r.Histogram) > 0
	case TableSeries:
		return len(r.Series) > 0
	default:
		return false
	}
}
