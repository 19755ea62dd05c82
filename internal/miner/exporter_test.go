package miner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/chainminer/internal/models"
)

func sampleReport(t *testing.T) *Report {
	t.Helper()
	events := []models.Event{
		ev(1, 0, models.CategoryUtC),
		ev(1, 1, models.CategoryCtU),
		ev(2, 2, models.CategoryUtU),
	}
	records, err := ExtractTransitions(events)
	require.NoError(t, err)
	tc := Aggregate(records)
	conf, err := ComputeConfidence(tc)
	require.NoError(t, err)
	g, err := BuildGraph(tc, conf, GraphOptions{RelativeCutoff: 0, SignificanceCutoff: 0})
	require.NoError(t, err)

	return &Report{
		Name:       "traces_5000000",
		Bucket:     "2018-03-02",
		Records:    records,
		Counts:     tc,
		Confidence: conf,
		Graph:      g,
		Histogram:  ProfileTraceLengths(events, BucketFunc(DayBucket).ByEventTime()),
	}
}

func TestCSVExporter_Tables(t *testing.T) {
	report := sampleReport(t)

	tests := []struct {
		table    Table
		header   string
		contains []string
		rows     int
	}{
		{table: TableRecords, header: "position,timestamp,transition", contains: []string{"0,1520000000,sta->UtC", "1,1520000001,CtU->end"}, rows: 5},
		{table: TableCounts, header: "bucket,transition,count", contains: []string{"2018-03-02,UtC->CtU,1"}, rows: 5},
		{table: TableConfidence, header: "transition,confidence", contains: []string{"sta->UtU,1.0000"}, rows: 5},
		{table: TableGraph, header: "from,to,count,relative,significance,label", contains: []string{"UtC,CtU,1,0.2000,1.00,20.00% | 1.00"}, rows: 5},
		{table: TableLengths, header: "bucket,length,cases", contains: []string{"2018-03-02,1,1", "2018-03-02,2,1"}, rows: 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.table), func(t *testing.T) {
			out, err := (&CSVExporter{Table: tt.table}).Export(report)
			require.NoError(t, err)

			lines := strings.Split(strings.TrimSpace(out), "\n")
			assert.Equal(t, tt.header, lines[0])
			assert.Len(t, lines, tt.rows+1)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestCSVExporter_Series(t *testing.T) {
	day1 := TransitionCounts{tr("sta->UtU"): 2, tr("UtU->end"): 2}
	day2 := TransitionCounts{tr("sta->UtC"): 1, tr("UtC->end"): 1}
	report := &Report{
		Counts: day1.Merge(day2),
		Series: BucketedCounts{"2018-03-04": day2, "2018-03-03": day1},
	}

	out, err := (&CSVExporter{Table: TableSeries}).Export(report)
	require.NoError(t, err)
	assert.Equal(t, "bucket,UtC->end,UtU->end,sta->UtC,sta->UtU,total_transitions\n"+
		"2018-03-03,0,2,0,2,4\n"+
		"2018-03-04,1,0,1,0,2\n", out)

	agg, err := (&CSVExporter{Table: TableCounts}).Export(report)
	require.NoError(t, err)
	assert.Equal(t, "bucket,transition,count\n"+
		"2018-03-03,UtU->end,2\n"+
		"2018-03-03,sta->UtU,2\n"+
		"2018-03-04,UtC->end,1\n"+
		"2018-03-04,sta->UtC,1\n", agg)

	paths, err := WriteReport(report, t.TempDir(), "rgd", []string{"csv"})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "rgd_dependencies.csv", filepath.Base(paths[1]))

	md, err := (&MarkdownExporter{}).Export(report)
	require.NoError(t, err)
	assert.Contains(t, md, "| 2018-03-04 | 2 | 2 |")

	report.Series["2018-03-04"][tr("sta->UtC")] = -1
	_, err = (&CSVExporter{Table: TableSeries}).Export(report)
	assert.ErrorIs(t, err, models.ErrNegativeCount)
}

func TestCSVExporter_UnknownTable(t *testing.T) {
	_, err := (&CSVExporter{Table: "nope"}).Export(sampleReport(t))
	assert.Error(t, err)
}

func TestJSONExporter(t *testing.T) {
	out, err := (&JSONExporter{}).Export(sampleReport(t))
	require.NoError(t, err)

	var decoded struct {
		Name         string                    `json:"name"`
		Transitions  int                       `json:"total_transitions"`
		Counts       map[string]int            `json:"counts"`
		Confidence   map[string]float64        `json:"confidence"`
		Graph        DependencyGraph           `json:"graph"`
		TraceLengths map[string]map[string]int `json:"trace_lengths"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))

	assert.Equal(t, "traces_5000000", decoded.Name)
	assert.Equal(t, 5, decoded.Transitions)
	assert.Equal(t, 1, decoded.Counts["sta->UtC"])
	assert.Equal(t, 1.0, decoded.Confidence["UtU->end"])
	assert.Len(t, decoded.Graph.Edges, 5)
	assert.True(t, decoded.Graph.HasEdge(tr("UtC->CtU")))
	assert.Equal(t, 1, decoded.TraceLengths["2018-03-02"]["2"])
}

func TestMarkdownAndHTMLExporter(t *testing.T) {
	report := sampleReport(t)

	md, err := (&MarkdownExporter{}).Export(report)
	require.NoError(t, err)
	assert.Contains(t, md, "# Process Mining Report: traces_5000000")
	assert.Contains(t, md, "- **Bucket**: 2018-03-02")
	assert.Contains(t, md, "## Dependency Graph")
	assert.Contains(t, md, "| `UtC->CtU` | 1 | 1.00 |")
	assert.Contains(t, md, "## Trace Lengths")
	assert.NotContains(t, md, "**Generated**")

	html, err := (&HTMLExporter{}).Export(report)
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Process Mining Report: traces_5000000</h1>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "</html>")
}

func TestExporter_InvalidReport(t *testing.T) {
	bad := &Report{Counts: TransitionCounts{tr("sta->UtU"): -2}}

	for _, format := range []string{"csv", "json", "markdown", "html"} {
		_, err := ExportToString(bad, format)
		assert.ErrorIs(t, err, models.ErrNegativeCount, format)
	}

	_, err := ExportToString(nil, "json")
	assert.Error(t, err)
	_, err = ExportToString(sampleReport(t), "xml")
	assert.Error(t, err)
}

func TestExportToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.md")

	require.NoError(t, ExportToFile(sampleReport(t), path, "md"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Transitions")

	assert.Error(t, ExportToFile(sampleReport(t), "", "json"))
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	report := sampleReport(t)

	paths, err := WriteReport(report, dir, "mr_2018-03-02_traces", []string{"csv", "json"})
	require.NoError(t, err)

	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	assert.Equal(t, []string{
		"mr_2018-03-02_traces_transitions.csv",
		"mr_2018-03-02_traces_transitions_agg.csv",
		"mr_2018-03-02_traces_confidence.csv",
		"mr_2018-03-02_traces_graph.csv",
		"mr_2018-03-02_traces_trace_lengths.csv",
		"mr_2018-03-02_traces_report.json",
	}, names)

	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
}

func TestWriteReport_SkipsEmptyTables(t *testing.T) {
	report := &Report{Counts: TransitionCounts{tr("sta->UtU"): 1, tr("UtU->end"): 1}}

	paths, err := WriteReport(report, t.TempDir(), "rgd", []string{"csv"})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "rgd_transitions_agg.csv", filepath.Base(paths[0]))
}
