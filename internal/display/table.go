package display

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/harrison/chainminer/internal/miner"
	"github.com/harrison/chainminer/internal/store"
)

var (
	headerColor = lipgloss.Color("#20B9B4")
	borderColor = lipgloss.Color("#2C4A54")
)

func newTable(styled bool, headers ...string) *table.Table {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)

	cell := lipgloss.NewStyle().Padding(0, 1)
	if !styled {
		return t.StyleFunc(func(row, col int) lipgloss.Style { return cell })
	}

	header := cell.Bold(true).Foreground(headerColor)
	return t.
		BorderStyle(lipgloss.NewStyle().Foreground(borderColor)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
}

// GraphTable renders the edges of a dependency graph.
func GraphTable(g *miner.DependencyGraph, styled bool) string {
	t := newTable(styled, "FROM", "TO", "COUNT", "RELATIVE", "SIGNIFICANCE")
	if g != nil {
		for _, e := range g.Edges {
			t.Row(
				string(e.Transition.From),
				string(e.Transition.To),
				strconv.Itoa(e.Count),
				fmt.Sprintf("%.2f%%", e.Relative*100),
				fmt.Sprintf("%.2f", e.Significance),
			)
		}
	}
	return t.String()
}

// LengthTable renders a trace length histogram, one row per bucket and one
// column per observed length.
func LengthTable(h miner.TraceLengthHistogram, styled bool) string {
	buckets, lengths, rows := h.Aligned()

	headers := []string{"BUCKET"}
	for _, l := range lengths {
		headers = append(headers, strconv.Itoa(l))
	}
	headers = append(headers, "CASES")

	t := newTable(styled, headers...)
	for i, b := range buckets {
		row := []string{b}
		for _, n := range rows[i] {
			row = append(row, strconv.Itoa(n))
		}
		row = append(row, strconv.Itoa(h.Cases(b)))
		t.Row(row...)
	}
	return t.String()
}

// RunsTable renders recorded mining runs.
func RunsTable(runs []*store.Run, styled bool) string {
	t := newTable(styled, "RUN", "SOURCE", "STARTED", "STATUS", "EVENTS", "BUCKETS", "FAILED")
	for _, r := range runs {
		t.Row(
			shortID(r.ID),
			r.Source,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Status,
			strconv.Itoa(r.Events),
			strconv.Itoa(r.Buckets),
			strconv.Itoa(r.FailedBuckets),
		)
	}
	return t.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
