package miner

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/harrison/chainminer/internal/models"
)

// GraphOptions holds the cutoffs applied by BuildGraph.
type GraphOptions struct {
	// RelativeCutoff drops transitions whose share of all transitions is
	// not strictly greater than it. Must be in [0, 1).
	RelativeCutoff float64

	// SignificanceCutoff drops transitions whose confidence is not strictly
	// greater than it. Must be in [-1, 1).
	SignificanceCutoff float64
}

// Validate checks both cutoffs against their domains.
func (o GraphOptions) Validate() error {
	if math.IsNaN(o.RelativeCutoff) || o.RelativeCutoff < 0 || o.RelativeCutoff >= 1 {
		return fmt.Errorf("%w: relative cutoff %v must be in [0, 1)", models.ErrInvalidThreshold, o.RelativeCutoff)
	}
	if math.IsNaN(o.SignificanceCutoff) || o.SignificanceCutoff < -1 || o.SignificanceCutoff >= 1 {
		return fmt.Errorf("%w: significance cutoff %v must be in [-1, 1)", models.ErrInvalidThreshold, o.SignificanceCutoff)
	}
	return nil
}

// DependencyEdge is a transition that passed both cutoffs.
type DependencyEdge struct {
	Transition   models.Transition `json:"transition"`
	Count        int               `json:"count"`
	Relative     float64           `json:"relative"`     // Share of all transitions, 4 decimals
	Significance float64           `json:"significance"` // Confidence score, 2 decimals
	Label        string            `json:"label"`        // Display label
}

// DependencyGraph is the thresholded process model.
type DependencyGraph struct {
	Nodes            []models.Category `json:"nodes"`
	Edges            []DependencyEdge  `json:"edges"`
	TotalTransitions int               `json:"total_transitions"`

	index map[models.Transition]int
}

// BuildGraph filters counted transitions by relative frequency and
// confidence and returns the resulting directed graph.
//
// Every endpoint of every counted transition becomes a node, whether or not
// an edge survives. An empty count set yields an empty graph.
func BuildGraph(counts TransitionCounts, conf Confidence, opts GraphOptions) (*DependencyGraph, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	g := &DependencyGraph{
		Nodes: []models.Category{},
		Edges: []DependencyEdge{},
		index: make(map[models.Transition]int),
	}

	total := counts.Total()
	if total == 0 {
		return g, nil
	}
	g.TotalTransitions = total

	nodes := make(map[models.Category]struct{})
	for _, t := range counts.Transitions() {
		nodes[t.From] = struct{}{}
		nodes[t.To] = struct{}{}

		significance, ok := conf[t]
		if !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrMissingConfidence, t.Label())
		}
		relative := float64(counts[t]) / float64(total)

		if relative > opts.RelativeCutoff && significance > opts.SignificanceCutoff {
			g.index[t] = len(g.Edges)
			g.Edges = append(g.Edges, DependencyEdge{
				Transition:   t,
				Count:        counts[t],
				Relative:     round(relative, 4),
				Significance: round(significance, 2),
				Label:        EdgeLabel(relative, significance),
			})
		}
	}

	for n := range nodes {
		g.Nodes = append(g.Nodes, n)
	}
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i] < g.Nodes[j] })

	return g, nil
}

// EdgeLabel formats the display label of an edge, e.g. "12.34% | 0.87".
func EdgeLabel(relative, significance float64) string {
	return fmt.Sprintf("%.2f%% | %.2f", relative*100, significance)
}

// round rounds v to the given number of decimal places.
func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// HasEdge reports whether t survived the cutoffs.
func (g *DependencyGraph) HasEdge(t models.Transition) bool {
	_, ok := g.Edge(t)
	return ok
}

// Edge returns the edge for t. Graphs built by hand without an index are
// scanned; Edge never writes to g, so concurrent reads are safe.
func (g *DependencyGraph) Edge(t models.Transition) (DependencyEdge, bool) {
	if g.index == nil {
		for _, e := range g.Edges {
			if e.Transition == t {
				return e, true
			}
		}
		return DependencyEdge{}, false
	}
	i, ok := g.index[t]
	if !ok {
		return DependencyEdge{}, false
	}
	return g.Edges[i], true
}

// Successors returns the targets of edges leaving c.
func (g *DependencyGraph) Successors(c models.Category) []models.Category {
	var out []models.Category
	for _, e := range g.Edges {
		if e.Transition.From == c {
			out = append(out, e.Transition.To)
		}
	}
	return out
}

// Predecessors returns the sources of edges entering c.
func (g *DependencyGraph) Predecessors(c models.Category) []models.Category {
	var in []models.Category
	for _, e := range g.Edges {
		if e.Transition.To == c {
			in = append(in, e.Transition.From)
		}
	}
	return in
}

// UnmarshalJSON decodes the graph and rebuilds its edge lookup.
func (g *DependencyGraph) UnmarshalJSON(data []byte) error {
	type plain DependencyGraph
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*g = DependencyGraph(p)
	g.reindex()
	return nil
}

// reindex rebuilds the edge lookup.
func (g *DependencyGraph) reindex() {
	g.index = make(map[models.Transition]int, len(g.Edges))
	for i, e := range g.Edges {
		g.index[e.Transition] = i
	}
}
