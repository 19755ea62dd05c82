package pipeline

import (
	"sort"
	"time"

	"github.com/harrison/chainminer/internal/miner"
	"github.com/harrison/chainminer/internal/models"
)

// Totals is a merged count table with its confidence and graph.
type Totals struct {
	Counts     miner.TransitionCounts
	Confidence miner.Confidence
	Graph      *miner.DependencyGraph
}

// BucketResult is the outcome of mining one bucket.
type BucketResult struct {
	Bucket     string
	Events     int
	Cases      int
	Records    []models.TransitionRecord
	Counts     miner.TransitionCounts
	Confidence miner.Confidence
	Graph      *miner.DependencyGraph
	Lengths    map[int]int // trace length -> number of cases
	Duration   time.Duration
	Err        error
}

// Summary converts the bucket result for logging.
func (b *BucketResult) Summary() models.BucketSummary {
	s := models.BucketSummary{
		Bucket:      b.Bucket,
		Events:      b.Events,
		Cases:       b.Cases,
		Transitions: b.Counts.Total(),
		Distinct:    len(b.Counts),
		Duration:    b.Duration,
		Err:         b.Err,
	}
	if b.Graph != nil {
		s.Edges = len(b.Graph.Edges)
	}
	return s
}

// Report builds an exportable report of the bucket.
func (b *BucketResult) Report(name string) *miner.Report {
	return &miner.Report{
		Name:       name,
		Bucket:     b.Bucket,
		Records:    b.Records,
		Counts:     b.Counts,
		Confidence: b.Confidence,
		Graph:      b.Graph,
		Histogram:  miner.TraceLengthHistogram{b.Bucket: b.Lengths},
	}
}

// Result is the outcome of a mining run over one event log.
type Result struct {
	RunID     string // empty when no recorder is configured
	Source    string
	Events    int
	Cases     int
	Buckets   map[string]*BucketResult
	Failed    []string // sorted keys of failed buckets
	Totals    *Totals  // successful buckets only
	Histogram miner.TraceLengthHistogram
	Duration  time.Duration
}

// BucketKeys returns the bucket keys in sorted order.
func (r *Result) BucketKeys() []string {
	keys := make([]string, 0, len(r.Buckets))
	for k := range r.Buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Span returns the first and last bucket key, or empty strings without buckets.
func (r *Result) Span() (first, last string) {
	keys := r.BucketKeys()
	if len(keys) == 0 {
		return "", ""
	}
	return keys[0], keys[len(keys)-1]
}

// ByBucket returns the count tables of the successful buckets.
func (r *Result) ByBucket() miner.BucketedCounts {
	bc := make(miner.BucketedCounts, len(r.Buckets))
	for k, b := range r.Buckets {
		if b.Err == nil {
			bc[k] = b.Counts
		}
	}
	return bc
}

// Series returns the per-bucket counts of the successful buckets. A run
// mined without bucketing is split by the UTC day of each transition so the
// series still spans time.
func (r *Result) Series() miner.BucketedCounts {
	if b, ok := r.Buckets[miner.AllBucket]; ok && len(r.Buckets) == 1 {
		if b.Err != nil {
			return miner.BucketedCounts{}
		}
		return miner.AggregateByBucket(b.Records, miner.BucketFunc(miner.DayBucket).ByRecordTime())
	}
	return r.ByBucket()
}

// Summary converts the result for logging and the store.
func (r *Result) Summary() models.RunSummary {
	s := models.RunSummary{
		RunID:         r.RunID,
		Source:        r.Source,
		Events:        r.Events,
		Cases:         r.Cases,
		Buckets:       len(r.Buckets),
		Failed:        len(r.Failed),
		FailedBuckets: r.Failed,
		Duration:      r.Duration,
	}
	if r.Totals != nil {
		s.Transitions = r.Totals.Counts.Total()
		if r.Totals.Graph != nil {
			s.Edges = len(r.Totals.Graph.Edges)
		}
	}
	return s
}

// Report builds an exportable report of the run totals.
func (r *Result) Report(name string) *miner.Report {
	report := &miner.Report{Name: name, Histogram: r.Histogram, Series: r.Series()}
	if r.Totals != nil {
		report.Counts = r.Totals.Counts
		report.Confidence = r.Totals.Confidence
		report.Graph = r.Totals.Graph
	}
	return report
}
