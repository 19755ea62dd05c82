package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/chainminer/internal/miner"
	"github.com/harrison/chainminer/internal/models"
	"github.com/harrison/chainminer/internal/store"
)

const (
	day1 = int64(1520035200) // 2018-03-03 00:00:00 UTC
	day2 = day1 + 86400
)

func event(caseID int64, pos int64, cat models.Category, ts int64) models.Event {
	return models.Event{CaseID: models.CaseID(caseID), Position: pos, Category: cat, Timestamp: ts}
}

// twoDays holds three cases on day one (the last crossing midnight) and two on day two.
func twoDays() []models.Event {
	return []models.Event{
		event(1, 10, models.CategoryUtC, day1+10),
		event(1, 11, models.CategoryCtU, day1+10),
		event(2, 20, models.CategoryUtU, day1+3600),
		event(3, 30, models.CategoryUtC, day2-1),
		event(3, 31, models.CategoryCtC, day2+5),
		event(4, 40, models.CategoryUtU, day2+60),
		event(5, 50, models.CategoryUtC, day2+120),
		event(5, 51, models.CategoryCtU, day2+120),
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Graph = miner.GraphOptions{RelativeCutoff: 0, SignificanceCutoff: 0}
	return opts
}

func newTestMiner(t *testing.T, opts Options, options ...Option) *Miner {
	t.Helper()
	m, err := New(opts, options...)
	require.NoError(t, err)
	return m
}

type fakeRecorder struct {
	mu       sync.Mutex
	begun    []string
	buckets  map[string]miner.TransitionCounts
	finished *models.RunSummary
	failOn   string
}

func (f *fakeRecorder) BeginRun(_ context.Context, source string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begun = append(f.begun, source)
	return "run-1", nil
}

func (f *fakeRecorder) RecordBucket(_ context.Context, runID, bucket string, counts miner.TransitionCounts, _ map[int]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if bucket == f.failOn {
		return errors.New("disk full")
	}
	if f.buckets == nil {
		f.buckets = make(map[string]miner.TransitionCounts)
	}
	f.buckets[bucket] = counts
	return nil
}

func (f *fakeRecorder) FinishRun(_ context.Context, runID string, summary models.RunSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = &summary
	return nil
}

func TestRun_PartitionsByDay(t *testing.T) {
	m := newTestMiner(t, testOptions())

	res, err := m.Run(context.Background(), "traces.csv", twoDays())
	require.NoError(t, err)

	assert.Equal(t, []string{"2018-03-03", "2018-03-04"}, res.BucketKeys())
	assert.Equal(t, 8, res.Events)
	assert.Equal(t, 5, res.Cases)
	assert.Empty(t, res.Failed)

	// Case 3 starts before midnight and stays whole in the first bucket.
	first := res.Buckets["2018-03-03"]
	assert.Equal(t, 5, first.Events)
	assert.Equal(t, 3, first.Cases)
	assert.Equal(t, map[int]int{1: 1, 2: 2}, first.Lengths)
	assert.Equal(t, 1, first.Counts[models.NewTransition(models.CategoryUtC, models.CategoryCtC)])

	second := res.Buckets["2018-03-04"]
	assert.Equal(t, 3, second.Events)
	assert.Equal(t, map[int]int{1: 1, 2: 1}, second.Lengths)

	firstKey, last := res.Span()
	assert.Equal(t, "2018-03-03", firstKey)
	assert.Equal(t, "2018-03-04", last)
}

func TestRun_TotalsMatchWholeStream(t *testing.T) {
	events := twoDays()
	m := newTestMiner(t, testOptions())

	res, err := m.Run(context.Background(), "traces.csv", events)
	require.NoError(t, err)

	records, err := miner.ExtractTransitions(events)
	require.NoError(t, err)
	want := miner.Aggregate(records)

	assert.Equal(t, want, res.Totals.Counts)
	assert.Equal(t, len(events)+res.Cases, res.Totals.Counts.Total())
	assert.Equal(t, want, res.ByBucket().Totals())
	assert.Equal(t, res.Cases, res.Histogram.Cases("2018-03-03")+res.Histogram.Cases("2018-03-04"))

	summary := res.Summary()
	assert.Equal(t, "SUCCESS", summary.Status())
	assert.Equal(t, 2, summary.Buckets)
	assert.Equal(t, want.Total(), summary.Transitions)
	assert.Equal(t, len(res.Totals.Graph.Edges), summary.Edges)
}

func TestRun_SortsInput(t *testing.T) {
	events := twoDays()
	reversed := make([]models.Event, len(events))
	for i, e := range events {
		reversed[len(events)-1-i] = e
	}

	m := newTestMiner(t, testOptions())
	res, err := m.Run(context.Background(), "traces.csv", reversed)
	require.NoError(t, err)

	sorted, err := m.Run(context.Background(), "traces.csv", events)
	require.NoError(t, err)
	assert.Equal(t, sorted.Totals.Counts, res.Totals.Counts)
	assert.Equal(t, int64(51), reversed[0].Position, "input must not be reordered")
}

func TestRun_NoBucket(t *testing.T) {
	opts := testOptions()
	opts.Bucket = "none"
	m := newTestMiner(t, opts)

	res, err := m.Run(context.Background(), "traces.csv", twoDays())
	require.NoError(t, err)

	assert.Equal(t, []string{miner.AllBucket}, res.BucketKeys())
	assert.Equal(t, res.Totals.Counts, res.Buckets[miner.AllBucket].Counts)
}

func TestResult_SeriesWithoutBuckets(t *testing.T) {
	opts := testOptions()
	opts.Bucket = miner.BucketNone
	m := newTestMiner(t, opts)

	res, err := m.Run(context.Background(), "traces.csv", twoDays())
	require.NoError(t, err)
	require.Equal(t, []string{miner.AllBucket}, res.BucketKeys())

	// Case 3 crosses midnight, so its closing transitions land on day two.
	series := res.Series()
	assert.Equal(t, []string{"2018-03-03", "2018-03-04"}, series.Buckets())
	assert.Equal(t, 1, series["2018-03-04"][models.NewTransition(models.CategoryUtC, models.CategoryCtC)])
	assert.Equal(t, res.Totals.Counts, series.Totals())
}

func TestRun_Empty(t *testing.T) {
	m := newTestMiner(t, testOptions())

	res, err := m.Run(context.Background(), "empty.csv", nil)
	require.NoError(t, err)

	assert.Empty(t, res.Buckets)
	assert.Equal(t, 0, res.Totals.Counts.Total())
	assert.Empty(t, res.Totals.Graph.Edges)
	assert.Equal(t, "SUCCESS", res.Summary().Status())
}

func TestRun_OrderingErrors(t *testing.T) {
	interleaved := []models.Event{
		event(1, 1, models.CategoryUtC, day1),
		event(2, 2, models.CategoryUtU, day1),
		event(1, 3, models.CategoryCtU, day1),
	}
	duplicate := []models.Event{
		event(1, 1, models.CategoryUtC, day1),
		event(2, 1, models.CategoryUtU, day2),
	}

	for name, events := range map[string][]models.Event{"interleaved": interleaved, "duplicate position": duplicate} {
		t.Run(name, func(t *testing.T) {
			m := newTestMiner(t, testOptions())
			res, err := m.Run(context.Background(), "bad.csv", events)

			assert.Nil(t, res)
			assert.ErrorIs(t, err, models.ErrInvalidOrdering)
			var oe *models.OrderingError
			require.ErrorAs(t, err, &oe)
		})
	}
}

func TestRun_CaseIDReuse(t *testing.T) {
	events := []models.Event{
		event(1, 1, models.CategoryUtC, day1),
		event(2, 2, models.CategoryUtU, day1),
		event(1, 3, models.CategoryCtU, day1),
	}

	opts := testOptions()
	opts.AllowCaseIDReuse = true
	m := newTestMiner(t, opts)

	res, err := m.Run(context.Background(), "reuse.csv", events)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Totals.Counts[models.NewTransition(models.CategoryStart, models.CategoryUtC)]+
		res.Totals.Counts[models.NewTransition(models.CategoryStart, models.CategoryUtU)]+
		res.Totals.Counts[models.NewTransition(models.CategoryStart, models.CategoryCtU)])
}

func TestRun_FailedBucket(t *testing.T) {
	events := twoDays()
	events[6].Category = "XtX"

	rec := &fakeRecorder{}
	m := newTestMiner(t, testOptions(), WithRecorder(rec))

	res, err := m.Run(context.Background(), "traces.csv", events)
	require.Error(t, err)
	require.NotNil(t, res)

	var be *BucketError
	require.ErrorAs(t, err, &be)
	assert.ErrorIs(t, err, models.ErrUnknownCategory)
	assert.Contains(t, err.Error(), "bucket 2018-03-04")

	assert.Equal(t, []string{"2018-03-04"}, res.Failed)
	assert.Equal(t, res.Buckets["2018-03-03"].Counts, res.Totals.Counts)

	require.NotNil(t, rec.finished)
	assert.Equal(t, "PARTIAL", rec.finished.Status())
	assert.Equal(t, []string{"2018-03-04"}, rec.finished.FailedBuckets)
	assert.Contains(t, rec.buckets, "2018-03-03")
	assert.NotContains(t, rec.buckets, "2018-03-04")
}

func TestRun_RecorderError(t *testing.T) {
	rec := &fakeRecorder{failOn: "2018-03-03"}
	m := newTestMiner(t, testOptions(), WithRecorder(rec))

	res, err := m.Run(context.Background(), "traces.csv", twoDays())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record bucket")
	assert.Equal(t, []string{"2018-03-03"}, res.Failed)
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, []string{"traces.csv"}, rec.begun)
}

func TestRun_WithStore(t *testing.T) {
	s, err := store.NewStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	m := newTestMiner(t, testOptions(), WithRecorder(s))

	res, err := m.Run(ctx, "traces.csv", twoDays())
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	buckets, err := s.BucketTransitions(ctx, store.Range{})
	require.NoError(t, err)
	assert.Equal(t, res.ByBucket(), buckets)

	lengths, err := s.TraceLengths(ctx, store.Range{Since: "2018-03-04"})
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 1, 2: 1}, lengths["2018-03-04"])

	// Mining the same source again replaces its buckets.
	_, err = m.Run(ctx, "traces.csv", twoDays())
	require.NoError(t, err)
	buckets, err = s.BucketTransitions(ctx, store.Range{})
	require.NoError(t, err)
	assert.Equal(t, res.Totals.Counts, buckets.Totals())

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, store.StatusSuccess, runs[0].Status)
	assert.Equal(t, 2, runs[0].Buckets)
}

func TestRun_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m := newTestMiner(t, testOptions(), WithMetrics(metrics))

	events := twoDays()
	events[6].Category = "XtX"
	_, err := m.Run(context.Background(), "traces.csv", events)
	require.Error(t, err)

	assert.Equal(t, 8.0, testutil.ToFloat64(metrics.EventsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BucketsMined.WithLabelValues(statusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BucketsMined.WithLabelValues(statusError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.TransitionsTotal.WithLabelValues("sta->UtC")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.BucketDuration))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 4)
}

func TestRun_ContextCancelled(t *testing.T) {
	opts := testOptions()
	opts.MaxConcurrency = 1
	m := newTestMiner(t, opts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Run(ctx, "traces.csv", twoDays())
	assert.ErrorIs(t, err, context.Canceled)
}

// cancellingRecorder cancels the run while the first bucket is recorded.
type cancellingRecorder struct {
	*store.Store
	cancel context.CancelFunc
}

func (c *cancellingRecorder) RecordBucket(ctx context.Context, runID, bucket string, counts miner.TransitionCounts, lengths map[int]int) error {
	c.cancel()
	return c.Store.RecordBucket(ctx, runID, bucket, counts, lengths)
}

func TestRun_CancelledRunIsMarkedFailed(t *testing.T) {
	s, err := store.NewStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := testOptions()
	opts.MaxConcurrency = 1
	m := newTestMiner(t, opts, WithRecorder(&cancellingRecorder{Store: s, cancel: cancel}))

	_, err = m.Run(ctx, "traces.csv", twoDays())
	require.ErrorIs(t, err, context.Canceled)

	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.StatusFailed, runs[0].Status)
	assert.NotNil(t, runs[0].FinishedAt)
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"relative cutoff", func(o *Options) { o.Graph.RelativeCutoff = 1 }},
		{"significance cutoff", func(o *Options) { o.Graph.SignificanceCutoff = -1.5 }},
		{"bucket", func(o *Options) { o.Bucket = "week" }},
		{"concurrency", func(o *Options) { o.MaxConcurrency = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.modify(&opts)
			_, err := New(opts)
			assert.Error(t, err)
		})
	}
}

func TestFold(t *testing.T) {
	m := newTestMiner(t, testOptions())
	ctx := context.Background()

	events := twoDays()
	a, err := m.Run(ctx, "a.csv", events[:5])
	require.NoError(t, err)
	b, err := m.Run(ctx, "b.csv", events[5:])
	require.NoError(t, err)
	whole, err := m.Run(ctx, "whole.csv", events)
	require.NoError(t, err)

	totals, err := m.Fold(a.Totals.Counts, b.Totals.Counts)
	require.NoError(t, err)
	assert.Equal(t, whole.Totals.Counts, totals.Counts)
	assert.Equal(t, whole.Totals.Confidence, totals.Confidence)
	assert.Equal(t, len(whole.Totals.Graph.Edges), len(totals.Graph.Edges))
}

func TestReports(t *testing.T) {
	m := newTestMiner(t, testOptions())
	res, err := m.Run(context.Background(), "traces.csv", twoDays())
	require.NoError(t, err)

	total := res.Report("traces")
	require.NoError(t, total.Validate())
	assert.Equal(t, res.Totals.Graph, total.Graph)
	assert.Empty(t, total.Bucket)
	assert.Equal(t, []string{"2018-03-03", "2018-03-04"}, total.Series.Buckets())
	assert.Equal(t, res.Totals.Counts, total.Series.Totals())

	bucket := res.Buckets["2018-03-03"].Report("traces")
	assert.Equal(t, "2018-03-03", bucket.Bucket)
	assert.Len(t, bucket.Records, 5+3)
	assert.Equal(t, []string{"2018-03-03"}, bucket.Histogram.Buckets())
}

func TestOptionsFromConfig(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, "day", opts.Bucket)
	assert.Equal(t, 0.01, opts.Graph.RelativeCutoff)
	assert.Equal(t, 0.5, opts.Graph.SignificanceCutoff)
	assert.True(t, opts.CheckOrdering)
	assert.Equal(t, models.DefaultAlphabet(), opts.Alphabet)
}
