// Package pipeline mines a whole event log: it partitions events into time
// buckets, mines the buckets concurrently, records them in the store and
// folds everything into one total dependency graph.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/chainminer/internal/config"
	"github.com/harrison/chainminer/internal/logger"
	"github.com/harrison/chainminer/internal/miner"
	"github.com/harrison/chainminer/internal/models"
)

// Recorder persists mined buckets. *store.Store implements it.
type Recorder interface {
	BeginRun(ctx context.Context, source string) (string, error)
	RecordBucket(ctx context.Context, runID, bucket string, counts miner.TransitionCounts, lengths map[int]int) error
	FinishRun(ctx context.Context, runID string, summary models.RunSummary) error
}

// Options configures mining.
type Options struct {
	Bucket           string // day, hour or none
	Graph            miner.GraphOptions
	Alphabet         models.Alphabet
	CheckOrdering    bool
	AllowCaseIDReuse bool
	MaxConcurrency   int // 0 = unlimited
}

// DefaultOptions mirrors config.DefaultConfig.
func DefaultOptions() Options {
	opts, _ := OptionsFromConfig(config.DefaultConfig())
	return opts
}

// OptionsFromConfig builds mining options from a validated configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	if err := cfg.Validate(); err != nil {
		return Options{}, err
	}
	codes := make([]models.Category, 0, len(cfg.Mining.Alphabet))
	for _, c := range cfg.Mining.Alphabet {
		codes = append(codes, models.Category(c))
	}

	return Options{
		Bucket: cfg.Mining.Bucket,
		Graph: miner.GraphOptions{
			RelativeCutoff:     cfg.Mining.RelativeCutoff,
			SignificanceCutoff: cfg.Mining.SignificanceCutoff,
		},
		Alphabet:         models.NewAlphabet(codes...),
		CheckOrdering:    cfg.Mining.CheckOrdering,
		AllowCaseIDReuse: cfg.Mining.AllowCaseIDReuse,
		MaxConcurrency:   cfg.MaxConcurrency,
	}, nil
}

// Miner runs the mining pipeline over event logs.
type Miner struct {
	opts     Options
	bucketFn miner.BucketFunc
	logger   logger.Logger
	recorder Recorder
	metrics  *Metrics
}

// Option configures a Miner.
type Option func(*Miner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(m *Miner) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithRecorder records every mined bucket, typically in a *store.Store.
func WithRecorder(r Recorder) Option {
	return func(m *Miner) {
		m.recorder = r
	}
}

// WithMetrics sets the metrics. The default is an unregistered set.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Miner) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// New validates opts and creates a Miner.
func New(opts Options, options ...Option) (*Miner, error) {
	if err := opts.Graph.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxConcurrency < 0 {
		return nil, fmt.Errorf("max concurrency must be >= 0, got %d", opts.MaxConcurrency)
	}
	bucketFn, err := miner.BucketFuncFor(opts.Bucket)
	if err != nil {
		return nil, err
	}

	m := &Miner{
		opts:     opts,
		bucketFn: bucketFn,
		logger:   logger.NewNoOpLogger(),
	}
	for _, o := range options {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = NewMetrics(nil)
	}
	return m, nil
}

// Options returns the options the miner was created with.
func (m *Miner) Options() Options {
	return m.opts
}

func (m *Miner) extractOptions() []miner.ExtractOption {
	return []miner.ExtractOption{
		miner.WithAlphabet(m.opts.Alphabet),
		miner.WithOrderingCheck(m.opts.CheckOrdering),
		miner.WithCaseIDReuse(m.opts.AllowCaseIDReuse),
	}
}

// Run mines events read from source.
//
// Events are sorted by position and split into buckets; every case goes to
// the bucket of its first event so no case is cut in two. Buckets are mined
// concurrently. A bucket that fails is reported in Result.Failed and left out
// of the totals; Run then returns the result together with a *BucketError.
// Ordering violations across the whole stream fail the run before any bucket
// is mined.
func (m *Miner) Run(ctx context.Context, source string, events []models.Event) (*Result, error) {
	start := time.Now()

	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	models.SortEventsByPosition(sorted)
	m.metrics.EventsTotal.Add(float64(len(sorted)))

	parts, err := m.partition(sorted)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Source:  source,
		Events:  len(sorted),
		Cases:   models.CountCases(sorted),
		Buckets: make(map[string]*BucketResult, len(parts)),
	}

	if m.recorder != nil {
		runID, err := m.recorder.BeginRun(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("begin run: %w", err)
		}
		res.RunID = runID
	}

	keys := make([]string, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mu sync.Mutex
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	if m.opts.MaxConcurrency > 0 {
		g.SetLimit(m.opts.MaxConcurrency)
	}
	for _, key := range keys {
		key := key
		bucketEvents := parts[key]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			br := m.mineBucket(gctx, res.RunID, key, bucketEvents)

			mu.Lock()
			res.Buckets[key] = br
			mu.Unlock()

			m.logger.LogProgress(int(done.Add(1)), len(keys))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		res.Duration = time.Since(start)
		return nil, m.abort(ctx, res, err)
	}

	if err := m.fold(res); err != nil {
		res.Duration = time.Since(start)
		return nil, m.abort(ctx, res, err)
	}
	res.Duration = time.Since(start)

	summary := res.Summary()
	if m.recorder != nil {
		if err := m.recorder.FinishRun(ctx, res.RunID, summary); err != nil {
			return nil, fmt.Errorf("finish run: %w", err)
		}
	}
	m.logger.LogRunSummary(summary)

	if len(res.Failed) > 0 {
		be := &BucketError{Errors: make(map[string]error, len(res.Failed))}
		for _, k := range res.Failed {
			be.Errors[k] = res.Buckets[k].Err
		}
		return res, be
	}
	return res, nil
}

// abort stamps a started run as failed so the store does not keep it
// running. The stamp uses a context that outlives cancellation of ctx.
func (m *Miner) abort(ctx context.Context, res *Result, cause error) error {
	if m.recorder == nil || res.RunID == "" {
		return cause
	}
	summary := res.Summary()
	summary.Aborted = true
	if err := m.recorder.FinishRun(context.WithoutCancel(ctx), res.RunID, summary); err != nil {
		return errors.Join(cause, fmt.Errorf("finish run: %w", err))
	}
	return cause
}

// partition splits position-ordered events into buckets, assigning each
// case to the bucket of its first event.
func (m *Miner) partition(events []models.Event) (map[string][]models.Event, error) {
	parts := make(map[string][]models.Event)
	closed := make(map[models.CaseID]struct{})

	var bucket string
	for i, ev := range events {
		startsCase := i == 0 || ev.CaseID != events[i-1].CaseID
		if m.opts.CheckOrdering && i > 0 && ev.Position == events[i-1].Position {
			return nil, &models.OrderingError{Index: i, Position: ev.Position, CaseID: ev.CaseID, Reason: "duplicate position"}
		}
		if startsCase {
			if i > 0 {
				closed[events[i-1].CaseID] = struct{}{}
			}
			if _, seen := closed[ev.CaseID]; seen && m.opts.CheckOrdering && !m.opts.AllowCaseIDReuse {
				return nil, &models.OrderingError{Index: i, Position: ev.Position, CaseID: ev.CaseID, Reason: "case reappears after it ended"}
			}
			bucket = m.bucketFn(ev.Timestamp)
		}
		parts[bucket] = append(parts[bucket], ev)
	}
	return parts, nil
}

func (m *Miner) mineBucket(ctx context.Context, runID, bucket string, events []models.Event) *BucketResult {
	start := time.Now()
	m.logger.LogBucketStart(bucket, len(events))

	br := &BucketResult{Bucket: bucket, Events: len(events), Cases: models.CountCases(events)}
	br.Err = func() error {
		records, err := miner.ExtractTransitions(events, m.extractOptions()...)
		if err != nil {
			return err
		}
		br.Records = records
		br.Counts = miner.Aggregate(records)

		if br.Confidence, err = miner.ComputeConfidence(br.Counts); err != nil {
			return err
		}
		if br.Graph, err = miner.BuildGraph(br.Counts, br.Confidence, m.opts.Graph); err != nil {
			return err
		}
		br.Lengths = miner.ProfileTraceLengths(events, func(models.Event) string { return bucket })[bucket]

		if m.recorder != nil {
			if err := m.recorder.RecordBucket(ctx, runID, bucket, br.Counts, br.Lengths); err != nil {
				return fmt.Errorf("record bucket: %w", err)
			}
		}
		return nil
	}()
	br.Duration = time.Since(start)

	m.metrics.BucketDuration.Observe(br.Duration.Seconds())
	if br.Err != nil {
		m.metrics.BucketsMined.WithLabelValues(statusError).Inc()
	} else {
		m.metrics.BucketsMined.WithLabelValues(statusSuccess).Inc()
		for t, n := range br.Counts {
			m.metrics.TransitionsTotal.WithLabelValues(t.Label()).Add(float64(n))
		}
	}

	m.logger.LogBucketComplete(br.Summary())
	return br
}

// fold merges every successful bucket into the run totals.
func (m *Miner) fold(res *Result) error {
	var counts []miner.TransitionCounts
	var hists []miner.TraceLengthHistogram
	for _, key := range res.BucketKeys() {
		br := res.Buckets[key]
		if br.Err != nil {
			res.Failed = append(res.Failed, key)
			continue
		}
		counts = append(counts, br.Counts)
		hists = append(hists, miner.TraceLengthHistogram{key: br.Lengths})
	}

	totals, err := m.Fold(counts...)
	if err != nil {
		return err
	}
	res.Totals = totals
	res.Histogram = miner.TraceLengthHistogram{}.Merge(hists...)
	return nil
}

// Fold merges count tables and builds their confidence and graph with the
// miner's cutoffs. It is used for run totals and for totals over several runs.
func (m *Miner) Fold(counts ...miner.TransitionCounts) (*Totals, error) {
	merged := miner.TransitionCounts{}.Merge(counts...)

	conf, err := miner.ComputeConfidence(merged)
	if err != nil {
		return nil, fmt.Errorf("total confidence: %w", err)
	}
	graph, err := miner.BuildGraph(merged, conf, m.opts.Graph)
	if err != nil {
		return nil, fmt.Errorf("total graph: %w", err)
	}
	return &Totals{Counts: merged, Confidence: conf, Graph: graph}, nil
}

// BucketError reports the buckets that failed during a run.
type BucketError struct {
	Errors map[string]error
}

func (e *BucketError) Error() string {
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 1 {
		return fmt.Sprintf("bucket %s: %v", keys[0], e.Errors[keys[0]])
	}
	return fmt.Sprintf("%d buckets failed, first %s: %v", len(keys), keys[0], e.Errors[keys[0]])
}

// Unwrap exposes the individual bucket errors to errors.Is and errors.As.
func (e *BucketError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, err := range e.Errors {
		errs = append(errs, err)
	}
	return errs
}
