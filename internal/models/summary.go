package models

import "time"

// BucketSummary describes the outcome of mining one time bucket.
type BucketSummary struct {
	Bucket      string
	Events      int
	Cases       int
	Transitions int // total transition occurrences, start and end included
	Distinct    int // distinct transition labels
	Edges       int // edges that survived the graph cutoffs
	Duration    time.Duration
	Err         error
}

// Failed reports whether mining the bucket returned an error.
func (b BucketSummary) Failed() bool {
	return b.Err != nil
}

// RunSummary describes a complete mining run over one event log.
type RunSummary struct {
	RunID         string
	Source        string
	Events        int
	Cases         int
	Buckets       int
	Failed        int
	FailedBuckets []string
	Transitions   int
	Edges         int
	Duration      time.Duration
	Aborted       bool // the run stopped before every bucket was mined
}

// Status returns SUCCESS, PARTIAL or FAILED depending on how many buckets
// failed. An aborted run is always FAILED.
func (r RunSummary) Status() string {
	switch {
	case r.Aborted:
		return "FAILED"
	case r.Failed == 0:
		return "SUCCESS"
	case r.Failed >= r.Buckets:
		return "FAILED"
	default:
		return "PARTIAL"
	}
}
