package miner

import (
	"sort"

	"github.com/harrison/chainminer/internal/models"
)

// TransitionCounts maps each transition to its number of occurrences.
type TransitionCounts map[models.Transition]int

// BucketedCounts holds one TransitionCounts per time bucket.
type BucketedCounts map[string]TransitionCounts

// Aggregate counts the occurrences of every transition in records.
func Aggregate(records []models.TransitionRecord) TransitionCounts {
	counts := make(TransitionCounts)
	for _, r := range records {
		counts[r.Transition]++
	}
	return counts
}

// AggregateByBucket counts transitions separately for each bucket key
// returned by key.
func AggregateByBucket(records []models.TransitionRecord, key func(models.TransitionRecord) string) BucketedCounts {
	buckets := make(BucketedCounts)
	for _, r := range records {
		k := key(r)
		counts, ok := buckets[k]
		if !ok {
			counts = make(TransitionCounts)
			buckets[k] = counts
		}
		counts[r.Transition]++
	}
	return buckets
}

// Total returns the sum of all counts.
func (tc TransitionCounts) Total() int {
	total := 0
	for _, n := range tc {
		total += n
	}
	return total
}

// Count returns the count of t, 0 when absent.
func (tc TransitionCounts) Count(t models.Transition) int {
	return tc[t]
}

// Transitions returns the counted transitions sorted by label.
func (tc TransitionCounts) Transitions() []models.Transition {
	ts := make([]models.Transition, 0, len(tc))
	for t := range tc {
		ts = append(ts, t)
	}
	models.SortTransitions(ts)
	return ts
}

// Relative returns count(t) / Total(), 0 for an empty set.
func (tc TransitionCounts) Relative(t models.Transition) float64 {
	total := tc.Total()
	if total == 0 {
		return 0
	}
	return float64(tc[t]) / float64(total)
}

// Merge returns a new TransitionCounts summing tc and others key by key.
// The receiver and arguments are not modified.
func (tc TransitionCounts) Merge(others ...TransitionCounts) TransitionCounts {
	merged := make(TransitionCounts, len(tc))
	for t, n := range tc {
		merged[t] += n
	}
	for _, o := range others {
		for t, n := range o {
			merged[t] += n
		}
	}
	return merged
}

// Buckets returns the bucket keys in sorted order.
func (bc BucketedCounts) Buckets() []string {
	keys := make([]string, 0, len(bc))
	for k := range bc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Totals folds all buckets into a single TransitionCounts.
func (bc BucketedCounts) Totals() TransitionCounts {
	total := make(TransitionCounts)
	for _, counts := range bc {
		total = total.Merge(counts)
	}
	return total
}

// Merge returns a new BucketedCounts summing bc and others per bucket.
func (bc BucketedCounts) Merge(others ...BucketedCounts) BucketedCounts {
	merged := make(BucketedCounts, len(bc))
	for k, counts := range bc {
		merged[k] = counts.Merge()
	}
	for _, o := range others {
		for k, counts := range o {
			merged[k] = merged[k].Merge(counts)
		}
	}
	return merged
}
