package miner

import (
	"sort"

	"github.com/harrison/chainminer/internal/models"
)

// TraceLengthHistogram maps bucket -> case length -> number of cases.
type TraceLengthHistogram map[string]map[int]int

// ProfileTraceLengths counts, per bucket, how many cases have each length
// (number of events).
func ProfileTraceLengths(events []models.Event, bucket func(models.Event) string) TraceLengthHistogram {
	lengths := make(map[string]map[models.CaseID]int)
	for _, e := range events {
		b := bucket(e)
		perCase, ok := lengths[b]
		if !ok {
			perCase = make(map[models.CaseID]int)
			lengths[b] = perCase
		}
		perCase[e.CaseID]++
	}

	hist := make(TraceLengthHistogram, len(lengths))
	for b, perCase := range lengths {
		row := make(map[int]int)
		for _, n := range perCase {
			row[n]++
		}
		hist[b] = row
	}
	return hist
}

// Buckets returns the bucket keys in sorted order.
func (h TraceLengthHistogram) Buckets() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lengths returns the union of all lengths across buckets, sorted.
func (h TraceLengthHistogram) Lengths() []int {
	seen := make(map[int]struct{})
	for _, row := range h {
		for n := range row {
			seen[n] = struct{}{}
		}
	}
	lengths := make([]int, 0, len(seen))
	for n := range seen {
		lengths = append(lengths, n)
	}
	sort.Ints(lengths)
	return lengths
}

// Aligned returns one row per bucket (in Buckets order) over the common
// Lengths axis, with zeros for lengths absent in a bucket.
func (h TraceLengthHistogram) Aligned() (buckets []string, lengths []int, rows [][]int) {
	buckets = h.Buckets()
	lengths = h.Lengths()
	rows = make([][]int, len(buckets))
	for i, b := range buckets {
		row := make([]int, len(lengths))
		for j, n := range lengths {
			row[j] = h[b][n]
		}
		rows[i] = row
	}
	return buckets, lengths, rows
}

// Cases returns the number of distinct cases observed in bucket.
func (h TraceLengthHistogram) Cases(bucket string) int {
	total := 0
	for _, n := range h[bucket] {
		total += n
	}
	return total
}

// Merge returns a new histogram summing h and others per bucket and length.
func (h TraceLengthHistogram) Merge(others ...TraceLengthHistogram) TraceLengthHistogram {
	merged := make(TraceLengthHistogram, len(h))
	add := func(src TraceLengthHistogram) {
		for b, row := range src {
			dst, ok := merged[b]
			if !ok {
				dst = make(map[int]int, len(row))
				merged[b] = dst
			}
			for n, cases := range row {
				dst[n] += cases
			}
		}
	}
	add(h)
	for _, o := range others {
		add(o)
	}
	return merged
}
