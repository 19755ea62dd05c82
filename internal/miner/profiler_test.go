package miner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/chainminer/internal/models"
)

func TestProfileTraceLengths(t *testing.T) {
	day1 := int64(1520035200) // 2018-03-03 00:00:00 UTC
	day2 := day1 + 86400
	events := []models.Event{
		{CaseID: 1, Position: 0, Category: models.CategoryUtC, Timestamp: day1},
		{CaseID: 1, Position: 1, Category: models.CategoryCtU, Timestamp: day1},
		{CaseID: 2, Position: 2, Category: models.CategoryUtU, Timestamp: day1},
		{CaseID: 3, Position: 3, Category: models.CategoryUtC, Timestamp: day1 + 60},
		{CaseID: 3, Position: 4, Category: models.CategoryCtC, Timestamp: day1 + 60},
		{CaseID: 4, Position: 5, Category: models.CategoryUtU, Timestamp: day2},
		{CaseID: 5, Position: 6, Category: models.CategoryUtC, Timestamp: day2},
		{CaseID: 5, Position: 7, Category: models.CategoryCtC, Timestamp: day2},
		{CaseID: 5, Position: 8, Category: models.CategoryCtU, Timestamp: day2},
	}

	hist := ProfileTraceLengths(events, BucketFunc(DayBucket).ByEventTime())

	require.Equal(t, []string{"2018-03-03", "2018-03-04"}, hist.Buckets())
	assert.Equal(t, map[int]int{1: 1, 2: 2}, hist["2018-03-03"])
	assert.Equal(t, map[int]int{1: 1, 3: 1}, hist["2018-03-04"])

	assert.Equal(t, 3, hist.Cases("2018-03-03"))
	assert.Equal(t, 2, hist.Cases("2018-03-04"))
	assert.Equal(t, 0, hist.Cases("2018-03-05"))
}

func TestTraceLengthHistogram_CasesMatchDistinctCases(t *testing.T) {
	var events []models.Event
	pos := int64(0)
	for c := 0; c < 25; c++ {
		for i := 0; i <= c%4; i++ {
			events = append(events, models.Event{CaseID: models.CaseID(c), Position: pos, Category: models.CategoryCtC})
			pos++
		}
	}

	hist := ProfileTraceLengths(events, BucketFunc(NoBucket).ByEventTime())

	assert.Equal(t, models.CountCases(events), hist.Cases(AllBucket))
}

func TestTraceLengthHistogram_Aligned(t *testing.T) {
	hist := TraceLengthHistogram{
		"b": {1: 4, 5: 1},
		"a": {2: 3},
	}

	buckets, lengths, rows := hist.Aligned()

	assert.Equal(t, []string{"a", "b"}, buckets)
	assert.Equal(t, []int{1, 2, 5}, lengths)
	assert.Equal(t, [][]int{{0, 3, 0}, {4, 0, 1}}, rows)
}

func TestTraceLengthHistogram_Merge(t *testing.T) {
	x := TraceLengthHistogram{"a": {1: 2}}
	y := TraceLengthHistogram{"a": {1: 1, 2: 1}, "b": {3: 1}}

	merged := x.Merge(y)

	assert.Equal(t, TraceLengthHistogram{"a": {1: 3, 2: 1}, "b": {3: 1}}, merged)
	assert.Equal(t, merged, y.Merge(x))
	assert.Equal(t, 2, x["a"][1], "receiver must not be modified")
}

func TestBucketFuncFor(t *testing.T) {
	ts := int64(1520035200 + 3600*5 + 12)

	day, err := BucketFuncFor("day")
	require.NoError(t, err)
	assert.Equal(t, "2018-03-03", day(ts))

	hour, err := BucketFuncFor("HOUR")
	require.NoError(t, err)
	assert.Equal(t, "2018-03-03T05", hour(ts))

	none, err := BucketFuncFor("none")
	require.NoError(t, err)
	assert.Equal(t, AllBucket, none(ts))

	_, err = BucketFuncFor("week")
	assert.Error(t, err)
}
