package miner

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrison/chainminer/internal/models"
)

// Bucket names accepted by BucketFuncFor.
const (
	BucketDay  = "day"
	BucketHour = "hour"
	BucketNone = "none"
)

// AllBucket is the single key used when bucketing is disabled.
const AllBucket = "all"

// BucketFunc derives a bucket key from an epoch-seconds timestamp.
type BucketFunc func(timestamp int64) string

// DayBucket truncates a timestamp to its UTC calendar day ("2006-01-02").
func DayBucket(timestamp int64) string {
	return time.Unix(timestamp, 0).UTC().Format("2006-01-02")
}

// HourBucket truncates a timestamp to its UTC hour ("2006-01-02T15").
func HourBucket(timestamp int64) string {
	return time.Unix(timestamp, 0).UTC().Format("2006-01-02T15")
}

// NoBucket puts every timestamp in the same bucket.
func NoBucket(int64) string {
	return AllBucket
}

// BucketFuncFor returns the bucket function registered under name.
func BucketFuncFor(name string) (BucketFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case BucketDay, "":
		return DayBucket, nil
	case BucketHour:
		return HourBucket, nil
	case BucketNone:
		return NoBucket, nil
	default:
		return nil, fmt.Errorf("unsupported bucket %q (supported: day, hour, none)", name)
	}
}

// ByEventTime adapts f to key events.
func (f BucketFunc) ByEventTime() func(models.Event) string {
	return func(e models.Event) string { return f(e.Timestamp) }
}

// ByRecordTime adapts f to key transition records.
func (f BucketFunc) ByRecordTime() func(models.TransitionRecord) string {
	return func(r models.TransitionRecord) string { return f(r.Timestamp) }
}
