// Package collector drains paginated object listings from an S3-compatible
// store, aggregates per-bucket statistics, and runs the periodic collection
// pass that feeds the metrics sink and the health record.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrBucketNotFound is the error StoreClient implementations wrap when a
// listed bucket does not exist. The collector folds it into a fixed
// failure message instead of the raw store error.
var ErrBucketNotFound = errors.New("bucket does not exist")

// ObjectInfo describes a single object yielded by a bucket listing.
// When a listing fails mid-stream, the final entry carries Err instead of
// object fields.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	Err          error
}

// BucketInfo describes a bucket visible to the configured credentials.
type BucketInfo struct {
	Name      string
	CreatedAt time.Time
}

// StoreClient lists objects and buckets in an S3-compatible store.
// Implemented by storage.Client; tests substitute fakes.
type StoreClient interface {
	// ListObjects streams every object in the bucket across all pages.
	// The channel is closed when the listing completes.
	ListObjects(ctx context.Context, bucket string) <-chan ObjectInfo

	// ListBuckets returns all buckets visible to the credentials.
	ListBuckets(ctx context.Context) ([]BucketInfo, error)
}

// BucketStats holds the aggregate statistics for one bucket from one
// collection pass. A new value is produced on every successful pass and
// supersedes, never merges with, the previous one.
type BucketStats struct {
	Bucket       string
	TotalSize    int64
	ObjectCount  int64
	LastModified time.Time // zero when the bucket has no objects
	Duration     time.Duration
}

// Outcome is the result of one collection attempt for one bucket:
// either Stats (success) or Err (failure), never both.
type Outcome struct {
	Bucket    string
	Stats     *BucketStats
	Err       string
	Timestamp time.Time
}

// Success reports whether the outcome carries stats rather than an error.
func (o Outcome) Success() bool { return o.Err == "" && o.Stats != nil }

// progressEvery is how many objects pass between progress log lines while
// draining a large listing.
const progressEvery = 10_000

// Collect drains the full object listing for one bucket and returns its
// aggregate statistics. Errors never escape this boundary: a missing
// bucket or a listing failure produces a failure Outcome, and the bucket
// is retried naturally on the next pass. Collect mutates no shared state.
func Collect(ctx context.Context, store StoreClient, bucket string) Outcome {
	start := time.Now()
	stats := BucketStats{Bucket: bucket}

	for obj := range store.ListObjects(ctx, bucket) {
		if obj.Err != nil {
			if errors.Is(obj.Err, ErrBucketNotFound) {
				slog.Error("collector: bucket does not exist", "bucket", bucket)
				return failure(bucket, fmt.Sprintf("bucket %q does not exist", bucket))
			}
			slog.Error("collector: listing failed", "bucket", bucket, "error", obj.Err)
			return failure(bucket, obj.Err.Error())
		}

		stats.TotalSize += obj.Size
		stats.ObjectCount++
		if obj.LastModified.After(stats.LastModified) {
			stats.LastModified = obj.LastModified
		}

		if stats.ObjectCount%progressEvery == 0 {
			slog.Info("collector: listing in progress",
				"bucket", bucket, "objects", stats.ObjectCount, "size_bytes", stats.TotalSize)
		}
	}

	stats.Duration = time.Since(start)
	return Outcome{Bucket: bucket, Stats: &stats, Timestamp: time.Now()}
}

func failure(bucket, msg string) Outcome {
	return Outcome{Bucket: bucket, Err: msg, Timestamp: time.Now()}
}
