package health

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idrive-tools/e2-exporter/internal/collector"
)

func successOutcome(bucket string, size, count int64) collector.Outcome {
	return collector.Outcome{
		Bucket: bucket,
		Stats: &collector.BucketStats{
			Bucket:      bucket,
			TotalSize:   size,
			ObjectCount: count,
		},
		Timestamp: time.Now(),
	}
}

func failureOutcome(bucket, msg string) collector.Outcome {
	return collector.Outcome{Bucket: bucket, Err: msg, Timestamp: time.Now()}
}

func TestState_EmptyIsUnhealthy(t *testing.T) {
	s := NewState()
	snap := s.Snapshot()

	assert.False(t, snap.Healthy)
	assert.Nil(t, snap.LastPass)
	assert.Empty(t, snap.Outcomes)
}

func TestState_FinalizePassWithNoBucketsStaysUnhealthy(t *testing.T) {
	s := NewState()
	s.FinalizePass(true, time.Now())

	snap := s.Snapshot()
	assert.False(t, snap.Healthy, "overall health requires at least one recorded bucket")
	require.NotNil(t, snap.LastPass)
}

func TestState_RecordAndFinalize(t *testing.T) {
	s := NewState()
	s.Record(successOutcome("alpha", 60, 3))
	s.Record(failureOutcome("beta", "bucket does not exist"))
	passTime := time.Now()
	s.FinalizePass(false, passTime)

	snap := s.Snapshot()
	assert.False(t, snap.Healthy)
	require.NotNil(t, snap.LastPass)
	assert.True(t, snap.LastPass.Equal(passTime))
	require.Len(t, snap.Outcomes, 2)
	assert.True(t, snap.Outcomes["alpha"].Success())
	assert.False(t, snap.Outcomes["beta"].Success())
}

func TestState_LatestOutcomeReplacesPrior(t *testing.T) {
	s := NewState()
	s.Record(failureOutcome("alpha", "timeout"))
	s.Record(successOutcome("alpha", 10, 1))

	snap := s.Snapshot()
	require.Len(t, snap.Outcomes, 1)
	outcome := snap.Outcomes["alpha"]
	require.True(t, outcome.Success())
	assert.Empty(t, outcome.Err)
	assert.Equal(t, int64(10), outcome.Stats.TotalSize)
}

func TestState_SnapshotIsIsolatedCopy(t *testing.T) {
	s := NewState()
	s.Record(successOutcome("alpha", 10, 1))
	s.FinalizePass(true, time.Now())

	snap := s.Snapshot()
	delete(snap.Outcomes, "alpha")

	again := s.Snapshot()
	require.Len(t, again.Outcomes, 1, "mutating a snapshot must not affect the state")
}

// TestState_ConcurrentReadersAndWriters exercises the reader/writer paths
// together. An outcome read from any snapshot must be internally
// consistent: a success carries stats and no error, a failure the reverse.
func TestState_ConcurrentReadersAndWriters(t *testing.T) {
	s := NewState()
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			bucket := fmt.Sprintf("bucket-%d", i%4)
			if i%2 == 0 {
				s.Record(successOutcome(bucket, int64(i), int64(i)))
			} else {
				s.Record(failureOutcome(bucket, "listing failed"))
			}
			s.FinalizePass(i%3 == 0, time.Now())
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				snap := s.Snapshot()
				for name, o := range snap.Outcomes {
					assert.Equal(t, name, o.Bucket)
					if o.Success() {
						assert.NotNil(t, o.Stats)
						assert.Empty(t, o.Err)
					} else {
						assert.Nil(t, o.Stats)
						assert.NotEmpty(t, o.Err)
					}
				}
			}
		}()
	}

	// Let readers finish, then stop the writer.
	go func() {
		time.Sleep(100 * time.Millisecond)
		close(done)
	}()
	wg.Wait()
}
