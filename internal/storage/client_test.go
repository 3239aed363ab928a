package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idrive-tools/e2-exporter/internal/collector"
)

func TestListObjects(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	putObject(t, "logs/a.txt", "hello")
	putObject(t, "logs/b.txt", "world!!")
	putObject(t, "root.bin", "x")

	var total int64
	keys := map[string]bool{}
	for obj := range client.ListObjects(ctx, testBucket) {
		require.NoError(t, obj.Err)
		keys[obj.Key] = true
		total += obj.Size
		assert.WithinDuration(t, time.Now(), obj.LastModified, time.Minute)
	}

	assert.Len(t, keys, 3)
	assert.True(t, keys["logs/a.txt"])
	assert.True(t, keys["logs/b.txt"])
	assert.True(t, keys["root.bin"])
	assert.Equal(t, int64(13), total)
}

func TestListObjects_EmptyBucket(t *testing.T) {
	client := testClient(t)

	count := 0
	for obj := range client.ListObjects(context.Background(), testBucket) {
		require.NoError(t, obj.Err)
		count++
	}
	assert.Zero(t, count)
}

func TestListObjects_MissingBucket(t *testing.T) {
	client := testClient(t)

	var listErr error
	for obj := range client.ListObjects(context.Background(), "e2-exporter-no-such-bucket") {
		listErr = obj.Err
	}
	require.Error(t, listErr)
	assert.True(t, errors.Is(listErr, collector.ErrBucketNotFound))
}

func TestListBuckets(t *testing.T) {
	client := testClient(t)

	buckets, err := client.ListBuckets(context.Background())
	require.NoError(t, err)

	found := false
	for _, b := range buckets {
		if b.Name == testBucket {
			found = true
			assert.False(t, b.CreatedAt.IsZero())
		}
	}
	assert.True(t, found, "test bucket should be visible")
}

func TestCollectAgainstStore(t *testing.T) {
	client := testClient(t)

	putObject(t, "data/one", "aaaa")
	putObject(t, "data/two", "bb")

	outcome := collector.Collect(context.Background(), client, testBucket)
	require.True(t, outcome.Success(), "outcome error: %s", outcome.Err)
	assert.Equal(t, int64(6), outcome.Stats.TotalSize)
	assert.Equal(t, int64(2), outcome.Stats.ObjectCount)
	assert.False(t, outcome.Stats.LastModified.IsZero())
}
