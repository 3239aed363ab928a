// Package storage implements collector.StoreClient backed by MinIO /
// S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/idrive-tools/e2-exporter/internal/collector"
)

// Config holds connection settings for the object store.
type Config struct {
	Endpoint  string // host[:port], no scheme
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// Client wraps a minio client. Listing operations carry no per-call
// timeout — a full bucket listing may legitimately take minutes — so the
// only time bounds are the transport's dial and response-header timeouts.
type Client struct {
	mc *minio.Client
}

// NewClient connects to the given endpoint. The connection is lazy; a bad
// endpoint or credentials surface on the first listing call.
func NewClient(cfg Config) (*Client, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Client{mc: mc}, nil
}

// ListObjects streams every object in the bucket, recursively with no
// prefix filter. Pagination is handled inside the minio client; a listing
// failure is delivered as a final channel entry with Err set.
func (c *Client) ListObjects(ctx context.Context, bucket string) <-chan collector.ObjectInfo {
	out := make(chan collector.ObjectInfo)

	go func() {
		defer close(out)
		opts := minio.ListObjectsOptions{Recursive: true}
		for obj := range c.mc.ListObjects(ctx, bucket, opts) {
			if obj.Err != nil {
				out <- collector.ObjectInfo{Err: classifyListError(obj.Err, bucket)}
				return
			}
			out <- collector.ObjectInfo{
				Key:          obj.Key,
				Size:         obj.Size,
				LastModified: obj.LastModified,
			}
		}
	}()

	return out
}

// ListBuckets returns all buckets visible to the configured credentials.
func (c *Client) ListBuckets(ctx context.Context) ([]collector.BucketInfo, error) {
	infos, err := c.mc.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	buckets := make([]collector.BucketInfo, 0, len(infos))
	for _, b := range infos {
		buckets = append(buckets, collector.BucketInfo{Name: b.Name, CreatedAt: b.CreationDate})
	}
	return buckets, nil
}

// classifyListError maps a missing-bucket error response onto
// collector.ErrBucketNotFound; any other error passes through wrapped.
func classifyListError(err error, bucket string) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchBucket" {
		return fmt.Errorf("%w: %s", collector.ErrBucketNotFound, bucket)
	}
	return fmt.Errorf("list objects in %s: %w", bucket, err)
}
