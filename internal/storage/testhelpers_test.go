package storage_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/idrive-tools/e2-exporter/internal/storage"
)

const testBucket = "e2-exporter-test"

// testClient returns a Client connected to a test MinIO instance.
// It skips the test if S3_ENDPOINT is not set (so plain `go test` stays
// fast). The test bucket is created if missing and emptied before return.
func testClient(t *testing.T) *storage.Client {
	t.Helper()

	endpoint := os.Getenv("S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("S3_ENDPOINT not set, skipping integration test")
	}
	accessKey := os.Getenv("S3_ACCESS_KEY")
	if accessKey == "" {
		t.Skip("S3_ACCESS_KEY not set, skipping integration test")
	}
	secretKey := os.Getenv("S3_SECRET_KEY")
	if secretKey == "" {
		t.Skip("S3_SECRET_KEY not set, skipping integration test")
	}

	client, err := storage.NewClient(storage.Config{
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		UseSSL:    false,
	})
	if err != nil {
		t.Fatalf("create storage client: %v", err)
	}

	resetBucket(t, endpoint, accessKey, secretKey)
	return client
}

// resetBucket creates the test bucket if needed and removes all objects.
func resetBucket(t *testing.T, endpoint, accessKey, secretKey string) {
	t.Helper()

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Fatalf("create minio client for cleanup: %v", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, testBucket)
	if err != nil {
		t.Fatalf("check test bucket: %v", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, testBucket, minio.MakeBucketOptions{}); err != nil {
			t.Fatalf("create test bucket: %v", err)
		}
		return
	}

	objects := client.ListObjects(ctx, testBucket, minio.ListObjectsOptions{Recursive: true})
	for obj := range objects {
		if obj.Err != nil {
			t.Fatalf("list objects for cleanup: %v", obj.Err)
		}
		if err := client.RemoveObject(ctx, testBucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			t.Fatalf("remove object %s: %v", obj.Key, err)
		}
	}
}

// putObject writes a small object into the test bucket.
func putObject(t *testing.T, key, body string) {
	t.Helper()

	client, err := minio.New(os.Getenv("S3_ENDPOINT"), &minio.Options{
		Creds:  credentials.NewStaticV4(os.Getenv("S3_ACCESS_KEY"), os.Getenv("S3_SECRET_KEY"), ""),
		Secure: false,
	})
	if err != nil {
		t.Fatalf("create minio client for seeding: %v", err)
	}

	_, err = client.PutObject(context.Background(), testBucket, key,
		strings.NewReader(body), int64(len(body)), minio.PutObjectOptions{})
	if err != nil {
		t.Fatalf("put object %s: %v", key, err)
	}
}
