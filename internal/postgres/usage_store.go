package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/idrive-tools/e2-exporter/internal/api"
	"github.com/idrive-tools/e2-exporter/internal/collector"
)

// Migrate creates the usage history schema if it does not exist.
// The schema is a single append-only table, so there is no versioned
// migration tracking.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS bucket_usage (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			bucket_name TEXT NOT NULL,
			size_bytes BIGINT NOT NULL,
			object_count BIGINT NOT NULL,
			last_modified TIMESTAMPTZ,
			scrape_duration_ms BIGINT NOT NULL,
			scraped_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("create bucket_usage table: %w", err)
	}

	if _, err := pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS bucket_usage_bucket_scraped_idx
		ON bucket_usage (bucket_name, scraped_at DESC)
	`); err != nil {
		return fmt.Errorf("create bucket_usage index: %w", err)
	}
	return nil
}

// UsageStore records and queries bucket usage history. It implements
// collector.UsageRecorder and api.UsageStore.
type UsageStore struct {
	pool *pgxpool.Pool
}

// NewUsageStore creates a UsageStore on the given pool.
func NewUsageStore(pool *pgxpool.Pool) *UsageStore {
	return &UsageStore{pool: pool}
}

// RecordUsage appends one row for a successful bucket collection.
func (s *UsageStore) RecordUsage(ctx context.Context, stats collector.BucketStats) error {
	var lastModified *time.Time
	if !stats.LastModified.IsZero() {
		lastModified = &stats.LastModified
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO bucket_usage (bucket_name, size_bytes, object_count, last_modified, scrape_duration_ms)
		VALUES ($1, $2, $3, $4, $5)
	`, stats.Bucket, stats.TotalSize, stats.ObjectCount, lastModified, stats.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert bucket usage: %w", err)
	}
	return nil
}

// ListUsage returns the most recent rows for a bucket, newest first.
// Returns an empty slice (never nil) when no rows match.
func (s *UsageStore) ListUsage(ctx context.Context, bucket string, limit int) ([]api.UsageEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT bucket_name, size_bytes, object_count, last_modified, scraped_at
		FROM bucket_usage
		WHERE bucket_name = $1
		ORDER BY scraped_at DESC, id DESC
		LIMIT $2
	`, bucket, limit)
	if err != nil {
		return nil, fmt.Errorf("query bucket usage: %w", err)
	}
	defer rows.Close()

	entries := make([]api.UsageEntry, 0)
	for rows.Next() {
		var e api.UsageEntry
		if err := rows.Scan(&e.Bucket, &e.SizeBytes, &e.ObjectCount, &e.LastModified, &e.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scan bucket usage row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
