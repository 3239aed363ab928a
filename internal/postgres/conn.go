// Package postgres persists per-pass bucket usage history. It is entirely
// optional: the exporter runs without it when DATABASE_URL is unset.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Default pgxpool connection limits. The exporter writes one row per
// bucket per pass, so the pool stays small. Overridable via:
//   - DB_MAX_CONNS: maximum connections in the pool (default 4)
//   - DB_MIN_CONNS: minimum idle connections kept alive (default 1)
const (
	defaultMaxConns        = 4
	defaultMinConns        = 1
	defaultMaxConnLifetime = time.Hour
)

// NewPool creates a pgxpool.Pool from a DATABASE_URL connection string
// and verifies connectivity with a ping.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	config.MaxConns = int32(envInt("DB_MAX_CONNS", defaultMaxConns))
	config.MinConns = int32(envInt("DB_MIN_CONNS", defaultMinConns))
	config.MaxConnLifetime = defaultMaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("pgxpool configured", "max_conns", config.MaxConns, "min_conns", config.MinConns)
	return pool, nil
}

// envInt reads an integer env var, returning defaultVal if unset or invalid.
func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
		return defaultVal
	}
	return n
}
