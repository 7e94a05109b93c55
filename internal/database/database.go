// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

// Package database wires the MySQL connection pool and the user
// repository on top of sqlx.
package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // mysql driver
	"github.com/jmoiron/sqlx"

	"github.com/kteeth/kteeth/internal/config"
	"github.com/kteeth/kteeth/internal/logging"
	"github.com/kteeth/kteeth/internal/metrics"
)

// DB wraps the sqlx pool together with the pool limits the health
// endpoint reports.
type DB struct {
	pool        *sqlx.DB
	maxPoolSize int
	minIdle     int
}

// Connect opens the MySQL pool and verifies connectivity with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	pool, err := sqlx.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pool.SetMaxOpenConns(cfg.MaxPoolSize)
	pool.SetMaxIdleConns(cfg.MinIdle)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnTimeout)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logging.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Int("max_pool_size", cfg.MaxPoolSize).
		Msg("database connected")

	return &DB{
		pool:        pool,
		maxPoolSize: cfg.MaxPoolSize,
		minIdle:     cfg.MinIdle,
	}, nil
}

// Pool returns the underlying sqlx pool.
func (db *DB) Pool() *sqlx.DB { return db.pool }

// Close closes the pool.
func (db *DB) Close() error { return db.pool.Close() }

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.PingContext(ctx)
}

// PoolStats is the connection-pool snapshot served by /health.
type PoolStats struct {
	ActiveConnections         int   `json:"activeConnections"`
	IdleConnections           int   `json:"idleConnections"`
	TotalConnections          int   `json:"totalConnections"`
	ThreadsAwaitingConnection int64 `json:"threadsAwaitingConnection"`
	MaxPoolSize               int   `json:"maxPoolSize"`
	MinIdle                   int   `json:"minIdle"`
}

// Stats snapshots the pool and pushes the same numbers to Prometheus.
func (db *DB) Stats() PoolStats {
	s := db.pool.Stats()
	stats := PoolStats{
		ActiveConnections:         s.InUse,
		IdleConnections:           s.Idle,
		TotalConnections:          s.OpenConnections,
		ThreadsAwaitingConnection: s.WaitCount,
		MaxPoolSize:               db.maxPoolSize,
		MinIdle:                   db.minIdle,
	}

	metrics.RecordPoolStats(stats.ActiveConnections, stats.IdleConnections,
		stats.TotalConnections, stats.ThreadsAwaitingConnection)
	return stats
}

// observe records a repository query duration.
func observe(operation string, start time.Time) {
	metrics.UserQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
