// Package sqladapter implements the Measurement Agent's backend: a
// Postgres-wire store (the reference deployment runs CockroachDB, which
// speaks the same protocol) accessed through pgx/v5's pgxpool, with pool
// construction grounded on the pack's pgxdriver.NewPool shape.
package sqladapter

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/argofloat/gateway/internal/domain"
	"github.com/argofloat/gateway/internal/resilience"
)

// Adapter queries measurement rows and descriptive statistics.
type Adapter struct {
	pool *pgxpool.Pool
}

// Config configures the connection pool, mirroring the pack's pool-sizing
// defaults (25 max / 5 min connections, 5m idle, 1h lifetime).
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
	MaxConnLifetime time.Duration
}

func defaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxConns:        25,
		MinConns:        5,
		MaxConnIdleTime: 5 * time.Minute,
		MaxConnLifetime: time.Hour,
	}
}

// Open builds and pings a connection pool for dsn, using pool defaults
// unless overridden.
func Open(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqladapter: DSN is required")
	}
	def := defaultConfig(cfg.DSN)
	if cfg.MaxConns == 0 {
		cfg.MaxConns = def.MaxConns
	}
	if cfg.MinConns == 0 {
		cfg.MinConns = def.MinConns
	}
	if cfg.MaxConnIdleTime == 0 {
		cfg.MaxConnIdleTime = def.MaxConnIdleTime
	}
	if cfg.MaxConnLifetime == 0 {
		cfg.MaxConnLifetime = def.MaxConnLifetime
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqladapter: parse dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("sqladapter: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("sqladapter: ping: %w", err)
	}
	return &Adapter{pool: pool}, nil
}

// Close releases the connection pool.
func (a *Adapter) Close() { a.pool.Close() }

// Query runs the Measurement Agent's SQL query for intent, returning raw
// rows plus pre-computed per-parameter statistics.
func (a *Adapter) Query(ctx context.Context, intent domain.Intent) (*domain.MeasurementResult, error) {
	sql, args := buildQuery(intent)

	var measurements []domain.Measurement
	err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
		measurements = nil
		rows, err := a.pool.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var m domain.Measurement
			if err := rows.Scan(&m.PlatformID, &m.Time, &m.Lat, &m.Lon, &m.Pressure, &m.Temperature, &m.Salinity); err != nil {
				return err
			}
			measurements = append(measurements, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("sqladapter: query: %w", err)
	}

	result := &domain.MeasurementResult{
		Rows:  measurements,
		Stats: computeStats(measurements, intent.Parameters),
	}
	if len(measurements) > 0 {
		result.TimeRange = timeRange(measurements)
		result.Bounds = spatialCoverage(measurements)
	}
	return result, nil
}

// Execute runs an arbitrary, LLM-drafted SQL statement. This escape hatch
// exists because the Measurement Agent's LLM-drafted-SQL path needs query
// shapes buildQuery cannot express; callers are responsible for
// parameterizing args safely.
func (a *Adapter) Execute(ctx context.Context, sql string, args ...any) (*domain.MeasurementResult, error) {
	rows, err := a.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("sqladapter: execute: %w", err)
	}
	defer rows.Close()

	var measurements []domain.Measurement
	for rows.Next() {
		var m domain.Measurement
		if err := rows.Scan(&m.PlatformID, &m.Time, &m.Lat, &m.Lon, &m.Pressure, &m.Temperature, &m.Salinity); err != nil {
			return nil, fmt.Errorf("sqladapter: scan row: %w", err)
		}
		measurements = append(measurements, m)
	}
	return &domain.MeasurementResult{Rows: measurements}, rows.Err()
}
