package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fitdesk/internal/config"
)

const applicationName = "fitdesk-auth"

// NewPostgresPool opens the pool and waits for one successful ping.
func NewPostgresPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// PoolConfig maps the database section onto pgxpool settings. Idle
// connections never exceed the pool size.
func PoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpen > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpen)
	}
	minConns := int32(cfg.MaxIdle)
	if minConns > poolConfig.MaxConns {
		minConns = poolConfig.MaxConns
	}
	if minConns > 0 {
		poolConfig.MinConns = minConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	poolConfig.HealthCheckPeriod = 30 * time.Second

	runtime := poolConfig.ConnConfig.RuntimeParams
	if _, set := runtime["application_name"]; !set {
		runtime["application_name"] = applicationName
	}
	return poolConfig, nil
}
