package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/papayapulse/pulse-api/config"
)

const (
	applicationName = "pulse-api"
	pingTimeout     = 5 * time.Second
)

// Connect opens the pgx pool that holds user profiles and prediction logs.
//
// Queries use the simple protocol with statement and description caches off, so
// the pool also works behind transaction-mode poolers (PgBouncer/PgCat), where
// server-side prepared statements do not survive between transactions:
//
//	"prepared statement stmtcache_* does not exist"
func Connect(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, errors.New("database config is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.BuildDSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	conn := poolCfg.ConnConfig
	conn.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	conn.StatementCacheCapacity = 0
	conn.DescriptionCacheCapacity = 0
	conn.RuntimeParams["application_name"] = applicationName

	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database %s:%s/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}
	return pool, nil
}
