package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"salez/internal/config"
)

const (
	maxRetries = 10
	retryDelay = 2 * time.Second
	pingTTL    = 5 * time.Second
)

// retry runs attempt until it succeeds, maxRetries is reached or ctx ends.
func retry(ctx context.Context, what string, attempt func(ctx context.Context) error) error {
	var err error
	for i := 1; i <= maxRetries; i++ {
		if err = attempt(ctx); err == nil {
			return nil
		}
		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", what, ctx.Err())
		}
	}
	return fmt.Errorf("%s: database unreachable after %d attempts: %w", what, maxRetries, err)
}

// NewPool opens the pgx pool used by the document store.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	var pool *pgxpool.Pool
	err = retry(ctx, "db pool", func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err != nil {
			return err
		}
		pctx, cancel := context.WithTimeout(ctx, pingTTL)
		defer cancel()
		if err := p.Ping(pctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// Open returns a database/sql handle over the pgx stdlib driver. Used for
// migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	var db *sql.DB
	err := retry(ctx, "db open", func(ctx context.Context) error {
		d, err := sql.Open("pgx", cfg.DSN())
		if err != nil {
			return err
		}
		pctx, cancel := context.WithTimeout(ctx, pingTTL)
		defer cancel()
		if err := d.PingContext(pctx); err != nil {
			_ = d.Close()
			return err
		}
		db = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}
