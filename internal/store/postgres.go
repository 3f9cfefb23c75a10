package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS intake_documents (
	collection TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	fields     JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, key)
)`

const upsertSQL = `
INSERT INTO intake_documents (collection, key, fields, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (collection, key) DO UPDATE
SET fields = EXCLUDED.fields, updated_at = EXCLUDED.updated_at`

const selectSQL = `SELECT fields FROM intake_documents WHERE collection = $1 AND key = $2`

// Postgres stores every collection in one JSONB table keyed by
// (collection, key).
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// DialPostgres opens a pool for dsn and waits up to dialTimeout for it.
func DialPostgres(ctx context.Context, dsn string, dialTimeout time.Duration, logger *slog.Logger) (*Postgres, error) {
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	pc.MaxConns = 10
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.ConnConfig.RuntimeParams["application_name"] = "doc-intake"

	if dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("connected to database")
	return &Postgres{pool: pool}, nil
}

// EnsureSchema creates the backing table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Put upserts fields as JSONB.
func (p *Postgres) Put(ctx context.Context, collection, key string, fields map[string]string) error {
	if _, err := p.pool.Exec(ctx, upsertSQL, collection, key, clone(fields)); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, key, err)
	}
	return nil
}

// Get loads the JSONB value for key.
func (p *Postgres) Get(ctx context.Context, collection, key string) (map[string]string, error) {
	var fields map[string]string
	err := p.pool.QueryRow(ctx, selectSQL, collection, key).Scan(&fields)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select %s/%s: %w", collection, key, err)
	}
	return clone(fields), nil
}

// Health pings the database.
func (p *Postgres) Health(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
