package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxConn is the slice of pgxpool.Pool the store uses. Narrowed to an
// interface so the result mapping can be driven by a fake in tests.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Postgres persists event records in a single table. Create-if-absent maps
// onto INSERT ... ON CONFLICT DO NOTHING, which Postgres guarantees to be
// atomic across concurrent writers.
type Postgres struct {
	pool pgxConn
}

// ConnectPostgres establishes a connection pool, verifies it with a ping and
// returns the store.
func ConnectPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgres wraps an existing pool. Used by tests and by callers that
// manage the pool themselves.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) CreateIfAbsent(ctx context.Context, key string) (CreateResult, error) {
	ct, err := s.pool.Exec(ctx, `
		INSERT INTO taskgate.webhook_events(key, status)
		VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING`,
		key, StatusProcessing,
	)
	if err != nil {
		return ResultError, fmt.Errorf("insert webhook event: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ResultConflict, nil
	}
	return ResultCreated, nil
}

func (s *Postgres) MarkCompleted(ctx context.Context, key string) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE taskgate.webhook_events
		SET status=$2
		WHERE key=$1`,
		key, StatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("update webhook event: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `
		DELETE FROM taskgate.webhook_events WHERE key=$1`, key,
	); err != nil {
		return fmt.Errorf("delete webhook event: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, key string) (*Record, error) {
	rec := &Record{Key: key}
	err := s.pool.QueryRow(ctx, `
		SELECT status, created_at FROM taskgate.webhook_events WHERE key=$1`, key,
	).Scan(&rec.Status, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select webhook event: %w", err)
	}
	return rec, nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() {
	s.pool.Close()
}
