package pgx

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lborres/starterp/core"
)

//go:embed schema.sql
var schema string

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

type Adapter struct {
	pool *pgxpool.Pool
}

var _ core.AuthStorage = (*Adapter)(nil)

func New(pool *pgxpool.Pool) *Adapter {
	return &Adapter{
		pool: pool,
	}
}

// Connect opens a pool for dsn and checks it is reachable.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return pool, nil
}

// Migrate creates the tables used by both the auth and app storages.
// Every statement is idempotent.
func (a *Adapter) Migrate(ctx context.Context) error {
	if _, err := a.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (a *Adapter) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
