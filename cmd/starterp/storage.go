package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lborres/starterp"
	"github.com/lborres/starterp/adapters/memory"
	pgxadapter "github.com/lborres/starterp/adapters/pgx"
	"github.com/lborres/starterp/adapters/sqldb"
	"github.com/lborres/starterp/internal/config"
	"github.com/lborres/starterp/internal/logging"
)

type storage struct {
	auth  starterp.AuthStorage
	app   starterp.AppStorage
	pg    *pgxadapter.Adapter
	close func()
}

// openStorage connects to Postgres, or returns the in-memory store when the
// config asks for it. Auth tables go through pgx; roles, events and
// subscriptions go through database/sql on the same pool.
func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	if cfg.InMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		db := memory.New()
		return &storage{auth: db, app: db, close: func() {}}, nil
	}

	pool, err := pgxadapter.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	pg := pgxadapter.New(pool)
	app := sqldb.FromPool(pool)
	return &storage{
		auth: pg,
		app:  app,
		pg:   pg,
		close: func() {
			_ = app.Close()
			pool.Close()
		},
	}, nil
}

func loadConfig(path string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Format), nil
}
