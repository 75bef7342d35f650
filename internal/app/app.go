// Package app wires storage, the engine and the projector from a config.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"taskline/internal/config"
	"taskline/internal/db"
	"taskline/internal/engine"
	"taskline/internal/events"
	"taskline/internal/logging"
	"taskline/internal/metrics"
	"taskline/internal/migrate"
	"taskline/internal/projection"
	"taskline/internal/repo"
)

type App struct {
	Config    *config.Config
	DB        *sql.DB
	Store     events.Store
	Repo      repo.Repo
	Engine    engine.Engine
	Projector *projection.Projector
	Metrics   *metrics.Metrics
}

// Open opens the database, applies migrations and builds the runtime.
func Open(ctx context.Context, workspace string, cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	dbCfg := db.Config{
		Workspace: workspace,
		Driver:    cfg.Storage.Driver,
		DSN:       cfg.Storage.DSN,
		Memory:    cfg.Storage.Driver == "memory",
	}
	conn, err := db.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	dialect := dbCfg.Dialect()
	if err := migrate.Migrate(conn, dialect); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	m, err := metrics.New()
	if err != nil {
		conn.Close()
		return nil, err
	}

	var store events.Store = events.SQLStore{DB: conn, Dialect: dialect}
	if dbCfg.Memory {
		mem, err := events.NewMemStore()
		if err != nil {
			conn.Close()
			return nil, err
		}
		store = mem
	}

	r := repo.Repo{DB: conn, Dialect: dialect}
	p := projection.New(store, r)
	p.Name = cfg.Projector.Name
	p.Interval = cfg.Projector.Interval
	p.Batch = cfg.Projector.BatchSize
	p.Metrics = m

	e := engine.New(store, r)
	e.MaxRetries = cfg.Engine.MaxRetries
	e.BcryptCost = cfg.Engine.BcryptCost
	e.Metrics = m
	e.Notify = p.Notify

	logging.DefaultLogger().Debugw("runtime ready", "driver", dialect, "memory", dbCfg.Memory)
	return &App{
		Config:    cfg,
		DB:        conn,
		Store:     store,
		Repo:      r,
		Engine:    e,
		Projector: p,
		Metrics:   m,
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.DB.Close()
}
