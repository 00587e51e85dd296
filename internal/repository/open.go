package repository

import (
	"context"

	"todo-lifecycle/internal/config"
	"todo-lifecycle/internal/database"
	"todo-lifecycle/pkg/logger"
)

// Open builds the store selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := database.Open(ctx, cfg.DatabaseURL, cfg.DBPoolSize)
		if err != nil {
			return nil, err
		}
		if err := database.MigrateOrCreateSchema(ctx, db); err != nil {
			return nil, err
		}
		return NewPostgresStore(db), nil
	case config.DriverSQLite:
		db, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "SQLite store opened", "path", cfg.SQLitePath)
		return NewGormStore(db), nil
	default:
		logger.Warn(ctx, "Using in-memory store; data is lost on exit")
		return NewMemoryStore(), nil
	}
}
