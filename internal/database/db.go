package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"todo-lifecycle/pkg/logger"
)

var (
	pool    *sql.DB
	poolErr error
	once    sync.Once
)

// Open returns the process-wide Postgres pool, opening and pinging it on
// first use.
func Open(ctx context.Context, url string, poolSize int) (*sql.DB, error) {
	once.Do(func() {
		if url == "" {
			poolErr = fmt.Errorf("DATABASE_URL is not set")
			return
		}
		db, err := sql.Open("postgres", url)
		if err != nil {
			poolErr = fmt.Errorf("open database: %w", err)
			return
		}
		if poolSize <= 0 {
			poolSize = 10
		}
		db.SetMaxOpenConns(poolSize)
		db.SetMaxIdleConns(poolSize / 2)
		db.SetConnMaxIdleTime(5 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			poolErr = fmt.Errorf("ping database: %w", err)
			return
		}
		pool = db
		logger.Info(ctx, "Database pool initialized", "max_open", poolSize)
	})
	return pool, poolErr
}

const schema = `
CREATE TABLE IF NOT EXISTS todos (
	id          BIGSERIAL PRIMARY KEY,
	description TEXT        NOT NULL,
	status      TEXT        NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	due_at      TIMESTAMPTZ NOT NULL,
	done_at     TIMESTAMPTZ NULL,
	version     BIGINT      NOT NULL DEFAULT 1,
	CONSTRAINT todos_status_check CHECK (status IN ('not done', 'done', 'past due')),
	CONSTRAINT todos_done_at_check CHECK ((status = 'done') = (done_at IS NOT NULL))
);
CREATE INDEX IF NOT EXISTS todos_status_due_idx ON todos (status, due_at);
`

// MigrateOrCreateSchema creates the todos table and its sweep index if they
// do not exist.
func MigrateOrCreateSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	logger.Info(ctx, "Schema ensured", "table", "todos")
	return nil
}
