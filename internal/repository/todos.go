package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"todo-lifecycle/internal/models"
)

const todoColumns = `id, description, status, created_at, due_at, done_at, version`

// PostgresStore is the Store backed by the todos table.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (models.Todo, error) {
	var (
		t      models.Todo
		status string
		doneAt sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.Description, &status, &t.CreatedAt, &t.DueAt, &doneAt, &t.Version); err != nil {
		return models.Todo{}, err
	}
	t.Status = models.Status(status)
	t.CreatedAt = t.CreatedAt.UTC()
	t.DueAt = t.DueAt.UTC()
	if doneAt.Valid {
		d := doneAt.Time.UTC()
		t.DoneAt = &d
	}
	return t, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (models.Todo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = $1`, id)
	t, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Todo{}, ErrNotFound
	}
	if err != nil {
		return models.Todo{}, fmt.Errorf("get todo %d: %w", id, err)
	}
	return t, nil
}

func (s *PostgresStore) ScanAll(ctx context.Context) ([]models.Todo, error) {
	return s.query(ctx, `SELECT `+todoColumns+` FROM todos ORDER BY id`)
}

func (s *PostgresStore) ScanByStatus(ctx context.Context, status models.Status) ([]models.Todo, error) {
	return s.query(ctx, `SELECT `+todoColumns+` FROM todos WHERE status = $1 ORDER BY id`, string(status))
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]models.Todo, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("scan todos: %w", err)
	}
	defer rows.Close()
	todos := []models.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo row: %w", err)
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, t models.Todo) (models.Todo, error) {
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO todos (description, status, created_at, due_at, done_at, version)
		 VALUES ($1, $2, $3, $4, $5, 1)
		 RETURNING `+todoColumns,
		t.Description, string(t.Status), t.CreatedAt, t.DueAt, nullTime(t.DoneAt))
	out, err := scanTodo(row)
	if err != nil {
		return models.Todo{}, fmt.Errorf("create todo: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Put(ctx context.Context, t models.Todo) (models.Todo, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE todos SET description = $1, status = $2, due_at = $3, done_at = $4, version = version + 1
		 WHERE id = $5 AND version = $6
		 RETURNING `+todoColumns,
		t.Description, string(t.Status), t.DueAt, nullTime(t.DoneAt), t.ID, t.Version)
	out, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.Get(ctx, t.ID); getErr != nil {
			return models.Todo{}, getErr
		}
		return models.Todo{}, ErrVersionConflict
	}
	if err != nil {
		return models.Todo{}, fmt.Errorf("put todo %d: %w", t.ID, err)
	}
	return out, nil
}

func (s *PostgresStore) Transition(ctx context.Context, id int64, from, to models.Status, before time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE todos SET status = $1, version = version + 1
		 WHERE id = $2 AND status = $3 AND due_at < $4`,
		string(to), id, string(from), before)
	if err != nil {
		return false, fmt.Errorf("transition todo %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition todo %d: %w", id, err)
	}
	return n == 1, nil
}

func (s *PostgresStore) BulkTransition(ctx context.Context, from, to models.Status, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE todos SET status = $1, version = version + 1
		 WHERE status = $2 AND due_at < $3`,
		string(to), string(from), before)
	if err != nil {
		return 0, fmt.Errorf("bulk transition: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
