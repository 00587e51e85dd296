// Package repository holds the record stores for todo items. Every write a
// store accepts is conditional so that request handlers and the past-due
// sweep can share a store without locking around it.
package repository

import (
	"context"
	"errors"
	"time"

	"todo-lifecycle/internal/models"
)

var (
	// ErrNotFound is returned when no record exists for an id.
	ErrNotFound = errors.New("todo not found")
	// ErrVersionConflict is returned by Put when the stored version no longer
	// matches the one the caller read.
	ErrVersionConflict = errors.New("todo version conflict")
)

// Store is durable keyed storage for todo items.
type Store interface {
	Get(ctx context.Context, id int64) (models.Todo, error)
	ScanAll(ctx context.Context) ([]models.Todo, error)
	ScanByStatus(ctx context.Context, status models.Status) ([]models.Todo, error)
	// Create assigns the id and version 1.
	Create(ctx context.Context, t models.Todo) (models.Todo, error)
	// Put overwrites every field except CreatedAt, provided t.Version matches
	// the stored version. The returned item carries the new version.
	Put(ctx context.Context, t models.Todo) (models.Todo, error)
	// Transition changes only the status of one record, and only if it is
	// currently in from with a due time before before. It reports false when
	// nothing matched, including when the id does not exist.
	Transition(ctx context.Context, id int64, from, to models.Status, before time.Time) (bool, error)
	// BulkTransition is Transition over every matching record.
	BulkTransition(ctx context.Context, from, to models.Status, before time.Time) (int64, error)
	Ping(ctx context.Context) error
}
