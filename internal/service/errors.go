package service

import (
	"errors"

	"todo-lifecycle/internal/status"
)

// Expected, user-facing outcomes. Handlers map these onto 4xx responses and
// they are never logged as failures.
var (
	ErrNotFound          = errors.New("todo not found")
	ErrImmutable         = errors.New("todo is past due and can no longer be changed")
	ErrInvalidTransition = status.ErrInvalidTransition
	ErrInvalidInput      = errors.New("invalid input")
)

// errTooManyConflicts is returned when a mutation kept losing version races.
var errTooManyConflicts = errors.New("too many concurrent updates")

// IsExpected reports whether err is one of the user-facing sentinels.
func IsExpected(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrImmutable) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidInput)
}
