package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"todo-lifecycle/internal/models"
	"todo-lifecycle/internal/repository"
	"todo-lifecycle/internal/status"
	"todo-lifecycle/pkg/logger"
)

const maxMutationAttempts = 5

// errStale means the record changed between load and the correction write.
var errStale = errors.New("stale todo")

// admit decides whether t may be mutated at now. A not-done item whose due
// time has elapsed is persisted as past due first, and the mutation is still
// rejected when that write fails.
func (s *TodoService) admit(ctx context.Context, t models.Todo, now time.Time) error {
	if status.IsTerminal(t.Status) {
		return ErrImmutable
	}
	if !status.NeedsCorrection(t, now) {
		return nil
	}
	ok, err := s.store.Transition(ctx, t.ID, models.StatusNotDone, models.StatusPastDue, now)
	if err != nil {
		logger.Error(ctx, "Persist past-due correction failed", "id", t.ID, "error", err)
		return ErrImmutable
	}
	if !ok {
		return errStale
	}
	s.invalidate(ctx)
	logger.Debug(ctx, "Todo corrected to past due", "id", t.ID, "due_at", t.DueAt)
	return ErrImmutable
}

// mutate runs change against the current version of id behind the
// immutability check and persists the result with a versioned put. Lost
// races reload the record and start over. The saved item is returned with its
// effective status, so reopening an overdue done item reads as past due.
func (s *TodoService) mutate(ctx context.Context, id int64, change func(t *models.Todo, now time.Time) error) (models.Todo, error) {
	for attempt := 1; attempt <= maxMutationAttempts; attempt++ {
		cur, err := s.load(ctx, id)
		if err != nil {
			return models.Todo{}, err
		}
		now := s.now()
		if err := s.admit(ctx, cur, now); err != nil {
			if errors.Is(err, errStale) {
				logger.Debug(ctx, "Todo changed during correction, reloading", "id", id, "attempt", attempt)
				continue
			}
			return models.Todo{}, err
		}

		next := cur
		if err := change(&next, now); err != nil {
			return models.Todo{}, err
		}
		saved, err := s.store.Put(ctx, next)
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			logger.Debug(ctx, "Todo version conflict, reloading", "id", id, "attempt", attempt)
			continue
		case errors.Is(err, repository.ErrNotFound):
			return models.Todo{}, ErrNotFound
		case err != nil:
			return models.Todo{}, fmt.Errorf("save todo %d: %w", id, err)
		}
		out, _ := s.correct(ctx, saved, now)
		s.invalidate(ctx)
		return out, nil
	}
	return models.Todo{}, fmt.Errorf("update todo %d: %w", id, errTooManyConflicts)
}
