// Package status decides the effective status of a todo item and which
// status changes are legal. Everything here is pure: the current time is
// always passed in by the caller.
package status

import (
	"errors"
	"fmt"
	"time"

	"todo-lifecycle/internal/models"
)

// ErrInvalidTransition is returned when a caller asks for a status it may not
// set, or for a move the state machine does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// IsTerminal reports whether no further change is accepted from s.
func IsTerminal(s models.Status) bool {
	return s == models.StatusPastDue
}

// IsEffectivelyPastDue reports whether an item with the given stored status
// and due time is past due at now. A due time equal to now is not yet due.
func IsEffectivelyPastDue(s models.Status, dueAt, now time.Time) bool {
	if s == models.StatusPastDue {
		return true
	}
	return s == models.StatusNotDone && dueAt.Before(now)
}

// Effective returns the status a reader should see at now. Done is never
// shown as past due.
func Effective(s models.Status, dueAt, now time.Time) models.Status {
	if IsEffectivelyPastDue(s, dueAt, now) {
		return models.StatusPastDue
	}
	return s
}

// EffectiveOf is Effective applied to a whole item.
func EffectiveOf(t models.Todo, now time.Time) models.Status {
	return Effective(t.Status, t.DueAt, now)
}

// NeedsCorrection reports whether the stored status lags behind the
// effective one, i.e. the item should be persisted as past due.
func NeedsCorrection(t models.Todo, now time.Time) bool {
	return t.Status == models.StatusNotDone && t.DueAt.Before(now)
}

// CanTransition reports whether from -> to is a legal move. Same-state moves
// between not done and done are allowed and simply re-stamp the item.
func CanTransition(from, to models.Status) bool {
	switch from {
	case models.StatusNotDone:
		return to == models.StatusNotDone || to == models.StatusDone || to == models.StatusPastDue
	case models.StatusDone:
		return to == models.StatusDone || to == models.StatusNotDone
	default:
		return false
	}
}

// ValidateRequested checks a status asked for by a caller. Only the engine
// produces past due.
func ValidateRequested(to models.Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if to == models.StatusPastDue {
		return fmt.Errorf("%w: %q is set automatically", ErrInvalidTransition, to)
	}
	return nil
}

// Parse maps a wire value onto a requestable status.
func Parse(raw string) (models.Status, error) {
	s := models.Status(raw)
	if err := ValidateRequested(s); err != nil {
		return "", err
	}
	return s, nil
}

// Apply moves t to the requested status and maintains DoneAt: stamped with now
// on done, cleared otherwise.
func Apply(t *models.Todo, to models.Status, now time.Time) error {
	if err := ValidateRequested(to); err != nil {
		return err
	}
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	if to == models.StatusDone {
		stamp := now
		t.DoneAt = &stamp
	} else {
		t.DoneAt = nil
	}
	return nil
}
