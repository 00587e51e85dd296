// Package service composes the status engine and the record store into the
// todo operations exposed over HTTP and the command queue.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"todo-lifecycle/internal/models"
	"todo-lifecycle/internal/repository"
	"todo-lifecycle/internal/status"
	"todo-lifecycle/pkg/logger"
)

// List cache keys.
const (
	ListKeyAll  = "all"
	ListKeyOpen = "open"
)

// ListCache caches stored records for the list endpoint. Implementations must
// be safe for concurrent use; a nil ListCache disables caching.
type ListCache interface {
	GetList(ctx context.Context, key string) ([]models.Todo, bool)
	SetList(ctx context.Context, key string, todos []models.Todo)
	Invalidate(ctx context.Context)
}

// TodoService implements the todo operations.
type TodoService struct {
	store repository.Store
	cache ListCache
	now   func() time.Time
	group singleflight.Group

	// cacheMu orders list cache fills against invalidations. gen counts
	// invalidations; a load only fills the cache if gen is unchanged.
	cacheMu sync.Mutex
	gen     uint64
}

type Option func(*TodoService)

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(s *TodoService) { s.now = now }
}

func WithCache(c ListCache) Option {
	return func(s *TodoService) { s.cache = c }
}

func NewTodoService(store repository.Store, opts ...Option) *TodoService {
	s := &TodoService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new not-done item. The returned item carries its effective
// status, so one created with an elapsed due time reads as past due.
func (s *TodoService) Create(ctx context.Context, description string, dueAt time.Time) (models.Todo, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return models.Todo{}, fmt.Errorf("%w: description must not be empty", ErrInvalidInput)
	}
	if dueAt.IsZero() {
		return models.Todo{}, fmt.Errorf("%w: due time is required", ErrInvalidInput)
	}
	now := s.now()
	created, err := s.store.Create(ctx, models.Todo{
		Description: description,
		Status:      models.StatusNotDone,
		CreatedAt:   now,
		DueAt:       dueAt.UTC(),
	})
	if err != nil {
		return models.Todo{}, fmt.Errorf("create todo: %w", err)
	}
	s.invalidate(ctx)
	logger.Info(ctx, "Todo created", "id", created.ID, "due_at", created.DueAt)
	created.Status = status.EffectiveOf(created, now)
	return created, nil
}

// GetByID returns one item with its effective status, persisting a pending
// past-due correction on the way.
func (s *TodoService) GetByID(ctx context.Context, id int64) (models.Todo, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return models.Todo{}, err
	}
	out, corrected := s.correct(ctx, t, s.now())
	if corrected {
		s.invalidate(ctx)
	}
	return out, nil
}

// List returns not-done items, or every item when includeAll is set. Items
// that turned past due since they were stored are corrected and returned as
// past due.
func (s *TodoService) List(ctx context.Context, includeAll bool) ([]models.Todo, error) {
	stored, err := s.loadList(ctx, includeAll)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]models.Todo, 0, len(stored))
	anyCorrected := false
	for _, t := range stored {
		view, corrected := s.correct(ctx, t, now)
		anyCorrected = anyCorrected || corrected
		out = append(out, view)
	}
	if anyCorrected {
		s.invalidate(ctx)
	}
	return out, nil
}

func (s *TodoService) UpdateDescription(ctx context.Context, id int64, description string) (models.Todo, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return models.Todo{}, fmt.Errorf("%w: description must not be empty", ErrInvalidInput)
	}
	return s.mutate(ctx, id, func(t *models.Todo, _ time.Time) error {
		t.Description = description
		return nil
	})
}

// UpdateStatus moves an item to not done or done. Past due can never be
// requested and is rejected before the item is loaded.
func (s *TodoService) UpdateStatus(ctx context.Context, id int64, to models.Status) (models.Todo, error) {
	if err := status.ValidateRequested(to); err != nil {
		return models.Todo{}, err
	}
	saved, err := s.mutate(ctx, id, func(t *models.Todo, now time.Time) error {
		return status.Apply(t, to, now)
	})
	if err != nil {
		return models.Todo{}, err
	}
	logger.Info(ctx, "Todo status updated", "id", id, "status", saved.Status)
	return saved, nil
}

func (s *TodoService) MarkDone(ctx context.Context, id int64) (models.Todo, error) {
	return s.UpdateStatus(ctx, id, models.StatusDone)
}

func (s *TodoService) MarkNotDone(ctx context.Context, id int64) (models.Todo, error) {
	return s.UpdateStatus(ctx, id, models.StatusNotDone)
}

// SweepPastDue moves every not-done item whose due time has elapsed to past
// due in one conditional bulk update and returns how many changed.
func (s *TodoService) SweepPastDue(ctx context.Context) (int64, error) {
	n, err := s.store.BulkTransition(ctx, models.StatusNotDone, models.StatusPastDue, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep past due: %w", err)
	}
	if n > 0 {
		s.invalidate(ctx)
	}
	return n, nil
}

// Ping checks the backing store.
func (s *TodoService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *TodoService) load(ctx context.Context, id int64) (models.Todo, error) {
	t, err := s.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Todo{}, ErrNotFound
	}
	if err != nil {
		return models.Todo{}, fmt.Errorf("load todo %d: %w", id, err)
	}
	return t, nil
}

// correct persists a pending past-due transition for t and returns t with
// its effective status. A failed write is logged; the reader still sees the
// effective status. When the conditional write matches nothing, t was stale
// and the stored record is used instead.
func (s *TodoService) correct(ctx context.Context, t models.Todo, now time.Time) (models.Todo, bool) {
	corrected := false
	if status.NeedsCorrection(t, now) {
		ok, err := s.store.Transition(ctx, t.ID, models.StatusNotDone, models.StatusPastDue, now)
		switch {
		case err != nil:
			logger.Warn(ctx, "Persist past-due correction on read failed", "id", t.ID, "error", err)
		case ok:
			t.Version++
			t.Status = models.StatusPastDue
			corrected = true
		default:
			fresh, err := s.store.Get(ctx, t.ID)
			if err != nil {
				logger.Warn(ctx, "Reload after stale correction failed", "id", t.ID, "error", err)
				break
			}
			t = fresh
		}
	}
	t.Status = status.EffectiveOf(t, now)
	return t, corrected
}

func (s *TodoService) loadList(ctx context.Context, includeAll bool) ([]models.Todo, error) {
	key := ListKeyOpen
	if includeAll {
		key = ListKeyAll
	}
	if s.cache != nil {
		if todos, ok := s.cache.GetList(ctx, key); ok {
			return todos, nil
		}
	}
	// Shared by every caller waiting on key, so one caller's cancellation
	// must not fail the others.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key, func() (any, error) {
		gen := s.generation()
		var (
			todos []models.Todo
			err   error
		)
		if includeAll {
			todos, err = s.store.ScanAll(loadCtx)
		} else {
			todos, err = s.store.ScanByStatus(loadCtx, models.StatusNotDone)
		}
		if err != nil {
			return nil, fmt.Errorf("list todos: %w", err)
		}
		s.fill(loadCtx, key, todos, gen)
		return todos, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Todo), nil
}

func (s *TodoService) generation() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.gen
}

// fill caches todos under key unless a write invalidated the cache after the
// load that produced them started.
func (s *TodoService) fill(ctx context.Context, key string, todos []models.Todo, gen uint64) {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.gen != gen {
		logger.Debug(ctx, "List changed during load, not caching", "key", key)
		return
	}
	s.cache.SetList(ctx, key, todos)
}

func (s *TodoService) invalidate(ctx context.Context) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gen++
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
