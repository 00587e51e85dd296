package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"todo-lifecycle/internal/models"
)

// MemoryStore keeps records in a map guarded by one mutex.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]models.Todo
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[int64]models.Todo)}
}

func (s *MemoryStore) Get(_ context.Context, id int64) (models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[id]
	if !ok {
		return models.Todo{}, ErrNotFound
	}
	return clone(t), nil
}

func (s *MemoryStore) ScanAll(_ context.Context) ([]models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(func(models.Todo) bool { return true }), nil
}

func (s *MemoryStore) ScanByStatus(_ context.Context, status models.Status) ([]models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(func(t models.Todo) bool { return t.Status == status }), nil
}

func (s *MemoryStore) Create(_ context.Context, t models.Todo) (models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	t.Version = 1
	s.items[t.ID] = clone(t)
	return clone(t), nil
}

func (s *MemoryStore) Put(_ context.Context, t models.Todo) (models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[t.ID]
	if !ok {
		return models.Todo{}, ErrNotFound
	}
	if cur.Version != t.Version {
		return models.Todo{}, ErrVersionConflict
	}
	t.CreatedAt = cur.CreatedAt
	t.Version = cur.Version + 1
	s.items[t.ID] = clone(t)
	return clone(t), nil
}

func (s *MemoryStore) Transition(_ context.Context, id int64, from, to models.Status, before time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok || cur.Status != from || !cur.DueAt.Before(before) {
		return false, nil
	}
	cur.Status = to
	cur.Version++
	s.items[id] = cur
	return true, nil
}

func (s *MemoryStore) BulkTransition(_ context.Context, from, to models.Status, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, cur := range s.items {
		if cur.Status != from || !cur.DueAt.Before(before) {
			continue
		}
		cur.Status = to
		cur.Version++
		s.items[id] = cur
		n++
	}
	return n, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) collect(keep func(models.Todo) bool) []models.Todo {
	out := make([]models.Todo, 0, len(s.items))
	for _, t := range s.items {
		if keep(t) {
			out = append(out, clone(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func clone(t models.Todo) models.Todo {
	if t.DoneAt != nil {
		d := *t.DoneAt
		t.DoneAt = &d
	}
	return t
}
