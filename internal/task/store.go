package task

import (
	"context"
	"sort"
	"sync"

	"videocreator/internal/domain"
)

// Store is the task registry injected into the Manager. Update runs the
// mutator under the store's serialization guarantee, so the manager's
// per-task writer and concurrent readers never observe a half-applied
// transition.
type Store interface {
	Create(ctx context.Context, t *domain.Task) error
	Get(ctx context.Context, id string) (*domain.Task, error)
	Update(ctx context.Context, id string, mutate func(*domain.Task) error) (*domain.Task, error)
	List(ctx context.Context) ([]*domain.Task, error)
}

// MemoryStore keeps the registry in a mutex-guarded map. It is the default
// backend; a fresh instance per test gives full isolation.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*domain.Task)}
}

func (s *MemoryStore) Create(ctx context.Context, t *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, mutate func(*domain.Task) error) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := mutate(t); err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
