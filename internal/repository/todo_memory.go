package repository

import (
	"context"
	"sync"

	"todo_backend/internal/domain"

	"github.com/google/uuid"
)

// MemoryTodoRepository keeps todos in process memory. ScanAll returns records
// in insertion order.
type MemoryTodoRepository struct {
	mu    sync.RWMutex
	byID  map[string]*domain.Todo
	order []string
}

func NewMemoryTodoRepository() *MemoryTodoRepository {
	return &MemoryTodoRepository{byID: make(map[string]*domain.Todo)}
}

func (r *MemoryTodoRepository) Insert(ctx context.Context, t domain.Todo) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	t.ID = uuid.NewString()
	stored := cloneTodo(t)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[t.ID] = &stored
	r.order = append(r.order, t.ID)
	return t.ID, nil
}

func (r *MemoryTodoRepository) Get(ctx context.Context, id string) (*domain.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneTodo(*t)
	return &out, nil
}

func (r *MemoryTodoRepository) Patch(ctx context.Context, id string, p domain.TodoPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return nil
	}
	next := cloneTodo(*t)
	p.Apply(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	*t = cloneTodo(next)
	return nil
}

func (r *MemoryTodoRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return nil
	}
	delete(r.byID, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryTodoRepository) ScanAll(ctx context.Context) ([]domain.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Todo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, cloneTodo(*r.byID[id]))
	}
	return out, nil
}

func (r *MemoryTodoRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// cloneTodo copies the time pointers so callers never share state with the map.
func cloneTodo(t domain.Todo) domain.Todo {
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	if t.UpdatedAt != nil {
		u := *t.UpdatedAt
		t.UpdatedAt = &u
	}
	return t
}
