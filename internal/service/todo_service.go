package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"todo_backend/internal/domain"
	"todo_backend/internal/logger"
	"todo_backend/internal/repository"

	"golang.org/x/sync/singleflight"
)

// Notifier is told after every successful mutation so live queries can be
// recomputed and pushed.
type Notifier interface {
	TodosChanged(ctx context.Context)
}

// ListCache holds the sorted todo list between writes. cache.TodoCache
// implements it over Redis.
type ListCache interface {
	GetList(ctx context.Context) ([]domain.Todo, error)
	SetList(ctx context.Context, list []domain.Todo) error
	Invalidate(ctx context.Context) error
}

// TodoService is the query and mutation surface over a TodoStore.
type TodoService struct {
	store repository.TodoStore
	cache ListCache
	sf    singleflight.Group
	now   func() time.Time

	// gen counts writes. A list read from the store is cached only if no
	// write happened while it was in flight.
	gen atomic.Uint64

	mu        sync.RWMutex
	notifiers []Notifier
}

// NewTodoService creates a TodoService. If c is nil, caching is disabled.
func NewTodoService(store repository.TodoStore, c ListCache) *TodoService {
	return &TodoService{
		store: store,
		cache: c,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for timestamps and default order.
func (s *TodoService) SetClock(now func() time.Time) {
	s.now = now
}

// AddNotifier registers n for change notifications.
func (s *TodoService) AddNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifiers = append(s.notifiers, n)
}

// Ping checks the underlying store.
func (s *TodoService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ListTodos returns every todo sorted ascending by order. With a cache
// configured, concurrent reads share one store scan.
func (s *TodoService) ListTodos(ctx context.Context) ([]domain.Todo, error) {
	if s.cache == nil {
		return s.listFromStore(ctx)
	}
	v, err, _ := s.sf.Do("list", func() (interface{}, error) {
		if list, err := s.cache.GetList(ctx); err == nil && list != nil {
			return list, nil
		} else if err != nil {
			logger.WithContext(ctx).Warn("todo cache read failed", "error", err)
		}
		gen := s.gen.Load()
		list, err := s.listFromStore(ctx)
		if err != nil {
			return nil, err
		}
		s.storeList(ctx, gen, list)
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	// singleflight shares the slice between callers.
	shared := v.([]domain.Todo)
	out := make([]domain.Todo, len(shared))
	copy(out, shared)
	return out, nil
}

// LiveTodos reads the sorted list straight from the store, bypassing the
// cache and any read already in flight. Live query pushes use it so a
// snapshot always reflects every write that notified it.
func (s *TodoService) LiveTodos(ctx context.Context) ([]domain.Todo, error) {
	gen := s.gen.Load()
	list, err := s.listFromStore(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.storeList(ctx, gen, list)
	}
	return list, nil
}

// storeList caches list if it was read at write generation gen and no write
// has happened since.
func (s *TodoService) storeList(ctx context.Context, gen uint64, list []domain.Todo) {
	if s.gen.Load() != gen {
		return
	}
	log := logger.WithContext(ctx)
	if err := s.cache.SetList(ctx, list); err != nil {
		log.Warn("todo cache write failed", "error", err)
		return
	}
	// A write may have invalidated between the check and the set.
	if s.gen.Load() != gen {
		if err := s.cache.Invalidate(ctx); err != nil {
			log.Warn("todo cache invalidate failed", "error", err)
		}
	}
}

// Overdue returns open todos whose due date is before now, in display order.
func (s *TodoService) Overdue(ctx context.Context) ([]domain.Todo, error) {
	list, err := s.ListTodos(ctx)
	if err != nil {
		return nil, err
	}
	return domain.Overdue(list, s.now()), nil
}

// Get returns a single todo or domain.ErrNotFound.
func (s *TodoService) Get(ctx context.Context, id string) (*domain.Todo, error) {
	return s.store.Get(ctx, id)
}

// Create inserts a new todo and returns its id.
func (s *TodoService) Create(ctx context.Context, in domain.NewTodo) (string, error) {
	now := s.now()
	t := domain.Todo{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		DueDate:     in.DueDate,
		Completed:   false,
		Order:       domain.NowMillis(now),
		CreatedAt:   now,
		UpdatedAt:   nil,
	}
	if in.Order != nil {
		t.Order = *in.Order
	}
	if err := t.Validate(); err != nil {
		mutations.WithLabelValues("addTodo", outcomeInvalid).Inc()
		return "", err
	}

	id, err := s.store.Insert(ctx, t)
	if err != nil {
		mutations.WithLabelValues("addTodo", outcomeFor(err)).Inc()
		return "", err
	}
	mutations.WithLabelValues("addTodo", outcomeOK).Inc()
	logger.WithContext(ctx).Info("todo created", "id", id, "order", t.Order)
	s.changed(ctx)
	return id, nil
}

// Update applies a partial update and stamps updatedAt. A missing id is a
// silent success.
func (s *TodoService) Update(ctx context.Context, id string, p domain.TodoPatch) (bool, error) {
	if id == "" {
		mutations.WithLabelValues("updateTodo", outcomeInvalid).Inc()
		return false, fmt.Errorf("%w: id is required", domain.ErrValidation)
	}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		p.Title = &title
	}
	if p.Description != nil {
		desc := strings.TrimSpace(*p.Description)
		p.Description = &desc
	}
	if err := p.Validate(); err != nil {
		mutations.WithLabelValues("updateTodo", outcomeInvalid).Inc()
		return false, err
	}
	now := s.now()
	p.UpdatedAt = &now

	if err := s.store.Patch(ctx, id, p); err != nil {
		mutations.WithLabelValues("updateTodo", outcomeFor(err)).Inc()
		return false, err
	}
	mutations.WithLabelValues("updateTodo", outcomeOK).Inc()
	logger.WithContext(ctx).Info("todo updated", "id", id)
	s.changed(ctx)
	return true, nil
}

// Delete removes a todo. Deleting a missing id succeeds.
func (s *TodoService) Delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		mutations.WithLabelValues("deleteTodo", outcomeInvalid).Inc()
		return false, fmt.Errorf("%w: id is required", domain.ErrValidation)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		mutations.WithLabelValues("deleteTodo", outcomeFor(err)).Inc()
		return false, err
	}
	mutations.WithLabelValues("deleteTodo", outcomeOK).Inc()
	logger.WithContext(ctx).Info("todo deleted", "id", id)
	s.changed(ctx)
	return true, nil
}

// Reorder sets the order of each listed todo, one entry at a time.
//
// The batch is not a transaction: every entry is an independent get-then-patch,
// ids that no longer exist are skipped, and entries applied before a failing
// one stay applied. Store failures on individual entries do not stop the rest
// of the batch; they are joined into the returned error.
func (s *TodoService) Reorder(ctx context.Context, items []domain.ReorderItem) (bool, error) {
	for i, it := range items {
		if it.ID == "" {
			mutations.WithLabelValues("reorderTodos", outcomeInvalid).Inc()
			return false, fmt.Errorf("%w: items[%d].id is required", domain.ErrValidation, i)
		}
		order := it.Order
		if err := (domain.TodoPatch{Order: &order}).Validate(); err != nil {
			mutations.WithLabelValues("reorderTodos", outcomeInvalid).Inc()
			return false, fmt.Errorf("items[%d]: %w", i, err)
		}
	}

	log := logger.WithContext(ctx)
	var (
		applied int
		errs    []error
	)
	for _, it := range items {
		if _, err := s.store.Get(ctx, it.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				reorderSkipped.Inc()
				log.Debug("reorder skipped missing todo", "id", it.ID)
				continue
			}
			errs = append(errs, fmt.Errorf("reorder %s: %w", it.ID, err))
			continue
		}
		order := it.Order
		now := s.now()
		if err := s.store.Patch(ctx, it.ID, domain.TodoPatch{Order: &order, UpdatedAt: &now}); err != nil {
			errs = append(errs, fmt.Errorf("reorder %s: %w", it.ID, err))
			continue
		}
		applied++
	}

	if applied > 0 {
		s.changed(ctx)
	}
	if len(errs) > 0 {
		mutations.WithLabelValues("reorderTodos", outcomeError).Inc()
		log.Error("reorder partially failed", "applied", applied, "failed", len(errs))
		return false, errors.Join(errs...)
	}
	mutations.WithLabelValues("reorderTodos", outcomeOK).Inc()
	log.Info("todos reordered", "requested", len(items), "applied", applied)
	return true, nil
}

// changed drops the cached list and wakes every notifier.
func (s *TodoService) changed(ctx context.Context) {
	s.gen.Add(1)
	if s.cache != nil {
		s.sf.Forget("list")
		if err := s.cache.Invalidate(ctx); err != nil {
			logger.WithContext(ctx).Warn("todo cache invalidate failed", "error", err)
		}
	}
	s.mu.RLock()
	notifiers := append([]Notifier(nil), s.notifiers...)
	s.mu.RUnlock()
	for _, n := range notifiers {
		n.TodosChanged(ctx)
	}
}
