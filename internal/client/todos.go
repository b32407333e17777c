package client

import (
	"context"
	"fmt"
	"slices"
	"time"

	"todo_backend/internal/domain"
	"todo_backend/internal/dto"
	"todo_backend/internal/rpc"
)

// AddTodo creates a todo and returns its id.
func (c *Client) AddTodo(ctx context.Context, req dto.CreateTodoRequest) (string, error) {
	var id string
	if err := c.call(ctx, rpc.OpAddTodo, req, &id); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) UpdateTodo(ctx context.Context, id string, patch dto.TodoPatch) error {
	return c.call(ctx, rpc.OpUpdateTodo, dto.UpdateTodoRequest{ID: id, Patch: patch}, nil)
}

func (c *Client) SetCompleted(ctx context.Context, id string, completed bool) error {
	return c.UpdateTodo(ctx, id, dto.TodoPatch{Completed: &completed})
}

func (c *Client) DeleteTodo(ctx context.Context, id string) error {
	return c.call(ctx, rpc.OpDeleteTodo, dto.DeleteTodoRequest{ID: id}, nil)
}

func (c *Client) ReorderTodos(ctx context.Context, items []domain.ReorderItem) error {
	return c.call(ctx, rpc.OpReorderTodos, dto.NewReorderTodosRequest(items), nil)
}

// FetchTodos asks the server for the list directly, bypassing the live
// snapshot.
func (c *Client) FetchTodos(ctx context.Context) ([]domain.Todo, error) {
	var list []domain.Todo
	if err := c.call(ctx, rpc.OpGetTodos, struct{}{}, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Move drags the item at position from to position to within list and
// renumbers every item's order to its new index.
func (c *Client) Move(ctx context.Context, list []domain.Todo, from, to int) error {
	items, err := MoveItems(list, from, to)
	if err != nil {
		return err
	}
	return c.ReorderTodos(ctx, items)
}

// MoveItems computes the reorder batch for moving list[from] to index to.
func MoveItems(list []domain.Todo, from, to int) ([]domain.ReorderItem, error) {
	if from < 0 || from >= len(list) || to < 0 || to >= len(list) {
		return nil, fmt.Errorf("%w: move %d -> %d out of range for %d items", domain.ErrValidation, from, to, len(list))
	}
	moved := slices.Clone(list)
	t := moved[from]
	moved = slices.Delete(moved, from, from+1)
	moved = slices.Insert(moved, to, t)

	items := make([]domain.ReorderItem, len(moved))
	for i, t := range moved {
		items[i] = domain.ReorderItem{ID: t.ID, Order: float64(i)}
	}
	return items, nil
}

// Search filters the current list by a case-insensitive substring of title
// or description.
func (c *Client) Search(q string) []domain.Todo {
	return domain.Search(c.Todos(), q)
}

func (c *Client) ByStatus(f domain.StatusFilter) []domain.Todo {
	return domain.FilterStatus(c.Todos(), f)
}

// View applies search and status filters together.
func (c *Client) View(q string, f domain.StatusFilter) []domain.Todo {
	return domain.View(c.Todos(), q, f)
}

func (c *Client) Overdue(now time.Time) []domain.Todo {
	return domain.Overdue(c.Todos(), now)
}
