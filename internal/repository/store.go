package repository

import (
	"context"

	"todo_backend/internal/domain"
)

// TodoStore is the record store shared by the query and mutation services.
//
// Patch and Delete on a missing id succeed without effect so callers can race
// with concurrent deletes. Get reports a missing id as domain.ErrNotFound.
// ScanAll makes no ordering promise.
type TodoStore interface {
	Insert(ctx context.Context, t domain.Todo) (string, error)
	Get(ctx context.Context, id string) (*domain.Todo, error)
	Patch(ctx context.Context, id string, p domain.TodoPatch) error
	Delete(ctx context.Context, id string) error
	ScanAll(ctx context.Context) ([]domain.Todo, error)
	Ping(ctx context.Context) error
}
