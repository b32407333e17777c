package repository

import (
	"context"
	"errors"
	"fmt"

	"todo_backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const todoColumns = `id::text, title, description, due_date, completed, sort_order, created_at, updated_at`

// TodoRepository stores todos in Postgres. See migrations for the schema.
type TodoRepository struct {
	db *pgxpool.Pool
}

func NewTodoRepository(db *pgxpool.Pool) *TodoRepository {
	return &TodoRepository{db: db}
}

func (r *TodoRepository) Insert(ctx context.Context, t domain.Todo) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err := r.db.Exec(ctx,
		`INSERT INTO todos (id, title, description, due_date, completed, sort_order, created_at, updated_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8)`,
		id, t.Title, t.Description, t.DueDate, t.Completed, t.Order, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert todo: %w", err)
	}
	return id, nil
}

func (r *TodoRepository) Get(ctx context.Context, id string) (*domain.Todo, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = $1::uuid`, id)
	t, err := scanTodo(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get todo: %w", err)
	}
	return t, nil
}

// Patch applies only the set fields. A missing row is not an error.
func (r *TodoRepository) Patch(ctx context.Context, id string, p domain.TodoPatch) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		UPDATE todos SET
			title       = COALESCE($2::text, title),
			description = COALESCE($3::text, description),
			due_date    = CASE WHEN $4::boolean THEN $5::timestamptz ELSE due_date END,
			completed   = COALESCE($6::boolean, completed),
			sort_order  = COALESCE($7::double precision, sort_order),
			updated_at  = COALESCE($8::timestamptz, updated_at)
		WHERE id = $1::uuid`,
		id, p.Title, p.Description, p.DueDate.Set, p.DueDate.Time, p.Completed, p.Order, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("patch todo: %w", err)
	}
	return nil
}

func (r *TodoRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM todos WHERE id = $1::uuid`, id); err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}

func (r *TodoRepository) ScanAll(ctx context.Context) ([]domain.Todo, error) {
	rows, err := r.db.Query(ctx, `SELECT `+todoColumns+` FROM todos ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("scan todos: %w", err)
	}
	defer rows.Close()

	res := make([]domain.Todo, 0)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *t)
	}
	return res, rows.Err()
}

func (r *TodoRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func scanTodo(row pgx.Row) (*domain.Todo, error) {
	var t domain.Todo
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.DueDate, &t.Completed, &t.Order, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
