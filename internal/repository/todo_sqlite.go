package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"todo_backend/internal/domain"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteTodoRepository is a single-node store backed by a sqlite file.
// Timestamps are kept as RFC3339Nano text.
type SQLiteTodoRepository struct {
	db *sql.DB
}

// OpenSQLite opens path and makes sure the todos table exists.
func OpenSQLite(ctx context.Context, path string) (*SQLiteTodoRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single connection: keeps ":memory:" databases alive and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	r := &SQLiteTodoRepository{db: db}
	if err := r.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteTodoRepository) init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS todos (
			id          TEXT NOT NULL PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			due_date    TEXT NULL,
			completed   INTEGER NOT NULL DEFAULT 0,
			sort_order  REAL NOT NULL DEFAULT 0,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS todos_by_order ON todos (sort_order)`,
		`CREATE INDEX IF NOT EXISTS todos_by_completed ON todos (completed)`,
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return nil
}

func (r *SQLiteTodoRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteTodoRepository) Insert(ctx context.Context, t domain.Todo) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO todos (id, title, description, due_date, completed, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, t.Title, t.Description, formatTime(t.DueDate), t.Completed, t.Order,
		t.CreatedAt.UTC().Format(time.RFC3339Nano), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("insert todo: %w", err)
	}
	return id, nil
}

func (r *SQLiteTodoRepository) Get(ctx context.Context, id string) (*domain.Todo, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, due_date, completed, sort_order, created_at, updated_at
		 FROM todos WHERE id = ?`, id)
	t, err := scanSQLiteTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get todo: %w", err)
	}
	return t, nil
}

func (r *SQLiteTodoRepository) Patch(ctx context.Context, id string, p domain.TodoPatch) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE todos SET
			title       = COALESCE(?, title),
			description = COALESCE(?, description),
			due_date    = CASE WHEN ? THEN ? ELSE due_date END,
			completed   = COALESCE(?, completed),
			sort_order  = COALESCE(?, sort_order),
			updated_at  = COALESCE(?, updated_at)
		WHERE id = ?`,
		p.Title, p.Description, p.DueDate.Set, formatTime(p.DueDate.Time),
		p.Completed, p.Order, formatTime(p.UpdatedAt), id,
	)
	if err != nil {
		return fmt.Errorf("patch todo: %w", err)
	}
	return nil
}

func (r *SQLiteTodoRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}

func (r *SQLiteTodoRepository) ScanAll(ctx context.Context) ([]domain.Todo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, description, due_date, completed, sort_order, created_at, updated_at
		 FROM todos ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("scan todos: %w", err)
	}
	defer rows.Close()

	res := make([]domain.Todo, 0)
	for rows.Next() {
		t, err := scanSQLiteTodo(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *t)
	}
	return res, rows.Err()
}

func (r *SQLiteTodoRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTodo(row rowScanner) (*domain.Todo, error) {
	var (
		t         domain.Todo
		due       sql.NullString
		createdAt string
		updatedAt sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &due, &t.Completed, &t.Order, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if t.DueDate, err = parseNullTime(due); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseNullTime(updatedAt); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &t, nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w", s.String, err)
	}
	return &t, nil
}
