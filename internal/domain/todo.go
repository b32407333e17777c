package domain

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("todo not found")
)

// Todo is the only persisted record type.
type Todo struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	DueDate     *time.Time `json:"dueDate" db:"due_date"`
	Completed   bool       `json:"completed" db:"completed"`
	Order       float64    `json:"order" db:"sort_order"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   *time.Time `json:"updatedAt" db:"updated_at"`
}

// Validate checks the fields every stored record must satisfy.
func (t Todo) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if math.IsNaN(t.Order) || math.IsInf(t.Order, 0) {
		return fmt.Errorf("%w: order must be a finite number", ErrValidation)
	}
	return nil
}

// IsOverdue reports whether the todo is still open past its due date.
// Todos without a due date are never overdue.
func (t Todo) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && !t.Completed && t.DueDate.Before(now)
}

// NewTodo holds the caller-supplied fields for a create.
type NewTodo struct {
	Title       string
	Description string
	DueDate     *time.Time
	Order       *float64
}

// OptionalTime distinguishes "leave unchanged" (Set == false) from
// "clear" (Set == true, Time == nil).
type OptionalTime struct {
	Set  bool
	Time *time.Time
}

// TodoPatch is a partial update. Nil fields are left untouched.
type TodoPatch struct {
	Title       *string
	Description *string
	DueDate     OptionalTime
	Completed   *bool
	Order       *float64
	UpdatedAt   *time.Time
}

// Validate rejects patches that would break the record invariants.
func (p TodoPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrValidation)
	}
	if p.Order != nil && (math.IsNaN(*p.Order) || math.IsInf(*p.Order, 0)) {
		return fmt.Errorf("%w: order must be a finite number", ErrValidation)
	}
	return nil
}

// Apply writes the set fields of p onto t.
func (p TodoPatch) Apply(t *Todo) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.DueDate.Set {
		t.DueDate = p.DueDate.Time
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
	if p.UpdatedAt != nil {
		t.UpdatedAt = p.UpdatedAt
	}
}

// ReorderItem moves a single todo to a new order value.
type ReorderItem struct {
	ID    string  `json:"id"`
	Order float64 `json:"order"`
}

// SortByOrder sorts todos ascending by Order in place.
// Equal keys keep their relative input order.
func SortByOrder(todos []Todo) {
	slices.SortStableFunc(todos, func(a, b Todo) int {
		return cmp.Compare(a.Order, b.Order)
	})
}

// NowMillis is the default order for new todos so they sort last.
func NowMillis(now time.Time) float64 {
	return float64(now.UnixMilli())
}
