package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"todo_backend/internal/domain"
)

// DueDate parses dueDate from JSON as RFC3339 or date-only ("2006-01-02").
// Date-only is stored as start of that day in UTC. It remembers whether the
// field was present at all so patches can tell "unchanged" from "cleared".
type DueDate struct {
	set bool
	t   *time.Time
}

// NewDueDate returns a DueDate that is present in the payload.
// A nil t encodes as null.
func NewDueDate(t *time.Time) DueDate {
	return DueDate{set: true, t: t}
}

var dueDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// ParseDueDate parses s with the accepted layouts. Blank means no due date.
func ParseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dueDateLayouts {
		parsed, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if layout == "2006-01-02" {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		}
		return &parsed, nil
	}
	return nil, fmt.Errorf("%w: dueDate must be a date (YYYY-MM-DD) or RFC3339 datetime", domain.ErrValidation)
}

func (d *DueDate) UnmarshalJSON(data []byte) error {
	d.set = true
	d.t = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: dueDate must be a string or null", domain.ErrValidation)
	}
	t, err := ParseDueDate(raw)
	if err != nil {
		return err
	}
	d.t = t
	return nil
}

func (d DueDate) MarshalJSON() ([]byte, error) {
	if d.t == nil {
		return []byte("null"), nil
	}
	return json.Marshal(d.t.UTC().Format(time.RFC3339Nano))
}

// IsSet reports whether the field appeared in the payload.
func (d DueDate) IsSet() bool { return d.set }

// Ptr returns *time.Time for use in service/domain.
func (d DueDate) Ptr() *time.Time { return d.t }

// CreateTodoRequest is the addTodo payload.
type CreateTodoRequest struct {
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	DueDate     DueDate  `json:"dueDate"`
	Order       *float64 `json:"order,omitempty"`
}

func (r CreateTodoRequest) ToDomain() domain.NewTodo {
	in := domain.NewTodo{
		Title:   r.Title,
		DueDate: r.DueDate.Ptr(),
		Order:   r.Order,
	}
	if r.Description != nil {
		in.Description = *r.Description
	}
	return in
}

// TodoPatch is the partial update body. UpdatedAt is accepted for
// compatibility and ignored: the server always stamps it.
type TodoPatch struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	DueDate     DueDate  `json:"dueDate"`
	Completed   *bool    `json:"completed,omitempty"`
	Order       *float64 `json:"order,omitempty"`
	UpdatedAt   *string  `json:"updatedAt,omitempty"`
}

// MarshalJSON only emits the fields that are set, so an unset dueDate is
// absent rather than null.
func (p TodoPatch) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 5)
	if p.Title != nil {
		m["title"] = *p.Title
	}
	if p.Description != nil {
		m["description"] = *p.Description
	}
	if p.DueDate.IsSet() {
		m["dueDate"] = p.DueDate
	}
	if p.Completed != nil {
		m["completed"] = *p.Completed
	}
	if p.Order != nil {
		m["order"] = *p.Order
	}
	return json.Marshal(m)
}

func (p TodoPatch) ToDomain() domain.TodoPatch {
	return domain.TodoPatch{
		Title:       p.Title,
		Description: p.Description,
		DueDate:     domain.OptionalTime{Set: p.DueDate.IsSet(), Time: p.DueDate.Ptr()},
		Completed:   p.Completed,
		Order:       p.Order,
	}
}

type UpdateTodoRequest struct {
	ID    string    `json:"id"`
	Patch TodoPatch `json:"patch"`
}

type DeleteTodoRequest struct {
	ID string `json:"id"`
}

// ReorderItem is one entry of a reorder request. Both fields are required;
// a missing order is not read as zero.
type ReorderItem struct {
	ID    string   `json:"id" binding:"required"`
	Order *float64 `json:"order" binding:"required"`
}

type ReorderTodosRequest struct {
	Items []ReorderItem `json:"items" binding:"required,dive"`
}

func NewReorderTodosRequest(items []domain.ReorderItem) ReorderTodosRequest {
	req := ReorderTodosRequest{Items: make([]ReorderItem, len(items))}
	for i, it := range items {
		order := it.Order
		req.Items[i] = ReorderItem{ID: it.ID, Order: &order}
	}
	return req
}

// ToDomain assumes the request passed binding validation.
func (r ReorderTodosRequest) ToDomain() []domain.ReorderItem {
	items := make([]domain.ReorderItem, 0, len(r.Items))
	for _, it := range r.Items {
		var order float64
		if it.Order != nil {
			order = *it.Order
		}
		items = append(items, domain.ReorderItem{ID: it.ID, Order: order})
	}
	return items
}

type AddTodoResponse struct {
	ID string `json:"id"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type ListTodosResponse struct {
	Items []domain.Todo `json:"items"`
}
