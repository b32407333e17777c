package domain

import (
	"fmt"
	"strings"
	"time"
)

type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusActive    StatusFilter = "active"
	StatusCompleted StatusFilter = "completed"
)

// ParseStatusFilter accepts all, active or completed. Empty means all.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusActive:
		return StatusActive, nil
	case StatusCompleted:
		return StatusCompleted, nil
	}
	return "", fmt.Errorf("%w: unknown status filter %q", ErrValidation, s)
}

// Search keeps todos whose title or description contains q, ignoring case.
// A blank query returns the input unchanged.
func Search(todos []Todo, q string) []Todo {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return todos
	}
	out := make([]Todo, 0, len(todos))
	for _, t := range todos {
		if strings.Contains(strings.ToLower(t.Title), q) ||
			strings.Contains(strings.ToLower(t.Description), q) {
			out = append(out, t)
		}
	}
	return out
}

// FilterStatus keeps todos matching f.
func FilterStatus(todos []Todo, f StatusFilter) []Todo {
	if f == "" || f == StatusAll {
		return todos
	}
	want := f == StatusCompleted
	out := make([]Todo, 0, len(todos))
	for _, t := range todos {
		if t.Completed == want {
			out = append(out, t)
		}
	}
	return out
}

// Overdue keeps open todos whose due date is before now.
func Overdue(todos []Todo, now time.Time) []Todo {
	out := make([]Todo, 0)
	for _, t := range todos {
		if t.IsOverdue(now) {
			out = append(out, t)
		}
	}
	return out
}

// View applies the search query and then the status filter.
func View(todos []Todo, q string, f StatusFilter) []Todo {
	return FilterStatus(Search(todos, q), f)
}
