package main

import (
	"fmt"
	"strings"
	"time"

	"todo_backend/internal/domain"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Strikethrough(true)
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// renderTodos formats todos one per line, numbered from 1 in display order.
func renderTodos(todos []domain.Todo, now time.Time) string {
	if len(todos) == 0 {
		return mutedStyle.Render("no todos") + "\n"
	}
	var b strings.Builder
	for i, t := range todos {
		b.WriteString(renderTodo(i+1, t, now))
		b.WriteByte('\n')
	}
	return b.String()
}

func renderTodo(pos int, t domain.Todo, now time.Time) string {
	box := "[ ]"
	if t.Completed {
		box = "[x]"
	}
	line := fmt.Sprintf("%2d. %s %s", pos, box, t.Title)

	switch {
	case t.Completed:
		line = doneStyle.Render(line)
	case t.IsOverdue(now):
		line = overdueStyle.Render(line)
	}

	var extra []string
	if t.DueDate != nil {
		extra = append(extra, "due "+t.DueDate.Local().Format("2006-01-02"))
	}
	if t.Description != "" {
		extra = append(extra, t.Description)
	}
	if len(extra) > 0 {
		line += "  " + mutedStyle.Render(strings.Join(extra, " · "))
	}
	return line + "  " + idStyle.Render(t.ID)
}
