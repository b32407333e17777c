package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"todo_backend/internal/client"
	"todo_backend/internal/domain"
	"todo_backend/internal/dto"

	"github.com/spf13/cobra"
)

// list
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List todos in display order",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var (
	listSearch  string
	listStatus  string
	listOverdue bool
)

// add
var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a todo",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

var (
	addDescription string
	addDue         string
	addOrder       float64
)

// done / undo
var doneCmd = &cobra.Command{
	Use:   "done <id>...",
	Short: "Mark todos as completed",
	Args:  cobra.MinimumNArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setCompleted(cmd, args, true) },
}

var undoCmd = &cobra.Command{
	Use:   "undo <id>...",
	Short: "Mark todos as not completed",
	Args:  cobra.MinimumNArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setCompleted(cmd, args, false) },
}

// edit
var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change fields of a todo",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

var (
	editTitle       string
	editDescription string
	editDue         string
	editClearDue    bool
)

// rm
var rmCmd = &cobra.Command{
	Use:   "rm <id>...",
	Short: "Delete todos",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRm,
}

// move
var moveCmd = &cobra.Command{
	Use:   "move <from> <to>",
	Short: "Move the todo at position <from> to position <to> (1-based, as shown by list)",
	Args:  cobra.ExactArgs(2),
	RunE:  runMove,
}

// watch
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the list every time it changes",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(listCmd, addCmd, doneCmd, undoCmd, editCmd, rmCmd, moveCmd, watchCmd)

	listCmd.Flags().StringVarP(&listSearch, "search", "s", "", "Only todos whose title or description contains this text")
	listCmd.Flags().StringVar(&listStatus, "status", "all", "Filter by status (all, active, completed)")
	listCmd.Flags().BoolVar(&listOverdue, "overdue", false, "Only open todos past their due date")

	addCmd.Flags().StringVarP(&addDescription, "description", "d", "", "Description")
	addCmd.Flags().StringVar(&addDue, "due", "", "Due date (YYYY-MM-DD or RFC3339)")
	addCmd.Flags().Float64Var(&addOrder, "order", 0, "Sort key (default: now, so it sorts last)")

	editCmd.Flags().StringVar(&editTitle, "title", "", "New title")
	editCmd.Flags().StringVarP(&editDescription, "description", "d", "", "New description")
	editCmd.Flags().StringVar(&editDue, "due", "", "New due date (YYYY-MM-DD or RFC3339)")
	editCmd.Flags().BoolVar(&editClearDue, "clear-due", false, "Remove the due date")

	moveCmd.Flags().StringVarP(&listSearch, "search", "s", "", "Positions refer to the list filtered by this text")
	moveCmd.Flags().StringVar(&listStatus, "status", "all", "Positions refer to the list filtered by status")
}

// visible returns the list as shown by "list" with the current filter flags.
func visible(c *client.Client) ([]domain.Todo, error) {
	status, err := domain.ParseStatusFilter(listStatus)
	if err != nil {
		return nil, err
	}
	return c.View(listSearch, status), nil
}

func runList(cmd *cobra.Command, args []string) error {
	c, _, done, err := connect(cmd)
	if err != nil {
		return err
	}
	defer done()

	todos, err := visible(c)
	if err != nil {
		return err
	}
	now := time.Now()
	if listOverdue {
		todos = domain.Overdue(todos, now)
	}
	fmt.Fprint(cmd.OutOrStdout(), renderTodos(todos, now))
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	req := dto.CreateTodoRequest{Title: args[0]}
	if cmd.Flags().Changed("description") {
		req.Description = &addDescription
	}
	if addDue != "" {
		due, err := dto.ParseDueDate(addDue)
		if err != nil {
			return err
		}
		req.DueDate = dto.NewDueDate(due)
	}
	if cmd.Flags().Changed("order") {
		req.Order = &addOrder
	}

	c, ctx, done, err := connect(cmd)
	if err != nil {
		return err
	}
	defer done()

	id, err := c.AddTodo(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func setCompleted(cmd *cobra.Command, ids []string, completed bool) error {
	c, ctx, done, err := connect(cmd)
	if err != nil {
		return err
	}
	defer done()

	for _, id := range ids {
		if err := c.SetCompleted(ctx, id, completed); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
	}
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	var patch dto.TodoPatch
	if cmd.Flags().Changed("title") {
		patch.Title = &editTitle
	}
	if cmd.Flags().Changed("description") {
		patch.Description = &editDescription
	}
	switch {
	case editClearDue && editDue != "":
		return fmt.Errorf("--due and --clear-due are mutually exclusive")
	case editClearDue:
		patch.DueDate = dto.NewDueDate(nil)
	case editDue != "":
		due, err := dto.ParseDueDate(editDue)
		if err != nil {
			return err
		}
		patch.DueDate = dto.NewDueDate(due)
	}
	if patch.Title == nil && patch.Description == nil && !patch.DueDate.IsSet() {
		return fmt.Errorf("nothing to change: pass --title, --description, --due or --clear-due")
	}

	c, ctx, done, err := connect(cmd)
	if err != nil {
		return err
	}
	defer done()
	return c.UpdateTodo(ctx, args[0], patch)
}

func runRm(cmd *cobra.Command, args []string) error {
	c, ctx, done, err := connect(cmd)
	if err != nil {
		return err
	}
	defer done()

	for _, id := range args {
		if err := c.DeleteTodo(ctx, id); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
	}
	return nil
}

func runMove(cmd *cobra.Command, args []string) error {
	from, err := parsePosition(args[0])
	if err != nil {
		return err
	}
	to, err := parsePosition(args[1])
	if err != nil {
		return err
	}

	c, ctx, done, err := connect(cmd)
	if err != nil {
		return err
	}
	defer done()

	todos, err := visible(c)
	if err != nil {
		return err
	}
	return c.Move(ctx, todos, from, to)
}

func parsePosition(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid position %q: want a number starting at 1", s)
	}
	return n - 1, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	c, err := client.Dial(ctx, serverURL, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	updates, cancel := c.Subscribe()
	defer cancel()

	out := cmd.OutOrStdout()
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return fmt.Errorf("connection closed")
			}
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("version %d · %s", snap.Version, time.Now().Format(time.TimeOnly))))
			fmt.Fprint(out, renderTodos(snap.Todos, time.Now()))
		}
	}
}
