// Package rpc dispatches the named todo operations (getTodos, addTodo, ...)
// for both the HTTP functions endpoint and the WebSocket mutation path.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"todo_backend/internal/domain"
	"todo_backend/internal/dto"
	"todo_backend/internal/service"

	"github.com/gin-gonic/gin/binding"
)

const (
	OpGetTodos     = "getTodos"
	OpAddTodo      = "addTodo"
	OpUpdateTodo   = "updateTodo"
	OpDeleteTodo   = "deleteTodo"
	OpReorderTodos = "reorderTodos"
)

const (
	CodeValidation      = "validation"
	CodeBadRequest      = "bad_request"
	CodeUnknownFunction = "unknown_function"
	CodeInternal        = "internal"
)

// Error is the wire form of a failed call.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

var errBadRequest = errors.New("bad request")

type Dispatcher struct {
	svc *service.TodoService
}

func NewDispatcher(svc *service.TodoService) *Dispatcher {
	return &Dispatcher{svc: svc}
}

// Call runs the operation called name with JSON args.
func (d *Dispatcher) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	switch name {
	case OpGetTodos:
		return d.svc.ListTodos(ctx)

	case OpAddTodo:
		var req dto.CreateTodoRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		return d.svc.Create(ctx, req.ToDomain())

	case OpUpdateTodo:
		var req dto.UpdateTodoRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		return d.svc.Update(ctx, req.ID, req.Patch.ToDomain())

	case OpDeleteTodo:
		var req dto.DeleteTodoRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		return d.svc.Delete(ctx, req.ID)

	case OpReorderTodos:
		var req dto.ReorderTodosRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		return d.svc.Reorder(ctx, req.ToDomain())
	}
	return nil, &Error{Code: CodeUnknownFunction, Message: fmt.Sprintf("unknown function %q", name)}
}

func decodeArgs(args json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, dst); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	// Same binding rules as ShouldBindJSON on the REST routes.
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// ToError converts any error returned by Call into its wire form.
func ToError(err error) *Error {
	var rpcErr *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &rpcErr):
		return rpcErr
	case errors.Is(err, domain.ErrValidation):
		return &Error{Code: CodeValidation, Message: err.Error()}
	case errors.Is(err, errBadRequest):
		return &Error{Code: CodeBadRequest, Message: err.Error()}
	}
	return &Error{Code: CodeInternal, Message: "internal error"}
}
