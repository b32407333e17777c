package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"todo_backend/internal/domain"
	"todo_backend/internal/dto"
	"todo_backend/internal/rpc"

	"github.com/gin-gonic/gin"
)

// ListTodos returns every todo ordered by order. Optional ?q= and ?status=
// narrow the result the same way the client data layer does.
func (h *Handler) ListTodos(c *gin.Context) {
	status, err := domain.ParseStatusFilter(c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	list, err := h.Todos.ListTodos(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListTodosResponse{Items: domain.View(list, c.Query("q"), status)})
}

func (h *Handler) OverdueTodos(c *gin.Context) {
	list, err := h.Todos.Overdue(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListTodosResponse{Items: list})
}

func (h *Handler) GetTodo(c *gin.Context) {
	t, err := h.Todos.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) CreateTodo(c *gin.Context) {
	var req dto.CreateTodoRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := h.Todos.Create(c.Request.Context(), req.ToDomain())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.AddTodoResponse{ID: id})
}

// UpdateTodo applies a partial patch. Unknown ids succeed without effect.
func (h *Handler) UpdateTodo(c *gin.Context) {
	var patch dto.TodoPatch
	if !bindJSON(c, &patch) {
		return
	}
	ok, err := h.Todos.Update(c.Request.Context(), c.Param("id"), patch.ToDomain())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: ok})
}

func (h *Handler) DeleteTodo(c *gin.Context) {
	ok, err := h.Todos.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: ok})
}

func (h *Handler) ReorderTodos(c *gin.Context) {
	var req dto.ReorderTodosRequest
	if !bindJSON(c, &req) {
		return
	}
	ok, err := h.Todos.Reorder(c.Request.Context(), req.ToDomain())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: ok})
}

// CallFunction dispatches POST /functions/:name to the named operation.
// The response is {"value": ...} or {"error": {"code", "message"}}.
func (h *Handler) CallFunction(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": rpc.Error{Code: rpc.CodeBadRequest, Message: err.Error()}})
		return
	}

	v, err := h.RPC.Call(c.Request.Context(), c.Param("name"), json.RawMessage(body))
	if err != nil {
		rerr := rpc.ToError(err)
		c.JSON(rpcStatus(rerr.Code), gin.H{"error": rerr})
		if rerr.Code == rpc.CodeInternal {
			_ = c.Error(err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": v})
}

func rpcStatus(code string) int {
	switch code {
	case rpc.CodeValidation, rpc.CodeBadRequest:
		return http.StatusBadRequest
	case rpc.CodeUnknownFunction:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
