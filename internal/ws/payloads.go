package ws

import (
	"encoding/json"

	"todo_backend/internal/domain"
	"todo_backend/internal/rpc"
)

// client → server
type ClientMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
}

// server → client
type TodosPayload struct {
	Type    string        `json:"type"`
	Version uint64        `json:"version"`
	Todos   []domain.Todo `json:"todos"`
}

type ResultPayload struct {
	Type      string     `json:"type"`
	RequestID string     `json:"request_id"`
	OK        bool       `json:"ok"`
	Value     any        `json:"value,omitempty"`
	Error     *rpc.Error `json:"error,omitempty"`
}

type ErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ServerMessage is the union of everything the server sends, for decoding
// on the client side.
type ServerMessage struct {
	Type      string          `json:"type"`
	Version   uint64          `json:"version,omitempty"`
	Todos     []domain.Todo   `json:"todos,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	OK        bool            `json:"ok,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
	Error     *rpc.Error      `json:"error,omitempty"`
	Message   string          `json:"message,omitempty"`
}
