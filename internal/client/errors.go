package client

import (
	"errors"

	"todo_backend/internal/domain"
	"todo_backend/internal/rpc"
)

// ErrTransport wraps every failure of the underlying connection.
var ErrTransport = errors.New("transport error")

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("client closed")

// RemoteError is a failure reported by the server for a call.
type RemoteError struct {
	Op      string
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Op + ": " + e.Code + ": " + e.Message
}

// Unwrap lets callers test validation failures with errors.Is(err, domain.ErrValidation).
func (e *RemoteError) Unwrap() error {
	if e.Code == rpc.CodeValidation {
		return domain.ErrValidation
	}
	return nil
}
