package ws

const (
	// client - server
	MsgMutation = "mutation"
	MsgRefresh  = "refresh"
	MsgPing     = "ping"

	// server - client
	MsgReady  = "ready"
	MsgTodos  = "todos"
	MsgResult = "result"
	MsgError  = "error"
	MsgPong   = "pong"
)
