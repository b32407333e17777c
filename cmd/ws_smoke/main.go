package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"todo_backend/internal/logger"
	"todo_backend/internal/ws"

	"github.com/gorilla/websocket"
)

func main() {
	logger.Init("info", false)

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	url := fmt.Sprintf("ws://127.0.0.1:%s/ws", port)

	dialer := websocket.DefaultDialer
	connA, _, err := dialer.Dial(url, nil)
	if err != nil {
		logger.Fatal("dial A", "error", err)
	}
	defer connA.Close()

	connB, _, err := dialer.Dial(url, nil)
	if err != nil {
		logger.Fatal("dial B", "error", err)
	}
	defer connB.Close()

	// read until a message matches or the deadline passes
	readUntil := func(conn *websocket.Conn, name string, match func(ws.ServerMessage) bool) ws.ServerMessage {
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			conn.SetReadDeadline(deadline)
			var m ws.ServerMessage
			if err := conn.ReadJSON(&m); err != nil {
				logger.Fatal("read", "conn", name, "error", err)
			}
			if match(m) {
				return m
			}
		}
		logger.Fatal("timed out", "conn", name)
		return ws.ServerMessage{}
	}

	isTodos := func(m ws.ServerMessage) bool { return m.Type == ws.MsgTodos }
	readUntil(connA, "A", isTodos)
	initial := readUntil(connB, "B", isTodos)

	title := fmt.Sprintf("smoke %d", time.Now().UnixNano())
	args, _ := json.Marshal(map[string]string{"title": title})
	if err := connA.WriteJSON(ws.ClientMessage{Type: ws.MsgMutation, RequestID: "smoke-add", Name: "addTodo", Args: args}); err != nil {
		logger.Fatal("write A", "error", err)
	}

	res := readUntil(connA, "A", func(m ws.ServerMessage) bool { return m.Type == ws.MsgResult })
	if !res.OK {
		logger.Fatal("addTodo failed", "error", res.Error)
	}
	var id string
	_ = json.Unmarshal(res.Value, &id)
	logger.Info("A added todo", "id", id)

	pushed := readUntil(connB, "B", func(m ws.ServerMessage) bool {
		if m.Type != ws.MsgTodos {
			return false
		}
		for _, t := range m.Todos {
			if t.ID == id {
				return true
			}
		}
		return false
	})
	logger.Info("B received snapshot", "from_version", initial.Version, "to_version", pushed.Version, "count", len(pushed.Todos))

	args, _ = json.Marshal(map[string]string{"id": id})
	_ = connA.WriteJSON(ws.ClientMessage{Type: ws.MsgMutation, RequestID: "smoke-delete", Name: "deleteTodo", Args: args})
	readUntil(connA, "A", func(m ws.ServerMessage) bool { return m.Type == ws.MsgResult })

	logger.Info("smoke test finished")
}
