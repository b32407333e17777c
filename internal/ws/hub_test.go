package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"todo_backend/internal/domain"
	"todo_backend/internal/repository"
	"todo_backend/internal/rpc"
	"todo_backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newTestHub(t *testing.T) (*Hub, *service.TodoService) {
	t.Helper()
	svc := service.NewTodoService(repository.NewMemoryTodoRepository(), nil)
	hub := NewHub(svc, rpc.NewDispatcher(svc))
	svc.AddNotifier(hub)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub, svc
}

func readMsg(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var m ServerMessage
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

// readUntil skips messages until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) ServerMessage {
	t.Helper()
	for i := 0; i < 20; i++ {
		if m := readMsg(t, conn); m.Type == typ {
			return m
		}
	}
	t.Fatalf("no %s message", typ)
	return ServerMessage{}
}

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", HandleWS(hub, ""))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWSSnapshotOnConnectAndAfterMutation(t *testing.T) {
	hub, svc := newTestHub(t)
	if _, err := svc.Create(context.Background(), domain.NewTodo{Title: "existing"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	conn := dial(t, hub)
	if m := readMsg(t, conn); m.Type != MsgReady {
		t.Fatalf("first message = %s; want ready", m.Type)
	}
	snap := readMsg(t, conn)
	if snap.Type != MsgTodos || len(snap.Todos) != 1 || snap.Todos[0].Title != "existing" {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}

	err := conn.WriteJSON(ClientMessage{
		Type:      MsgMutation,
		RequestID: "r1",
		Name:      rpc.OpAddTodo,
		Args:      json.RawMessage(`{"title":"Buy milk"}`),
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	var gotResult, gotSnapshot bool
	for i := 0; i < 10 && !(gotResult && gotSnapshot); i++ {
		m := readMsg(t, conn)
		switch m.Type {
		case MsgResult:
			if m.RequestID != "r1" || !m.OK {
				t.Fatalf("unexpected result: %+v", m)
			}
			var id string
			if err := json.Unmarshal(m.Value, &id); err != nil || id == "" {
				t.Fatalf("result value %s is not an id", m.Value)
			}
			gotResult = true
		case MsgTodos:
			if m.Version <= snap.Version {
				t.Fatalf("version did not advance: %d -> %d", snap.Version, m.Version)
			}
			if len(m.Todos) == 2 {
				gotSnapshot = true
			}
		}
	}
	if !gotResult || !gotSnapshot {
		t.Fatalf("result=%v snapshot=%v", gotResult, gotSnapshot)
	}
}

func TestWSMutationError(t *testing.T) {
	hub, _ := newTestHub(t)
	conn := dial(t, hub)
	readUntil(t, conn, MsgTodos)

	conn.WriteJSON(ClientMessage{Type: MsgMutation, RequestID: "bad", Name: rpc.OpAddTodo, Args: json.RawMessage(`{"title":""}`)})
	m := readUntil(t, conn, MsgResult)
	if m.OK || m.Error == nil || m.Error.Code != rpc.CodeValidation {
		t.Fatalf("expected validation error, got %+v", m)
	}
}

func TestWSPingAndRefresh(t *testing.T) {
	hub, _ := newTestHub(t)
	conn := dial(t, hub)
	readUntil(t, conn, MsgTodos)

	conn.WriteJSON(ClientMessage{Type: MsgPing})
	readUntil(t, conn, MsgPong)

	conn.WriteJSON(ClientMessage{Type: MsgRefresh})
	readUntil(t, conn, MsgTodos)

	conn.WriteJSON(ClientMessage{Type: "bogus"})
	if m := readUntil(t, conn, MsgError); !strings.Contains(m.Message, "bogus") {
		t.Fatalf("unexpected error message %q", m.Message)
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	svc := service.NewTodoService(repository.NewMemoryTodoRepository(), nil)
	hub := NewHub(svc, rpc.NewDispatcher(svc))

	slow := &Client{ID: "slow", Hub: hub, send: make(chan []byte, 1)}
	hub.Register(context.Background(), slow)
	if hub.ClientCount() != 1 {
		t.Fatalf("client not registered")
	}

	// buffer already holds the initial snapshot
	hub.broadcast(context.Background())
	if hub.ClientCount() != 0 {
		t.Fatalf("slow client was not dropped")
	}
	if slow.queue([]byte("x")) {
		t.Fatalf("queue on closed client should fail")
	}
	if hub.Version() != 1 {
		t.Fatalf("version = %d; want 1", hub.Version())
	}
}

func TestHubCoalescesNotifications(t *testing.T) {
	svc := service.NewTodoService(repository.NewMemoryTodoRepository(), nil)
	hub := NewHub(svc, rpc.NewDispatcher(svc))

	for i := 0; i < 5; i++ {
		hub.TodosChanged(context.Background())
	}
	if len(hub.notify) != 1 {
		t.Fatalf("pending notifications = %d; want 1", len(hub.notify))
	}
}
