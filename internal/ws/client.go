package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"todo_backend/internal/logger"
	"todo_backend/internal/rpc"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 64 << 10
	sendBuffer     = 256
)

type Client struct {
	ID   string
	Conn *websocket.Conn
	Hub  *Hub

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:   uuid.NewString(),
		Conn: conn,
		Hub:  hub,
		send: make(chan []byte, sendBuffer),
	}
}

// Run serves the connection until it closes.
func (c *Client) Run(ctx context.Context) {
	ctx = logger.NewContext(ctx, logger.WithContext(ctx).With("client", c.ID))
	log := logger.WithContext(ctx)

	go c.writePump()

	c.queue([]byte(`{"type":"ready"}`))
	c.Hub.Register(ctx, c)
	log.Info("ws client connected")

	c.readPump(ctx)

	c.Hub.Unregister(c)
	log.Info("ws client disconnected")
}

// queue hands msg to the write pump. It returns false when the buffer is
// full or the client is closed.
func (c *Client) queue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

//read
func (c *Client) readPump(ctx context.Context) {
	defer c.Conn.Close()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithContext(ctx).Warn("ws read error", "error", err)
			}
			return
		}
		c.handle(ctx, raw)
	}
}

func (c *Client) handle(ctx context.Context, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.queue(encode(ErrorPayload{Type: MsgError, Message: "invalid message"}))
		return
	}

	switch msg.Type {
	case MsgPing:
		c.queue([]byte(`{"type":"pong"}`))
	case MsgRefresh:
		c.Hub.Refresh(ctx, c)
	case MsgMutation:
		c.queue(encode(c.call(ctx, msg)))
	default:
		c.queue(encode(ErrorPayload{Type: MsgError, Message: "unknown message type: " + msg.Type}))
	}
}

func (c *Client) call(ctx context.Context, msg ClientMessage) ResultPayload {
	res := ResultPayload{Type: MsgResult, RequestID: msg.RequestID}
	v, err := c.Hub.dispatcher.Call(ctx, msg.Name, msg.Args)
	if err != nil {
		res.Error = rpc.ToError(err)
		if res.Error.Code == rpc.CodeInternal {
			logger.WithContext(ctx).Error("ws call failed", "name", msg.Name, "error", err)
		}
		return res
	}
	res.OK = true
	res.Value = v
	return res
}

//write
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
