// Package client is the data layer used by UIs and tools: it holds the live
// todo list pushed by the server and sends mutations over the same socket.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"todo_backend/internal/domain"
	"todo_backend/internal/logger"
	"todo_backend/internal/ws"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Snapshot is one version of the live todo list, sorted by order.
type Snapshot struct {
	Version uint64
	Todos   []domain.Todo
}

type Client struct {
	conn *websocket.Conn
	wmu  sync.Mutex
	seq  atomic.Uint64

	mu      sync.Mutex
	snap    Snapshot
	loaded  bool
	updated chan struct{} // closed and replaced on every snapshot
	pending map[string]chan ws.ServerMessage
	subs    map[int]chan Snapshot
	nextSub int
	err     error

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to a /ws endpoint and waits for the first snapshot.
func Dial(ctx context.Context, url string, header http.Header) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrTransport, url, err)
	}
	c := &Client{
		conn:    conn,
		updated: make(chan struct{}),
		pending: make(map[string]chan ws.ServerMessage),
		subs:    make(map[int]chan Snapshot),
		done:    make(chan struct{}),
	}
	go c.readLoop()

	if _, err := c.WaitFor(ctx, func(Snapshot) bool { return true }); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Loaded reports whether a snapshot has been received.
func (c *Client) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Snapshot returns the latest list. The slice is a copy.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Version: c.snap.Version, Todos: append([]domain.Todo(nil), c.snap.Todos...)}
}

func (c *Client) Todos() []domain.Todo {
	return c.Snapshot().Todos
}

func (c *Client) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.Version
}

// Subscribe returns a channel that receives every new snapshot. Only the
// latest unread snapshot is kept. Call cancel to stop receiving.
func (c *Client) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	if c.loaded {
		ch <- c.copySnapLocked()
	}
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// WaitFor blocks until the current snapshot satisfies pred.
func (c *Client) WaitFor(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error) {
	for {
		c.mu.Lock()
		if c.loaded {
			s := c.copySnapLocked()
			if pred(s) {
				c.mu.Unlock()
				return s, nil
			}
		}
		updated, err := c.updated, c.err
		c.mu.Unlock()

		if err != nil {
			return Snapshot{}, err
		}
		select {
		case <-updated:
		case <-c.done:
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
	}
}

// WaitForVersion blocks until a snapshot with at least version v arrives.
func (c *Client) WaitForVersion(ctx context.Context, v uint64) (Snapshot, error) {
	return c.WaitFor(ctx, func(s Snapshot) bool { return s.Version >= v })
}

// Refresh asks the server to resend the current snapshot.
func (c *Client) Refresh() error {
	return c.write(ws.ClientMessage{Type: ws.MsgRefresh})
}

// Close shuts the connection down. Pending calls fail with ErrClosed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.wmu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.wmu.Unlock()
		c.fail(ErrClosed)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) copySnapLocked() Snapshot {
	return Snapshot{Version: c.snap.Version, Todos: append([]domain.Todo(nil), c.snap.Todos...)}
}

func (c *Client) write(msg ws.ClientMessage) error {
	c.mu.Lock()
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		logger.Warn("todo client write failed", "error", err)
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

// call sends a named operation and waits for its result. No retries.
func (c *Client) call(ctx context.Context, name string, args any, out any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%s: encode args: %w", name, err)
	}
	rid := strconv.FormatUint(c.seq.Add(1), 10)
	ch := make(chan ws.ServerMessage, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pending[rid] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, rid)
		c.mu.Unlock()
	}()

	if err := c.write(ws.ClientMessage{Type: ws.MsgMutation, RequestID: rid, Name: name, Args: raw}); err != nil {
		return err
	}

	select {
	case res := <-ch:
		if !res.OK {
			re := &RemoteError{Op: name, Code: "internal", Message: "call failed"}
			if res.Error != nil {
				re.Code, re.Message = res.Error.Code, res.Error.Message
			}
			return re
		}
		if out != nil && len(res.Value) > 0 {
			if err := json.Unmarshal(res.Value, out); err != nil {
				return fmt.Errorf("%s: decode result: %w", name, err)
			}
		}
		return nil
	case <-c.done:
		c.mu.Lock()
		err := c.err
		c.mu.Unlock()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) readLoop() {
	for {
		var msg ws.ServerMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.done:
			default:
				logger.Warn("todo client connection lost", "error", err)
			}
			c.fail(fmt.Errorf("%w: %v", ErrTransport, err))
			return
		}

		switch msg.Type {
		case ws.MsgTodos:
			c.applySnapshot(msg.Version, msg.Todos)
		case ws.MsgResult:
			c.mu.Lock()
			ch, ok := c.pending[msg.RequestID]
			c.mu.Unlock()
			if ok {
				ch <- msg
			}
		case ws.MsgError:
			logger.Warn("todo server error", "message", msg.Message)
		}
	}
}

func (c *Client) applySnapshot(version uint64, todos []domain.Todo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded && version < c.snap.Version {
		return
	}
	if todos == nil {
		todos = []domain.Todo{}
	}
	domain.SortByOrder(todos)
	c.snap = Snapshot{Version: version, Todos: todos}
	c.loaded = true

	close(c.updated)
	c.updated = make(chan struct{})

	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- c.copySnapLocked()
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	close(c.done)
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}
