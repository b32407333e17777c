package ws

import (
	"context"
	"encoding/json"
	"sync"

	"todo_backend/internal/logger"
	"todo_backend/internal/rpc"
	"todo_backend/internal/service"
)

// Publisher forwards change notifications to other processes.
type Publisher interface {
	Publish(ctx context.Context) error
}

// Hub keeps the live todo query for every connected client. Each change
// recomputes the sorted list once and pushes it with a new version.
type Hub struct {
	svc        *service.TodoService
	dispatcher *rpc.Dispatcher

	// bmu serialises snapshots so versions reach clients in order.
	bmu     sync.Mutex
	version uint64
	clients map[*Client]struct{}

	notify    chan struct{}
	publisher Publisher
}

func NewHub(svc *service.TodoService, dispatcher *rpc.Dispatcher) *Hub {
	return &Hub{
		svc:        svc,
		dispatcher: dispatcher,
		clients:    make(map[*Client]struct{}),
		notify:     make(chan struct{}, 1),
	}
}

// SetPublisher attaches a cross-instance publisher (see RedisBridge).
func (h *Hub) SetPublisher(p Publisher) {
	h.publisher = p
}

// Run broadcasts a fresh snapshot whenever a change is signalled.
// Bursts of changes collapse into one broadcast.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-h.notify:
			h.broadcast(ctx)
		}
	}
}

// TodosChanged implements service.Notifier.
func (h *Hub) TodosChanged(ctx context.Context) {
	h.Invalidate()
	if h.publisher != nil {
		if err := h.publisher.Publish(ctx); err != nil {
			logger.WithContext(ctx).Warn("publish change failed", "error", err)
		}
	}
}

// Invalidate schedules a broadcast without publishing to other instances.
func (h *Hub) Invalidate() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Version returns the last broadcast version.
func (h *Hub) Version() uint64 {
	h.bmu.Lock()
	defer h.bmu.Unlock()
	return h.version
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.bmu.Lock()
	defer h.bmu.Unlock()
	return len(h.clients)
}

// Register adds c and sends it the current snapshot.
func (h *Hub) Register(ctx context.Context, c *Client) {
	h.bmu.Lock()
	defer h.bmu.Unlock()
	h.clients[c] = struct{}{}
	Subscribers.Inc()
	h.sendSnapshotLocked(ctx, c)
}

// Refresh resends the current snapshot to c only.
func (h *Hub) Refresh(ctx context.Context, c *Client) {
	h.bmu.Lock()
	defer h.bmu.Unlock()
	h.sendSnapshotLocked(ctx, c)
}

func (h *Hub) Unregister(c *Client) {
	h.bmu.Lock()
	defer h.bmu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	Subscribers.Dec()
	c.close()
}

func (h *Hub) sendSnapshotLocked(ctx context.Context, c *Client) {
	msg, err := h.snapshotLocked(ctx)
	if err != nil {
		logger.WithContext(ctx).Error("snapshot failed", "client", c.ID, "error", err)
		c.queue(encode(ErrorPayload{Type: MsgError, Message: "could not load todos"}))
		return
	}
	if !c.queue(msg) {
		DroppedClients.Inc()
		h.removeLocked(c)
	}
}

func (h *Hub) snapshotLocked(ctx context.Context) ([]byte, error) {
	todos, err := h.svc.LiveTodos(ctx)
	if err != nil {
		return nil, err
	}
	return encode(TodosPayload{Type: MsgTodos, Version: h.version, Todos: todos}), nil
}

func (h *Hub) broadcast(ctx context.Context) {
	h.bmu.Lock()
	defer h.bmu.Unlock()

	todos, err := h.svc.LiveTodos(ctx)
	if err != nil {
		logger.Error("broadcast: list todos failed", "error", err)
		return
	}
	h.version++
	msg := encode(TodosPayload{Type: MsgTodos, Version: h.version, Todos: todos})
	Broadcasts.Inc()

	for c := range h.clients {
		if !c.queue(msg) {
			logger.Warn("dropping slow client", "client", c.ID)
			DroppedClients.Inc()
			h.removeLocked(c)
		}
	}
	logger.Debug("broadcast todos", "version", h.version, "count", len(todos), "clients", len(h.clients))
}

func (h *Hub) closeAll() {
	h.bmu.Lock()
	defer h.bmu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// payload types always marshal
		panic(err)
	}
	return b
}
