// Package server coordinates client registration, room state, message
// relay, and connection cleanup for the relay via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Hub owns every piece of shared state: the connected clients, the room
// directory, room membership, and pending room evictions. All of it is
// guarded by a single mutex so that "room became empty, start eviction" and
// "someone joined, cancel eviction" can never interleave.
type Hub struct {
	register   chan *Client
	unregister chan *Client

	mutex     sync.Mutex
	clients   map[*Client]bool
	directory *roomDirectory
	members   *membershipTracker
	evictions *evictionTimers

	defaultRoom   string
	evictionDelay time.Duration
	scheduler     Scheduler
	now           func() time.Time
	log           *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// HubOption customizes a Hub built by NewHub.
type HubOption func(*Hub)

// WithLogger sets the hub's logger.
func WithLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.log = logger
		}
	}
}

// WithScheduler replaces the timer source used for room eviction.
func WithScheduler(s Scheduler) HubOption {
	return func(h *Hub) {
		if s != nil {
			h.scheduler = s
		}
	}
}

// WithClock replaces the source of relay timestamps.
func WithClock(now func() time.Time) HubOption {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// WithEvictionDelay sets how long a room may stay empty before removal.
func WithEvictionDelay(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.evictionDelay = d
		}
	}
}

// WithDefaultRoom sets the name of the permanent room.
func WithDefaultRoom(name string) HubOption {
	return func(h *Hub) {
		if name = strings.TrimSpace(name); name != "" {
			h.defaultRoom = name
		}
	}
}

// NewHub creates a Hub with the permanent default room already registered.
// Defaults come from the active configuration.
func NewHub(opts ...HubOption) *Hub {
	cfg := currentConfig()
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		clients:       make(map[*Client]bool),
		directory:     newRoomDirectory(),
		members:       newMembershipTracker(),
		evictions:     newEvictionTimers(),
		defaultRoom:   cfg.DefaultRoom,
		evictionDelay: cfg.EvictionDelay,
		scheduler:     clockScheduler{},
		now:           time.Now,
		log:           slog.Default(),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	if _, err := h.directory.create(h.defaultRoom, false, ""); err != nil {
		h.log.Error("failed to register default room", "room", h.defaultRoom, "err", err)
	}
	return h
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// DefaultRoom returns the name of the room that is never evicted.
func (h *Hub) DefaultRoom() string {
	return h.defaultRoom
}

// Run starts the hub's event loop, handling client registration and
// unregistration. It returns after Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("received nil client registration; skipping")
				continue
			}
			h.connect(client)
			if client.conn == nil {
				continue
			}

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.disconnect(client)
		}
	}
}

// connect adds the client to the connection registry and sends it the
// current room list.
func (h *Hub) connect(c *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[c] = true
	h.updateGaugesLocked()
	h.log.Info("client connected", "conn", c.id, "addr", c.addr, "clients", len(h.clients))

	h.sendLocked(c, h.roomListLocked(""))
}

// disconnect is the single teardown path for a connection. It leaves any
// joined room, then closes the send channel.
func (h *Hub) disconnect(c *Client) {
	if c == nil {
		return
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.dropLocked(c) {
		h.log.Info("client disconnected", "conn", c.id, "addr", c.addr, "clients", len(h.clients))
	}
}

// dropLocked removes c from every registry and performs an implicit leave.
// It reports false if c was already dropped. Caller holds h.mutex.
func (h *Hub) dropLocked(c *Client) bool {
	if _, ok := h.clients[c]; !ok || c.closed {
		return false
	}
	delete(h.clients, c)
	c.closed = true
	close(c.send)

	if c.session.authenticated {
		h.leaveRoomLocked(c)
	}
	h.updateGaugesLocked()
	return true
}

// sendLocked encodes v and queues it for c. Caller holds h.mutex.
func (h *Hub) sendLocked(c *Client, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Error("failed to encode outbound frame", "err", err)
		return
	}
	if !h.trySendLocked(c, payload) {
		h.pruneLocked([]*Client{c})
	}
}

// trySendLocked queues payload without blocking. It reports false for a
// closed client or a full send buffer.
func (h *Hub) trySendLocked(c *Client, payload []byte) bool {
	if _, exists := h.clients[c]; !exists || c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// pruneLocked drops clients that could not accept a frame. Dropping may
// trigger leave notifications which may prune further clients; each client
// is dropped at most once.
func (h *Hub) pruneLocked(clients []*Client) {
	for _, c := range clients {
		if h.dropLocked(c) {
			prunedConnections.Inc()
			h.log.Warn("client removed due to full send buffer", "conn", c.id, "addr", c.addr)
		}
	}
}

func (h *Hub) roomListLocked(newRoom string) RoomListMessage {
	return RoomListMessage{
		Type:    TypeRoomList,
		Rooms:   h.directory.list(),
		NewRoom: newRoom,
	}
}

func (h *Hub) timestamp() string {
	return formatTimestamp(h.now())
}

// shutdownClients closes all active client connections and pending timers.
func (h *Hub) shutdownClients() {
	h.log.Info("shutting down all client connections")

	h.mutex.Lock()
	h.evictions.stopAll()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn("error closing client connection", "conn", client.id, "err", err)
			}
		}
	}

	h.log.Info("closed client connections", "count", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")

	h.cancel()

	done := make(chan struct{})
	go func() {
		<-h.done
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached, Run may not have been started or goroutines are still running")
		return context.DeadlineExceeded
	}
}
