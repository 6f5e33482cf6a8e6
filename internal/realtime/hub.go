package realtime

import (
	"log/slog"
	"sync"

	"github.com/Tobby-pro/New-Rental-Stack/internal/event"
	"github.com/Tobby-pro/New-Rental-Stack/internal/metrics"
)

// Hub composes the registry and room membership and owns fan-out.
// It is constructed once and injected; there is no package-level instance.
type Hub struct {
	registry *Registry
	rooms    *Rooms
	metrics  *metrics.Metrics

	// life orders Join and Register against Disconnect so a connection
	// cannot re-enter a room or the registry once it has left.
	life sync.RWMutex

	hookMu sync.RWMutex
	hooks  []func(Conn)
}

func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		registry: NewRegistry(),
		rooms:    NewRooms(),
		metrics:  m,
	}
}

// OnDisconnect registers fn to run once for every connection that leaves the hub.
func (h *Hub) OnDisconnect(fn func(Conn)) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	h.hooks = append(h.hooks, fn)
}

func (h *Hub) Attach(c Conn) {
	h.registry.Attach(c)
	h.metrics.ConnOpened()
}

// Register binds id to c. It reports false when c has already left the hub.
func (h *Hub) Register(id Identity, c Conn) bool {
	h.life.RLock()
	defer h.life.RUnlock()
	if !h.registry.Attached(c) {
		return false
	}
	if prev := h.registry.Register(id, c); prev != nil {
		slog.Debug("identity moved to a new connection", "identity", id.String(), "old_conn", prev.ID(), "conn", c.ID())
	}
	return true
}

func (h *Hub) Lookup(id Identity) (Conn, bool) { return h.registry.Lookup(id) }

func (h *Hub) Identities(c Conn) []Identity { return h.registry.Identities(c) }

// Join adds c to room and reports whether it was newly added. Connections
// that have already left the hub are refused.
func (h *Hub) Join(c Conn, room string) bool {
	h.life.RLock()
	defer h.life.RUnlock()
	if !h.registry.Attached(c) {
		return false
	}
	ok := h.rooms.Join(c, room)
	h.metrics.SetRooms(h.rooms.Len())
	return ok
}

func (h *Hub) Leave(c Conn, room string) bool {
	ok := h.rooms.Leave(c, room)
	h.metrics.SetRooms(h.rooms.Len())
	return ok
}

func (h *Hub) IsMember(c Conn, room string) bool { return h.rooms.IsMember(c, room) }

func (h *Hub) Members(room string) int { return h.rooms.Members(room) }

// Disconnect unregisters c and removes it from every room. Only the first
// call per connection does the work and returns true.
func (h *Hub) Disconnect(c Conn) bool {
	h.life.Lock()
	if !h.registry.Unregister(c) {
		h.life.Unlock()
		return false
	}
	left := h.rooms.LeaveAll(c)
	h.life.Unlock()
	h.metrics.ConnClosed()
	h.metrics.SetRooms(h.rooms.Len())
	slog.Debug("connection left hub", "conn", c.ID(), "rooms", len(left))

	h.hookMu.RLock()
	hooks := append([]func(Conn){}, h.hooks...)
	h.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(c)
	}
	return true
}

// Send queues ev on a single connection.
func (h *Hub) Send(c Conn, ev event.Outbound) error {
	msg, err := event.Encode(ev)
	if err != nil {
		return err
	}
	if err := c.Send(msg); err != nil {
		h.drop(c, err)
		return err
	}
	return nil
}

// SendTo delivers ev to the live connection of id, if any.
func (h *Hub) SendTo(id Identity, ev event.Outbound) bool {
	c, ok := h.registry.Lookup(id)
	if !ok {
		slog.Debug("recipient offline", "identity", id.String(), "type", ev.Type())
		return false
	}
	return h.Send(c, ev) == nil
}

// Broadcast queues ev for every member of room except exclude (may be nil)
// and returns how many members it was queued for. Delivery is best-effort.
func (h *Hub) Broadcast(room string, ev event.Outbound, exclude Conn) int {
	msg, err := event.Encode(ev)
	if err != nil {
		slog.Error("encode broadcast", "room", room, "type", ev.Type(), "err", err)
		return 0
	}
	return h.broadcast(room, msg, exclude)
}

func (h *Hub) broadcast(room string, msg []byte, exclude Conn) int {
	skip := ""
	if exclude != nil {
		skip = exclude.ID()
	}
	sent, failed := h.rooms.broadcast(room, msg, skip)
	for _, c := range failed {
		h.drop(c, ErrSendBufferFull)
	}
	h.metrics.Fanout(sent)
	return sent
}

// Deliver broadcasts ev to room and also sends it directly to every recipient
// whose live connection is not in the room. exclude is skipped in both paths.
func (h *Hub) Deliver(room string, recipients []Identity, ev event.Outbound, exclude Conn) int {
	msg, err := event.Encode(ev)
	if err != nil {
		slog.Error("encode delivery", "room", room, "type", ev.Type(), "err", err)
		return 0
	}

	sent := h.broadcast(room, msg, exclude)

	seen := make(map[string]struct{}, len(recipients))
	for _, id := range recipients {
		c, ok := h.registry.Lookup(id)
		if !ok {
			slog.Debug("recipient offline", "identity", id.String(), "type", ev.Type())
			continue
		}
		if exclude != nil && c.ID() == exclude.ID() {
			continue
		}
		if _, dup := seen[c.ID()]; dup {
			continue
		}
		seen[c.ID()] = struct{}{}
		if h.rooms.IsMember(c, room) {
			continue
		}
		if err := c.Send(msg); err != nil {
			h.drop(c, err)
			continue
		}
		sent++
	}
	return sent
}

func (h *Hub) drop(c Conn, cause error) {
	slog.Warn("dropping slow connection", "conn", c.ID(), "err", cause)
	h.metrics.SlowConsumerDropped()
	_ = c.Close()
	h.Disconnect(c)
}

// Stats is a snapshot for health output.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

func (h *Hub) Stats() Stats {
	return Stats{Connections: h.registry.Len(), Rooms: h.rooms.Len()}
}
