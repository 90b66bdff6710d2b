// Package realtime tracks live WebSocket connections for the admin and
// driver channels and fans events out to them.
package realtime

import (
	"encoding/json"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Channel names for connection grouping.
const (
	ChannelAdmin  = "admin"
	ChannelDriver = "driver"
)

// Conn is the write side of a WebSocket connection. *websocket.Conn
// satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// client pairs a connection with its session state. Writes to the
// connection go through writeMu; gorilla forbids concurrent writers.
type client struct {
	conn        Conn
	channel     string
	id          string
	connectedAt time.Time
	lastPing    time.Time

	writeMu sync.Mutex
}

// Registry holds the live connections. All methods are safe for
// concurrent use.
type Registry struct {
	mu      sync.Mutex
	clients map[Conn]*client
	logger  *slog.Logger
	now     func() time.Time
}

// Stats is a point-in-time connection census.
type Stats struct {
	Total   int            `json:"total"`
	Channel map[string]int `json:"by_channel"`
}

// NewRegistry builds an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		clients: make(map[Conn]*client),
		logger:  logger,
		now:     time.Now,
	}
}

// Register adds a connection to a channel. The id is empty for admin
// connections and the driver identifier for driver connections.
func (r *Registry) Register(conn Conn, channel, id string) {
	now := r.now()
	r.mu.Lock()
	r.clients[conn] = &client{
		conn:        conn,
		channel:     channel,
		id:          id,
		connectedAt: now,
		lastPing:    now,
	}
	total := len(r.clients)
	r.mu.Unlock()

	r.logger.Debug("websocket connected", "channel", channel, "id", id, "total", total)
}

// Unregister drops a connection and closes it. Unknown connections are
// ignored, so double unregistration is harmless.
func (r *Registry) Unregister(conn Conn) {
	r.mu.Lock()
	c, ok := r.clients[conn]
	if ok {
		delete(r.clients, conn)
	}
	total := len(r.clients)
	r.mu.Unlock()

	if !ok {
		return
	}
	_ = conn.Close()
	r.logger.Debug("websocket disconnected",
		"channel", c.channel,
		"id", c.id,
		"session", r.now().Sub(c.connectedAt).Round(time.Second),
		"total", total)
}

// TouchPing stamps the connection's last-ping time. Unknown connections
// are ignored.
func (r *Registry) TouchPing(conn Conn) {
	r.mu.Lock()
	if c, ok := r.clients[conn]; ok {
		c.lastPing = r.now()
	}
	r.mu.Unlock()
}

// Broadcast serializes the event once and sends it to every connection,
// or only to the named channels when any are given. A write failure on
// one connection never blocks delivery to the rest; failed connections
// are unregistered after the sweep completes. Returns the delivered
// count.
func (r *Registry) Broadcast(event Event, channels ...string) int {
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("event marshal failed", "type", event.Type, "error", err)
		return 0
	}

	r.mu.Lock()
	targets := make([]*client, 0, len(r.clients))
	for _, c := range r.clients {
		if len(channels) > 0 && !slices.Contains(channels, c.channel) {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.Unlock()

	var failed []Conn
	delivered := 0
	for _, c := range targets {
		if err := r.write(c, payload); err != nil {
			r.logger.Warn("websocket write failed", "type", event.Type, "error", err)
			failed = append(failed, c.conn)
			continue
		}
		delivered++
	}

	for _, conn := range failed {
		r.Unregister(conn)
	}

	return delivered
}

// SendTo writes the event to a single connection, unregistering it on
// failure.
func (r *Registry) SendTo(conn Conn, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	r.mu.Lock()
	c := r.clients[conn]
	r.mu.Unlock()
	if c == nil {
		return conn.WriteMessage(websocket.TextMessage, payload)
	}

	if err := r.write(c, payload); err != nil {
		r.Unregister(conn)
		return err
	}
	return nil
}

// write delivers one frame under the client's write lock so concurrent
// broadcasts and unicast replies never interleave on the socket.
func (r *Registry) write(c *client, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Stats counts live connections per channel.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{Total: len(r.clients), Channel: make(map[string]int)}
	for _, c := range r.clients {
		stats.Channel[c.channel]++
	}
	return stats
}
