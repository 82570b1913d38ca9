// Package messaging provides the websocket broadcaster that delivers engine
// events to connected operator dashboards.
package messaging

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/gramsender/gramsender-go/internal/domain/events"
	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Dashboards connect from the packaged frontend on another port.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Broadcaster fans engine events out to all connected websocket clients.
// Delivery is fire-and-forget; a slow or dead client never blocks the
// producing worker.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	logger  *logging.ChanneledLogger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *logging.ChanneledLogger) *Broadcaster {
	return &Broadcaster{
		clients: make(map[*client]struct{}),
		logger:  logger,
	}
}

// Publish implements events.Sink. The event is serialized once and queued to
// every client; clients with a full queue drop the event.
func (b *Broadcaster) Publish(ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.WS().Error("Failed to marshal event", "type", ev.Type, "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		select {
		case c.send <- payload:
		default:
			b.logger.WS().Debug("Dropping event for slow client", "type", ev.Type)
		}
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// HandleConnection upgrades an HTTP request and serves it until the client
// disconnects. Blocks for the lifetime of the connection.
func (b *Broadcaster) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.WS().Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}

	b.mu.Lock()
	b.clients[c] = struct{}{}
	count := len(b.clients)
	b.mu.Unlock()
	b.logger.WS().Debug("Websocket client connected", "clients", count)

	go b.writeLoop(c)
	b.readLoop(c)
}

func (b *Broadcaster) writeLoop(c *client) {
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			b.remove(c)
			return
		}
	}
}

// readLoop discards inbound frames; its only job is detecting disconnects.
func (b *Broadcaster) readLoop(c *client) {
	defer b.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	count := len(b.clients)
	b.mu.Unlock()
	_ = c.conn.Close()
	b.logger.WS().Debug("Websocket client disconnected", "clients", count)
}
