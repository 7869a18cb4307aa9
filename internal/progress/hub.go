// Package progress carries the scan pipeline's best-effort side channels:
// live progress events pushed to websocket subscribers, and a bounded worker
// pool for side effects that must not block a scan.
package progress

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	clientBuffer   = 64
)

// MessageTypeProgress tags progress frames on the wire.
const MessageTypeProgress = "progress"

// Event is one progress notification for a scan.
type Event struct {
	ScanID  string    `json:"scan_id"`
	Percent int       `json:"percent"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Message is the websocket frame.
type Message struct {
	Type string `json:"type"`
	Data Event  `json:"data"`
}

// Hub fans progress events out to websocket subscribers. A single goroutine
// (Run) owns delivery, so events for one scan reach each subscriber in the
// order Notify was called.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan Event
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	logger     shield.Logger
	now        func() time.Time
}

// NewHub creates a Hub. Call Run before serving subscribers.
func NewHub(logger shield.Logger) *Hub {
	if logger == nil {
		logger = shield.NewNopLogger()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Notify implements shield.Broadcaster. It never blocks: when the hub is
// backed up the event is dropped.
func (h *Hub) Notify(scanID string, percent int, message string) {
	e := Event{ScanID: scanID, Percent: percent, Message: message, At: h.now().UTC()}
	select {
	case h.broadcast <- e:
	default:
		h.logger.Warn("progress channel full, dropping event", "scan_id", scanID, "percent", percent)
	}
}

// Run delivers events until ctx is canceled, then closes every subscriber.
// It must be called at most once.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		// lifecycle events first so a new subscriber sees the next broadcast
		select {
		case c := <-h.register:
			h.add(c)
			continue
		case c := <-h.unregister:
			h.remove(c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			n := h.ClientCount()
			h.closeAll()
			h.logger.Info("progress hub stopped", "clients_closed", n)
			return ctx.Err()
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case e := <-h.broadcast:
			h.deliver(e)
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and subscribes the connection. The optional
// scan_id query parameter limits the stream to one scan.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{
		id:     clientIDs.Add(1),
		hub:    h,
		conn:   conn,
		scanID: r.URL.Query().Get("scan_id"),
		send:   make(chan Event, clientBuffer),
	}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("progress subscriber connected", "scan_id", c.scanID, "total_clients", n)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("progress subscriber disconnected", "total_clients", n)
}

func (h *Hub) deliver(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if c.scanID == "" || c.scanID == e.ScanID {
			clients = append(clients, c)
		}
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, c := range clients {
		select {
		case c.send <- e:
		default:
			// slow subscriber
			close(c.send)
			delete(h.clients, c)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

var clientIDs atomic.Uint64

type client struct {
	id     uint64
	hub    *Hub
	conn   *websocket.Conn
	scanID string
	send   chan Event
}

// readPump only watches for the peer going away; subscribers send nothing.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("unexpected websocket close", "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case e, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			frame, err := json.Marshal(Message{Type: MessageTypeProgress, Data: e})
			if err != nil {
				c.hub.logger.Error("encoding progress frame", "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ shield.Broadcaster = (*Hub)(nil)
