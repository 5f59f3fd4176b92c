package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"whalewatch/internal/metrics"
	"whalewatch/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type envelope struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Hub fans events out to connected WebSocket clients. Clients that cannot
// keep up are dropped rather than allowed to backpressure the pipeline.
type Hub struct {
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	log        *logger.Logger
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an event hub. Run must be started before clients connect.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		log:        logger.Get().With("component", "ws_hub"),
	}
}

// Run owns the client set. All membership changes and fan-out go through
// this single goroutine.
func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			metrics.WebSocketConnections.Set(0)
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			metrics.WebSocketConnections.Set(float64(len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				metrics.WebSocketConnections.Set(float64(len(h.clients)))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer, disconnect it.
					delete(h.clients, c)
					close(c.send)
				}
			}
			metrics.WebSocketConnections.Set(float64(len(h.clients)))
		}
	}
}

// Broadcast sends an event to every connected client. Non-blocking: if the
// hub queue is full the event is dropped.
func (h *Hub) Broadcast(event string, payload interface{}) {
	msg, err := json.Marshal(envelope{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	})
	if err != nil {
		h.log.Warnw("Event marshal failed", "event", event, "error", err)
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		h.log.Warnw("Broadcast queue full, event dropped", "event", event)
	}
}

// ServeHTTP upgrades the request and attaches the client to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("WebSocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// readPump discards inbound frames; the channel is broadcast only. It exists
// to process control frames and to notice disconnects.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
