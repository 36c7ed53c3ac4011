package output

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ianfigueroa/Titan/internal/domain"
	"github.com/ianfigueroa/Titan/internal/infra"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Local observability endpoint; accept any origin.
		return true
	},
}

// client is a single connected WebSocket consumer.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub is the local broadcast endpoint. The engine hands it rendered JSON
// messages; per-client writer pumps deliver them. Broadcast never blocks:
// a client whose buffer is full loses the message.
type Hub struct {
	addr      string
	boundAddr string

	mu      sync.RWMutex
	clients map[string]*client

	srv *http.Server
}

// NewHub creates a broadcast hub listening on the given port.
func NewHub(port uint16) *Hub {
	return &Hub{
		addr:    fmt.Sprintf(":%d", port),
		clients: make(map[string]*client),
	}
}

// Start binds the listener and begins serving. A bind failure is a fatal
// initialization error, returned to the caller.
func (h *Hub) Start() error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("broadcast endpoint bind %s: %w", h.addr, err)
	}
	h.boundAddr = ln.Addr().String()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)

	h.srv = &http.Server{Handler: mux}
	go func() {
		if err := h.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("Broadcast server failed", slog.Any("error", err))
		}
	}()

	slog.Info("Broadcast endpoint listening", slog.String("addr", h.addr))
	return nil
}

// Stop closes every session and shuts the server down.
func (h *Hub) Stop(ctx context.Context) {
	h.mu.Lock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
	h.mu.Unlock()

	if h.srv != nil {
		_ = h.srv.Shutdown(ctx)
	}
}

// Broadcast fans one message out to every connected client without
// blocking the caller.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slog.Debug("Dropping message for slow client", slog.String("client", c.id))
		}
	}
}

// Addr returns the bound listen address, available after Start.
func (h *Hub) Addr() string {
	return h.boundAddr
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	infra.GlobalMetrics.IncrementClients()
	slog.Info("Broadcast client connected",
		slog.String("client", c.id), slog.Int("total", h.ClientCount()))

	go c.writePump()
	go h.readPump(c)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
		infra.GlobalMetrics.DecrementClients()
	}
	h.mu.Unlock()
	slog.Info("Broadcast client disconnected", slog.String("client", c.id))
}

// readPump discards client input; the endpoint is one-way. It exists to
// observe close frames and keep pong handling alive.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
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

// BroadcastSink adapts the hub to the engine's sink interface, rendering
// payloads to JSON before handing them off.
type BroadcastSink struct {
	hub *Hub
}

// NewBroadcastSink wraps a hub.
func NewBroadcastSink(hub *Hub) *BroadcastSink {
	return &BroadcastSink{hub: hub}
}

func (s *BroadcastSink) PublishMetrics(book domain.BookMetrics, flow domain.TradeFlowMetrics) {
	s.hub.Broadcast(FormatMetrics(book, flow))
}

func (s *BroadcastSink) PublishAlert(alert domain.TradeAlert) {
	s.hub.Broadcast(FormatAlert(alert))
}

func (s *BroadcastSink) PublishStatus(connected bool, state string) {
	s.hub.Broadcast(FormatStatus(connected, state))
}
