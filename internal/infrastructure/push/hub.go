// Package push delivers auction events to websocket subscribers.
// Delivery is best-effort; clients reconcile by polling the REST reads.
package push

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/carbidx/auction-engine/internal/api/metrics"
	"github.com/carbidx/auction-engine/internal/core/domain"
	"github.com/carbidx/auction-engine/internal/core/ports"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

type heartbeat struct {
	Type string `json:"type"`
}

// Hub tracks websocket subscribers per auction.
type Hub struct {
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
	conns    atomic.Int64
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

var _ ports.EventPublisher = (*Hub)(nil)

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Connections reports the number of open subscriptions.
func (h *Hub) Connections() int64 {
	return h.conns.Load()
}

// Publish delivers event to every local subscriber of its auction. Slow
// subscribers whose buffer is full are disconnected.
func (h *Hub) Publish(_ context.Context, event domain.AuctionEvent) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.subs[event.AuctionID] {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn().Str("auction_id", event.AuctionID).Msg("push subscriber too slow, disconnecting")
		h.unregister(c)
	}
	return nil
}

// Serve upgrades the request and streams auctionID's events until the client
// goes away or ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, auctionID, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{
		hub:       h,
		conn:      conn,
		auctionID: auctionID,
		userID:    userID,
		send:      make(chan []byte, sendBuffer),
	}
	h.register(c)

	go c.writePump(ctx)
	c.readPump()
	return nil
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	set, ok := h.subs[c.auctionID]
	if !ok {
		set = make(map[*client]struct{})
		h.subs[c.auctionID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	n := h.conns.Add(1)
	metrics.PushConnections.Set(float64(n))
	h.log.Debug().Str("auction_id", c.auctionID).Str("user_id", c.userID).Int64("connections", n).Msg("push subscriber connected")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	set, ok := h.subs[c.auctionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, present := set[c]; !present {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.subs, c.auctionID)
	}
	close(c.send)
	h.mu.Unlock()

	n := h.conns.Add(-1)
	metrics.PushConnections.Set(float64(n))
	h.log.Debug().Str("auction_id", c.auctionID).Str("user_id", c.userID).Int64("connections", n).Msg("push subscriber disconnected")
}

// deliver queues msg for c if it is still registered. It never blocks.
func (h *Hub) deliver(c *client, msg []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.subs[c.auctionID][c]; !ok {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

type client struct {
	hub       *Hub
	conn      *websocket.Conn
	auctionID string
	userID    string
	send      chan []byte
}

// readPump answers heartbeats and detects disconnects. It owns the read side.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg heartbeat
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug().Err(err).Str("auction_id", c.auctionID).Msg("push read failed")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if msg.Type != "heartbeat" {
			continue
		}
		reply, _ := json.Marshal(heartbeat{Type: "heartbeat_response"})
		c.hub.deliver(c, reply)
	}
}

// writePump owns the write side: queued messages and periodic pings.
func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
