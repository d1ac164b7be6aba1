// Package livefeed broadcasts a scene's visible voxel-block entry IDs
// to connected viewers over WebSocket. Grounded on
// internal/collab/websocket_server.go's Hub/Client register/unregister/
// broadcast channel trio; ping/pong timing constants are kept as-is
// since nothing about this domain changes what a sane WebSocket
// keepalive period is.
package livefeed

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 256
	broadcastBuffer = 64
)

// Frame is one broadcast payload: the set of resident and swap-in
// entry IDs produced by a scene.Scene's Frame call.
type Frame struct {
	VisibleEntryIDs []int32 `json:"visible_entry_ids"`
	NeedsSwapIn     []int32 `json:"needs_swap_in"`
}

// Client is one connected viewer.
type Client struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan Frame
	IsAlive bool
}

// Hub fans out Frame updates to every registered Client.
type Hub struct {
	clients    map[string]*Client
	broadcast  chan Frame
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub with no clients registered.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan Frame, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes register/unregister/broadcast events until stop is
// closed.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			c.IsAlive = true
			h.mu.Unlock()
			log.Printf("[LIVEFEED] viewer %s connected (%d total)", c.ID, h.clientCount())

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.ID]; ok {
				close(c.Send)
				delete(h.clients, c.ID)
			}
			h.mu.Unlock()
			log.Printf("[LIVEFEED] viewer %s disconnected (%d total)", c.ID, h.clientCount())

		case f := <-h.broadcast:
			h.mu.RLock()
			for id, c := range h.clients {
				select {
				case c.Send <- f:
				default:
					log.Printf("[LIVEFEED] viewer %s send buffer full, dropping", id)
				}
			}
			h.mu.RUnlock()

		case <-stop:
			return
		}
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register connects c to the hub.
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister disconnects c from the hub.
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Broadcast pushes f to every connected client.
func (h *Hub) Broadcast(f Frame) { h.broadcast <- f }

// WritePump writes broadcast frames and periodic pings to the
// connection until Send is closed.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(frame); err != nil {
				log.Printf("[LIVEFEED] write error for viewer %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump discards viewer input but keeps the read deadline and pong
// handler alive, unregistering on disconnect.
func (c *Client) ReadPump(hub *Hub) {
	defer func() {
		hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			break
		}
	}
}
