package livefeed

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RegisterRoutes mounts the viewer WebSocket endpoint on router,
// handing each accepted connection to hub.
func RegisterRoutes(router *mux.Router, hub *Hub, nextID func() string) {
	router.HandleFunc("/ws/visible", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(hub, nextID(), w, r)
	})
}

func handleWebSocket(hub *Hub, id string, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[LIVEFEED] upgrade failed: %v", err)
		return
	}

	client := &Client{
		ID:   id,
		Conn: conn,
		Send: make(chan Frame, sendBufferSize),
	}
	hub.Register(client)

	go client.WritePump()
	client.ReadPump(hub)
}
