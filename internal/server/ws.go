package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/signalwatch/internal/pipeline"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Hub pushes every frame result to the connected websocket clients. It is
// a sink.Sink.
type Hub struct {
	clients map[*websocket.Conn]*sync.Mutex
	mu      sync.RWMutex
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	h.mu.Unlock()

	defer h.remove(conn)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish broadcasts res to every client. Clients that cannot be written
// are dropped.
func (h *Hub) Publish(_ context.Context, res pipeline.FrameResult) error {
	msg, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal frame result: %w", err)
	}

	h.mu.RLock()
	var dead []*websocket.Conn
	for conn, wmu := range h.clients {
		wmu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := conn.WriteMessage(websocket.TextMessage, msg)
		wmu.Unlock()
		if err != nil {
			dead = append(dead, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range dead {
		h.remove(conn)
		conn.Close()
	}
	return nil
}
