package app

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub fans tool and workflow events out to connected websocket clients. A
// slow or dead client is dropped instead of blocking the broadcaster.
type Hub struct {
	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	logger   *log.Logger
}

type event struct {
	Type string      `json:"type"`
	At   string      `json:"at"`
	Data interface{} `json:"data,omitempty"`
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		conns: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	// Drain the read side until the client goes away.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}

// Broadcast writes under the hub lock; gorilla connections allow only one
// concurrent writer.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	msg := event{Type: eventType, At: nowISO(), Data: data}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		if err := c.WriteJSON(msg); err != nil {
			h.logger.Printf("ws broadcast failed, dropping client: %v", err)
			delete(h.conns, c)
			c.Close()
		}
	}
}

// ClientCount reports connected clients, for health output and tests.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
