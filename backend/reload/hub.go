package reload

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

// Message is sent to every connected extension
type Message struct {
	Action string `json:"action"`
}

var reloadMessage = Message{Action: "RELOAD"}

// Hub keeps the WebSocket connections opened by installed extensions and
// tells them to reload after an update.
type Hub struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*websocket.Conn
}

func NewHub() *Hub {
	return &Hub{clients: make(map[uuid.UUID]*websocket.Conn)}
}

// ServeHTTP upgrades the request and holds the connection until the
// extension goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Extensions connect from chrome-extension:// origins
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Errorf("WebSocket upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}

	id := uuid.New()
	h.add(id, conn)
	log.Debugf("extension %s connected from %s", id, r.RemoteAddr)

	defer func() {
		h.remove(id)
		if err := conn.Close(websocket.StatusNormalClosure, ""); err != nil {
			log.Tracef("failed to close WebSocket %s: %v", id, err)
		}
		log.Debugf("extension %s disconnected", id)
	}()

	// Extensions never send anything meaningful, reading keeps control
	// frames flowing and detects the close.
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
	}
}

// Len returns the number of connected extensions
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastReload sends the reload message to every extension and drops the
// ones that cannot be written to. It returns how many received it.
func (h *Hub) BroadcastReload(ctx context.Context) int {
	payload, err := json.Marshal(reloadMessage)
	if err != nil {
		log.Errorf("failed to encode reload message: %v", err)
		return 0
	}

	h.mu.Lock()
	clients := make(map[uuid.UUID]*websocket.Conn, len(h.clients))
	for id, conn := range h.clients {
		clients[id] = conn
	}
	h.mu.Unlock()

	sent := 0
	for id, conn := range clients {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := conn.Write(writeCtx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			log.Debugf("dropping extension %s: %v", id, err)
			h.remove(id)
			_ = conn.Close(websocket.StatusGoingAway, "write failed")
			continue
		}
		sent++
	}
	return sent
}

// Close disconnects every extension
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[uuid.UUID]*websocket.Conn)
	h.mu.Unlock()

	for _, conn := range clients {
		_ = conn.Close(websocket.StatusGoingAway, "updater shutting down")
	}
}

func (h *Hub) add(id uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[id] = conn
}

func (h *Hub) remove(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}
