package www

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"binwatch/alert"
	"binwatch/events"
	"binwatch/inventory"
)

// wsConn is the slice of *websocket.Conn the hub needs; tests
// substitute their own.
type wsConn interface {
	WriteJSON(v any) error
	ReadMessage() (int, []byte, error)
	Close() error
}

// WireEvent is the envelope every websocket message travels in.
type WireEvent struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// wsClient serializes writes to one connection. Gorilla allows a
// single concurrent writer, and both the read loop and broadcasts
// write to the same conn.
type wsClient struct {
	mu   sync.Mutex
	conn wsConn
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub fans bin updates and alerts out to connected websocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*wsClient
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*wsClient)}
}

// SetupBusListeners subscribes the hub to the in-process event bus.
func (h *Hub) SetupBusListeners(bus *events.Bus) {
	bus.SubscribeTypes(func(evt events.Event) {
		if state, ok := evt.Payload.(*inventory.BinDisplayState); ok {
			h.Broadcast("bin_update", state)
		}
	}, events.EventBinUpdated)
	bus.SubscribeTypes(func(evt events.Event) {
		if a, ok := evt.Payload.(*alert.Log); ok {
			h.Broadcast("alert", a)
		}
	}, events.EventAlertRaised)
}

// Register adds a connection, sends the connection confirmation, and
// returns the subscriber ID.
func (h *Hub) Register(conn wsConn) string {
	id := uuid.NewString()
	c := &wsClient{conn: conn}
	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()

	c.writeJSON(WireEvent{
		Type:      "connection",
		Payload:   map[string]string{"status": "connected", "client_id": id},
		Timestamp: time.Now().UTC(),
	})
	log.Printf("ws: client %s connected (%d total)", id, h.ClientCount())
	return id
}

func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
		log.Printf("ws: client %s disconnected (%d total)", id, h.ClientCount())
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) client(id string) *wsClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients[id]
}

// Broadcast delivers one event to every client. The client set is
// snapshotted first so a failing write never stalls the pass; failed
// clients are removed afterwards.
func (h *Hub) Broadcast(eventType string, payload any) {
	evt := WireEvent{Type: eventType, Payload: payload, Timestamp: time.Now().UTC()}

	h.mu.Lock()
	snapshot := make(map[string]*wsClient, len(h.clients))
	for id, c := range h.clients {
		snapshot[id] = c
	}
	h.mu.Unlock()

	var failed []string
	for id, c := range snapshot {
		if err := c.writeJSON(evt); err != nil {
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		log.Printf("ws: dropping unresponsive client %s", id)
		h.Unregister(id)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard may be served from another origin; API access is
	// already open, so the socket is too.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the connection and services the client until it
// goes away.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade: %v", err)
		return
	}
	id := h.Register(conn)
	defer h.Unregister(id)
	h.readLoop(id, conn)
}

// clientMessage is what clients may send: ping for liveness, subscribe
// as a no-op acknowledgment.
type clientMessage struct {
	Type string `json:"type"`
}

func (h *Hub) readLoop(id string, conn wsConn) {
	c := h.client(id)
	if c == nil {
		return
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("ws: malformed message from %s: %v", id, err)
			continue
		}
		switch msg.Type {
		case "ping":
			c.writeJSON(WireEvent{Type: "heartbeat", Timestamp: time.Now().UTC()})
		case "subscribe":
			// Acknowledged but everyone receives everything anyway.
			c.writeJSON(WireEvent{Type: "subscribed", Timestamp: time.Now().UTC()})
		default:
			log.Printf("ws: unknown message type %q from %s", msg.Type, id)
		}
	}
}
