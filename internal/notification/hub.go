package notification

import (
	"encoding/json"
	"sync"
	"time"

	"atelier-sync-core/internal/logging"
)

// Hub fans sync events out to connected UI clients over WebSocket. It is the
// delivery half of the notification port; the bus feeds it via EventHandler.
type Hub struct {
	clients      map[string]*Client
	clientsMutex sync.RWMutex
	Register     chan *Client
	Unregister   chan *Client
	maxClients   int
	writeWait    time.Duration
	pongWait     time.Duration
	pingPeriod   time.Duration
}

func NewHub(maxClients int, writeWait, pongWait, pingPeriod time.Duration) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		maxClients: maxClients,
		writeWait:  writeWait,
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()

	if len(h.clients) >= h.maxClients {
		logging.Warn("max websocket clients reached, rejecting connection")
		close(client.Send)
		return
	}

	h.clients[client.ID] = client
	logging.Info("event stream client connected", logging.Device(client.ID))
}

func (h *Hub) unregisterClient(client *Client) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
		logging.Info("event stream client disconnected", logging.Device(client.ID))
	}
}

// EventHandler returns a bus handler that broadcasts every event to all
// connected clients. Marshal failures are logged and dropped.
func (h *Hub) EventHandler() Handler {
	return func(e Event) {
		payload, err := json.Marshal(e)
		if err != nil {
			logging.Error("failed to marshal event for broadcast", logging.Err(err))
			return
		}
		h.broadcast(payload)
	}
}

func (h *Hub) broadcast(payload []byte) {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()

	for id, client := range h.clients {
		select {
		case client.Send <- payload:
		default:
			logging.Warn("client send buffer full, dropping connection", logging.Device(id))
			go func(c *Client) { h.Unregister <- c }(client)
		}
	}
}
