package handler

import (
	"net/http"

	"atelier-sync-core/internal/logging"
	"atelier-sync-core/internal/notification"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub      *notification.Hub
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hub *notification.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Control plane binds to localhost; the usual origin check does
			// not apply to local UI clients.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve upgrades the connection and attaches it to the event stream.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		logging.Error("websocket upgrade failed", logging.Err(err))
		return
	}

	client := notification.NewClient(uuid.New().String(), conn, h.hub)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
