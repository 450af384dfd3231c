package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/camtower/camtower/pkg/models"
)

// CheckEvent is one live update pushed to websocket subscribers.
type CheckEvent struct {
	Device *models.Device      `json:"device"`
	Check  *models.CheckResult `json:"check"`
}

// Hub fans finished checks out to connected websocket clients. It
// implements the prober's CheckSink so the dashboard sees results as
// they land instead of polling.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// The read API is already wide open to CORS; the stream
			// follows the same policy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// ServeWS upgrades a connection and registers it for updates.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	// Drain client frames to detect closure.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

// ProcessCheck implements probe.CheckSink.
func (h *Hub) ProcessCheck(_ context.Context, device *models.Device, check *models.CheckResult) {
	event := CheckEvent{Device: device, Check: check}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteJSON(event); err != nil {
			log.Debug().Err(err).Msg("dropping websocket client")
			delete(h.clients, conn)

			if err := conn.Close(); err != nil {
				log.Debug().Err(err).Msg("error closing websocket")
			}
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)

		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Msg("error closing websocket")
		}
	}
}
