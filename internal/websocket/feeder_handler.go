package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// feederUpgrader accepts any origin; the feed route is internal
var feederUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FeederHandler handles WebSocket upgrade requests from feeders
type FeederHandler struct {
	hub    *FeederHub
	logger zerolog.Logger
}

// NewFeederHandler creates a new FeederHandler
func NewFeederHandler(hub *FeederHub, logger zerolog.Logger) *FeederHandler {
	return &FeederHandler{
		hub:    hub,
		logger: logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests from feeders
func (h *FeederHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := feederUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade feeder connection")
		return
	}

	client := NewFeederClient(h.hub, conn, h.logger)

	h.hub.register <- client

	client.Start()
}
