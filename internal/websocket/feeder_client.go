package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the feeder
	feederWriteWait = 10 * time.Second

	// Time allowed to read the next pong message from the feeder
	feederPongWait = 30 * time.Second

	// Send pings to feeder with this period (must be less than pongWait)
	feederPingPeriod = 20 * time.Second

	// Maximum size of one snapshot frame
	feederMaxMessageSize = 4 << 20
)

// FeederClient is a websocket connection from a snapshot feeder
type FeederClient struct {
	// Feeder ID, replaced by the one announced in a register frame
	feederID string

	// The hub this client belongs to
	hub *FeederHub

	// The websocket connection
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte

	// Logger
	logger zerolog.Logger

	// done channel to signal client shutdown
	done chan struct{}

	// closeOnce ensures send channel is closed only once
	closeOnce sync.Once
}

// NewFeederClient creates a new FeederClient
func NewFeederClient(hub *FeederHub, conn *websocket.Conn, logger zerolog.Logger) *FeederClient {
	id := uuid.New().String()
	return &FeederClient{
		feederID: id,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 16),
		logger:   logger.With().Str("feeder_id", id).Logger(),
		done:     make(chan struct{}),
	}
}

// readPump pumps frames from the websocket connection to the hub
func (c *FeederClient) readPump() {
	defer func() {
		close(c.done)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(feederMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(feederPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(feederPongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug().Err(err).Msg("feeder websocket read error")
			}
			break
		}

		// Any frame proves liveness
		c.conn.SetReadDeadline(time.Now().Add(feederPongWait))
		c.handleMessage(message)
	}
}

// handleMessage decodes one frame and hands it to the hub
func (c *FeederClient) handleMessage(message []byte) {
	var msg types.FeedMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Debug().Err(err).Msg("failed to parse feed message")
		c.hub.frames <- feederFrame{client: c, err: err}
		return
	}
	c.hub.frames <- feederFrame{client: c, msg: msg}
}

// writePump pumps messages from the hub to the websocket connection
func (c *FeederClient) writePump() {
	ticker := time.NewTicker(feederPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(feederWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(feederWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start starts the client's read and write pumps
func (c *FeederClient) Start() {
	go c.writePump()
	go c.readPump()
}

// Close safely closes the client's send channel (idempotent)
func (c *FeederClient) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// safeSend attempts to send a message, recovering from panic if channel is closed
func (c *FeederClient) safeSend(data []byte) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			sent = false
		}
	}()

	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}
