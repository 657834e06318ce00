package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/cache"
	"github.com/dennisdiepolder/queuemonitor/internal/ingestion"
	"github.com/dennisdiepolder/queuemonitor/internal/metrics"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/rs/zerolog"
)

// feederFrame is one decoded frame; err is set when decoding failed
type feederFrame struct {
	client *FeederClient
	msg    types.FeedMessage
	err    error
}

// FeederHub tracks connected feeders and writes their batches into the
// snapshot cache. All map changes happen on the Run goroutine.
type FeederHub struct {
	// Connected feeders by id
	feeders map[string]*FeederClient

	// Register requests from feeder clients
	register chan *FeederClient

	// Unregister requests from feeder clients
	unregister chan *FeederClient

	// Frames from every feeder, in arrival order per connection
	frames chan feederFrame

	// Mutex to protect feeders map
	mu sync.RWMutex

	cache  *cache.SnapshotCache
	now    func() time.Time
	logger zerolog.Logger
}

// NewFeederHub creates a new FeederHub writing into c
func NewFeederHub(c *cache.SnapshotCache, logger zerolog.Logger) *FeederHub {
	return &FeederHub{
		feeders:    make(map[string]*FeederClient),
		register:   make(chan *FeederClient),
		unregister: make(chan *FeederClient),
		frames:     make(chan feederFrame, 64),
		cache:      c,
		now:        time.Now,
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *FeederHub) Run() {
	m := metrics.Get()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.feeders[client.feederID] = client
			total := len(h.feeders)
			h.mu.Unlock()
			m.RecordFeederConnect()

			h.logger.Info().
				Str("feeder_id", client.feederID).
				Int("total_feeders", total).
				Msg("feeder connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if existing, ok := h.feeders[client.feederID]; ok && existing == client {
				delete(h.feeders, client.feederID)
				client.Close()
				m.RecordFeederDisconnect()

				h.logger.Info().
					Str("feeder_id", client.feederID).
					Int("total_feeders", len(h.feeders)).
					Msg("feeder disconnected")
			}
			h.mu.Unlock()

		case f := <-h.frames:
			h.handleFrame(f)
		}
	}
}

func (h *FeederHub) handleFrame(f feederFrame) {
	if f.err != nil {
		metrics.Get().RecordSnapshotError()
		return
	}

	switch f.msg.Type {
	case "register":
		h.renameFeeder(f.client, f.msg.FeederID)
	case "snapshot":
		h.accept(f.client, f.msg.SnapshotBatch)
	default:
		h.logger.Debug().Str("type", f.msg.Type).Msg("unknown message type")
	}
}

func (h *FeederHub) renameFeeder(client *FeederClient, id string) {
	if id == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	old := client.feederID
	if existing, ok := h.feeders[old]; !ok || existing != client {
		return
	}
	// A reconnecting feeder replaces its previous connection
	if prev, ok := h.feeders[id]; ok && prev != client {
		prev.Close()
		metrics.Get().RecordFeederDisconnect()
	}
	delete(h.feeders, old)
	client.feederID = id
	h.feeders[id] = client
	h.logger.Info().Str("previous_id", old).Str("feeder_id", id).Msg("feeder registered")
}

func (h *FeederHub) accept(client *FeederClient, batch types.SnapshotBatch) {
	batch = ingestion.Prepare(batch, h.now())
	h.cache.Put(batch)
	metrics.Get().RecordSnapshot(len(batch.Observations))

	ack := types.FeedAck{Type: "ack", FeederID: client.feederID, Accepted: len(batch.Observations)}
	if data, err := json.Marshal(ack); err == nil {
		client.safeSend(data)
	}
}

// FeederCount returns the number of connected feeders
func (h *FeederHub) FeederCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.feeders)
}
