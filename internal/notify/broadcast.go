package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dennisdiepolder/queuemonitor/internal/types"
)

// Broadcaster is implemented by the viewer websocket hub
type Broadcaster interface {
	Broadcast(message []byte)
}

// BroadcastSink pushes alerts to every connected viewer
type BroadcastSink struct {
	hub Broadcaster
}

func NewBroadcastSink(hub Broadcaster) *BroadcastSink {
	return &BroadcastSink{hub: hub}
}

func (s *BroadcastSink) Name() string { return "viewers" }

func (s *BroadcastSink) Send(_ context.Context, msg types.AlertMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}
	s.hub.Broadcast(data)
	return nil
}
