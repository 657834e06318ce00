package types

import "time"

// TimerMessage is broadcast by the visual ticker between processing passes
type TimerMessage struct {
	Type      string       `json:"type"` // "timers"
	Timestamp time.Time    `json:"timestamp"`
	Timers    []TimerValue `json:"timers"`
}

// TimerValue is the refreshed elapsed text of one displayed timer
type TimerValue struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"` // status, call, chat
	Index int    `json:"index,omitempty"`
	Ms    int64  `json:"ms"`
	Text  string `json:"text"`
	Pulse bool   `json:"pulse,omitempty"` // call crossed the long-call threshold
}

// AlertMessage is pushed to viewers when an alert edge fires
type AlertMessage struct {
	Type      string    `json:"type"` // "alert"
	Kind      AlertKind `json:"kind"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// FeedAck is sent back to a websocket feeder after each accepted batch
type FeedAck struct {
	Type     string `json:"type"` // "ack"
	FeederID string `json:"feederId"`
	Accepted int    `json:"accepted"`
}

// FeedMessage is one frame sent by a websocket feeder. A "register" frame
// names the feeder; a "snapshot" frame carries a batch.
type FeedMessage struct {
	Type     string `json:"type"`
	FeederID string `json:"feederId,omitempty"`
	SnapshotBatch
}
