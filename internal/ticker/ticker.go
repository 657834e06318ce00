// Package ticker refreshes the displayed timers between processing passes.
// It only reads the last published board and never touches tracking state.
package ticker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/board"
	"github.com/dennisdiepolder/queuemonitor/internal/duration"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/rs/zerolog"
)

// BoardSource returns the last published board
type BoardSource interface {
	Board() *types.Board
}

// Broadcaster fans a message out to viewers
type Broadcaster interface {
	Broadcast(message []byte)
	ClientCount() int
}

// Ticker periodically broadcasts refreshed timer values
type Ticker struct {
	source        BoardSource
	hub           Broadcaster
	interval      time.Duration
	callThreshold time.Duration
	now           func() time.Time
	logger        zerolog.Logger
}

// NewTicker creates a new Ticker. Calls running longer than callThreshold
// are flagged to pulse.
func NewTicker(source BoardSource, hub Broadcaster, interval, callThreshold time.Duration, logger zerolog.Logger) *Ticker {
	return &Ticker{
		source:        source,
		hub:           hub,
		interval:      interval,
		callThreshold: callThreshold,
		now:           time.Now,
		logger:        logger,
	}
}

// Start begins broadcasting timer updates
func (t *Ticker) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info().Dur("interval", t.interval).Msg("ticker started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("ticker stopped")
			return

		case <-ticker.C:
			if t.hub.ClientCount() == 0 {
				continue
			}

			message := t.Timers(t.now())
			if len(message.Timers) == 0 {
				continue
			}

			data, err := json.Marshal(message)
			if err != nil {
				t.logger.Error().Err(err).Msg("failed to marshal timer message")
				continue
			}

			t.hub.Broadcast(data)
			t.logger.Debug().
				Int("timers", len(message.Timers)).
				Int("clients", t.hub.ClientCount()).
				Msg("broadcasted timer update")
		}
	}
}

// Timers computes every visible timer of the current board at now
func (t *Ticker) Timers(now time.Time) types.TimerMessage {
	msg := types.TimerMessage{Type: "timers", Timestamp: now, Timers: []types.TimerValue{}}

	b := t.source.Board()
	if b == nil || b.Error != "" {
		return msg
	}

	for _, section := range b.Sections {
		if section.Key == board.SectionFavorites {
			continue
		}
		for _, card := range section.Entities {
			if !card.StatusStart.IsZero() {
				msg.Timers = append(msg.Timers, value(card.Name, "status", 0, card.StatusStart, now))
			}
			if card.CallStart != nil {
				v := value(card.Name, "call", 0, *card.CallStart, now)
				v.Pulse = t.callThreshold > 0 && time.Duration(v.Ms)*time.Millisecond >= t.callThreshold
				msg.Timers = append(msg.Timers, v)
			}
			for _, chat := range card.Chats {
				msg.Timers = append(msg.Timers, value(card.Name, "chat", chat.Index, chat.Start, now))
			}
		}
	}
	return msg
}

func value(name, kind string, index int, start, now time.Time) types.TimerValue {
	ms := now.Sub(start).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return types.TimerValue{
		Name:  name,
		Kind:  kind,
		Index: index,
		Ms:    ms,
		Text:  duration.FormatHMS(ms),
	}
}
