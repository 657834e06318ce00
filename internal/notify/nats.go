package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSSink publishes alerts as JSON on <subject>.<kind>
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// NewNATSSink connects to url with automatic reconnection
func NewNATSSink(url, subject string, logger zerolog.Logger) (*NATSSink, error) {
	log := logger.With().Str("component", "notify").Str("sink", "nats").Logger()
	nc, err := nats.Connect(url,
		nats.Name("queuemonitor"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	log.Info().Str("url", url).Str("subject", subject).Msg("nats sink connected")
	return &NATSSink{conn: nc, subject: subject}, nil
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Send(_ context.Context, msg types.AlertMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}
	return s.conn.Publish(s.subject+"."+string(msg.Kind), data)
}

// Close flushes pending messages and closes the connection
func (s *NATSSink) Close() error {
	return s.conn.Drain()
}
