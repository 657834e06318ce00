// Package notify delivers alert signals to external sinks without ever
// blocking the processing loop.
package notify

import (
	"context"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/metrics"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/rs/zerolog"
)

// Sink receives alert messages
type Sink interface {
	Name() string
	Send(ctx context.Context, msg types.AlertMessage) error
}

const (
	defaultQueueSize = 256
	sendTimeout      = 5 * time.Second
)

// Dispatcher queues signals and fans them out to every sink from its own
// goroutine. Signal drops the message when the queue is full.
type Dispatcher struct {
	sinks  []Sink
	queue  chan types.AlertMessage
	now    func() time.Time
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher; queueSize <= 0 uses the default
func NewDispatcher(queueSize int, logger zerolog.Logger, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		sinks:  sinks,
		queue:  make(chan types.AlertMessage, queueSize),
		now:    time.Now,
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

// AddSink registers another sink. Call before Run.
func (d *Dispatcher) AddSink(s Sink) {
	d.sinks = append(d.sinks, s)
}

// Signal implements alerts.Notifier
func (d *Dispatcher) Signal(kind types.AlertKind, name, message string) {
	msg := types.AlertMessage{
		Type:      "alert",
		Kind:      kind,
		Name:      name,
		Message:   message,
		Timestamp: d.now(),
	}
	select {
	case d.queue <- msg:
	default:
		metrics.Get().RecordNotifyDropped()
		d.logger.Warn().Str("name", name).Str("kind", string(kind)).Msg("notification queue full, dropping alert")
	}
}

// Run delivers queued messages until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info().Int("sinks", len(d.sinks)).Msg("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("dispatcher stopped")
			return
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg types.AlertMessage) {
	for _, s := range d.sinks {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := s.Send(sendCtx, msg)
		cancel()
		if err != nil {
			metrics.Get().RecordNotifyError()
			d.logger.Error().Err(err).Str("sink", s.Name()).Str("name", msg.Name).Msg("failed to deliver alert")
		}
	}
}

// LogSink writes alerts to the log
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "alerts").Logger()}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, msg types.AlertMessage) error {
	s.logger.Warn().
		Str("kind", string(msg.Kind)).
		Str("name", msg.Name).
		Msg(msg.Message)
	return nil
}
