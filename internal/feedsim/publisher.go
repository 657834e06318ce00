package feedsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// HTTPPublisher posts batches to the monitor's snapshot endpoint
type HTTPPublisher struct {
	url        string
	httpClient *http.Client
}

// NewHTTPPublisher creates a publisher for backendURL
func NewHTTPPublisher(backendURL string) *HTTPPublisher {
	return &HTTPPublisher{
		url: strings.TrimRight(backendURL, "/") + "/internal/snapshot",
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (p *HTTPPublisher) Publish(ctx context.Context, batch types.SnapshotBatch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}
	return nil
}

// WSPublisher streams batches over the feeder websocket, dialing lazily and
// redialing after a failed write.
type WSPublisher struct {
	url      string
	feederID string
	dialer   *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn

	acks   int64
	logger zerolog.Logger
}

// NewWSPublisher creates a publisher for backendURL (http or ws scheme)
func NewWSPublisher(backendURL, feederID string, logger zerolog.Logger) *WSPublisher {
	u := strings.TrimRight(backendURL, "/")
	u = strings.Replace(u, "http://", "ws://", 1)
	u = strings.Replace(u, "https://", "wss://", 1)

	return &WSPublisher{
		url:      u + "/internal/feed",
		feederID: feederID,
		dialer:   &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		logger:   logger.With().Str("component", "ws_publisher").Logger(),
	}
}

func (p *WSPublisher) Publish(ctx context.Context, batch types.SnapshotBatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		if err := p.connect(ctx); err != nil {
			return err
		}
	}

	p.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	err := p.conn.WriteJSON(types.FeedMessage{Type: "snapshot", SnapshotBatch: batch})
	if err != nil {
		p.conn.Close()
		p.conn = nil
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// connect must be called with mu held
func (p *WSPublisher) connect(ctx context.Context) error {
	conn, _, err := p.dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", p.url, err)
	}

	if p.feederID != "" {
		if err := conn.WriteJSON(types.FeedMessage{Type: "register", FeederID: p.feederID}); err != nil {
			conn.Close()
			return fmt.Errorf("register feeder: %w", err)
		}
	}

	p.conn = conn
	go p.readAcks(conn)

	p.logger.Info().Str("url", p.url).Str("feeder_id", p.feederID).Msg("feeder connected")
	return nil
}

func (p *WSPublisher) readAcks(conn *websocket.Conn) {
	for {
		var ack types.FeedAck
		if err := conn.ReadJSON(&ack); err != nil {
			return
		}
		if ack.Type == "ack" {
			atomic.AddInt64(&p.acks, 1)
		}
	}
}

// Acks returns how many batches the monitor acknowledged
func (p *WSPublisher) Acks() int64 {
	return atomic.LoadInt64(&p.acks)
}

// Close closes the current connection, if any
func (p *WSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
