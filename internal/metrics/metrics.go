package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/types"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Snapshot ingestion
	SnapshotsReceivedTotal    int64
	ObservationsReceivedTotal int64
	SnapshotErrorsTotal       int64
	activeFeeders             int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketMessagesTotal       int64
	WebSocketErrorsTotal         int64
	activeConnections            int64

	// Processing pass metrics
	PassesTotal        int64
	PassesDeferred     int64
	EntityErrorsTotal  int64
	RenderErrorsTotal  int64
	lastPassDuration   time.Duration
	lastPassEntities   int
	PersistErrorsTotal int64

	// Alert metrics
	alertsFired      map[types.AlertKind]int64
	alertsSuppressed map[types.AlertKind]int64
	NotifyDropped    int64
	NotifyErrors     int64

	// Entities per category on the last pass
	entitiesByCategory map[types.Category]int

	// HTTP metrics
	httpRequestsTotal map[string]map[int]int64 // endpoint -> status -> count

	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		alertsFired:        make(map[types.AlertKind]int64),
		alertsSuppressed:   make(map[types.AlertKind]int64),
		entitiesByCategory: make(map[types.Category]int),
		httpRequestsTotal:  make(map[string]map[int]int64),
		startTime:          time.Now(),
	}
}

// RecordSnapshot counts one accepted snapshot batch
func (m *Metrics) RecordSnapshot(observations int) {
	m.mu.Lock()
	m.SnapshotsReceivedTotal++
	m.ObservationsReceivedTotal += int64(observations)
	m.mu.Unlock()
}

// RecordSnapshotError counts a rejected snapshot batch
func (m *Metrics) RecordSnapshotError() {
	m.mu.Lock()
	m.SnapshotErrorsTotal++
	m.mu.Unlock()
}

func (m *Metrics) RecordFeederConnect() {
	m.mu.Lock()
	m.activeFeeders++
	m.mu.Unlock()
}

func (m *Metrics) RecordFeederDisconnect() {
	m.mu.Lock()
	m.activeFeeders--
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.mu.Lock()
	m.WebSocketMessagesTotal++
	m.mu.Unlock()
}

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.mu.Lock()
	m.WebSocketErrorsTotal++
	m.mu.Unlock()
}

// RecordPass records one completed processing pass
func (m *Metrics) RecordPass(duration time.Duration, entities int) {
	m.mu.Lock()
	m.PassesTotal++
	m.lastPassDuration = duration
	m.lastPassEntities = entities
	m.mu.Unlock()
}

// RecordPassDeferred counts a pass postponed by a busy source
func (m *Metrics) RecordPassDeferred() {
	m.mu.Lock()
	m.PassesDeferred++
	m.mu.Unlock()
}

func (m *Metrics) RecordEntityError() {
	m.mu.Lock()
	m.EntityErrorsTotal++
	m.mu.Unlock()
}

func (m *Metrics) RecordRenderError() {
	m.mu.Lock()
	m.RenderErrorsTotal++
	m.mu.Unlock()
}

func (m *Metrics) RecordPersistError() {
	m.mu.Lock()
	m.PersistErrorsTotal++
	m.mu.Unlock()
}

// RecordAlert counts an alert edge, delivered or withheld
func (m *Metrics) RecordAlert(kind types.AlertKind, suppressed bool) {
	m.mu.Lock()
	if suppressed {
		m.alertsSuppressed[kind]++
	} else {
		m.alertsFired[kind]++
	}
	m.mu.Unlock()
}

func (m *Metrics) RecordNotifyDropped() {
	m.mu.Lock()
	m.NotifyDropped++
	m.mu.Unlock()
}

func (m *Metrics) RecordNotifyError() {
	m.mu.Lock()
	m.NotifyErrors++
	m.mu.Unlock()
}

// UpdateCategoryStats replaces the per-category entity counts
func (m *Metrics) UpdateCategoryStats(counts map[types.Category]int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entitiesByCategory = make(map[types.Category]int, len(counts))
	for k, v := range counts {
		m.entitiesByCategory[k] = v
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		write("queuemonitor_uptime_seconds", time.Since(m.startTime).Seconds())

		write("queuemonitor_snapshots_received_total", m.SnapshotsReceivedTotal)
		write("queuemonitor_observations_received_total", m.ObservationsReceivedTotal)
		write("queuemonitor_snapshot_errors_total", m.SnapshotErrorsTotal)
		write("queuemonitor_feeders_active", m.activeFeeders)

		write("queuemonitor_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("queuemonitor_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("queuemonitor_websocket_active_connections", m.activeConnections)
		write("queuemonitor_websocket_messages_total", m.WebSocketMessagesTotal)
		write("queuemonitor_websocket_errors_total", m.WebSocketErrorsTotal)

		write("queuemonitor_passes_total", m.PassesTotal)
		write("queuemonitor_passes_deferred_total", m.PassesDeferred)
		write("queuemonitor_entity_errors_total", m.EntityErrorsTotal)
		write("queuemonitor_render_errors_total", m.RenderErrorsTotal)
		write("queuemonitor_persist_errors_total", m.PersistErrorsTotal)
		write("queuemonitor_pass_duration_seconds", m.lastPassDuration.Seconds())
		write("queuemonitor_entities_total", m.lastPassEntities)

		for _, kind := range sortedKinds(m.alertsFired) {
			write("queuemonitor_alerts_fired_total", m.alertsFired[kind], "kind", string(kind))
		}
		for _, kind := range sortedKinds(m.alertsSuppressed) {
			write("queuemonitor_alerts_suppressed_total", m.alertsSuppressed[kind], "kind", string(kind))
		}
		write("queuemonitor_notify_dropped_total", m.NotifyDropped)
		write("queuemonitor_notify_errors_total", m.NotifyErrors)

		for cat, count := range m.entitiesByCategory {
			write("queuemonitor_entities_by_category", count, "category", string(cat))
		}

		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("queuemonitor_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}

func sortedKinds(m map[types.AlertKind]int64) []types.AlertKind {
	out := make([]types.AlertKind, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
