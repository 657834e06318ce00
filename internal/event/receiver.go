package event

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/cache"
	"github.com/dennisdiepolder/queuemonitor/internal/ingestion"
	"github.com/dennisdiepolder/queuemonitor/internal/metrics"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/rs/zerolog"
)

// maxBatchBytes bounds one snapshot request body
const maxBatchBytes = 4 << 20

// Receiver accepts snapshot batches pushed by feeders over HTTP
type Receiver struct {
	cache           *cache.SnapshotCache
	logger          zerolog.Logger
	batchesReceived int64
	lastReceived    time.Time
	mu              sync.RWMutex
}

// NewReceiver creates a new snapshot receiver
func NewReceiver(cache *cache.SnapshotCache, logger zerolog.Logger) *Receiver {
	return &Receiver{
		cache:  cache,
		logger: logger.With().Str("component", "receiver").Logger(),
	}
}

// HandleSnapshot receives one batch and replaces the cached snapshot
func (r *Receiver) HandleSnapshot(w http.ResponseWriter, req *http.Request) {
	m := metrics.Get()

	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var batch types.SnapshotBatch
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBatchBytes)).Decode(&batch); err != nil {
		r.logger.Error().Err(err).Msg("failed to decode snapshot")
		m.RecordSnapshotError()
		http.Error(w, "invalid snapshot", http.StatusBadRequest)
		return
	}

	now := time.Now()
	batch = ingestion.Prepare(batch, now)
	r.cache.Put(batch)
	m.RecordSnapshot(len(batch.Observations))

	count := atomic.AddInt64(&r.batchesReceived, 1)
	r.mu.Lock()
	r.lastReceived = now
	r.mu.Unlock()

	if count%1000 == 0 {
		r.logger.Info().
			Int64("total_received", count).
			Int("observations", len(batch.Observations)).
			Msg("snapshots received")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]int{"accepted": len(batch.Observations)})
}

// GetStats returns receiver statistics
func (r *Receiver) GetStats(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	lastReceived := r.lastReceived
	r.mu.RUnlock()

	stats := map[string]interface{}{
		"batches_received": atomic.LoadInt64(&r.batchesReceived),
		"last_received":    lastReceived,
		"observations":     r.cache.Size(),
		"busy":             r.cache.Busy(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
