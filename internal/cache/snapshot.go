package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/types"
)

// DefaultBusyTTL bounds how long a busy flag holds back processing when the
// feeder stops sending.
const DefaultBusyTTL = 5 * time.Second

// SnapshotCache holds the newest snapshot batch. Snapshots are ephemeral: a
// new batch replaces the previous one entirely.
type SnapshotCache struct {
	mu        sync.RWMutex
	latest    types.SnapshotBatch
	version   uint64
	busyUntil time.Time
	busyTTL   time.Duration
	now       func() time.Time
}

// NewSnapshotCache creates an empty cache
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{
		busyTTL: DefaultBusyTTL,
		now:     time.Now,
	}
}

// Put replaces the cached batch
func (c *SnapshotCache) Put(batch types.SnapshotBatch) {
	c.mu.Lock()
	c.latest = batch
	c.version++
	if batch.Busy {
		c.busyUntil = c.now().Add(c.busyTTL)
	} else {
		c.busyUntil = time.Time{}
	}
	c.mu.Unlock()
}

// PollOnce implements ingestion.Source
func (c *SnapshotCache) PollOnce(_ context.Context) ([]types.Observation, uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.version == 0 {
		return nil, 0, nil
	}
	return append([]types.Observation(nil), c.latest.Observations...), c.version, nil
}

// Busy implements ingestion.Source
func (c *SnapshotCache) Busy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now().Before(c.busyUntil)
}

// Version increments on every Put
func (c *SnapshotCache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Size returns the number of observations in the cached batch
func (c *SnapshotCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.latest.Observations)
}

// LastReceived returns when the cached batch was sent
func (c *SnapshotCache) LastReceived() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest.SentAt
}
