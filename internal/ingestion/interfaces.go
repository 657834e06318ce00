package ingestion

import (
	"context"

	"github.com/dennisdiepolder/queuemonitor/internal/types"
)

// Source provides the observations of one processing pass. Implementations
// may be fed over HTTP, a websocket feeder or a test fixture.
type Source interface {
	// PollOnce returns the newest batch and its version. The version is 0
	// until a first batch arrived and changes with every new batch, so a
	// caller can tell a fresh observation from a re-read of the same one.
	PollOnce(ctx context.Context) (obs []types.Observation, version uint64, err error)

	// Busy reports the host "menu open / editing" precondition. A busy source
	// defers the pass instead of skipping it.
	Busy() bool
}
