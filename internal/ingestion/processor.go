package ingestion

import (
	"strings"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/duration"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
)

// Prepare cleans a batch before it is cached: names are trimmed, empty names
// dropped, duplicate names keep their first observation and textual elapsed
// hints are parsed when the numeric hint is absent.
func Prepare(batch types.SnapshotBatch, now time.Time) types.SnapshotBatch {
	seen := make(map[string]struct{}, len(batch.Observations))
	out := make([]types.Observation, 0, len(batch.Observations))

	for _, obs := range batch.Observations {
		obs.Name = strings.TrimSpace(obs.Name)
		if obs.Name == "" {
			continue
		}
		if _, dup := seen[obs.Name]; dup {
			continue
		}
		seen[obs.Name] = struct{}{}

		obs.StatusElapsedSec = resolveHint(obs.StatusElapsedSec, obs.StatusElapsedText)
		obs.CallElapsedSec = resolveHint(obs.CallElapsedSec, obs.CallElapsedText)
		obs.TaskCallElapsedSec = resolveHint(obs.TaskCallElapsedSec, obs.TaskCallElapsedText)
		if len(obs.ChatElapsedSec) == 0 && len(obs.ChatElapsedText) > 0 {
			obs.ChatElapsedSec = duration.ParseMany(obs.ChatElapsedText)
		}
		out = append(out, obs)
	}

	batch.Observations = out
	if batch.SentAt.IsZero() {
		batch.SentAt = now
	}
	return batch
}

func resolveHint(sec *int, text string) *int {
	if sec != nil {
		if *sec < 0 {
			return nil
		}
		return sec
	}
	if text == "" {
		return nil
	}
	if s, ok := duration.Parse(text); ok {
		return &s
	}
	return nil
}
