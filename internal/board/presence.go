package board

import (
	"strings"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/classifier"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
)

// Presence answers, for each query, whether a connected entity's name
// contains it. Matching ignores case, accents and extra spaces. It reads a
// published board only and is safe to call from any goroutine.
func Presence(b *types.Board, queries []string, now time.Time) []types.PresenceResult {
	out := make([]types.PresenceResult, 0, len(queries))
	for _, q := range queries {
		res := types.PresenceResult{Query: q}
		needle := classifier.Normalize(q)
		if needle != "" && b != nil {
			if card, ok := find(b, needle); ok {
				res.Name = card.Name
				res.Connected = true
				res.Category = card.Category
				res.StatusMs = card.StatusMs
				if !card.StatusStart.IsZero() {
					res.StatusMs = elapsedMs(card.StatusStart, now)
				}
			}
		}
		out = append(out, res)
	}
	return out
}

func find(b *types.Board, needle string) (types.EntityCard, bool) {
	for _, s := range b.Sections {
		if s.Key == SectionFavorites {
			continue
		}
		for _, card := range s.Entities {
			if strings.Contains(classifier.Normalize(card.Name), needle) {
				return card, true
			}
		}
	}
	return types.EntityCard{}, false
}

// MatchesSearch reports whether name passes the operator search filter
func MatchesSearch(name, search string) bool {
	needle := classifier.Normalize(search)
	if needle == "" {
		return true
	}
	return strings.Contains(classifier.Normalize(name), needle)
}
