package resurface

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/jpender/revisit/internal/store"
)

// legacyStaleDays is how long an ineligible item must sit untouched before
// the fallback considers it.
const legacyStaleDays = 14

// LegacyCandidate picks a resurface candidate among active items that never
// earned adaptive-queue eligibility: no annotations, no connections, and no
// update for at least 14 days. Selection is random so the same forgotten
// item doesn't monopolize the slot. The caller supplies the exclusion set
// (dismiss cooldowns, board opt-outs). Returns nil when nothing qualifies.
func (q *Queue) LegacyCandidate(excluding map[int64]bool, now time.Time) (*store.Item, error) {
	cutoff := now.Add(-legacyStaleDays * 24 * time.Hour).UnixMilli()
	items, err := q.db.ListStaleIneligible(cutoff)
	if err != nil {
		return nil, fmt.Errorf("legacy candidate: %w", err)
	}

	qualifying := items[:0]
	for i := range items {
		if !excluding[items[i].ID] && !items[i].ResurfacingPaused {
			qualifying = append(qualifying, items[i])
		}
	}
	if len(qualifying) == 0 {
		return nil, nil
	}

	pick := qualifying[rand.Intn(len(qualifying))]
	return &pick, nil
}
