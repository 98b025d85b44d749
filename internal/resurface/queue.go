// Package resurface owns the adaptive per-item review interval and answers
// due-ness queries.
//
// The interval algorithm:
//   - Default 7 days at item creation
//   - Doubles on each recorded engagement, capped at 180 days
//   - Resets to 7 after 60 days of dormancy (a long-ignored item re-enters
//     frequent rotation instead of staying parked at a large interval)
//
// Only eligible items (at least one annotation or connection) participate.
// Items without engagement artifacts are served by the simpler legacy
// staleness fallback in legacy.go.
package resurface

import (
	"fmt"
	"time"

	"github.com/jpender/revisit/internal/store"
)

const (
	// DefaultIntervalDays is the interval assigned at creation and on
	// staleness reset.
	DefaultIntervalDays = 7

	// MaxIntervalDays caps engagement doubling.
	MaxIntervalDays = 180

	// staleAfterDays is the dormancy window after which the interval resets.
	staleAfterDays = 60
)

// Queue answers due-ness queries and mutates per-item resurfacing state.
type Queue struct {
	db *store.DB
}

// NewQueue creates a Queue over the given store.
func NewQueue(db *store.DB) *Queue {
	return &Queue{db: db}
}

// NextResurfaceDate returns when the item next becomes due, or nil for
// items that are ineligible, paused, or not active. The reference point is
// the most specific known interaction: last resurfaced, else last engaged,
// else created.
func NextResurfaceDate(item *store.Item) *time.Time {
	if !item.Eligible() || item.ResurfacingPaused || item.Status != store.ItemActive {
		return nil
	}

	ref := item.CreatedAt
	if item.LastEngagedAt != nil {
		ref = *item.LastEngagedAt
	}
	if item.LastResurfacedAt != nil {
		ref = *item.LastResurfacedAt
	}

	due := time.UnixMilli(ref).Add(time.Duration(item.ResurfaceIntervalDays) * 24 * time.Hour)
	return &due
}

// IsOverdue reports whether the item has a next resurface date at or
// before now.
func IsOverdue(item *store.Item, now time.Time) bool {
	due := NextResurfaceDate(item)
	return due != nil && !due.After(now)
}

// NextCandidate selects the adaptive queue's best overdue item: earliest
// next-resurface date first, ties broken by lowest resurface count so
// less-reviewed material wins. Returns nil when nothing is due.
func (q *Queue) NextCandidate(excluding map[int64]bool, now time.Time) (*store.Item, error) {
	items, err := q.db.ListActiveItems()
	if err != nil {
		return nil, fmt.Errorf("next candidate: %w", err)
	}

	var best *store.Item
	var bestDue time.Time
	for i := range items {
		item := &items[i]
		if excluding[item.ID] || !IsOverdue(item, now) {
			continue
		}
		due := *NextResurfaceDate(item)
		if best == nil || due.Before(bestDue) ||
			(due.Equal(bestDue) && item.ResurfaceCount < best.ResurfaceCount) {
			best = item
			bestDue = due
		}
	}
	return best, nil
}

// RecordEngagement notes that the user acted on the item. If the item is
// already in the adaptive queue, the interval doubles (capped) and the
// resurface count advances.
func (q *Queue) RecordEngagement(item *store.Item, now time.Time) error {
	at := now.UnixMilli()
	if item.Eligible() {
		doubled := item.ResurfaceIntervalDays * 2
		if doubled > MaxIntervalDays {
			doubled = MaxIntervalDays
		}
		item.ResurfaceIntervalDays = doubled
		item.ResurfaceCount++
	}
	item.LastEngagedAt = &at
	if err := q.db.SaveResurfaceState(item); err != nil {
		return fmt.Errorf("record engagement: %w", err)
	}
	return nil
}

// MarkResurfaced stamps the item as surfaced. Surfacing is not itself
// engagement: the interval does not change here.
func (q *Queue) MarkResurfaced(item *store.Item, now time.Time) error {
	at := now.UnixMilli()
	item.LastResurfacedAt = &at
	if err := q.db.SaveResurfaceState(item); err != nil {
		return fmt.Errorf("mark resurfaced: %w", err)
	}
	return nil
}

// ResetStaleIntervals resets the interval to the default for every eligible
// item whose most recent resurface or engagement is more than 60 days old.
// Returns the number of items reset.
func (q *Queue) ResetStaleIntervals(now time.Time) (int, error) {
	items, err := q.db.ListEligibleItems()
	if err != nil {
		return 0, fmt.Errorf("reset stale intervals: %w", err)
	}

	cutoff := now.Add(-staleAfterDays * 24 * time.Hour).UnixMilli()
	reset := 0
	for i := range items {
		item := &items[i]

		var ref int64
		if item.LastResurfacedAt != nil {
			ref = *item.LastResurfacedAt
		}
		if item.LastEngagedAt != nil && *item.LastEngagedAt > ref {
			ref = *item.LastEngagedAt
		}
		// Never surfaced or engaged: the interval has never grown, nothing
		// to reset.
		if ref == 0 {
			continue
		}

		if ref >= cutoff || item.ResurfaceIntervalDays == DefaultIntervalDays {
			continue
		}

		item.ResurfaceIntervalDays = DefaultIntervalDays
		if err := q.db.SaveResurfaceState(item); err != nil {
			return reset, fmt.Errorf("reset stale intervals: %w", err)
		}
		reset++
	}
	return reset, nil
}

// Context returns a short human-readable string enriching a resurface
// nudge message: the item's first board, else its annotation count. Pure
// presentation, no state change.
func (q *Queue) Context(item *store.Item) string {
	boards, err := q.db.BoardsForItem(item.ID)
	if err == nil && len(boards) > 0 {
		return fmt.Sprintf("from your %s board", boards[0].Name)
	}
	if item.AnnotationCount == 1 {
		return "with 1 annotation"
	}
	if item.AnnotationCount > 1 {
		return fmt.Sprintf("with %d annotations", item.AnnotationCount)
	}
	return ""
}

// Stats aggregates the adaptive queue's state.
type Stats struct {
	TotalInQueue int `json:"total_in_queue"`
	Upcoming     int `json:"upcoming"`
	Overdue      int `json:"overdue"`
	Paused       int `json:"paused"`
}

// Stats returns counts over eligible active items.
func (q *Queue) Stats(now time.Time) (Stats, error) {
	items, err := q.db.ListActiveItems()
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}

	var s Stats
	for i := range items {
		item := &items[i]
		if !item.Eligible() {
			continue
		}
		s.TotalInQueue++
		if item.ResurfacingPaused {
			s.Paused++
			continue
		}
		if IsOverdue(item, now) {
			s.Overdue++
		} else {
			s.Upcoming++
		}
	}
	return s, nil
}
