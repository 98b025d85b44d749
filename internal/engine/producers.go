package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jpender/revisit/internal/config"
	"github.com/jpender/revisit/internal/store"
)

const (
	staleInboxAfter    = 14 * day
	staleInboxMinItems = 5

	connectionWindow   = 7 * day
	connectionMinGroup = 3

	streakMinDays = 3
)

// produceResurface asks the adaptive queue for its best overdue item and
// falls back to the legacy staleness path when the queue has nothing.
// The 30-day per-target dismissal cooldown is applied at selection, before
// markResurfaced: a cooled-down item is never stamped, and the next overdue
// item takes the slot.
func (e *Engine) produceResurface(ctx context.Context, now time.Time, set config.Nudges) (*store.Nudge, error) {
	optedOut, err := e.db.OptedOutItemIDs()
	if err != nil {
		return nil, err
	}
	dismissed, err := e.db.DismissedResurfaceTargets(now.Add(-standardCooldown).UnixMilli())
	if err != nil {
		return nil, err
	}

	exclude := make(map[int64]bool, len(optedOut)+len(dismissed))
	for id := range optedOut {
		exclude[id] = true
	}
	for id := range dismissed {
		exclude[id] = true
	}

	item, err := e.queue.NextCandidate(exclude, now)
	if err != nil {
		return nil, err
	}

	if item == nil {
		// Legacy fallback for items that never earned eligibility.
		item, err = e.queue.LegacyCandidate(exclude, now)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, nil
		}

		if err := e.queue.MarkResurfaced(item, now); err != nil {
			return nil, err
		}
		return &store.Nudge{
			Type:         store.NudgeResurface,
			Message:      fmt.Sprintf("%q has been sitting untouched for a while. Still relevant?", item.Title),
			TargetItemID: &item.ID,
		}, nil
	}

	msg := fmt.Sprintf("Time to revisit %q", item.Title)
	if extra := e.queue.Context(item); extra != "" {
		msg += ", " + extra
	}

	if err := e.queue.MarkResurfaced(item, now); err != nil {
		return nil, err
	}
	return &store.Nudge{
		Type:         store.NudgeResurface,
		Message:      msg,
		TargetItemID: &item.ID,
	}, nil
}

// produceStaleInbox fires when enough inbox items have gone untriaged for
// two weeks.
func (e *Engine) produceStaleInbox(ctx context.Context, now time.Time, set config.Nudges) (*store.Nudge, error) {
	count, err := e.db.CountStaleInbox(now.Add(-staleInboxAfter).UnixMilli())
	if err != nil {
		return nil, err
	}
	if count < staleInboxMinItems {
		return nil, nil
	}
	return &store.Nudge{
		Type:    store.NudgeStaleInbox,
		Message: fmt.Sprintf("Your inbox has %d items older than two weeks. A quick triage pass?", count),
	}, nil
}

// produceConnectionPrompt groups the week's new items by shared tag and
// fires for the largest group of three or more.
func (e *Engine) produceConnectionPrompt(ctx context.Context, now time.Time, set config.Nudges) (*store.Nudge, error) {
	groups, err := e.db.TagGroupsSince(now.Add(-connectionWindow).UnixMilli())
	if err != nil {
		return nil, err
	}

	tags := make([]string, 0, len(groups))
	for tag := range groups {
		tags = append(tags, tag)
	}
	sort.Strings(tags) // deterministic tie-break on group size

	bestTag := ""
	for _, tag := range tags {
		if len(groups[tag]) >= connectionMinGroup && (bestTag == "" || len(groups[tag]) > len(groups[bestTag])) {
			bestTag = tag
		}
	}
	if bestTag == "" {
		return nil, nil
	}

	ids := groups[bestTag]
	return &store.Nudge{
		Type:           store.NudgeConnectionPrompt,
		Message:        fmt.Sprintf("You saved %d notes tagged %q this week. Worth connecting them?", len(ids), bestTag),
		RelatedItemIDs: ids,
	}, nil
}

// produceStreak fires for the first board with at least three consecutive
// calendar days of item updates ending today. One streak nudge per tick.
func (e *Engine) produceStreak(ctx context.Context, now time.Time, set config.Nudges) (*store.Nudge, error) {
	boards, err := e.db.ListBoards()
	if err != nil {
		return nil, err
	}

	for i := range boards {
		board := &boards[i]
		if board.NudgeFrequencyHours == store.NudgesDisabled {
			continue
		}

		items, err := e.db.BoardItems(board.ID)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			continue
		}

		updatedDays := make(map[string]bool)
		for j := range items {
			updatedDays[dayKey(time.UnixMilli(items[j].UpdatedAt), now.Location())] = true
		}

		streak := 0
		for d := 0; ; d++ {
			if !updatedDays[dayKey(now.AddDate(0, 0, -d), now.Location())] {
				break
			}
			streak++
		}
		if streak < streakMinDays {
			continue
		}

		windowStart := now.AddDate(0, 0, -(streak - 1))
		dayStart := time.Date(windowStart.Year(), windowStart.Month(), windowStart.Day(), 0, 0, 0, 0, now.Location())
		var related []int64
		for j := range items {
			if items[j].UpdatedAt >= dayStart.UnixMilli() {
				related = append(related, items[j].ID)
			}
		}

		return &store.Nudge{
			Type:           store.NudgeStreak,
			Message:        fmt.Sprintf("%d days in a row on %s. Keep it going.", streak, board.Name),
			RelatedItemIDs: related,
		}, nil
	}
	return nil, nil
}

// produceContinueCourse fires for the first course with an unfinished next
// lecture. One per tick. The cooldown key is the whole course: the related
// set carries every lecture item, so dismissing one lecture's nudge quiets
// the course.
func (e *Engine) produceContinueCourse(ctx context.Context, now time.Time, set config.Nudges) (*store.Nudge, error) {
	courses, err := e.db.ListCourses()
	if err != nil {
		return nil, err
	}

	for i := range courses {
		course := &courses[i]
		lecture, err := e.db.NextLecture(course.ID)
		if err != nil {
			return nil, err
		}
		if lecture == nil {
			continue
		}

		msg := fmt.Sprintf("Continue %s with lecture %d, %q", course.Title, lecture.Position, lecture.Title)
		lectureItems, err := e.db.LectureItemIDs(course.ID)
		if err != nil {
			return nil, err
		}

		if lecture.ItemID != nil {
			tags, err := e.db.GetItemTags(*lecture.ItemID)
			if err != nil {
				return nil, err
			}
			related, err := e.db.CountItemsSharingTags(tags, lectureItems)
			if err != nil {
				return nil, err
			}
			if related == 1 {
				msg += " (1 related note in your library)"
			} else if related > 1 {
				msg += fmt.Sprintf(" (%d related notes in your library)", related)
			}
		}

		return &store.Nudge{
			Type:           store.NudgeContinueCourse,
			Message:        msg,
			TargetItemID:   lecture.ItemID,
			RelatedItemIDs: lectureItems,
		}, nil
	}
	return nil, nil
}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
