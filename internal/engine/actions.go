package engine

import (
	"fmt"
	"time"

	"github.com/jpender/revisit/internal/store"
)

// ShowNudge records passive display: pending to shown.
func (e *Engine) ShowNudge(id int64, now time.Time) error {
	return e.db.MarkShown(id, now.UnixMilli())
}

// DismissNudge applies a user dismissal and bumps the per-type analytics
// counter. The counter write is best-effort; the dismissal stands either
// way.
func (e *Engine) DismissNudge(id int64, now time.Time) error {
	n, err := e.db.GetNudge(id)
	if err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("nudge %d not found", id)
	}
	if err := e.db.DismissNudge(id, now.UnixMilli()); err != nil {
		return err
	}
	if err := e.db.BumpDismissed(n.Type); err != nil {
		e.log.Warn().Err(err).Msg("dismiss counter suppressed")
	}
	return nil
}

// ActOnNudge applies a user action: the terminal acted_on transition, the
// analytics counter, and the explicit engagement side effect on the target
// item. The target is a weak reference, so a since-deleted item is skipped
// silently.
func (e *Engine) ActOnNudge(id int64, now time.Time) error {
	n, err := e.db.GetNudge(id)
	if err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("nudge %d not found", id)
	}
	if err := e.db.MarkActedOn(id, now.UnixMilli()); err != nil {
		return err
	}
	if err := e.db.BumpActedOn(n.Type); err != nil {
		e.log.Warn().Err(err).Msg("act counter suppressed")
	}

	if n.TargetItemID != nil {
		item, err := e.db.GetItem(*n.TargetItemID)
		if err != nil {
			e.log.Warn().Err(err).Msg("engagement lookup suppressed")
			return nil
		}
		if item == nil {
			return nil
		}
		if err := e.queue.RecordEngagement(item, now); err != nil {
			e.log.Warn().Err(err).Msg("engagement record suppressed")
		}
	}
	return nil
}

// ResolveTarget looks up a nudge's target item, which may no longer exist.
func (e *Engine) ResolveTarget(n *store.Nudge) (*store.Item, error) {
	if n.TargetItemID == nil {
		return nil, nil
	}
	return e.db.GetItem(*n.TargetItemID)
}
