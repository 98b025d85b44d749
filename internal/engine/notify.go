package engine

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/jpender/revisit/internal/store"
)

// Notifier is the delivery hook called after a nudge is persisted.
// Delivery is an external concern: failures never flow back into the nudge
// state machine, so the methods return nothing.
type Notifier interface {
	ScheduleNudge(n *store.Nudge)
	ScheduleDigest(now time.Time)
}

// LogNotifier records notification intents in the log. The default when no
// platform delivery is wired.
type LogNotifier struct {
	Log zerolog.Logger
}

func (l *LogNotifier) ScheduleNudge(n *store.Nudge) {
	l.Log.Debug().Int64("nudge", n.ID).Str("type", string(n.Type)).Msg("notification scheduled")
}

func (l *LogNotifier) ScheduleDigest(now time.Time) {
	l.Log.Debug().Time("at", now).Msg("weekly digest scheduled")
}

// DigestTrigger decides whether the weekly digest notification is due.
type DigestTrigger interface {
	Evaluate(now time.Time) (bool, error)
}

const digestMark = "digest_scheduled_at"

// WeeklyDigest fires at most once every seven days, tracked through an
// engine bookkeeping mark so the cadence survives restarts.
type WeeklyDigest struct {
	DB *store.DB
}

func (w *WeeklyDigest) Evaluate(now time.Time) (bool, error) {
	last, err := w.DB.GetMark(digestMark)
	if err != nil {
		return false, err
	}
	if last != nil && *last > now.Add(-7*day).UnixMilli() {
		return false, nil
	}
	if err := w.DB.SetMark(digestMark, now.UnixMilli()); err != nil {
		return false, err
	}
	return true, nil
}
