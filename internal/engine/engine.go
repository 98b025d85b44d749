// Package engine orchestrates nudge generation. A tick evaluates every
// enabled producer in a fixed priority order under a global daily cap,
// per-type dedup and dismissal cooldowns, and per-board opt-outs. No
// producer failure is fatal: a failed producer contributes nothing and the
// tick moves on.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/jpender/revisit/internal/config"
	"github.com/jpender/revisit/internal/resurface"
	"github.com/jpender/revisit/internal/store"
)

const (
	day = 24 * time.Hour

	// highEngagementActedOn is the acted-on count over the trailing week
	// that lifts the daily cap.
	highEngagementActedOn = 3

	// standardCooldown suppresses a matching nudge type after a dismissal.
	standardCooldown = 30 * day
	checkInCooldown  = 7 * day
)

// Engine is the nudge orchestrator. One logical owner: ticks never run
// concurrently with each other or with entity mutation.
type Engine struct {
	db    *store.DB
	queue *resurface.Queue
	log   zerolog.Logger

	smart    SmartNudger
	checkIn  CheckInEvaluator
	digest   DigestTrigger
	notifier Notifier

	smartRan atomic.Bool // the smart producer fires at most once per process
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates an Engine over the store. Collaborators default to off; wire
// them with the setters.
func New(db *store.DB, log zerolog.Logger) *Engine {
	return &Engine{
		db:       db,
		queue:    resurface.NewQueue(db),
		log:      log,
		notifier: &LogNotifier{Log: log},
		stopCh:   make(chan struct{}),
	}
}

// Queue exposes the resurfacing queue (stats endpoints, CLI).
func (e *Engine) Queue() *resurface.Queue { return e.queue }

// SetSmart configures the LLM-backed smart producer.
func (e *Engine) SetSmart(s SmartNudger) { e.smart = s }

// SetCheckIn configures the dialectical check-in collaborator.
func (e *Engine) SetCheckIn(c CheckInEvaluator) { e.checkIn = c }

// SetDigest configures the weekly digest trigger.
func (e *Engine) SetDigest(d DigestTrigger) { e.digest = d }

// SetNotifier overrides the delivery hook.
func (e *Engine) SetNotifier(n Notifier) { e.notifier = n }

// Outcome classifies what a producer contributed to a tick. Suppressed
// errors are reported distinctly from "legitimately nothing to do" even
// though both leave no nudge behind.
type Outcome string

const (
	OutcomeCreated     Outcome = "created"
	OutcomeNoCandidate Outcome = "no_candidate"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeError       Outcome = "error"
)

// ProducerResult is one producer's tri-state outcome for a tick.
type ProducerResult struct {
	Producer string  `json:"producer"`
	Outcome  Outcome `json:"outcome"`
	Reason   string  `json:"reason,omitempty"`
	NudgeID  int64   `json:"nudge_id,omitempty"`
}

// Report summarizes a tick.
type Report struct {
	At             time.Time        `json:"at"`
	IntervalsReset int              `json:"intervals_reset"`
	Created        int              `json:"created"`
	Results        []ProducerResult `json:"results"`
}

type producer struct {
	name    string
	typ     store.NudgeType
	enabled bool
	gen     func(ctx context.Context, now time.Time, set config.Nudges) (*store.Nudge, error)
}

// Tick runs one orchestration pass. It is a function of (now, settings,
// stored data): nothing is read ambiently, and the only side effects are
// persisted nudges, resurfacing-state updates, and notification hooks.
func (e *Engine) Tick(ctx context.Context, now time.Time, set config.Nudges) Report {
	rep := Report{At: now}

	if n, err := e.queue.ResetStaleIntervals(now); err != nil {
		e.log.Warn().Err(err).Msg("reset stale intervals")
	} else {
		rep.IntervalsReset = n
	}

	resurfaceOn := set.EnableResurface && set.ResurfacingEnabled && !set.ResurfacingPaused
	producers := []producer{
		{name: "resurface", typ: store.NudgeResurface, enabled: resurfaceOn, gen: e.produceResurface},
		{name: "stale_inbox", typ: store.NudgeStaleInbox, enabled: set.EnableStaleInbox, gen: e.produceStaleInbox},
		{name: "connection_prompt", typ: store.NudgeConnectionPrompt, enabled: set.EnableConnectionPrompt, gen: e.produceConnectionPrompt},
		{name: "streak", typ: store.NudgeStreak, enabled: set.EnableStreak, gen: e.produceStreak},
		{name: "continue_course", typ: store.NudgeContinueCourse, enabled: set.EnableContinueCourse, gen: e.produceContinueCourse},
	}
	for _, p := range producers {
		res := e.runProducer(ctx, p, now, set)
		if res.Outcome == OutcomeCreated {
			rep.Created++
		}
		rep.Results = append(rep.Results, res)
	}

	e.dispatchSmart(set)

	rep.Results = append(rep.Results, e.runDigest(now, set))

	res := e.runProducer(ctx, producer{
		name:    "check_in",
		typ:     store.NudgeCheckIn,
		enabled: set.EnableCheckIn && e.checkIn != nil,
		gen:     e.produceCheckIn,
	}, now, set)
	if res.Outcome == OutcomeCreated {
		rep.Created++
	}
	rep.Results = append(rep.Results, res)

	return rep
}

// runProducer applies the shared policy around one producer: admission
// gate, type dedup, generation, dismissal cooldown, board opt-out, persist,
// notify. Any data-access failure downgrades to "no candidate".
func (e *Engine) runProducer(ctx context.Context, p producer, now time.Time, set config.Nudges) ProducerResult {
	res := ProducerResult{Producer: p.name}

	if !p.enabled {
		res.Outcome, res.Reason = OutcomeSkipped, "disabled"
		return res
	}

	admitted, err := e.admission(now, set)
	if err != nil {
		return e.suppress(res, p.name, "admission check", err)
	}
	if !admitted {
		res.Outcome, res.Reason = OutcomeSkipped, "daily cap reached"
		return res
	}

	active, err := e.db.HasActiveNudge(p.typ)
	if err != nil {
		return e.suppress(res, p.name, "dedup check", err)
	}
	if active {
		res.Outcome, res.Reason = OutcomeSkipped, "active nudge of this type"
		return res
	}

	cand, err := p.gen(ctx, now, set)
	if err != nil {
		return e.suppress(res, p.name, "generate", err)
	}
	if cand == nil {
		res.Outcome = OutcomeNoCandidate
		return res
	}

	blocked, err := e.underCooldown(p.typ, cand, now)
	if err != nil {
		return e.suppress(res, p.name, "cooldown check", err)
	}
	if blocked {
		res.Outcome, res.Reason = OutcomeSkipped, "dismissal cooldown"
		return res
	}

	optedOut, err := e.targetOptedOut(cand)
	if err != nil {
		return e.suppress(res, p.name, "opt-out check", err)
	}
	if optedOut {
		res.Outcome, res.Reason = OutcomeSkipped, "all boards opted out"
		return res
	}

	if err := e.db.CreateNudge(cand, now.UnixMilli()); err != nil {
		return e.suppress(res, p.name, "persist", err)
	}
	e.notifier.ScheduleNudge(cand)

	e.log.Debug().Str("producer", p.name).Int64("nudge", cand.ID).Msg("nudge created")
	res.Outcome = OutcomeCreated
	res.NudgeID = cand.ID
	return res
}

// suppress logs a producer failure and converts it to a non-fatal outcome.
func (e *Engine) suppress(res ProducerResult, producer, stage string, err error) ProducerResult {
	e.log.Warn().Err(err).Str("producer", producer).Str("stage", stage).Msg("producer failure suppressed")
	res.Outcome = OutcomeError
	res.Reason = stage
	return res
}

// admission decides whether another nudge may be produced this tick:
// under the daily cap, or over it with high recent engagement.
func (e *Engine) admission(now time.Time, set config.Nudges) (bool, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := e.db.CountCreatedSince(midnight.UnixMilli())
	if err != nil {
		return false, err
	}
	if today < set.MaxPerDay {
		return true, nil
	}
	acted, err := e.db.CountActedOnSince(now.Add(-7 * day).UnixMilli())
	if err != nil {
		return false, err
	}
	return acted >= highEngagementActedOn, nil
}

// underCooldown reports whether a matching nudge of this type was dismissed
// within the type's window. Matching: shared related-item overlap for
// cluster types (two shared items for connection prompts, one otherwise),
// same target item for item-targeted types, any dismissal for the rest.
func (e *Engine) underCooldown(t store.NudgeType, cand *store.Nudge, now time.Time) (bool, error) {
	window := cooldownWindow(t)
	if window == 0 {
		return false, nil
	}

	dismissed, err := e.db.DismissedSince(t, now.Add(-window).UnixMilli())
	if err != nil {
		return false, err
	}
	if len(dismissed) == 0 {
		return false, nil
	}

	switch {
	case len(cand.RelatedItemIDs) > 0:
		threshold := 1
		if t == store.NudgeConnectionPrompt {
			threshold = 2
		}
		for i := range dismissed {
			if overlap(cand.RelatedItemIDs, dismissed[i].RelatedItemIDs) >= threshold {
				return true, nil
			}
		}
		return false, nil
	case cand.TargetItemID != nil:
		for i := range dismissed {
			if dismissed[i].TargetItemID != nil && *dismissed[i].TargetItemID == *cand.TargetItemID {
				return true, nil
			}
		}
		return false, nil
	default:
		return true, nil
	}
}

func cooldownWindow(t store.NudgeType) time.Duration {
	switch t {
	case store.NudgeResurface, store.NudgeStaleInbox, store.NudgeConnectionPrompt,
		store.NudgeStreak, store.NudgeContinueCourse:
		return standardCooldown
	case store.NudgeCheckIn:
		return checkInCooldown
	default:
		// LLM-sourced types rely on dedup alone.
		return 0
	}
}

// targetOptedOut reports whether the candidate targets an item whose every
// board has nudging disabled.
func (e *Engine) targetOptedOut(cand *store.Nudge) (bool, error) {
	if cand.TargetItemID == nil {
		return false, nil
	}
	boards, err := e.db.BoardsForItem(*cand.TargetItemID)
	if err != nil {
		return false, err
	}
	if len(boards) == 0 {
		return false, nil
	}
	for i := range boards {
		if boards[i].NudgeFrequencyHours != store.NudgesDisabled {
			return false, nil
		}
	}
	return true, nil
}

func (e *Engine) runDigest(now time.Time, set config.Nudges) ProducerResult {
	res := ProducerResult{Producer: "digest"}
	if !set.EnableDigest || e.digest == nil {
		res.Outcome, res.Reason = OutcomeSkipped, "disabled"
		return res
	}
	// Admission runs before Evaluate so a blocked tick does not consume
	// the weekly mark.
	admitted, err := e.admission(now, set)
	if err != nil {
		return e.suppress(res, "digest", "admission check", err)
	}
	if !admitted {
		res.Outcome, res.Reason = OutcomeSkipped, "daily cap reached"
		return res
	}
	fire, err := e.digest.Evaluate(now)
	if err != nil {
		return e.suppress(res, "digest", "evaluate", err)
	}
	if !fire {
		res.Outcome = OutcomeNoCandidate
		return res
	}
	e.notifier.ScheduleDigest(now)
	res.Outcome = OutcomeCreated
	return res
}

func overlap(a, b []int64) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[int64]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	n := 0
	for _, id := range b {
		if set[id] {
			n++
		}
	}
	return n
}

// StartScheduler runs one tick immediately (the launch invocation) and
// then periodically. Settings are re-read before every run so config edits
// take effect without a restart. There is no persistent schedule: due-ness
// derives from stored timestamps, so a missed wake-up is corrected by the
// next launch tick.
func (e *Engine) StartScheduler(settings func() config.Nudges) {
	run := func() {
		set := settings()
		rep := e.Tick(context.Background(), time.Now(), set)
		e.log.Info().Int("created", rep.Created).Int("intervals_reset", rep.IntervalsReset).Msg("tick complete")
	}

	run()

	go func() {
		for {
			interval := time.Duration(settings().ScheduleIntervalHours) * time.Hour
			select {
			case <-time.After(interval):
				run()
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the scheduler and waits for in-flight async producers.
// Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

// Wait blocks until in-flight async producers finish. Tests use this to
// observe the smart path deterministically.
func (e *Engine) Wait() {
	e.wg.Wait()
}
