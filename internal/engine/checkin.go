package engine

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jpender/revisit/internal/config"
	"github.com/jpender/revisit/internal/llm"
	"github.com/jpender/revisit/internal/store"
)

// Check-in trigger kinds, in evaluation priority order.
const (
	TriggerContradiction = "contradiction"
	TriggerKnowledgeGap  = "knowledge_gap"
	TriggerStaleness     = "staleness"
	TriggerPeriodic      = "periodic"
)

// CheckInSuggestion is the dialectical check-in collaborator's candidate.
type CheckInSuggestion struct {
	TriggerKind   string
	Message       string
	OpeningPrompt string
	SeedItemIDs   []int64
	BoardID       *int64
}

// CheckInEvaluator is the check-in trigger contract. The orchestrator
// treats the result as a single opaque candidate; prioritization happens
// inside the collaborator.
type CheckInEvaluator interface {
	Evaluate(ctx context.Context, now time.Time) (*CheckInSuggestion, error)
}

// produceCheckIn adapts the collaborator into the producer pipeline so the
// shared admission, dedup, and cooldown policy applies to it.
func (e *Engine) produceCheckIn(ctx context.Context, now time.Time, set config.Nudges) (*store.Nudge, error) {
	sug, err := e.checkIn.Evaluate(ctx, now)
	if err != nil {
		return nil, err
	}
	if sug == nil {
		return nil, nil
	}
	return &store.Nudge{
		Type:           store.NudgeCheckIn,
		Message:        sug.Message,
		TriggerKind:    sug.TriggerKind,
		OpeningPrompt:  sug.OpeningPrompt,
		RelatedItemIDs: sug.SeedItemIDs,
	}, nil
}

const (
	checkInStalenessAfter = 21 * day
	checkInPeriodicEvery  = 14 * day
	checkInSeedLimit      = 8
)

// CheckInService is the default evaluator: contradiction > knowledge gap >
// staleness > periodic. The first two need an LLM and are skipped without
// one; LLM failures demote to "trigger does not apply".
type CheckInService struct {
	db      *store.DB
	client  llm.Client
	timeout time.Duration
	log     zerolog.Logger
}

// NewCheckInService creates the default check-in evaluator. client may be
// nil, which limits evaluation to the heuristic triggers.
func NewCheckInService(db *store.DB, client llm.Client, log zerolog.Logger) *CheckInService {
	return &CheckInService{db: db, client: client, timeout: 45 * time.Second, log: log}
}

// Evaluate walks the trigger priority chain and returns the first
// suggestion, or nil when no trigger applies.
func (s *CheckInService) Evaluate(ctx context.Context, now time.Time) (*CheckInSuggestion, error) {
	if s.client != nil {
		if sug := s.evaluateLLM(ctx); sug != nil {
			return sug, nil
		}
	}

	sug, err := s.evaluateStaleness(now)
	if err != nil {
		return nil, err
	}
	if sug != nil {
		return sug, nil
	}

	return s.evaluatePeriodic(now)
}

func (s *CheckInService) evaluateLLM(ctx context.Context) *CheckInSuggestion {
	digests, err := s.seedDigests()
	if err != nil || len(digests) < 2 {
		return nil
	}

	seeds := make([]int64, len(digests))
	for i := range digests {
		seeds[i] = digests[i].ID
	}

	for _, kind := range []string{TriggerContradiction, TriggerKnowledgeGap} {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		raw, err := s.client.Complete(callCtx, llm.CheckInPrompt(kind, digests))
		cancel()
		if err != nil {
			s.log.Debug().Err(err).Str("trigger", kind).Msg("check-in completion failed")
			continue
		}

		raw = stripFences(raw)
		if raw == "" || raw == "null" {
			continue
		}
		var reply struct {
			Message       string `json:"message"`
			OpeningPrompt string `json:"opening_prompt"`
		}
		if err := json.Unmarshal([]byte(raw), &reply); err != nil {
			continue
		}
		if strings.TrimSpace(reply.Message) == "" || strings.TrimSpace(reply.OpeningPrompt) == "" {
			continue
		}

		return &CheckInSuggestion{
			TriggerKind:   kind,
			Message:       strings.TrimSpace(reply.Message),
			OpeningPrompt: strings.TrimSpace(reply.OpeningPrompt),
			SeedItemIDs:   seeds,
		}
	}
	return nil
}

func (s *CheckInService) seedDigests() ([]llm.ItemDigest, error) {
	items, err := s.db.ListActiveItems()
	if err != nil {
		return nil, err
	}
	if len(items) > checkInSeedLimit {
		items = items[:checkInSeedLimit]
	}

	digests := make([]llm.ItemDigest, 0, len(items))
	for i := range items {
		tags, err := s.db.GetItemTags(items[i].ID)
		if err != nil {
			return nil, err
		}
		digests = append(digests, llm.ItemDigest{ID: items[i].ID, Title: items[i].Title, Tags: tags})
	}
	return digests, nil
}

// evaluateStaleness fires for the first nudge-enabled board with no item
// updates for three weeks.
func (s *CheckInService) evaluateStaleness(now time.Time) (*CheckInSuggestion, error) {
	boards, err := s.db.ListBoards()
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-checkInStalenessAfter).UnixMilli()
	for i := range boards {
		board := &boards[i]
		if board.NudgeFrequencyHours == store.NudgesDisabled {
			continue
		}

		items, err := s.db.BoardItems(board.ID)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			continue
		}

		latest := int64(0)
		for j := range items {
			if items[j].UpdatedAt > latest {
				latest = items[j].UpdatedAt
			}
		}
		if latest > cutoff {
			continue
		}

		// Seed with the longest-untouched items.
		seeds := make([]int64, 0, 3)
		for j := range items {
			if len(seeds) < 3 {
				seeds = append(seeds, items[j].ID)
			}
		}

		return &CheckInSuggestion{
			TriggerKind:   TriggerStaleness,
			Message:       "Your " + board.Name + " board has been quiet for three weeks. Check in with it?",
			OpeningPrompt: "What made these notes matter when you saved them?",
			SeedItemIDs:   seeds,
			BoardID:       &board.ID,
		}, nil
	}
	return nil, nil
}

// evaluatePeriodic fires a gentle check-in every two weeks when nothing
// sharper has.
func (s *CheckInService) evaluatePeriodic(now time.Time) (*CheckInSuggestion, error) {
	latest, err := s.db.LatestNudge(store.NudgeCheckIn)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.CreatedAt > now.Add(-checkInPeriodicEvery).UnixMilli() {
		return nil, nil
	}

	items, err := s.db.ListActiveItems()
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	seeds := make([]int64, 0, 3)
	for i := range items {
		if len(seeds) < 3 {
			seeds = append(seeds, items[i].ID)
		}
	}

	return &CheckInSuggestion{
		TriggerKind:   TriggerPeriodic,
		Message:       "A quiet moment for your notes. Up for a short check-in?",
		OpeningPrompt: "Which of your recent notes would you argue with today?",
		SeedItemIDs:   seeds,
	}, nil
}
