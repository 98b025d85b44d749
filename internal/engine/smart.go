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

// SmartSuggestion is an opaque candidate from the LLM-backed producer.
type SmartSuggestion struct {
	Type         store.NudgeType
	Message      string
	TargetItemID *int64
}

// SmartNudger is the LLM-backed producer contract. Implementations enforce
// their own timeout and return nil on any failure; a missing result means
// "no candidate this tick", never an error.
type SmartNudger interface {
	GenerateSmartNudge(ctx context.Context) *SmartSuggestion
}

// dispatchSmart runs the smart producer as a detached unit of work so the
// tick never blocks on the network. Because state may change during the
// round trip, the completion handler re-validates admission, dedup, and
// opt-out against current state before persisting.
func (e *Engine) dispatchSmart(set config.Nudges) {
	if !set.EnableSmart || e.smart == nil {
		return
	}
	if !e.smartRan.CompareAndSwap(false, true) {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		sug := e.smart.GenerateSmartNudge(context.Background())
		if sug == nil {
			return
		}

		now := time.Now()
		admitted, err := e.admission(now, set)
		if err != nil || !admitted {
			return
		}
		active, err := e.db.HasActiveNudge(sug.Type)
		if err != nil || active {
			return
		}

		n := &store.Nudge{
			Type:         sug.Type,
			Message:      sug.Message,
			TargetItemID: sug.TargetItemID,
		}
		optedOut, err := e.targetOptedOut(n)
		if err != nil || optedOut {
			return
		}

		if err := e.db.CreateNudge(n, now.UnixMilli()); err != nil {
			e.log.Warn().Err(err).Msg("smart nudge persist suppressed")
			return
		}
		e.notifier.ScheduleNudge(n)
		e.log.Debug().Int64("nudge", n.ID).Str("type", string(n.Type)).Msg("smart nudge created")
	}()
}

// smartItemLimit bounds how much of the library the prompt sees.
const smartItemLimit = 12

// LLMSmartNudger implements SmartNudger over an LLM client.
type LLMSmartNudger struct {
	db      *store.DB
	client  llm.Client
	timeout time.Duration
	log     zerolog.Logger
}

// NewLLMSmartNudger creates the default smart producer.
func NewLLMSmartNudger(db *store.DB, client llm.Client, log zerolog.Logger) *LLMSmartNudger {
	return &LLMSmartNudger{db: db, client: client, timeout: 45 * time.Second, log: log}
}

// GenerateSmartNudge builds a prompt from recently active items, asks the
// model for at most one suggestion, and validates the reply. Every failure
// path returns nil.
func (s *LLMSmartNudger) GenerateSmartNudge(ctx context.Context) *SmartSuggestion {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	digests, err := s.recentDigests()
	if err != nil || len(digests) == 0 {
		return nil
	}

	raw, err := s.client.Complete(ctx, llm.SmartNudgePrompt(digests))
	if err != nil {
		s.log.Debug().Err(err).Msg("smart nudge completion failed")
		return nil
	}

	return s.parse(raw, digests)
}

func (s *LLMSmartNudger) recentDigests() ([]llm.ItemDigest, error) {
	items, err := s.db.ListActiveItems()
	if err != nil {
		return nil, err
	}

	// Most recently updated first
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if items[j].UpdatedAt > items[i].UpdatedAt {
				items[i], items[j] = items[j], items[i]
			}
		}
	}
	if len(items) > smartItemLimit {
		items = items[:smartItemLimit]
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

var smartTypes = map[store.NudgeType]bool{
	store.NudgeReflectionPrompt: true,
	store.NudgeContradiction:    true,
	store.NudgeKnowledgeGap:     true,
	store.NudgeSynthesisPrompt:  true,
}

func (s *LLMSmartNudger) parse(raw string, digests []llm.ItemDigest) *SmartSuggestion {
	raw = stripFences(raw)
	if raw == "" || raw == "null" {
		return nil
	}

	var reply struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		ItemID  int64  `json:"item_id"`
	}
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		s.log.Debug().Err(err).Msg("smart nudge reply unparseable")
		return nil
	}

	typ := store.NudgeType(reply.Type)
	if !smartTypes[typ] || strings.TrimSpace(reply.Message) == "" {
		return nil
	}

	sug := &SmartSuggestion{Type: typ, Message: strings.TrimSpace(reply.Message)}
	if reply.ItemID != 0 {
		// Only accept targets the prompt actually offered.
		for i := range digests {
			if digests[i].ID == reply.ItemID {
				id := reply.ItemID
				sug.TargetItemID = &id
				break
			}
		}
	}
	return sug
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
