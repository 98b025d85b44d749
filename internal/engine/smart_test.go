package engine

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jpender/revisit/internal/llm"
	"github.com/jpender/revisit/internal/store"
)

func seedActiveItems(t *testing.T, db *store.DB, n int) []store.Item {
	t.Helper()
	items := make([]store.Item, 0, n)
	for i := 0; i < n; i++ {
		item := &store.Item{Title: "note", Status: store.ItemActive}
		require.NoError(t, db.CreateItem(item))
		items = append(items, *item)
	}
	return items
}

func TestSmartNudgerParsesReply(t *testing.T) {
	_, db := testEngine(t)
	items := seedActiveItems(t, db, 2)

	mock := &llm.Mock{Result: `{"type":"contradiction","message":"Two of your notes pull in opposite directions.","item_id":` +
		itoa(items[0].ID) + `}`}
	nudger := NewLLMSmartNudger(db, mock, zerolog.Nop())

	sug := nudger.GenerateSmartNudge(context.Background())
	require.NotNil(t, sug)
	require.Equal(t, store.NudgeContradiction, sug.Type)
	require.Equal(t, items[0].ID, *sug.TargetItemID)
	require.Len(t, mock.Calls, 1)
}

func TestSmartNudgerStripsCodeFences(t *testing.T) {
	_, db := testEngine(t)
	seedActiveItems(t, db, 1)

	mock := &llm.Mock{Result: "```json\n{\"type\":\"reflection_prompt\",\"message\":\"Worth a second look.\",\"item_id\":0}\n```"}
	nudger := NewLLMSmartNudger(db, mock, zerolog.Nop())

	sug := nudger.GenerateSmartNudge(context.Background())
	require.NotNil(t, sug)
	require.Equal(t, store.NudgeReflectionPrompt, sug.Type)
	require.Nil(t, sug.TargetItemID)
}

func TestSmartNudgerRejectsBadReplies(t *testing.T) {
	_, db := testEngine(t)
	items := seedActiveItems(t, db, 1)

	cases := map[string]string{
		"null reply":     "null",
		"unknown type":   `{"type":"resurface","message":"m","item_id":0}`,
		"empty message":  `{"type":"contradiction","message":"  ","item_id":0}`,
		"not json":       "I think you should review your notes",
		"unoffered item": `{"type":"contradiction","message":"m","item_id":` + itoa(items[0].ID+100) + `}`,
	}
	for name, reply := range cases {
		nudger := NewLLMSmartNudger(db, &llm.Mock{Result: reply}, zerolog.Nop())
		sug := nudger.GenerateSmartNudge(context.Background())
		if name == "unoffered item" {
			// The suggestion survives, the bogus target does not.
			require.NotNil(t, sug, name)
			require.Nil(t, sug.TargetItemID, name)
			continue
		}
		require.Nil(t, sug, name)
	}
}

func TestSmartNudgerNoItems(t *testing.T) {
	_, db := testEngine(t)

	mock := &llm.Mock{Result: `{"type":"contradiction","message":"m","item_id":0}`}
	nudger := NewLLMSmartNudger(db, mock, zerolog.Nop())

	require.Nil(t, nudger.GenerateSmartNudge(context.Background()))
	require.Empty(t, mock.Calls, "no completion call without items")
}

func TestCheckInContradictionViaLLM(t *testing.T) {
	_, db := testEngine(t)
	seedActiveItems(t, db, 3)

	mock := &llm.Mock{Result: `{"message":"Two notes disagree about caching.","opening_prompt":"Which would you defend today?"}`}
	svc := NewCheckInService(db, mock, zerolog.Nop())

	sug, err := svc.Evaluate(context.Background(), time.Now())
	require.NoError(t, err)
	require.NotNil(t, sug)
	require.Equal(t, TriggerContradiction, sug.TriggerKind)
	require.NotEmpty(t, sug.SeedItemIDs)
	require.Equal(t, "Which would you defend today?", sug.OpeningPrompt)
}

func TestCheckInLLMFailureFallsThrough(t *testing.T) {
	_, db := testEngine(t)
	seedActiveItems(t, db, 3)

	mock := &llm.Mock{Result: "null"}
	svc := NewCheckInService(db, mock, zerolog.Nop())

	sug, err := svc.Evaluate(context.Background(), time.Now())
	require.NoError(t, err)
	require.NotNil(t, sug, "periodic trigger should fire when the LLM declines")
	require.Equal(t, TriggerPeriodic, sug.TriggerKind)
	// Both LLM triggers were consulted before falling through.
	require.Len(t, mock.Calls, 2)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
