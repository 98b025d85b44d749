package llm

import (
	"fmt"
	"strings"
)

// ItemDigest is the slice of an item the prompts expose to the model.
type ItemDigest struct {
	ID    int64
	Title string
	Tags  []string
}

func itemLines(items []ItemDigest) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "- id=%d %q", it.ID, it.Title)
		if len(it.Tags) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(it.Tags, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// SmartNudgePrompt asks for a single smart-nudge suggestion over the
// user's recently active items.
func SmartNudgePrompt(items []ItemDigest) string {
	return fmt.Sprintf(`You help a personal knowledge base gently re-engage its user.
Given their recently active saved items, propose at most ONE nudge.

ITEMS:
%s
Choose one nudge type:
- reflection_prompt: invite the user to reflect on one item
- contradiction: two items appear to be in tension; invite a comparison
- knowledge_gap: the collection hints at a missing piece worth saving
- synthesis_prompt: several items could be combined into a new note

Rules:
- One short, friendly sentence as the message. No exclamation marks.
- item_id must be one of the ids above, or 0 if the nudge has no single target.
- If nothing is genuinely worth saying, return null.
- Return ONLY JSON, no other text.

Return: {"type": "reflection_prompt|contradiction|knowledge_gap|synthesis_prompt", "message": "...", "item_id": 0}
or: null`, itemLines(items))
}

// CheckInPrompt asks whether a set of seed items supports a dialectical
// check-in of the given trigger kind, and for its wording if so.
func CheckInPrompt(kind string, items []ItemDigest) string {
	return fmt.Sprintf(`You help a personal knowledge base open short dialectical check-ins.
Trigger under consideration: %s.

SEED ITEMS:
%s
If these items genuinely support a %s check-in, write:
- message: one sentence inviting the check-in
- opening_prompt: the first question to put to the user

Rules:
- Be specific to the items; never generic filler.
- If the trigger does not apply, return null.
- Return ONLY JSON, no other text.

Return: {"message": "...", "opening_prompt": "..."}
or: null`, kind, itemLines(items), kind)
}
