package llm

import "context"

// Mock is a test double for the Client interface.
type Mock struct {
	Result string
	Err    error
	Calls  []string // records prompts sent
}

// Complete records the call and returns the canned result.
func (m *Mock) Complete(ctx context.Context, prompt string) (string, error) {
	m.Calls = append(m.Calls, prompt)
	return m.Result, m.Err
}
