package compare

import (
	"context"
	"sync"
)

type MockOracle struct {
	mu        sync.Mutex
	Responses map[int]string
	Errs      map[int]error
	Calls     int
	Prompts   []string
}

func (m *MockOracle) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := m.Calls
	m.Calls++
	m.Prompts = append(m.Prompts, userPrompt)
	if err := m.Errs[call]; err != nil {
		return "", err
	}
	if resp, ok := m.Responses[call]; ok {
		return resp, nil
	}
	return `{"contradictions": []}`, nil
}
