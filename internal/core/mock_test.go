package core

import (
	"context"
	"sync"

	"github.com/agenthands/depo/internal/core/model"
)

type MockOracle struct {
	mu    sync.Mutex
	Fn    func(call int, systemPrompt, userPrompt string) (string, error)
	Calls int
}

func (m *MockOracle) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	m.Calls++
	call := m.Calls
	m.mu.Unlock()

	if m.Fn == nil {
		return "{}", nil
	}
	return m.Fn(call, systemPrompt, userPrompt)
}

func (m *MockOracle) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

type MockProjector struct {
	mu        sync.Mutex
	Projected []model.Contradiction
	Err       error
}

func (m *MockProjector) ProjectContradiction(ctx context.Context, t1, t2 model.Transcript, c model.Contradiction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Projected = append(m.Projected, c)
	return m.Err
}

// MockGraph is a projector that can also read edges back.
type MockGraph struct {
	MockProjector
	Edges   [][2]int64
	ReadErr error
}

func (m *MockGraph) CaseEdges(ctx context.Context, caseID int64) ([][2]int64, error) {
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return m.Edges, nil
}

type archived struct {
	CaseID      int64
	Filename    string
	ContentType string
}

type MockArchive struct {
	mu   sync.Mutex
	Puts []archived
	Err  error
}

func (m *MockArchive) Put(ctx context.Context, caseID int64, filename string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Puts = append(m.Puts, archived{CaseID: caseID, Filename: filename, ContentType: contentType})
	if m.Err != nil {
		return "", m.Err
	}
	return "cases/1/object.txt", nil
}
