package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agenthands/depo/internal/core/model"
)

// Memory keeps every entity in process memory. State is lost on restart.
type Memory struct {
	mu sync.RWMutex

	users          map[int64]model.User
	cases          map[int64]model.Case
	transcripts    map[int64]model.Transcript
	analysis       map[int64]model.Analysis
	contradictions map[int64]model.Contradiction

	userSeq          int64
	caseSeq          int64
	transcriptSeq    int64
	analysisSeq      int64
	contradictionSeq int64

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:          make(map[int64]model.User),
		cases:          make(map[int64]model.Case),
		transcripts:    make(map[int64]model.Transcript),
		analysis:       make(map[int64]model.Analysis),
		contradictions: make(map[int64]model.Contradiction),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

var _ Store = (*Memory)(nil)

// Users

func (m *Memory) GetUser(ctx context.Context, id int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return &u, nil
}

func (m *Memory) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
}

func (m *Memory) CreateUser(ctx context.Context, in model.InsertUser) (*model.User, error) {
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == in.Username {
			return nil, fmt.Errorf("username %q: %w", in.Username, ErrDuplicate)
		}
	}

	m.userSeq++
	u := model.User{ID: m.userSeq, Username: in.Username, Password: hash}
	m.users[u.ID] = u
	return &u, nil
}

// Cases

func (m *Memory) ListCases(ctx context.Context) ([]model.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Case, 0, len(m.cases))
	for _, c := range m.cases {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetCase(ctx context.Context, id int64) (*model.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.cases[id]
	if !ok {
		return nil, fmt.Errorf("case %d: %w", id, ErrNotFound)
	}
	return &c, nil
}

func (m *Memory) CreateCase(ctx context.Context, in model.InsertCase) (*model.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.caseSeq++
	c := model.Case{
		ID:          m.caseSeq,
		Title:       in.Title,
		CaseNumber:  emptyToNil(in.CaseNumber),
		Description: emptyToNil(in.Description),
		CreatedAt:   m.now(),
	}
	m.cases[c.ID] = c
	return &c, nil
}

// Transcripts

func (m *Memory) ListTranscripts(ctx context.Context) ([]model.Transcript, error) {
	return m.filterTranscripts(func(model.Transcript) bool { return true }), nil
}

func (m *Memory) ListTranscriptsByCase(ctx context.Context, caseID int64) ([]model.Transcript, error) {
	return m.filterTranscripts(func(t model.Transcript) bool { return t.CaseID == caseID }), nil
}

func (m *Memory) filterTranscripts(keep func(model.Transcript) bool) []model.Transcript {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []model.Transcript{}
	for _, t := range m.transcripts {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) GetTranscript(ctx context.Context, id int64) (*model.Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.transcripts[id]
	if !ok {
		return nil, fmt.Errorf("transcript %d: %w", id, ErrNotFound)
	}
	return &t, nil
}

func (m *Memory) CreateTranscript(ctx context.Context, in model.InsertTranscript) (*model.Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transcriptSeq++
	t := model.Transcript{
		ID:          m.transcriptSeq,
		CaseID:      in.CaseID,
		Title:       in.Title,
		WitnessName: in.WitnessName,
		WitnessType: emptyToNil(in.WitnessType),
		Date:        in.Date,
		Content:     in.Content,
		Pages:       in.Pages,
		Status:      model.StatusPending,
		CreatedAt:   m.now(),
	}
	m.transcripts[t.ID] = t
	return &t, nil
}

func (m *Memory) UpdateTranscriptStatus(ctx context.Context, id int64, status model.TranscriptStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transcripts[id]
	if !ok {
		return fmt.Errorf("transcript %d: %w", id, ErrNotFound)
	}
	next, err := t.Status.Transition(status)
	if err != nil {
		return fmt.Errorf("transcript %d: %w", id, err)
	}
	t.Status = next
	m.transcripts[id] = t
	return nil
}

// Analysis

func (m *Memory) ListAnalysisByTranscript(ctx context.Context, transcriptID int64) ([]model.Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []model.Analysis{}
	for _, a := range m.analysis {
		if a.TranscriptID == transcriptID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateAnalysis(ctx context.Context, in model.InsertAnalysis) (*model.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.analysisSeq++
	a := model.Analysis{
		ID:           m.analysisSeq,
		TranscriptID: in.TranscriptID,
		Type:         in.Type,
		Content:      in.Content,
		CreatedAt:    m.now(),
	}
	m.analysis[a.ID] = a
	return &a, nil
}

// Contradictions

func (m *Memory) ListContradictions(ctx context.Context) ([]model.Contradiction, error) {
	return m.filterContradictions(func(model.Contradiction) bool { return true }), nil
}

func (m *Memory) ListContradictionsByCase(ctx context.Context, caseID int64) ([]model.Contradiction, error) {
	return m.filterContradictions(func(c model.Contradiction) bool { return c.CaseID == caseID }), nil
}

func (m *Memory) filterContradictions(keep func(model.Contradiction) bool) []model.Contradiction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []model.Contradiction{}
	for _, c := range m.contradictions {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) CreateContradiction(ctx context.Context, in model.InsertContradiction) (*model.Contradiction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.contradictionSeq++
	c := model.Contradiction{
		ID:            m.contradictionSeq,
		CaseID:        in.CaseID,
		Transcript1ID: in.Transcript1ID,
		Transcript2ID: in.Transcript2ID,
		RunID:         in.RunID,
		Witness1:      in.Witness1,
		Witness2:      in.Witness2,
		Description:   in.Description,
		Excerpt1:      in.Excerpt1,
		Excerpt2:      in.Excerpt2,
		Confidence:    in.Confidence,
		CreatedAt:     m.now(),
	}
	m.contradictions[c.ID] = c
	return &c, nil
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
