package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/depo/internal/config"
	"github.com/agenthands/depo/internal/core"
	"github.com/agenthands/depo/internal/core/model"
	"github.com/agenthands/depo/internal/store"
	"github.com/agenthands/depo/internal/tasks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockOracle struct {
	mu    sync.Mutex
	Calls int
}

func (m *MockOracle) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()

	switch {
	case strings.Contains(userPrompt, "TRANSCRIPT 2:"):
		return `{"contradictions": [{"description": "Arrival time differs", "excerpt1": "3:30", "excerpt2": "5:00"}]}`, nil
	case strings.Contains(userPrompt, "follow-up questions"):
		return "```json\n{\"questions\": [{\"question\": \"Q1\", \"reasoning\": \"R1\", \"reference\": \"p.1\"}]}\n```", nil
	default:
		return `{"insights": [{"title": "T1", "description": "D1", "reference": "p.1"}]}`, nil
	}
}

func (m *MockOracle) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

type testEnv struct {
	router *gin.Engine
	oracle *MockOracle
	store  *store.Memory
	cfg    *config.Config
}

func newTestEnv(t *testing.T, tweak func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Upload.Dir = t.TempDir()
	if tweak != nil {
		tweak(cfg)
	}

	s := store.NewMemory()
	q := tasks.NewQueue(cfg.Tasks.Workers, cfg.Tasks.Buffer)
	t.Cleanup(func() { q.Shutdown(context.Background()) })

	oracle := &MockOracle{}
	d := core.NewDepositions(s, oracle, q, cfg)
	srv := NewServer(d, cfg.Upload)

	return &testEnv{router: srv.SetupRouter(), oracle: oracle, store: s, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(method, path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(t *testing.T, caseID int64, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("/api/cases/%d/transcripts", caseID), &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func tenLines() []byte {
	var sb strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&sb, "Q. Question %d?\n", i)
	}
	return []byte(sb.String())
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, nil)
	w := e.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}

func TestCreateCase(t *testing.T) {
	e := newTestEnv(t, nil)

	w := e.do(t, http.MethodPost, "/api/cases", `{"title": "Doe v. Roe"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, float64(1), body["id"])
	assert.Equal(t, "Doe v. Roe", body["title"])
	assert.Contains(t, body, "caseNumber")
	assert.Nil(t, body["caseNumber"])
	assert.Nil(t, body["description"])
	assert.NotEmpty(t, body["createdAt"])

	w = e.do(t, http.MethodGet, "/api/cases/1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/api/cases", "")
	assert.Len(t, decode[[]model.Case](t, w), 1)
}

func TestCreateCaseRoundTrip(t *testing.T) {
	e := newTestEnv(t, nil)

	created := e.do(t, http.MethodPost, "/api/cases", `{"title": "Doe v. Roe", "caseNumber": "12345", "description": "d"}`)
	require.Equal(t, http.StatusCreated, created.Code)

	body := decode[map[string]any](t, created)
	assert.Equal(t, "Doe v. Roe", body["title"])
	assert.Equal(t, "12345", body["caseNumber"])
	assert.Equal(t, "d", body["description"])

	fetched := e.do(t, http.MethodGet, fmt.Sprintf("/api/cases/%v", body["id"]), "")
	require.Equal(t, http.StatusOK, fetched.Code)
	assert.JSONEq(t, created.Body.String(), fetched.Body.String())
}

func TestCreateCaseValidation(t *testing.T) {
	e := newTestEnv(t, nil)

	w := e.do(t, http.MethodPost, "/api/cases", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "title is required"}`, w.Body.String())

	w = e.do(t, http.MethodPost, "/api/cases", `{"title": "   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/cases", `{"title": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/api/cases", "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestNotFoundAndInvalidIDs(t *testing.T) {
	e := newTestEnv(t, nil)

	w := e.do(t, http.MethodGet, "/api/cases/7", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error": "Case not found"}`, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/transcripts/7", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, "/api/cases/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/api/transcripts/abc/analysis", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/api/tasks/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListsAreNeverNull(t *testing.T) {
	e := newTestEnv(t, nil)
	for _, path := range []string{
		"/api/cases",
		"/api/transcripts",
		"/api/contradictions",
		"/api/tasks",
		"/api/cases/1/transcripts",
		"/api/cases/1/contradictions",
		"/api/cases/1/conflict-groups",
		"/api/transcripts/1/analysis",
	} {
		w := e.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.JSONEq(t, `[]`, w.Body.String(), path)
	}
}

func TestUploadTranscriptIsAnalyzed(t *testing.T) {
	e := newTestEnv(t, nil)
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/cases", `{"title": "Doe v. Roe"}`).Code)

	w := e.upload(t, 1, "smith.txt", tenLines(), map[string]string{"witnessName": "John Smith"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	tr := decode[model.Transcript](t, w)
	assert.Equal(t, int64(1), tr.CaseID)
	assert.Equal(t, "smith.txt", tr.Title)
	assert.Equal(t, "John Smith", tr.WitnessName)
	require.NotNil(t, tr.WitnessType)
	assert.Equal(t, "Witness", *tr.WitnessType)
	assert.Equal(t, 1, tr.Pages)
	assert.Equal(t, model.StatusPending, tr.Status)

	require.Eventually(t, func() bool {
		w := e.do(t, http.MethodGet, "/api/transcripts/1", "")
		return decode[model.Transcript](t, w).Status == model.StatusAnalyzed
	}, 5*time.Second, 10*time.Millisecond)

	w = e.do(t, http.MethodGet, "/api/transcripts/1/analysis", "")
	rows := decode[[]model.Analysis](t, w)
	require.Len(t, rows, 2)
	assert.Equal(t, model.AnalysisQuestions, rows[0].Type)
	assert.JSONEq(t, `[{"question": "Q1", "reasoning": "R1", "reference": "p.1"}]`, rows[0].Content)
	assert.Equal(t, model.AnalysisInsights, rows[1].Type)

	entries, err := os.ReadDir(e.cfg.Upload.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadTranscriptRejections(t *testing.T) {
	e := newTestEnv(t, func(cfg *config.Config) { cfg.Upload.MaxBytes = 64 })
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/cases", `{"title": "Doe v. Roe"}`).Code)

	w := e.upload(t, 1, "virus.exe", []byte("MZ"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid file type")

	w = e.upload(t, 1, "", nil, map[string]string{"title": "no file"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.upload(t, 1, "big.txt", bytes.Repeat([]byte("a"), 200), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "limit")

	w = e.upload(t, 1, "a.txt", []byte("A. Yes."), map[string]string{"date": "not a date"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "date must be a valid date"}`, w.Body.String())

	w = e.upload(t, 9, "a.txt", []byte("A. Yes."), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Zero(t, e.oracle.CallCount())
	w = e.do(t, http.MethodGet, "/api/transcripts", "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestUploadAcceptsUpperCaseExtension(t *testing.T) {
	e := newTestEnv(t, nil)
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/cases", `{"title": "Doe v. Roe"}`).Code)

	w := e.upload(t, 1, "SCAN.PDF", []byte("%PDF-1.4 text"), nil)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestCompareTranscripts(t *testing.T) {
	e := newTestEnv(t, nil)
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/cases", `{"title": "Smith v. Johnson"}`).Code)
	for _, w := range []string{"John Smith", "Sarah Johnson"} {
		_, err := e.store.CreateTranscript(context.Background(), model.InsertTranscript{
			CaseID: 1, Title: w, WitnessName: w, Content: "A. I arrived.",
		})
		require.NoError(t, err)
	}

	w := e.do(t, http.MethodPost, "/api/cases/1/compare", `{"transcriptIds": [1]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "At least two transcripts are required for comparison"}`, w.Body.String())

	w = e.do(t, http.MethodPost, "/api/cases/1/compare", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/cases/1/compare", `{"transcriptIds": "1,2"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/cases/5/compare", `{"transcriptIds": [1, 2]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.JSONEq(t, `[]`, e.do(t, http.MethodGet, "/api/tasks", "").Body.String())
	assert.Zero(t, e.oracle.CallCount())

	w = e.do(t, http.MethodPost, "/api/cases/1/compare", `{"transcriptIds": [1, 2]}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "Comparison initiated", body["message"])
	assert.Equal(t, "processing", body["status"])
	taskID := body["taskId"]
	require.NotEmpty(t, taskID)

	require.Eventually(t, func() bool {
		w := e.do(t, http.MethodGet, "/api/tasks/"+taskID, "")
		return decode[model.Task](t, w).Status == model.TaskSucceeded
	}, 5*time.Second, 10*time.Millisecond)

	w = e.do(t, http.MethodGet, "/api/cases/1/contradictions", "")
	rows := decode[[]model.Contradiction](t, w)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].Transcript1ID)
	assert.Equal(t, int64(2), rows[0].Transcript2ID)
	assert.Equal(t, "Sarah Johnson", rows[0].Witness2)
	assert.Equal(t, taskID, rows[0].RunID)
	assert.Nil(t, rows[0].Confidence)

	w = e.do(t, http.MethodGet, "/api/contradictions", "")
	assert.Len(t, decode[[]model.Contradiction](t, w), 1)

	w = e.do(t, http.MethodGet, "/api/cases/1/conflict-groups", "")
	groups := decode[[]model.ConflictGroup](t, w)
	require.Len(t, groups, 1)
	assert.Equal(t, []int64{1, 2}, groups[0].TranscriptIDs)
	assert.Equal(t, []string{"John Smith", "Sarah Johnson"}, groups[0].Witnesses)
}

func TestQueueClosedReturns503(t *testing.T) {
	cfg := config.Default()
	s := store.NewMemory()
	q := tasks.NewQueue(1, 1)
	require.NoError(t, q.Shutdown(context.Background()))

	srv := NewServer(core.NewDepositions(s, &MockOracle{}, q, cfg), cfg.Upload)
	router := srv.SetupRouter()

	_, err := s.CreateCase(context.Background(), model.InsertCase{Title: "Doe v. Roe"})
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodPost, "/api/cases/1/compare", strings.NewReader(`{"transcriptIds": [1, 2]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
