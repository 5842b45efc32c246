package server

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agenthands/depo/internal/config"
	"github.com/agenthands/depo/internal/core"
	"github.com/agenthands/depo/internal/core/ingest"
	"github.com/agenthands/depo/internal/core/model"
	"github.com/agenthands/depo/internal/store"
	"github.com/agenthands/depo/internal/tasks"
)

type Server struct {
	Depositions *core.Depositions
	Store       store.Store
	Tasks       *tasks.Queue
	Upload      config.UploadConfig
}

func NewServer(d *core.Depositions, upload config.UploadConfig) *Server {
	return &Server{
		Depositions: d,
		Store:       d.Store,
		Tasks:       d.Tasks,
		Upload:      upload,
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	registerJSONFieldNames()

	r := gin.Default()
	r.GET("/health", s.Health)

	api := r.Group("/api")
	api.GET("/cases", s.ListCases)
	api.POST("/cases", s.CreateCase)
	api.GET("/cases/:id", s.GetCase)
	api.GET("/cases/:id/transcripts", s.ListCaseTranscripts)
	api.POST("/cases/:id/transcripts", s.validateUpload(), s.UploadTranscript)
	api.GET("/cases/:id/contradictions", s.ListCaseContradictions)
	api.POST("/cases/:id/compare", s.CompareTranscripts)
	api.GET("/cases/:id/conflict-groups", s.ConflictGroups)

	api.GET("/transcripts", s.ListTranscripts)
	api.GET("/transcripts/:id", s.GetTranscript)
	api.GET("/transcripts/:id/analysis", s.ListAnalysis)

	api.GET("/contradictions", s.ListContradictions)

	api.GET("/tasks", s.ListTasks)
	api.GET("/tasks/:id", s.GetTask)

	return r
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Cases

func (s *Server) ListCases(c *gin.Context) {
	cases, err := s.Store.ListCases(c.Request.Context())
	if err != nil {
		s.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, cases)
}

func (s *Server) GetCase(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	cs, err := s.Store.GetCase(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err, "Case not found")
		return
	}
	c.JSON(http.StatusOK, cs)
}

func (s *Server) CreateCase(c *gin.Context) {
	var req model.InsertCase
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	cs, err := s.Depositions.CreateCase(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, cs)
}

// Transcripts

func (s *Server) ListTranscripts(c *gin.Context) {
	transcripts, err := s.Store.ListTranscripts(c.Request.Context())
	if err != nil {
		s.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, transcripts)
}

func (s *Server) ListCaseTranscripts(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	transcripts, err := s.Store.ListTranscriptsByCase(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, transcripts)
}

func (s *Server) GetTranscript(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	t, err := s.Store.GetTranscript(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err, "Transcript not found")
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) UploadTranscript(c *gin.Context) {
	caseID, ok := parseID(c)
	if !ok {
		return
	}

	// validateUpload has already checked the file
	fh, _ := c.FormFile("file")

	if err := os.MkdirAll(s.Upload.Dir, 0o755); err != nil {
		s.fail(c, err, "")
		return
	}
	path := filepath.Join(s.Upload.Dir, uuid.New().String()+"-"+filepath.Base(fh.Filename))
	if err := c.SaveUploadedFile(fh, path); err != nil {
		s.fail(c, err, "")
		return
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		s.fail(c, err, "")
		return
	}

	t, _, err := s.Depositions.IngestTranscript(c.Request.Context(), ingest.Upload{
		CaseID:      caseID,
		Filename:    fh.Filename,
		Data:        data,
		Title:       c.PostForm("title"),
		WitnessName: c.PostForm("witnessName"),
		WitnessType: c.PostForm("witnessType"),
		Date:        c.PostForm("date"),
	})
	if err != nil {
		s.fail(c, err, "Case not found")
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) ListAnalysis(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rows, err := s.Store.ListAnalysisByTranscript(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// Contradictions

func (s *Server) ListContradictions(c *gin.Context) {
	rows, err := s.Store.ListContradictions(c.Request.Context())
	if err != nil {
		s.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) ListCaseContradictions(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rows, err := s.Store.ListContradictionsByCase(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, rows)
}

type CompareRequest struct {
	TranscriptIDs []int64 `json:"transcriptIds"`
}

func (s *Server) CompareTranscripts(c *gin.Context) {
	caseID, ok := parseID(c)
	if !ok {
		return
	}

	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transcriptIds must be an array of transcript ids"})
		return
	}

	task, err := s.Depositions.CompareTranscripts(c.Request.Context(), caseID, req.TranscriptIDs)
	if err != nil {
		s.fail(c, err, "Case not found")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Comparison initiated",
		"status":  "processing",
		"taskId":  task.ID,
	})
}

func (s *Server) ConflictGroups(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	groups, err := s.Depositions.ConflictGroups(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, groups)
}

// Tasks

func (s *Server) ListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, s.Tasks.List())
}

func (s *Server) GetTask(c *gin.Context) {
	task, err := s.Tasks.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err, "Task not found")
		return
	}
	c.JSON(http.StatusOK, task)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

// fail writes the response for err. notFound is the message used for missing entities.
func (s *Server) fail(c *gin.Context, err error, notFound string) {
	var fieldErr *ingest.FieldError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, tasks.ErrNotFound):
		if notFound == "" {
			notFound = "Not found"
		}
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
	case errors.As(err, &fieldErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": fieldErr.Error()})
	case errors.Is(err, core.ErrTooFewTranscripts):
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least two transcripts are required for comparison"})
	case errors.Is(err, tasks.ErrQueueFull), errors.Is(err, tasks.ErrClosed):
		log.Printf("Rejecting request on %s: %v", c.FullPath(), err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server is busy, please retry later"})
	default:
		log.Printf("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	}
}
