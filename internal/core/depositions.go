package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/agenthands/depo/internal/archive"
	"github.com/agenthands/depo/internal/config"
	"github.com/agenthands/depo/internal/core/analysis"
	"github.com/agenthands/depo/internal/core/cluster"
	"github.com/agenthands/depo/internal/core/compare"
	"github.com/agenthands/depo/internal/core/ingest"
	"github.com/agenthands/depo/internal/core/model"
	"github.com/agenthands/depo/internal/llm"
	"github.com/agenthands/depo/internal/store"
	"github.com/agenthands/depo/internal/tasks"
)

// ErrTooFewTranscripts is returned when a comparison names fewer than two transcripts.
var ErrTooFewTranscripts = errors.New("at least two transcripts are required for comparison")

// Projector mirrors a persisted contradiction into a secondary representation.
type Projector interface {
	ProjectContradiction(ctx context.Context, t1, t2 model.Transcript, c model.Contradiction) error
}

// EdgeReader is implemented by projectors that can list the contradiction edges of a
// case, as (transcript1, transcript2) pairs.
type EdgeReader interface {
	CaseEdges(ctx context.Context, caseID int64) ([][2]int64, error)
}

type Depositions struct {
	Store    store.Store
	Tasks    *tasks.Queue
	Analyzer *analysis.Analyzer
	Comparer *compare.Comparer
	Detector cluster.Detector

	// Optional
	Projector Projector
	Archive   archive.Archive

	LinesPerPage int
	now          func() time.Time
}

func NewDepositions(s store.Store, oracle llm.Oracle, q *tasks.Queue, cfg *config.Config) *Depositions {
	return &Depositions{
		Store:        s,
		Tasks:        q,
		Analyzer:     analysis.NewAnalyzer(oracle, cfg.Prompts, cfg.Limits.AnalysisChars),
		Comparer:     compare.NewComparer(oracle, cfg.Prompts.Contradictions, cfg.Limits.ComparisonChars),
		Detector:     cluster.NewDetector(),
		LinesPerPage: cfg.Limits.LinesPerPage,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (d *Depositions) CreateCase(ctx context.Context, in model.InsertCase) (*model.Case, error) {
	return d.Store.CreateCase(ctx, in)
}

// IngestTranscript stores the uploaded file as a pending transcript and queues its
// analysis. When the queue rejects the job the transcript is returned together with
// the queue error and stays pending.
func (d *Depositions) IngestTranscript(ctx context.Context, u ingest.Upload) (*model.Transcript, *model.Task, error) {
	if _, err := d.Store.GetCase(ctx, u.CaseID); err != nil {
		return nil, nil, err
	}

	in, err := ingest.Build(u, d.LinesPerPage, d.now())
	if err != nil {
		return nil, nil, err
	}

	contentType := ingest.DetectMIME(u.Data)
	log.Printf("Ingesting %s (%s, %s) into case %d", u.Filename, contentType, humanize.Bytes(uint64(len(u.Data))), u.CaseID)

	t, err := d.Store.CreateTranscript(ctx, in)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create transcript: %w", err)
	}

	if d.Archive != nil {
		object, err := d.Archive.Put(ctx, u.CaseID, u.Filename, u.Data, contentType)
		if err != nil {
			log.Printf("Warning: failed to archive upload for transcript %d: %v", t.ID, err)
		} else {
			log.Printf("Archived transcript %d as %s", t.ID, object)
		}
	}

	id := t.ID
	task, err := d.Tasks.Submit(model.TaskAnalysis, id, func(ctx context.Context, _ *tasks.Report) error {
		return d.AnalyzeTranscript(ctx, id)
	})
	if err != nil {
		return t, nil, err
	}
	return t, task, nil
}

// AnalyzeTranscript runs both oracle analyses for a pending transcript and moves it to
// analyzed. Any failure moves it to error; analysis rows already written are kept.
func (d *Depositions) AnalyzeTranscript(ctx context.Context, id int64) error {
	t, err := d.Store.GetTranscript(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load transcript %d: %w", id, err)
	}

	if err := d.Store.UpdateTranscriptStatus(ctx, id, model.StatusProcessing); err != nil {
		return fmt.Errorf("failed to start analysis of transcript %d: %w", id, err)
	}

	if err := d.analyze(ctx, t); err != nil {
		log.Printf("Analysis of transcript %d failed: %v", id, err)
		if serr := d.Store.UpdateTranscriptStatus(context.WithoutCancel(ctx), id, model.StatusError); serr != nil {
			log.Printf("Failed to mark transcript %d as error: %v", id, serr)
		}
		return err
	}

	if err := d.Store.UpdateTranscriptStatus(ctx, id, model.StatusAnalyzed); err != nil {
		return fmt.Errorf("failed to finish analysis of transcript %d: %w", id, err)
	}
	log.Printf("Transcript %d analyzed", id)
	return nil
}

func (d *Depositions) analyze(ctx context.Context, t *model.Transcript) error {
	steps := []struct {
		kind model.AnalysisType
		run  func(context.Context, string) (string, error)
	}{
		{model.AnalysisQuestions, d.Analyzer.Questions},
		{model.AnalysisInsights, d.Analyzer.Insights},
	}

	for _, step := range steps {
		content, err := step.run(ctx, t.Content)
		if err != nil {
			return err
		}
		_, err = d.Store.CreateAnalysis(ctx, model.InsertAnalysis{
			TranscriptID: t.ID,
			Type:         step.kind,
			Content:      content,
		})
		if err != nil {
			return fmt.Errorf("failed to save %s analysis: %w", step.kind, err)
		}
	}
	return nil
}

// CompareTranscripts validates the request and queues a pairwise comparison of the
// given transcripts within a case.
func (d *Depositions) CompareTranscripts(ctx context.Context, caseID int64, transcriptIDs []int64) (*model.Task, error) {
	if len(transcriptIDs) < 2 {
		return nil, ErrTooFewTranscripts
	}
	if _, err := d.Store.GetCase(ctx, caseID); err != nil {
		return nil, err
	}

	ids := append([]int64(nil), transcriptIDs...)
	return d.Tasks.Submit(model.TaskComparison, caseID, func(ctx context.Context, report *tasks.Report) error {
		return d.runComparison(ctx, caseID, ids, report)
	})
}

func (d *Depositions) runComparison(ctx context.Context, caseID int64, ids []int64, report *tasks.Report) error {
	resolved, err := d.resolve(ctx, ids)
	if err != nil {
		return err
	}
	if len(resolved) < 2 {
		log.Printf("Comparison %s: fewer than two transcripts resolved, nothing to do", report.TaskID)
		return nil
	}

	pairs := compare.Pairs(resolved)
	log.Printf("Comparison %s: checking %d pairs in case %d", report.TaskID, len(pairs), caseID)

	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return err
		}

		findings, err := d.Comparer.FindContradictions(ctx, p)
		if err != nil {
			log.Printf("Comparison %s: transcripts %d and %d failed: %v", report.TaskID, p.First.ID, p.Second.ID, err)
			report.FailedPair()
			continue
		}

		for _, f := range findings {
			c, err := d.Store.CreateContradiction(ctx, model.InsertContradiction{
				CaseID:        caseID,
				Transcript1ID: p.First.ID,
				Transcript2ID: p.Second.ID,
				RunID:         report.TaskID,
				Witness1:      p.First.WitnessName,
				Witness2:      p.Second.WitnessName,
				Description:   f.Description,
				Excerpt1:      f.Excerpt1,
				Excerpt2:      f.Excerpt2,
				Confidence:    f.Confidence,
			})
			if err != nil {
				return fmt.Errorf("failed to save contradiction: %w", err)
			}

			if d.Projector != nil {
				if err := d.Projector.ProjectContradiction(ctx, p.First, p.Second, *c); err != nil {
					log.Printf("Warning: failed to project contradiction %d: %v", c.ID, err)
				}
			}
		}
	}
	return nil
}

// resolve loads transcripts in request order. Unknown and repeated ids are skipped.
func (d *Depositions) resolve(ctx context.Context, ids []int64) ([]model.Transcript, error) {
	seen := make(map[int64]bool, len(ids))
	var out []model.Transcript
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		t, err := d.Store.GetTranscript(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load transcript %d: %w", id, err)
		}
		out = append(out, *t)
	}
	return out, nil
}

// ConflictGroups returns the groups of transcripts in a case linked by contradictions.
// Edges come from the graph when the projector can read them back, otherwise from the
// store.
func (d *Depositions) ConflictGroups(ctx context.Context, caseID int64) ([]model.ConflictGroup, error) {
	transcripts, err := d.Store.ListTranscriptsByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if r, ok := d.Projector.(EdgeReader); ok {
		edges, err := r.CaseEdges(ctx, caseID)
		if err == nil {
			return d.Detector.Detect(transcripts, edgeContradictions(caseID, edges)), nil
		}
		log.Printf("Warning: failed to read contradiction graph for case %d, using store: %v", caseID, err)
	}

	contradictions, err := d.Store.ListContradictionsByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return d.Detector.Detect(transcripts, contradictions), nil
}

func edgeContradictions(caseID int64, edges [][2]int64) []model.Contradiction {
	out := make([]model.Contradiction, 0, len(edges))
	for _, e := range edges {
		out = append(out, model.Contradiction{CaseID: caseID, Transcript1ID: e[0], Transcript2ID: e[1]})
	}
	return out
}
