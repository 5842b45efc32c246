package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/agenthands/depo/internal/core/model"
)

// GraphProjector mirrors contradictions into the graph database as
// (:Transcript)-[:CONTRADICTS]->(:Transcript) edges.
type GraphProjector struct {
	Driver GraphDriver
}

func NewGraphProjector(d GraphDriver) *GraphProjector {
	return &GraphProjector{Driver: d}
}

func (p *GraphProjector) ProjectContradiction(ctx context.Context, t1, t2 model.Transcript, c model.Contradiction) error {
	for _, t := range []model.Transcript{t1, t2} {
		params := map[string]interface{}{
			"id":           t.ID,
			"case_id":      t.CaseID,
			"title":        t.Title,
			"witness_name": t.WitnessName,
			"created_at":   t.CreatedAt.Format(time.RFC3339),
		}
		if _, err := p.Driver.ExecuteQuery(ctx, SaveTranscriptNodeQuery, params); err != nil {
			return fmt.Errorf("failed to save transcript node %d: %w", t.ID, err)
		}
	}

	var confidence interface{}
	if c.Confidence != nil {
		confidence = int64(*c.Confidence)
	}

	params := map[string]interface{}{
		"id":             c.ID,
		"case_id":        c.CaseID,
		"transcript1_id": c.Transcript1ID,
		"transcript2_id": c.Transcript2ID,
		"run_id":         c.RunID,
		"description":    c.Description,
		"excerpt1":       c.Excerpt1,
		"excerpt2":       c.Excerpt2,
		"confidence":     confidence,
		"created_at":     c.CreatedAt.Format(time.RFC3339),
	}
	if _, err := p.Driver.ExecuteQuery(ctx, SaveContradictionEdgeQuery, params); err != nil {
		return fmt.Errorf("failed to save contradiction edge %d: %w", c.ID, err)
	}
	return nil
}

// CaseEdges returns the (transcript1, transcript2) pairs stored for a case.
func (p *GraphProjector) CaseEdges(ctx context.Context, caseID int64) ([][2]int64, error) {
	res, err := p.Driver.ExecuteQuery(ctx, CaseContradictionsQuery, map[string]interface{}{"case_id": caseID})
	if err != nil {
		return nil, err
	}

	var edges [][2]int64
	for _, rec := range res.Records {
		a, _ := rec.Get("transcript1_id")
		b, _ := rec.Get("transcript2_id")
		ai, ok1 := a.(int64)
		bi, ok2 := b.(int64)
		if !ok1 || !ok2 {
			continue
		}
		edges = append(edges, [2]int64{ai, bi})
	}
	return edges, nil
}
