package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/depo/internal/core/model"
)

func TestProjectContradiction(t *testing.T) {
	mockDriver := &MockDriver{}
	p := NewGraphProjector(mockDriver)

	conf := 92
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	t1 := model.Transcript{ID: 1, CaseID: 9, Title: "Smith", WitnessName: "John Smith", CreatedAt: now}
	t2 := model.Transcript{ID: 2, CaseID: 9, Title: "Johnson", WitnessName: "Sarah Johnson", CreatedAt: now}
	c := model.Contradiction{
		ID: 5, CaseID: 9, Transcript1ID: 1, Transcript2ID: 2, RunID: "run-1",
		Description: "time", Excerpt1: "3:30", Excerpt2: "5:00", Confidence: &conf, CreatedAt: now,
	}

	err := p.ProjectContradiction(context.Background(), t1, t2, c)
	require.NoError(t, err)

	require.Len(t, mockDriver.Executed, 3)
	assert.Equal(t, SaveTranscriptNodeQuery, mockDriver.Executed[0].Query)
	assert.Equal(t, "John Smith", mockDriver.Executed[0].Params["witness_name"])
	assert.Equal(t, "Sarah Johnson", mockDriver.Executed[1].Params["witness_name"])

	edge := mockDriver.Executed[2]
	assert.Equal(t, SaveContradictionEdgeQuery, edge.Query)
	assert.Equal(t, int64(5), edge.Params["id"])
	assert.Equal(t, int64(92), edge.Params["confidence"])
	assert.Equal(t, "2024-01-02T03:04:05Z", edge.Params["created_at"])
}

func TestProjectContradictionDriverError(t *testing.T) {
	mockDriver := &MockDriver{Err: errors.New("connection reset")}
	p := NewGraphProjector(mockDriver)

	err := p.ProjectContradiction(context.Background(), model.Transcript{ID: 1}, model.Transcript{ID: 2}, model.Contradiction{})
	assert.ErrorContains(t, err, "connection reset")
	assert.Len(t, mockDriver.Executed, 1)
}

func TestCaseEdges(t *testing.T) {
	mockDriver := &MockDriver{
		MockResult: neo4j.EagerResult{
			Records: []*neo4j.Record{
				{Keys: []string{"transcript1_id", "transcript2_id"}, Values: []any{int64(1), int64(2)}},
				{Keys: []string{"transcript1_id", "transcript2_id"}, Values: []any{int64(2), int64(3)}},
			},
		},
	}
	p := NewGraphProjector(mockDriver)

	edges, err := p.CaseEdges(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, [][2]int64{{1, 2}, {2, 3}}, edges)
	assert.Equal(t, int64(9), mockDriver.Executed[0].Params["case_id"])
}
