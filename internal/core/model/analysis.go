package model

import "time"

type AnalysisType string

const (
	AnalysisQuestions AnalysisType = "questions"
	AnalysisInsights  AnalysisType = "insights"
)

// Analysis is an append-only oracle artifact for a transcript. Content holds the
// JSON-encoded result array.
type Analysis struct {
	ID           int64        `json:"id"`
	TranscriptID int64        `json:"transcriptId"`
	Type         AnalysisType `json:"type"`
	Content      string       `json:"content"`
	CreatedAt    time.Time    `json:"createdAt"`
}

type InsertAnalysis struct {
	TranscriptID int64
	Type         AnalysisType
	Content      string
}

// FollowUpQuestion is one entry of a "questions" analysis.
type FollowUpQuestion struct {
	Question  string `json:"question"`
	Reasoning string `json:"reasoning"`
	Reference string `json:"reference"`
}

// Insight is one entry of an "insights" analysis.
type Insight struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
}
