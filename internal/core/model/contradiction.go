package model

import "time"

// Contradiction is a conflict the oracle found between two transcripts of a case.
// RunID identifies the comparison run that produced the row.
type Contradiction struct {
	ID            int64     `json:"id"`
	CaseID        int64     `json:"caseId"`
	Transcript1ID int64     `json:"transcript1Id"`
	Transcript2ID int64     `json:"transcript2Id"`
	RunID         string    `json:"runId"`
	Witness1      string    `json:"witness1"`
	Witness2      string    `json:"witness2"`
	Description   string    `json:"description"`
	Excerpt1      string    `json:"excerpt1"`
	Excerpt2      string    `json:"excerpt2"`
	Confidence    *int      `json:"confidence"`
	CreatedAt     time.Time `json:"createdAt"`
}

type InsertContradiction struct {
	CaseID        int64
	Transcript1ID int64
	Transcript2ID int64
	RunID         string
	Witness1      string
	Witness2      string
	Description   string
	Excerpt1      string
	Excerpt2      string
	Confidence    *int
}

// ContradictionFinding is the shape the oracle reports for each contradiction.
type ContradictionFinding struct {
	Description string `json:"description"`
	Excerpt1    string `json:"excerpt1"`
	Excerpt2    string `json:"excerpt2"`
	Confidence  *int   `json:"confidence,omitempty"`
}

// ConflictGroup is a set of transcripts connected through contradictions.
type ConflictGroup struct {
	TranscriptIDs      []int64  `json:"transcriptIds"`
	Witnesses          []string `json:"witnesses"`
	ContradictionCount int      `json:"contradictionCount"`
}
