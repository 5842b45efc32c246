package model

import "time"

// Case is a legal matter grouping transcripts and contradictions.
type Case struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	CaseNumber  *string   `json:"caseNumber"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type InsertCase struct {
	Title       string  `json:"title" binding:"required"`
	CaseNumber  *string `json:"caseNumber"`
	Description *string `json:"description"`
}
