package model

import (
	"errors"
	"fmt"
	"time"
)

type TranscriptStatus string

const (
	StatusPending    TranscriptStatus = "pending"
	StatusProcessing TranscriptStatus = "processing"
	StatusAnalyzed   TranscriptStatus = "analyzed"
	StatusError      TranscriptStatus = "error"
)

var ErrInvalidTransition = errors.New("invalid status transition")

var transitions = map[TranscriptStatus][]TranscriptStatus{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusAnalyzed, StatusError},
}

func (s TranscriptStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusAnalyzed, StatusError:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s TranscriptStatus) Terminal() bool {
	return s == StatusAnalyzed || s == StatusError
}

func (s TranscriptStatus) CanTransition(to TranscriptStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns to if the move is allowed, otherwise an error wrapping
// ErrInvalidTransition.
func (s TranscriptStatus) Transition(to TranscriptStatus) (TranscriptStatus, error) {
	if !s.CanTransition(to) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, to)
	}
	return to, nil
}

// Transcript is one witness deposition uploaded into a case. Content never changes
// after creation; Status is moved only by the analysis pipeline.
type Transcript struct {
	ID          int64            `json:"id"`
	CaseID      int64            `json:"caseId"`
	Title       string           `json:"title"`
	WitnessName string           `json:"witnessName"`
	WitnessType *string          `json:"witnessType"`
	Date        *time.Time       `json:"date"`
	Content     string           `json:"content"`
	Pages       int              `json:"pages"`
	Status      TranscriptStatus `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
}

type InsertTranscript struct {
	CaseID      int64
	Title       string `validate:"required"`
	WitnessName string `validate:"required"`
	WitnessType *string
	Date        *time.Time
	Content     string
	Pages       int `validate:"gte=0"`
}
