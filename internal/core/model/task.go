package model

import "time"

type TaskKind string

const (
	TaskAnalysis   TaskKind = "analysis"
	TaskComparison TaskKind = "comparison"
)

type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Task is the observable record of one background job.
type Task struct {
	ID          string     `json:"id"`
	Kind        TaskKind   `json:"kind"`
	SubjectID   int64      `json:"subjectId"`
	Status      TaskStatus `json:"status"`
	Attempts    int        `json:"attempts"`
	FailedPairs int        `json:"failedPairs"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt"`
}
