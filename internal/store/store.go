// Package store persists cases, transcripts, analysis rows, contradictions and users.
package store

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/agenthands/depo/internal/core/model"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

type Store interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	CreateUser(ctx context.Context, in model.InsertUser) (*model.User, error)

	ListCases(ctx context.Context) ([]model.Case, error)
	GetCase(ctx context.Context, id int64) (*model.Case, error)
	CreateCase(ctx context.Context, in model.InsertCase) (*model.Case, error)

	ListTranscripts(ctx context.Context) ([]model.Transcript, error)
	ListTranscriptsByCase(ctx context.Context, caseID int64) ([]model.Transcript, error)
	GetTranscript(ctx context.Context, id int64) (*model.Transcript, error)
	CreateTranscript(ctx context.Context, in model.InsertTranscript) (*model.Transcript, error)
	UpdateTranscriptStatus(ctx context.Context, id int64, status model.TranscriptStatus) error

	ListAnalysisByTranscript(ctx context.Context, transcriptID int64) ([]model.Analysis, error)
	CreateAnalysis(ctx context.Context, in model.InsertAnalysis) (*model.Analysis, error)

	ListContradictions(ctx context.Context) ([]model.Contradiction, error)
	ListContradictionsByCase(ctx context.Context, caseID int64) ([]model.Contradiction, error)
	CreateContradiction(ctx context.Context, in model.InsertContradiction) (*model.Contradiction, error)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash of u.
func CheckPassword(u *model.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// SeedSample creates the "Smith v. Johnson" demo case.
func SeedSample(ctx context.Context, s Store) (*model.Case, error) {
	number := "12345"
	description := "Insurance Claim Dispute"
	return s.CreateCase(ctx, model.InsertCase{
		Title:       "Smith v. Johnson",
		CaseNumber:  &number,
		Description: &description,
	})
}
