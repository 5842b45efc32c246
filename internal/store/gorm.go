package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/agenthands/depo/internal/core/model"
)

type userRecord struct {
	ID       int64  `gorm:"primaryKey"`
	Username string `gorm:"uniqueIndex;not null"`
	Password string `gorm:"not null"`
}

func (userRecord) TableName() string { return "users" }

type caseRecord struct {
	ID          int64  `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	CaseNumber  *string
	Description *string
	CreatedAt   time.Time
}

func (caseRecord) TableName() string { return "cases" }

type transcriptRecord struct {
	ID          int64  `gorm:"primaryKey"`
	CaseID      int64  `gorm:"index;not null"`
	Title       string `gorm:"not null"`
	WitnessName string `gorm:"not null"`
	WitnessType *string
	Date        *time.Time
	Content     string `gorm:"type:text;not null"`
	Pages       int
	Status      string `gorm:"not null;default:'pending'"`
	CreatedAt   time.Time
}

func (transcriptRecord) TableName() string { return "transcripts" }

type analysisRecord struct {
	ID           int64          `gorm:"primaryKey"`
	TranscriptID int64          `gorm:"index;not null"`
	Type         string         `gorm:"not null"`
	Content      datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt    time.Time
}

func (analysisRecord) TableName() string { return "analysis" }

type contradictionRecord struct {
	ID            int64  `gorm:"primaryKey"`
	CaseID        int64  `gorm:"index;not null"`
	Transcript1ID int64  `gorm:"not null"`
	Transcript2ID int64  `gorm:"not null"`
	RunID         string `gorm:"index"`
	Witness1      string
	Witness2      string
	Description   string `gorm:"type:text;not null"`
	Excerpt1      string `gorm:"type:text;not null"`
	Excerpt2      string `gorm:"type:text;not null"`
	Confidence    *int
	CreatedAt     time.Time
}

func (contradictionRecord) TableName() string { return "contradictions" }

// Gorm is a relational Store backed by gorm.
type Gorm struct {
	db *gorm.DB
}

var _ Store = (*Gorm)(nil)

// OpenPostgres connects to dsn and migrates the schema.
func OpenPostgres(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewGorm(db)
}

func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(
		&userRecord{},
		&caseRecord{},
		&transcriptRecord{},
		&analysisRecord{},
		&contradictionRecord{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, what string, key any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, key, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %v: %w", what, key, err)
}

// Users

func (g *Gorm) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var rec userRecord
	if err := g.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return &model.User{ID: rec.ID, Username: rec.Username, Password: rec.Password}, nil
}

func (g *Gorm) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var rec userRecord
	if err := g.db.WithContext(ctx).Where("username = ?", username).First(&rec).Error; err != nil {
		return nil, notFound(err, "user", username)
	}
	return &model.User{ID: rec.ID, Username: rec.Username, Password: rec.Password}, nil
}

func (g *Gorm) CreateUser(ctx context.Context, in model.InsertUser) (*model.User, error) {
	if _, err := g.GetUserByUsername(ctx, in.Username); err == nil {
		return nil, fmt.Errorf("username %q: %w", in.Username, ErrDuplicate)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	rec := userRecord{Username: in.Username, Password: hash}
	if err := g.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("username %q: %w", in.Username, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &model.User{ID: rec.ID, Username: rec.Username, Password: rec.Password}, nil
}

// Cases

func (r caseRecord) toModel() model.Case {
	return model.Case{
		ID:          r.ID,
		Title:       r.Title,
		CaseNumber:  r.CaseNumber,
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func (g *Gorm) ListCases(ctx context.Context) ([]model.Case, error) {
	var recs []caseRecord
	if err := g.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	out := make([]model.Case, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (g *Gorm) GetCase(ctx context.Context, id int64) (*model.Case, error) {
	var rec caseRecord
	if err := g.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, notFound(err, "case", id)
	}
	c := rec.toModel()
	return &c, nil
}

func (g *Gorm) CreateCase(ctx context.Context, in model.InsertCase) (*model.Case, error) {
	rec := caseRecord{
		Title:       in.Title,
		CaseNumber:  emptyToNil(in.CaseNumber),
		Description: emptyToNil(in.Description),
		CreatedAt:   time.Now().UTC(),
	}
	if err := g.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}
	c := rec.toModel()
	return &c, nil
}

// Transcripts

func (r transcriptRecord) toModel() model.Transcript {
	return model.Transcript{
		ID:          r.ID,
		CaseID:      r.CaseID,
		Title:       r.Title,
		WitnessName: r.WitnessName,
		WitnessType: r.WitnessType,
		Date:        r.Date,
		Content:     r.Content,
		Pages:       r.Pages,
		Status:      model.TranscriptStatus(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func (g *Gorm) listTranscripts(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]model.Transcript, error) {
	var recs []transcriptRecord
	if err := scope(g.db.WithContext(ctx)).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	out := make([]model.Transcript, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (g *Gorm) ListTranscripts(ctx context.Context) ([]model.Transcript, error) {
	return g.listTranscripts(ctx, func(db *gorm.DB) *gorm.DB { return db })
}

func (g *Gorm) ListTranscriptsByCase(ctx context.Context, caseID int64) ([]model.Transcript, error) {
	return g.listTranscripts(ctx, func(db *gorm.DB) *gorm.DB { return db.Where("case_id = ?", caseID) })
}

func (g *Gorm) GetTranscript(ctx context.Context, id int64) (*model.Transcript, error) {
	var rec transcriptRecord
	if err := g.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, notFound(err, "transcript", id)
	}
	t := rec.toModel()
	return &t, nil
}

func (g *Gorm) CreateTranscript(ctx context.Context, in model.InsertTranscript) (*model.Transcript, error) {
	rec := transcriptRecord{
		CaseID:      in.CaseID,
		Title:       in.Title,
		WitnessName: in.WitnessName,
		WitnessType: emptyToNil(in.WitnessType),
		Date:        in.Date,
		Content:     in.Content,
		Pages:       in.Pages,
		Status:      string(model.StatusPending),
		CreatedAt:   time.Now().UTC(),
	}
	if err := g.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("failed to create transcript: %w", err)
	}
	t := rec.toModel()
	return &t, nil
}

// UpdateTranscriptStatus moves the status inside a transaction holding a row lock so
// two overlapping runs cannot both pass the transition check.
func (g *Gorm) UpdateTranscriptStatus(ctx context.Context, id int64, status model.TranscriptStatus) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec transcriptRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, id).Error; err != nil {
			return notFound(err, "transcript", id)
		}
		next, err := model.TranscriptStatus(rec.Status).Transition(status)
		if err != nil {
			return fmt.Errorf("transcript %d: %w", id, err)
		}
		return tx.Model(&rec).Update("status", string(next)).Error
	})
}

// Analysis

func (g *Gorm) ListAnalysisByTranscript(ctx context.Context, transcriptID int64) ([]model.Analysis, error) {
	var recs []analysisRecord
	if err := g.db.WithContext(ctx).Where("transcript_id = ?", transcriptID).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list analysis: %w", err)
	}
	out := make([]model.Analysis, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.Analysis{
			ID:           r.ID,
			TranscriptID: r.TranscriptID,
			Type:         model.AnalysisType(r.Type),
			Content:      string(r.Content),
			CreatedAt:    r.CreatedAt.UTC(),
		})
	}
	return out, nil
}

func (g *Gorm) CreateAnalysis(ctx context.Context, in model.InsertAnalysis) (*model.Analysis, error) {
	rec := analysisRecord{
		TranscriptID: in.TranscriptID,
		Type:         string(in.Type),
		Content:      datatypes.JSON(in.Content),
		CreatedAt:    time.Now().UTC(),
	}
	if err := g.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("failed to create analysis: %w", err)
	}
	return &model.Analysis{
		ID:           rec.ID,
		TranscriptID: rec.TranscriptID,
		Type:         in.Type,
		Content:      in.Content,
		CreatedAt:    rec.CreatedAt,
	}, nil
}

// Contradictions

func (r contradictionRecord) toModel() model.Contradiction {
	return model.Contradiction{
		ID:            r.ID,
		CaseID:        r.CaseID,
		Transcript1ID: r.Transcript1ID,
		Transcript2ID: r.Transcript2ID,
		RunID:         r.RunID,
		Witness1:      r.Witness1,
		Witness2:      r.Witness2,
		Description:   r.Description,
		Excerpt1:      r.Excerpt1,
		Excerpt2:      r.Excerpt2,
		Confidence:    r.Confidence,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

func (g *Gorm) listContradictions(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]model.Contradiction, error) {
	var recs []contradictionRecord
	if err := scope(g.db.WithContext(ctx)).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list contradictions: %w", err)
	}
	out := make([]model.Contradiction, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (g *Gorm) ListContradictions(ctx context.Context) ([]model.Contradiction, error) {
	return g.listContradictions(ctx, func(db *gorm.DB) *gorm.DB { return db })
}

func (g *Gorm) ListContradictionsByCase(ctx context.Context, caseID int64) ([]model.Contradiction, error) {
	return g.listContradictions(ctx, func(db *gorm.DB) *gorm.DB { return db.Where("case_id = ?", caseID) })
}

func (g *Gorm) CreateContradiction(ctx context.Context, in model.InsertContradiction) (*model.Contradiction, error) {
	rec := contradictionRecord{
		CaseID:        in.CaseID,
		Transcript1ID: in.Transcript1ID,
		Transcript2ID: in.Transcript2ID,
		RunID:         in.RunID,
		Witness1:      in.Witness1,
		Witness2:      in.Witness2,
		Description:   in.Description,
		Excerpt1:      in.Excerpt1,
		Excerpt2:      in.Excerpt2,
		Confidence:    in.Confidence,
		CreatedAt:     time.Now().UTC(),
	}
	if err := g.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("failed to create contradiction: %w", err)
	}
	c := rec.toModel()
	return &c, nil
}
