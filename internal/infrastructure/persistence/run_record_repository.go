package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
)

// RunRecordModel is the GORM model for one reconciliation run
type RunRecordModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Trigger      string    `gorm:"type:varchar(20);not null"`
	StartedAt    time.Time `gorm:"not null;index"`
	FinishedAt   time.Time
	Scraped      int    `gorm:"not null;default:0"`
	Completed    int    `gorm:"not null;default:0"`
	Escalated    int    `gorm:"not null;default:0"`
	Unmatched    int    `gorm:"not null;default:0"`
	Pending      int    `gorm:"not null;default:0"`
	Failed       int    `gorm:"not null;default:0"`
	UpdatedCells int    `gorm:"not null;default:0"`
	Confirmed    bool   `gorm:"not null;default:false"`
	Error        string `gorm:"type:text"`
}

// TableName returns the table name for the model
func (RunRecordModel) TableName() string {
	return "reconciliation_runs"
}

// ToEntity converts the model to a domain entity
func (m *RunRecordModel) ToEntity() reconciliation.RunRecord {
	return reconciliation.RunRecord{
		ID:           m.ID,
		Trigger:      reconciliation.RunTrigger(m.Trigger),
		StartedAt:    m.StartedAt,
		FinishedAt:   m.FinishedAt,
		Scraped:      m.Scraped,
		Completed:    m.Completed,
		Escalated:    m.Escalated,
		Unmatched:    m.Unmatched,
		Pending:      m.Pending,
		Failed:       m.Failed,
		UpdatedCells: m.UpdatedCells,
		Confirmed:    m.Confirmed,
		Error:        m.Error,
	}
}

// RunRecordModelFromEntity creates a model from a domain entity
func RunRecordModelFromEntity(e *reconciliation.RunRecord) *RunRecordModel {
	return &RunRecordModel{
		ID:           e.ID,
		Trigger:      string(e.Trigger),
		StartedAt:    e.StartedAt,
		FinishedAt:   e.FinishedAt,
		Scraped:      e.Scraped,
		Completed:    e.Completed,
		Escalated:    e.Escalated,
		Unmatched:    e.Unmatched,
		Pending:      e.Pending,
		Failed:       e.Failed,
		UpdatedCells: e.UpdatedCells,
		Confirmed:    e.Confirmed,
		Error:        e.Error,
	}
}

// RunRecordRepository implements reconciliation.RunRepository with GORM
type RunRecordRepository struct {
	db *gorm.DB
}

// NewRunRecordRepository creates a new run record repository
func NewRunRecordRepository(db *gorm.DB) *RunRecordRepository {
	return &RunRecordRepository{db: db}
}

// Save inserts the record, or overwrites it if the id already exists
func (r *RunRecordRepository) Save(ctx context.Context, record *reconciliation.RunRecord) error {
	model := RunRecordModelFromEntity(record)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("save run record %s: %w", record.ID, err)
	}
	return nil
}

// FindRecent returns up to limit records, newest first
func (r *RunRecordRepository) FindRecent(ctx context.Context, limit int) ([]reconciliation.RunRecord, error) {
	var models []RunRecordModel
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("find recent run records: %w", err)
	}

	records := make([]reconciliation.RunRecord, len(models))
	for i := range models {
		records[i] = models[i].ToEntity()
	}
	return records, nil
}

var _ reconciliation.RunRepository = (*RunRecordRepository)(nil)
