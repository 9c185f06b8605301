package dto

import (
	"time"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
)

// RunRecordResponse is the API view of a reconciliation run
type RunRecordResponse struct {
	ID              string    `json:"id"`
	Trigger         string    `json:"trigger"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	Scraped         int       `json:"scraped"`
	Completed       int       `json:"completed"`
	Escalated       int       `json:"escalated"`
	Unmatched       int       `json:"unmatched"`
	Pending         int       `json:"pending"`
	Failed          int       `json:"failed"`
	UpdatedCells    int       `json:"updated_cells"`
	Confirmed       bool      `json:"confirmed"`
	Error           string    `json:"error,omitempty"`
}

// NewRunRecordResponse converts a run record
func NewRunRecordResponse(r *reconciliation.RunRecord) RunRecordResponse {
	return RunRecordResponse{
		ID:              r.ID.String(),
		Trigger:         string(r.Trigger),
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		DurationSeconds: r.Duration().Seconds(),
		Scraped:         r.Scraped,
		Completed:       r.Completed,
		Escalated:       r.Escalated,
		Unmatched:       r.Unmatched,
		Pending:         r.Pending,
		Failed:          r.Failed,
		UpdatedCells:    r.UpdatedCells,
		Confirmed:       r.Confirmed,
		Error:           r.Error,
	}
}

// NewRunRecordListResponse converts a slice of run records
func NewRunRecordListResponse(records []reconciliation.RunRecord) []RunRecordResponse {
	out := make([]RunRecordResponse, len(records))
	for i := range records {
		out[i] = NewRunRecordResponse(&records[i])
	}
	return out
}
