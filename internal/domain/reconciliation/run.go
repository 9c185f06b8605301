package reconciliation

import (
	"time"

	"github.com/google/uuid"
)

// RunTrigger identifies what started a run
type RunTrigger string

const (
	RunTriggerManual   RunTrigger = "manual"
	RunTriggerSchedule RunTrigger = "schedule"
	RunTriggerHTTP     RunTrigger = "http"
)

// RunReport is what an orchestration run hands back to its caller.
// A failed run reports no completed orders even if some ledger writes landed.
type RunReport struct {
	Scraped      int
	Completed    []ScrapedOrder
	Escalations  []Escalation
	Unmatched    []string
	Pending      []string
	Failed       []string
	UpdatedCells int
	Confirmed    bool
	Err          error
}

// Succeeded returns true if the run finished without hitting its failure boundary
func (r *RunReport) Succeeded() bool {
	return r.Err == nil
}

// RunRecord is the persisted summary of one run
type RunRecord struct {
	ID           uuid.UUID
	Trigger      RunTrigger
	StartedAt    time.Time
	FinishedAt   time.Time
	Scraped      int
	Completed    int
	Escalated    int
	Unmatched    int
	Pending      int
	Failed       int
	UpdatedCells int
	Confirmed    bool
	Error        string
}

// NewRunRecord creates a record for a run that starts now
func NewRunRecord(trigger RunTrigger, startedAt time.Time) *RunRecord {
	return &RunRecord{
		ID:        uuid.New(),
		Trigger:   trigger,
		StartedAt: startedAt,
	}
}

// Finish copies the report's counters into the record
func (r *RunRecord) Finish(report *RunReport, finishedAt time.Time) {
	r.FinishedAt = finishedAt
	if report == nil {
		return
	}
	r.Scraped = report.Scraped
	r.Completed = len(report.Completed)
	r.Escalated = len(report.Escalations)
	r.Unmatched = len(report.Unmatched)
	r.Pending = len(report.Pending)
	r.Failed = len(report.Failed)
	r.UpdatedCells = report.UpdatedCells
	r.Confirmed = report.Confirmed
	if report.Err != nil {
		r.Error = report.Err.Error()
	}
}

// Duration returns how long the run took
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
