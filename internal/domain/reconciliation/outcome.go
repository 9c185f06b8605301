package reconciliation

// Outcome is the Reconciliation Engine's decision for a batch of scraped orders
type Outcome struct {
	// Completed holds orders whose every matched sub-order resolved to COMPLETED
	Completed []ScrapedOrder
	// Escalations holds one entry per partial or canceled sub-order
	Escalations []Escalation

	// Unmatched lists scraped ids with no shipping-state ledger row
	Unmatched []string
	// Pending lists scraped ids left open because some sub-order is still in progress
	Pending []string
	// Failed lists scraped ids whose processing hit an error
	Failed []string
}

// SyncResult is the State Synchronizer's report
type SyncResult struct {
	// AnyUpdated is true iff at least one ledger cell changed
	AnyUpdated bool
	// UpdatedCells counts ledger cells moved to the delivered status
	UpdatedCells int
	Orders       []ScrapedOrder
}
