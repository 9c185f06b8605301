package reconciliation

import "errors"

var (
	// ErrInvalidSchema is returned when the ledger schema is incomplete
	ErrInvalidSchema = errors.New("reconciliation: invalid ledger schema")

	// ErrMalformedRow is returned when a ledger row lacks fields a decision depends on
	ErrMalformedRow = errors.New("reconciliation: malformed ledger row")

	// ErrColumnNotFound is returned when a ledger sheet has no header with the requested name
	ErrColumnNotFound = errors.New("reconciliation: ledger column not found")

	// ErrRemoteLookupFailed is returned when the fulfillment provider cannot report a status
	ErrRemoteLookupFailed = errors.New("reconciliation: remote status lookup failed")

	// ErrRunInProgress is returned when another run holds the run lock
	ErrRunInProgress = errors.New("reconciliation: a run is already in progress")

	// ErrRunFailed is returned when an orchestration run hit its failure boundary
	ErrRunFailed = errors.New("reconciliation: run failed")
)
