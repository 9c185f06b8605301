package reconciliation

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RemoteStatusCode is the fulfillment provider's order state, normalized
type RemoteStatusCode string

const (
	// RemoteStatusCompleted means the provider fully delivered the sub-order
	RemoteStatusCompleted RemoteStatusCode = "COMPLETED"
	// RemoteStatusPartial means the provider delivered only part of the sub-order
	RemoteStatusPartial RemoteStatusCode = "PARTIAL"
	// RemoteStatusCanceled means the provider canceled the sub-order
	RemoteStatusCanceled RemoteStatusCode = "CANCELED"
	// RemoteStatusPending covers every other provider state (pending, in progress, processing, ...)
	RemoteStatusPending RemoteStatusCode = "PENDING"
)

// ParseRemoteStatusCode maps the provider's free-text status to a RemoteStatusCode
func ParseRemoteStatusCode(raw string) RemoteStatusCode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed":
		return RemoteStatusCompleted
	case "partial":
		return RemoteStatusPartial
	case "canceled", "cancelled":
		return RemoteStatusCanceled
	default:
		return RemoteStatusPending
	}
}

// String returns the string representation of RemoteStatusCode
func (c RemoteStatusCode) String() string {
	return string(c)
}

// NeedsEscalation returns true for states a human has to resolve
func (c RemoteStatusCode) NeedsEscalation() bool {
	return c == RemoteStatusPartial || c == RemoteStatusCanceled
}

// RemoteStatus is the provider's answer for one store sub-order.
// It is fetched on demand and never cached across a run.
type RemoteStatus struct {
	Code RemoteStatusCode
	// Raw is the status text exactly as the provider sent it
	Raw        string
	Charge     decimal.Decimal
	StartCount int64
	Remains    int64
	Currency   string
}

// Label returns the provider's own status text, falling back to the normalized code
func (s RemoteStatus) Label() string {
	if raw := strings.TrimSpace(s.Raw); raw != "" {
		return raw
	}
	return s.Code.String()
}
