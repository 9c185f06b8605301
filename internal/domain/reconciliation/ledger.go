package reconciliation

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Ledger Schema
// ---------------------------------------------------------------------------

// Schema names the ledger columns and status tokens the reconciler depends on.
// Real ledgers use localized headers, so nothing below is hard-coded elsewhere.
type Schema struct {
	// MarketOrderIDColumn holds the marketplace order id (may be a composite value)
	MarketOrderIDColumn string
	// StoreOrderIDColumn holds the fulfillment provider's sub-order id
	StoreOrderIDColumn string
	// OrderStatusColumn holds the shipping status of the row
	OrderStatusColumn string
	// ReviewStateColumn holds the review state on the manual escalation ledger
	ReviewStateColumn string

	// StatusShipping marks a row whose shipment is still in flight
	StatusShipping string
	// StatusDelivered marks a row whose shipment is complete
	StatusDelivered string
	// ReviewNeeded marks a manual escalation row that no human has resolved yet
	ReviewNeeded string
}

// DefaultSchema returns the schema used when no override is configured
func DefaultSchema() Schema {
	return Schema{
		MarketOrderIDColumn: "market_order_id",
		StoreOrderIDColumn:  "store_order_id",
		OrderStatusColumn:   "order_status",
		ReviewStateColumn:   "review_state",
		StatusShipping:      "SHIPPING",
		StatusDelivered:     "DELIVERED",
		ReviewNeeded:        "NEEDS_REVIEW",
	}
}

// Validate returns an error if any schema field is empty
func (s Schema) Validate() error {
	fields := map[string]string{
		"market_order_id column": s.MarketOrderIDColumn,
		"store_order_id column":  s.StoreOrderIDColumn,
		"order_status column":    s.OrderStatusColumn,
		"review_state column":    s.ReviewStateColumn,
		"shipping status":        s.StatusShipping,
		"delivered status":       s.StatusDelivered,
		"review needed token":    s.ReviewNeeded,
	}
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s is empty", ErrInvalidSchema, name)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

// Row is one data row of a ledger sheet.
// Number is the 1-based sheet row; the header occupies row 1, so the first data row is 2.
type Row struct {
	Number int
	Values []string

	columns map[string]int
}

// Get returns the value of the named column, or "" if the row has no such column
func (r Row) Get(column string) string {
	idx, ok := r.columns[column]
	if !ok || idx >= len(r.Values) {
		return ""
	}
	return r.Values[idx]
}

// Has reports whether the row's sheet has the named column
func (r Row) Has(column string) bool {
	_, ok := r.columns[column]
	return ok
}

// Snapshot is a point-in-time read of a ledger sheet
type Snapshot struct {
	Header []string
	Rows   []Row

	columns map[string]int
}

// NewSnapshot builds a snapshot from raw sheet values where values[0] is the header row.
// Short rows are padded to the header width.
func NewSnapshot(values [][]string) *Snapshot {
	s := &Snapshot{columns: make(map[string]int)}
	if len(values) == 0 {
		return s
	}

	s.Header = make([]string, len(values[0]))
	for i, h := range values[0] {
		name := strings.TrimSpace(h)
		s.Header[i] = name
		if _, dup := s.columns[name]; !dup && name != "" {
			s.columns[name] = i
		}
	}

	s.Rows = make([]Row, 0, len(values)-1)
	for i, raw := range values[1:] {
		width := len(s.Header)
		if len(raw) > width {
			width = len(raw)
		}
		cells := make([]string, width)
		copy(cells, raw)
		s.Rows = append(s.Rows, Row{
			Number:  i + 2,
			Values:  cells,
			columns: s.columns,
		})
	}
	return s
}

// HasColumn reports whether the header contains the named column
func (s *Snapshot) HasColumn(column string) bool {
	_, ok := s.columns[column]
	return ok
}

// ColumnIndex returns the 1-based column index of the named header
func (s *Snapshot) ColumnIndex(column string) (int, bool) {
	idx, ok := s.columns[column]
	if !ok {
		return 0, false
	}
	return idx + 1, true
}

// Len returns the number of data rows
func (s *Snapshot) Len() int {
	return len(s.Rows)
}

// ShippingRowsFor returns the rows still in shipping state whose market order id
// contains orderID. Matching is by substring: the ledger may embed the id in a
// composite value.
func (s *Snapshot) ShippingRowsFor(schema Schema, orderID string) []Row {
	if orderID == "" {
		return nil
	}
	var matches []Row
	for _, row := range s.Rows {
		if row.Get(schema.OrderStatusColumn) != schema.StatusShipping {
			continue
		}
		if strings.Contains(row.Get(schema.MarketOrderIDColumn), orderID) {
			matches = append(matches, row)
		}
	}
	return matches
}

// PendingReviewRowsFor returns manual-ledger rows awaiting review for exactly orderID
func (s *Snapshot) PendingReviewRowsFor(schema Schema, orderID string) []Row {
	var matches []Row
	for _, row := range s.Rows {
		if row.Get(schema.ReviewStateColumn) == schema.ReviewNeeded &&
			row.Get(schema.MarketOrderIDColumn) == orderID {
			matches = append(matches, row)
		}
	}
	return matches
}
