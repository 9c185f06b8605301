package reconciliation

import (
	"fmt"
	"strings"
)

const (
	// ManualRowWidth is the fixed field count of a manual escalation record
	ManualRowWidth = 11
	// PassthroughFields is the number of leading ledger fields copied into a manual record
	PassthroughFields = 9

	// Positions of the composite cells inside the passthrough fields
	customerFieldIndex  = 2
	serviceFieldIndex   = 7
	orderedAtFieldIndex = 8
)

// Escalation is a ledger sub-order the provider reported as partial or canceled
type Escalation struct {
	Row    Row
	Status RemoteStatus
}

// MarketOrderID returns the escalated row's market order id
func (e Escalation) MarketOrderID(schema Schema) string {
	return e.Row.Get(schema.MarketOrderIDColumn)
}

// ManualRow is the fixed-width record appended to the manual escalation ledger
type ManualRow [ManualRowWidth]string

// Values returns the record as a slice in column order
func (m ManualRow) Values() []string {
	return m[:]
}

// ManualNote renders the human-readable note stored in the last manual field.
// status is the provider's wording, as shown by RemoteStatus.Label.
func ManualNote(status string) string {
	return fmt.Sprintf("order requires processing in state %s", status)
}

// BuildManualRow lays out an escalation as nine passthrough fields, the review token and a note
func BuildManualRow(schema Schema, e Escalation) (ManualRow, error) {
	var row ManualRow
	if len(e.Row.Values) < PassthroughFields {
		return row, fmt.Errorf("%w: row %d has %d fields, need %d",
			ErrMalformedRow, e.Row.Number, len(e.Row.Values), PassthroughFields)
	}
	copy(row[:PassthroughFields], e.Row.Values[:PassthroughFields])
	row[PassthroughFields] = schema.ReviewNeeded
	row[PassthroughFields+1] = ManualNote(e.Status.Label())
	return row, nil
}

// Notification is the webhook payload announcing an order that needs manual processing
type Notification struct {
	OrderNum     string `json:"order_num"`
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	OrderTime    string `json:"order_time"`
	OrderService string `json:"order_service"`
}

// ServiceMessage renders the order_service text of a notification
func ServiceMessage(service, status string) string {
	return fmt.Sprintf("%s order in state %s requires manual processing", service, status)
}

// BuildNotification parses the composite ledger cells of an escalation.
// The customer cell holds "username\n...\nuser id"; the order-time cell holds "...\n(timestamp)".
func BuildNotification(schema Schema, e Escalation) (Notification, error) {
	values := e.Row.Values
	if len(values) < PassthroughFields {
		return Notification{}, fmt.Errorf("%w: row %d has %d fields, need %d",
			ErrMalformedRow, e.Row.Number, len(values), PassthroughFields)
	}

	customer := splitLines(values[customerFieldIndex])
	if len(customer) < 3 {
		return Notification{}, fmt.Errorf("%w: row %d customer cell has %d lines, need 3",
			ErrMalformedRow, e.Row.Number, len(customer))
	}

	orderedAt := splitLines(values[orderedAtFieldIndex])
	if len(orderedAt) < 2 {
		return Notification{}, fmt.Errorf("%w: row %d order time cell has %d lines, need 2",
			ErrMalformedRow, e.Row.Number, len(orderedAt))
	}

	return Notification{
		OrderNum:     e.MarketOrderID(schema),
		UserID:       customer[2],
		Username:     customer[0],
		OrderTime:    strings.NewReplacer("(", "", ")", "").Replace(orderedAt[1]),
		OrderService: ServiceMessage(values[serviceFieldIndex], e.Status.Label()),
	}, nil
}

func splitLines(cell string) []string {
	return strings.Split(strings.ReplaceAll(cell, "\r\n", "\n"), "\n")
}
