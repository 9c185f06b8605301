package reconciliation

import "context"

// ConfirmHandle is a run-scoped capability that ticks an order in the admin console.
// It is owned by the orchestration run that scraped it and must never be stored or serialized.
type ConfirmHandle interface {
	Confirm(ctx context.Context) error
}

// BulkConfirmHandle triggers the console's bulk "shipment complete" action for every ticked order
type BulkConfirmHandle interface {
	ConfirmAll(ctx context.Context) error
}

// ScrapedOrder is an order the admin console lists as shipping
type ScrapedOrder struct {
	MarketOrderID string
	Handle        ConfirmHandle
}

// ScrapeResult is the ordered list of scraped orders plus the bulk confirmation handle
type ScrapeResult struct {
	Orders []ScrapedOrder
	Bulk   BulkConfirmHandle
}

// OrderIDs returns the market order ids of the given orders, in order
func OrderIDs(orders []ScrapedOrder) []string {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.MarketOrderID)
	}
	return ids
}
