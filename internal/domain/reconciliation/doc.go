// Package reconciliation contains the shipping reconciliation bounded context.
// It decides, per marketplace order, whether fulfillment finished, needs a human,
// or is still pending, by comparing three sources that are never fully in sync.
//
// Key concepts:
//   - ScrapedOrder: an order listed as "shipping" in the admin console, carrying a run-scoped ConfirmHandle
//   - Snapshot / Row: the spreadsheet ledger, read by column name
//   - RemoteStatus: the fulfillment provider's view of one store sub-order
//   - Escalation / ManualRow: sub-orders that need manual review and their fixed 11-field record
//
// Design Pattern: Ports & Adapters
//   - Ports (LedgerGateway, FulfillmentClient, Notifier, Console, ...) are defined here
//   - Adapters (sheets, fulfillment, webhook, console) live in the infrastructure layer
package reconciliation
