/*
store.go - Contracts between the query engine and the ledger

PURPOSE:
  The engine never talks to a database directly. It needs three narrow
  capabilities from the ledger store and one from the member directory.
  Any backend (SQLite, PostgreSQL, an in-memory index) can implement them.

KEY INTERFACES:
  LedgerStore: Grouped aggregate query + scoped detail queries
  OwnerLookup: Batch member metadata lookup

GROUPED AGGREGATE:
  SummarizeGroups is the only "wide" read. It groups line items by
  (purchase_no, member_id) and returns max(created_at), max(date) and
  sum(amount) per group. No full rows are materialized.

CANCELLATION:
  Every method receives a context carrying the per-call deadline. Backends
  MUST pass it to the driver so an expired call is aborted, not orphaned.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite ledger
  - purchase/store/memory.go: In-memory ledger for tests and dev

SEE ALSO:
  - timeout.go: Wraps every call made through these interfaces
  - engine.go: The only caller
*/
package purchase

import "context"

// LedgerStore is the read contract the engine needs from the ledger.
type LedgerStore interface {
	// SummarizeGroups returns one Summary per (purchase_no, member_id) group
	// of line items inside the filter. Order is unspecified. Owner is nil.
	SummarizeGroups(ctx context.Context, filter Filter) ([]Summary, error)

	// LineItemsFor returns full line items whose purchase number is in
	// purchaseNos and which also satisfy filter, ordered by
	// (created_at DESC, date DESC, purchase_no DESC).
	LineItemsFor(ctx context.Context, purchaseNos []string, filter Filter) ([]LineItem, error)

	// AdjustmentsFor returns every adjustment linked to any of purchaseNos.
	AdjustmentsFor(ctx context.Context, purchaseNos []string) ([]Adjustment, error)
}

// OwnerLookup resolves member display metadata. Missing ids are simply
// absent from the returned map.
type OwnerLookup interface {
	OwnersByID(ctx context.Context, ids []string) (map[string]Owner, error)
}
