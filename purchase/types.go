/*
Package purchase provides the read-side transaction engine for rubber purchases.

PURPOSE:
  Purchase line items are written one row at a time, but buyers and members
  think in "transactions": every line sharing a purchase number, net of the
  fees charged against it. This package turns the flat ledger into grouped,
  sorted, searchable, paginated transactions without loading full history.

KEY CONCEPTS IN THIS FILE (types.go):
  - LineItem:    One purchase row (immutable, owned by the ledger store)
  - Adjustment:  One fee row, optionally linked to a purchase number
  - Summary:     Cheap aggregate view of one purchase-number group
  - Transaction: Caller-visible group with line items, fees, and net amount
  - Pagination:  Page metadata returned alongside a window

TWO-PHASE QUERY:
  1. Aggregate pass over the ledger produces Summaries (no full rows)
  2. Summaries are enriched, searched, sorted, and paginated in memory
  3. Full rows are fetched only for the purchase numbers in the page window

DESIGN PRINCIPLES:
  1. Immutability: LineItem/Adjustment are never mutated here
  2. Precision: Amounts use decimal.Decimal
  3. Determinism: Ordering is a total order, so pages are stable
  4. Bounded: Default date window, group ceiling, per-call deadline

SEE ALSO:
  - store.go: Contracts the ledger store must satisfy
  - engine.go: The pipeline that ties the stages together
  - errors.go: Typed errors surfaced to the HTTP layer
*/
package purchase

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER ROWS - Owned by the store, never mutated by the engine
// =============================================================================

// LineItem is one purchase entry. PurchaseNo is the correlation id shared by
// every line of the same logical transaction.
type LineItem struct {
	ID          string
	PurchaseNo  string
	MemberID    string
	Date        time.Time
	CreatedAt   time.Time
	Amount      decimal.Decimal
	ProductType string
	GrossWeight decimal.Decimal
	NetWeight   decimal.Decimal
	UnitPrice   decimal.Decimal
	Notes       string
}

// Adjustment is one fee entry. Amount is non-negative and is subtracted
// from the transaction it is linked to. PurchaseNo is nil for fees that are
// not tied to a purchase (they never reach this engine's output).
type Adjustment struct {
	ID         string
	PurchaseNo *string
	Date       time.Time
	Category   string
	Amount     decimal.Decimal
	Notes      string
}

// Owner is the display metadata of a member.
type Owner struct {
	ID   string
	Name string
	Code string
}

// =============================================================================
// COMPUTED VIEWS - Rebuilt on every query, discarded after the response
// =============================================================================

// Summary is the aggregate view of one (PurchaseNo, MemberID) group.
//
// INVARIANT: SumAmount equals the sum of LineItem.Amount for every line
// sharing PurchaseNo within the active filter.
type Summary struct {
	PurchaseNo   string
	MemberID     string
	MaxCreatedAt time.Time
	MaxDate      time.Time
	SumAmount    decimal.Decimal

	// Owner is nil when the member could not be resolved.
	Owner *Owner
}

// EffectiveAt is the primary sort key: MaxCreatedAt when present, else
// MaxDate, else the zero time.
func (s Summary) EffectiveAt() time.Time {
	if !s.MaxCreatedAt.IsZero() {
		return s.MaxCreatedAt
	}
	return s.MaxDate
}

// Transaction is a purchase number's line items and fees grouped together.
//
// INVARIANT: NetAmount == TotalAmount - AdjustmentTotal, where TotalAmount
// sums LineItems and AdjustmentTotal sums Adjustments.
type Transaction struct {
	PurchaseNo      string
	MemberID        string
	Owner           *Owner
	Date            time.Time
	CreatedAt       time.Time
	LineItems       []LineItem
	Adjustments     []Adjustment
	TotalAmount     decimal.Decimal
	AdjustmentTotal decimal.Decimal
	NetAmount       decimal.Decimal
}

// Pagination describes the window returned to the caller.
type Pagination struct {
	Page       int
	Limit      int
	Total      int
	TotalPages int
	HasMore    bool

	// Warning and OriginalTotal are set only when the group count exceeded
	// the configured ceiling and the tail was dropped.
	Warning       string
	OriginalTotal int
}

// Truncated reports whether the result set was capped.
func (p Pagination) Truncated() bool { return p.Warning != "" }

// Result is the engine's response: an ordered page plus its metadata.
type Result struct {
	Transactions []Transaction
	Pagination   Pagination
}

// =============================================================================
// FILTER
// =============================================================================

// Filter bounds both the aggregate pass and the detail pass. A nil bound is
// open. End is inclusive.
type Filter struct {
	Start    *time.Time
	End      *time.Time
	MemberID string
}

// Contains reports whether a line item falls inside the filter.
func (f Filter) Contains(item LineItem) bool {
	if f.Start != nil && item.Date.Before(*f.Start) {
		return false
	}
	if f.End != nil && item.Date.After(*f.End) {
		return false
	}
	if f.MemberID != "" && item.MemberID != f.MemberID {
		return false
	}
	return true
}
