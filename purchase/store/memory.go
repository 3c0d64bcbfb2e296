// Package store provides in-memory implementations of the purchase store
// contracts.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Prider/buy-rubber-sub000/purchase"
)

// =============================================================================
// MEMORY STORE - In-memory ledger (for testing/dev)
// =============================================================================

// Memory implements purchase.LedgerStore and purchase.OwnerLookup.
type Memory struct {
	mu          sync.RWMutex
	lines       []purchase.LineItem
	adjustments []purchase.Adjustment
	owners      map[string]purchase.Owner
}

var (
	_ purchase.LedgerStore = (*Memory)(nil)
	_ purchase.OwnerLookup = (*Memory)(nil)
)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{owners: make(map[string]purchase.Owner)}
}

// AddOwner registers member metadata.
func (m *Memory) AddOwner(o purchase.Owner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[o.ID] = o
}

// AppendLines adds line items. Append-only.
func (m *Memory) AppendLines(lines ...purchase.LineItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, lines...)
}

// AppendAdjustments adds fee entries. Append-only.
func (m *Memory) AppendAdjustments(adjs ...purchase.Adjustment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adjustments = append(m.adjustments, adjs...)
}

// =============================================================================
// LEDGER READS
// =============================================================================

type groupKey struct {
	purchaseNo string
	memberID   string
}

// SummarizeGroups folds matching lines into one summary per
// (purchase number, member) in first-seen order.
func (m *Memory) SummarizeGroups(ctx context.Context, filter purchase.Filter) ([]purchase.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	groups := make(map[groupKey]*purchase.Summary)
	var order []groupKey
	for _, line := range m.lines {
		if !filter.Contains(line) {
			continue
		}
		k := groupKey{purchaseNo: line.PurchaseNo, memberID: line.MemberID}
		s, ok := groups[k]
		if !ok {
			s = &purchase.Summary{PurchaseNo: line.PurchaseNo, MemberID: line.MemberID, SumAmount: decimal.Zero}
			groups[k] = s
			order = append(order, k)
		}
		if line.CreatedAt.After(s.MaxCreatedAt) {
			s.MaxCreatedAt = line.CreatedAt
		}
		if line.Date.After(s.MaxDate) {
			s.MaxDate = line.Date
		}
		s.SumAmount = s.SumAmount.Add(line.Amount)
	}

	result := make([]purchase.Summary, 0, len(order))
	for _, k := range order {
		result = append(result, *groups[k])
	}
	return result, nil
}

// LineItemsFor returns matching lines for purchaseNos, newest first.
func (m *Memory) LineItemsFor(ctx context.Context, purchaseNos []string, filter purchase.Filter) ([]purchase.LineItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := toSet(purchaseNos)
	var result []purchase.LineItem
	for _, line := range m.lines {
		if _, ok := wanted[line.PurchaseNo]; ok && filter.Contains(line) {
			result = append(result, line)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.PurchaseNo > b.PurchaseNo
	})
	return result, nil
}

// AdjustmentsFor returns fees linked to purchaseNos. Unlinked fees are skipped.
func (m *Memory) AdjustmentsFor(ctx context.Context, purchaseNos []string) ([]purchase.Adjustment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := toSet(purchaseNos)
	var result []purchase.Adjustment
	for _, adj := range m.adjustments {
		if adj.PurchaseNo == nil {
			continue
		}
		if _, ok := wanted[*adj.PurchaseNo]; ok {
			result = append(result, adj)
		}
	}
	return result, nil
}

// =============================================================================
// OWNER LOOKUP
// =============================================================================

// OwnersByID returns the known members among ids; unknown ids are absent.
func (m *Memory) OwnersByID(ctx context.Context, ids []string) (map[string]purchase.Owner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]purchase.Owner, len(ids))
	for _, id := range ids {
		if o, ok := m.owners[id]; ok {
			result[id] = o
		}
	}
	return result, nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
