package purchase

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AGGREGATOR - Regroup detail rows into transactions
// =============================================================================

type group struct {
	lines     []LineItem
	date      timeMax
	createdAt timeMax
	total     decimal.Decimal
}

type timeMax struct{ value time.Time }

func (m *timeMax) observe(t time.Time) {
	if t.After(m.value) {
		m.value = t
	}
}

// Aggregate groups lines and adjustments by purchase number and emits one
// Transaction per window entry, in window order. Detail-row order is never
// used to decide output order.
//
// A window entry with no detail lines (e.g. deleted concurrently) is
// dropped. A purchase number that appears twice in the window is emitted
// once, at its first position. Adjustments without a purchase number are
// ignored.
func Aggregate(lines []LineItem, adjustments []Adjustment, window []Summary) []Transaction {
	groups := make(map[string]*group)
	for _, line := range lines {
		g, ok := groups[line.PurchaseNo]
		if !ok {
			g = &group{total: decimal.Zero}
			groups[line.PurchaseNo] = g
		}
		g.lines = append(g.lines, line)
		g.date.observe(line.Date)
		g.createdAt.observe(line.CreatedAt)
		g.total = g.total.Add(line.Amount)
	}

	adjByNo := make(map[string][]Adjustment)
	for _, adj := range adjustments {
		if adj.PurchaseNo == nil {
			continue
		}
		adjByNo[*adj.PurchaseNo] = append(adjByNo[*adj.PurchaseNo], adj)
	}

	emitted := make(map[string]struct{}, len(window))
	txs := make([]Transaction, 0, len(window))
	for _, s := range window {
		if _, done := emitted[s.PurchaseNo]; done {
			continue
		}
		g, ok := groups[s.PurchaseNo]
		if !ok {
			continue
		}
		emitted[s.PurchaseNo] = struct{}{}

		adjs := adjByNo[s.PurchaseNo]
		adjTotal := decimal.Zero
		for _, a := range adjs {
			adjTotal = adjTotal.Add(a.Amount)
		}
		if adjs == nil {
			adjs = []Adjustment{}
		}

		txs = append(txs, Transaction{
			PurchaseNo:      s.PurchaseNo,
			MemberID:        s.MemberID,
			Owner:           s.Owner,
			Date:            g.date.value,
			CreatedAt:       g.createdAt.value,
			LineItems:       g.lines,
			Adjustments:     adjs,
			TotalAmount:     g.total,
			AdjustmentTotal: adjTotal,
			NetAmount:       g.total.Sub(adjTotal),
		})
	}
	return txs
}
