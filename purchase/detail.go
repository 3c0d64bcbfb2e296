package purchase

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// =============================================================================
// DETAIL FETCHER - Bounded second pass
// =============================================================================

// fetchDetails loads full rows for the window's purchase numbers only. The
// line-item and adjustment queries have no data dependency and run
// concurrently; the first failure cancels the other.
//
// Line items are also restricted by filter so the detail pass can never
// widen the scope the aggregate pass approved.
func (e *Engine) fetchDetails(ctx context.Context, purchaseNos []string, filter Filter) ([]LineItem, []Adjustment, error) {
	if len(purchaseNos) == 0 {
		return nil, nil, nil
	}

	var (
		lines []LineItem
		adjs  []Adjustment
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		lines, err = withTimeout(gctx, e.limits.CallTimeout, StageLineItems,
			func(ctx context.Context) ([]LineItem, error) {
				return e.ledger.LineItemsFor(ctx, purchaseNos, filter)
			})
		return stageError(StageLineItems, err)
	})

	g.Go(func() error {
		var err error
		adjs, err = withTimeout(gctx, e.limits.CallTimeout, StageAdjustments,
			func(ctx context.Context) ([]Adjustment, error) {
				return e.ledger.AdjustmentsFor(ctx, purchaseNos)
			})
		return stageError(StageAdjustments, err)
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return lines, adjs, nil
}

// windowPurchaseNos returns the window's purchase numbers in order, once
// each.
func windowPurchaseNos(window []Summary) []string {
	seen := make(map[string]struct{}, len(window))
	ids := make([]string, 0, len(window))
	for _, s := range window {
		if _, ok := seen[s.PurchaseNo]; ok {
			continue
		}
		seen[s.PurchaseNo] = struct{}{}
		ids = append(ids, s.PurchaseNo)
	}
	return ids
}
