package purchase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prider/buy-rubber-sub000/purchase"
	"github.com/Prider/buy-rubber-sub000/purchase/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var now = time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return now.AddDate(0, 0, -n)
}

func newEngine(ledger purchase.LedgerStore, owners purchase.OwnerLookup, limits purchase.Limits) *purchase.Engine {
	return purchase.NewEngine(purchase.Config{
		Ledger: ledger,
		Owners: owners,
		Limits: limits,
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return now },
	})
}

func line(id, purchaseNo, memberID string, at time.Time, amount int64) purchase.LineItem {
	return purchase.LineItem{
		ID:          id,
		PurchaseNo:  purchaseNo,
		MemberID:    memberID,
		Date:        at,
		CreatedAt:   at,
		Amount:      decimal.NewFromInt(amount),
		ProductType: "cup-lump",
	}
}

func fee(id, purchaseNo string, amount int64) purchase.Adjustment {
	no := purchaseNo
	return purchase.Adjustment{
		ID:         id,
		PurchaseNo: &no,
		Date:       now,
		Category:   "transport",
		Amount:     decimal.NewFromInt(amount),
	}
}

func query(page, limit int) purchase.Query {
	return purchase.Query{Page: page, Limit: limit}
}

func netAmounts(txs []purchase.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.NetAmount.String()
	}
	return out
}

// stubLedger delegates to a Memory store unless a hook overrides a call.
type stubLedger struct {
	*store.Memory
	summarize   func(ctx context.Context) ([]purchase.Summary, error)
	lineItems   func(ctx context.Context) ([]purchase.LineItem, error)
	adjustments func(ctx context.Context) ([]purchase.Adjustment, error)
	detailCalls atomic.Int32
}

func (s *stubLedger) SummarizeGroups(ctx context.Context, f purchase.Filter) ([]purchase.Summary, error) {
	if s.summarize != nil {
		return s.summarize(ctx)
	}
	return s.Memory.SummarizeGroups(ctx, f)
}

func (s *stubLedger) LineItemsFor(ctx context.Context, ids []string, f purchase.Filter) ([]purchase.LineItem, error) {
	s.detailCalls.Add(1)
	if s.lineItems != nil {
		return s.lineItems(ctx)
	}
	return s.Memory.LineItemsFor(ctx, ids, f)
}

func (s *stubLedger) AdjustmentsFor(ctx context.Context, ids []string) ([]purchase.Adjustment, error) {
	s.detailCalls.Add(1)
	if s.adjustments != nil {
		return s.adjustments(ctx)
	}
	return s.Memory.AdjustmentsFor(ctx, ids)
}

// =============================================================================
// GROUPING AND NET AMOUNT
// =============================================================================

func TestEngine_GroupsLineItemsByPurchaseNo(t *testing.T) {
	// GIVEN: two lines share purchase number T1, no fees
	// WHEN: querying
	// THEN: one transaction with both lines and net 14250

	mem := store.NewMemory()
	mem.AppendLines(
		line("l1", "T1", "m1", daysAgo(1), 4750),
		line("l2", "T1", "m1", daysAgo(1).Add(time.Minute), 9500),
	)

	res, err := newEngine(mem, mem, purchase.DefaultLimits()).Query(context.Background(), query(1, 20))

	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	tx := res.Transactions[0]
	assert.Equal(t, "T1", tx.PurchaseNo)
	assert.Len(t, tx.LineItems, 2)
	assert.True(t, tx.NetAmount.Equal(decimal.NewFromInt(14250)))
	assert.Equal(t, 1, res.Pagination.Total)
}

func TestEngine_SubtractsLinkedFees(t *testing.T) {
	mem := store.NewMemory()
	mem.AppendLines(line("l1", "T2", "m1", daysAgo(2), 4750))
	mem.AppendAdjustments(fee("f1", "T2", 100), fee("f-other", "T9", 55))

	res, err := newEngine(mem, mem, purchase.DefaultLimits()).Query(context.Background(), query(1, 20))

	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	tx := res.Transactions[0]
	assert.True(t, tx.NetAmount.Equal(decimal.NewFromInt(4650)))
	assert.True(t, tx.TotalAmount.Sub(tx.AdjustmentTotal).Equal(tx.NetAmount))
	require.Len(t, tx.Adjustments, 1)
	assert.Equal(t, "f1", tx.Adjustments[0].ID)
}

func TestEngine_EveryTransactionHoldsExactlyItsLines(t *testing.T) {
	mem := store.NewMemory()
	expected := map[string]int{}
	for i := 0; i < 30; i++ {
		no := fmt.Sprintf("PUR-%03d", i%7)
		mem.AppendLines(line(fmt.Sprintf("l%d", i), no, "m1", daysAgo(i%5), int64(100+i)))
		expected[no]++
	}
	mem.AppendAdjustments(fee("f1", "PUR-003", 15), fee("f2", "PUR-003", 5))

	res, err := newEngine(mem, mem, purchase.DefaultLimits()).Query(context.Background(), query(1, 200))

	require.NoError(t, err)
	require.Len(t, res.Transactions, len(expected))
	for _, tx := range res.Transactions {
		assert.Len(t, tx.LineItems, expected[tx.PurchaseNo], tx.PurchaseNo)

		sum := decimal.Zero
		for _, l := range tx.LineItems {
			assert.Equal(t, tx.PurchaseNo, l.PurchaseNo)
			sum = sum.Add(l.Amount)
		}
		fees := decimal.Zero
		for _, a := range tx.Adjustments {
			fees = fees.Add(a.Amount)
		}
		assert.True(t, sum.Sub(fees).Equal(tx.NetAmount), tx.PurchaseNo)
	}
}

// =============================================================================
// DEFAULT WINDOW AND FILTERS
// =============================================================================

func TestEngine_DefaultsToTrailingNinetyDays(t *testing.T) {
	// GIVEN: one purchase 200 days ago and one 10 days ago
	// WHEN: querying with no date bounds
	// THEN: only the recent one is returned

	mem := store.NewMemory()
	mem.AppendLines(
		line("old", "OLD", "m1", daysAgo(200), 1000),
		line("new", "NEW", "m1", daysAgo(10), 2000),
	)

	res, err := newEngine(mem, mem, purchase.DefaultLimits()).Query(context.Background(), query(1, 20))

	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "NEW", res.Transactions[0].PurchaseNo)
}

func TestEngine_ExplicitRangeOverridesDefaultWindow(t *testing.T) {
	mem := store.NewMemory()
	mem.AppendLines(
		line("old", "OLD", "m1", daysAgo(200), 1000),
		line("new", "NEW", "m1", daysAgo(10), 2000),
	)
	start := daysAgo(365)

	q := query(1, 20)
	q.Filter.Start = &start
	res, err := newEngine(mem, mem, purchase.DefaultLimits()).Query(context.Background(), q)

	require.NoError(t, err)
	assert.Len(t, res.Transactions, 2)
}

func TestEngine_MemberFilterAppliesToDetailRows(t *testing.T) {
	// GIVEN: purchase number shared across two members
	// WHEN: filtering by one member
	// THEN: the other member's lines never leak into the transaction

	mem := store.NewMemory()
	mem.AppendLines(
		line("l1", "T1", "m1", daysAgo(1), 100),
		line("l2", "T1", "m2", daysAgo(1), 900),
	)
	q := query(1, 20)
	q.Filter.MemberID = "m1"

	res, err := newEngine(mem, mem, purchase.DefaultLimits()).Query(context.Background(), q)

	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Len(t, res.Transactions[0].LineItems, 1)
	assert.Equal(t, "100", res.Transactions[0].NetAmount.String())
}

// =============================================================================
// ORDERING AND PAGINATION
// =============================================================================

func seedGroups(mem *store.Memory, n int) {
	for i := 0; i < n; i++ {
		mem.AppendLines(line(fmt.Sprintf("l%d", i), fmt.Sprintf("PUR-%04d", i), "m1", daysAgo(i%20), int64(i+1)))
	}
}

func TestEngine_OrderIsStableAcrossCalls(t *testing.T) {
	mem := store.NewMemory()
	seedGroups(mem, 40)
	engine := newEngine(mem, mem, purchase.DefaultLimits())

	first, err := engine.Query(context.Background(), query(1, 200))
	require.NoError(t, err)
	second, err := engine.Query(context.Background(), query(1, 200))
	require.NoError(t, err)

	assert.Equal(t, netAmounts(first.Transactions), netAmounts(second.Transactions))
	for i := 1; i < len(first.Transactions); i++ {
		prev, cur := first.Transactions[i-1], first.Transactions[i]
		assert.False(t, cur.CreatedAt.After(prev.CreatedAt), "descending by recency at %d", i)
	}
}

func TestEngine_LastPage(t *testing.T) {
	mem := store.NewMemory()
	seedGroups(mem, 25)

	res, err := newEngine(mem, mem, purchase.DefaultLimits()).Query(context.Background(), query(3, 10))

	require.NoError(t, err)
	assert.Len(t, res.Transactions, 5)
	assert.False(t, res.Pagination.HasMore)
	assert.Equal(t, 25, res.Pagination.Total)
	assert.Equal(t, 3, res.Pagination.TotalPages)
}

func TestEngine_PageBeyondRangeIsEmpty(t *testing.T) {
	mem := store.NewMemory()
	seedGroups(mem, 5)
	ledger := &stubLedger{Memory: mem}

	res, err := newEngine(ledger, mem, purchase.DefaultLimits()).Query(context.Background(), query(9, 10))

	require.NoError(t, err)
	assert.NotNil(t, res.Transactions)
	assert.Empty(t, res.Transactions)
	assert.False(t, res.Pagination.HasMore)
	assert.Equal(t, 5, res.Pagination.Total)
	assert.Zero(t, ledger.detailCalls.Load(), "no detail queries for an empty window")
}

func TestEngine_PagesDoNotOverlap(t *testing.T) {
	mem := store.NewMemory()
	seedGroups(mem, 23)
	engine := newEngine(mem, mem, purchase.DefaultLimits())

	seen := map[string]bool{}
	for page := 1; page <= 3; page++ {
		res, err := engine.Query(context.Background(), query(page, 10))
		require.NoError(t, err)
		for _, tx := range res.Transactions {
			assert.False(t, seen[tx.PurchaseNo], "duplicate %s", tx.PurchaseNo)
			seen[tx.PurchaseNo] = true
		}
	}
	assert.Len(t, seen, 23)
}

func TestEngine_TruncatesToMostRecentGroups(t *testing.T) {
	mem := store.NewMemory()
	for i := 0; i < 6; i++ {
		mem.AppendLines(line(fmt.Sprintf("l%d", i), fmt.Sprintf("PUR-%d", i), "m1", daysAgo(i), 10))
	}
	limits := purchase.DefaultLimits()
	limits.MaxGroups = 4

	res, err := newEngine(mem, mem, limits).Query(context.Background(), query(1, 20))

	require.NoError(t, err)
	assert.Equal(t, 4, res.Pagination.Total)
	assert.Equal(t, 6, res.Pagination.OriginalTotal)
	assert.NotEmpty(t, res.Pagination.Warning)
	require.Len(t, res.Transactions, 4)
	for i, tx := range res.Transactions {
		assert.Equal(t, fmt.Sprintf("PUR-%d", i), tx.PurchaseNo, "most recent retained")
	}
}

func TestEngine_ClampsLimit(t *testing.T) {
	mem := store.NewMemory()
	seedGroups(mem, 3)
	limits := purchase.DefaultLimits()
	limits.MaxLimit = 2

	res, err := newEngine(mem, mem, limits).Query(context.Background(), query(1, 50))

	require.NoError(t, err)
	assert.Equal(t, 2, res.Pagination.Limit)
	assert.Len(t, res.Transactions, 2)
}

func TestEngine_RejectsInvalidPagination(t *testing.T) {
	mem := store.NewMemory()
	engine := newEngine(mem, mem, purchase.DefaultLimits())

	_, err := engine.Query(context.Background(), query(0, 20))
	assert.ErrorIs(t, err, purchase.ErrInvalidQuery)

	_, err = engine.Query(context.Background(), query(1, -1))
	assert.ErrorIs(t, err, purchase.ErrInvalidQuery)
}

// =============================================================================
// SEARCH
// =============================================================================

func TestEngine_SearchByOwnerCode(t *testing.T) {
	mem := store.NewMemory()
	mem.AddOwner(purchase.Owner{ID: "m1", Name: "Somchai", Code: "M001"})
	mem.AddOwner(purchase.Owner{ID: "m2", Name: "Anong", Code: "M002"})
	mem.AppendLines(
		line("l1", "T1", "m1", daysAgo(1), 100),
		line("l2", "T2", "m2", daysAgo(1), 200),
	)
	q := query(1, 20)
	q.Search = "M001"

	res, err := newEngine(mem, mem, purchase.DefaultLimits()).Query(context.Background(), q)

	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "T1", res.Transactions[0].PurchaseNo)
	require.NotNil(t, res.Transactions[0].Owner)
	assert.Equal(t, "Somchai", res.Transactions[0].Owner.Name)
}

func TestEngine_SearchMatchingNothing(t *testing.T) {
	mem := store.NewMemory()
	mem.AddOwner(purchase.Owner{ID: "m1", Name: "Somchai", Code: "M001"})
	mem.AppendLines(line("l1", "T1", "m1", daysAgo(1), 100))
	ledger := &stubLedger{Memory: mem}
	q := query(1, 20)
	q.Search = "zzz"

	res, err := newEngine(ledger, mem, purchase.DefaultLimits()).Query(context.Background(), q)

	require.NoError(t, err)
	assert.Empty(t, res.Transactions)
	assert.Equal(t, purchase.Pagination{Page: 1, Limit: 20}, res.Pagination)
	assert.Zero(t, ledger.detailCalls.Load())
}

func TestEngine_UnknownOwnerExcludedFromSearch(t *testing.T) {
	mem := store.NewMemory()
	mem.AppendLines(line("l1", "T1", "ghost", daysAgo(1), 100))
	q := query(1, 20)
	q.Search = "T1"

	res, err := newEngine(mem, mem, purchase.DefaultLimits()).Query(context.Background(), q)

	require.NoError(t, err)
	assert.Empty(t, res.Transactions)
}

// =============================================================================
// FAILURES AND TIMEOUTS
// =============================================================================

func TestEngine_SummaryTimeoutCancelsStoreCall(t *testing.T) {
	cancelled := make(chan struct{})
	ledger := &stubLedger{
		Memory: store.NewMemory(),
		summarize: func(ctx context.Context) ([]purchase.Summary, error) {
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		},
	}
	limits := purchase.DefaultLimits()
	limits.CallTimeout = 20 * time.Millisecond

	res, err := newEngine(ledger, nil, limits).Query(context.Background(), query(1, 20))

	assert.Nil(t, res)
	var te *purchase.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, purchase.StageSummaries, te.Stage)
	assert.True(t, purchase.IsTimeout(err))

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("store call was not cancelled")
	}
}

func TestEngine_DetailTimeoutFailsWholeRequest(t *testing.T) {
	mem := store.NewMemory()
	mem.AppendLines(line("l1", "T1", "m1", daysAgo(1), 100))
	ledger := &stubLedger{
		Memory: mem,
		adjustments: func(ctx context.Context) ([]purchase.Adjustment, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	limits := purchase.DefaultLimits()
	limits.CallTimeout = 20 * time.Millisecond

	res, err := newEngine(ledger, mem, limits).Query(context.Background(), query(1, 20))

	assert.Nil(t, res, "no partial result")
	var te *purchase.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, purchase.StageAdjustments, te.Stage)
}

func TestEngine_UpstreamFailureIsTyped(t *testing.T) {
	mem := store.NewMemory()
	mem.AppendLines(line("l1", "T1", "m1", daysAgo(1), 100))
	dbDown := errors.New("database is locked")
	ledger := &stubLedger{
		Memory: mem,
		lineItems: func(context.Context) ([]purchase.LineItem, error) {
			return nil, dbDown
		},
	}

	res, err := newEngine(ledger, mem, purchase.DefaultLimits()).Query(context.Background(), query(1, 20))

	assert.Nil(t, res)
	assert.ErrorIs(t, err, purchase.ErrUpstream)
	assert.ErrorIs(t, err, dbDown)
	var ue *purchase.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, purchase.StageLineItems, ue.Stage)
	assert.False(t, purchase.IsTimeout(err))
}

type failingOwners struct{}

func (failingOwners) OwnersByID(context.Context, []string) (map[string]purchase.Owner, error) {
	return nil, errors.New("member service unavailable")
}

func TestEngine_OwnerLookupFailureAborts(t *testing.T) {
	mem := store.NewMemory()
	mem.AppendLines(line("l1", "T1", "m1", daysAgo(1), 100))

	res, err := newEngine(mem, failingOwners{}, purchase.DefaultLimits()).Query(context.Background(), query(1, 20))

	assert.Nil(t, res)
	var ue *purchase.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, purchase.StageOwners, ue.Stage)
}

func TestEngine_DetailQueriesRunConcurrently(t *testing.T) {
	// GIVEN: each detail call blocks until the other has started
	// THEN: the request completes only if both run at the same time

	mem := store.NewMemory()
	mem.AppendLines(line("l1", "T1", "m1", daysAgo(1), 100))
	mem.AppendAdjustments(fee("f1", "T1", 10))

	var started sync.WaitGroup
	started.Add(2)
	barrier := func(ctx context.Context) error {
		started.Done()
		waited := make(chan struct{})
		go func() { started.Wait(); close(waited) }()
		select {
		case <-waited:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	ledger := &stubLedger{Memory: mem}
	ledger.lineItems = func(ctx context.Context) ([]purchase.LineItem, error) {
		if err := barrier(ctx); err != nil {
			return nil, err
		}
		return mem.LineItemsFor(ctx, []string{"T1"}, purchase.Filter{})
	}
	ledger.adjustments = func(ctx context.Context) ([]purchase.Adjustment, error) {
		if err := barrier(ctx); err != nil {
			return nil, err
		}
		return mem.AdjustmentsFor(ctx, []string{"T1"})
	}
	limits := purchase.DefaultLimits()
	limits.CallTimeout = 2 * time.Second

	res, err := newEngine(ledger, mem, limits).Query(context.Background(), query(1, 20))

	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "90", res.Transactions[0].NetAmount.String())
}
