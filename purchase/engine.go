/*
engine.go - Purchase transaction query pipeline

PURPOSE:
  Answers "show me page N of transactions" over a ledger that only stores
  individual purchase lines and fees.

REQUEST FLOW:
  1. Normalize query         (validation, limit clamp)
  2. Resolve summaries       (one grouped aggregate call, default window)
  3. Enrich owners           (one batch member lookup)
  4. Search                  (in memory)
  5. Sort                    (in memory, total order)
  6. Paginate                (in memory, group ceiling)
  7. Fetch details           (two concurrent calls, window only)
  8. Aggregate               (in memory, window order)

FAILURE POLICY:
  Any failure in steps 2, 3 or 7 aborts the request. No partial
  transactions are returned. Timeouts surface as *TimeoutError, store
  failures as *UpstreamError. There is no retry here.

CONCURRENCY:
  Each call to Query is self-contained; the Engine holds no mutable state
  and is safe for concurrent use.

SEE ALSO:
  - store.go: Backend contracts
  - timeout.go: Per-call deadline
  - api/handlers.go: HTTP entry point
*/
package purchase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Engine runs the two-phase transaction query.
type Engine struct {
	ledger LedgerStore
	owners OwnerLookup
	limits Limits
	logger zerolog.Logger
	now    func() time.Time
}

// Config holds the Engine's dependencies. Owners may be nil, in which case
// no summary has an owner and every non-empty search matches nothing.
type Config struct {
	Ledger LedgerStore
	Owners OwnerLookup
	Limits Limits
	Logger zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(cfg Config) *Engine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		ledger: cfg.Ledger,
		owners: cfg.Owners,
		limits: cfg.Limits,
		logger: cfg.Logger,
		now:    now,
	}
}

// Limits returns the engine's safety bounds.
func (e *Engine) Limits() Limits { return e.limits }

// Query returns the requested page of grouped transactions.
func (e *Engine) Query(ctx context.Context, q Query) (*Result, error) {
	q, err := q.Normalize(e.limits)
	if err != nil {
		return nil, err
	}

	filter := e.effectiveFilter(q.Filter)
	log := e.logger.With().
		Str("start", formatBound(filter.Start)).
		Str("end", formatBound(filter.End)).
		Str("memberId", filter.MemberID).
		Str("search", q.Search).
		Int("page", q.Page).
		Int("limit", q.Limit).
		Logger()

	summaries, err := e.resolveSummaries(ctx, filter)
	if err != nil {
		return nil, e.fail(log, StageSummaries, err)
	}

	summaries, err = e.enrichOwners(ctx, summaries)
	if err != nil {
		return nil, e.fail(log, StageOwners, err)
	}

	summaries = Search(summaries, q.Search)
	ordered := Sort(summaries)
	window, meta := Paginate(ordered, q.Page, q.Limit, e.limits.MaxGroups)

	if meta.Truncated() {
		log.Warn().
			Int("originalTotal", meta.OriginalTotal).
			Int("total", meta.Total).
			Msg("purchase.query: result truncated")
	}

	if len(window) == 0 {
		return &Result{Transactions: []Transaction{}, Pagination: meta}, nil
	}

	lines, adjs, err := e.fetchDetails(ctx, windowPurchaseNos(window), filter)
	if err != nil {
		var stage string
		var te *TimeoutError
		var ue *UpstreamError
		switch {
		case errors.As(err, &te):
			stage = te.Stage
		case errors.As(err, &ue):
			stage = ue.Stage
		default:
			stage = StageLineItems
		}
		return nil, e.fail(log, stage, err)
	}

	txs := Aggregate(lines, adjs, window)

	log.Debug().
		Int("groups", len(summaries)).
		Int("transactions", len(txs)).
		Msg("purchase.query: complete")

	return &Result{Transactions: txs, Pagination: meta}, nil
}

// fail logs err with the request's filter context and returns it typed.
func (e *Engine) fail(log zerolog.Logger, stage string, err error) error {
	err = stageError(stage, err)
	if IsTimeout(err) {
		log.Warn().Err(err).Str("stage", stage).Msg("purchase.query: timeout")
	} else {
		log.Error().Err(err).Str("stage", stage).Msg("purchase.query: failed")
	}
	return err
}

// stageError leaves timeouts, cancellations and already-typed errors alone
// and wraps everything else as an *UpstreamError for stage.
func stageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if IsTimeout(err) || errors.As(err, &ue) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &UpstreamError{Stage: stage, Err: err}
}
