package purchase

import (
	"context"
	"time"
)

// =============================================================================
// GROUP SUMMARY RESOLVER - Aggregate pass
// =============================================================================

// effectiveFilter applies the default trailing window when the caller gave
// neither date bound. The store has no other bound on group cardinality.
func (e *Engine) effectiveFilter(f Filter) Filter {
	if f.Start != nil || f.End != nil || e.limits.DefaultWindow <= 0 {
		return f
	}
	end := e.now().UTC()
	start := end.Add(-e.limits.DefaultWindow)
	f.Start = &start
	f.End = &end
	return f
}

// resolveSummaries runs the single grouped aggregate query. Groups over the
// ceiling are only logged here; the Paginator truncates after sorting.
func (e *Engine) resolveSummaries(ctx context.Context, filter Filter) ([]Summary, error) {
	summaries, err := withTimeout(ctx, e.limits.CallTimeout, StageSummaries,
		func(ctx context.Context) ([]Summary, error) {
			return e.ledger.SummarizeGroups(ctx, filter)
		})
	if err != nil {
		return nil, err
	}

	if e.limits.MaxGroups > 0 && len(summaries) > e.limits.MaxGroups {
		e.logger.Warn().
			Int("groups", len(summaries)).
			Int("maxGroups", e.limits.MaxGroups).
			Str("start", formatBound(filter.Start)).
			Str("end", formatBound(filter.End)).
			Str("memberId", filter.MemberID).
			Msg("purchase.resolve: group count exceeds ceiling, result will be truncated")
	}

	return summaries, nil
}

func formatBound(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
