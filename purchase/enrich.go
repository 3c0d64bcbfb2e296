package purchase

import (
	"context"
	"sort"
)

// enrichOwners attaches member metadata to each summary with one bounded
// lookup for the distinct member ids. Unresolved members keep a nil Owner.
func (e *Engine) enrichOwners(ctx context.Context, summaries []Summary) ([]Summary, error) {
	ids := distinctMemberIDs(summaries)
	if len(ids) == 0 || e.owners == nil {
		return summaries, nil
	}

	owners, err := withTimeout(ctx, e.limits.CallTimeout, StageOwners,
		func(ctx context.Context) (map[string]Owner, error) {
			return e.owners.OwnersByID(ctx, ids)
		})
	if err != nil {
		return nil, err
	}

	enriched := make([]Summary, len(summaries))
	for i, s := range summaries {
		if owner, ok := owners[s.MemberID]; ok {
			o := owner
			s.Owner = &o
		} else {
			s.Owner = nil
		}
		enriched[i] = s
	}
	return enriched, nil
}

// distinctMemberIDs returns the non-empty member ids in ascending order.
func distinctMemberIDs(summaries []Summary) []string {
	seen := make(map[string]struct{}, len(summaries))
	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		if s.MemberID == "" {
			continue
		}
		if _, ok := seen[s.MemberID]; ok {
			continue
		}
		seen[s.MemberID] = struct{}{}
		ids = append(ids, s.MemberID)
	}
	sort.Strings(ids)
	return ids
}
