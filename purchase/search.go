package purchase

import "strings"

// Search keeps the summaries whose purchase number, owner name or owner
// code contains query, case-insensitively. An empty query returns the input
// unchanged. A summary without an owner never matches a non-empty query.
func Search(summaries []Summary, query string) []Summary {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return summaries
	}

	matched := make([]Summary, 0, len(summaries))
	for _, s := range summaries {
		if matches(s, needle) {
			matched = append(matched, s)
		}
	}
	return matched
}

func matches(s Summary, needle string) bool {
	if s.Owner == nil {
		return false
	}
	return strings.Contains(strings.ToLower(s.PurchaseNo), needle) ||
		strings.Contains(strings.ToLower(s.Owner.Name), needle) ||
		strings.Contains(strings.ToLower(s.Owner.Code), needle)
}
