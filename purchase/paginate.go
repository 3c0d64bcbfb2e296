package purchase

import "fmt"

// Paginate cuts the page window out of ordered summaries.
//
// When maxGroups > 0 and the list is longer, the least recent tail is
// dropped first and the metadata carries Warning and OriginalTotal. Total is
// always the post-truncation count. A page past the end yields an empty
// window with HasMore false; it is not an error. page and limit must
// already be validated (page >= 1, limit >= 1).
func Paginate(ordered []Summary, page, limit, maxGroups int) ([]Summary, Pagination) {
	meta := Pagination{Page: page, Limit: limit}

	if maxGroups > 0 && len(ordered) > maxGroups {
		meta.OriginalTotal = len(ordered)
		meta.Warning = fmt.Sprintf("result limited to the %d most recent of %d transactions; narrow the date range to see the rest",
			maxGroups, len(ordered))
		ordered = ordered[:maxGroups]
	}

	meta.Total = len(ordered)
	if meta.Total == 0 || limit < 1 {
		return []Summary{}, meta
	}

	meta.TotalPages = (meta.Total + limit - 1) / limit
	meta.HasMore = page < meta.TotalPages

	// Checked against TotalPages first so (page-1)*limit cannot overflow.
	if page < 1 || page > meta.TotalPages {
		return []Summary{}, meta
	}
	skip := (page - 1) * limit
	end := min(skip+limit, meta.Total)

	return ordered[skip:end], meta
}
