package purchase

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// LIMITS - Operational tunables
// =============================================================================

// Limits are the safety bounds applied to every query.
type Limits struct {
	// DefaultWindow is the trailing window applied when neither date bound
	// is supplied.
	DefaultWindow time.Duration
	DefaultLimit  int
	MaxLimit      int
	// MaxGroups caps the number of groups kept after sorting.
	MaxGroups int
	// CallTimeout bounds each individual store call.
	CallTimeout time.Duration
}

// DefaultLimits returns the production defaults.
func DefaultLimits() Limits {
	return Limits{
		DefaultWindow: 90 * 24 * time.Hour,
		DefaultLimit:  20,
		MaxLimit:      200,
		MaxGroups:     10000,
		CallTimeout:   30 * time.Second,
	}
}

// =============================================================================
// QUERY - Validated caller input
// =============================================================================

// Query is the engine's entry-point input.
type Query struct {
	Filter Filter
	Search string
	Page   int
	Limit  int
}

const dateLayout = "2006-01-02"

// ParseQuery reads and validates query-string parameters.
//
// Accepted keys: startDate, endDate, ownerId (alias memberId), search, page,
// limit. Unparseable or out-of-range page/limit values are rejected with a
// *ValidationError rather than defaulted.
func ParseQuery(values url.Values, limits Limits) (Query, error) {
	q := Query{
		Search: strings.TrimSpace(values.Get("search")),
		Page:   1,
		Limit:  limits.DefaultLimit,
	}

	q.Filter.MemberID = strings.TrimSpace(values.Get("ownerId"))
	if q.Filter.MemberID == "" {
		q.Filter.MemberID = strings.TrimSpace(values.Get("memberId"))
	}

	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return Query{}, &ValidationError{Field: "page", Value: raw, Reason: "must be an integer"}
		}
		q.Page = page
	}

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return Query{}, &ValidationError{Field: "limit", Value: raw, Reason: "must be an integer"}
		}
		q.Limit = limit
	}

	if raw := strings.TrimSpace(values.Get("startDate")); raw != "" {
		start, _, err := parseDate(raw)
		if err != nil {
			return Query{}, &ValidationError{Field: "startDate", Value: raw, Reason: "use YYYY-MM-DD or RFC3339"}
		}
		q.Filter.Start = &start
	}

	if raw := strings.TrimSpace(values.Get("endDate")); raw != "" {
		end, dateOnly, err := parseDate(raw)
		if err != nil {
			return Query{}, &ValidationError{Field: "endDate", Value: raw, Reason: "use YYYY-MM-DD or RFC3339"}
		}
		if dateOnly {
			// A bare date covers the whole day.
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
		q.Filter.End = &end
	}

	return q.Normalize(limits)
}

// Normalize checks the query's invariants and clamps Limit to
// limits.MaxLimit. It is applied by ParseQuery and again by the engine, so
// queries built in code get the same treatment as HTTP ones.
func (q Query) Normalize(limits Limits) (Query, error) {
	if q.Page < 1 {
		return Query{}, &ValidationError{Field: "page", Value: strconv.Itoa(q.Page), Reason: "must be >= 1"}
	}
	if q.Limit < 1 {
		return Query{}, &ValidationError{Field: "limit", Value: strconv.Itoa(q.Limit), Reason: "must be >= 1"}
	}
	if limits.MaxLimit > 0 && q.Limit > limits.MaxLimit {
		q.Limit = limits.MaxLimit
	}
	if q.Filter.Start != nil && q.Filter.End != nil && q.Filter.Start.After(*q.Filter.End) {
		return Query{}, &ValidationError{Field: "startDate", Reason: "must not be after endDate"}
	}
	return q, nil
}

func parseDate(raw string) (t time.Time, dateOnly bool, err error) {
	if t, err = time.Parse(dateLayout, raw); err == nil {
		return t.UTC(), true, nil
	}
	if t, err = time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	return time.Time{}, false, err
}
