package purchase

import (
	"sort"
	"strings"
)

// Sort orders summaries most recent first. The order is total:
//
//  1. EffectiveAt (MaxCreatedAt, else MaxDate), descending
//  2. MaxDate, descending
//  3. PurchaseNo as a string, descending
//  4. MemberID, descending
//
// Identical input always yields identical output, which keeps page windows
// stable across repeated requests. The input slice is not modified.
func Sort(summaries []Summary) []Summary {
	ordered := make([]Summary, len(summaries))
	copy(ordered, summaries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return less(ordered[i], ordered[j])
	})
	return ordered
}

// less reports whether a sorts before b.
func less(a, b Summary) bool {
	if ea, eb := a.EffectiveAt(), b.EffectiveAt(); !ea.Equal(eb) {
		return ea.After(eb)
	}
	if !a.MaxDate.Equal(b.MaxDate) {
		return a.MaxDate.After(b.MaxDate)
	}
	if c := strings.Compare(a.PurchaseNo, b.PurchaseNo); c != 0 {
		return c > 0
	}
	return a.MemberID > b.MemberID
}
