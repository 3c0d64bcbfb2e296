package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Prider/buy-rubber-sub000/purchase"
)

// ownerChunk bounds the number of bound parameters in one IN clause.
const ownerChunk = 500

// =============================================================================
// LEDGER READS (purchase.LedgerStore interface)
// =============================================================================

// SummarizeGroups runs the aggregate pass: one row per
// (purchase_no, member_id) with max times and summed amount.
func (s *Store) SummarizeGroups(ctx context.Context, filter purchase.Filter) ([]purchase.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := filterClause(filter)
	query := `
		SELECT purchase_no, member_id, MAX(created_at), MAX(date), SUM(amount_cents)
		FROM purchases
		` + where + `
		GROUP BY purchase_no, member_id
	`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize purchases: %w", err)
	}
	defer rows.Close()

	var summaries []purchase.Summary
	for rows.Next() {
		var (
			sum                 purchase.Summary
			maxCreated, maxDate sql.NullString
			cents               int64
		)
		if err := rows.Scan(&sum.PurchaseNo, &sum.MemberID, &maxCreated, &maxDate, &cents); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		if sum.MaxCreatedAt, err = parseTime(maxCreated.String); err != nil {
			return nil, err
		}
		if sum.MaxDate, err = parseTime(maxDate.String); err != nil {
			return nil, err
		}
		sum.SumAmount = fromCents(cents)
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// LineItemsFor loads full purchase rows for the given purchase numbers,
// still restricted by filter.
func (s *Store) LineItemsFor(ctx context.Context, purchaseNos []string, filter purchase.Filter) ([]purchase.LineItem, error) {
	if len(purchaseNos) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := filterClause(filter)
	in, inArgs := inClause("purchase_no", purchaseNos)
	if where == "" {
		where = "WHERE " + in
	} else {
		where += " AND " + in
	}
	args = append(args, inArgs...)

	query := `
		SELECT id, purchase_no, member_id, date, created_at, amount_cents,
		       product_type, gross_weight, net_weight, unit_price, notes
		FROM purchases
		` + where + `
		ORDER BY created_at DESC, date DESC, purchase_no DESC
	`

	return s.queryLineItems(ctx, query, args...)
}

// AdjustmentsFor loads every expense linked to the given purchase numbers.
func (s *Store) AdjustmentsFor(ctx context.Context, purchaseNos []string) ([]purchase.Adjustment, error) {
	if len(purchaseNos) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	in, args := inClause("purchase_no", purchaseNos)
	query := `
		SELECT id, purchase_no, date, category, amount_cents, notes
		FROM expenses
		WHERE ` + in + `
		ORDER BY date DESC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var adjustments []purchase.Adjustment
	for rows.Next() {
		adj, err := scanAdjustment(rows)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, adj)
	}

	return adjustments, rows.Err()
}

func (s *Store) queryLineItems(ctx context.Context, query string, args ...any) ([]purchase.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var items []purchase.LineItem
	for rows.Next() {
		item, err := scanLineItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func scanLineItem(rows *sql.Rows) (purchase.LineItem, error) {
	var (
		item                  purchase.LineItem
		date, createdAt       string
		cents                 int64
		gross, net, unitPrice string
		notes                 sql.NullString
	)

	err := rows.Scan(
		&item.ID, &item.PurchaseNo, &item.MemberID, &date, &createdAt, &cents,
		&item.ProductType, &gross, &net, &unitPrice, &notes,
	)
	if err != nil {
		return item, fmt.Errorf("failed to scan purchase: %w", err)
	}

	if item.Date, err = parseTime(date); err != nil {
		return item, err
	}
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return item, err
	}
	item.Amount = fromCents(cents)
	item.GrossWeight = parseDecimal(gross)
	item.NetWeight = parseDecimal(net)
	item.UnitPrice = parseDecimal(unitPrice)
	item.Notes = notes.String

	return item, nil
}

func scanAdjustment(rows *sql.Rows) (purchase.Adjustment, error) {
	var (
		adj        purchase.Adjustment
		purchaseNo sql.NullString
		date       string
		cents      int64
		notes      sql.NullString
	)

	if err := rows.Scan(&adj.ID, &purchaseNo, &date, &adj.Category, &cents, &notes); err != nil {
		return adj, fmt.Errorf("failed to scan expense: %w", err)
	}

	var err error
	if adj.Date, err = parseTime(date); err != nil {
		return adj, err
	}
	if purchaseNo.Valid {
		no := purchaseNo.String
		adj.PurchaseNo = &no
	}
	adj.Amount = fromCents(cents)
	adj.Notes = notes.String

	return adj, nil
}

// =============================================================================
// OWNER LOOKUP (purchase.OwnerLookup interface)
// =============================================================================

// OwnersByID resolves member metadata in chunks of ownerChunk ids.
func (s *Store) OwnersByID(ctx context.Context, ids []string) (map[string]purchase.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owners := make(map[string]purchase.Owner, len(ids))
	for start := 0; start < len(ids); start += ownerChunk {
		chunk := ids[start:min(start+ownerChunk, len(ids))]
		in, args := inClause("id", chunk)

		rows, err := s.db.QueryContext(ctx, "SELECT id, name, code FROM members WHERE "+in, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query members: %w", err)
		}
		for rows.Next() {
			var o purchase.Owner
			if err := rows.Scan(&o.ID, &o.Name, &o.Code); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan member: %w", err)
			}
			owners[o.ID] = o
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}

	return owners, nil
}

// =============================================================================
// QUERY BUILDING
// =============================================================================

// filterClause renders filter as a WHERE clause on the purchases table.
// An unbounded filter renders as "".
func filterClause(filter purchase.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Start != nil {
		conds = append(conds, "date >= ?")
		args = append(args, formatTime(*filter.Start))
	}
	if filter.End != nil {
		conds = append(conds, "date <= ?")
		args = append(args, formatTime(*filter.End))
	}
	if filter.MemberID != "" {
		conds = append(conds, "member_id = ?")
		args = append(args, filter.MemberID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func inClause(column string, values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
	return column + " IN (" + placeholders + ")", args
}
