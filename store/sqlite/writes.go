package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Prider/buy-rubber-sub000/purchase"
)

var (
	// ErrEmptyPurchase is returned when a purchase batch has no lines.
	ErrEmptyPurchase = errors.New("purchase has no line items")

	// ErrMixedPurchase is returned when lines in one batch disagree on
	// purchase number or member.
	ErrMixedPurchase = errors.New("line items belong to different purchases")

	// ErrBackupExists is returned when the backup target already exists.
	ErrBackupExists = errors.New("backup target already exists")
)

// =============================================================================
// MEMBERS
// =============================================================================

// SaveMember inserts or updates a member.
func (s *Store) SaveMember(ctx context.Context, owner purchase.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO members (id, name, code, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, code = excluded.code
	`
	_, err := s.db.ExecContext(ctx, query, owner.ID, owner.Name, owner.Code, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	return nil
}

// =============================================================================
// PURCHASES (append-only)
// =============================================================================

// AppendPurchases writes the lines of one purchase atomically. Every line
// must share the same purchase number and member. Missing ids are
// generated; a zero CreatedAt is stamped with the current time.
func (s *Store) AppendPurchases(ctx context.Context, lines []purchase.LineItem) error {
	if len(lines) == 0 {
		return ErrEmptyPurchase
	}
	for _, l := range lines[1:] {
		if l.PurchaseNo != lines[0].PurchaseNo || l.MemberID != lines[0].MemberID {
			return ErrMixedPurchase
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, l := range lines {
		if err := appendLine(ctx, sqlTx, l); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

func appendLine(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, l purchase.LineItem) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO purchases
		(id, purchase_no, member_id, date, created_at, amount_cents,
		 product_type, gross_weight, net_weight, unit_price, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		l.ID,
		l.PurchaseNo,
		l.MemberID,
		formatTime(l.Date),
		formatTime(l.CreatedAt),
		toCents(l.Amount),
		l.ProductType,
		l.GrossWeight.String(),
		l.NetWeight.String(),
		l.UnitPrice.String(),
		nullString(l.Notes),
	)
	if err != nil {
		return fmt.Errorf("failed to append purchase line: %w", err)
	}
	return nil
}

// =============================================================================
// EXPENSES
// =============================================================================

// AppendExpense records a fee. A nil PurchaseNo stores an unlinked fee.
func (s *Store) AppendExpense(ctx context.Context, adj purchase.Adjustment) error {
	if adj.Amount.IsNegative() {
		return fmt.Errorf("expense amount must not be negative: %s", adj.Amount)
	}
	if adj.ID == "" {
		adj.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var purchaseNo sql.NullString
	if adj.PurchaseNo != nil {
		purchaseNo = nullString(*adj.PurchaseNo)
	}

	query := `
		INSERT INTO expenses (id, purchase_no, date, category, amount_cents, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		adj.ID,
		purchaseNo,
		formatTime(adj.Date),
		adj.Category,
		toCents(adj.Amount),
		nullString(adj.Notes),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to append expense: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Counts reports row counts per table (for health checks).
type Counts struct {
	Members   int `json:"members"`
	Purchases int `json:"purchases"`
	Expenses  int `json:"expenses"`
}

// Counts returns the current row counts.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM members),
			(SELECT COUNT(*) FROM purchases),
			(SELECT COUNT(*) FROM expenses)
	`).Scan(&c.Members, &c.Purchases, &c.Expenses)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count rows: %w", err)
	}
	return c, nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"expenses", "purchases", "members"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Backup writes a consistent copy of the database to destPath with
// VACUUM INTO. destPath must not exist; its directory is created.
func (s *Store) Backup(ctx context.Context, destPath string) error {
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("%w: %s", ErrBackupExists, destPath)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("failed to back up database: %w", err)
	}
	return nil
}
