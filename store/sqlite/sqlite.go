/*
Package sqlite provides a SQLite-backed implementation of the purchase ledger.

PURPOSE:
  Implements purchase.LedgerStore and purchase.OwnerLookup on SQLite, plus
  the write helpers used to seed demo data and the hot backup used by the
  backup scheduler. The engine itself only ever reads.

INTERFACES IMPLEMENTED:
  purchase.LedgerStore: Grouped aggregate pass + scoped detail pass
  purchase.OwnerLookup: Batch member lookup

KEY TABLES:
  members:   Member display metadata (name, code)
  purchases: Append-only line items, grouped by purchase_no
  expenses:  Fees, optionally linked to a purchase_no

STORAGE FORMATS:
  - Amounts are INTEGER cents so SUM() is exact
  - Times are fixed-width UTC text so MAX() and range filters compare
    lexicographically

INDEXES:
  - idx_purchases_date, idx_purchases_member_date: Aggregate pass
  - idx_purchases_purchase_no, idx_expenses_purchase_no: Detail pass

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Reads share the lock, so the two
  detail queries of a request can run together.

WAL MODE:
  File databases are opened with WAL (Write-Ahead Logging) so readers
  don't block the writer. ":memory:" is pinned to one connection because
  every new connection would see its own empty database.

USAGE:
  store, err := sqlite.New("./data/rubber.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := purchase.NewEngine(purchase.Config{Ledger: store, Owners: store})

MIGRATION:
  Versioned migrations are embedded from migrations/ and applied on New()
  with golang-migrate.

SEE ALSO:
  - purchase/store.go: Interface definitions
  - purchase/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/Prider/buy-rubber-sub000/purchase"
)

const memoryDSN = ":memory:"

// timeLayout is fixed width in UTC, so text order equals time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements the purchase ledger using SQLite.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

var (
	_ purchase.LedgerStore = (*Store)(nil)
	_ purchase.OwnerLookup = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL"
	if dbPath == memoryDSN {
		dsn = dbPath + "?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == memoryDSN {
		db.SetMaxOpenConns(1)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the path the store was opened with.
func (s *Store) Path() string { return s.path }

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", value, err)
	}
	return t, nil
}

// toCents rounds to the nearest satang.
func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func parseDecimal(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}
