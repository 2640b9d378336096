/*
Package sqlite provides a SQLite-backed implementation of domain.TxStore.

PURPOSE:
  Persists both ledgers. In production the same patterns apply to PostgreSQL,
  only minor SQL dialect differences.

KEY TABLES:
  purchase_orders:              PO versions; root_id groups a version chain
  po_operations, po_products,
  po_material_baselines:        line items, owned by one PO version
  customers, warehouses:        reference catalog
  materials:                    SKUs with the cached current_stock
  material_receipts / _issues /
  material_adjustments:         immutable movements
  material_transaction_history: append-only ledger (seq orders rows)
  material_receipt_history:     PO-scoped receipt log

UNIQUENESS ENFORCED HERE:
  - idx_po_number_root:        one root per PO number
  - idx_po_chain_version:      one row per (root_id, version_number)
  - idx_po_single_approved:    at most one APPROVED_FOR_PMC row per chain
  - idx_material_scope_code:   material code per customer scope
  - receipt/issue/adjustment numbers, warehouse and customer codes

CONCURRENCY:
  The pool is capped at one connection, so a WithTx callback owns the
  database until it commits. Transactions start with BEGIN IMMEDIATE
  (_txlock=immediate), which also serialises writers across processes
  sharing the file. purchase_orders and materials carry row_version and
  every update is a compare-and-swap on it.

DECIMALS:
  Money and quantity columns are TEXT; decimal.Decimal is written with its
  driver.Valuer and read back with its sql.Scanner, so no float rounding.

USAGE:
  store, err := sqlite.New("./data/mfg.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/mfg-ledger/domain"
)

// Store implements domain.TxStore using SQLite.
type Store struct {
	conn
	db *sql.DB
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn carries every table operation; Store uses it over the pool and
// WithTx over a *sql.Tx.
type conn struct {
	q queryer
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per-connection, and it makes
	// WithTx exclusive within the process.
	db.SetMaxOpenConns(1)

	store := &Store{conn: conn{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS warehouses (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		location TEXT,
		created_at TEXT NOT NULL
	);

	-- customer_scope is '' for shared materials so the unique index treats them as one scope
	CREATE TABLE IF NOT EXISTS materials (
		id TEXT PRIMARY KEY,
		customer_id TEXT REFERENCES customers(id),
		customer_scope TEXT NOT NULL DEFAULT '',
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		unit TEXT,
		current_stock TEXT NOT NULL DEFAULT '0',
		row_version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_material_scope_code
		ON materials(customer_scope, code);

	CREATE TABLE IF NOT EXISTS material_receipts (
		id TEXT PRIMARY KEY,
		receipt_number TEXT NOT NULL UNIQUE,
		material_id TEXT NOT NULL REFERENCES materials(id),
		warehouse_id TEXT NOT NULL REFERENCES warehouses(id),
		customer_id TEXT NOT NULL REFERENCES customers(id),
		po_id TEXT,
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		received_at TEXT NOT NULL,
		confirmed_at TEXT,
		confirmed_by TEXT,
		notes TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS material_issues (
		id TEXT PRIMARY KEY,
		issue_number TEXT NOT NULL UNIQUE,
		material_id TEXT NOT NULL REFERENCES materials(id),
		warehouse_id TEXT NOT NULL REFERENCES warehouses(id),
		customer_id TEXT NOT NULL REFERENCES customers(id),
		quantity TEXT NOT NULL,
		reason TEXT,
		status TEXT NOT NULL,
		issued_at TEXT NOT NULL,
		notes TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS material_adjustments (
		id TEXT PRIMARY KEY,
		adjustment_number TEXT NOT NULL UNIQUE,
		material_id TEXT NOT NULL REFERENCES materials(id),
		warehouse_id TEXT NOT NULL REFERENCES warehouses(id),
		customer_id TEXT NOT NULL REFERENCES customers(id),
		quantity TEXT NOT NULL,
		reason TEXT NOT NULL,
		responsible_person TEXT NOT NULL,
		status TEXT NOT NULL,
		adjusted_at TEXT NOT NULL,
		notes TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	-- Append-only ledger. No UPDATE or DELETE is ever issued against it.
	CREATE TABLE IF NOT EXISTS material_transaction_history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		material_id TEXT NOT NULL REFERENCES materials(id),
		warehouse_id TEXT,
		customer_id TEXT,
		transaction_type TEXT NOT NULL,
		reference_id TEXT NOT NULL,
		reference_number TEXT,
		stock_before TEXT NOT NULL,
		quantity_change TEXT NOT NULL,
		stock_after TEXT NOT NULL,
		notes TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_material_seq
		ON material_transaction_history(material_id, seq);
	CREATE INDEX IF NOT EXISTS idx_history_reference
		ON material_transaction_history(reference_id);

	-- PO-scoped receipt log. po_id is a weak reference: rows outlive a deleted chain.
	CREATE TABLE IF NOT EXISTS material_receipt_history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		po_id TEXT NOT NULL,
		receipt_id TEXT NOT NULL,
		receipt_number TEXT NOT NULL,
		material_id TEXT NOT NULL,
		quantity TEXT NOT NULL,
		received_at TEXT NOT NULL,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_receipt_history_po
		ON material_receipt_history(po_id, seq);

	CREATE TABLE IF NOT EXISTS purchase_orders (
		id TEXT PRIMARY KEY,
		po_number TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		version TEXT NOT NULL,
		version_number INTEGER NOT NULL,
		original_po_id TEXT,
		root_id TEXT NOT NULL,
		status TEXT NOT NULL,
		total_amount TEXT NOT NULL DEFAULT '0',
		order_date TEXT NOT NULL,
		due_date TEXT,
		notes TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		row_version INTEGER NOT NULL DEFAULT 0
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_po_number_root
		ON purchase_orders(po_number) WHERE original_po_id IS NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_po_chain_version
		ON purchase_orders(root_id, version_number);
	-- CRITICAL: at most one approved version per chain
	CREATE UNIQUE INDEX IF NOT EXISTS idx_po_single_approved
		ON purchase_orders(root_id) WHERE status = 'APPROVED_FOR_PMC';

	CREATE TABLE IF NOT EXISTS po_operations (
		id TEXT PRIMARY KEY,
		po_id TEXT NOT NULL REFERENCES purchase_orders(id) ON DELETE CASCADE,
		sequence INTEGER NOT NULL,
		part_id TEXT,
		product_id TEXT,
		processing_type TEXT NOT NULL,
		process_method TEXT,
		description TEXT,
		charge_count TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		quantity TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_po_operations_po
		ON po_operations(po_id, sequence);

	CREATE TABLE IF NOT EXISTS po_products (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		po_id TEXT NOT NULL REFERENCES purchase_orders(id) ON DELETE CASCADE,
		product_code TEXT NOT NULL,
		product_name TEXT,
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS po_material_baselines (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		po_id TEXT NOT NULL REFERENCES purchase_orders(id) ON DELETE CASCADE,
		material_id TEXT NOT NULL,
		required_quantity TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (domain.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store domain.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Reset deletes all rows. Used by tests and demo reloads.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{
		"material_receipt_history", "material_transaction_history",
		"material_adjustments", "material_issues", "material_receipts",
		"po_material_baselines", "po_products", "po_operations", "purchase_orders",
		"materials", "warehouses", "customers",
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, table := range tables {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return sqlTx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// expectOneRow turns a compare-and-swap miss into ErrConcurrentModification.
func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return domain.ErrConcurrentModification
	}
	return nil
}

var _ domain.TxStore = (*Store)(nil)
