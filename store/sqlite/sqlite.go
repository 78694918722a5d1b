/*
Package sqlite provides a SQLite-backed implementation of invoice.Store.

PURPOSE:
  Embedded persistence for single-node deployments. Records are stored as
  canonical JSON documents with the three lookup keys extracted into
  dedicated columns so the secondary-index queries run on SQL indexes
  instead of document scans.

KEY TABLES:
  invoices:         live set; rowid preserves insertion order across updates
  invoice_history:  append-only version chain (no UPDATE, no DELETE)
  tracking_events:  append-only delivery log

ATOMICITY:
  Apply and Retire run inside a single SQL transaction, so the live
  record, its index columns and the history/tracking appends become
  visible together or not at all.

COUNT:
  The live-set counter is loaded once at open and maintained on
  Apply/Retire under the store mutex. Count is an O(1) read, never a
  recount.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/invoices.db")  // or ":memory:"
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := invoice.NewLedger(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - invoice/store.go: Interface definition
  - store/memory: In-memory implementation for testing
  - store/postgres: Server-grade implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/invoice-ledger/invoice"
)

// Store implements invoice.Store using SQLite.
type Store struct {
	db *sql.DB

	mu    sync.Mutex
	count int
}

// New opens (and migrates) a SQLite store at dbPath. Use ":memory:" for
// an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := store.loadCount(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load invoice count: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Live set. rowid is assigned on first insert and survives updates,
	-- so ORDER BY rowid is insertion order.
	CREATE TABLE IF NOT EXISTS invoices (
		mongo_id TEXT PRIMARY KEY,
		txn_hash TEXT NOT NULL,
		vendor_email_hash TEXT NOT NULL,
		vendor_mobile_hash TEXT NOT NULL,
		doc_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_txn_hash
		ON invoices(txn_hash);
	CREATE INDEX IF NOT EXISTS idx_invoices_vendor_email_hash
		ON invoices(vendor_email_hash);
	CREATE INDEX IF NOT EXISTS idx_invoices_vendor_mobile_hash
		ON invoices(vendor_mobile_hash);

	-- Version chain (append-only: no UPDATE, no DELETE, ever)
	CREATE TABLE IF NOT EXISTS invoice_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mongo_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		doc_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_mongo_id
		ON invoice_history(mongo_id);

	-- Delivery log (append-only)
	CREATE TABLE IF NOT EXISTS tracking_events (
		id TEXT PRIMARY KEY,
		mongo_id TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		doc_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tracking_mongo_id
		ON tracking_events(mongo_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) loadCount() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.QueryRow(`SELECT COUNT(*) FROM invoices`).Scan(&s.count)
}

// =============================================================================
// MUTATIONS
// =============================================================================

func (s *Store) Apply(ctx context.Context, inv invoice.Invoice, events ...invoice.TrackingEvent) error {
	doc, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("failed to encode invoice: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invoices WHERE mongo_id = ?`, inv.MongoID).Scan(&existing)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (mongo_id, txn_hash, vendor_email_hash, vendor_mobile_hash, doc_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(mongo_id) DO UPDATE SET
			txn_hash = excluded.txn_hash,
			vendor_email_hash = excluded.vendor_email_hash,
			vendor_mobile_hash = excluded.vendor_mobile_hash,
			doc_json = excluded.doc_json`,
		inv.MongoID, inv.TxnHash, inv.VendorEmailHash, inv.VendorMobileHash, string(doc))
	if err != nil {
		return err
	}

	if err := appendHistory(ctx, tx, inv, doc); err != nil {
		return err
	}
	if err := appendTracking(ctx, tx, events); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	if existing == 0 {
		s.count++
	}
	return nil
}

func (s *Store) Retire(ctx context.Context, inv invoice.Invoice) error {
	doc, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("failed to encode invoice: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := appendHistory(ctx, tx, inv, doc); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM invoices WHERE mongo_id = ?`, inv.MongoID)
	if err != nil {
		return err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	if removed > 0 {
		s.count--
	}
	return nil
}

func appendHistory(ctx context.Context, tx *sql.Tx, inv invoice.Invoice, doc []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO invoice_history (mongo_id, version, doc_json)
		VALUES (?, ?, ?)`,
		inv.MongoID, inv.Version, string(doc))
	return err
}

func appendTracking(ctx context.Context, tx *sql.Tx, events []invoice.TrackingEvent) error {
	for _, e := range events {
		doc, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode tracking event: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tracking_events (id, mongo_id, recorded_at, doc_json)
			VALUES (?, ?, ?, ?)`,
			e.ID, e.MongoID, e.RecordedAt.UTC().Format(time.RFC3339Nano), string(doc))
		if err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Store) Get(ctx context.Context, mongoID string) (*invoice.Invoice, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT doc_json FROM invoices WHERE mongo_id = ?`, mongoID)

	var doc string
	if err := row.Scan(&doc); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	var inv invoice.Invoice
	if err := json.Unmarshal([]byte(doc), &inv); err != nil {
		return nil, fmt.Errorf("failed to decode invoice %s: %w", mongoID, err)
	}
	return &inv, nil
}

func (s *Store) All(ctx context.Context) ([]invoice.Invoice, error) {
	return s.queryInvoices(ctx,
		`SELECT doc_json FROM invoices ORDER BY rowid`)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, nil
}

func (s *Store) History(ctx context.Context, mongoID string) ([]invoice.Invoice, error) {
	return s.queryInvoices(ctx,
		`SELECT doc_json FROM invoice_history WHERE mongo_id = ? ORDER BY id`, mongoID)
}

func (s *Store) TrackingEvents(ctx context.Context, mongoID string) ([]invoice.TrackingEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_json FROM tracking_events WHERE mongo_id = ? ORDER BY rowid`, mongoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]invoice.TrackingEvent, 0)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var e invoice.TrackingEvent
		if err := json.Unmarshal([]byte(doc), &e); err != nil {
			return nil, fmt.Errorf("failed to decode tracking event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) ByTxnHash(ctx context.Context, hash string) ([]invoice.Invoice, error) {
	return s.queryInvoices(ctx,
		`SELECT doc_json FROM invoices WHERE txn_hash = ? ORDER BY rowid`, hash)
}

func (s *Store) ByVendorEmailHash(ctx context.Context, hash string) ([]invoice.Invoice, error) {
	return s.queryInvoices(ctx,
		`SELECT doc_json FROM invoices WHERE vendor_email_hash = ? ORDER BY rowid`, hash)
}

func (s *Store) ByVendorMobileHash(ctx context.Context, hash string) ([]invoice.Invoice, error) {
	return s.queryInvoices(ctx,
		`SELECT doc_json FROM invoices WHERE vendor_mobile_hash = ? ORDER BY rowid`, hash)
}

func (s *Store) queryInvoices(ctx context.Context, query string, args ...any) ([]invoice.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]invoice.Invoice, 0)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var inv invoice.Invoice
		if err := json.Unmarshal([]byte(doc), &inv); err != nil {
			return nil, fmt.Errorf("failed to decode invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}
