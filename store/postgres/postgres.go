/*
Package postgres provides a PostgreSQL-backed implementation of
invoice.Store using jackc/pgx.

PURPOSE:
  Server-grade persistence. Same document-plus-index-columns layout as
  the SQLite store: the record travels as canonical JSON, the three
  lookup keys are extracted into indexed columns, and a BIGSERIAL
  sequence column preserves live-set insertion order across updates.

ATOMICITY:
  Apply and Retire run inside a pgx transaction.

COUNT:
  The live-set counter is loaded once during Migrate and maintained on
  Apply/Retire under the store mutex.

USAGE:
  pool, err := pgxpool.New(ctx, dsn)
  if err != nil {
      log.Fatal(err)
  }
  store := postgres.New(pool)
  if err := store.Migrate(ctx); err != nil {
      log.Fatal(err)
  }
  ledger := invoice.NewLedger(store)

TESTING:
  The DB interface matches pgxmock.PgxPoolIface, so the store is
  testable without a running server.

SEE ALSO:
  - invoice/store.go: Interface definition
  - store/sqlite: Embedded implementation with the same layout
*/
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/warp/invoice-ledger/invoice"
)

// DB is the subset of pgxpool.Pool the store needs. pgxmock satisfies
// it too.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements invoice.Store using PostgreSQL.
type Store struct {
	db DB

	mu    sync.Mutex
	count int
}

// New wraps db. Call Migrate before first use.
func New(db DB) *Store {
	return &Store{db: db}
}

// migrations run in order; each statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS invoices (
		seq BIGSERIAL,
		mongo_id TEXT PRIMARY KEY,
		txn_hash TEXT NOT NULL,
		vendor_email_hash TEXT NOT NULL,
		vendor_mobile_hash TEXT NOT NULL,
		doc_json JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_txn_hash
		ON invoices(txn_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_vendor_email_hash
		ON invoices(vendor_email_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_vendor_mobile_hash
		ON invoices(vendor_mobile_hash)`,
	`CREATE TABLE IF NOT EXISTS invoice_history (
		id BIGSERIAL PRIMARY KEY,
		mongo_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		doc_json JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_history_mongo_id
		ON invoice_history(mongo_id)`,
	`CREATE TABLE IF NOT EXISTS tracking_events (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		mongo_id TEXT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL,
		doc_json JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tracking_mongo_id
		ON tracking_events(mongo_id)`,
}

// Migrate creates the schema and loads the live-set counter.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&s.count); err != nil {
		return fmt.Errorf("failed to load invoice count: %w", err)
	}
	return nil
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

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var existing int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE mongo_id = $1`, inv.MongoID).Scan(&existing)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO invoices (mongo_id, txn_hash, vendor_email_hash, vendor_mobile_hash, doc_json)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (mongo_id) DO UPDATE SET
			txn_hash = EXCLUDED.txn_hash,
			vendor_email_hash = EXCLUDED.vendor_email_hash,
			vendor_mobile_hash = EXCLUDED.vendor_mobile_hash,
			doc_json = EXCLUDED.doc_json`,
		inv.MongoID, inv.TxnHash, inv.VendorEmailHash, inv.VendorMobileHash, doc)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO invoice_history (mongo_id, version, doc_json)
		VALUES ($1, $2, $3)`,
		inv.MongoID, inv.Version, doc); err != nil {
		return err
	}

	for _, e := range events {
		eventDoc, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode tracking event: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO tracking_events (id, mongo_id, recorded_at, doc_json)
			VALUES ($1, $2, $3, $4)`,
			e.ID, e.MongoID, e.RecordedAt, eventDoc); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
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

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO invoice_history (mongo_id, version, doc_json)
		VALUES ($1, $2, $3)`,
		inv.MongoID, inv.Version, doc); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM invoices WHERE mongo_id = $1`, inv.MongoID)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		s.count--
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Store) Get(ctx context.Context, mongoID string) (*invoice.Invoice, error) {
	row := s.db.QueryRow(ctx,
		`SELECT doc_json FROM invoices WHERE mongo_id = $1`, mongoID)

	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var inv invoice.Invoice
	if err := json.Unmarshal(doc, &inv); err != nil {
		return nil, fmt.Errorf("failed to decode invoice %s: %w", mongoID, err)
	}
	return &inv, nil
}

func (s *Store) All(ctx context.Context) ([]invoice.Invoice, error) {
	return s.queryInvoices(ctx,
		`SELECT doc_json FROM invoices ORDER BY seq`)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, nil
}

func (s *Store) History(ctx context.Context, mongoID string) ([]invoice.Invoice, error) {
	return s.queryInvoices(ctx,
		`SELECT doc_json FROM invoice_history WHERE mongo_id = $1 ORDER BY id`, mongoID)
}

func (s *Store) TrackingEvents(ctx context.Context, mongoID string) ([]invoice.TrackingEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT doc_json FROM tracking_events WHERE mongo_id = $1 ORDER BY seq`, mongoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]invoice.TrackingEvent, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var e invoice.TrackingEvent
		if err := json.Unmarshal(doc, &e); err != nil {
			return nil, fmt.Errorf("failed to decode tracking event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) ByTxnHash(ctx context.Context, hash string) ([]invoice.Invoice, error) {
	return s.queryInvoices(ctx,
		`SELECT doc_json FROM invoices WHERE txn_hash = $1 ORDER BY seq`, hash)
}

func (s *Store) ByVendorEmailHash(ctx context.Context, hash string) ([]invoice.Invoice, error) {
	return s.queryInvoices(ctx,
		`SELECT doc_json FROM invoices WHERE vendor_email_hash = $1 ORDER BY seq`, hash)
}

func (s *Store) ByVendorMobileHash(ctx context.Context, hash string) ([]invoice.Invoice, error) {
	return s.queryInvoices(ctx,
		`SELECT doc_json FROM invoices WHERE vendor_mobile_hash = $1 ORDER BY seq`, hash)
}

func (s *Store) queryInvoices(ctx context.Context, query string, args ...any) ([]invoice.Invoice, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]invoice.Invoice, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var inv invoice.Invoice
		if err := json.Unmarshal(doc, &inv); err != nil {
			return nil, fmt.Errorf("failed to decode invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}
