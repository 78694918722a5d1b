/*
store.go - Persistence contract for the invoice ledger

PURPOSE:
  Defines the interface between the Ledger (the sole writer) and storage.
  A Store holds four structures and keeps them mutually consistent:

    live set        mongo_id -> current invoice record, insertion-ordered
    indices         txn_hash / vendor_email_hash / vendor_mobile_hash
                    -> ordered set of invoice ids, derived from the live set
    history log     mongo_id -> append-only chain of invoice versions
    tracking log    mongo_id -> append-only delivery events

ATOMICITY CONTRACT:
  Apply and Retire mutate all structures as a single unit: either every
  structure reflects the new version or none does. No reader may observe a
  live record whose index entries or history append are missing. The
  hosting execution model is serialized, but stores still lock internally
  so concurrent HTTP readers are safe.

READ-AFTER-WRITE:
  A Get/All/Count/index query issued after a successful Apply/Retire on
  the same store must observe that mutation.

IMPLEMENTATIONS:
  - store/memory:   authoritative in-memory model (tests, dev)
  - store/sqlite:   embedded persistence (mattn/go-sqlite3, WAL)
  - store/postgres: server persistence (jackc/pgx/v5)

SEE ALSO:
  - ledger.go: the only caller of Apply/Retire
*/
package invoice

import "context"

// Store persists invoice state. All mutation funnels through Apply and
// Retire; there is no partial-update surface.
type Store interface {
	// Get returns the live record for mongoID, or nil when absent.
	// Fully-deleted (retired) invoices are absent.
	Get(ctx context.Context, mongoID string) (*Invoice, error)

	// Apply upserts the live record, refreshes the secondary indices,
	// appends the version to the history log and appends any tracking
	// events - atomically.
	Apply(ctx context.Context, inv Invoice, events ...TrackingEvent) error

	// Retire appends the final version to the history log and removes
	// the record from the live set, indices and counter - atomically.
	// History and tracking logs are retained.
	Retire(ctx context.Context, inv Invoice) error

	// All returns the live set in insertion order.
	All(ctx context.Context) ([]Invoice, error)

	// Count returns the live-set size. O(1): a counter maintained on
	// Apply/Retire, not a recount.
	Count(ctx context.Context) (int, error)

	// History returns every stored version of mongoID, oldest first.
	// Returns an empty slice when the id was never created.
	History(ctx context.Context, mongoID string) ([]Invoice, error)

	// TrackingEvents returns the tracking log of mongoID, oldest first.
	TrackingEvents(ctx context.Context, mongoID string) ([]TrackingEvent, error)

	// ByTxnHash returns live invoices whose current settlement hash is
	// hash, in live-set insertion order.
	ByTxnHash(ctx context.Context, hash string) ([]Invoice, error)

	// ByVendorEmailHash returns live invoices indexed under the vendor
	// email hash, in live-set insertion order.
	ByVendorEmailHash(ctx context.Context, hash string) ([]Invoice, error)

	// ByVendorMobileHash returns live invoices indexed under the vendor
	// mobile hash, in live-set insertion order.
	ByVendorMobileHash(ctx context.Context, hash string) ([]Invoice, error)
}
