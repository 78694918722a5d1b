/*
ledger.go - Lifecycle state machine and ledger operations

PURPOSE:
  The Ledger is the sole writer of invoice state. Every operation follows
  the same shape: validate the payload, load current state, check the
  transition guards, then apply the new version atomically (live record +
  indices + history + tracking log in one store call).

LIFECYCLE:
  created -> acknowledged -> { financed* -> } paid -> payment_confirmed
                          -> rejected
                          -> voided

  Terminal branches (paid, rejected, voided) are mutually exclusive: at
  most one of the three flags is ever true. Everything except create/ack
  requires acknowledgment first.

GUARD SEMANTICS:
  A status flag that blocks the requested transition surfaces as that
  flag's 2xxx signal (e.g. paying a rejected invoice fails
  InvoiceRejected, confirming an unpaid invoice fails InvoicePaid). The
  caller can therefore always tell WHICH state got in the way.

VERSIONING:
  Every accepted mutation increments Version, records the action keyword,
  rotates the settlement hash, and sets PreviousInvoiceHash to the content
  hash of the prior version - so query_invoice_history returns a
  verifiable chain.

SOFT DELETION:
  Each party may delete its view at any point after creation. When both
  sides have deleted, the record is retired: removed from the live set,
  indices and counter, with history retained. The id may then be
  re-issued by a fresh create.

SEE ALSO:
  - validate.go: payload validation (runs before any state is read)
  - store.go: atomicity contract
  - errors.go: code taxonomy
*/
package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/invoice-ledger/logger"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger applies lifecycle operations to invoices held in a Store. It is
// safe for concurrent use as long as the store honors its atomicity
// contract; the hosting environment serializes writers.
type Ledger struct {
	store Store
	log   zerolog.Logger
}

// NewLedger creates a ledger over the given store. The store instance is
// injected so multiple independent ledgers can coexist in-process.
func NewLedger(store Store) *Ledger {
	return &Ledger{
		store: store,
		log:   logger.WithComponent("invoice-ledger"),
	}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Create registers a new invoice. Lifecycle flags, financing details and
// the index hashes are normalized here regardless of what the caller
// supplied: a freshly created invoice is always unacknowledged, and the
// vendor hashes are computed exactly once from the plaintext fields.
//
// An id that was fully soft-deleted may be re-issued; a live duplicate
// fails InvoiceAlreadyExists.
func (l *Ledger) Create(ctx context.Context, input Invoice) (string, error) {
	if err := ValidateCreate(input); err != nil {
		return "", l.deny(ActionCreate, input.MongoID, err)
	}

	existing, err := l.store.Get(ctx, input.MongoID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", l.deny(ActionCreate, input.MongoID, errFor(CodeAlreadyExists, input.MongoID))
	}

	inv := input.Clone()
	inv.InvType = "Invoice"
	inv.Action = ActionCreate
	inv.Ack = false
	inv.Finance = false
	inv.Paid = false
	inv.PaymentConfirmation = false
	inv.Rejected = false
	inv.Voided = false
	inv.SentInvoiceDeleted = false
	inv.ReceivedInvoiceDeleted = false
	inv.DeletedComments = ""
	inv.FinancingDetails = []string{}
	inv.VendorEmailHash = EmailHash(inv.VendorEmail)
	inv.VendorMobileHash = MobileHash(inv.VendorMobile)
	inv.Version = 1
	inv.PreviousInvoiceHash = ""
	inv.Timestamp = time.Now().UTC()
	inv.Tracking = Track{}

	if err := l.store.Apply(ctx, inv); err != nil {
		return "", err
	}
	l.accept(ActionCreate, inv.MongoID, inv.Version)
	return inv.MongoID, nil
}

// Acknowledge moves a created invoice to acknowledged.
func (l *Ledger) Acknowledge(ctx context.Context, req ActionRequest) (string, error) {
	if err := ValidateActionRequest(req); err != nil {
		return "", l.deny(ActionAck, req.MongoID, err)
	}
	prev, err := l.load(ctx, req.MongoID)
	if err != nil {
		return "", l.deny(ActionAck, req.MongoID, err)
	}
	if prev.Ack {
		return "", l.deny(ActionAck, req.MongoID, errFor(CodeAcknowledged, req.MongoID))
	}

	next := prev.Clone()
	next.Ack = true
	return l.commit(ctx, *prev, next, req.Action, req.TxnHash)
}

// Finance records a financing amendment. Financing is repeatable: each
// call appends a distinct finance id to the amendment sequence.
// Re-presenting an id that is already recorded fails InvoiceFinanced.
func (l *Ledger) Finance(ctx context.Context, req FinanceRequest) (string, error) {
	if err := ValidateFinanceRequest(req); err != nil {
		return "", l.deny(ActionFinance, req.MongoID, err)
	}
	prev, err := l.load(ctx, req.MongoID)
	if err != nil {
		return "", l.deny(ActionFinance, req.MongoID, err)
	}
	if err := guardForward(prev); err != nil {
		return "", l.deny(ActionFinance, req.MongoID, err)
	}
	if prev.Paid {
		return "", l.deny(ActionFinance, req.MongoID, errFor(CodePaid, req.MongoID))
	}
	for _, id := range prev.FinancingDetails {
		if id == req.FinanceID {
			return "", l.deny(ActionFinance, req.MongoID,
				&Error{Code: CodeFinanced, MongoID: req.MongoID, Detail: "finance id already recorded"})
		}
	}

	next := prev.Clone()
	next.Finance = true
	next.FinancingDetails = append(next.FinancingDetails, req.FinanceID)
	return l.commit(ctx, *prev, next, req.Action, req.TxnHash)
}

// Pay marks an acknowledged invoice as paid.
func (l *Ledger) Pay(ctx context.Context, req ActionRequest) (string, error) {
	if err := ValidateActionRequest(req); err != nil {
		return "", l.deny(ActionPaid, req.MongoID, err)
	}
	prev, err := l.load(ctx, req.MongoID)
	if err != nil {
		return "", l.deny(ActionPaid, req.MongoID, err)
	}
	if err := guardForward(prev); err != nil {
		return "", l.deny(ActionPaid, req.MongoID, err)
	}
	if prev.Paid {
		return "", l.deny(ActionPaid, req.MongoID, errFor(CodePaid, req.MongoID))
	}

	next := prev.Clone()
	next.Paid = true
	return l.commit(ctx, *prev, next, req.Action, req.TxnHash)
}

// ConfirmPayment records settlement confirmation on a paid invoice.
// Confirming an unpaid invoice fails InvoicePaid: the paid prerequisite
// is not in effect.
func (l *Ledger) ConfirmPayment(ctx context.Context, req ActionRequest) (string, error) {
	if err := ValidateActionRequest(req); err != nil {
		return "", l.deny(ActionPaymentConfirmation, req.MongoID, err)
	}
	prev, err := l.load(ctx, req.MongoID)
	if err != nil {
		return "", l.deny(ActionPaymentConfirmation, req.MongoID, err)
	}
	if !prev.Ack {
		return "", l.deny(ActionPaymentConfirmation, req.MongoID, errFor(CodeNotAcknowledged, req.MongoID))
	}
	if prev.PaymentConfirmation {
		return "", l.deny(ActionPaymentConfirmation, req.MongoID, errFor(CodePaymentConfirmed, req.MongoID))
	}
	if prev.Rejected {
		return "", l.deny(ActionPaymentConfirmation, req.MongoID, errFor(CodeRejected, req.MongoID))
	}
	if prev.Voided {
		return "", l.deny(ActionPaymentConfirmation, req.MongoID, errFor(CodeVoided, req.MongoID))
	}
	if !prev.Paid {
		return "", l.deny(ActionPaymentConfirmation, req.MongoID,
			&Error{Code: CodePaid, MongoID: req.MongoID, Detail: "payment not recorded"})
	}

	next := prev.Clone()
	next.PaymentConfirmation = true
	return l.commit(ctx, *prev, next, req.Action, req.TxnHash)
}

// Reject moves an acknowledged, unpaid, unvoided invoice to rejected.
func (l *Ledger) Reject(ctx context.Context, req ActionRequest) (string, error) {
	if err := ValidateActionRequest(req); err != nil {
		return "", l.deny(ActionReject, req.MongoID, err)
	}
	prev, err := l.load(ctx, req.MongoID)
	if err != nil {
		return "", l.deny(ActionReject, req.MongoID, err)
	}
	if err := guardForward(prev); err != nil {
		return "", l.deny(ActionReject, req.MongoID, err)
	}
	if prev.Paid {
		return "", l.deny(ActionReject, req.MongoID, errFor(CodePaid, req.MongoID))
	}

	next := prev.Clone()
	next.Rejected = true
	return l.commit(ctx, *prev, next, req.Action, req.TxnHash)
}

// Void moves an acknowledged, unpaid, unrejected invoice to voided.
func (l *Ledger) Void(ctx context.Context, req ActionRequest) (string, error) {
	if err := ValidateActionRequest(req); err != nil {
		return "", l.deny(ActionVoid, req.MongoID, err)
	}
	prev, err := l.load(ctx, req.MongoID)
	if err != nil {
		return "", l.deny(ActionVoid, req.MongoID, err)
	}
	if err := guardForward(prev); err != nil {
		return "", l.deny(ActionVoid, req.MongoID, err)
	}
	if prev.Paid {
		return "", l.deny(ActionVoid, req.MongoID, errFor(CodePaid, req.MongoID))
	}

	next := prev.Clone()
	next.Voided = true
	return l.commit(ctx, *prev, next, req.Action, req.TxnHash)
}

// UpdateTracking appends a delivery event to the tracking log and
// replaces the invoice's current tracking snapshot. Tracking bypasses the
// lifecycle guards - a voided invoice's mail can still bounce - but the
// invoice must exist and must not be fully deleted.
func (l *Ledger) UpdateTracking(ctx context.Context, mongoID string, tr Track) (string, error) {
	if err := ValidateTrack(mongoID, tr); err != nil {
		return "", l.deny(ActionTracking, mongoID, err)
	}
	prev, err := l.load(ctx, mongoID)
	if err != nil {
		return "", l.deny(ActionTracking, mongoID, err)
	}

	event := TrackingEvent{
		ID:         uuid.NewString(),
		MongoID:    mongoID,
		RecordedAt: time.Now().UTC(),
		Track:      tr,
	}

	next := prev.Clone()
	next.Tracking = tr
	return l.commit(ctx, *prev, next, ActionTracking, prev.TxnHash, event)
}

// SoftDelete marks one party's view of the invoice as deleted. The second
// side's deletion retires the record: it leaves the live set, indices and
// count, while history and tracking logs are retained.
func (l *Ledger) SoftDelete(ctx context.Context, mongoID string, side DeleteSide, comment string) (string, error) {
	if !ValidMongoID(mongoID) {
		return "", l.deny(ActionDelete, mongoID, errDetail(CodeInvalidMongoID, mongoID))
	}
	if !side.Valid() {
		return "", l.deny(ActionDelete, mongoID,
			errDetail(CodeInvalidInvoiceInput, "unknown delete side"))
	}
	prev, err := l.load(ctx, mongoID)
	if err != nil {
		return "", l.deny(ActionDelete, mongoID, err)
	}
	alreadyMarked := (side == SideSent && prev.SentInvoiceDeleted) ||
		(side == SideReceived && prev.ReceivedInvoiceDeleted)
	if alreadyMarked {
		return "", l.deny(ActionDelete, mongoID,
			&Error{Code: CodeAlreadyDeleted, MongoID: mongoID, Detail: string(side) + " side already deleted"})
	}

	next := prev.Clone()
	if side == SideSent {
		next.SentInvoiceDeleted = true
	} else {
		next.ReceivedInvoiceDeleted = true
	}
	if comment != "" {
		if next.DeletedComments != "" {
			next.DeletedComments += "; "
		}
		next.DeletedComments += comment
	}

	next.Action = ActionDelete
	next.PreviousInvoiceHash = ContentHash(*prev)
	next.Version = prev.Version + 1
	next.Timestamp = time.Now().UTC()

	if next.FullyDeleted() {
		if err := l.store.Retire(ctx, next); err != nil {
			return "", err
		}
	} else {
		if err := l.store.Apply(ctx, next); err != nil {
			return "", err
		}
	}
	l.accept(ActionDelete, mongoID, next.Version)
	return mongoID, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns the live invoice for mongoID, or nil when absent. Queries
// bypass the state machine and read the store directly.
func (l *Ledger) Get(ctx context.Context, mongoID string) (*Invoice, error) {
	return l.store.Get(ctx, mongoID)
}

// All returns the full live set in insertion order.
func (l *Ledger) All(ctx context.Context) ([]Invoice, error) {
	return l.store.All(ctx)
}

// Count returns the live-set size (cached counter, not a recount).
func (l *Ledger) Count(ctx context.Context) (int, error) {
	return l.store.Count(ctx)
}

// History returns every version of mongoID oldest first, forming a
// verifiable hash chain. Fails InvoiceNotFound for an id that was never
// created.
func (l *Ledger) History(ctx context.Context, mongoID string) ([]Invoice, error) {
	history, err := l.store.History(ctx, mongoID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, errFor(CodeNotFound, mongoID)
	}
	return history, nil
}

// TrackingHistory returns the delivery event log of mongoID, oldest
// first. Fails InvoiceNotFound for an id that was never created.
func (l *Ledger) TrackingHistory(ctx context.Context, mongoID string) ([]TrackingEvent, error) {
	history, err := l.store.History(ctx, mongoID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, errFor(CodeNotFound, mongoID)
	}
	return l.store.TrackingEvents(ctx, mongoID)
}

// ByTxnHash returns live invoices currently referencing the settlement
// hash, in insertion order. An empty result is not an error.
func (l *Ledger) ByTxnHash(ctx context.Context, hash string) ([]Invoice, error) {
	return l.store.ByTxnHash(ctx, hash)
}

// ByVendorEmailHash returns live invoices whose vendor email hash matches.
func (l *Ledger) ByVendorEmailHash(ctx context.Context, hash string) ([]Invoice, error) {
	return l.store.ByVendorEmailHash(ctx, hash)
}

// ByVendorMobileHash returns live invoices whose vendor mobile hash matches.
func (l *Ledger) ByVendorMobileHash(ctx context.Context, hash string) ([]Invoice, error) {
	return l.store.ByVendorMobileHash(ctx, hash)
}

// =============================================================================
// INTERNALS
// =============================================================================

// load fetches current state and resolves absence into the right
// precondition error: fully-deleted ids fail InvoiceAlreadyDeleted,
// never-created ids fail InvoiceNotFound.
func (l *Ledger) load(ctx context.Context, mongoID string) (*Invoice, error) {
	inv, err := l.store.Get(ctx, mongoID)
	if err != nil {
		return nil, err
	}
	if inv != nil {
		return inv, nil
	}
	history, err := l.store.History(ctx, mongoID)
	if err != nil {
		return nil, err
	}
	if n := len(history); n > 0 && history[n-1].FullyDeleted() {
		return nil, errFor(CodeAlreadyDeleted, mongoID)
	}
	return nil, errFor(CodeNotFound, mongoID)
}

// guardForward enforces the preconditions shared by every forward
// transition: acknowledgment first, and no terminal branch already taken.
// Paid is checked per-operation because its meaning differs (pay repeats
// vs. confirm prerequisite).
func guardForward(inv *Invoice) error {
	if !inv.Ack {
		return errFor(CodeNotAcknowledged, inv.MongoID)
	}
	if inv.Rejected {
		return errFor(CodeRejected, inv.MongoID)
	}
	if inv.Voided {
		return errFor(CodeVoided, inv.MongoID)
	}
	return nil
}

// commit stamps the audit fields on the new version and applies it.
func (l *Ledger) commit(ctx context.Context, prev Invoice, next Invoice, action Action, txnHash string, events ...TrackingEvent) (string, error) {
	next.Action = action
	next.TxnHash = txnHash
	next.PreviousInvoiceHash = ContentHash(prev)
	next.Version = prev.Version + 1
	next.Timestamp = time.Now().UTC()

	if err := l.store.Apply(ctx, next, events...); err != nil {
		return "", err
	}
	l.accept(action, next.MongoID, next.Version)
	return next.MongoID, nil
}

func (l *Ledger) accept(action Action, mongoID string, version int) {
	l.log.Info().
		Str("mongo_id", mongoID).
		Str("action", string(action)).
		Int("version", version).
		Msg("invoice mutation applied")
}

func (l *Ledger) deny(action Action, mongoID string, err error) error {
	l.log.Warn().
		Str("mongo_id", mongoID).
		Str("action", string(action)).
		Int("code", int(CodeOf(err))).
		Msg("invoice mutation denied")
	return err
}
