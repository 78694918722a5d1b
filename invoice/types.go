/*
Package invoice is the authoritative ledger for invoice records.

PURPOSE:
  This package contains the core domain model and algorithms for the invoice
  lifecycle: the typed Invoice record, the lifecycle state machine, field
  validation, content hashing, and the storage contract. Everything that can
  change an invoice is funneled through the Ledger in this package.

KEY CONCEPTS IN THIS FILE (types.go):
  - Invoice: the ledgered financial document and its lifecycle state
  - Track / TrackingEvent: delivery-notification metadata, independent of
    the lifecycle
  - Action: the keyword recorded on each accepted mutation
  - FundReception / DeleteSide: closed enumerations

DESIGN PRINCIPLES:
  1. Immutability: historical versions are never modified, each mutation
     produces a new version linked by content hash
  2. Precision: monetary values stay decimal strings end to end and are
     checked with decimal.Decimal, never floats
  3. Explicit state: lifecycle is a set of monotonic flags with guarded
     transitions, not free-form status strings
  4. Injection: the Ledger owns a Store instance; there is no ambient
     global ledger

SEE ALSO:
  - ledger.go: lifecycle state machine and operations
  - validate.go: field-level validation rules
  - hash.go: content hash chain and index hashes
  - store.go: persistence contract
*/
package invoice

import (
	"time"
)

// =============================================================================
// ACTIONS - Keyword recorded on every accepted mutation
// =============================================================================

type Action string

const (
	ActionCreate              Action = "create"
	ActionAck                 Action = "ack"
	ActionFinance             Action = "finance"
	ActionPaid                Action = "paid"
	ActionReject              Action = "reject"
	ActionVoid                Action = "void"
	ActionPaymentConfirmation Action = "payment_confirmation"
	ActionTracking            Action = "tracking"
	ActionDelete              Action = "delete"
)

var knownActions = map[Action]bool{
	ActionCreate:              true,
	ActionAck:                 true,
	ActionFinance:             true,
	ActionPaid:                true,
	ActionReject:              true,
	ActionVoid:                true,
	ActionPaymentConfirmation: true,
	ActionTracking:            true,
	ActionDelete:              true,
}

// Known reports whether a is one of the accepted action keywords.
func (a Action) Known() bool { return knownActions[a] }

// =============================================================================
// FUND RECEPTION - How settlement funds are received
// =============================================================================

type FundReception string

const (
	FundBankTransfer  FundReception = "bank_transfer"
	FundStellarWallet FundReception = "stellar_wallet"
	FundCheque        FundReception = "cheque"
	FundCash          FundReception = "cash"
)

var validFundReceptions = map[FundReception]bool{
	FundBankTransfer:  true,
	FundStellarWallet: true,
	FundCheque:        true,
	FundCash:          true,
}

// =============================================================================
// DELETE SIDE - Per-party visibility marker
// =============================================================================

// DeleteSide identifies which party's view of the invoice is soft-deleted.
// Soft deletion is visibility, not destruction: only when both sides have
// deleted does the record leave the live set (history is retained).
type DeleteSide string

const (
	SideSent     DeleteSide = "sent"     // vendor's copy
	SideReceived DeleteSide = "received" // client's copy
)

// Valid reports whether s is a recognized side marker.
func (s DeleteSide) Valid() bool { return s == SideSent || s == SideReceived }

// =============================================================================
// INVOICE - The central entity
// =============================================================================

// Invoice is the current state of a ledgered invoice. MongoID is the
// externally-issued identity; this package never generates identifiers.
//
// INVARIANTS (enforced by the Ledger, assumed everywhere else):
//   - At most one of Paid, Rejected, Voided is true.
//   - Ack is true before Finance, Paid, Rejected, Voided or
//     PaymentConfirmation can be.
//   - VendorEmailHash / VendorMobileHash are computed once at creation and
//     never change.
//   - PreviousInvoiceHash of version n is the content hash of version n-1;
//     version 1 carries the empty sentinel.
type Invoice struct {
	MongoID string `json:"mongo_id"`
	InvType string `json:"inv_type"`

	// Parties
	VendorID         string `json:"vendor_id"`
	VendorName       string `json:"vendor_name"`
	VendorEmail      string `json:"vendor_email"`
	VendorMobile     string `json:"vendor_mobile"`
	VendorEmailHash  string `json:"vendor_email_hash"`
	VendorMobileHash string `json:"vendor_mobile_hash"`
	ClientFName      string `json:"client_fname"`
	ClientLName      string `json:"client_lname"`
	ClientEmail      string `json:"client_email"`
	ClientMobile     string `json:"client_mobile"`

	// Financials
	Currency         string        `json:"currency"`
	NetAmt           string        `json:"net_amt"` // decimal-as-string
	Lines            string        `json:"lines"`   // serialized LineItems
	FundReception    FundReception `json:"fund_reception"`
	FinancingDetails []string      `json:"financing_details"`

	// Dates (RFC 3339)
	CreationDate string `json:"creation_date"`
	DueDate      string `json:"due_date"`

	// Lifecycle flags
	Ack                 bool `json:"ack"`
	Finance             bool `json:"finance"`
	Paid                bool `json:"paid"`
	PaymentConfirmation bool `json:"payment_confirmation"`
	Rejected            bool `json:"rejected"`
	Voided              bool `json:"voided"`

	// Soft-delete markers (visibility, not destruction)
	SentInvoiceDeleted     bool   `json:"sent_invoice_deleted"`
	ReceivedInvoiceDeleted bool   `json:"received_invoice_deleted"`
	DeletedComments        string `json:"deleted_comments"`

	// Audit
	Action              Action    `json:"action"`
	TxnHash             string    `json:"txn_hash"`
	Version             int       `json:"version"`
	PreviousInvoiceHash string    `json:"previous_invoice_hash"`
	Timestamp           time.Time `json:"timestamp"`

	// Most recent delivery-tracking snapshot; the full log lives in the
	// tracking log, see Ledger.TrackingHistory.
	Tracking Track `json:"tracking"`
}

// Terminal reports whether the invoice has entered a terminal branch.
// PaymentConfirmed is reached through Paid, so checking the three flags
// is sufficient.
func (inv *Invoice) Terminal() bool {
	return inv.Paid || inv.Rejected || inv.Voided
}

// FullyDeleted reports whether both parties have soft-deleted the record.
// A fully deleted invoice accepts no further mutations and is absent from
// live queries.
func (inv *Invoice) FullyDeleted() bool {
	return inv.SentInvoiceDeleted && inv.ReceivedInvoiceDeleted
}

// Status derives a human-readable lifecycle state from the flags.
func (inv *Invoice) Status() string {
	switch {
	case inv.Voided:
		return "voided"
	case inv.Rejected:
		return "rejected"
	case inv.PaymentConfirmation:
		return "payment_confirmed"
	case inv.Paid:
		return "paid"
	case inv.Finance:
		return "financed"
	case inv.Ack:
		return "acknowledged"
	default:
		return "created"
	}
}

// Clone returns a deep copy. FinancingDetails is the only reference-typed
// field that mutates over the lifecycle.
func (inv Invoice) Clone() Invoice {
	out := inv
	if inv.FinancingDetails != nil {
		out.FinancingDetails = append([]string(nil), inv.FinancingDetails...)
	}
	return out
}

// =============================================================================
// TRACKING - Delivery/notification metadata
// =============================================================================

// Track is a delivery-notification snapshot. Immutable once recorded;
// superseded, never edited.
type Track struct {
	Subject  string `json:"subject"`
	Status   string `json:"status"`
	MsgID    string `json:"msg_id"`
	APIKeyID string `json:"api_key_id"`
	Event    string `json:"event"`
	To       string `json:"to"`
}

// TrackingEvent is one entry of the append-only tracking log.
type TrackingEvent struct {
	ID         string    `json:"id"` // uuid, assigned by the ledger
	MongoID    string    `json:"mongo_id"`
	RecordedAt time.Time `json:"recorded_at"`
	Track      Track     `json:"track"`
}
