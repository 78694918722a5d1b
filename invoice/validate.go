/*
validate.go - Field-level validation rules

PURPOSE:
  Pure functions checking a proposed invoice or action payload before any
  mutation is applied. Every failure maps onto exactly one 3xxx code; the
  first violated rule wins. Nothing here reads or writes the store, so a
  validation failure can never leave partial state behind.

FORMATS:
  mongo_id     24 hex chars (Mongo ObjectID, externally issued)
  txn_hash     64 hex chars (settlement transaction hash)
  finance_id   24 hex chars (same issuer as mongo_id)
  email        pragmatic RFC-5322 subset
  mobile       E.164: optional '+', 7-15 digits
  currency     ISO-4217 allowlist
  dates        RFC 3339; due_date must not precede creation_date

SEE ALSO:
  - errors.go: the 3xxx code family
  - lines.go: line-item parsing backing InvalidLines/InvalidNetAmount
*/
package invoice

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FORMATS
// =============================================================================

var (
	mongoIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
	txnHashPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	emailPattern   = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)
	mobilePattern  = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

// ISO-4217 codes accepted for settlement.
var validCurrencies = map[string]bool{
	"AED": true, "AUD": true, "BRL": true, "CAD": true, "CHF": true,
	"CNY": true, "CZK": true, "DKK": true, "EUR": true, "GBP": true,
	"HKD": true, "IDR": true, "ILS": true, "INR": true, "JPY": true,
	"KES": true, "KRW": true, "MXN": true, "MYR": true, "NGN": true,
	"NOK": true, "NZD": true, "PHP": true, "PLN": true, "SEK": true,
	"SGD": true, "THB": true, "TRY": true, "USD": true, "ZAR": true,
}

// ValidMongoID reports whether id matches the accepted identifier format.
func ValidMongoID(id string) bool { return mongoIDPattern.MatchString(id) }

// ValidTxnHash reports whether h matches the accepted transaction-hash
// format.
func ValidTxnHash(h string) bool { return txnHashPattern.MatchString(h) }

// =============================================================================
// ACTION PAYLOADS
// =============================================================================

// ActionRequest is the common payload of all lifecycle mutations.
type ActionRequest struct {
	MongoID string
	Action  Action
	TxnHash string
}

// FinanceRequest extends ActionRequest with the financing reference.
type FinanceRequest struct {
	ActionRequest
	FinanceID string
}

// ValidateActionRequest checks the common mutation payload.
func ValidateActionRequest(req ActionRequest) error {
	if !ValidMongoID(req.MongoID) {
		return errDetail(CodeInvalidMongoID, req.MongoID)
	}
	if !req.Action.Known() {
		return errDetail(CodeInvalidAction, string(req.Action))
	}
	if !ValidTxnHash(req.TxnHash) {
		return errFor(CodeInvalidTxnHash, req.MongoID)
	}
	return nil
}

// ValidateFinanceRequest checks the finance payload.
func ValidateFinanceRequest(req FinanceRequest) error {
	if err := ValidateActionRequest(req.ActionRequest); err != nil {
		return err
	}
	if !mongoIDPattern.MatchString(req.FinanceID) {
		return errFor(CodeInvalidFinanceID, req.MongoID)
	}
	return nil
}

// ValidateTrack checks a tracking payload. Only the event keyword is
// mandatory; the remaining fields mirror whatever the mail provider sent.
func ValidateTrack(mongoID string, tr Track) error {
	if !ValidMongoID(mongoID) {
		return errDetail(CodeInvalidMongoID, mongoID)
	}
	if tr.Event == "" {
		return errDetail(CodeInvalidInvoiceInput, "tracking event is required")
	}
	return nil
}

// =============================================================================
// FULL-RECORD VALIDATION
// =============================================================================

// ValidateCreate checks a proposed invoice record in full. Rules are
// evaluated in a fixed order so failures are deterministic.
func ValidateCreate(inv Invoice) error {
	if !ValidMongoID(inv.MongoID) {
		return errDetail(CodeInvalidMongoID, inv.MongoID)
	}
	if !inv.Action.Known() {
		return errDetail(CodeInvalidAction, string(inv.Action))
	}
	if !ValidTxnHash(inv.TxnHash) {
		return errFor(CodeInvalidTxnHash, inv.MongoID)
	}
	if inv.VendorID == "" || inv.VendorName == "" ||
		inv.ClientFName == "" || inv.ClientLName == "" {
		return errFor(CodeInvalidInvoiceInput, inv.MongoID)
	}
	if !emailPattern.MatchString(inv.VendorEmail) {
		return errFor(CodeInvalidVendorEmail, inv.MongoID)
	}
	if !emailPattern.MatchString(inv.ClientEmail) {
		return errFor(CodeInvalidClientEmail, inv.MongoID)
	}
	if !mobilePattern.MatchString(inv.VendorMobile) {
		return errFor(CodeInvalidVendorMobile, inv.MongoID)
	}
	if !mobilePattern.MatchString(inv.ClientMobile) {
		return errFor(CodeInvalidClientMobile, inv.MongoID)
	}
	if !validCurrencies[inv.Currency] {
		return errFor(CodeInvalidCurrency, inv.MongoID)
	}
	if !validFundReceptions[inv.FundReception] {
		return errFor(CodeInvalidFundReception, inv.MongoID)
	}

	lines, err := ParseLines(inv.Lines)
	if err != nil {
		return &Error{Code: CodeInvalidLines, MongoID: inv.MongoID, Detail: err.Error()}
	}
	net, err := decimal.NewFromString(inv.NetAmt)
	if err != nil || !net.IsPositive() {
		return errFor(CodeInvalidNetAmount, inv.MongoID)
	}
	if !net.Equal(lines.Total()) {
		return &Error{Code: CodeInvalidNetAmount, MongoID: inv.MongoID,
			Detail: "net_amt does not equal line total"}
	}

	created, err := time.Parse(time.RFC3339, inv.CreationDate)
	if err != nil {
		return &Error{Code: CodeInvalidInvoiceInput, MongoID: inv.MongoID,
			Detail: "creation_date is not RFC 3339"}
	}
	due, err := time.Parse(time.RFC3339, inv.DueDate)
	if err != nil || due.Before(created) {
		return errFor(CodeInvalidDueDate, inv.MongoID)
	}
	return nil
}
