/*
errors.go - Stable numeric error taxonomy for the invoice ledger

PURPOSE:
  Every failure surfaced by this package carries a stable numeric code so
  callers (and external contract clients) can branch without string
  matching. Codes are grouped by family:

    1001-1004  existence / precondition errors - the operation cannot
               proceed given current ledger state
    2001-2006  already-in-state signals - the requested status is already
               (or cannot again be) in effect; distinct from hard failures
               so callers can treat them as idempotent no-ops
    3001-3014  input validation errors - raised before any state is touched

USAGE:
  All errors are *Error values. Compare with errors.Is against the
  exported sentinels:

    if errors.Is(err, invoice.ErrInvoiceNotFound) { ... }

  or classify by family:

    if invoice.IsValidation(err) { ... }

SEE ALSO:
  - validate.go: producers of the 3xxx family
  - ledger.go: producers of the 1xxx/2xxx families
*/
package invoice

import (
	"errors"
	"fmt"
)

// =============================================================================
// CODES
// =============================================================================

type Code int

const (
	// Existence / precondition errors
	CodeNotFound        Code = 1001
	CodeAlreadyExists   Code = 1002
	CodeNotAcknowledged Code = 1003
	CodeAlreadyDeleted  Code = 1004

	// Already-in-state signals
	CodeAcknowledged     Code = 2001
	CodeFinanced         Code = 2002
	CodePaid             Code = 2003
	CodeRejected         Code = 2004
	CodeVoided           Code = 2005
	CodePaymentConfirmed Code = 2006

	// Input validation errors
	CodeInvalidInvoiceInput  Code = 3001
	CodeInvalidMongoID       Code = 3002
	CodeInvalidAction        Code = 3003
	CodeInvalidTxnHash       Code = 3004
	CodeInvalidFinanceID     Code = 3005
	CodeInvalidVendorEmail   Code = 3006
	CodeInvalidClientEmail   Code = 3007
	CodeInvalidVendorMobile  Code = 3008
	CodeInvalidClientMobile  Code = 3009
	CodeInvalidCurrency      Code = 3010
	CodeInvalidFundReception Code = 3011
	CodeInvalidLines         Code = 3012
	CodeInvalidNetAmount     Code = 3013
	CodeInvalidDueDate       Code = 3014
)

var codeNames = map[Code]string{
	CodeNotFound:             "invoice not found",
	CodeAlreadyExists:        "invoice already exists",
	CodeNotAcknowledged:      "invoice not acknowledged",
	CodeAlreadyDeleted:       "invoice already deleted",
	CodeAcknowledged:         "invoice acknowledged",
	CodeFinanced:             "invoice financed",
	CodePaid:                 "invoice paid",
	CodeRejected:             "invoice rejected",
	CodeVoided:               "invoice voided",
	CodePaymentConfirmed:     "invoice payment confirmed",
	CodeInvalidInvoiceInput:  "invalid invoice input",
	CodeInvalidMongoID:       "invalid mongo id",
	CodeInvalidAction:        "invalid action",
	CodeInvalidTxnHash:       "invalid txn hash",
	CodeInvalidFinanceID:     "invalid finance id",
	CodeInvalidVendorEmail:   "invalid vendor email",
	CodeInvalidClientEmail:   "invalid client email",
	CodeInvalidVendorMobile:  "invalid vendor mobile",
	CodeInvalidClientMobile:  "invalid client mobile",
	CodeInvalidCurrency:      "invalid currency",
	CodeInvalidFundReception: "invalid fund reception",
	CodeInvalidLines:         "invalid lines",
	CodeInvalidNetAmount:     "invalid net amount",
	CodeInvalidDueDate:       "invalid due date",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("invoice error %d", int(c))
}

// =============================================================================
// ERROR VALUE
// =============================================================================

// Error is the single error type surfaced by this package. Two Errors
// match under errors.Is when their codes are equal, so the exported
// sentinels below double as comparison targets.
type Error struct {
	Code    Code
	MongoID string // subject invoice, when known
	Detail  string // optional extra context
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.MongoID != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.MongoID)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Detail)
	}
	return msg
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// errFor builds an Error bound to an invoice id.
func errFor(code Code, mongoID string) *Error {
	return &Error{Code: code, MongoID: mongoID}
}

// errDetail builds an Error with free-form context.
func errDetail(code Code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

// =============================================================================
// SENTINELS - Use with errors.Is()
// =============================================================================

var (
	ErrInvoiceNotFound        = &Error{Code: CodeNotFound}
	ErrInvoiceAlreadyExists   = &Error{Code: CodeAlreadyExists}
	ErrInvoiceNotAcknowledged = &Error{Code: CodeNotAcknowledged}
	ErrInvoiceAlreadyDeleted  = &Error{Code: CodeAlreadyDeleted}

	ErrInvoiceAcknowledged     = &Error{Code: CodeAcknowledged}
	ErrInvoiceFinanced         = &Error{Code: CodeFinanced}
	ErrInvoicePaid             = &Error{Code: CodePaid}
	ErrInvoiceRejected         = &Error{Code: CodeRejected}
	ErrInvoiceVoided           = &Error{Code: CodeVoided}
	ErrInvoicePaymentConfirmed = &Error{Code: CodePaymentConfirmed}

	ErrInvalidInvoiceInput  = &Error{Code: CodeInvalidInvoiceInput}
	ErrInvalidMongoID       = &Error{Code: CodeInvalidMongoID}
	ErrInvalidAction        = &Error{Code: CodeInvalidAction}
	ErrInvalidTxnHash       = &Error{Code: CodeInvalidTxnHash}
	ErrInvalidFinanceID     = &Error{Code: CodeInvalidFinanceID}
	ErrInvalidVendorEmail   = &Error{Code: CodeInvalidVendorEmail}
	ErrInvalidClientEmail   = &Error{Code: CodeInvalidClientEmail}
	ErrInvalidVendorMobile  = &Error{Code: CodeInvalidVendorMobile}
	ErrInvalidClientMobile  = &Error{Code: CodeInvalidClientMobile}
	ErrInvalidCurrency      = &Error{Code: CodeInvalidCurrency}
	ErrInvalidFundReception = &Error{Code: CodeInvalidFundReception}
	ErrInvalidLines         = &Error{Code: CodeInvalidLines}
	ErrInvalidNetAmount     = &Error{Code: CodeInvalidNetAmount}
	ErrInvalidDueDate       = &Error{Code: CodeInvalidDueDate}
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// CodeOf extracts the numeric code, or 0 for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsNotFound reports whether the error indicates a missing invoice.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInvoiceNotFound)
}

// IsAlreadyInState reports whether the error is an idempotent
// already-in-state signal rather than a hard failure.
func IsAlreadyInState(err error) bool {
	c := CodeOf(err)
	return c >= 2001 && c <= 2006
}

// IsValidation reports whether the error was raised by the validator
// before any state was touched.
func IsValidation(err error) bool {
	c := CodeOf(err)
	return c >= 3001 && c <= 3014
}

// IsPrecondition reports whether the error is an existence or state
// precondition failure.
func IsPrecondition(err error) bool {
	c := CodeOf(err)
	return c >= 1001 && c <= 1004
}
