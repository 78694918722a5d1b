/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Invoice records
  themselves travel as the canonical invoice.Invoice document (it is
  already the wire format the stores persist); the types here cover the
  request bodies and the thin response wrappers around it.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers returned to clients

VALIDATION:
  Validation is done by the invoice package, not in DTOs. DTOs are pure
  data carriers; handlers translate them and pass them on.

SEE ALSO:
  - handlers.go: Uses these types
  - invoice/validate.go: The rules behind every 400
*/
package api

import (
	"github.com/warp/invoice-ledger/invoice"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateInvoiceRequest is the request to register a new invoice. Field
// names match the stored document; lifecycle flags are not accepted
// here, a new invoice always starts unacknowledged.
type CreateInvoiceRequest struct {
	MongoID string `json:"mongo_id"`
	Action  string `json:"action"`
	TxnHash string `json:"txn_hash"`

	VendorID     string `json:"vendor_id"`
	VendorName   string `json:"vendor_name"`
	VendorEmail  string `json:"vendor_email"`
	VendorMobile string `json:"vendor_mobile"`
	ClientFName  string `json:"client_fname"`
	ClientLName  string `json:"client_lname"`
	ClientEmail  string `json:"client_email"`
	ClientMobile string `json:"client_mobile"`

	Currency      string `json:"currency"`
	NetAmt        string `json:"net_amt"`
	Lines         string `json:"lines"`
	FundReception string `json:"fund_reception"`

	CreationDate string `json:"creation_date"`
	DueDate      string `json:"due_date"`
}

// Invoice converts the request into a domain record.
func (r CreateInvoiceRequest) Invoice() invoice.Invoice {
	return invoice.Invoice{
		MongoID:       r.MongoID,
		Action:        invoice.Action(r.Action),
		TxnHash:       r.TxnHash,
		VendorID:      r.VendorID,
		VendorName:    r.VendorName,
		VendorEmail:   r.VendorEmail,
		VendorMobile:  r.VendorMobile,
		ClientFName:   r.ClientFName,
		ClientLName:   r.ClientLName,
		ClientEmail:   r.ClientEmail,
		ClientMobile:  r.ClientMobile,
		Currency:      r.Currency,
		NetAmt:        r.NetAmt,
		Lines:         r.Lines,
		FundReception: invoice.FundReception(r.FundReception),
		CreationDate:  r.CreationDate,
		DueDate:       r.DueDate,
	}
}

// ActionRequest is the common body of the lifecycle mutation endpoints.
// The invoice id comes from the URL.
type ActionRequest struct {
	Action  string `json:"action"`
	TxnHash string `json:"txn_hash"`
}

// FinanceRequest is the body of the finance endpoint.
type FinanceRequest struct {
	ActionRequest
	FinanceID string `json:"finance_id"`
}

// TrackingRequest is the body of the tracking endpoint, mirroring what
// the mail provider reports.
type TrackingRequest struct {
	Subject  string `json:"subject"`
	Status   string `json:"status"`
	MsgID    string `json:"msg_id"`
	APIKeyID string `json:"api_key_id"`
	Event    string `json:"event"`
	To       string `json:"to"`
}

// Track converts the request into the domain snapshot.
func (r TrackingRequest) Track() invoice.Track {
	return invoice.Track{
		Subject:  r.Subject,
		Status:   r.Status,
		MsgID:    r.MsgID,
		APIKeyID: r.APIKeyID,
		Event:    r.Event,
		To:       r.To,
	}
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// MutationResponse acknowledges an accepted mutation.
type MutationResponse struct {
	MongoID string `json:"mongo_id"`
	Status  string `json:"status,omitempty"`
}

// CountResponse carries the live-set size.
type CountResponse struct {
	Count int `json:"count"`
}

// ErrorResponse is the uniform error body. Code is the numeric domain
// code (1xxx precondition, 2xxx already-in-state, 3xxx validation) or 0
// for transport/internal failures.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   int    `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}
