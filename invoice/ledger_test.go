package invoice_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/invoice-ledger/invoice"
	"github.com/warp/invoice-ledger/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	testID    = "64b1f0a2c3d4e5f601234567"
	testLines = `{"schema":1,"items":[{"description":"Consulting","quantity":"2","unit_price":"150.00","amount":"300.00"}]}`
)

// txn returns a distinct well-formed settlement hash per sequence number.
func txn(n int) string {
	return fmt.Sprintf("%064x", n)
}

func newTestLedger(t *testing.T) (*invoice.Ledger, *memory.Store) {
	t.Helper()
	store := memory.New()
	return invoice.NewLedger(store), store
}

func testInvoice(id string) invoice.Invoice {
	return invoice.Invoice{
		MongoID:       id,
		Action:        invoice.ActionCreate,
		TxnHash:       txn(1),
		VendorID:      "vend-001",
		VendorName:    "Acme Supplies Ltd",
		VendorEmail:   "billing@acme.example",
		VendorMobile:  "+442079460958",
		ClientFName:   "Dana",
		ClientLName:   "Whitfield",
		ClientEmail:   "dana@client.example",
		ClientMobile:  "+14155550123",
		Currency:      "USD",
		NetAmt:        "300.00",
		Lines:         testLines,
		FundReception: invoice.FundBankTransfer,
		CreationDate:  "2026-03-01T09:00:00Z",
		DueDate:       "2026-04-01T09:00:00Z",
	}
}

func mustCreate(t *testing.T, ledger *invoice.Ledger, id string) {
	t.Helper()
	_, err := ledger.Create(context.Background(), testInvoice(id))
	require.NoError(t, err)
}

func actionReq(id string, action invoice.Action, n int) invoice.ActionRequest {
	return invoice.ActionRequest{MongoID: id, Action: action, TxnHash: txn(n)}
}

// =============================================================================
// CREATION
// =============================================================================

func TestLedger_Create_RoundTrip(t *testing.T) {
	// GIVEN: An empty ledger
	// WHEN: Creating a valid invoice
	// THEN: The stored record is normalized to a fresh, unacknowledged state

	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	input := testInvoice(testID)
	input.Ack = true // caller-supplied flags must be ignored
	input.Paid = true

	id, err := ledger.Create(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, testID, id)

	got, err := ledger.Get(ctx, testID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Invoice", got.InvType)
	assert.False(t, got.Ack)
	assert.False(t, got.Paid)
	assert.Equal(t, "created", got.Status())
	assert.Equal(t, 1, got.Version)
	assert.Empty(t, got.PreviousInvoiceHash)
	assert.Equal(t, invoice.ActionCreate, got.Action)
	assert.Equal(t, []string{}, got.FinancingDetails)
	assert.Equal(t, invoice.EmailHash("billing@acme.example"), got.VendorEmailHash)
	assert.Equal(t, invoice.MobileHash("+442079460958"), got.VendorMobileHash)

	count, err := ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLedger_Create_Duplicate_Rejected(t *testing.T) {
	// GIVEN: A live invoice
	// WHEN: Creating the same id again
	// THEN: InvoiceAlreadyExists, and the original record is untouched

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	mustCreate(t, ledger, testID)

	_, err := ledger.Create(ctx, testInvoice(testID))
	assert.ErrorIs(t, err, invoice.ErrInvoiceAlreadyExists)

	count, err := ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLedger_Create_InvalidClientEmail_NothingStored(t *testing.T) {
	// GIVEN: An invoice payload with a malformed client email
	// WHEN: Creating it
	// THEN: InvalidClientEmail, and no trace of the id exists anywhere

	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	input := testInvoice(testID)
	input.ClientEmail = "not-an-email"

	_, err := ledger.Create(ctx, input)
	assert.ErrorIs(t, err, invoice.ErrInvalidClientEmail)
	assert.True(t, invoice.IsValidation(err))

	got, err := ledger.Get(ctx, testID)
	require.NoError(t, err)
	assert.Nil(t, got)

	count, err := ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = ledger.History(ctx, testID)
	assert.ErrorIs(t, err, invoice.ErrInvoiceNotFound)
}

// =============================================================================
// LIFECYCLE TRANSITIONS
// =============================================================================

func TestLedger_FullLifecycle_HashChainVerifies(t *testing.T) {
	// GIVEN: A created invoice
	// WHEN: ack -> finance -> pay -> confirm-payment
	// THEN: Flags accumulate, version counts up, and every history entry
	//       links to its predecessor by content hash

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	mustCreate(t, ledger, testID)

	_, err := ledger.Acknowledge(ctx, actionReq(testID, invoice.ActionAck, 2))
	require.NoError(t, err)

	_, err = ledger.Finance(ctx, invoice.FinanceRequest{
		ActionRequest: actionReq(testID, invoice.ActionFinance, 3),
		FinanceID:     "aaaaaaaaaaaaaaaaaaaaaaaa",
	})
	require.NoError(t, err)

	_, err = ledger.Pay(ctx, actionReq(testID, invoice.ActionPaid, 4))
	require.NoError(t, err)

	_, err = ledger.ConfirmPayment(ctx, actionReq(testID, invoice.ActionPaymentConfirmation, 5))
	require.NoError(t, err)

	got, err := ledger.Get(ctx, testID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Ack)
	assert.True(t, got.Finance)
	assert.True(t, got.Paid)
	assert.True(t, got.PaymentConfirmation)
	assert.Equal(t, "payment_confirmed", got.Status())
	assert.Equal(t, 5, got.Version)
	assert.Equal(t, txn(5), got.TxnHash)

	history, err := ledger.History(ctx, testID)
	require.NoError(t, err)
	require.Len(t, history, 5)

	assert.Empty(t, history[0].PreviousInvoiceHash)
	for i := 1; i < len(history); i++ {
		assert.Equal(t, i+1, history[i].Version)
		assert.Equal(t, invoice.ContentHash(history[i-1]), history[i].PreviousInvoiceHash,
			"version %d must link to version %d", i+1, i)
	}
}

func TestLedger_ForwardTransitions_RequireAck(t *testing.T) {
	// GIVEN: A created but unacknowledged invoice
	// WHEN: Attempting every post-ack transition
	// THEN: Each fails InvoiceNotAcknowledged

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	mustCreate(t, ledger, testID)

	attempts := []struct {
		name string
		run  func() error
	}{
		{"finance", func() error {
			_, err := ledger.Finance(ctx, invoice.FinanceRequest{
				ActionRequest: actionReq(testID, invoice.ActionFinance, 2),
				FinanceID:     "aaaaaaaaaaaaaaaaaaaaaaaa",
			})
			return err
		}},
		{"pay", func() error {
			_, err := ledger.Pay(ctx, actionReq(testID, invoice.ActionPaid, 2))
			return err
		}},
		{"reject", func() error {
			_, err := ledger.Reject(ctx, actionReq(testID, invoice.ActionReject, 2))
			return err
		}},
		{"void", func() error {
			_, err := ledger.Void(ctx, actionReq(testID, invoice.ActionVoid, 2))
			return err
		}},
		{"confirm", func() error {
			_, err := ledger.ConfirmPayment(ctx, actionReq(testID, invoice.ActionPaymentConfirmation, 2))
			return err
		}},
	}
	for _, attempt := range attempts {
		t.Run(attempt.name, func(t *testing.T) {
			assert.ErrorIs(t, attempt.run(), invoice.ErrInvoiceNotAcknowledged)
		})
	}

	// State must be untouched: still version 1
	got, err := ledger.Get(ctx, testID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
}

func TestLedger_Acknowledge_Repeat_Signalled(t *testing.T) {
	// GIVEN: An acknowledged invoice
	// WHEN: Acknowledging again
	// THEN: InvoiceAcknowledged (already-in-state, not a hard failure)

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	mustCreate(t, ledger, testID)

	_, err := ledger.Acknowledge(ctx, actionReq(testID, invoice.ActionAck, 2))
	require.NoError(t, err)

	_, err = ledger.Acknowledge(ctx, actionReq(testID, invoice.ActionAck, 3))
	assert.ErrorIs(t, err, invoice.ErrInvoiceAcknowledged)
	assert.True(t, invoice.IsAlreadyInState(err))
}

func TestLedger_Acknowledge_Unknown_NotFound(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Acknowledge(context.Background(),
		actionReq("ffffffffffffffffffffffff", invoice.ActionAck, 2))
	assert.ErrorIs(t, err, invoice.ErrInvoiceNotFound)
}

func TestLedger_TerminalBranches_MutuallyExclusive(t *testing.T) {
	// GIVEN: A rejected invoice
	// WHEN: Attempting pay / void / finance
	// THEN: Each fails InvoiceRejected, naming the blocking state

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	mustCreate(t, ledger, testID)

	_, err := ledger.Acknowledge(ctx, actionReq(testID, invoice.ActionAck, 2))
	require.NoError(t, err)
	_, err = ledger.Reject(ctx, actionReq(testID, invoice.ActionReject, 3))
	require.NoError(t, err)

	_, err = ledger.Pay(ctx, actionReq(testID, invoice.ActionPaid, 4))
	assert.ErrorIs(t, err, invoice.ErrInvoiceRejected)

	_, err = ledger.Void(ctx, actionReq(testID, invoice.ActionVoid, 4))
	assert.ErrorIs(t, err, invoice.ErrInvoiceRejected)

	_, err = ledger.Finance(ctx, invoice.FinanceRequest{
		ActionRequest: actionReq(testID, invoice.ActionFinance, 4),
		FinanceID:     "aaaaaaaaaaaaaaaaaaaaaaaa",
	})
	assert.ErrorIs(t, err, invoice.ErrInvoiceRejected)

	got, err := ledger.Get(ctx, testID)
	require.NoError(t, err)
	assert.True(t, got.Rejected)
	assert.False(t, got.Paid)
	assert.False(t, got.Voided)
}

func TestLedger_Void_AfterPaid_Rejected(t *testing.T) {
	// GIVEN: A paid invoice
	// WHEN: Voiding (or rejecting) it
	// THEN: InvoicePaid blocks both

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	mustCreate(t, ledger, testID)

	_, err := ledger.Acknowledge(ctx, actionReq(testID, invoice.ActionAck, 2))
	require.NoError(t, err)
	_, err = ledger.Pay(ctx, actionReq(testID, invoice.ActionPaid, 3))
	require.NoError(t, err)

	_, err = ledger.Void(ctx, actionReq(testID, invoice.ActionVoid, 4))
	assert.ErrorIs(t, err, invoice.ErrInvoicePaid)

	_, err = ledger.Reject(ctx, actionReq(testID, invoice.ActionReject, 4))
	assert.ErrorIs(t, err, invoice.ErrInvoicePaid)
}

func TestLedger_ConfirmPayment_RequiresPaid(t *testing.T) {
	// GIVEN: An acknowledged but unpaid invoice
	// WHEN: Confirming payment
	// THEN: InvoicePaid signals the missing prerequisite

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	mustCreate(t, ledger, testID)

	_, err := ledger.Acknowledge(ctx, actionReq(testID, invoice.ActionAck, 2))
	require.NoError(t, err)

	_, err = ledger.ConfirmPayment(ctx, actionReq(testID, invoice.ActionPaymentConfirmation, 3))
	assert.ErrorIs(t, err, invoice.ErrInvoicePaid)
}

func TestLedger_ConfirmPayment_Repeat_Signalled(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	mustCreate(t, ledger, testID)

	_, err := ledger.Acknowledge(ctx, actionReq(testID, invoice.ActionAck, 2))
	require.NoError(t, err)
	_, err = ledger.Pay(ctx, actionReq(testID, invoice.ActionPaid, 3))
	require.NoError(t, err)
	_, err = ledger.ConfirmPayment(ctx, actionReq(testID, invoice.ActionPaymentConfirmation, 4))
	require.NoError(t, err)

	_, err = ledger.ConfirmPayment(ctx, actionReq(testID, invoice.ActionPaymentConfirmation, 5))
	assert.ErrorIs(t, err, invoice.ErrInvoicePaymentConfirmed)
}

// =============================================================================
// FINANCING
// =============================================================================

func TestLedger_Finance_RepeatableWithDistinctIDs(t *testing.T) {
	// GIVEN: An acknowledged invoice
	// WHEN: Financing twice with distinct finance ids
	// THEN: Both amendments are recorded in order

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	mustCreate(t, ledger, testID)

	_, err := ledger.Acknowledge(ctx, actionReq(testID, invoice.ActionAck, 2))
	require.NoError(t, err)

	_, err = ledger.Finance(ctx, invoice.FinanceRequest{
		ActionRequest: actionReq(testID, invoice.ActionFinance, 3),
		FinanceID:     "aaaaaaaaaaaaaaaaaaaaaaaa",
	})
	require.NoError(t, err)

	_, err = ledger.Finance(ctx, invoice.FinanceRequest{
		ActionRequest: actionReq(testID, invoice.ActionFinance, 4),
		FinanceID:     "bbbbbbbbbbbbbbbbbbbbbbbb",
	})
	require.NoError(t, err)

	got, err := ledger.Get(ctx, testID)
	require.NoError(t, err)
	assert.True(t, got.Finance)
	assert.Equal(t, []string{"aaaaaaaaaaaaaaaaaaaaaaaa", "bbbbbbbbbbbbbbbbbbbbbbbb"},
		got.FinancingDetails)
}

func TestLedger_Finance_DuplicateID_Rejected(t *testing.T) {
	// GIVEN: An invoice already financed under a given id
	// WHEN: Presenting the same finance id again
	// THEN: InvoiceFinanced, and the amendment list does not grow

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	mustCreate(t, ledger, testID)

	_, err := ledger.Acknowledge(ctx, actionReq(testID, invoice.ActionAck, 2))
	require.NoError(t, err)

	req := invoice.FinanceRequest{
		ActionRequest: actionReq(testID, invoice.ActionFinance, 3),
		FinanceID:     "aaaaaaaaaaaaaaaaaaaaaaaa",
	}
	_, err = ledger.Finance(ctx, req)
	require.NoError(t, err)

	req.TxnHash = txn(4)
	_, err = ledger.Finance(ctx, req)
	assert.ErrorIs(t, err, invoice.ErrInvoiceFinanced)

	got, err := ledger.Get(ctx, testID)
	require.NoError(t, err)
	assert.Len(t, got.FinancingDetails, 1)
}

// =============================================================================
// INDEX QUERIES
// =============================================================================

func TestLedger_ByTxnHash_FollowsRotation(t *testing.T) {
	// GIVEN: An invoice whose settlement hash rotated on acknowledgment
	// WHEN: Querying old and new hashes
	// THEN: Only the current hash resolves

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	mustCreate(t, ledger, testID)

	_, err := ledger.Acknowledge(ctx, actionReq(testID, invoice.ActionAck, 2))
	require.NoError(t, err)

	old, err := ledger.ByTxnHash(ctx, txn(1))
	require.NoError(t, err)
	assert.Empty(t, old)

	current, err := ledger.ByTxnHash(ctx, txn(2))
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, testID, current[0].MongoID)
}

func TestLedger_ByVendorEmailHash_GroupsInvoices(t *testing.T) {
	// GIVEN: Two invoices from the same vendor and one from another
	// WHEN: Querying by the shared vendor email hash
	// THEN: Exactly the two, in creation order

	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	first := "64b1f0a2c3d4e5f601234501"
	second := "64b1f0a2c3d4e5f601234502"
	mustCreate(t, ledger, first)

	other := testInvoice("64b1f0a2c3d4e5f601234503")
	other.VendorEmail = "other@vendor.example"
	_, err := ledger.Create(ctx, other)
	require.NoError(t, err)

	mustCreate(t, ledger, second)

	matches, err := ledger.ByVendorEmailHash(ctx, invoice.EmailHash("billing@acme.example"))
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, first, matches[0].MongoID)
	assert.Equal(t, second, matches[1].MongoID)

	// Unknown hash is an empty result, not an error
	none, err := ledger.ByVendorEmailHash(ctx, invoice.EmailHash("nobody@nowhere.example"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

// =============================================================================
// TRACKING
// =============================================================================

func TestLedger_UpdateTracking_AppendsHistoryAndLog(t *testing.T) {
	// GIVEN: A live invoice
	// WHEN: Recording two delivery events
	// THEN: The snapshot holds the latest, the log holds both, and each
	//       update produced a history version

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	mustCreate(t, ledger, testID)

	_, err := ledger.UpdateTracking(ctx, testID, invoice.Track{
		Subject: "Invoice 64b1...4567", Status: "sent", Event: "delivered",
		To: "dana@client.example",
	})
	require.NoError(t, err)

	_, err = ledger.UpdateTracking(ctx, testID, invoice.Track{
		Subject: "Invoice 64b1...4567", Status: "read", Event: "open",
		To: "dana@client.example",
	})
	require.NoError(t, err)

	got, err := ledger.Get(ctx, testID)
	require.NoError(t, err)
	assert.Equal(t, "open", got.Tracking.Event)
	assert.Equal(t, invoice.ActionTracking, got.Action)
	assert.Equal(t, 3, got.Version)

	events, err := ledger.TrackingHistory(ctx, testID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "delivered", events[0].Track.Event)
	assert.Equal(t, "open", events[1].Track.Event)
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, testID, events[0].MongoID)

	history, err := ledger.History(ctx, testID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestLedger_TrackingHistory_Unknown_NotFound(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.TrackingHistory(context.Background(), "ffffffffffffffffffffffff")
	assert.ErrorIs(t, err, invoice.ErrInvoiceNotFound)
}

// =============================================================================
// SOFT DELETION
// =============================================================================

func TestLedger_SoftDelete_OneSide_StaysLive(t *testing.T) {
	// GIVEN: A live invoice
	// WHEN: The vendor deletes their copy
	// THEN: The record stays live with the side flag and comment recorded

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	mustCreate(t, ledger, testID)

	_, err := ledger.SoftDelete(ctx, testID, invoice.SideSent, "archived by vendor")
	require.NoError(t, err)

	got, err := ledger.Get(ctx, testID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.SentInvoiceDeleted)
	assert.False(t, got.ReceivedInvoiceDeleted)
	assert.Equal(t, "archived by vendor", got.DeletedComments)
	assert.Equal(t, invoice.ActionDelete, got.Action)
	assert.Equal(t, 2, got.Version)

	count, err := ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLedger_SoftDelete_SameSideTwice_Signalled(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	mustCreate(t, ledger, testID)

	_, err := ledger.SoftDelete(ctx, testID, invoice.SideSent, "")
	require.NoError(t, err)

	_, err = ledger.SoftDelete(ctx, testID, invoice.SideSent, "")
	assert.ErrorIs(t, err, invoice.ErrInvoiceAlreadyDeleted)
}

func TestLedger_SoftDelete_BothSides_RetiresRecord(t *testing.T) {
	// GIVEN: An invoice deleted by the vendor
	// WHEN: The client deletes too
	// THEN: The record leaves the live set, indices and count; history is
	//       retained; further mutations fail InvoiceAlreadyDeleted; and the
	//       id may be re-issued by a fresh create

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	mustCreate(t, ledger, testID)

	_, err := ledger.SoftDelete(ctx, testID, invoice.SideSent, "vendor cleanup")
	require.NoError(t, err)
	_, err = ledger.SoftDelete(ctx, testID, invoice.SideReceived, "client cleanup")
	require.NoError(t, err)

	got, err := ledger.Get(ctx, testID)
	require.NoError(t, err)
	assert.Nil(t, got)

	count, err := ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	byEmail, err := ledger.ByVendorEmailHash(ctx, invoice.EmailHash("billing@acme.example"))
	require.NoError(t, err)
	assert.Empty(t, byEmail)

	history, err := ledger.History(ctx, testID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	final := history[2]
	assert.True(t, final.FullyDeleted())
	assert.Equal(t, "vendor cleanup; client cleanup", final.DeletedComments)

	_, err = ledger.Acknowledge(ctx, actionReq(testID, invoice.ActionAck, 2))
	assert.ErrorIs(t, err, invoice.ErrInvoiceAlreadyDeleted)

	// Re-issue
	mustCreate(t, ledger, testID)
	reborn, err := ledger.Get(ctx, testID)
	require.NoError(t, err)
	require.NotNil(t, reborn)
	assert.Equal(t, 1, reborn.Version)
	assert.False(t, reborn.SentInvoiceDeleted)
}

func TestLedger_SoftDelete_UnknownSide_Rejected(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	mustCreate(t, ledger, testID)

	_, err := ledger.SoftDelete(ctx, testID, invoice.DeleteSide("sideways"), "")
	assert.ErrorIs(t, err, invoice.ErrInvalidInvoiceInput)
}

// =============================================================================
// LIST / COUNT
// =============================================================================

func TestLedger_All_InsertionOrderSurvivesUpdates(t *testing.T) {
	// GIVEN: Three invoices created in order, the first one mutated later
	// WHEN: Listing
	// THEN: Order is creation order, not mutation order

	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	ids := []string{
		"64b1f0a2c3d4e5f601234511",
		"64b1f0a2c3d4e5f601234512",
		"64b1f0a2c3d4e5f601234513",
	}
	for _, id := range ids {
		mustCreate(t, ledger, id)
	}

	_, err := ledger.Acknowledge(ctx, actionReq(ids[0], invoice.ActionAck, 9))
	require.NoError(t, err)

	all, err := ledger.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, id := range ids {
		assert.Equal(t, id, all[i].MongoID)
	}

	count, err := ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
