package vouchers

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// TranslatePayment maps a payment voucher to a balanced journal draft:
// one credit line on the treasury account for the full amount, one debit
// line per allocation. Pure with respect to the draft; settling linked
// bills is returned as instructions, not journal lines.
func TranslatePayment(v PaymentVoucher) (journals.EntryDraft, []Settlement, error) {
	total := decimal.Zero
	positive := false
	for _, alloc := range v.Allocations {
		if alloc.Amount.IsPositive() {
			positive = true
		}
		total = total.Add(alloc.Amount)
	}
	if !positive {
		return journals.EntryDraft{}, nil, shared.ErrMissingAllocation
	}
	if !shared.BalancesWithin(total, v.Amount) {
		return journals.EntryDraft{}, nil, shared.ErrUnbalancedAllocations
	}

	draft := journals.EntryDraft{
		Number:       "JE-PV-" + v.Number,
		Date:         v.Date,
		Description:  fmt.Sprintf("Payment Voucher %s - %s", v.Number, v.Payee),
		SourceModule: "VOUCHER:PAYMENT",
		SourceID:     v.ID,
	}
	for _, alloc := range v.Allocations {
		memo := alloc.Description
		if memo == "" {
			memo = fmt.Sprintf("Payment Voucher %s to %s", v.Number, v.Payee)
		}
		draft.Lines = append(draft.Lines, journals.LineDraft{
			AccountID: alloc.AccountID,
			Debit:     alloc.Amount,
			Memo:      memo,
		})
	}
	draft.Lines = append(draft.Lines, journals.LineDraft{
		AccountID: v.CashBankAccountID,
		Credit:    v.Amount,
		Memo:      fmt.Sprintf("Payment Voucher %s", v.Number),
	})

	return draft, settlementsFor(v.ID, v.LinkedBills), nil
}

// TranslateReceipt maps a receipt voucher to a balanced journal draft:
// debit the treasury account, credit the customer's receivable account,
// both for the full amount. Linked invoices become settlement
// instructions applied after the entry posts. An allocation total below
// the voucher amount is valid; the remainder stays an unapplied customer
// credit in the receivable balance.
func TranslateReceipt(v ReceiptVoucher, customerName string, receivableAccountID int64) (journals.EntryDraft, []Settlement, error) {
	allocated := decimal.Zero
	for _, alloc := range v.LinkedInvoices {
		allocated = allocated.Add(alloc.Amount)
	}
	if allocated.Sub(v.Amount).GreaterThan(shared.BalanceEpsilon) {
		return journals.EntryDraft{}, nil, shared.ErrUnbalancedAllocations
	}

	draft := journals.EntryDraft{
		Number:       "JE-RV-" + v.Number,
		Date:         v.Date,
		Description:  fmt.Sprintf("Receipt Voucher %s - %s", v.Number, customerName),
		SourceModule: "VOUCHER:RECEIPT",
		SourceID:     v.ID,
		Lines: []journals.LineDraft{
			{
				AccountID: v.CashBankAccountID,
				Debit:     v.Amount,
				Memo:      fmt.Sprintf("Receipt Voucher %s from %s", v.Number, customerName),
			},
			{
				AccountID: receivableAccountID,
				Credit:    v.Amount,
				Memo:      fmt.Sprintf("Receipt Voucher %s", v.Number),
			},
		},
	}

	return draft, settlementsFor(v.ID, v.LinkedInvoices), nil
}

func settlementsFor(voucherID uuid.UUID, allocations []InvoiceAllocation) []Settlement {
	var out []Settlement
	for _, alloc := range allocations {
		if !alloc.Amount.IsPositive() {
			continue
		}
		out = append(out, Settlement{VoucherID: voucherID, InvoiceID: alloc.InvoiceID, Amount: alloc.Amount})
	}
	return out
}
