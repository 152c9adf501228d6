package vouchers

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func paymentVoucher() PaymentVoucher {
	return PaymentVoucher{
		ID:                uuid.MustParse("7f1c1d6e-2f59-44b8-9f2a-5a1b2c3d4e5f"),
		Number:            "PV-2026-014",
		Date:              time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		Payee:             "Gulf Office Supplies",
		Amount:            amt("850"),
		Method:            MethodBank,
		CashBankAccountID: 12,
		Allocations: []AllocationLine{
			{AccountID: 61, Description: "Printer paper", Amount: amt("500")},
			{AccountID: 62, Amount: amt("350")},
		},
	}
}

func TestTranslatePaymentProducesBalancedDraft(t *testing.T) {
	v := paymentVoucher()
	draft, settlements, err := TranslatePayment(v)
	require.NoError(t, err)
	require.Empty(t, settlements)

	require.Equal(t, "JE-PV-PV-2026-014", draft.Number)
	require.Equal(t, "VOUCHER:PAYMENT", draft.SourceModule)
	require.Equal(t, v.ID, draft.SourceID)
	require.Len(t, draft.Lines, 3)

	totalDebit, totalCredit := decimal.Zero, decimal.Zero
	for _, line := range draft.Lines {
		totalDebit = totalDebit.Add(line.Debit)
		totalCredit = totalCredit.Add(line.Credit)
	}
	require.True(t, totalDebit.Equal(totalCredit))

	// Allocations debit their accounts, treasury takes the single credit.
	require.Equal(t, int64(61), draft.Lines[0].AccountID)
	require.True(t, draft.Lines[0].Debit.Equal(amt("500")))
	require.Equal(t, int64(12), draft.Lines[2].AccountID)
	require.True(t, draft.Lines[2].Credit.Equal(amt("850")))
}

func TestTranslatePaymentRejectsEmptyAllocations(t *testing.T) {
	v := paymentVoucher()
	v.Allocations = nil
	_, _, err := TranslatePayment(v)
	require.ErrorIs(t, err, shared.ErrMissingAllocation)

	v.Allocations = []AllocationLine{{AccountID: 61, Amount: decimal.Zero}}
	_, _, err = TranslatePayment(v)
	require.ErrorIs(t, err, shared.ErrMissingAllocation)
}

func TestTranslatePaymentRejectsAllocationMismatch(t *testing.T) {
	v := paymentVoucher()
	v.Allocations[1].Amount = amt("300")
	_, _, err := TranslatePayment(v)
	require.ErrorIs(t, err, shared.ErrUnbalancedAllocations)
}

func TestTranslatePaymentToleratesRoundingResidue(t *testing.T) {
	v := paymentVoucher()
	v.Allocations[1].Amount = amt("350.001")
	_, _, err := TranslatePayment(v)
	require.NoError(t, err)
}

func TestTranslatePaymentEmitsBillSettlements(t *testing.T) {
	v := paymentVoucher()
	v.LinkedBills = []InvoiceAllocation{
		{InvoiceID: 301, Amount: amt("500")},
		{InvoiceID: 302, Amount: decimal.Zero},
	}
	_, settlements, err := TranslatePayment(v)
	require.NoError(t, err)
	require.Len(t, settlements, 1)
	require.Equal(t, v.ID, settlements[0].VoucherID)
	require.Equal(t, int64(301), settlements[0].InvoiceID)
}

func receiptVoucher() ReceiptVoucher {
	return ReceiptVoucher{
		ID:                uuid.MustParse("0b9cf8aa-1111-4222-8333-94449b55aa66"),
		Number:            "RV-2026-031",
		Date:              time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		CustomerID:        5,
		Amount:            amt("1200"),
		Method:            MethodCash,
		CashBankAccountID: 11,
		LinkedInvoices: []InvoiceAllocation{
			{InvoiceID: 201, Amount: amt("700")},
			{InvoiceID: 202, Amount: amt("500")},
		},
	}
}

func TestTranslateReceiptDebitsTreasuryCreditsReceivable(t *testing.T) {
	v := receiptVoucher()
	draft, settlements, err := TranslateReceipt(v, "Al Noor Trading", 21)
	require.NoError(t, err)

	require.Equal(t, "JE-RV-RV-2026-031", draft.Number)
	require.Equal(t, "VOUCHER:RECEIPT", draft.SourceModule)
	require.Len(t, draft.Lines, 2)
	require.Equal(t, int64(11), draft.Lines[0].AccountID)
	require.True(t, draft.Lines[0].Debit.Equal(amt("1200")))
	require.Equal(t, int64(21), draft.Lines[1].AccountID)
	require.True(t, draft.Lines[1].Credit.Equal(amt("1200")))

	require.Len(t, settlements, 2)
	require.True(t, settlements[0].Amount.Equal(amt("700")))
	require.True(t, settlements[1].Amount.Equal(amt("500")))
}

func TestTranslateReceiptAllowsUnderAllocation(t *testing.T) {
	// 1200 received, 700 applied: the 500 remainder stays an unapplied
	// credit in the receivable balance.
	v := receiptVoucher()
	v.LinkedInvoices = v.LinkedInvoices[:1]
	draft, settlements, err := TranslateReceipt(v, "Al Noor Trading", 21)
	require.NoError(t, err)
	require.True(t, draft.Lines[1].Credit.Equal(amt("1200")))
	require.Len(t, settlements, 1)
}

func TestTranslateReceiptRejectsOverAllocation(t *testing.T) {
	v := receiptVoucher()
	v.LinkedInvoices = append(v.LinkedInvoices, InvoiceAllocation{InvoiceID: 203, Amount: amt("1")})
	_, _, err := TranslateReceipt(v, "Al Noor Trading", 21)
	require.ErrorIs(t, err, shared.ErrUnbalancedAllocations)
}
