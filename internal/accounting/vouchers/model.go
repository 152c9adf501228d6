package vouchers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod enumerates how cash moved.
type PaymentMethod string

const (
	MethodCash   PaymentMethod = "CASH"
	MethodBank   PaymentMethod = "BANK"
	MethodCheck  PaymentMethod = "CHECK"
	MethodCard   PaymentMethod = "CARD"
	MethodOthers PaymentMethod = "OTHERS"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBank, MethodCheck, MethodCard, MethodOthers:
		return true
	}
	return false
}

// AllocationLine spreads a payment voucher across expense or liability accounts.
type AllocationLine struct {
	AccountID   int64
	Description string
	Amount      decimal.Decimal
}

// InvoiceAllocation earmarks part of a voucher against an open invoice or bill.
type InvoiceAllocation struct {
	InvoiceID int64
	Amount    decimal.Decimal
}

// PaymentVoucher is a cash-out document. It translates into exactly one
// journal entry: credit the treasury account, debit each allocation.
type PaymentVoucher struct {
	ID                uuid.UUID
	Number            string
	Date              time.Time
	Payee             string
	Amount            decimal.Decimal
	Method            PaymentMethod
	CashBankAccountID int64
	Allocations       []AllocationLine
	LinkedBills       []InvoiceAllocation
	JournalID         int64
	CreatedAt         time.Time
}

// ReceiptVoucher is a cash-in document. It translates into exactly one
// journal entry: debit the treasury account, credit the customer's
// receivable account.
type ReceiptVoucher struct {
	ID                uuid.UUID
	Number            string
	Date              time.Time
	CustomerID        int64
	Amount            decimal.Decimal
	Method            PaymentMethod
	CashBankAccountID int64
	LinkedInvoices    []InvoiceAllocation
	JournalID         int64
	CreatedAt         time.Time
}

// DocKind distinguishes receivable invoices from payable bills.
type DocKind string

const (
	KindInvoice DocKind = "INVOICE"
	KindBill    DocKind = "BILL"
)

// InvoiceStatus tracks settlement progress.
type InvoiceStatus string

const (
	InvoiceStatusOpen InvoiceStatus = "OPEN"
	InvoiceStatusPaid InvoiceStatus = "PAID"
)

// Invoice is the settlement view of an open document in the AR/AP
// subledger. PartyID is the customer for invoices, the supplier for bills.
type Invoice struct {
	ID              int64
	Kind            DocKind
	PartyID         int64
	Number          string
	Total           decimal.Decimal
	PaidAmount      decimal.Decimal
	RemainingAmount decimal.Decimal
	Status          InvoiceStatus
}

// Customer carries the fields the translator needs: identity and the linked
// receivable account.
type Customer struct {
	ID          int64
	Name        string
	ARAccountID *int64
}

// Settlement is an instruction to reduce an invoice's remaining amount.
// It is applied only after the journal entry commits, and is idempotent by
// (voucher_id, invoice_id).
type Settlement struct {
	VoucherID uuid.UUID
	InvoiceID int64
	Amount    decimal.Decimal
}
