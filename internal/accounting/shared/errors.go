package shared

import "errors"

var (
	// ErrAccountNotFound indicates an unknown account id.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrAccountInactive indicates a deactivated account cannot take postings.
	ErrAccountInactive = errors.New("accounting: account is inactive")
	// ErrGroupAccountNotPostable indicates a posting aimed at a group node.
	ErrGroupAccountNotPostable = errors.New("accounting: group account cannot receive postings")
	// ErrDuplicateAccountCode indicates the code is already taken.
	ErrDuplicateAccountCode = errors.New("accounting: account code already exists")
	// ErrInvalidAccountType indicates an unknown account type value.
	ErrInvalidAccountType = errors.New("accounting: invalid account type")
	// ErrParentNotGroup indicates the chosen parent is a postable leaf.
	ErrParentNotGroup = errors.New("accounting: parent account must be a group")
	// ErrAccountCycle indicates the parent chain would loop.
	ErrAccountCycle = errors.New("accounting: account parent chain must be acyclic")

	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrAlreadyVoided indicates the entry was voided before.
	ErrAlreadyVoided = errors.New("accounting: journal entry already voided")
	// ErrVoidReversal indicates an attempt to void a reversing entry.
	ErrVoidReversal = errors.New("accounting: reversing entries cannot be voided")
	// ErrSourceAlreadyLinked indicates idempotency conflict on posting.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked to a journal entry")
	// ErrSourceConflict indicates the source link already exists.
	ErrSourceConflict = errors.New("accounting: source link conflict")
	// ErrPersistence indicates the ledger store failed mid-operation.
	// Posting is atomic, so callers may retry safely.
	ErrPersistence = errors.New("accounting: ledger store unavailable")

	// ErrUnbalancedAllocations indicates voucher allocations do not sum to the total.
	ErrUnbalancedAllocations = errors.New("accounting: allocation amounts must sum to the voucher amount")
	// ErrMissingAllocation indicates a payment voucher without a positive allocation line.
	ErrMissingAllocation = errors.New("accounting: voucher requires at least one positive allocation")
	// ErrInvoiceNotFound indicates an unknown invoice reference.
	ErrInvoiceNotFound = errors.New("accounting: invoice not found")
	// ErrCustomerNotFound indicates an unknown customer reference.
	ErrCustomerNotFound = errors.New("accounting: customer not found")
	// ErrInvalidPaymentMethod indicates an unknown payment method on a voucher.
	ErrInvalidPaymentMethod = errors.New("accounting: invalid payment method")
	// ErrInvoiceCustomerMismatch indicates a linked invoice belongs to another customer.
	ErrInvoiceCustomerMismatch = errors.New("accounting: linked invoice belongs to a different customer")
	// ErrOverAllocatedInvoice indicates an allocation above the invoice remainder.
	ErrOverAllocatedInvoice = errors.New("accounting: allocation exceeds invoice remaining amount")
	// ErrSettlementConflict indicates a concurrent voucher settled the invoice first.
	// The journal entry already committed and stands; only the settlement failed.
	ErrSettlementConflict = errors.New("accounting: invoice settled beyond remaining amount")
	// ErrReceivableUnresolved indicates no AR account could be found for the customer.
	ErrReceivableUnresolved = errors.New("accounting: customer has no receivable account")

	// ErrInvalidRange indicates from_date is after to_date.
	ErrInvalidRange = errors.New("accounting: from date must not be after to date")
)
