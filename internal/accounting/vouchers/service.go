package vouchers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// JournalPort posts translated drafts into the journal engine and recovers
// prior postings by their source link.
type JournalPort interface {
	Post(ctx context.Context, draft journals.EntryDraft) (journals.JournalEntry, error)
	FindBySource(ctx context.Context, module string, ref uuid.UUID) (journals.JournalEntry, error)
}

// voucherIDNamespace seeds deterministic voucher ids. A retried request
// carrying the same voucher number derives the same id, so the journal
// source link and the voucher row both land exactly once.
var voucherIDNamespace = uuid.MustParse("a4c1f2d8-5b4e-4e6a-9b2f-7d30c8e1a652")

func deriveVoucherID(module, number string) uuid.UUID {
	return uuid.NewSHA1(voucherIDNamespace, []byte(module+"|"+number))
}

// AuditPort records voucher events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// SettlementFailure reports settlement instructions that could not be
// applied after the journal entry committed. The journal entry stands and
// is not rolled back; failed instructions need manual reconciliation.
// Retrying is safe: applied settlements are idempotent by
// (voucher_id, invoice_id) and are never deducted twice.
type SettlementFailure struct {
	JournalID int64
	Failed    []Settlement
	Reason    error
}

func (e *SettlementFailure) Error() string {
	return fmt.Sprintf("accounting: %d settlement(s) failed after journal entry %d committed: %v",
		len(e.Failed), e.JournalID, e.Reason)
}

func (e *SettlementFailure) Unwrap() error {
	return e.Reason
}

// Service turns vouchers into journal entries. The pipeline is strictly
// translate, post, persist voucher, settle: settlement only ever runs
// after the journal entry committed.
type Service struct {
	repo    Repository
	journal JournalPort
	audit   AuditPort
	now     func() time.Time
}

func NewService(repo Repository, journal JournalPort, audit AuditPort) *Service {
	return &Service{repo: repo, journal: journal, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreatePayment translates a payment voucher into one journal entry, posts
// it, persists the voucher linked 1:1 to the entry, and settles any linked
// bills.
func (s *Service) CreatePayment(ctx context.Context, actor internalShared.Actor, v PaymentVoucher) (PaymentVoucher, journals.JournalEntry, error) {
	if v.ID == uuid.Nil {
		v.ID = deriveVoucherID("VOUCHER:PAYMENT", v.Number)
	}
	if !v.Method.Valid() {
		return PaymentVoucher{}, journals.JournalEntry{}, shared.ErrInvalidPaymentMethod
	}
	if err := s.checkAllocatedDocs(ctx, v.LinkedBills, KindBill, 0); err != nil {
		return PaymentVoucher{}, journals.JournalEntry{}, err
	}

	draft, settlements, err := TranslatePayment(v)
	if err != nil {
		return PaymentVoucher{}, journals.JournalEntry{}, err
	}
	draft.PostedBy = actor.ID

	entry, err := s.postOrRecover(ctx, draft)
	if err != nil {
		return PaymentVoucher{}, journals.JournalEntry{}, err
	}
	v.JournalID = entry.ID
	v.CreatedAt = s.now()
	if err := s.repo.CreatePayment(ctx, v); err != nil {
		return PaymentVoucher{}, journals.JournalEntry{}, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	s.record(ctx, actor, "voucher.payment", v.Number, entry.ID)
	if err := s.applySettlements(ctx, entry.ID, settlements); err != nil {
		return v, entry, err
	}
	return v, entry, nil
}

// CreateReceipt translates a receipt voucher into one journal entry
// crediting the customer's receivable account, posts it, persists the
// voucher, and settles linked invoices. An allocation total below the
// voucher amount leaves the remainder as an unapplied customer credit.
func (s *Service) CreateReceipt(ctx context.Context, actor internalShared.Actor, v ReceiptVoucher) (ReceiptVoucher, journals.JournalEntry, error) {
	if v.ID == uuid.Nil {
		v.ID = deriveVoucherID("VOUCHER:RECEIPT", v.Number)
	}
	if !v.Method.Valid() {
		return ReceiptVoucher{}, journals.JournalEntry{}, shared.ErrInvalidPaymentMethod
	}
	customer, err := s.repo.GetCustomer(ctx, v.CustomerID)
	if err != nil {
		return ReceiptVoucher{}, journals.JournalEntry{}, err
	}
	receivableID, err := s.resolveReceivable(ctx, customer)
	if err != nil {
		return ReceiptVoucher{}, journals.JournalEntry{}, err
	}
	if err := s.checkAllocatedDocs(ctx, v.LinkedInvoices, KindInvoice, customer.ID); err != nil {
		return ReceiptVoucher{}, journals.JournalEntry{}, err
	}

	draft, settlements, err := TranslateReceipt(v, customer.Name, receivableID)
	if err != nil {
		return ReceiptVoucher{}, journals.JournalEntry{}, err
	}
	draft.PostedBy = actor.ID

	entry, err := s.postOrRecover(ctx, draft)
	if err != nil {
		return ReceiptVoucher{}, journals.JournalEntry{}, err
	}
	v.JournalID = entry.ID
	v.CreatedAt = s.now()
	if err := s.repo.CreateReceipt(ctx, v); err != nil {
		return ReceiptVoucher{}, journals.JournalEntry{}, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	s.record(ctx, actor, "voucher.receipt", v.Number, entry.ID)
	if err := s.applySettlements(ctx, entry.ID, settlements); err != nil {
		return v, entry, err
	}
	return v, entry, nil
}

// ListPayments returns payment vouchers, newest first.
func (s *Service) ListPayments(ctx context.Context, filter ListFilter) ([]PaymentVoucher, error) {
	return s.repo.ListPayments(ctx, filter)
}

// ListReceipts returns receipt vouchers, newest first.
func (s *Service) ListReceipts(ctx context.Context, filter ListFilter) ([]ReceiptVoucher, error) {
	return s.repo.ListReceipts(ctx, filter)
}

// postOrRecover posts the draft and, when an earlier attempt already linked
// this source, returns that attempt's entry instead. A caller retrying after
// a transient failure continues past the posting step rather than failing
// or posting twice.
func (s *Service) postOrRecover(ctx context.Context, draft journals.EntryDraft) (journals.JournalEntry, error) {
	entry, err := s.journal.Post(ctx, draft)
	if errors.Is(err, shared.ErrSourceAlreadyLinked) {
		return s.journal.FindBySource(ctx, draft.SourceModule, draft.SourceID)
	}
	return entry, err
}

// resolveReceivable prefers the customer's linked AR account and falls back
// to the first receivable-tagged account in the chart.
func (s *Service) resolveReceivable(ctx context.Context, customer Customer) (int64, error) {
	if customer.ARAccountID != nil {
		return *customer.ARAccountID, nil
	}
	return s.repo.FindReceivableAccountID(ctx)
}

// checkAllocatedDocs verifies every linked document exists, has the right
// kind and owner, and can absorb its allocation. Concurrent settlements are
// re-checked atomically in Settle; this pass gives callers early, precise
// failures.
func (s *Service) checkAllocatedDocs(ctx context.Context, allocations []InvoiceAllocation, kind DocKind, partyID int64) error {
	for _, alloc := range allocations {
		if !alloc.Amount.IsPositive() {
			continue
		}
		inv, err := s.repo.GetInvoice(ctx, alloc.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Kind != kind {
			return shared.ErrInvoiceNotFound
		}
		if partyID != 0 && inv.PartyID != partyID {
			return shared.ErrInvoiceCustomerMismatch
		}
		if inv.RemainingAmount.LessThan(alloc.Amount) {
			return shared.ErrOverAllocatedInvoice
		}
	}
	return nil
}

// applySettlements runs post-then-settle. Every instruction is attempted;
// failures are collected so one conflicting invoice does not block the rest.
func (s *Service) applySettlements(ctx context.Context, journalID int64, settlements []Settlement) error {
	var failed []Settlement
	var reason error
	for _, settlement := range settlements {
		if err := s.repo.Settle(ctx, settlement); err != nil {
			failed = append(failed, settlement)
			if reason == nil || errors.Is(err, shared.ErrSettlementConflict) {
				reason = err
			}
		}
	}
	if len(failed) > 0 {
		return &SettlementFailure{JournalID: journalID, Failed: failed, Reason: reason}
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor internalShared.Actor, action, number string, journalID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "voucher",
		EntityID: number,
		Meta:     map[string]any{"je_id": journalID},
		At:       s.now(),
	})
}
