package vouchers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

type settlementKey struct {
	voucher uuid.UUID
	invoice int64
}

type memoryVoucherRepo struct {
	payments    map[uuid.UUID]PaymentVoucher
	receipts    map[uuid.UUID]ReceiptVoucher
	invoices    map[int64]Invoice
	customers   map[int64]Customer
	settlements map[settlementKey]decimal.Decimal
	arFallback  int64
}

func newMemoryVoucherRepo() *memoryVoucherRepo {
	return &memoryVoucherRepo{
		payments:    make(map[uuid.UUID]PaymentVoucher),
		receipts:    make(map[uuid.UUID]ReceiptVoucher),
		invoices:    make(map[int64]Invoice),
		customers:   make(map[int64]Customer),
		settlements: make(map[settlementKey]decimal.Decimal),
	}
}

func (r *memoryVoucherRepo) CreatePayment(_ context.Context, v PaymentVoucher) error {
	// Mirrors ON CONFLICT (id) DO NOTHING.
	if _, ok := r.payments[v.ID]; ok {
		return nil
	}
	r.payments[v.ID] = v
	return nil
}

func (r *memoryVoucherRepo) CreateReceipt(_ context.Context, v ReceiptVoucher) error {
	if _, ok := r.receipts[v.ID]; ok {
		return nil
	}
	r.receipts[v.ID] = v
	return nil
}

func (r *memoryVoucherRepo) ListPayments(context.Context, ListFilter) ([]PaymentVoucher, error) {
	out := make([]PaymentVoucher, 0, len(r.payments))
	for _, v := range r.payments {
		out = append(out, v)
	}
	return out, nil
}

func (r *memoryVoucherRepo) ListReceipts(context.Context, ListFilter) ([]ReceiptVoucher, error) {
	out := make([]ReceiptVoucher, 0, len(r.receipts))
	for _, v := range r.receipts {
		out = append(out, v)
	}
	return out, nil
}

func (r *memoryVoucherRepo) GetInvoice(_ context.Context, id int64) (Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, shared.ErrInvoiceNotFound
	}
	return inv, nil
}

func (r *memoryVoucherRepo) GetCustomer(_ context.Context, id int64) (Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return Customer{}, shared.ErrCustomerNotFound
	}
	return c, nil
}

func (r *memoryVoucherRepo) FindReceivableAccountID(context.Context) (int64, error) {
	if r.arFallback == 0 {
		return 0, shared.ErrReceivableUnresolved
	}
	return r.arFallback, nil
}

func (r *memoryVoucherRepo) Settle(_ context.Context, s Settlement) error {
	key := settlementKey{voucher: s.VoucherID, invoice: s.InvoiceID}
	if _, done := r.settlements[key]; done {
		// Applied before; retries must not deduct twice.
		return nil
	}
	inv, ok := r.invoices[s.InvoiceID]
	if !ok {
		return shared.ErrInvoiceNotFound
	}
	if inv.RemainingAmount.LessThan(s.Amount) {
		return shared.ErrSettlementConflict
	}
	inv.PaidAmount = inv.PaidAmount.Add(s.Amount)
	inv.RemainingAmount = inv.RemainingAmount.Sub(s.Amount)
	if inv.RemainingAmount.LessThanOrEqual(shared.BalanceEpsilon) {
		inv.Status = InvoiceStatusPaid
	}
	r.invoices[s.InvoiceID] = inv
	r.settlements[key] = s.Amount
	return nil
}

type fakeJournal struct {
	posted  []journals.EntryDraft
	entries []journals.JournalEntry
	nextID  int64
	postErr error
}

func (j *fakeJournal) Post(_ context.Context, draft journals.EntryDraft) (journals.JournalEntry, error) {
	if j.postErr != nil {
		return journals.JournalEntry{}, j.postErr
	}
	for _, e := range j.entries {
		if e.SourceModule == draft.SourceModule && e.SourceID == draft.SourceID {
			return journals.JournalEntry{}, shared.ErrSourceAlreadyLinked
		}
	}
	j.nextID++
	j.posted = append(j.posted, draft)
	entry := journals.JournalEntry{
		ID:           j.nextID,
		Number:       draft.Number,
		Date:         draft.Date,
		SourceModule: draft.SourceModule,
		SourceID:     draft.SourceID,
	}
	j.entries = append(j.entries, entry)
	return entry, nil
}

func (j *fakeJournal) FindBySource(_ context.Context, module string, ref uuid.UUID) (journals.JournalEntry, error) {
	for _, e := range j.entries {
		if e.SourceModule == module && e.SourceID == ref {
			return e, nil
		}
	}
	return journals.JournalEntry{}, shared.ErrJournalNotFound
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, internalShared.AuditLog) error { return nil }

func newVoucherService(repo *memoryVoucherRepo, journal *fakeJournal) *Service {
	svc := NewService(repo, journal, noopAudit{})
	svc.WithNow(func() time.Time { return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) })
	return svc
}

func seedInvoice(repo *memoryVoucherRepo, id int64, kind DocKind, party int64, total, remaining string) {
	repo.invoices[id] = Invoice{
		ID:              id,
		Kind:            kind,
		PartyID:         party,
		Number:          "DOC-" + uuid.NewString()[:8],
		Total:           amt(total),
		PaidAmount:      amt(total).Sub(amt(remaining)),
		RemainingAmount: amt(remaining),
		Status:          InvoiceStatusOpen,
	}
}

func TestCreateReceiptPostsSettlesAndPersists(t *testing.T) {
	repo := newMemoryVoucherRepo()
	repo.customers[5] = Customer{ID: 5, Name: "Al Noor Trading", ARAccountID: ptrInt64(21)}
	seedInvoice(repo, 201, KindInvoice, 5, "700", "700")
	seedInvoice(repo, 202, KindInvoice, 5, "900", "500")
	journal := &fakeJournal{}
	svc := newVoucherService(repo, journal)

	created, entry, err := svc.CreateReceipt(context.Background(), internalShared.Actor{ID: 3}, receiptVoucher())
	require.NoError(t, err)
	require.Equal(t, entry.ID, created.JournalID)
	require.Len(t, journal.posted, 1)
	require.Contains(t, repo.receipts, created.ID)

	// 700 fully settles invoice 201, 500 fully settles invoice 202.
	require.Equal(t, InvoiceStatusPaid, repo.invoices[201].Status)
	require.Equal(t, InvoiceStatusPaid, repo.invoices[202].Status)
	require.True(t, repo.invoices[202].RemainingAmount.IsZero())
}

func TestCreateReceiptFallsBackToSubledgerAccount(t *testing.T) {
	repo := newMemoryVoucherRepo()
	repo.customers[5] = Customer{ID: 5, Name: "Al Noor Trading"}
	repo.arFallback = 33
	journal := &fakeJournal{}
	svc := newVoucherService(repo, journal)

	v := receiptVoucher()
	v.LinkedInvoices = nil
	_, _, err := svc.CreateReceipt(context.Background(), internalShared.Actor{}, v)
	require.NoError(t, err)
	require.Equal(t, int64(33), journal.posted[0].Lines[1].AccountID)
}

func TestCreateReceiptUnresolvedReceivable(t *testing.T) {
	repo := newMemoryVoucherRepo()
	repo.customers[5] = Customer{ID: 5, Name: "Al Noor Trading"}
	svc := newVoucherService(repo, &fakeJournal{})

	v := receiptVoucher()
	v.LinkedInvoices = nil
	_, _, err := svc.CreateReceipt(context.Background(), internalShared.Actor{}, v)
	require.ErrorIs(t, err, shared.ErrReceivableUnresolved)
}

func TestCreateReceiptRejectsForeignInvoice(t *testing.T) {
	repo := newMemoryVoucherRepo()
	repo.customers[5] = Customer{ID: 5, Name: "Al Noor Trading", ARAccountID: ptrInt64(21)}
	seedInvoice(repo, 201, KindInvoice, 8, "700", "700")
	journal := &fakeJournal{}
	svc := newVoucherService(repo, journal)

	v := receiptVoucher()
	v.LinkedInvoices = v.LinkedInvoices[:1]
	_, _, err := svc.CreateReceipt(context.Background(), internalShared.Actor{}, v)
	require.ErrorIs(t, err, shared.ErrInvoiceCustomerMismatch)
	require.Empty(t, journal.posted)
}

func TestCreateReceiptRejectsOverAllocatedInvoice(t *testing.T) {
	repo := newMemoryVoucherRepo()
	repo.customers[5] = Customer{ID: 5, Name: "Al Noor Trading", ARAccountID: ptrInt64(21)}
	seedInvoice(repo, 201, KindInvoice, 5, "700", "100")
	journal := &fakeJournal{}
	svc := newVoucherService(repo, journal)

	v := receiptVoucher()
	v.LinkedInvoices = v.LinkedInvoices[:1]
	_, _, err := svc.CreateReceipt(context.Background(), internalShared.Actor{}, v)
	require.ErrorIs(t, err, shared.ErrOverAllocatedInvoice)
	require.Empty(t, journal.posted)
}

func TestSettlementConflictSurfacesWithoutRollback(t *testing.T) {
	repo := newMemoryVoucherRepo()
	repo.customers[5] = Customer{ID: 5, Name: "Al Noor Trading", ARAccountID: ptrInt64(21)}
	seedInvoice(repo, 201, KindInvoice, 5, "700", "700")
	journal := &fakeJournal{}
	svc := newVoucherService(repo, journal)

	// Shrink the invoice between the pre-check and the settle call.
	svc.repo = &racingRepo{memoryVoucherRepo: repo, settleFirst: Settlement{
		VoucherID: uuid.New(), InvoiceID: 201, Amount: amt("650"),
	}}

	v := receiptVoucher()
	v.LinkedInvoices = []InvoiceAllocation{{InvoiceID: 201, Amount: amt("700")}}
	v.Amount = amt("700")

	created, entry, err := svc.CreateReceipt(context.Background(), internalShared.Actor{}, v)

	var failure *SettlementFailure
	require.ErrorAs(t, err, &failure)
	require.ErrorIs(t, failure.Reason, shared.ErrSettlementConflict)
	require.Equal(t, entry.ID, failure.JournalID)
	require.Len(t, failure.Failed, 1)
	require.Equal(t, int64(201), failure.Failed[0].InvoiceID)

	// The journal entry and voucher are committed despite the failure.
	require.Len(t, journal.posted, 1)
	require.Contains(t, repo.receipts, created.ID)
}

// racingRepo lets another settlement slip in between the service pre-check
// and the settle call.
type racingRepo struct {
	*memoryVoucherRepo
	settleFirst Settlement
	fired       bool
}

func (r *racingRepo) Settle(ctx context.Context, s Settlement) error {
	if !r.fired {
		r.fired = true
		if err := r.memoryVoucherRepo.Settle(ctx, r.settleFirst); err != nil {
			return err
		}
	}
	return r.memoryVoucherRepo.Settle(ctx, s)
}

func TestSettlementIsIdempotentPerVoucherInvoice(t *testing.T) {
	repo := newMemoryVoucherRepo()
	seedInvoice(repo, 201, KindInvoice, 5, "700", "700")

	s := Settlement{VoucherID: uuid.New(), InvoiceID: 201, Amount: amt("700")}
	require.NoError(t, repo.Settle(context.Background(), s))
	require.NoError(t, repo.Settle(context.Background(), s))

	inv := repo.invoices[201]
	require.True(t, inv.PaidAmount.Equal(amt("700")))
	require.True(t, inv.RemainingAmount.IsZero())
	require.Equal(t, InvoiceStatusPaid, inv.Status)
}

func TestCreatePaymentSettlesLinkedBills(t *testing.T) {
	repo := newMemoryVoucherRepo()
	seedInvoice(repo, 301, KindBill, 9, "850", "850")
	journal := &fakeJournal{}
	svc := newVoucherService(repo, journal)

	v := paymentVoucher()
	v.LinkedBills = []InvoiceAllocation{{InvoiceID: 301, Amount: amt("850")}}
	created, entry, err := svc.CreatePayment(context.Background(), internalShared.Actor{ID: 2}, v)
	require.NoError(t, err)
	require.Equal(t, entry.ID, created.JournalID)
	require.Equal(t, InvoiceStatusPaid, repo.invoices[301].Status)
}

func TestCreatePaymentRejectsInvalidMethod(t *testing.T) {
	svc := newVoucherService(newMemoryVoucherRepo(), &fakeJournal{})
	v := paymentVoucher()
	v.Method = "WIRE"
	_, _, err := svc.CreatePayment(context.Background(), internalShared.Actor{}, v)
	require.ErrorIs(t, err, shared.ErrInvalidPaymentMethod)
}

func TestCreatePaymentPropagatesJournalFailure(t *testing.T) {
	repo := newMemoryVoucherRepo()
	journal := &fakeJournal{postErr: shared.ErrPersistence}
	svc := newVoucherService(repo, journal)

	_, _, err := svc.CreatePayment(context.Background(), internalShared.Actor{}, paymentVoucher())
	require.ErrorIs(t, err, shared.ErrPersistence)
	require.Empty(t, repo.payments)
}

func TestVoucherIDsAreDeterministicPerNumber(t *testing.T) {
	id := deriveVoucherID("VOUCHER:RECEIPT", "RV-2026-031")
	require.Equal(t, id, deriveVoucherID("VOUCHER:RECEIPT", "RV-2026-031"))
	require.NotEqual(t, id, deriveVoucherID("VOUCHER:PAYMENT", "RV-2026-031"))
	require.NotEqual(t, id, deriveVoucherID("VOUCHER:RECEIPT", "RV-2026-032"))
}

// flakyRepo fails voucher inserts a set number of times before behaving.
type flakyRepo struct {
	*memoryVoucherRepo
	failures int
}

func (r *flakyRepo) CreateReceipt(ctx context.Context, v ReceiptVoucher) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("connection reset")
	}
	return r.memoryVoucherRepo.CreateReceipt(ctx, v)
}

func TestCreateReceiptRetryReusesPostedEntry(t *testing.T) {
	repo := newMemoryVoucherRepo()
	repo.customers[5] = Customer{ID: 5, Name: "Al Noor Trading", ARAccountID: ptrInt64(21)}
	seedInvoice(repo, 201, KindInvoice, 5, "700", "700")
	seedInvoice(repo, 202, KindInvoice, 5, "900", "500")
	journal := &fakeJournal{}
	svc := newVoucherService(repo, journal)
	svc.repo = &flakyRepo{memoryVoucherRepo: repo, failures: 1}

	v := receiptVoucher()
	v.ID = uuid.Nil

	_, _, err := svc.CreateReceipt(context.Background(), internalShared.Actor{ID: 3}, v)
	require.ErrorIs(t, err, shared.ErrPersistence)
	require.Len(t, journal.posted, 1)
	require.Empty(t, repo.receipts)

	created, entry, err := svc.CreateReceipt(context.Background(), internalShared.Actor{ID: 3}, v)
	require.NoError(t, err)

	// One journal entry total: the retry recovered the first posting
	// through its source link instead of posting again.
	require.Len(t, journal.posted, 1)
	require.Equal(t, journal.entries[0].ID, entry.ID)
	require.Equal(t, journal.entries[0].SourceID, created.ID)
	require.Equal(t, entry.ID, created.JournalID)
	require.Len(t, repo.receipts, 1)
	require.Equal(t, InvoiceStatusPaid, repo.invoices[201].Status)
	require.Equal(t, InvoiceStatusPaid, repo.invoices[202].Status)
}

func ptrInt64(v int64) *int64 { return &v }
