package vouchers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// ListFilter narrows voucher listings.
type ListFilter struct {
	From       *time.Time
	To         *time.Time
	Method     PaymentMethod
	CustomerID int64
	Search     string
	Limit      int
}

// Repository encapsulates DB operations for vouchers, open documents, and
// settlements.
type Repository interface {
	CreatePayment(ctx context.Context, v PaymentVoucher) error
	CreateReceipt(ctx context.Context, v ReceiptVoucher) error
	ListPayments(ctx context.Context, filter ListFilter) ([]PaymentVoucher, error)
	ListReceipts(ctx context.Context, filter ListFilter) ([]ReceiptVoucher, error)
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	FindReceivableAccountID(ctx context.Context) (int64, error)
	// Settle applies one settlement instruction. It is idempotent by
	// (voucher_id, invoice_id) and must never double-deduct. A remainder
	// smaller than the requested amount yields ErrSettlementConflict.
	Settle(ctx context.Context, s Settlement) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

// Allocations and linked documents live as JSONB on the voucher row,
// mirroring the document shape the voucher screens submit. Settlement state
// is normalised separately in voucher_settlements and invoices.
type allocationDoc struct {
	AccountID   int64  `json:"account_id"`
	Description string `json:"description,omitempty"`
	Amount      string `json:"amount"`
}

type linkedDoc struct {
	InvoiceID int64  `json:"invoice_id"`
	Amount    string `json:"amount"`
}

func (r *repository) CreatePayment(ctx context.Context, v PaymentVoucher) error {
	allocations, err := json.Marshal(allocationDocs(v.Allocations))
	if err != nil {
		return fmt.Errorf("vouchers: encode allocations: %w", err)
	}
	linked, err := json.Marshal(linkedDocs(v.LinkedBills))
	if err != nil {
		return fmt.Errorf("vouchers: encode linked bills: %w", err)
	}
	// Voucher ids derive from the voucher number, so a retried create hits
	// the existing row and must not fail.
	_, err = r.db.Exec(ctx, `INSERT INTO payment_vouchers (id, number, date, payee, amount, method, cash_bank_account_id, allocations, linked_bills, je_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO NOTHING`,
		v.ID, v.Number, v.Date, v.Payee, v.Amount.String(), v.Method, v.CashBankAccountID, allocations, linked, v.JournalID)
	if err != nil {
		return fmt.Errorf("vouchers: insert payment: %w", err)
	}
	return nil
}

func (r *repository) CreateReceipt(ctx context.Context, v ReceiptVoucher) error {
	linked, err := json.Marshal(linkedDocs(v.LinkedInvoices))
	if err != nil {
		return fmt.Errorf("vouchers: encode linked invoices: %w", err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO receipt_vouchers (id, number, date, customer_id, amount, method, cash_bank_account_id, linked_invoices, je_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`,
		v.ID, v.Number, v.Date, v.CustomerID, v.Amount.String(), v.Method, v.CashBankAccountID, linked, v.JournalID)
	if err != nil {
		return fmt.Errorf("vouchers: insert receipt: %w", err)
	}
	return nil
}

func (r *repository) ListPayments(ctx context.Context, filter ListFilter) ([]PaymentVoucher, error) {
	where, args := filterClauses(filter, "payee")
	query := `SELECT id, number, date, payee, amount::text, method, cash_bank_account_id, allocations, linked_bills, je_id, created_at
FROM payment_vouchers` + where + fmt.Sprintf(` ORDER BY date DESC, number DESC LIMIT $%d`, len(args)+1)
	args = append(args, listLimit(filter))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vouchers: list payments: %w", err)
	}
	defer rows.Close()
	var out []PaymentVoucher
	for rows.Next() {
		var (
			v           PaymentVoucher
			amount      string
			allocations []byte
			linked      []byte
		)
		if err := rows.Scan(&v.ID, &v.Number, &v.Date, &v.Payee, &amount, &v.Method, &v.CashBankAccountID, &allocations, &linked, &v.JournalID, &v.CreatedAt); err != nil {
			return nil, err
		}
		if v.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("vouchers: parse amount: %w", err)
		}
		if v.Allocations, err = decodeAllocations(allocations); err != nil {
			return nil, err
		}
		if v.LinkedBills, err = decodeLinked(linked); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *repository) ListReceipts(ctx context.Context, filter ListFilter) ([]ReceiptVoucher, error) {
	where, args := filterClauses(filter, "number")
	if filter.CustomerID != 0 {
		args = append(args, filter.CustomerID)
		where += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	query := `SELECT id, number, date, customer_id, amount::text, method, cash_bank_account_id, linked_invoices, je_id, created_at
FROM receipt_vouchers` + where + fmt.Sprintf(` ORDER BY date DESC, number DESC LIMIT $%d`, len(args)+1)
	args = append(args, listLimit(filter))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vouchers: list receipts: %w", err)
	}
	defer rows.Close()
	var out []ReceiptVoucher
	for rows.Next() {
		var (
			v      ReceiptVoucher
			amount string
			linked []byte
		)
		if err := rows.Scan(&v.ID, &v.Number, &v.Date, &v.CustomerID, &amount, &v.Method, &v.CashBankAccountID, &linked, &v.JournalID, &v.CreatedAt); err != nil {
			return nil, err
		}
		if v.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("vouchers: parse amount: %w", err)
		}
		if v.LinkedInvoices, err = decodeLinked(linked); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	var (
		inv                            Invoice
		total, paidAmount, remaining   string
	)
	err := r.db.QueryRow(ctx, `SELECT id, kind, party_id, number, total::text, paid_amount::text, remaining_amount::text, status
FROM invoices WHERE id = $1`, id).
		Scan(&inv.ID, &inv.Kind, &inv.PartyID, &inv.Number, &total, &paidAmount, &remaining, &inv.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, shared.ErrInvoiceNotFound
		}
		return Invoice{}, fmt.Errorf("vouchers: get invoice: %w", err)
	}
	if inv.Total, err = decimal.NewFromString(total); err != nil {
		return Invoice{}, err
	}
	if inv.PaidAmount, err = decimal.NewFromString(paidAmount); err != nil {
		return Invoice{}, err
	}
	if inv.RemainingAmount, err = decimal.NewFromString(remaining); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (r *repository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	var c Customer
	err := r.db.QueryRow(ctx, `SELECT id, name, ar_account_id FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.ARAccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, shared.ErrCustomerNotFound
		}
		return Customer{}, fmt.Errorf("vouchers: get customer: %w", err)
	}
	return c, nil
}

// FindReceivableAccountID is the fallback when a customer has no linked AR
// account: the first active receivable-tagged leaf by code.
func (r *repository) FindReceivableAccountID(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM accounts
WHERE subledger = 'AR' AND is_group = FALSE AND is_active = TRUE
ORDER BY code LIMIT 1`).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrReceivableUnresolved
		}
		return 0, fmt.Errorf("vouchers: find receivable account: %w", err)
	}
	return id, nil
}

const insertSettlementSQL = `INSERT INTO voucher_settlements (voucher_id, invoice_id, amount) VALUES ($1, $2, $3)`

const settleInvoiceSQL = `UPDATE invoices
SET paid_amount = paid_amount + $2,
    remaining_amount = remaining_amount - $2,
    status = CASE WHEN remaining_amount - $2 <= 0.001 THEN 'PAID' ELSE status END
WHERE id = $1 AND remaining_amount >= $2`

func (r *repository) Settle(ctx context.Context, s Settlement) error {
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertSettlementSQL,
			s.VoucherID, s.InvoiceID, s.Amount.String())
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_voucher_settlements" {
				// already applied by an earlier attempt
				return errAlreadySettled
			}
			return fmt.Errorf("vouchers: insert settlement: %w", err)
		}
		tag, err := tx.Exec(ctx, settleInvoiceSQL, s.InvoiceID, s.Amount.String())
		if err != nil {
			return fmt.Errorf("vouchers: apply settlement: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrSettlementConflict
		}
		return nil
	})
	if errors.Is(err, errAlreadySettled) {
		return nil
	}
	return err
}

// errAlreadySettled aborts the settlement transaction without applying a
// second deduction; Settle's caller treats it as success.
var errAlreadySettled = errors.New("vouchers: settlement already applied")

func allocationDocs(lines []AllocationLine) []allocationDoc {
	out := make([]allocationDoc, 0, len(lines))
	for _, l := range lines {
		out = append(out, allocationDoc{AccountID: l.AccountID, Description: l.Description, Amount: l.Amount.String()})
	}
	return out
}

func linkedDocs(lines []InvoiceAllocation) []linkedDoc {
	out := make([]linkedDoc, 0, len(lines))
	for _, l := range lines {
		out = append(out, linkedDoc{InvoiceID: l.InvoiceID, Amount: l.Amount.String()})
	}
	return out
}

func decodeAllocations(raw []byte) ([]AllocationLine, error) {
	var docs []allocationDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("vouchers: decode allocations: %w", err)
	}
	out := make([]AllocationLine, 0, len(docs))
	for _, d := range docs {
		amount, err := decimal.NewFromString(d.Amount)
		if err != nil {
			return nil, fmt.Errorf("vouchers: decode allocation amount: %w", err)
		}
		out = append(out, AllocationLine{AccountID: d.AccountID, Description: d.Description, Amount: amount})
	}
	return out, nil
}

func decodeLinked(raw []byte) ([]InvoiceAllocation, error) {
	var docs []linkedDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("vouchers: decode linked documents: %w", err)
	}
	out := make([]InvoiceAllocation, 0, len(docs))
	for _, d := range docs {
		amount, err := decimal.NewFromString(d.Amount)
		if err != nil {
			return nil, fmt.Errorf("vouchers: decode linked amount: %w", err)
		}
		out = append(out, InvoiceAllocation{InvoiceID: d.InvoiceID, Amount: amount})
	}
	return out, nil
}

func filterClauses(filter ListFilter, textColumn string) (string, []any) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.From != nil {
		args = append(args, *filter.From)
		where += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	if filter.Method != "" {
		args = append(args, filter.Method)
		where += fmt.Sprintf(" AND method = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		if textColumn == "" || textColumn == "number" {
			where += fmt.Sprintf(" AND number ILIKE $%d", len(args))
		} else {
			where += fmt.Sprintf(" AND (number ILIKE $%d OR %s ILIKE $%d)", len(args), textColumn, len(args))
		}
	}
	return where, args
}

func listLimit(filter ListFilter) int {
	if filter.Limit <= 0 {
		return 50
	}
	return filter.Limit
}
