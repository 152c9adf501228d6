package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// CreateInput groups fields for a new account.
type CreateInput struct {
	Code      string
	NameEn    string
	NameAr    string
	Type      AccountType
	ParentID  *int64
	IsGroup   bool
	Subledger SubledgerType
}

// Repository encapsulates DB operations for the chart of accounts.
type Repository interface {
	List(ctx context.Context) ([]Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	Create(ctx context.Context, in CreateInput) (Account, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `a.id, a.code, a.name_en, a.name_ar, a.type, a.parent_id, a.is_group, a.is_active, a.subledger, a.created_at, a.updated_at`

// List returns every account with raw debit/credit sums from posted lines.
// The signed balance is derived in scanAccount using the normal side.
func (r *repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+`,
COALESCE(SUM(jl.debit), 0)::text, COALESCE(SUM(jl.credit), 0)::text
FROM accounts a
LEFT JOIN journal_lines jl ON jl.account_id = a.id
GROUP BY a.id
ORDER BY a.code`)
	if err != nil {
		return nil, fmt.Errorf("accounts: list: %w", err)
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+`,
COALESCE(SUM(jl.debit), 0)::text, COALESCE(SUM(jl.credit), 0)::text
FROM accounts a
LEFT JOIN journal_lines jl ON jl.account_id = a.id
WHERE a.id = $1
GROUP BY a.id`, id)
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return acc, nil
}

func (r *repository) Create(ctx context.Context, in CreateInput) (Account, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (code, name_en, name_ar, type, parent_id, is_group, is_active, subledger)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
RETURNING id, created_at, updated_at`, in.Code, in.NameEn, in.NameAr, in.Type, in.ParentID, in.IsGroup, in.Subledger)
	acc := Account{
		Code:      in.Code,
		NameEn:    in.NameEn,
		NameAr:    in.NameAr,
		Type:      in.Type,
		ParentID:  in.ParentID,
		IsGroup:   in.IsGroup,
		IsActive:  true,
		Subledger: in.Subledger,
		Balance:   decimal.Zero,
	}
	if err := row.Scan(&acc.ID, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_accounts_code" {
			return Account{}, shared.ErrDuplicateAccountCode
		}
		return Account{}, fmt.Errorf("accounts: create: %w", err)
	}
	return acc, nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("accounts: set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acc                     Account
		totalDebit, totalCredit string
	)
	err := row.Scan(&acc.ID, &acc.Code, &acc.NameEn, &acc.NameAr, &acc.Type, &acc.ParentID,
		&acc.IsGroup, &acc.IsActive, &acc.Subledger, &acc.CreatedAt, &acc.UpdatedAt,
		&totalDebit, &totalCredit)
	if err != nil {
		return Account{}, err
	}
	debit, err := decimal.NewFromString(totalDebit)
	if err != nil {
		return Account{}, fmt.Errorf("accounts: parse debit sum: %w", err)
	}
	credit, err := decimal.NewFromString(totalCredit)
	if err != nil {
		return Account{}, fmt.Errorf("accounts: parse credit sum: %w", err)
	}
	if acc.NormalSide() == SideDebit {
		acc.Balance = debit.Sub(credit)
	} else {
		acc.Balance = credit.Sub(debit)
	}
	return acc, nil
}
