package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository reads posted journal lines for projection. All queries are
// read-only snapshots.
type Repository interface {
	// SumBefore returns the raw debit and credit totals for the account
	// strictly before the given date.
	SumBefore(ctx context.Context, accountID int64, before time.Time) (debit, credit decimal.Decimal, err error)
	// LinesInRange returns lines within the inclusive date range ordered by
	// (entry date, entry number, line id).
	LinesInRange(ctx context.Context, accountID int64, from, to time.Time) ([]EntryLine, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) SumBefore(ctx context.Context, accountID int64, before time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var debitRaw, creditRaw string
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit), 0)::text, COALESCE(SUM(l.credit), 0)::text
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.je_id
		WHERE l.account_id = $1 AND e.date < $2`, accountID, before).Scan(&debitRaw, &creditRaw)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("sum ledger opening: %w", err)
	}
	debit, err := decimal.NewFromString(debitRaw)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("parse opening debit: %w", err)
	}
	credit, err := decimal.NewFromString(creditRaw)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("parse opening credit: %w", err)
	}
	return debit, credit, nil
}

func (r *repository) LinesInRange(ctx context.Context, accountID int64, from, to time.Time) ([]EntryLine, error) {
	rows, err := r.db.Query(ctx, `SELECT e.id, e.number, e.date, e.description, l.memo, l.debit::text, l.credit::text
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.je_id
		WHERE l.account_id = $1 AND e.date >= $2 AND e.date <= $3
		ORDER BY e.date, e.number, l.id`, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query ledger lines: %w", err)
	}
	defer rows.Close()

	var lines []EntryLine
	for rows.Next() {
		var line EntryLine
		var debitRaw, creditRaw string
		if err := rows.Scan(&line.EntryID, &line.Number, &line.Date, &line.Description, &line.Memo, &debitRaw, &creditRaw); err != nil {
			return nil, fmt.Errorf("scan ledger line: %w", err)
		}
		if line.Debit, err = decimal.NewFromString(debitRaw); err != nil {
			return nil, fmt.Errorf("parse ledger debit: %w", err)
		}
		if line.Credit, err = decimal.NewFromString(creditRaw); err != nil {
			return nil, fmt.Errorf("parse ledger credit: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
