package journals

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository encapsulates DB operations for journal entries.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]JournalEntry, int, error)
	Get(ctx context.Context, id int64) (JournalEntry, error)
	GetBySource(ctx context.Context, module string, ref uuid.UUID) (JournalEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a posting transaction.
// Post and Void run entirely inside one transaction so that an entry and
// its lines commit as a single unit.
type TxRepository interface {
	InsertJournalEntry(ctx context.Context, draft EntryDraft, reversesID *int64) (JournalEntry, error)
	InsertJournalLines(ctx context.Context, entryID int64, lines []LineDraft) error
	LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error
	GetJournalForUpdate(ctx context.Context, entryID int64) (JournalEntry, error)
	HasReversal(ctx context.Context, entryID int64) (bool, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const entryColumns = `id, number, date, description, source_module, source_id, posted_by, posted_at, reverses_id, created_at`

func (r *repository) List(ctx context.Context, filter ListFilter) ([]JournalEntry, int, error) {
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
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += fmt.Sprintf(" AND (number ILIKE $%d OR description ILIKE $%d)", len(args), len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("journals: count: %w", err)
	}

	p := internalShared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, p.PerPage, p.Offset())
	query := `SELECT ` + entryColumns + ` FROM journal_entries` + where +
		fmt.Sprintf(` ORDER BY date DESC, number DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("journals: list: %w", err)
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (JournalEntry, error) {
	row := r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id = $1`, id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	lines, err := queryLines(ctx, r.db, id)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

// GetBySource resolves the entry a source document already posted, via its
// idempotency link.
func (r *repository) GetBySource(ctx context.Context, module string, ref uuid.UUID) (JournalEntry, error) {
	row := r.db.QueryRow(ctx, `SELECT e.id, e.number, e.date, e.description, e.source_module, e.source_id, e.posted_by, e.posted_at, e.reverses_id, e.created_at
FROM journal_entries e
JOIN source_links s ON s.je_id = e.id
WHERE s.module = $1 AND s.ref_id = $2`, module, ref)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	lines, err := queryLines(ctx, r.db, entry.ID)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("journals: begin tx: %w", err)
	}
	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, draft EntryDraft, reversesID *int64) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (number, date, description, source_module, source_id, posted_by, reverses_id)
VALUES (COALESCE(NULLIF($1, ''), 'JE-' || to_char(nextval('journal_number_seq'), 'FM000000')), $2, $3, $4, $5, $6, $7)
RETURNING `+entryColumns, draft.Number, draft.Date, draft.Description, draft.SourceModule, draft.SourceID, draft.PostedBy, reversesID)
	entry, err := scanEntry(row)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("journals: insert entry: %w", err)
	}
	return entry, nil
}

func (r *txRepository) InsertJournalLines(ctx context.Context, entryID int64, lines []LineDraft) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (je_id, account_id, debit, credit, memo)
VALUES ($1, $2, $3, $4, $5)`, entryID, line.AccountID, line.Debit.String(), line.Credit.String(), line.Memo); err != nil {
			return fmt.Errorf("journals: insert line: %w", err)
		}
	}
	return nil
}

func (r *txRepository) LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (module, ref_id, je_id) VALUES ($1, $2, $3)`, module, ref, entryID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_source_links" {
			return shared.ErrSourceConflict
		}
		return fmt.Errorf("journals: link source: %w", err)
	}
	return nil
}

func (r *txRepository) GetJournalForUpdate(ctx context.Context, entryID int64) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id = $1 FOR UPDATE`, entryID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	lines, err := queryLines(ctx, r.tx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

func (r *txRepository) HasReversal(ctx context.Context, entryID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_entries WHERE reverses_id = $1)`, entryID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("journals: reversal check: %w", err)
	}
	return exists, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q queryer, entryID int64) ([]JournalLine, error) {
	rows, err := q.Query(ctx, `SELECT id, je_id, account_id, debit::text, credit::text, memo
FROM journal_lines WHERE je_id = $1 ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, fmt.Errorf("journals: query lines: %w", err)
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var (
			line          JournalLine
			debit, credit string
		)
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &debit, &credit, &line.Memo); err != nil {
			return nil, err
		}
		if line.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, fmt.Errorf("journals: parse debit: %w", err)
		}
		if line.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, fmt.Errorf("journals: parse credit: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.Number, &e.Date, &e.Description, &e.SourceModule, &e.SourceID,
		&e.PostedBy, &e.PostedAt, &e.ReversesID, &e.CreatedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	return e, nil
}
