package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GLIntegrityChecker scans posted journal entries for balance violations.
// Entries are balanced by construction at posting time, so any hit here
// means storage corruption or an out-of-band write.
type GLIntegrityChecker struct {
	db        *pgxpool.Pool
	logger    *slog.Logger
	tolerance string
}

// NewGLIntegrityChecker constructs the checker. Tolerance is the maximum
// acceptable absolute difference between entry debits and credits.
func NewGLIntegrityChecker(db *pgxpool.Pool, logger *slog.Logger) *GLIntegrityChecker {
	return &GLIntegrityChecker{db: db, logger: logger, tolerance: "0.001"}
}

// Violation is one unbalanced journal entry found by the scan.
type Violation struct {
	EntryID    int64
	Number     string
	Difference string
}

// Scan returns every posted entry whose debit and credit totals differ by
// more than the tolerance.
func (c *GLIntegrityChecker) Scan(ctx context.Context) ([]Violation, error) {
	rows, err := c.db.Query(ctx, `SELECT e.id, e.number, (SUM(l.debit) - SUM(l.credit))::text AS diff
		FROM journal_entries e
		JOIN journal_lines l ON l.je_id = e.id
		GROUP BY e.id, e.number
		HAVING ABS(SUM(l.debit) - SUM(l.credit)) > $1::numeric
		ORDER BY e.id`, c.tolerance)
	if err != nil {
		return nil, fmt.Errorf("gl integrity scan: %w", err)
	}
	defer rows.Close()

	var violations []Violation
	for rows.Next() {
		var v Violation
		if err := rows.Scan(&v.EntryID, &v.Number, &v.Difference); err != nil {
			return nil, fmt.Errorf("gl integrity scan: %w", err)
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

// Handle processes TaskTypeGLIntegrity tasks. Violations are logged, not
// repaired; the ledger is append-only and corrections belong to a human.
func (c *GLIntegrityChecker) Handle(ctx context.Context, _ *asynq.Task) error {
	violations, err := c.Scan(ctx)
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		c.logger.Info("gl integrity scan clean", slog.String("job", "gl_integrity"))
		return nil
	}
	for _, v := range violations {
		c.logger.Error("unbalanced journal entry",
			slog.String("job", "gl_integrity"),
			slog.Int64("je_id", v.EntryID),
			slog.String("number", v.Number),
			slog.String("difference", v.Difference))
	}
	return fmt.Errorf("gl integrity scan: %d unbalanced entries", len(violations))
}
