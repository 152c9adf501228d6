package journals

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// Violation codes reported by Validate.
const (
	CodeTooFewLines     = "too_few_lines"
	CodeUnknownAccount  = "unknown_account"
	CodeInactiveAccount = "inactive_account"
	CodeGroupAccount    = "group_account"
	CodeNegativeAmount  = "negative_amount"
	CodeTwoSidedLine    = "two_sided_line"
	CodeEmptyLine       = "empty_line"
	CodeUnbalanced      = "unbalanced_entry"
)

// ValidationError points at a single violation. Line is the zero-based line
// index, or -1 for entry-level violations.
type ValidationError struct {
	Code    string
	Line    int
	Field   string
	Message string
	Detail  string
}

func (e ValidationError) Error() string {
	if e.Line >= 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// ValidationErrors is the complete violation list for a draft. Every check
// runs; nothing is fail-fast, so a caller can display all problems at once.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return "accounting: invalid journal draft: " + strings.Join(msgs, "; ")
}

// AccountResolver resolves account references for validation. Satisfied by
// the accounts service.
type AccountResolver interface {
	ResolvePostable(ctx context.Context, id int64) (accounts.Account, error)
}

// Validate checks the draft against every posting rule and collects all
// violations. The second return carries infrastructure failures from the
// registry, which are not validation results.
func Validate(ctx context.Context, draft EntryDraft, registry AccountResolver) (ValidationErrors, error) {
	var violations ValidationErrors

	if len(draft.Lines) < 2 {
		violations = append(violations, ValidationError{
			Code:    CodeTooFewLines,
			Line:    -1,
			Field:   "lines",
			Message: "a journal entry requires at least two lines",
		})
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for idx, line := range draft.Lines {
		if _, err := registry.ResolvePostable(ctx, line.AccountID); err != nil {
			switch {
			case errors.Is(err, shared.ErrAccountNotFound):
				violations = append(violations, ValidationError{
					Code: CodeUnknownAccount, Line: idx, Field: "account_id",
					Message: fmt.Sprintf("account %d does not exist", line.AccountID),
				})
			case errors.Is(err, shared.ErrAccountInactive):
				violations = append(violations, ValidationError{
					Code: CodeInactiveAccount, Line: idx, Field: "account_id",
					Message: fmt.Sprintf("account %d is inactive", line.AccountID),
				})
			case errors.Is(err, shared.ErrGroupAccountNotPostable):
				violations = append(violations, ValidationError{
					Code: CodeGroupAccount, Line: idx, Field: "account_id",
					Message: fmt.Sprintf("account %d is a group and cannot take postings", line.AccountID),
				})
			default:
				return nil, err
			}
		}

		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			violations = append(violations, ValidationError{
				Code: CodeNegativeAmount, Line: idx,
				Message: "debit and credit must not be negative",
			})
			continue
		}
		debitSet := line.Debit.IsPositive()
		creditSet := line.Credit.IsPositive()
		switch {
		case debitSet && creditSet:
			violations = append(violations, ValidationError{
				Code: CodeTwoSidedLine, Line: idx,
				Message: "a line cannot carry both a debit and a credit",
			})
		case !debitSet && !creditSet:
			violations = append(violations, ValidationError{
				Code: CodeEmptyLine, Line: idx,
				Message: "a line must carry a debit or a credit",
			})
		}
		totalDebit = totalDebit.Add(line.Debit)
		totalCredit = totalCredit.Add(line.Credit)
	}

	if len(draft.Lines) > 0 && !shared.BalancesWithin(totalDebit, totalCredit) {
		violations = append(violations, ValidationError{
			Code:    CodeUnbalanced,
			Line:    -1,
			Message: fmt.Sprintf("entry does not balance: debit %s, credit %s", totalDebit, totalCredit),
			Detail:  totalDebit.Sub(totalCredit).String(),
		})
	}

	if len(violations) > 0 {
		return violations, nil
	}
	return nil, nil
}
