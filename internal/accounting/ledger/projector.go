package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
)

// opening converts raw debit and credit sums into a signed balance on the
// account's normal side.
func opening(side accounts.NormalSide, debit, credit decimal.Decimal) decimal.Decimal {
	if side == accounts.SideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// project folds ordered lines into ledger items with a running balance.
// Reversal entries appear as regular rows; a voided entry and its reversal
// cancel arithmetically, leaving the closing balance unchanged. Projecting
// the same inputs twice yields the same view.
func project(account accounts.Account, openingBalance decimal.Decimal, lines []EntryLine) View {
	side := account.Type.NormalSide()
	view := View{
		AccountID:   account.ID,
		AccountCode: account.Code,
		AccountName: account.NameEn,
		NormalSide:  side,
		Opening:     openingBalance,
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
		Closing:     openingBalance,
		Items:       make([]Item, 0, len(lines)),
	}
	running := openingBalance
	for _, line := range lines {
		if side == accounts.SideDebit {
			running = running.Add(line.Debit).Sub(line.Credit)
		} else {
			running = running.Add(line.Credit).Sub(line.Debit)
		}
		view.TotalDebit = view.TotalDebit.Add(line.Debit)
		view.TotalCredit = view.TotalCredit.Add(line.Credit)
		view.Items = append(view.Items, Item{
			EntryID:     line.EntryID,
			Number:      line.Number,
			Date:        line.Date,
			Description: line.Description,
			Memo:        line.Memo,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Balance:     running,
		})
	}
	view.Closing = running
	return view
}
