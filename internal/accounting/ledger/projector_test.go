package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
)

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func cashAccount() accounts.Account {
	return accounts.Account{ID: 3, Code: "1101", NameEn: "Main Cash", Type: accounts.AccountTypeAsset, IsActive: true}
}

func revenueAccount() accounts.Account {
	return accounts.Account{ID: 6, Code: "4100", NameEn: "Sales", Type: accounts.AccountTypeRevenue, IsActive: true}
}

func TestProjectDebitNormalRunningBalance(t *testing.T) {
	lines := []EntryLine{
		{EntryID: 1, Number: "JE-000001", Date: day(2), Debit: amt("1000"), Credit: decimal.Zero},
		{EntryID: 2, Number: "JE-000002", Date: day(5), Debit: decimal.Zero, Credit: amt("400")},
		{EntryID: 3, Number: "JE-000003", Date: day(9), Debit: amt("250"), Credit: decimal.Zero},
	}
	view := project(cashAccount(), amt("500"), lines)

	require.Equal(t, accounts.SideDebit, view.NormalSide)
	require.True(t, view.Opening.Equal(amt("500")))
	require.Len(t, view.Items, 3)
	require.True(t, view.Items[0].Balance.Equal(amt("1500")))
	require.True(t, view.Items[1].Balance.Equal(amt("1100")))
	require.True(t, view.Items[2].Balance.Equal(amt("1350")))
	require.True(t, view.Closing.Equal(amt("1350")))
	require.True(t, view.TotalDebit.Equal(amt("1250")))
	require.True(t, view.TotalCredit.Equal(amt("400")))

	// Closing always equals opening plus the signed period movement.
	movement := view.TotalDebit.Sub(view.TotalCredit)
	require.True(t, view.Closing.Equal(view.Opening.Add(movement)))
}

func TestProjectCreditNormalFlipsSigns(t *testing.T) {
	lines := []EntryLine{
		{EntryID: 1, Number: "JE-000001", Date: day(2), Credit: amt("900"), Debit: decimal.Zero},
		{EntryID: 2, Number: "JE-000002", Date: day(4), Debit: amt("100"), Credit: decimal.Zero},
	}
	view := project(revenueAccount(), decimal.Zero, lines)

	require.Equal(t, accounts.SideCredit, view.NormalSide)
	require.True(t, view.Items[0].Balance.Equal(amt("900")))
	require.True(t, view.Items[1].Balance.Equal(amt("800")))
	require.True(t, view.Closing.Equal(amt("800")))
}

func TestProjectEmptyRange(t *testing.T) {
	view := project(cashAccount(), amt("120.500"), nil)
	require.Empty(t, view.Items)
	require.True(t, view.Closing.Equal(view.Opening))
	require.True(t, view.TotalDebit.IsZero())
	require.True(t, view.TotalCredit.IsZero())
}

func TestProjectVoidedEntryCancelsOut(t *testing.T) {
	lines := []EntryLine{
		{EntryID: 1, Number: "JE-000007", Date: day(3), Debit: amt("300"), Credit: decimal.Zero},
		{EntryID: 2, Number: "JE-000007-VOID", Date: day(6), Debit: decimal.Zero, Credit: amt("300")},
	}
	view := project(cashAccount(), decimal.Zero, lines)
	require.Len(t, view.Items, 2)
	require.True(t, view.Closing.IsZero())
}

func TestProjectIsDeterministic(t *testing.T) {
	lines := []EntryLine{
		{EntryID: 1, Number: "JE-000001", Date: day(2), Debit: amt("10"), Credit: decimal.Zero},
		{EntryID: 2, Number: "JE-000002", Date: day(2), Debit: decimal.Zero, Credit: amt("4")},
	}
	first := project(cashAccount(), amt("1"), lines)
	second := project(cashAccount(), amt("1"), lines)
	require.Equal(t, len(first.Items), len(second.Items))
	require.True(t, first.Closing.Equal(second.Closing))
	for i := range first.Items {
		require.True(t, first.Items[i].Balance.Equal(second.Items[i].Balance))
	}
}

func TestOpeningSignedByNormalSide(t *testing.T) {
	require.True(t, opening(accounts.SideDebit, amt("700"), amt("200")).Equal(amt("500")))
	require.True(t, opening(accounts.SideCredit, amt("200"), amt("700")).Equal(amt("500")))
	require.True(t, opening(accounts.SideCredit, amt("700"), amt("200")).Equal(amt("-500")))
}
