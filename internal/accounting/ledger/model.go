package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
)

// EntryLine is one journal line touching the projected account, joined with
// its entry header. Lines arrive ordered by (entry date, entry number, line
// id) so the running balance is deterministic.
type EntryLine struct {
	EntryID     int64
	Number      string
	Date        time.Time
	Description string
	Memo        string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// Item is a ledger row with the running balance after applying the line.
type Item struct {
	EntryID     int64
	Number      string
	Date        time.Time
	Description string
	Memo        string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Balance     decimal.Decimal
}

// View is a projected ledger for one account over an inclusive date range.
// Opening covers everything strictly before From; Closing equals Opening
// plus the period movement.
type View struct {
	AccountID   int64
	AccountCode string
	AccountName string
	NormalSide  accounts.NormalSide
	From        time.Time
	To          time.Time
	Opening     decimal.Decimal
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Closing     decimal.Decimal
	Items       []Item
}

// Statement is a customer-facing ledger over the customer's receivable
// account.
type Statement struct {
	CustomerID   int64
	CustomerName string
	View
}
