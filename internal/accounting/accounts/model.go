package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalSide identifies the side on which an account's balance grows.
type NormalSide string

const (
	SideDebit  NormalSide = "DEBIT"
	SideCredit NormalSide = "CREDIT"
)

// NormalSide derives the normal balance side from the account type.
// Assets and expenses grow with debits; the rest grow with credits.
func (t AccountType) NormalSide() NormalSide {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// SubledgerType tags accounts that mirror a subledger.
type SubledgerType string

const (
	SubledgerNone SubledgerType = "NONE"
	SubledgerAR   SubledgerType = "AR"
	SubledgerAP   SubledgerType = "AP"
)

// Account models a chart of accounts node. Balance is derived from posted
// journal lines; the ledger is the authority, never this column.
type Account struct {
	ID        int64
	Code      string
	NameEn    string
	NameAr    string
	Type      AccountType
	ParentID  *int64
	IsGroup   bool
	IsActive  bool
	Subledger SubledgerType
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalSide returns the account's normal balance side.
func (a Account) NormalSide() NormalSide {
	return a.Type.NormalSide()
}

// AccountNode is an account with its resolved children, ordered by code.
type AccountNode struct {
	Account
	Children []*AccountNode
}
