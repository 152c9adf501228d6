package shared

import "github.com/shopspring/decimal"

// BalanceEpsilon is the tolerance for debit/credit equality. Amounts travel
// as decimal strings end to end, so drift only enters through upstream
// rounding of allocation splits.
var BalanceEpsilon = decimal.New(1, -3)

// BalancesWithin reports whether debit and credit agree within BalanceEpsilon.
func BalancesWithin(debit, credit decimal.Decimal) bool {
	return debit.Sub(credit).Abs().LessThanOrEqual(BalanceEpsilon)
}
