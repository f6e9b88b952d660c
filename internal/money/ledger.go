package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DebitUSDWithBonus spends bonus first and draws any remainder from withdrawable usd.
func DebitUSDWithBonus(usd, bonus, cost Amount) (newUSD, newBonus Amount, err error) {
	if cost < 0 {
		return usd, bonus, fmt.Errorf("negative cost %s", cost)
	}
	if usd+bonus < cost {
		return usd, bonus, ErrInsufficientFunds
	}
	fromBonus := min(bonus, cost)
	return usd - (cost - fromBonus), bonus - fromBonus, nil
}

// CUPToUSD converts at rate CUP per USD. The rate is validated where it is configured.
func CUPToUSD(amount Amount, rate decimal.Decimal) Amount {
	if !rate.IsPositive() {
		return 0
	}
	return FromDecimal(amount.Decimal().Div(rate))
}

func USDToCUP(amount Amount, rate decimal.Decimal) Amount {
	return FromDecimal(amount.Decimal().Mul(rate))
}

// Percent returns pct percent of a, rounded to hundredths.
func Percent(a Amount, pct int64) Amount {
	return FromDecimal(a.Decimal().Mul(decimal.NewFromInt(pct)).Div(hundred))
}
