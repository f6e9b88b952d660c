package ledger

import (
	"RifasCuba/internal/model"
	"RifasCuba/internal/money"
	"RifasCuba/internal/store"
)

// commissionFor is the referrer's cut of a bet. Only the USD side pays;
// CUP-priced bets earn nothing.
func commissionFor(bettor model.User, costUSD money.Amount, pct int64) *store.Commission {
	if bettor.ReferredBy == 0 || bettor.ReferredBy == bettor.ID || !costUSD.IsPositive() || pct <= 0 {
		return nil
	}
	amt := money.Percent(costUSD, pct)
	if !amt.IsPositive() {
		return nil
	}
	return &store.Commission{ReferrerID: bettor.ReferredBy, Amount: amt}
}
