package ledger

import (
	"time"

	"RifasCuba/internal/model"
)

type window struct{ from, to int } // minutes since midnight, inclusive

// georgiaWindows are the local-time periods Georgia accepts bets in.
var georgiaWindows = []window{
	{9 * 60, 12 * 60},
	{14 * 60, 18*60 + 30},
	{20 * 60, 23 * 60},
}

// LotteryOpen reports whether bets on l are accepted at t, evaluated in loc.
func LotteryOpen(l model.Lottery, t time.Time, loc *time.Location) bool {
	if l != model.LotteryGeorgia {
		return true
	}
	if loc != nil {
		t = t.In(loc)
	}
	m := t.Hour()*60 + t.Minute()
	for _, w := range georgiaWindows {
		if m >= w.from && m <= w.to {
			return true
		}
	}
	return false
}
