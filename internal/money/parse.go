package money

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceLookup returns the default (cup, usd) price for a bet type.
type PriceLookup func(betType string) (cup, usd Amount)

var costPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(usd|cup)`)

// ParseAmount extracts a single amount from free text such as "10 usd" or "500,5 cup".
// Text without a currency token is read as a bare USD number. Anything unparseable,
// any negative number and anything above MaxAmount yields (0, 0).
func ParseAmount(text string) (usd, cup Amount) {
	t := strings.TrimSpace(strings.ReplaceAll(strings.ToLower(text), ",", "."))
	switch {
	case strings.Contains(t, "usd"):
		return leadingNumber(t, "usd"), 0
	case strings.Contains(t, "cup"):
		return 0, leadingNumber(t, "cup")
	default:
		return number(t), 0
	}
}

func leadingNumber(t, token string) Amount {
	before, _, _ := strings.Cut(t, token)
	return number(before)
}

func number(s string) Amount {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return 0
	}
	a, err := Bounded(d)
	if err != nil {
		return 0
	}
	return a
}

// ParseBetCost finds every "<number> usd|cup" in raw and prices the bet with the
// rightmost one, so pick numbers written before the price never count as the cost.
// Without any tagged number the bet type's default price is used. ok is false when
// the resulting cost is zero in both currencies.
func ParseBetCost(raw, betType string, lookup PriceLookup) (ok bool, usd, cup Amount) {
	matches := costPattern.FindAllStringSubmatch(strings.ToLower(raw), -1)
	if len(matches) > 0 {
		last := matches[len(matches)-1]
		val := number(last[1])
		if last[2] == "usd" {
			usd = val
		} else {
			cup = val
		}
	} else if lookup != nil {
		cup, usd = lookup(betType)
	}
	if usd == 0 && cup == 0 {
		return false, 0, 0
	}
	return true, usd, cup
}
