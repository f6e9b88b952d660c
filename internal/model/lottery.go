package model

import "strings"

// Lottery is a draw users can bet on.
type Lottery string

const (
	LotteryFlorida Lottery = "Florida"
	LotteryGeorgia Lottery = "Georgia"
	LotteryNewYork Lottery = "Nueva York"
)

// Lotteries lists every lottery in menu order.
var Lotteries = []Lottery{LotteryFlorida, LotteryGeorgia, LotteryNewYork}

// Key is the stable identifier used in callback data.
func (l Lottery) Key() string {
	switch l {
	case LotteryFlorida:
		return "florida"
	case LotteryGeorgia:
		return "georgia"
	case LotteryNewYork:
		return "new_york"
	}
	return ""
}

func (l Lottery) Emoji() string {
	switch l {
	case LotteryFlorida:
		return "🦩"
	case LotteryGeorgia:
		return "🍑"
	case LotteryNewYork:
		return "🗽"
	}
	return "🎰"
}

// ParseLottery accepts either a callback key ("new_york") or a display name ("Nueva York").
func ParseLottery(s string) (Lottery, bool) {
	s = strings.TrimSpace(s)
	for _, l := range Lotteries {
		if strings.EqualFold(s, l.Key()) || strings.EqualFold(s, string(l)) {
			return l, true
		}
	}
	return "", false
}

// BetType is the kind of play.
type BetType string

const (
	BetFijo     BetType = "fijo"
	BetCorridos BetType = "corridos"
	BetCentena  BetType = "centena"
	BetParle    BetType = "parle"
)

var BetTypes = []BetType{BetFijo, BetCorridos, BetCentena, BetParle}

func ParseBetType(s string) (BetType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range BetTypes {
		if s == string(t) {
			return t, true
		}
	}
	return "", false
}

// Title returns the capitalized name shown in menus.
func (t BetType) Title() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}
