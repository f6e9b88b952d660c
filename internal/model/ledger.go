package model

import (
	"time"

	"RifasCuba/internal/money"
)

// User holds the three balances of a player. All balances are non-negative.
type User struct {
	ID         int64
	FirstName  string
	USD        money.Amount // withdrawable
	CUP        money.Amount // withdrawable, local currency
	BonusUSD   money.Amount // spendable on bets only
	ReferredBy int64        // 0 when the user joined without a referral link
	CreatedAt  time.Time
}

// SpendableUSD is what a USD-priced bet may consume.
func (u User) SpendableUSD() money.Amount {
	return u.USD + u.BonusUSD
}

// Bet is immutable once recorded.
type Bet struct {
	ID        int64
	UserID    int64
	Lottery   Lottery
	Type      BetType
	Raw       string
	CostUSD   money.Amount
	CostCUP   money.Amount
	CreatedAt time.Time
}

type TxType string

const (
	TxDeposit  TxType = "deposit"
	TxWithdraw TxType = "withdraw"
	TxTransfer TxType = "transfer"
)

// TxStatus moves one way: pending -> approved | rejected.
type TxStatus string

const (
	TxPending  TxStatus = "pending"
	TxApproved TxStatus = "approved"
	TxRejected TxStatus = "rejected"
)

func (s TxStatus) Terminal() bool {
	return s == TxApproved || s == TxRejected
}

// Transaction is a deposit, withdrawal or transfer initiated by UserID.
type Transaction struct {
	ID           int64
	UserID       int64
	Type         TxType
	AmountUSD    money.Amount
	AmountCUP    money.Amount
	MethodID     int64  // deposit and withdraw
	Proof        string // deposit: telegram file id or uploaded URL
	Details      string // withdraw: destination account
	TargetUserID int64  // transfer
	Status       TxStatus
	AdminNote    string
	CreatedAt    time.Time
	ResolvedAt   time.Time
}

// MethodKind separates deposit methods from withdrawal methods.
type MethodKind string

const (
	MethodDeposit  MethodKind = "deposit"
	MethodWithdraw MethodKind = "withdraw"
)

type PaymentMethod struct {
	ID      int64
	Kind    MethodKind
	Name    string
	Card    string
	Confirm string
	Active  bool
}

// Price is the default cost of a bet type when the bet text names no amount.
type Price struct {
	CUP money.Amount
	USD money.Amount
}

// Delta is a relative balance change applied atomically by the store.
type Delta struct {
	UserID int64
	USD    money.Amount
	CUP    money.Amount
	Bonus  money.Amount
}

func (d Delta) IsZero() bool {
	return d.USD == 0 && d.CUP == 0 && d.Bonus == 0
}

type Currency string

const (
	CurrencyUSD Currency = "usd"
	CurrencyCUP Currency = "cup"
)
