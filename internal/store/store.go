package store

import (
	"context"

	"github.com/shopspring/decimal"

	"RifasCuba/internal/model"
	"RifasCuba/internal/money"
)

// Settle computes the balance changes that accompany a transaction leaving
// pending. It runs inside the store's atomic section, after the status guard.
type Settle func(tx model.Transaction) ([]model.Delta, error)

// Commission is an optional credit paid alongside a bet.
type Commission struct {
	ReferrerID int64
	Amount     money.Amount
}

// Store is the ledger's persistence boundary. Every balance change it performs
// is a relative delta guarded against going negative; operations that touch
// more than one row are atomic.
type Store interface {
	// EnsureUser creates the user with zero balances when absent. created
	// reports whether a row was inserted.
	EnsureUser(ctx context.Context, id int64, firstName string) (u model.User, created bool, err error)
	GetUser(ctx context.Context, id int64) (model.User, error)
	// SetReferrer links userID to referrerID unless a link already exists.
	SetReferrer(ctx context.Context, userID, referrerID int64) (bool, error)
	CountReferrals(ctx context.Context, referrerID int64) (int, error)

	// PlaceBet debits CostUSD (bonus first) and CostCUP, records the bet and
	// credits the commission, all or nothing.
	PlaceBet(ctx context.Context, bet model.Bet, c *Commission) (model.Bet, error)
	ListBets(ctx context.Context, userID int64, limit int) ([]model.Bet, error)

	CreateDeposit(ctx context.Context, tx model.Transaction) (model.Transaction, error)
	AttachDepositProof(ctx context.Context, txID, userID int64, proof string) error
	// CreateWithdrawal escrows the requested amounts and records the pending
	// transaction atomically.
	CreateWithdrawal(ctx context.Context, tx model.Transaction) (model.Transaction, error)
	// Transfer moves usd between two users and records an approved transfer.
	Transfer(ctx context.Context, from, to int64, amount money.Amount) (model.Transaction, error)
	// ResolveTransaction moves a pending transaction to status and applies the
	// deltas returned by settle. It fails with ErrAlreadyResolved when the
	// transaction is not pending.
	ResolveTransaction(ctx context.Context, id int64, status model.TxStatus, note string, settle Settle) (model.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (model.Transaction, error)
	// ListPending returns pending transactions, oldest first. An empty typ
	// matches every type.
	ListPending(ctx context.Context, typ model.TxType) ([]model.Transaction, error)

	// ExchangeRate returns ErrNotFound while no rate was ever stored.
	ExchangeRate(ctx context.Context) (decimal.Decimal, error)
	SetExchangeRate(ctx context.Context, rate decimal.Decimal) error
	Prices(ctx context.Context) (map[model.BetType]model.Price, error)
	SetPrice(ctx context.Context, bt model.BetType, p model.Price) error

	ListMethods(ctx context.Context, kind model.MethodKind, activeOnly bool) ([]model.PaymentMethod, error)
	GetMethod(ctx context.Context, kind model.MethodKind, id int64) (model.PaymentMethod, error)
	AddMethod(ctx context.Context, m model.PaymentMethod) (model.PaymentMethod, error)
	SetMethodActive(ctx context.Context, kind model.MethodKind, id int64, active bool) error
	DeleteMethod(ctx context.Context, kind model.MethodKind, id int64) error

	Ping(ctx context.Context) error
	Close() error
}
