package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"RifasCuba/internal/metrics"
	"RifasCuba/internal/model"
	"RifasCuba/internal/money"
)

// Retrying bounds every call to the wrapped store with Timeout and retries once
// when the failure looks transient. Reads and idempotent writes retry on any
// transient failure. Other writes are replayed only when the first attempt
// certainly left nothing behind (see replayable). Failures that exhaust the
// retry, or that leave a write's outcome unknown, are reported as
// model.ErrTransient.
type Retrying struct {
	Store   Store
	Timeout time.Duration
	Backoff time.Duration
	Log     *zap.Logger
}

func NewRetrying(s Store, timeout time.Duration, log *zap.Logger) *Retrying {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Retrying{Store: s, Timeout: timeout, Backoff: 200 * time.Millisecond, Log: log}
}

// CommitError reports a failed COMMIT. The transaction may or may not be
// durable, so the write is never replayed.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string { return "commit: " + e.Err.Error() }
func (e *CommitError) Unwrap() error { return e.Err }

// RolledBackError reports an infrastructure failure before COMMIT was sent.
// Nothing was written.
type RolledBackError struct {
	Err error
}

func (e *RolledBackError) Error() string { return e.Err.Error() }
func (e *RolledBackError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth one more attempt of a read or an
// idempotent write. A failed commit never is.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ce *CommitError
	if errors.As(err, &ce) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return isBusy(err) || strings.Contains(err.Error(), "connection reset") ||
		strings.Contains(err.Error(), "connection refused")
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// replayable reports whether a failed non-idempotent write certainly had no
// effect: the transaction was rolled back before COMMIT, the driver refused
// the connection before sending anything, or SQLite never ran the statement.
func replayable(err error) bool {
	var ce *CommitError
	if errors.As(err, &ce) {
		return false
	}
	var rb *RolledBackError
	if errors.As(err, &rb) {
		return IsTransient(rb.Err)
	}
	return errors.Is(err, driver.ErrBadConn) || isBusy(err)
}

func do[T any](r *Retrying, ctx context.Context, op string, retry func(error) bool, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			metrics.StoreRetriesTotal.WithLabelValues(op).Inc()
			r.Log.Warn("retrying store call", zap.String("op", op), zap.Error(err))
			select {
			case <-ctx.Done():
				return v, fmt.Errorf("%s: %w", op, model.ErrTransient)
			case <-time.After(r.Backoff):
			}
		}
		actx, cancel := context.WithTimeout(ctx, r.Timeout)
		v, err = fn(actx)
		cancel()
		if err == nil || !retry(err) || ctx.Err() != nil {
			break
		}
	}
	var ce *CommitError
	switch {
	case err == nil:
		return v, nil
	case errors.As(err, &ce):
		r.Log.Error("store write outcome unknown", zap.String("op", op), zap.Error(err))
	case IsTransient(err):
		r.Log.Error("store call failed", zap.String("op", op), zap.Error(err))
	default:
		return v, err
	}
	return v, fmt.Errorf("%s: %w: %v", op, model.ErrTransient, err)
}

// read runs an idempotent call.
func read[T any](r *Retrying, ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	return do(r, ctx, op, IsTransient, fn)
}

// write runs a call that must not be applied twice.
func write[T any](r *Retrying, ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	return do(r, ctx, op, replayable, fn)
}

func exec(r *Retrying, ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := read(r, ctx, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

type ensured struct {
	u       model.User
	created bool
}

func (r *Retrying) EnsureUser(ctx context.Context, id int64, firstName string) (model.User, bool, error) {
	e, err := write(r, ctx, "ensure_user", func(ctx context.Context) (ensured, error) {
		u, created, err := r.Store.EnsureUser(ctx, id, firstName)
		return ensured{u, created}, err
	})
	return e.u, e.created, err
}

func (r *Retrying) GetUser(ctx context.Context, id int64) (model.User, error) {
	return read(r, ctx, "get_user", func(ctx context.Context) (model.User, error) {
		return r.Store.GetUser(ctx, id)
	})
}

func (r *Retrying) SetReferrer(ctx context.Context, userID, referrerID int64) (bool, error) {
	return write(r, ctx, "set_referrer", func(ctx context.Context) (bool, error) {
		return r.Store.SetReferrer(ctx, userID, referrerID)
	})
}

func (r *Retrying) CountReferrals(ctx context.Context, referrerID int64) (int, error) {
	return read(r, ctx, "count_referrals", func(ctx context.Context) (int, error) {
		return r.Store.CountReferrals(ctx, referrerID)
	})
}

func (r *Retrying) PlaceBet(ctx context.Context, bet model.Bet, c *Commission) (model.Bet, error) {
	return write(r, ctx, "place_bet", func(ctx context.Context) (model.Bet, error) {
		return r.Store.PlaceBet(ctx, bet, c)
	})
}

func (r *Retrying) ListBets(ctx context.Context, userID int64, limit int) ([]model.Bet, error) {
	return read(r, ctx, "list_bets", func(ctx context.Context) ([]model.Bet, error) {
		return r.Store.ListBets(ctx, userID, limit)
	})
}

func (r *Retrying) CreateDeposit(ctx context.Context, t model.Transaction) (model.Transaction, error) {
	return write(r, ctx, "create_deposit", func(ctx context.Context) (model.Transaction, error) {
		return r.Store.CreateDeposit(ctx, t)
	})
}

func (r *Retrying) AttachDepositProof(ctx context.Context, txID, userID int64, proof string) error {
	return exec(r, ctx, "attach_proof", func(ctx context.Context) error {
		return r.Store.AttachDepositProof(ctx, txID, userID, proof)
	})
}

func (r *Retrying) CreateWithdrawal(ctx context.Context, t model.Transaction) (model.Transaction, error) {
	return write(r, ctx, "create_withdrawal", func(ctx context.Context) (model.Transaction, error) {
		return r.Store.CreateWithdrawal(ctx, t)
	})
}

func (r *Retrying) Transfer(ctx context.Context, from, to int64, amount money.Amount) (model.Transaction, error) {
	return write(r, ctx, "transfer", func(ctx context.Context) (model.Transaction, error) {
		return r.Store.Transfer(ctx, from, to, amount)
	})
}

func (r *Retrying) ResolveTransaction(ctx context.Context, id int64, status model.TxStatus, note string, settle Settle) (model.Transaction, error) {
	return write(r, ctx, "resolve", func(ctx context.Context) (model.Transaction, error) {
		return r.Store.ResolveTransaction(ctx, id, status, note, settle)
	})
}

func (r *Retrying) GetTransaction(ctx context.Context, id int64) (model.Transaction, error) {
	return read(r, ctx, "get_transaction", func(ctx context.Context) (model.Transaction, error) {
		return r.Store.GetTransaction(ctx, id)
	})
}

func (r *Retrying) ListPending(ctx context.Context, typ model.TxType) ([]model.Transaction, error) {
	return read(r, ctx, "list_pending", func(ctx context.Context) ([]model.Transaction, error) {
		return r.Store.ListPending(ctx, typ)
	})
}

func (r *Retrying) ExchangeRate(ctx context.Context) (decimal.Decimal, error) {
	return read(r, ctx, "exchange_rate", func(ctx context.Context) (decimal.Decimal, error) {
		return r.Store.ExchangeRate(ctx)
	})
}

func (r *Retrying) SetExchangeRate(ctx context.Context, rate decimal.Decimal) error {
	return exec(r, ctx, "set_exchange_rate", func(ctx context.Context) error {
		return r.Store.SetExchangeRate(ctx, rate)
	})
}

func (r *Retrying) Prices(ctx context.Context) (map[model.BetType]model.Price, error) {
	return read(r, ctx, "prices", func(ctx context.Context) (map[model.BetType]model.Price, error) {
		return r.Store.Prices(ctx)
	})
}

func (r *Retrying) SetPrice(ctx context.Context, bt model.BetType, p model.Price) error {
	return exec(r, ctx, "set_price", func(ctx context.Context) error {
		return r.Store.SetPrice(ctx, bt, p)
	})
}

func (r *Retrying) ListMethods(ctx context.Context, kind model.MethodKind, activeOnly bool) ([]model.PaymentMethod, error) {
	return read(r, ctx, "list_methods", func(ctx context.Context) ([]model.PaymentMethod, error) {
		return r.Store.ListMethods(ctx, kind, activeOnly)
	})
}

func (r *Retrying) GetMethod(ctx context.Context, kind model.MethodKind, id int64) (model.PaymentMethod, error) {
	return read(r, ctx, "get_method", func(ctx context.Context) (model.PaymentMethod, error) {
		return r.Store.GetMethod(ctx, kind, id)
	})
}

func (r *Retrying) AddMethod(ctx context.Context, m model.PaymentMethod) (model.PaymentMethod, error) {
	return write(r, ctx, "add_method", func(ctx context.Context) (model.PaymentMethod, error) {
		return r.Store.AddMethod(ctx, m)
	})
}

func (r *Retrying) SetMethodActive(ctx context.Context, kind model.MethodKind, id int64, active bool) error {
	return exec(r, ctx, "set_method_active", func(ctx context.Context) error {
		return r.Store.SetMethodActive(ctx, kind, id, active)
	})
}

func (r *Retrying) DeleteMethod(ctx context.Context, kind model.MethodKind, id int64) error {
	_, err := write(r, ctx, "delete_method", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.Store.DeleteMethod(ctx, kind, id)
	})
	return err
}

func (r *Retrying) Ping(ctx context.Context) error {
	return exec(r, ctx, "ping", r.Store.Ping)
}

func (r *Retrying) Close() error { return r.Store.Close() }
