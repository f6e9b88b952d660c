package events

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// TopicLedger carries every ledger event; the message key is the user id so one
// user's events stay ordered within a partition.
const TopicLedger = "rifas.ledger"

const (
	TypeBetPlaced           = "bet_placed"
	TypeTransactionCreated  = "transaction_created"
	TypeTransactionResolved = "transaction_resolved"
	TypeCommissionCredited  = "commission_credited"
	TypeTransferCompleted   = "transfer_completed"
)

// Event is a fact the ledger already committed.
type Event interface {
	EventType() string
	UserKey() int64
}

type BetPlaced struct {
	BetID        int64  `json:"bet_id"`
	UserID       int64  `json:"user_id"`
	Lottery      string `json:"lottery"`
	BetType      string `json:"bet_type"`
	CostUSDCents int64  `json:"cost_usd_cents"`
	CostCUPCents int64  `json:"cost_cup_cents"`
}

type TransactionCreated struct {
	TxID           int64  `json:"tx_id"`
	UserID         int64  `json:"user_id"`
	Type           string `json:"type"`
	AmountUSDCents int64  `json:"amount_usd_cents"`
	AmountCUPCents int64  `json:"amount_cup_cents"`
	MethodID       int64  `json:"method_id,omitempty"`
}

type TransactionResolved struct {
	TxID   int64  `json:"tx_id"`
	UserID int64  `json:"user_id"`
	Type   string `json:"type"`
	Status string `json:"status"`
	// BonusUSDCents is the promotional credit granted with an approved deposit.
	BonusUSDCents int64 `json:"bonus_usd_cents,omitempty"`
}

type CommissionCredited struct {
	ReferrerID  int64 `json:"referrer_id"`
	BettorID    int64 `json:"bettor_id"`
	BetID       int64 `json:"bet_id,omitempty"`
	AmountCents int64 `json:"amount_cents"`
}

type TransferCompleted struct {
	TxID        int64 `json:"tx_id"`
	FromUserID  int64 `json:"from_user_id"`
	ToUserID    int64 `json:"to_user_id"`
	AmountCents int64 `json:"amount_cents"`
}

func (BetPlaced) EventType() string           { return TypeBetPlaced }
func (TransactionCreated) EventType() string  { return TypeTransactionCreated }
func (TransactionResolved) EventType() string { return TypeTransactionResolved }
func (CommissionCredited) EventType() string  { return TypeCommissionCredited }
func (TransferCompleted) EventType() string   { return TypeTransferCompleted }

func (e BetPlaced) UserKey() int64           { return e.UserID }
func (e TransactionCreated) UserKey() int64  { return e.UserID }
func (e TransactionResolved) UserKey() int64 { return e.UserID }
func (e CommissionCredited) UserKey() int64  { return e.ReferrerID }
func (e TransferCompleted) UserKey() int64   { return e.FromUserID }

// Envelope is the wire form of an event.
type Envelope struct {
	Type     string `json:"type"`
	TsUnixMs int64  `json:"ts_unix_ms"`
	Payload  Event  `json:"payload"`
}

func Wrap(e Event, now time.Time) Envelope {
	return Envelope{Type: e.EventType(), TsUnixMs: now.UnixMilli(), Payload: e}
}

func key(e Event) []byte {
	return []byte(strconv.FormatInt(e.UserKey(), 10))
}

// Publisher delivers committed ledger events. Delivery never affects the
// mutation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
