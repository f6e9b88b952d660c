package session

import (
	"RifasCuba/internal/model"
	"RifasCuba/internal/money"
)

// Flow names the conversation a user is currently in.
type Flow string

const (
	FlowNone             Flow = "none"
	FlowPlaying          Flow = "playing"
	FlowAwaitingBet      Flow = "awaiting_bet"
	FlowDepositProof     Flow = "awaiting_deposit_proof"
	FlowWithdrawAmount   Flow = "awaiting_withdraw_amount"
	FlowWithdrawAccount  Flow = "awaiting_withdraw_account"
	FlowTransferTarget   Flow = "awaiting_transfer_target"
	FlowTransferAmount   Flow = "awaiting_transfer_amount"
	FlowAdminAddDeposit  Flow = "admin_add_dep"
	FlowAdminAddWithdraw Flow = "admin_add_wit"
	FlowAdminSetRate     Flow = "admin_set_rate"
	FlowAdminSetPrice    Flow = "admin_set_price"
)

// State is one (flow, step, payload) combination. The set of implementations is
// closed: each step of each flow is its own type, so a step can only carry the
// data collected before it.
type State interface {
	Flow() Flow
	state()
}

type Idle struct{}

// Playing: lottery chosen, waiting for a bet type.
type Playing struct {
	Lottery model.Lottery `json:"lottery"`
}

// AwaitingBet: the next text message is the bet.
type AwaitingBet struct {
	Lottery model.Lottery `json:"lottery"`
	BetType model.BetType `json:"bet_type"`
}

// AwaitingDepositProof: the next photo with an amount caption is the deposit proof.
type AwaitingDepositProof struct {
	MethodID int64 `json:"method_id"`
}

type AwaitingWithdrawAmount struct {
	MethodID int64 `json:"method_id"`
}

// AwaitingWithdrawAccount expects "account | confirmation".
type AwaitingWithdrawAccount struct {
	MethodID int64        `json:"method_id"`
	Amount   money.Amount `json:"amount"`
}

type AwaitingTransferTarget struct{}

type AwaitingTransferAmount struct {
	Target int64 `json:"target"`
}

type AdminMethodName struct {
	Kind model.MethodKind `json:"kind"`
}

type AdminMethodCard struct {
	Kind model.MethodKind `json:"kind"`
	Name string           `json:"name"`
}

type AdminMethodConfirm struct {
	Kind model.MethodKind `json:"kind"`
	Name string           `json:"name"`
	Card string           `json:"card"`
}

type AdminSetRate struct{}

type AdminSetPrice struct {
	BetType model.BetType `json:"bet_type"`
}

func (Idle) Flow() Flow                    { return FlowNone }
func (Playing) Flow() Flow                 { return FlowPlaying }
func (AwaitingBet) Flow() Flow             { return FlowAwaitingBet }
func (AwaitingDepositProof) Flow() Flow    { return FlowDepositProof }
func (AwaitingWithdrawAmount) Flow() Flow  { return FlowWithdrawAmount }
func (AwaitingWithdrawAccount) Flow() Flow { return FlowWithdrawAccount }
func (AwaitingTransferTarget) Flow() Flow  { return FlowTransferTarget }
func (AwaitingTransferAmount) Flow() Flow  { return FlowTransferAmount }
func (s AdminMethodName) Flow() Flow       { return methodFlow(s.Kind) }
func (s AdminMethodCard) Flow() Flow       { return methodFlow(s.Kind) }
func (s AdminMethodConfirm) Flow() Flow    { return methodFlow(s.Kind) }
func (AdminSetRate) Flow() Flow            { return FlowAdminSetRate }
func (AdminSetPrice) Flow() Flow           { return FlowAdminSetPrice }

func (Idle) state()                    {}
func (Playing) state()                 {}
func (AwaitingBet) state()             {}
func (AwaitingDepositProof) state()    {}
func (AwaitingWithdrawAmount) state()  {}
func (AwaitingWithdrawAccount) state() {}
func (AwaitingTransferTarget) state()  {}
func (AwaitingTransferAmount) state()  {}
func (AdminMethodName) state()         {}
func (AdminMethodCard) state()         {}
func (AdminMethodConfirm) state()      {}
func (AdminSetRate) state()            {}
func (AdminSetPrice) state()           {}

func methodFlow(k model.MethodKind) Flow {
	if k == model.MethodWithdraw {
		return FlowAdminAddWithdraw
	}
	return FlowAdminAddDeposit
}

// Step is the 1-based position of s inside its flow; Idle is step 0.
func Step(s State) int {
	switch s.(type) {
	case Idle:
		return 0
	case AwaitingBet, AwaitingWithdrawAccount, AwaitingTransferAmount, AdminMethodCard:
		return 2
	case AdminMethodConfirm:
		return 3
	default:
		return 1
	}
}

// AdminOnly reports whether s belongs to a flow restricted to the admin.
func AdminOnly(s State) bool {
	switch s.(type) {
	case AdminMethodName, AdminMethodCard, AdminMethodConfirm, AdminSetRate, AdminSetPrice:
		return true
	}
	return false
}
