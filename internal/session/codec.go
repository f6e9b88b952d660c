package session

import (
	"encoding/json"
	"fmt"
)

type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

func kindOf(s State) string {
	switch s.(type) {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case AwaitingBet:
		return "awaiting_bet"
	case AwaitingDepositProof:
		return "awaiting_deposit_proof"
	case AwaitingWithdrawAmount:
		return "awaiting_withdraw_amount"
	case AwaitingWithdrawAccount:
		return "awaiting_withdraw_account"
	case AwaitingTransferTarget:
		return "awaiting_transfer_target"
	case AwaitingTransferAmount:
		return "awaiting_transfer_amount"
	case AdminMethodName:
		return "admin_method_name"
	case AdminMethodCard:
		return "admin_method_card"
	case AdminMethodConfirm:
		return "admin_method_confirm"
	case AdminSetRate:
		return "admin_set_rate"
	case AdminSetPrice:
		return "admin_set_price"
	}
	return ""
}

// Encode serializes a state for out-of-process session backends.
func Encode(s State) ([]byte, error) {
	kind := kindOf(s)
	if kind == "" {
		return nil, fmt.Errorf("unknown session state %T", s)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", kind, err)
	}
	return json.Marshal(envelope{Kind: kind, Data: data})
}

// Decode is the inverse of Encode.
func Decode(b []byte) (State, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("unmarshal session envelope: %w", err)
	}
	switch env.Kind {
	case "idle":
		return Idle{}, nil
	case "playing":
		return decodeAs[Playing](env.Data)
	case "awaiting_bet":
		return decodeAs[AwaitingBet](env.Data)
	case "awaiting_deposit_proof":
		return decodeAs[AwaitingDepositProof](env.Data)
	case "awaiting_withdraw_amount":
		return decodeAs[AwaitingWithdrawAmount](env.Data)
	case "awaiting_withdraw_account":
		return decodeAs[AwaitingWithdrawAccount](env.Data)
	case "awaiting_transfer_target":
		return AwaitingTransferTarget{}, nil
	case "awaiting_transfer_amount":
		return decodeAs[AwaitingTransferAmount](env.Data)
	case "admin_method_name":
		return decodeAs[AdminMethodName](env.Data)
	case "admin_method_card":
		return decodeAs[AdminMethodCard](env.Data)
	case "admin_method_confirm":
		return decodeAs[AdminMethodConfirm](env.Data)
	case "admin_set_rate":
		return AdminSetRate{}, nil
	case "admin_set_price":
		return decodeAs[AdminSetPrice](env.Data)
	}
	return nil, fmt.Errorf("unknown session kind %q", env.Kind)
}

func decodeAs[T State](data json.RawMessage) (State, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return v, nil
}
