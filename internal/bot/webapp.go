package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"RifasCuba/internal/model"
	"RifasCuba/internal/money"
	nt "RifasCuba/internal/notifier"
)

// Web mini-app actions.
const (
	actionDeposit  = "deposit_request"
	actionWithdraw = "withdraw_request"
	actionTransfer = "transfer_request"
	actionBet      = "bet_placed"
)

// webAppPayload is the JSON the mini-app posts through sendData. Amounts
// accept both JSON numbers and numeric strings.
type webAppPayload struct {
	Action    string          `json:"action"`
	TxID      int64           `json:"tx_id"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
	AmountCUP decimal.Decimal `json:"amount_cup"`
	MethodID  int64           `json:"method_id"`
	Account   string          `json:"account"`
	Confirm   string          `json:"confirm"`
	TargetID  int64           `json:"target_id"`
	ProofURL  string          `json:"proof_url"`
	CostUSD   decimal.Decimal `json:"cost_usd"`
	CostCUP   decimal.Decimal `json:"cost_cup"`
	Lottery   string          `json:"lottery"`
	BetType   string          `json:"bet_type"`
	Raw       string          `json:"raw"`
}

// webAmounts converts the app's decimal amounts, refusing values beyond
// money.MaxAmount.
func webAmounts(usd, cup decimal.Decimal) (money.Amount, money.Amount, error) {
	u, errUSD := money.Bounded(usd)
	c, errCUP := money.Bounded(cup)
	if errUSD != nil || errCUP != nil {
		return 0, 0, model.Invalid("monto fuera de rango")
	}
	return u, c, nil
}

func (b *Bot) onWebApp(ctx context.Context, log *zap.Logger, m *nt.IncomingMsg) {
	uid := m.From.ID
	var p webAppPayload
	if err := json.Unmarshal([]byte(m.WebAppData.Data), &p); err != nil {
		log.Info("bad web app payload", zap.Error(err))
		b.send(ctx, uid, txtUnknownAction, nil)
		return
	}
	log = log.With(zap.String("action", p.Action))

	switch p.Action {
	case actionDeposit:
		b.webDeposit(ctx, log, m, p)
	case actionWithdraw:
		b.webWithdraw(ctx, log, m, p)
	case actionTransfer:
		b.webTransfer(ctx, log, m, p)
	case actionBet:
		b.webBet(ctx, log, m, p)
	default:
		b.send(ctx, uid, txtUnknownAction, nil)
	}
}

// webDeposit either attaches proof to a deposit the app already created
// (tx_id set) or creates a new one.
func (b *Bot) webDeposit(ctx context.Context, log *zap.Logger, m *nt.IncomingMsg, p webAppPayload) {
	uid := m.From.ID
	var (
		tx  model.Transaction
		err error
	)
	if p.TxID > 0 {
		tx, err = b.ledger.AttachDepositProof(ctx, uid, p.TxID, p.ProofURL)
	} else {
		var usd, cup money.Amount
		if usd, cup, err = webAmounts(p.AmountUSD, p.AmountCUP); err == nil {
			tx, err = b.ledger.RequestDeposit(ctx, uid, p.MethodID, usd, cup, strings.TrimSpace(p.ProofURL))
		}
	}
	if err != nil {
		b.fail(ctx, log, uid, err)
		return
	}
	b.send(ctx, uid, fmt.Sprintf("✅ <b>Solicitud de depósito recibida</b>\n💰 Monto: %s\n🆔 Transacción: %d\n\n"+
		"⏳ Tu depósito será revisado y acreditado en breve.", nt.FormatAmounts(tx.AmountUSD, tx.AmountCUP), tx.ID), nil)
	b.submitReview(ctx, tx, displayName(m.From))
}

func (b *Bot) webWithdraw(ctx context.Context, log *zap.Logger, m *nt.IncomingMsg, p webAppPayload) {
	uid := m.From.ID
	if p.AmountCUP.IsPositive() {
		b.send(ctx, uid, "❌ Los retiros se hacen solo en <b>USD</b>.", nil)
		return
	}
	amount, _, err := webAmounts(p.AmountUSD, decimal.Zero)
	if err != nil {
		b.fail(ctx, log, uid, err)
		return
	}
	tx, err := b.ledger.RequestWithdrawal(ctx, uid, p.MethodID, amount, p.Account, p.Confirm)
	if err != nil {
		b.fail(ctx, log, uid, err)
		return
	}
	b.send(ctx, uid, fmt.Sprintf("✅ <b>Solicitud de retiro enviada</b>\n💰 Monto: %s USD\n\n⏳ Procesaremos tu pago en breve.",
		tx.AmountUSD), nil)
	b.submitReview(ctx, tx, displayName(m.From))
}

func (b *Bot) webTransfer(ctx context.Context, log *zap.Logger, m *nt.IncomingMsg, p webAppPayload) {
	uid := m.From.ID
	amount, _, err := webAmounts(p.AmountUSD, decimal.Zero)
	if err != nil {
		b.fail(ctx, log, uid, err)
		return
	}
	res, err := b.ledger.Transfer(ctx, uid, p.TargetID, amount)
	if err != nil {
		b.fail(ctx, log, uid, err)
		return
	}
	b.send(ctx, uid, fmt.Sprintf("✅ <b>Transferencia realizada con éxito</b>\n💰 Monto: %s USD\n👤 Destino: %d\n💵 Saldo restante: %s USD",
		amount, p.TargetID, res.From.USD), nil)
	b.notify(ctx, p.TargetID, fmt.Sprintf("💸 <b>Has recibido una transferencia</b>\n👤 De: %s (ID: %d)\n💰 Monto: %s USD\n💵 Saldo actual: %s USD",
		nt.Escape(m.From.FirstName), uid, amount, res.To.USD))
}

// webBet charges a bet priced by the app. It goes through the same debit and
// commission path as a chat bet.
func (b *Bot) webBet(ctx context.Context, log *zap.Logger, m *nt.IncomingMsg, p webAppPayload) {
	uid := m.From.ID
	lottery, ok := model.ParseLottery(p.Lottery)
	if !ok {
		b.fail(ctx, log, uid, model.Invalid("lotería no reconocida"))
		return
	}
	bt, ok := model.ParseBetType(p.BetType)
	if !ok {
		b.fail(ctx, log, uid, model.Invalid("tipo de jugada no reconocido"))
		return
	}
	if err := b.ledger.CheckLotteryOpen(lottery); err != nil {
		b.send(ctx, uid, txtGeorgiaClosed, nil)
		return
	}
	usd, cup, err := webAmounts(p.CostUSD, p.CostCUP)
	if err != nil {
		b.fail(ctx, log, uid, err)
		return
	}
	res, err := b.ledger.PlaceBetWithCost(ctx, uid, lottery, bt, p.Raw, usd, cup)
	if err != nil {
		b.fail(ctx, log, uid, err)
		return
	}
	b.send(ctx, uid, nt.FormatBetPlaced(res.Bet), nil)
	b.notifyCommission(ctx, m.From, res)
}
