package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"RifasCuba/internal/ledger"
	"RifasCuba/internal/model"
	"RifasCuba/internal/money"
	nt "RifasCuba/internal/notifier"
	"RifasCuba/internal/session"
)

// ---- bets ----

// onBetText registers the bet. An unparseable bet keeps the step so the user
// can correct it; insufficient funds end the flow.
func (b *Bot) onBetText(ctx context.Context, log *zap.Logger, m *nt.IncomingMsg, s session.AwaitingBet, text string) {
	uid := m.From.ID
	res, err := b.ledger.PlaceBet(ctx, uid, s.Lottery, s.BetType, text)
	switch {
	case model.IsValidation(err):
		b.send(ctx, uid, txtBadFormat, nil)
		return
	case errors.Is(err, model.ErrInsufficientFunds):
		b.clearState(ctx, uid)
		b.send(ctx, uid, "❌ <b>Saldo insuficiente.</b> Recarga para continuar.", b.mainMenu(uid))
		return
	case err != nil:
		b.fail(ctx, log, uid, err)
		return
	}
	b.clearState(ctx, uid)
	b.send(ctx, uid, nt.FormatBetPlaced(res.Bet), b.mainMenu(uid))
	b.notifyCommission(ctx, m.From, res)
}

func (b *Bot) notifyCommission(ctx context.Context, bettor *nt.User, res ledger.BetResult) {
	if res.Commission == nil {
		return
	}
	b.notify(ctx, res.Commission.ReferrerID, fmt.Sprintf("💸 <b>Comisión de referido</b>\n"+
		"Tu referido %s hizo una apuesta.\n💰 Ganaste: <b>%s USD</b>",
		nt.Escape(displayName(bettor)), res.Commission.Amount))
}

// ---- deposits ----

func (b *Bot) onPhoto(ctx context.Context, log *zap.Logger, m *nt.IncomingMsg) {
	uid := m.From.ID
	st, err := b.state(ctx, uid)
	if err != nil {
		b.fail(ctx, log, uid, err)
		return
	}
	s, ok := st.(session.AwaitingDepositProof)
	if !ok {
		b.send(ctx, uid, txtNoPhoto, nil)
		return
	}
	usd, cup := money.ParseAmount(m.Caption)
	if usd == 0 && cup == 0 {
		b.send(ctx, uid, txtBadCaption, nil)
		return
	}
	tx, err := b.ledger.RequestDeposit(ctx, uid, s.MethodID, usd, cup, m.LargestPhoto())
	if err != nil {
		b.fail(ctx, log, uid, err)
		return
	}
	b.clearState(ctx, uid)
	b.send(ctx, uid, fmt.Sprintf("✅ <b>Comprobante recibido</b>\n💰 Monto: %s\n🆔 Transacción: %d\n\n"+
		"⏳ Tu depósito será revisado y acreditado en breve.", nt.FormatAmounts(usd, cup), tx.ID), b.mainMenu(uid))
	b.submitReview(ctx, tx, displayName(m.From))
}

// ---- withdrawals ----

func (b *Bot) onWithdrawAmount(ctx context.Context, log *zap.Logger, uid int64, s session.AwaitingWithdrawAmount, text string) {
	usd, cup := money.ParseAmount(text)
	if cup > 0 {
		b.send(ctx, uid, "❌ Los retiros se hacen solo en <b>USD</b>.", nil)
		return
	}
	if usd <= 0 {
		b.send(ctx, uid, txtBadAmount, nil)
		return
	}
	if usd < b.ledger.MinWithdraw() {
		b.send(ctx, uid, fmt.Sprintf("❌ El mínimo de retiro es <b>%s USD</b>.", b.ledger.MinWithdraw()), nil)
		return
	}
	u, err := b.ledger.Balance(ctx, uid)
	if err != nil {
		b.fail(ctx, log, uid, err)
		return
	}
	if usd > u.USD {
		b.clearState(ctx, uid)
		b.send(ctx, uid, fmt.Sprintf("❌ <b>Saldo insuficiente.</b> Tienes %s USD retirables.", u.USD), b.mainMenu(uid))
		return
	}
	b.setState(ctx, uid, session.AwaitingWithdrawAccount{MethodID: s.MethodID, Amount: usd})
	b.send(ctx, uid, "Ahora envía <b>los datos de tu cuenta</b> en el siguiente formato:\n\n"+
		"<code>número de cuenta | número de confirmación</code>\n\n📎 Ejemplo: <code>1234567890 | 1234</code>", nil)
}

func (b *Bot) onWithdrawAccount(ctx context.Context, log *zap.Logger, m *nt.IncomingMsg, s session.AwaitingWithdrawAccount, text string) {
	uid := m.From.ID
	account, confirm, ok := strings.Cut(text, "|")
	if !ok || strings.TrimSpace(account) == "" {
		b.send(ctx, uid, txtWithdrawFormat, nil)
		return
	}
	tx, err := b.ledger.RequestWithdrawal(ctx, uid, s.MethodID, s.Amount, account, confirm)
	if err != nil {
		if model.IsValidation(err) {
			b.clearState(ctx, uid)
		}
		b.fail(ctx, log, uid, err)
		return
	}
	b.clearState(ctx, uid)
	b.send(ctx, uid, fmt.Sprintf("✅ <b>Solicitud de retiro enviada</b>\n💰 Monto: %s USD\n📞 Cuenta: %s\n🔢 Confirmación: %s\n\n"+
		"⏳ Procesaremos tu pago en breve.",
		tx.AmountUSD, nt.Escape(strings.TrimSpace(account)), nt.Escape(strings.TrimSpace(confirm))), b.mainMenu(uid))
	b.submitReview(ctx, tx, displayName(m.From))
}

// ---- transfers ----

func (b *Bot) onTransferTarget(ctx context.Context, log *zap.Logger, uid int64, text string) {
	target, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || target <= 0 {
		b.send(ctx, uid, txtBadTarget, nil)
		return
	}
	if target == uid {
		b.send(ctx, uid, "❌ No puedes transferirte a ti mismo.", nil)
		return
	}
	ok, err := b.ledger.TargetExists(ctx, target)
	if err != nil {
		b.fail(ctx, log, uid, err)
		return
	}
	if !ok {
		b.send(ctx, uid, txtUnknownTarget, nil)
		return
	}
	b.setState(ctx, uid, session.AwaitingTransferAmount{Target: target})
	b.send(ctx, uid, txtTransferAmount, nil)
}

func (b *Bot) onTransferAmount(ctx context.Context, log *zap.Logger, m *nt.IncomingMsg, s session.AwaitingTransferAmount, text string) {
	uid := m.From.ID
	amount, err := money.Parse(text)
	if err != nil || amount <= 0 {
		b.send(ctx, uid, txtBadAmount, nil)
		return
	}
	res, err := b.ledger.Transfer(ctx, uid, s.Target, amount)
	if errors.Is(err, model.ErrInsufficientFunds) {
		b.clearState(ctx, uid)
		msg := "❌ <b>Saldo insuficiente.</b>"
		if u, err := b.ledger.Balance(ctx, uid); err == nil {
			msg += fmt.Sprintf(" Tienes %s USD.", u.USD)
		}
		b.send(ctx, uid, msg, b.mainMenu(uid))
		return
	}
	if err != nil {
		b.fail(ctx, log, uid, err)
		return
	}
	b.clearState(ctx, uid)
	b.send(ctx, uid, fmt.Sprintf("✅ <b>Transferencia realizada con éxito</b>\n💰 Monto: %s USD\n👤 Destino: %d\n💵 Saldo restante: %s USD",
		amount, s.Target, res.From.USD), b.mainMenu(uid))
	b.notify(ctx, s.Target, fmt.Sprintf("💸 <b>Has recibido una transferencia</b>\n👤 De: %s (ID: %d)\n💰 Monto: %s USD\n💵 Saldo actual: %s USD",
		nt.Escape(m.From.FirstName), uid, amount, res.To.USD))
}
