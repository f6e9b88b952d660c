package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"RifasCuba/internal/model"
	"RifasCuba/internal/money"
)

// Escape makes user-supplied text safe inside HTML parse mode.
func Escape(s string) string {
	return html.EscapeString(s)
}

// FormatBalance renders the three balances of u.
func FormatBalance(u model.User) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🇨🇺 <b>CUP:</b> %s\n", u.CUP))
	b.WriteString(fmt.Sprintf("💵 <b>USD:</b> %s\n", u.USD))
	b.WriteString(fmt.Sprintf("🎁 <b>Bono:</b> %s USD", u.BonusUSD))
	return b.String()
}

// FormatBetPlaced is the confirmation sent after a bet is recorded.
func FormatBetPlaced(bet model.Bet) string {
	var b strings.Builder
	b.WriteString("✅ <b>¡Jugada registrada con éxito!</b>\n")
	b.WriteString(fmt.Sprintf("🎰 %s - %s\n", bet.Lottery, bet.Type.Title()))
	b.WriteString(fmt.Sprintf("📝 <code>%s</code>\n", Escape(bet.Raw)))
	b.WriteString(fmt.Sprintf("💰 Costo: %s USD / %s CUP\n", bet.CostUSD, bet.CostCUP))
	b.WriteString("🍀 ¡Buena suerte!")
	return b.String()
}

// FormatBets lists recent bets, newest first, with times in loc.
func FormatBets(bets []model.Bet, loc *time.Location) string {
	if len(bets) == 0 {
		return "📭 <b>No tienes jugadas registradas.</b>\n\n¡Empieza a jugar presionando 🎲 Jugar!"
	}
	lines := []string{"📋 <b>Tus últimas jugadas:</b>"}
	for _, bet := range bets {
		lines = append(lines, fmt.Sprintf("• %s - %s - %s\n  <code>%s</code>",
			bet.CreatedAt.In(loc).Format("2006-01-02 15:04"), bet.Lottery, bet.Type, Escape(bet.Raw)))
	}
	return strings.Join(lines, "\n")
}

// FormatDepositReview is the admin caption for a new deposit.
func FormatDepositReview(tx model.Transaction, who string) string {
	var b strings.Builder
	b.WriteString("🟢 <b>Nueva solicitud de depósito</b>\n")
	b.WriteString(fmt.Sprintf("👤 Usuario: %s (%d)\n", Escape(who), tx.UserID))
	b.WriteString(fmt.Sprintf("💰 Monto: %s USD / %s CUP\n", tx.AmountUSD, tx.AmountCUP))
	b.WriteString(fmt.Sprintf("💳 Método ID: %d\n", tx.MethodID))
	b.WriteString(fmt.Sprintf("🆔 Transacción: %d", tx.ID))
	return b.String()
}

// FormatWithdrawReview is the admin message for a new withdrawal.
func FormatWithdrawReview(tx model.Transaction, who string) string {
	var b strings.Builder
	b.WriteString("🟡 <b>Nueva solicitud de retiro</b>\n")
	b.WriteString(fmt.Sprintf("👤 Usuario: %s (%d)\n", Escape(who), tx.UserID))
	b.WriteString(fmt.Sprintf("💰 Monto: %s USD\n", tx.AmountUSD))
	b.WriteString(fmt.Sprintf("💳 Método ID: %d\n", tx.MethodID))
	b.WriteString(fmt.Sprintf("📞 %s\n", Escape(tx.Details)))
	b.WriteString(fmt.Sprintf("🆔 Transacción: %d", tx.ID))
	return b.String()
}

// AnnotateReview appends the resolution to an admin review message.
// original is the plain text Telegram returns, so it is escaped again.
func AnnotateReview(original string, status model.TxStatus) string {
	mark := "✅"
	if status == model.TxRejected {
		mark = "❌"
	}
	return fmt.Sprintf("%s\n\n%s <b>%s</b>", Escape(original), mark, strings.ToUpper(string(status)))
}

// FormatPending lists pending transactions for the admin.
func FormatPending(txs []model.Transaction, loc *time.Location) string {
	if len(txs) == 0 {
		return "✅ No hay solicitudes pendientes."
	}
	var deposits, withdrawals int
	for _, tx := range txs {
		if tx.Type == model.TxDeposit {
			deposits++
		} else {
			withdrawals++
		}
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("⏳ <b>Solicitudes pendientes:</b> %d depósitos, %d retiros\n", deposits, withdrawals))
	for _, tx := range txs {
		icon := "🟢"
		if tx.Type == model.TxWithdraw {
			icon = "🟡"
		}
		b.WriteString(fmt.Sprintf("\n%s #%d · usuario %d · %s USD / %s CUP · %s",
			icon, tx.ID, tx.UserID, tx.AmountUSD, tx.AmountCUP, tx.CreatedAt.In(loc).Format("01-02 15:04")))
	}
	return b.String()
}

// FormatSnapshot renders the admin's view of rate, methods and prices.
func FormatSnapshot(rate decimal.Decimal, prices map[model.BetType]model.Price, deposit, withdraw []model.PaymentMethod) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("💰 <b>Tasa:</b> 1 USD = %s CUP\n\n", rate.StringFixed(2)))
	b.WriteString("📥 <b>Métodos de DEPÓSITO:</b>\n")
	writeMethods(&b, deposit)
	b.WriteString("\n📤 <b>Métodos de RETIRO:</b>\n")
	writeMethods(&b, withdraw)
	b.WriteString("\n🎲 <b>Precios por jugada:</b>\n")
	for _, t := range model.BetTypes {
		p := prices[t]
		b.WriteString(fmt.Sprintf("  %s: %s CUP / %s USD\n", t.Title(), p.CUP, p.USD))
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeMethods(b *strings.Builder, methods []model.PaymentMethod) {
	if len(methods) == 0 {
		b.WriteString("  (ninguno)\n")
		return
	}
	for _, m := range methods {
		off := ""
		if !m.Active {
			off = " (inactivo)"
		}
		b.WriteString(fmt.Sprintf("  ID %d: %s - %s / %s%s\n",
			m.ID, Escape(m.Name), Escape(m.Card), Escape(m.Confirm), off))
	}
}

// FormatRate is "1 USD = 110.00 CUP".
func FormatRate(rate decimal.Decimal) string {
	return fmt.Sprintf("1 USD = %s CUP", rate.StringFixed(2))
}

// FormatAmounts renders a (usd, cup) pair, omitting a zero side.
func FormatAmounts(usd, cup money.Amount) string {
	switch {
	case usd > 0 && cup > 0:
		return fmt.Sprintf("%s USD / %s CUP", usd, cup)
	case cup > 0:
		return fmt.Sprintf("%s CUP", cup)
	}
	return fmt.Sprintf("%s USD", usd)
}
