package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"RifasCuba/internal/model"
	"RifasCuba/internal/money"
	nt "RifasCuba/internal/notifier"
	"RifasCuba/internal/session"
)

// maxReviewResend caps how many pending reviews /pending re-posts at once.
const maxReviewResend = 10

// onAdminCallback handles admin_panel and every adm_* button. The admin id is
// checked here again; the buttons themselves prove nothing.
func (b *Bot) onAdminCallback(ctx context.Context, log *zap.Logger, cq *nt.CallbackQuery) string {
	uid, data := cq.From.ID, cq.Data
	if !b.ledger.IsAdmin(uid) {
		return txtUnauthorized
	}

	switch data {
	case cbAdminPanel:
		b.clearState(ctx, uid)
		b.edit(ctx, cq, txtAdminPanel, adminMenu())
	case cbAdmAddDep:
		b.setState(ctx, uid, session.AdminMethodName{Kind: model.MethodDeposit})
		b.send(ctx, uid, "➕ <b>Añadir método de DEPÓSITO</b>\n\nEnvía el <b>nombre</b> del método:", nil)
	case cbAdmAddWit:
		b.setState(ctx, uid, session.AdminMethodName{Kind: model.MethodWithdraw})
		b.send(ctx, uid, "➕ <b>Añadir método de RETIRO</b>\n\nEnvía el <b>nombre</b> del método:", nil)
	case cbAdmRate:
		rate, err := b.ledger.ExchangeRate(ctx)
		if err != nil {
			log.Warn("load rate", zap.Error(err))
			return toast(err)
		}
		b.setState(ctx, uid, session.AdminSetRate{})
		b.send(ctx, uid, "💰 <b>Tasa de cambio actual</b>\n"+nt.FormatRate(rate)+
			"\n\nEnvía la <b>nueva tasa</b> (solo número, ej: 120):", nil)
	case cbAdmPrices:
		b.clearState(ctx, uid)
		b.send(ctx, uid, "🎲 <b>Configurar precios de jugadas</b>\nElige el tipo que deseas modificar:", priceMenu())
	case cbAdmView:
		return b.showSnapshot(ctx, log, cq)
	case cbAdmPending:
		b.showPending(ctx, log, uid, cq)
	default:
		switch {
		case strings.HasPrefix(data, prefixAdmPrice):
			bt, ok := model.ParseBetType(strings.TrimPrefix(data, prefixAdmPrice))
			if !ok {
				return "Tipo de jugada desconocido."
			}
			b.setState(ctx, uid, session.AdminSetPrice{BetType: bt})
			b.send(ctx, uid, fmt.Sprintf("Configurando <b>%s</b>\n"+
				"Envía en el formato: <code>&lt;monto_cup&gt; &lt;monto_usd&gt;</code>\nEjemplo: <code>70 0.20</code>", bt.Title()), nil)
		case strings.HasPrefix(data, prefixAdmToggle):
			return b.onMethodToggle(ctx, log, cq, strings.TrimPrefix(data, prefixAdmToggle))
		case strings.HasPrefix(data, prefixAdmDelete):
			return b.onMethodDelete(ctx, log, cq, strings.TrimPrefix(data, prefixAdmDelete))
		}
	}
	return ""
}

func (b *Bot) showSnapshot(ctx context.Context, log *zap.Logger, cq *nt.CallbackQuery) string {
	snap, err := b.ledger.Snapshot(ctx, cq.From.ID)
	if err != nil {
		log.Warn("load snapshot", zap.Error(err))
		return toast(err)
	}
	b.edit(ctx, cq, nt.FormatSnapshot(snap.Rate, snap.Prices, snap.Deposit, snap.Withdraw),
		methodAdminMenu(snap.Deposit, snap.Withdraw))
	return ""
}

// parseMethodRef reads "<dep|wit>_<id>".
func parseMethodRef(raw string) (model.MethodKind, int64, bool) {
	kind, idStr, ok := strings.Cut(raw, "_")
	if !ok {
		return "", 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return "", 0, false
	}
	switch kind {
	case "dep":
		return model.MethodDeposit, id, true
	case "wit":
		return model.MethodWithdraw, id, true
	}
	return "", 0, false
}

func (b *Bot) onMethodToggle(ctx context.Context, log *zap.Logger, cq *nt.CallbackQuery, raw string) string {
	kind, id, ok := parseMethodRef(raw)
	if !ok {
		return txtMethodMissing
	}
	snap, err := b.ledger.Snapshot(ctx, cq.From.ID)
	if err != nil {
		return toast(err)
	}
	methods := snap.Deposit
	if kind == model.MethodWithdraw {
		methods = snap.Withdraw
	}
	for _, m := range methods {
		if m.ID != id {
			continue
		}
		if err := b.ledger.SetMethodActive(ctx, cq.From.ID, kind, id, !m.Active); err != nil {
			log.Warn("toggle method", zap.Int64("method_id", id), zap.Error(err))
			return toast(err)
		}
		b.showSnapshot(ctx, log, cq)
		if m.Active {
			return "Método desactivado."
		}
		return "Método activado."
	}
	return txtMethodMissing
}

func (b *Bot) onMethodDelete(ctx context.Context, log *zap.Logger, cq *nt.CallbackQuery, raw string) string {
	kind, id, ok := parseMethodRef(raw)
	if !ok {
		return txtMethodMissing
	}
	if err := b.ledger.DeleteMethod(ctx, cq.From.ID, kind, id); err != nil {
		log.Warn("delete method", zap.Int64("method_id", id), zap.Error(err))
		return toast(err)
	}
	b.showSnapshot(ctx, log, cq)
	return "Método eliminado."
}

// showPending lists pending transactions and re-posts the oldest reviews so
// the admin can act on them even if the original messages were lost.
func (b *Bot) showPending(ctx context.Context, log *zap.Logger, uid int64, cq *nt.CallbackQuery) {
	txs, err := b.ledger.ListPending(ctx, uid, "")
	if err != nil {
		if cq == nil {
			b.send(ctx, uid, userMessage(err), nil)
		}
		log.Warn("list pending", zap.Error(err))
		return
	}
	text := nt.FormatPending(txs, b.cfg.Location)
	if cq != nil {
		b.edit(ctx, cq, text, backButton(cbAdminPanel))
	} else {
		b.send(ctx, uid, text, nil)
	}
	for i, tx := range txs {
		if i == maxReviewResend {
			break
		}
		b.submitReview(ctx, tx, strconv.FormatInt(tx.UserID, 10))
	}
}

// ---- admin text steps ----

func (b *Bot) onAdminMethodConfirm(ctx context.Context, log *zap.Logger, uid int64, s session.AdminMethodConfirm, text string) {
	m, err := b.ledger.AddMethod(ctx, uid, s.Kind, s.Name, s.Card, text)
	b.clearState(ctx, uid)
	if err != nil {
		b.fail(ctx, log, uid, err)
		return
	}
	label := "depósito"
	if s.Kind == model.MethodWithdraw {
		label = "retiro"
	}
	b.send(ctx, uid, fmt.Sprintf("✅ <b>Método de %s añadido</b>\n%s - %s / %s",
		label, nt.Escape(m.Name), nt.Escape(m.Card), nt.Escape(m.Confirm)), adminMenu())
}

func (b *Bot) onAdminRate(ctx context.Context, log *zap.Logger, uid int64, text string) {
	rate, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(text), ",", "."))
	if err != nil {
		b.send(ctx, uid, txtBadRate, nil)
		return
	}
	if err := b.ledger.SetExchangeRate(ctx, uid, rate); err != nil {
		if model.IsValidation(err) {
			b.send(ctx, uid, txtBadRate, nil)
			return
		}
		b.fail(ctx, log, uid, err)
		return
	}
	b.clearState(ctx, uid)
	b.send(ctx, uid, "✅ <b>Tasa actualizada</b>\n"+nt.FormatRate(rate), adminMenu())
}

func (b *Bot) onAdminPrice(ctx context.Context, log *zap.Logger, uid int64, s session.AdminSetPrice, text string) {
	parts := strings.Fields(text)
	if len(parts) != 2 {
		b.send(ctx, uid, txtBadPrice, nil)
		return
	}
	cup, errCUP := money.Parse(parts[0])
	usd, errUSD := money.Parse(parts[1])
	if errCUP != nil || errUSD != nil {
		b.send(ctx, uid, txtBadPrice, nil)
		return
	}
	if err := b.ledger.SetPrice(ctx, uid, s.BetType, model.Price{CUP: cup, USD: usd}); err != nil {
		if model.IsValidation(err) {
			b.send(ctx, uid, txtBadPrice, nil)
			return
		}
		b.fail(ctx, log, uid, err)
		return
	}
	b.clearState(ctx, uid)
	b.send(ctx, uid, fmt.Sprintf("✅ <b>Precio actualizado para %s</b>\n%s CUP / %s USD", s.BetType.Title(), cup, usd), adminMenu())
}
