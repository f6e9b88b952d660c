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
	nt "RifasCuba/internal/notifier"
	"RifasCuba/internal/session"
)

func (b *Bot) onCallback(ctx context.Context, log *zap.Logger, cq *nt.CallbackQuery) {
	log = log.With(zap.String("data", cq.Data))
	b.answer(ctx, cq, b.routeCallback(ctx, log, cq))
}

// routeCallback runs the handler for cq.Data and returns the toast to show.
func (b *Bot) routeCallback(ctx context.Context, log *zap.Logger, cq *nt.CallbackQuery) string {
	uid, data := cq.From.ID, cq.Data

	switch data {
	case cbMain:
		b.clearState(ctx, uid)
		b.edit(ctx, cq, txtMainMenu, b.mainMenu(uid))
		return ""
	case cbPlay:
		b.clearState(ctx, uid)
		b.edit(ctx, cq, txtPickLottery, lotteryMenu())
		return ""
	case cbMyMoney:
		return b.showMoney(ctx, log, cq)
	case cbRecharge:
		return b.showDepositMethods(ctx, log, cq)
	case cbWithdraw:
		return b.showWithdrawMethods(ctx, log, cq)
	case cbTransfer:
		b.setState(ctx, uid, session.AwaitingTransferTarget{})
		b.edit(ctx, cq, txtTransferTarget, nil)
		return ""
	case cbMyBets:
		bets, err := b.ledger.RecentBets(ctx, uid, 10)
		if err != nil {
			log.Warn("list bets", zap.Error(err))
			return toast(err)
		}
		b.edit(ctx, cq, nt.FormatBets(bets, b.cfg.Location), backButton(cbMain))
		return ""
	case cbReferrals:
		return b.showReferrals(ctx, log, cq)
	case cbHowToPlay:
		b.edit(ctx, cq, fmt.Sprintf(txtHowToPlay, b.ledger.MinWithdraw()), backButton(cbMain))
		return ""
	}

	if l, ok := model.ParseLottery(data); ok && data == l.Key() {
		return b.onLottery(ctx, cq, l)
	}

	switch {
	case strings.HasPrefix(data, prefixType):
		return b.onBetType(ctx, cq, strings.TrimPrefix(data, prefixType))
	case strings.HasPrefix(data, prefixDeposit):
		return b.onDepositMethod(ctx, log, cq, strings.TrimPrefix(data, prefixDeposit))
	case strings.HasPrefix(data, prefixWithdraw):
		return b.onWithdrawMethod(ctx, log, cq, strings.TrimPrefix(data, prefixWithdraw))
	case strings.HasPrefix(data, prefixApproveDep):
		return b.onReview(ctx, log, cq, strings.TrimPrefix(data, prefixApproveDep), true)
	case strings.HasPrefix(data, prefixRejectDep):
		return b.onReview(ctx, log, cq, strings.TrimPrefix(data, prefixRejectDep), false)
	case strings.HasPrefix(data, prefixApproveWit):
		return b.onReview(ctx, log, cq, strings.TrimPrefix(data, prefixApproveWit), true)
	case strings.HasPrefix(data, prefixRejectWit):
		return b.onReview(ctx, log, cq, strings.TrimPrefix(data, prefixRejectWit), false)
	case data == cbAdminPanel || strings.HasPrefix(data, "adm_"):
		return b.onAdminCallback(ctx, log, cq)
	}
	log.Debug("unknown callback")
	return ""
}

// toast is the plain-text callback answer for err.
func toast(err error) string {
	switch {
	case errors.Is(err, model.ErrUnauthorized):
		return txtUnauthorized
	case errors.Is(err, model.ErrAlreadyResolved):
		return "Esta solicitud ya fue procesada."
	case errors.Is(err, model.ErrNotFound):
		return "No encontrado."
	case errors.Is(err, model.ErrTransient):
		return "Servicio no disponible, intenta más tarde."
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return capitalize(ve.Reason)
	}
	return "Error inesperado."
}

// ---- play ----

func (b *Bot) onLottery(ctx context.Context, cq *nt.CallbackQuery, l model.Lottery) string {
	uid := cq.From.ID
	b.clearState(ctx, uid)
	if err := b.ledger.CheckLotteryOpen(l); err != nil {
		b.edit(ctx, cq, txtGeorgiaClosed, lotteryMenu())
		return ""
	}
	b.setState(ctx, uid, session.Playing{Lottery: l})
	b.edit(ctx, cq, fmt.Sprintf("✅ Seleccionaste <b>%s</b>. Ahora elige el <b>tipo de jugada</b>:", l), betTypeMenu())
	return ""
}

func (b *Bot) onBetType(ctx context.Context, cq *nt.CallbackQuery, raw string) string {
	uid := cq.From.ID
	bt, ok := model.ParseBetType(raw)
	if !ok {
		return "Tipo de jugada desconocido."
	}
	st, err := b.state(ctx, uid)
	if err != nil {
		return toast(err)
	}
	var lottery model.Lottery
	switch s := st.(type) {
	case session.Playing:
		lottery = s.Lottery
	case session.AwaitingBet:
		lottery = s.Lottery
	default:
		b.edit(ctx, cq, txtPickLottery, lotteryMenu())
		return txtPickFirst
	}
	b.setState(ctx, uid, session.AwaitingBet{Lottery: lottery, BetType: bt})
	b.edit(ctx, cq, betPrompt(lottery, bt), nil)
	return ""
}

// ---- money ----

func (b *Bot) showMoney(ctx context.Context, log *zap.Logger, cq *nt.CallbackQuery) string {
	uid := cq.From.ID
	b.clearState(ctx, uid)
	u, err := b.ledger.Balance(ctx, uid)
	if err != nil {
		log.Warn("load balance", zap.Error(err))
		return toast(err)
	}
	b.edit(ctx, cq, "💰 <b>Tu saldo actual:</b>\n\n"+nt.FormatBalance(u), moneyMenu())
	return ""
}

func (b *Bot) showDepositMethods(ctx context.Context, log *zap.Logger, cq *nt.CallbackQuery) string {
	b.clearState(ctx, cq.From.ID)
	methods, err := b.ledger.Methods(ctx, model.MethodDeposit)
	if err != nil {
		log.Warn("list deposit methods", zap.Error(err))
		return toast(err)
	}
	if len(methods) == 0 {
		b.edit(ctx, cq, txtNoMethods, backButton(cbMyMoney))
		return ""
	}
	rate, err := b.ledger.ExchangeRate(ctx)
	if err != nil {
		log.Warn("load rate", zap.Error(err))
		return toast(err)
	}
	text := "💵 <b>¿Cómo deseas recargar?</b>\n\n" +
		"Selecciona un método para ver los datos de pago.\n" +
		"📊 <b>Tasa actual:</b> " + nt.FormatRate(rate)
	b.edit(ctx, cq, text, methodMenu(methods, prefixDeposit))
	return ""
}

func (b *Bot) onDepositMethod(ctx context.Context, log *zap.Logger, cq *nt.CallbackQuery, raw string) string {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return txtMethodMissing
	}
	m, err := b.ledger.Method(ctx, model.MethodDeposit, id)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			log.Warn("load deposit method", zap.Error(err))
			return toast(err)
		}
		return txtMethodMissing
	}
	text := fmt.Sprintf("🧾 <b>%s</b>\n📱 Número: <code>%s</code>\n🔢 Confirmar: <code>%s</code>\n\n",
		nt.Escape(m.Name), nt.Escape(m.Card), nt.Escape(m.Confirm)) +
		"📤 <b>Instrucciones:</b>\n" +
		"1️⃣ Realiza la transferencia por el monto deseado.\n" +
		"2️⃣ Toma una <b>captura de pantalla</b> del comprobante.\n" +
		"3️⃣ Envía la foto <b>con el monto en el caption</b> (ej: <code>10 usd</code> o <code>500 cup</code>).\n\n" +
		"⏳ Tu depósito será revisado y acreditado en breve."
	b.setState(ctx, cq.From.ID, session.AwaitingDepositProof{MethodID: m.ID})
	b.edit(ctx, cq, text, backButton(cbRecharge))
	return ""
}

func (b *Bot) showWithdrawMethods(ctx context.Context, log *zap.Logger, cq *nt.CallbackQuery) string {
	uid := cq.From.ID
	b.clearState(ctx, uid)
	if _, err := b.ledger.CanWithdraw(ctx, uid); err != nil {
		if !model.IsValidation(err) {
			log.Warn("withdraw check", zap.Error(err))
			return toast(err)
		}
		b.edit(ctx, cq, userMessage(err), backButton(cbMyMoney))
		return ""
	}
	methods, err := b.ledger.Methods(ctx, model.MethodWithdraw)
	if err != nil {
		log.Warn("list withdraw methods", zap.Error(err))
		return toast(err)
	}
	if len(methods) == 0 {
		b.edit(ctx, cq, txtNoMethods, backButton(cbMyMoney))
		return ""
	}
	b.edit(ctx, cq, "📤 <b>¿Cómo deseas retirar?</b>\n\nSelecciona un método:", methodMenu(methods, prefixWithdraw))
	return ""
}

func (b *Bot) onWithdrawMethod(ctx context.Context, log *zap.Logger, cq *nt.CallbackQuery, raw string) string {
	uid := cq.From.ID
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return txtMethodMissing
	}
	m, err := b.ledger.Method(ctx, model.MethodWithdraw, id)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			log.Warn("load withdraw method", zap.Error(err))
			return toast(err)
		}
		return txtMethodMissing
	}
	u, err := b.ledger.CanWithdraw(ctx, uid)
	if err != nil {
		b.clearState(ctx, uid)
		if model.IsValidation(err) {
			b.edit(ctx, cq, userMessage(err), backButton(cbMyMoney))
			return ""
		}
		return toast(err)
	}
	b.setState(ctx, uid, session.AwaitingWithdrawAmount{MethodID: m.ID})
	b.edit(ctx, cq, fmt.Sprintf("🧾 <b>%s</b> seleccionado.\n\n💵 Saldo disponible: <b>%s USD</b>\n"+
		"Envía el <b>monto en USD</b> que deseas retirar (mínimo %s USD):",
		nt.Escape(m.Name), u.USD, b.ledger.MinWithdraw()), nil)
	return ""
}

// ---- referrals ----

func (b *Bot) showReferrals(ctx context.Context, log *zap.Logger, cq *nt.CallbackQuery) string {
	uid := cq.From.ID
	total, err := b.ledger.ReferralCount(ctx, uid)
	if err != nil {
		log.Warn("count referrals", zap.Error(err))
		return toast(err)
	}
	link := fmt.Sprintf("https://t.me/%s?start=%d", b.cfg.BotUsername, uid)
	text := fmt.Sprintf("👥 <b>Tus referidos</b>\n\n📊 <b>Total:</b> %d\n\n", total) +
		"🔗 <b>Tu enlace de invitación:</b>\n" +
		"<code>" + nt.Escape(link) + "</code>\n\n" +
		"💎 <b>¿Cómo funciona?</b>\n" +
		"• Comparte este enlace con tus amigos.\n" +
		"• Cuando se registren y jueguen, ¡ganas el <b>5%</b> de cada apuesta que hagan!\n" +
		"• La comisión se acredita automáticamente en tu saldo USD.\n\n" +
		"🚀 ¡Comparte y gana sin límites!"
	b.edit(ctx, cq, text, backButton(cbMain))
	return ""
}

// ---- review ----

func (b *Bot) onReview(ctx context.Context, log *zap.Logger, cq *nt.CallbackQuery, raw string, approve bool) string {
	if !b.ledger.IsAdmin(cq.From.ID) {
		return txtUnauthorized
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "No encontrado."
	}
	res, err := b.ledger.Resolve(ctx, cq.From.ID, id, approve)
	if err != nil {
		if !errors.Is(err, model.ErrAlreadyResolved) && !errors.Is(err, model.ErrNotFound) {
			log.Error("resolve transaction", zap.Int64("tx_id", id), zap.Error(err))
		}
		return toast(err)
	}

	b.notify(ctx, res.Tx.UserID, resolutionText(res))
	b.annotateReview(ctx, cq, res.Tx.Status)

	label := "Depósito"
	if res.Tx.Type == model.TxWithdraw {
		label = "Retiro"
	}
	return fmt.Sprintf("%s %s", label, res.Tx.Status)
}

func resolutionText(res ledger.Resolution) string {
	tx := res.Tx
	switch {
	case tx.Type == model.TxDeposit && tx.Status == model.TxApproved:
		return fmt.Sprintf("✅ <b>¡Depósito aprobado!</b>\nSe acreditaron <b>%s USD / %s CUP</b>.\n🎁 Bonus: +%s USD.\n💰 Saldo actual:\n%s",
			tx.AmountUSD, tx.AmountCUP, res.Bonus, nt.FormatBalance(res.User))
	case tx.Type == model.TxDeposit:
		return "❌ <b>Depósito rechazado.</b>\nSi crees que es un error, contacta al administrador."
	case tx.Status == model.TxApproved:
		return fmt.Sprintf("✅ <b>¡Retiro procesado!</b>\nSe ha enviado <b>%s USD</b> a tu cuenta.\nGracias por confiar en nosotros.", tx.AmountUSD)
	}
	return fmt.Sprintf("❌ <b>Retiro rechazado.</b>\nSe ha reembolsado <b>%s USD</b> a tu saldo.\nContacta al administrador si necesitas ayuda.", tx.AmountUSD)
}

// annotateReview stamps the admin message with the outcome and drops its buttons.
func (b *Bot) annotateReview(ctx context.Context, cq *nt.CallbackQuery, status model.TxStatus) {
	m := cq.Message
	if m == nil {
		return
	}
	var err error
	if len(m.Photo) > 0 {
		err = b.msg.EditMessageCaption(ctx, m.Chat.ID, m.MessageID, nt.AnnotateReview(m.Caption, status), nil)
	} else {
		err = b.msg.EditMessageText(ctx, m.Chat.ID, m.MessageID, nt.AnnotateReview(m.Text, status), nil)
	}
	if err != nil {
		b.log.Warn("annotate review message", zap.Error(err))
	}
}

// submitReview posts a new pending transaction to the admin chat. A failure
// leaves the transaction pending; the digest and /pending still surface it.
func (b *Bot) submitReview(ctx context.Context, tx model.Transaction, who string) {
	var err error
	switch {
	case tx.Type == model.TxDeposit && tx.Proof != "":
		_, err = b.msg.SendPhoto(ctx, nt.Photo{
			ChatID: b.cfg.AdminChatID, File: tx.Proof,
			Caption: nt.FormatDepositReview(tx, who), Keyboard: reviewButtons(tx),
		})
	case tx.Type == model.TxDeposit:
		_, err = b.msg.SendMessage(ctx, nt.Message{
			ChatID: b.cfg.AdminChatID, Text: nt.FormatDepositReview(tx, who), Keyboard: reviewButtons(tx),
		})
	default:
		_, err = b.msg.SendMessage(ctx, nt.Message{
			ChatID: b.cfg.AdminChatID, Text: nt.FormatWithdrawReview(tx, who), Keyboard: reviewButtons(tx),
		})
	}
	if err != nil {
		b.log.Error("send review to admin", zap.Int64("tx_id", tx.ID), zap.Error(err))
	}
}
