package bot

import (
	"fmt"

	"RifasCuba/internal/model"
	nt "RifasCuba/internal/notifier"
)

// Callback data understood by the bot.
const (
	cbMain       = "main"
	cbPlay       = "play"
	cbMyMoney    = "my_money"
	cbRecharge   = "recharge"
	cbWithdraw   = "withdraw"
	cbTransfer   = "transfer"
	cbMyBets     = "my_bets"
	cbReferrals  = "referrals"
	cbHowToPlay  = "how_to_play"
	cbAdminPanel = "admin_panel"
	cbAdmAddDep  = "adm_add_dep"
	cbAdmAddWit  = "adm_add_wit"
	cbAdmRate    = "adm_set_rate"
	cbAdmPrices  = "adm_set_price"
	cbAdmView    = "adm_view"
	cbAdmPending = "adm_pending"

	prefixType       = "type_"
	prefixDeposit    = "dep_"
	prefixWithdraw   = "wit_"
	prefixApproveDep = "approve_dep_"
	prefixRejectDep  = "reject_dep_"
	prefixApproveWit = "approve_with_"
	prefixRejectWit  = "reject_with_"
	prefixAdmPrice   = "adm_price_"
	prefixAdmToggle  = "adm_toggle_" // adm_toggle_<dep|wit>_<id>
	prefixAdmDelete  = "adm_del_"    // adm_del_<dep|wit>_<id>
)

var betTypeEmoji = map[model.BetType]string{
	model.BetFijo:     "🎯",
	model.BetCorridos: "🏃",
	model.BetCentena:  "💯",
	model.BetParle:    "🔒",
}

func betTypeButton(t model.BetType) nt.Button {
	return nt.CallbackButton(betTypeEmoji[t]+" "+t.Title(), prefixType+string(t))
}

func (b *Bot) mainMenu(userID int64) *nt.InlineKeyboard {
	rows := [][]nt.Button{
		nt.Row(nt.CallbackButton("🎲 Jugar", cbPlay), nt.CallbackButton("💰 Mi dinero", cbMyMoney)),
		nt.Row(nt.CallbackButton("📋 Mis jugadas", cbMyBets), nt.CallbackButton("👥 Referidos", cbReferrals)),
		nt.Row(nt.CallbackButton("❓ Cómo jugar", cbHowToPlay)),
	}
	if b.cfg.WebAppURL != "" {
		rows = append(rows, nt.Row(nt.WebAppButton("🌐 WebApp", b.cfg.WebAppURL)))
	}
	if b.ledger.IsAdmin(userID) {
		rows = append(rows, nt.Row(nt.CallbackButton("🛠 Admin", cbAdminPanel)))
	}
	return nt.Keyboard(rows...)
}

func backButton(to string) *nt.InlineKeyboard {
	return nt.Keyboard(nt.Row(nt.CallbackButton("🔙 Volver", to)))
}

func lotteryMenu() *nt.InlineKeyboard {
	var row []nt.Button
	for _, l := range model.Lotteries {
		row = append(row, nt.CallbackButton(l.Emoji()+" "+string(l), l.Key()))
	}
	return nt.Keyboard(row, nt.Row(nt.CallbackButton("🔙 Volver", cbMain)))
}

func betTypeMenu() *nt.InlineKeyboard {
	return nt.Keyboard(
		nt.Row(betTypeButton(model.BetFijo), betTypeButton(model.BetCorridos)),
		nt.Row(betTypeButton(model.BetCentena), betTypeButton(model.BetParle)),
		nt.Row(nt.CallbackButton("🔙 Volver", cbPlay)),
	)
}

func moneyMenu() *nt.InlineKeyboard {
	return nt.Keyboard(
		nt.Row(
			nt.CallbackButton("📥 Recargar", cbRecharge),
			nt.CallbackButton("📤 Retirar", cbWithdraw),
			nt.CallbackButton("🔄 Transferir", cbTransfer),
		),
		nt.Row(nt.CallbackButton("🔙 Volver", cbMain)),
	)
}

func methodMenu(methods []model.PaymentMethod, prefix string) *nt.InlineKeyboard {
	var rows [][]nt.Button
	for _, m := range methods {
		rows = append(rows, nt.Row(nt.CallbackButton(m.Name, fmt.Sprintf("%s%d", prefix, m.ID))))
	}
	rows = append(rows, nt.Row(nt.CallbackButton("🔙 Volver", cbMyMoney)))
	return nt.Keyboard(rows...)
}

func adminMenu() *nt.InlineKeyboard {
	return nt.Keyboard(
		nt.Row(nt.CallbackButton("➕ Añadir método DEPÓSITO", cbAdmAddDep)),
		nt.Row(nt.CallbackButton("➕ Añadir método RETIRO", cbAdmAddWit)),
		nt.Row(nt.CallbackButton("💰 Configurar tasa USD/CUP", cbAdmRate)),
		nt.Row(nt.CallbackButton("🎲 Configurar precios de jugadas", cbAdmPrices)),
		nt.Row(nt.CallbackButton("📋 Ver datos actuales", cbAdmView)),
		nt.Row(nt.CallbackButton("⏳ Solicitudes pendientes", cbAdmPending)),
		nt.Row(nt.CallbackButton("🔙 Volver al menú principal", cbMain)),
	)
}

func priceMenu() *nt.InlineKeyboard {
	var rows [][]nt.Button
	for _, t := range model.BetTypes {
		rows = append(rows, nt.Row(nt.CallbackButton(t.Title(), prefixAdmPrice+string(t))))
	}
	rows = append(rows, nt.Row(nt.CallbackButton("🔙 Volver", cbAdminPanel)))
	return nt.Keyboard(rows...)
}

// methodAdminMenu offers toggle and delete buttons for every method.
func methodAdminMenu(deposit, withdraw []model.PaymentMethod) *nt.InlineKeyboard {
	var rows [][]nt.Button
	add := func(kind string, methods []model.PaymentMethod) {
		for _, m := range methods {
			toggle := "⏸ Desactivar"
			if !m.Active {
				toggle = "▶️ Activar"
			}
			rows = append(rows, nt.Row(
				nt.CallbackButton(fmt.Sprintf("%s %d", toggle, m.ID), fmt.Sprintf("%s%s_%d", prefixAdmToggle, kind, m.ID)),
				nt.CallbackButton(fmt.Sprintf("🗑 Borrar %d", m.ID), fmt.Sprintf("%s%s_%d", prefixAdmDelete, kind, m.ID)),
			))
		}
	}
	add("dep", deposit)
	add("wit", withdraw)
	rows = append(rows, nt.Row(nt.CallbackButton("🔙 Volver", cbAdminPanel)))
	return nt.Keyboard(rows...)
}

func reviewButtons(tx model.Transaction) *nt.InlineKeyboard {
	if tx.Type == model.TxWithdraw {
		return nt.Keyboard(nt.Row(
			nt.CallbackButton("✅ Procesar", fmt.Sprintf("%s%d", prefixApproveWit, tx.ID)),
			nt.CallbackButton("❌ Rechazar", fmt.Sprintf("%s%d", prefixRejectWit, tx.ID)),
		))
	}
	return nt.Keyboard(nt.Row(
		nt.CallbackButton("✅ Aprobar", fmt.Sprintf("%s%d", prefixApproveDep, tx.ID)),
		nt.CallbackButton("❌ Rechazar", fmt.Sprintf("%s%d", prefixRejectDep, tx.ID)),
	))
}
