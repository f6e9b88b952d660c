package bot

import (
	"fmt"
	"strings"

	"RifasCuba/internal/model"
)

const (
	txtMainMenu      = "📌 <b>Menú principal</b>"
	txtPickLottery   = "🎰 <b>Selecciona una lotería:</b>"
	txtAdminPanel    = "🔧 <b>Panel de Administración</b>"
	txtUnauthorized  = "⛔ No autorizado"
	txtFallback      = "No entendí ese mensaje. Usa los botones del menú."
	txtBadFormat     = "❌ <b>Formato no reconocido.</b> Revisa los ejemplos e intenta de nuevo."
	txtNoPhoto       = "❌ No esperaba una foto. Usa los botones del menú."
	txtBadCaption    = "❌ No pude entender el monto. Asegúrate de escribir en el caption algo como <code>10 usd</code> o <code>500 cup</code>."
	txtMethodMissing = "Método no encontrado."
	txtNoMethods     = "⚠️ No hay métodos disponibles por ahora. Intenta más tarde."
	txtPickFirst     = "Primero selecciona una lotería."
	txtTransient     = "⏳ El servicio no está disponible en este momento. Intenta de nuevo más tarde."
	txtInternal      = "❌ Ocurrió un error inesperado. Intenta de nuevo más tarde."
	txtResolved      = "⚠️ Esta solicitud ya fue procesada."
	txtNotFound      = "❌ No encontrado."

	txtGeorgiaClosed = "⏰ <b>Fuera de horario para 🍑 Georgia</b>\n\n" +
		"Horarios permitidos (hora de Cuba):\n" +
		"☀️ Mañana: 9:00 – 12:00\n" +
		"🌙 Tarde: 2:00 – 6:30\n" +
		"🌙 Noche: 8:00 – 11:00\n\n" +
		"⏳ Intenta en el horario indicado."

	txtHowToPlay = "❓ <b>¿Cómo jugar?</b>\n\n" +
		"1️⃣ Presiona <b>🎲 Jugar</b> y elige una lotería.\n" +
		"2️⃣ Selecciona el tipo de jugada: Fijo, Corridos, Centena o Parle.\n" +
		"3️⃣ Escribe tus números y el monto (puedes usar USD o CUP).\n" +
		"4️⃣ Confirma y ¡listo!\n\n" +
		"📌 <b>Ejemplos:</b>\n" +
		"• <code>12 con 1 usd, 34 con 2 usd</code>\n" +
		"• <code>123*0.5usd, 456*2cup</code>\n" +
		"• <code>12x34 con 1 usd</code> (para parle)\n\n" +
		"💰 <b>Depósitos:</b> Ve a <b>Mi dinero &gt; Recargar</b>, elige método y envía captura.\n" +
		"💸 <b>Retiros:</b> Mínimo %s USD, selecciona método y proporciona tus datos.\n\n" +
		"✨ ¡La suerte te espera!"

	txtTransferTarget = "🔄 <b>Transferir saldo</b>\n\n" +
		"Envía el <b>ID de Telegram</b> del usuario al que deseas transferir:\n" +
		"(Ejemplo: <code>123456789</code>)"
	txtTransferAmount = "💰 Ahora envía el <b>monto en USD</b> que deseas transferir (ej: <code>2.5</code>):"
	txtBadTarget      = "❌ <b>ID inválido.</b> Debe ser un número entero."
	txtUnknownTarget  = "❌ Ese usuario no está registrado en el bot. Verifica el ID."
	txtBadAmount      = "❌ <b>Monto inválido.</b> Debe ser un número positivo (ej: <code>2.5</code>)."
	txtWithdrawFormat = "❌ <b>Formato incorrecto.</b> Debes usar: <code>número | confirmación</code>"
	txtBadRate        = "❌ <b>Formato inválido.</b> Envía un número positivo."
	txtBadPrice       = "❌ <b>Formato inválido.</b> Usa: <code>&lt;cup&gt; &lt;usd&gt;</code> (ej: 70 0.20)"
	txtUnknownAction  = "❌ Acción no reconocida."
	txtSlowDown       = "⏳ <b>Vas muy rápido.</b> Algunos mensajes no se procesaron; espera unos segundos y vuelve a enviarlos."
	txtSlowDownShort  = "⏳ Vas muy rápido, espera unos segundos."
)

var betPrompts = map[model.BetType]string{
	model.BetFijo: "Escribe cada número con su valor:\n📎 Ejemplos:\n" +
		"• <code>12 con 1 usd, 34 con 2 usd</code>\n• <code>7*1.5usd, 23*2cup</code>\n• <code>D2 con 1 usd, T5*2cup</code>\n\n" +
		"💬 <b>Envía tus números:</b>",
	model.BetCorridos: "Escribe cada número con su valor:\n📎 Ejemplos:\n" +
		"• <code>12 con 1 usd, 34 con 2 usd</code>\n• <code>7*1.5usd, 23*2cup</code>\n\n" +
		"💬 <b>Envía tus números:</b>",
	model.BetCentena: "Números de 3 dígitos:\n📎 Ejemplos:\n" +
		"• <code>123 con 1 usd, 456 con 2 usd</code>\n• <code>001*1.5usd, 125*2cup</code>\n\n" +
		"💬 <b>Envía tus números:</b>",
	model.BetParle: "Escribe cada parle con su valor:\n📎 Ejemplos:\n" +
		"• <code>12x34 con 1 usd, 56x78 con 2 usd</code>\n• <code>12x34*1.5usd, 56x78*2cup</code>\n• <code>12x T5 con 1 usd</code>\n\n" +
		"💬 <b>Envía tus parles:</b>",
}

func betPrompt(l model.Lottery, t model.BetType) string {
	return fmt.Sprintf("%s <b>Jugada %s</b> - %s %s\n\n%s",
		betTypeEmoji[t], strings.ToUpper(string(t)), l.Emoji(), l, betPrompts[t])
}

func welcome(name string, created bool) string {
	greet := "✨ ¡Hola de nuevo, <b>%s</b>!\n"
	if created {
		greet = "✨ ¡Hola, <b>%s</b>!\n"
	}
	return fmt.Sprintf(greet, name) +
		"Bienvenido a <b>Rifas Cuba</b>, tu asistente de la suerte 🍀\n\n" +
		"🎯 ¿Listo para ganar?\n" +
		"Apuesta, gana y disfruta. ¡La suerte está de tu lado!"
}
