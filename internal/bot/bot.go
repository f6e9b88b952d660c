package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"RifasCuba/internal/ledger"
	"RifasCuba/internal/metrics"
	"RifasCuba/internal/model"
	nt "RifasCuba/internal/notifier"
	"RifasCuba/internal/session"
)

// Messenger is the outbound half of the Telegram client.
type Messenger interface {
	SendMessage(ctx context.Context, m nt.Message) (int64, error)
	SendPhoto(ctx context.Context, p nt.Photo) (int64, error)
	EditMessageText(ctx context.Context, chat, messageID int64, text string, kb *nt.InlineKeyboard) error
	EditMessageCaption(ctx context.Context, chat, messageID int64, caption string, kb *nt.InlineKeyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

type Config struct {
	AdminChatID int64
	WebAppURL   string
	BotUsername string
	Location    *time.Location
	// HandlerTimeout bounds the handling of one update.
	HandlerTimeout time.Duration
}

// Bot turns Telegram updates into ledger operations and session transitions.
type Bot struct {
	ledger   *ledger.Service
	sessions session.Store
	msg      Messenger
	cfg      Config
	log      *zap.Logger
}

func New(l *ledger.Service, sessions session.Store, msg Messenger, cfg Config, log *zap.Logger) *Bot {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.HandlerTimeout == 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}
	return &Bot{ledger: l, sessions: sessions, msg: msg, cfg: cfg, log: log}
}

// Handle processes one update to completion. The dispatcher guarantees that
// updates of the same user never run concurrently.
func (b *Bot) Handle(ctx context.Context, u nt.Update) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.HandlerTimeout)
	defer cancel()

	kind := u.Kind()
	metrics.UpdatesTotal.WithLabelValues(kind).Inc()
	from := u.Sender()
	if from == nil {
		return
	}
	log := b.log.With(zap.Int64("update_id", u.UpdateID), zap.Int64("user_id", from.ID), zap.String("kind", kind))

	// /start registers on its own so it can record the referrer and greet new users.
	if kind != "text" || !strings.HasPrefix(strings.TrimSpace(u.Message.Text), "/start") {
		if err := b.ensureUser(ctx, from); err != nil {
			if u.Callback != nil {
				b.answer(ctx, u.Callback, toast(err))
			}
			b.fail(ctx, log, from.ID, err)
			return
		}
	}

	switch kind {
	case "callback":
		b.onCallback(ctx, log, u.Callback)
	case "web_app":
		b.onWebApp(ctx, log, u.Message)
	case "photo":
		b.onPhoto(ctx, log, u.Message)
	case "text":
		b.onText(ctx, log, u.Message)
	}
}

// Throttled tells a user who is sending too fast that their update was dropped.
func (b *Bot) Throttled(ctx context.Context, u nt.Update) {
	from := u.Sender()
	if from == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, b.cfg.HandlerTimeout)
	defer cancel()
	if u.Callback != nil {
		b.answer(ctx, u.Callback, txtSlowDownShort)
	}
	b.send(ctx, from.ID, txtSlowDown, nil)
}

// ---- outbound helpers ----

func (b *Bot) send(ctx context.Context, chat int64, text string, kb *nt.InlineKeyboard) {
	if _, err := b.msg.SendMessage(ctx, nt.Message{ChatID: chat, Text: text, Keyboard: kb}); err != nil {
		metrics.NotifyFailuresTotal.Inc()
		b.log.Warn("send message", zap.Int64("chat_id", chat), zap.Error(err))
	}
}

// notify is a fire-and-forget message to a user other than the sender.
func (b *Bot) notify(ctx context.Context, userID int64, text string) {
	b.send(ctx, userID, text, nil)
}

// edit replaces the message behind a callback, falling back to a new message
// when the original cannot be edited.
func (b *Bot) edit(ctx context.Context, cq *nt.CallbackQuery, text string, kb *nt.InlineKeyboard) {
	if cq.Message == nil {
		b.send(ctx, cq.From.ID, text, kb)
		return
	}
	if err := b.msg.EditMessageText(ctx, cq.Message.Chat.ID, cq.Message.MessageID, text, kb); err != nil {
		b.log.Debug("edit failed, sending instead", zap.Error(err))
		b.send(ctx, cq.Message.Chat.ID, text, kb)
	}
}

func (b *Bot) answer(ctx context.Context, cq *nt.CallbackQuery, text string) {
	if err := b.msg.AnswerCallback(ctx, cq.ID, text, false); err != nil {
		b.log.Debug("answer callback", zap.Error(err))
	}
}

// ---- session helpers ----

func (b *Bot) state(ctx context.Context, userID int64) (session.State, error) {
	s, err := b.sessions.Get(ctx, userID)
	if err != nil {
		return session.Idle{}, fmt.Errorf("load session: %w", err)
	}
	return s, nil
}

func (b *Bot) setState(ctx context.Context, userID int64, s session.State) {
	fields := []zap.Field{zap.Int64("user_id", userID), zap.String("flow", string(s.Flow())), zap.Int("step", session.Step(s))}
	if err := b.sessions.Set(ctx, userID, s); err != nil {
		b.log.Error("save session", append(fields, zap.Error(err))...)
		return
	}
	b.log.Debug("session advanced", fields...)
}

func (b *Bot) clearState(ctx context.Context, userID int64) {
	if err := b.sessions.Clear(ctx, userID); err != nil {
		b.log.Error("clear session", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// ---- errors ----

// userMessage maps an error to the message shown to the user.
func userMessage(err error) string {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		return "❌ " + nt.Escape(capitalize(ve.Reason)) + "."
	case errors.Is(err, model.ErrInsufficientFunds):
		return "❌ <b>Saldo insuficiente.</b> Recarga para continuar."
	case errors.Is(err, model.ErrUnauthorized):
		return txtUnauthorized
	case errors.Is(err, model.ErrAlreadyResolved):
		return txtResolved
	case errors.Is(err, model.ErrNotFound):
		return txtNotFound
	case errors.Is(err, ledger.ErrLotteryClosed):
		return txtGeorgiaClosed
	case errors.Is(err, model.ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return txtTransient
	}
	return txtInternal
}

// abortsFlow reports whether a failure ends the current flow. Input errors and
// transient failures leave the step in place so the user can retry.
func abortsFlow(err error) bool {
	return errors.Is(err, model.ErrInsufficientFunds) ||
		errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrUnauthorized)
}

// fail reports err to the user and applies the flow policy.
func (b *Bot) fail(ctx context.Context, log *zap.Logger, userID int64, err error) {
	if !model.IsValidation(err) && !errors.Is(err, model.ErrInsufficientFunds) {
		log.Warn("operation failed", zap.Error(err))
	}
	if abortsFlow(err) {
		b.clearState(ctx, userID)
	}
	b.send(ctx, userID, userMessage(err), nil)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// ---- commands and free text ----

func (b *Bot) onText(ctx context.Context, log *zap.Logger, m *nt.IncomingMsg) {
	text := strings.TrimSpace(m.Text)
	if strings.HasPrefix(text, "/") {
		b.onCommand(ctx, log, m, text)
		return
	}
	uid := m.From.ID
	st, err := b.state(ctx, uid)
	if err != nil {
		b.fail(ctx, log, uid, err)
		return
	}
	if session.AdminOnly(st) && !b.ledger.IsAdmin(uid) {
		b.clearState(ctx, uid)
		b.send(ctx, uid, txtUnauthorized, nil)
		return
	}

	switch s := st.(type) {
	case session.AwaitingBet:
		b.onBetText(ctx, log, m, s, text)
	case session.AwaitingWithdrawAmount:
		b.onWithdrawAmount(ctx, log, uid, s, text)
	case session.AwaitingWithdrawAccount:
		b.onWithdrawAccount(ctx, log, m, s, text)
	case session.AwaitingTransferTarget:
		b.onTransferTarget(ctx, log, uid, text)
	case session.AwaitingTransferAmount:
		b.onTransferAmount(ctx, log, m, s, text)
	case session.AdminMethodName:
		b.setState(ctx, uid, session.AdminMethodCard{Kind: s.Kind, Name: text})
		if s.Kind == model.MethodWithdraw {
			b.send(ctx, uid, "Ahora envía el <b>número o instrucción para retirar</b>:", nil)
		} else {
			b.send(ctx, uid, "Ahora envía el <b>número de la tarjeta/cuenta</b>:", nil)
		}
	case session.AdminMethodCard:
		b.setState(ctx, uid, session.AdminMethodConfirm{Kind: s.Kind, Name: s.Name, Card: text})
		if s.Kind == model.MethodWithdraw {
			b.send(ctx, uid, "Ahora envía el <b>número a confirmar</b> (si aplica, o escribe 'ninguno'):", nil)
		} else {
			b.send(ctx, uid, "Ahora envía el <b>número a confirmar</b> (ej: 1234):", nil)
		}
	case session.AdminMethodConfirm:
		b.onAdminMethodConfirm(ctx, log, uid, s, text)
	case session.AdminSetRate:
		b.onAdminRate(ctx, log, uid, text)
	case session.AdminSetPrice:
		b.onAdminPrice(ctx, log, uid, s, text)
	case session.AwaitingDepositProof:
		b.send(ctx, uid, "📸 Envía la <b>foto del comprobante</b> con el monto en el caption (ej: <code>10 usd</code>).", nil)
	default:
		b.send(ctx, uid, txtFallback, b.mainMenu(uid))
	}
}

func (b *Bot) onCommand(ctx context.Context, log *zap.Logger, m *nt.IncomingMsg, text string) {
	uid := m.From.ID
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/start":
		var ref int64
		if len(fields) > 1 {
			ref, _ = strconv.ParseInt(fields[1], 10, 64)
		}
		b.start(ctx, log, m.From, ref)
	case "/balance":
		u, err := b.ledger.Balance(ctx, uid)
		if err != nil {
			b.fail(ctx, log, uid, err)
			return
		}
		b.send(ctx, uid, nt.FormatBalance(u), nil)
	case "/cancel":
		b.clearState(ctx, uid)
		b.send(ctx, uid, txtMainMenu, b.mainMenu(uid))
	case "/admin":
		if !b.ledger.IsAdmin(uid) {
			b.send(ctx, uid, txtFallback, b.mainMenu(uid))
			return
		}
		b.clearState(ctx, uid)
		b.send(ctx, uid, txtAdminPanel, adminMenu())
	case "/pending":
		b.showPending(ctx, log, uid, nil)
	default:
		b.send(ctx, uid, txtFallback, b.mainMenu(uid))
	}
}

// start registers the user, links the referrer once and shows the main menu.
// Any half-finished flow is dropped.
func (b *Bot) start(ctx context.Context, log *zap.Logger, from *nt.User, ref int64) {
	name := from.FirstName
	if name == "" {
		name = "Jugador"
	}
	reg, err := b.ledger.Register(ctx, from.ID, name, ref)
	if err != nil {
		b.fail(ctx, log, from.ID, err)
		return
	}
	b.clearState(ctx, from.ID)
	if reg.Referred {
		b.notify(ctx, ref, fmt.Sprintf("🎉 ¡Felicidades! <b>%s</b> se unió usando tu enlace.", nt.Escape(name)))
	}
	b.send(ctx, from.ID, welcome(nt.Escape(name), reg.Created), b.mainMenu(from.ID))
}

// ensureUser registers unknown users on any interaction so balance lookups
// never fail for someone who skipped /start.
func (b *Bot) ensureUser(ctx context.Context, from *nt.User) error {
	_, err := b.ledger.Register(ctx, from.ID, from.FirstName, 0)
	return err
}

func displayName(u *nt.User) string {
	switch {
	case u == nil:
		return ""
	case u.Username != "":
		return "@" + u.Username
	case u.FirstName != "":
		return u.FirstName
	}
	return strconv.FormatInt(u.ID, 10)
}
