package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"RifasCuba/internal/clock"
	"RifasCuba/internal/events"
	"RifasCuba/internal/ledger"
	"RifasCuba/internal/model"
	"RifasCuba/internal/money"
	nt "RifasCuba/internal/notifier"
	"RifasCuba/internal/session"
	"RifasCuba/internal/store"
)

const (
	adminID   = int64(1000)
	adminChat = int64(-500)
)

var havana, _ = time.LoadLocation("America/Havana")

// outbound is one call made on the messenger.
type outbound struct {
	op      string // send, photo, edit, caption, answer
	chat    int64
	msgID   int64
	text    string
	file    string
	kb      *nt.InlineKeyboard
	cbID    string
	removed bool
}

type fakeMessenger struct {
	mu   sync.Mutex
	next int64
	out  []outbound
}

func (f *fakeMessenger) record(o outbound) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.out = append(f.out, o)
	return f.next
}

func (f *fakeMessenger) SendMessage(_ context.Context, m nt.Message) (int64, error) {
	return f.record(outbound{op: "send", chat: m.ChatID, text: m.Text, kb: m.Keyboard}), nil
}

func (f *fakeMessenger) SendPhoto(_ context.Context, p nt.Photo) (int64, error) {
	return f.record(outbound{op: "photo", chat: p.ChatID, text: p.Caption, file: p.File, kb: p.Keyboard}), nil
}

func (f *fakeMessenger) EditMessageText(_ context.Context, chat, id int64, text string, kb *nt.InlineKeyboard) error {
	f.record(outbound{op: "edit", chat: chat, msgID: id, text: text, kb: kb, removed: kb == nil})
	return nil
}

func (f *fakeMessenger) EditMessageCaption(_ context.Context, chat, id int64, caption string, kb *nt.InlineKeyboard) error {
	f.record(outbound{op: "caption", chat: chat, msgID: id, text: caption, kb: kb, removed: kb == nil})
	return nil
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, id, text string, _ bool) error {
	f.record(outbound{op: "answer", cbID: id, text: text})
	return nil
}

func (f *fakeMessenger) reset() {
	f.mu.Lock()
	f.out = nil
	f.mu.Unlock()
}

// count returns how many calls of op were addressed to chat.
func (f *fakeMessenger) count(op string, chat int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, o := range f.out {
		if o.op == op && o.chat == chat {
			n++
		}
	}
	return n
}

// last returns the most recent call of op addressed to chat ("answer" ignores chat).
func (f *fakeMessenger) last(t *testing.T, op string, chat int64) outbound {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.out) - 1; i >= 0; i-- {
		o := f.out[i]
		if o.op == op && (op == "answer" || o.chat == chat) {
			return o
		}
	}
	t.Fatalf("no %s to %d in %+v", op, chat, f.out)
	return outbound{}
}

type harness struct {
	bot      *Bot
	msg      *fakeMessenger
	ledger   *ledger.Service
	st       *store.MemoryStore
	sessions *session.MemoryStore
}

func newHarness(t *testing.T, now time.Time) harness {
	t.Helper()
	st := store.NewMemoryStore()
	l := ledger.New(st, events.NoopPublisher{}, clock.Fixed(now), ledger.Config{
		AdminID:         adminID,
		BonusCUP:        7000,
		DefaultRate:     decimal.NewFromInt(110),
		ReferralPercent: 5,
		MinWithdrawUSD:  100,
		Location:        havana,
	}, zap.NewNop())
	sessions := session.NewMemoryStore()
	msg := &fakeMessenger{}
	b := New(l, sessions, msg, Config{
		AdminChatID: adminChat,
		BotUsername: "RifasCubaBot",
		Location:    havana,
	}, zap.NewNop())
	return harness{bot: b, msg: msg, ledger: l, st: st, sessions: sessions}
}

func morning() time.Time { return time.Date(2025, 3, 10, 10, 0, 0, 0, havana) }

func (h harness) handle(u nt.Update) { h.bot.Handle(context.Background(), u) }

func (h harness) state(t *testing.T, uid int64) session.State {
	t.Helper()
	s, err := h.sessions.Get(context.Background(), uid)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func (h harness) balance(t *testing.T, uid int64) model.User {
	t.Helper()
	u, err := h.ledger.Balance(context.Background(), uid)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

// credit seeds balances through an approved deposit without the bonus.
func (h harness) credit(t *testing.T, uid int64, usd, cup money.Amount) {
	t.Helper()
	ctx := context.Background()
	h.st.EnsureUser(ctx, uid, "")
	tx, err := h.st.CreateDeposit(ctx, model.Transaction{UserID: uid, AmountUSD: usd, AmountCUP: cup})
	if err != nil {
		t.Fatal(err)
	}
	_, err = h.st.ResolveTransaction(ctx, tx.ID, model.TxApproved, "", func(tx model.Transaction) ([]model.Delta, error) {
		return []model.Delta{{UserID: uid, USD: usd, CUP: cup}}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (h harness) method(t *testing.T, kind model.MethodKind) model.PaymentMethod {
	t.Helper()
	m, err := h.ledger.AddMethod(context.Background(), adminID, kind, "Transfermóvil", "9200 0000", "5555")
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func from(uid int64) *nt.User { return &nt.User{ID: uid, FirstName: "Ana"} }

func text(uid int64, s string) nt.Update {
	return nt.Update{Message: &nt.IncomingMsg{MessageID: 1, From: from(uid), Chat: nt.Chat{ID: uid}, Text: s}}
}

func press(uid int64, data string) nt.Update {
	return nt.Update{Callback: &nt.CallbackQuery{
		ID: "cb-" + data, From: *from(uid), Data: data,
		Message: &nt.IncomingMsg{MessageID: 77, Chat: nt.Chat{ID: uid}, Text: "menu"},
	}}
}

func photo(uid int64, caption, file string) nt.Update {
	return nt.Update{Message: &nt.IncomingMsg{
		MessageID: 2, From: from(uid), Chat: nt.Chat{ID: uid}, Caption: caption,
		Photo: []nt.PhotoSize{{FileID: "small", Width: 90, Height: 90}, {FileID: file, Width: 800, Height: 600}},
	}}
}

func webApp(uid int64, data string) nt.Update {
	return nt.Update{Message: &nt.IncomingMsg{
		MessageID: 3, From: from(uid), Chat: nt.Chat{ID: uid}, WebAppData: &nt.WebAppData{Data: data},
	}}
}

// buttonData finds the callback data of the first button starting with prefix.
func buttonData(t *testing.T, kb *nt.InlineKeyboard, prefix string) string {
	t.Helper()
	if kb == nil {
		t.Fatal("no keyboard")
	}
	for _, row := range kb.Rows {
		for _, b := range row {
			if strings.HasPrefix(b.Data, prefix) {
				return b.Data
			}
		}
	}
	t.Fatalf("no button with prefix %q", prefix)
	return ""
}

// reviewMessage is the admin's copy of a review post, as it comes back inside
// a callback.
func reviewMessage(o outbound) *nt.IncomingMsg {
	m := &nt.IncomingMsg{MessageID: 900, Chat: nt.Chat{ID: o.chat}}
	if o.op == "photo" {
		m.Caption = o.text
		m.Photo = []nt.PhotoSize{{FileID: o.file}}
	} else {
		m.Text = o.text
	}
	return m
}

func adminPress(data string, m *nt.IncomingMsg) nt.Update {
	return nt.Update{Callback: &nt.CallbackQuery{ID: "adm", From: nt.User{ID: adminID, FirstName: "Admin"}, Data: data, Message: m}}
}

func TestStart_RegistersAndLinksReferrer(t *testing.T) {
	h := newHarness(t, morning())

	h.handle(text(2, "/start"))
	if got := h.msg.last(t, "send", 2).text; !strings.Contains(got, "¡Hola, <b>Ana</b>!") {
		t.Fatalf("new user greeting: %q", got)
	}

	h.sessions.Set(context.Background(), 1, session.AwaitingTransferTarget{})
	h.handle(text(1, "/start 2"))
	if got := h.msg.last(t, "send", 2).text; !strings.Contains(got, "se unió usando tu enlace") {
		t.Fatalf("referrer not notified: %q", got)
	}
	if u := h.balance(t, 1); u.ReferredBy != 2 {
		t.Fatalf("referred_by = %d", u.ReferredBy)
	}
	if _, ok := h.state(t, 1).(session.Idle); !ok {
		t.Fatal("/start must drop the active flow")
	}

	h.msg.reset()
	h.handle(text(1, "/start@RifasCubaBot 3"))
	if got := h.msg.last(t, "send", 1).text; !strings.Contains(got, "de nuevo") {
		t.Fatalf("returning greeting: %q", got)
	}
	if u := h.balance(t, 1); u.ReferredBy != 2 {
		t.Fatal("referrer must never change")
	}
}

func TestMainMenu_AdminButtonOnlyForAdmin(t *testing.T) {
	h := newHarness(t, morning())
	has := func(kb *nt.InlineKeyboard) bool {
		for _, row := range kb.Rows {
			for _, b := range row {
				if b.Data == cbAdminPanel {
					return true
				}
			}
		}
		return false
	}
	if has(h.bot.mainMenu(1)) {
		t.Fatal("regular user sees the admin button")
	}
	if !has(h.bot.mainMenu(adminID)) {
		t.Fatal("admin misses the admin button")
	}
}

func TestLotteryGate(t *testing.T) {
	closed := newHarness(t, time.Date(2025, 3, 10, 13, 0, 0, 0, havana))
	closed.handle(press(1, model.LotteryGeorgia.Key()))
	if got := closed.msg.last(t, "edit", 1).text; got != txtGeorgiaClosed {
		t.Fatalf("closed Georgia shows %q", got)
	}
	if _, ok := closed.state(t, 1).(session.Idle); !ok {
		t.Fatal("closed lottery must not start a flow")
	}

	closed.handle(press(1, model.LotteryFlorida.Key()))
	if s, ok := closed.state(t, 1).(session.Playing); !ok || s.Lottery != model.LotteryFlorida {
		t.Fatalf("florida is always open, state %#v", closed.state(t, 1))
	}

	open := newHarness(t, morning())
	open.handle(press(1, model.LotteryGeorgia.Key()))
	if s, ok := open.state(t, 1).(session.Playing); !ok || s.Lottery != model.LotteryGeorgia {
		t.Fatalf("state %#v", open.state(t, 1))
	}
}

func TestBetFlow(t *testing.T) {
	h := newHarness(t, morning())
	h.credit(t, 1, 500, 0)

	h.handle(press(1, prefixType+string(model.BetFijo)))
	if got := h.msg.last(t, "answer", 0).text; got != txtPickFirst {
		t.Fatalf("bet type without lottery: %q", got)
	}

	h.handle(press(1, cbPlay))
	h.handle(press(1, model.LotteryFlorida.Key()))
	h.handle(press(1, prefixType+string(model.BetFijo)))
	want := session.AwaitingBet{Lottery: model.LotteryFlorida, BetType: model.BetFijo}
	if got := h.state(t, 1); got != want {
		t.Fatalf("state %#v", got)
	}

	h.handle(text(1, "12 con 0 usd"))
	if got := h.msg.last(t, "send", 1).text; got != txtBadFormat {
		t.Fatalf("bad format reply %q", got)
	}
	if got := h.state(t, 1); got != want {
		t.Fatal("a format error must keep the step")
	}

	h.handle(text(1, "12 con 1 usd"))
	if got := h.msg.last(t, "send", 1).text; !strings.Contains(got, "12 con 1 usd") {
		t.Fatalf("confirmation %q", got)
	}
	if u := h.balance(t, 1); u.USD != 400 {
		t.Fatalf("usd = %s", u.USD)
	}
	if _, ok := h.state(t, 1).(session.Idle); !ok {
		t.Fatal("flow must end after a bet")
	}

	h.handle(press(1, model.LotteryNewYork.Key()))
	h.handle(press(1, prefixType+string(model.BetCentena)))
	h.handle(text(1, "123 con 50 usd"))
	if got := h.msg.last(t, "send", 1).text; !strings.Contains(got, "Saldo insuficiente") {
		t.Fatalf("insufficient reply %q", got)
	}
	if _, ok := h.state(t, 1).(session.Idle); !ok {
		t.Fatal("insufficient funds must end the flow")
	}
	if u := h.balance(t, 1); u.USD != 400 {
		t.Fatal("failed bet changed the balance")
	}
}

func TestBetFlow_PaysReferrerCommission(t *testing.T) {
	h := newHarness(t, morning())
	h.handle(text(2, "/start"))
	h.handle(text(1, "/start 2"))
	h.credit(t, 1, 1000, 0)

	h.sessions.Set(context.Background(), 1, session.AwaitingBet{Lottery: model.LotteryFlorida, BetType: model.BetFijo})
	h.handle(text(1, "12 con 10 usd"))
	if got := h.msg.last(t, "send", 2).text; !strings.Contains(got, "0.50 USD") {
		t.Fatalf("commission notice %q", got)
	}
	if u := h.balance(t, 2); u.USD != 50 {
		t.Fatalf("referrer usd = %s", u.USD)
	}
}

func TestDepositReview(t *testing.T) {
	h := newHarness(t, morning())
	m := h.method(t, model.MethodDeposit)

	h.handle(photo(1, "10 usd", "proof"))
	if got := h.msg.last(t, "send", 1).text; got != txtNoPhoto {
		t.Fatalf("unexpected photo reply %q", got)
	}

	h.handle(press(1, fmt.Sprintf("%s%d", prefixDeposit, m.ID)))
	if got := h.state(t, 1); got != (session.AwaitingDepositProof{MethodID: m.ID}) {
		t.Fatalf("state %#v", got)
	}
	h.handle(photo(1, "sin monto", "proof"))
	if got := h.msg.last(t, "send", 1).text; got != txtBadCaption {
		t.Fatalf("caption reply %q", got)
	}

	h.handle(photo(1, "10 usd", "proof-big"))
	review := h.msg.last(t, "photo", adminChat)
	if review.file != "proof-big" {
		t.Fatalf("admin got file %q", review.file)
	}
	if _, ok := h.state(t, 1).(session.Idle); !ok {
		t.Fatal("flow must end after the proof")
	}
	approve := buttonData(t, review.kb, prefixApproveDep)

	h.handle(press(1, approve))
	if got := h.msg.last(t, "answer", 0).text; got != txtUnauthorized {
		t.Fatalf("non-admin approve: %q", got)
	}
	if u := h.balance(t, 1); u.USD != 0 {
		t.Fatal("non-admin approved a deposit")
	}

	h.handle(adminPress(approve, reviewMessage(review)))
	if got := h.msg.last(t, "send", 1).text; !strings.Contains(got, "Depósito aprobado") {
		t.Fatalf("user notice %q", got)
	}
	annotated := h.msg.last(t, "caption", adminChat)
	if !annotated.removed || !strings.Contains(annotated.text, "APPROVED") {
		t.Fatalf("annotation %+v", annotated)
	}
	u := h.balance(t, 1)
	if u.USD != 1000 || u.BonusUSD != 64 {
		t.Fatalf("usd=%s bonus=%s", u.USD, u.BonusUSD)
	}

	notices := h.msg.count("send", 1)
	h.handle(adminPress(approve, reviewMessage(review)))
	if n := h.msg.count("send", 1); n != notices {
		t.Fatalf("second approval notified the user again: %d sends, want %d", n, notices)
	}
	if got := h.msg.last(t, "answer", 0).text; got != "Esta solicitud ya fue procesada." {
		t.Fatalf("second approval: %q", got)
	}
	if again := h.balance(t, 1); again != u {
		t.Fatal("second approval changed balances")
	}
}

func TestWithdrawFlow_RejectRefunds(t *testing.T) {
	h := newHarness(t, morning())
	m := h.method(t, model.MethodWithdraw)

	h.handle(press(1, cbWithdraw))
	if got := h.msg.last(t, "edit", 1).text; !strings.Contains(got, "al menos 1.00 USD") {
		t.Fatalf("empty balance withdraw: %q", got)
	}

	h.credit(t, 1, 2000, 0)
	h.handle(press(1, cbWithdraw))
	h.handle(press(1, buttonData(t, h.msg.last(t, "edit", 1).kb, prefixWithdraw)))
	if got := h.state(t, 1); got != (session.AwaitingWithdrawAmount{MethodID: m.ID}) {
		t.Fatalf("state %#v", got)
	}

	h.handle(text(1, "500 cup"))
	h.handle(text(1, "0.50"))
	if got := h.msg.last(t, "send", 1).text; !strings.Contains(got, "mínimo") {
		t.Fatalf("minimum reply %q", got)
	}
	h.handle(text(1, "10"))
	if got := h.state(t, 1); got != (session.AwaitingWithdrawAccount{MethodID: m.ID, Amount: 1000}) {
		t.Fatalf("state %#v", got)
	}
	h.handle(text(1, "solo cuenta"))
	if got := h.msg.last(t, "send", 1).text; got != txtWithdrawFormat {
		t.Fatalf("format reply %q", got)
	}
	h.handle(text(1, "5555 0000 | 1234"))
	if u := h.balance(t, 1); u.USD != 1000 {
		t.Fatalf("escrow: usd = %s", u.USD)
	}

	review := h.msg.last(t, "send", adminChat)
	h.handle(adminPress(buttonData(t, review.kb, prefixRejectWit), reviewMessage(review)))
	if got := h.msg.last(t, "send", 1).text; !strings.Contains(got, "reembolsado <b>10.00 USD</b>") {
		t.Fatalf("refund notice %q", got)
	}
	if annotated := h.msg.last(t, "edit", adminChat); !strings.Contains(annotated.text, "REJECTED") || !annotated.removed {
		t.Fatalf("annotation %+v", annotated)
	}
	if u := h.balance(t, 1); u.USD != 2000 {
		t.Fatalf("refund: usd = %s", u.USD)
	}
}

func TestWithdrawAmount_OverBalanceAborts(t *testing.T) {
	h := newHarness(t, morning())
	m := h.method(t, model.MethodWithdraw)
	h.credit(t, 1, 500, 0)
	h.sessions.Set(context.Background(), 1, session.AwaitingWithdrawAmount{MethodID: m.ID})

	h.handle(text(1, "6"))
	if _, ok := h.state(t, 1).(session.Idle); !ok {
		t.Fatal("over-balance amount must end the flow")
	}
	if u := h.balance(t, 1); u.USD != 500 {
		t.Fatal("balance changed")
	}
}

func TestTransferFlow(t *testing.T) {
	h := newHarness(t, morning())
	h.credit(t, 1, 500, 0)
	h.handle(text(2, "/start"))

	h.handle(press(1, cbTransfer))
	for _, in := range []string{"abc", "1", "77"} {
		h.handle(text(1, in))
		if _, ok := h.state(t, 1).(session.AwaitingTransferTarget); !ok {
			t.Fatalf("%q must keep the target step", in)
		}
	}
	if got := h.msg.last(t, "send", 1).text; got != txtUnknownTarget {
		t.Fatalf("unknown target reply %q", got)
	}

	h.handle(text(1, "2"))
	h.handle(text(1, "9"))
	if _, ok := h.state(t, 1).(session.Idle); !ok {
		t.Fatal("insufficient transfer must end the flow")
	}
	if got := h.msg.last(t, "send", 1).text; !strings.Contains(got, "Tienes 5.00 USD") {
		t.Fatalf("insufficient reply %q", got)
	}

	h.handle(press(1, cbTransfer))
	h.handle(text(1, "2"))
	h.handle(text(1, "2,5"))
	if a, b := h.balance(t, 1), h.balance(t, 2); a.USD != 250 || b.USD != 250 {
		t.Fatalf("balances %s / %s", a.USD, b.USD)
	}
	if got := h.msg.last(t, "send", 2).text; !strings.Contains(got, "Has recibido una transferencia") {
		t.Fatalf("recipient notice %q", got)
	}
}

func TestTransfer_OversizedAmountRejected(t *testing.T) {
	h := newHarness(t, morning())
	h.credit(t, 1, 500, 0)
	h.handle(text(2, "/start"))

	h.handle(press(1, cbTransfer))
	h.handle(text(1, "2"))
	h.handle(text(1, "184467440737095517.17"))
	if got := h.msg.last(t, "send", 1).text; got != txtBadAmount {
		t.Fatalf("oversized chat amount reply %q", got)
	}
	if _, ok := h.state(t, 1).(session.AwaitingTransferAmount); !ok {
		t.Fatal("oversized amount must keep the amount step")
	}

	h.handle(webApp(1, `{"action":"transfer_request","target_id":2,"amount_usd":"184467440737095517.17"}`))
	if got := h.msg.last(t, "send", 1).text; !strings.Contains(got, "Monto fuera de rango") {
		t.Fatalf("oversized web amount reply %q", got)
	}
	if a, b := h.balance(t, 1), h.balance(t, 2); a.USD != 500 || b.USD != 0 {
		t.Fatalf("balances moved: %s / %s", a.USD, b.USD)
	}
}

func TestAdminFlows(t *testing.T) {
	h := newHarness(t, morning())
	ctx := context.Background()

	h.handle(press(1, cbAdmAddDep))
	if got := h.msg.last(t, "answer", 0).text; got != txtUnauthorized {
		t.Fatalf("non-admin: %q", got)
	}
	if _, ok := h.state(t, 1).(session.Idle); !ok {
		t.Fatal("non-admin entered an admin flow")
	}

	h.handle(press(adminID, cbAdmAddDep))
	for _, in := range []string{"Transfermóvil", "9200 1234", "5555"} {
		h.handle(text(adminID, in))
	}
	methods, _ := h.ledger.Methods(ctx, model.MethodDeposit)
	if len(methods) != 1 || methods[0].Card != "9200 1234" || methods[0].Confirm != "5555" {
		t.Fatalf("methods %+v", methods)
	}

	h.handle(press(adminID, cbAdmRate))
	h.handle(text(adminID, "caro"))
	if _, ok := h.state(t, adminID).(session.AdminSetRate); !ok {
		t.Fatal("bad rate must keep the step")
	}
	h.handle(text(adminID, "120"))
	if rate, _ := h.ledger.ExchangeRate(ctx); !rate.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("rate %s", rate)
	}

	h.handle(press(adminID, prefixAdmPrice+string(model.BetParle)))
	h.handle(text(adminID, "70 0,20"))
	prices, _ := h.ledger.Prices(ctx)
	if p := prices[model.BetParle]; p.CUP != 7000 || p.USD != 20 {
		t.Fatalf("parle price %+v", p)
	}

	h.handle(press(adminID, fmt.Sprintf("%sdep_%d", prefixAdmToggle, methods[0].ID)))
	if active, _ := h.ledger.Methods(ctx, model.MethodDeposit); len(active) != 0 {
		t.Fatal("toggle did not deactivate")
	}
	h.handle(press(adminID, fmt.Sprintf("%sdep_%d", prefixAdmDelete, methods[0].ID)))
	if got := h.msg.last(t, "answer", 0).text; got != "Método eliminado." {
		t.Fatalf("delete answer %q", got)
	}
}

func TestAdminStep_RecheckedForEveryMessage(t *testing.T) {
	h := newHarness(t, morning())
	h.sessions.Set(context.Background(), 1, session.AdminSetRate{})

	h.handle(text(1, "1"))
	if got := h.msg.last(t, "send", 1).text; got != txtUnauthorized {
		t.Fatalf("reply %q", got)
	}
	if _, ok := h.state(t, 1).(session.Idle); !ok {
		t.Fatal("stale admin state must be cleared")
	}
	if rate, _ := h.ledger.ExchangeRate(context.Background()); !rate.Equal(decimal.NewFromInt(110)) {
		t.Fatal("non-admin changed the rate")
	}
}

func TestPendingCommand_ResendsReviews(t *testing.T) {
	h := newHarness(t, morning())
	m := h.method(t, model.MethodDeposit)
	h.st.EnsureUser(context.Background(), 1, "Ana")
	if _, err := h.ledger.RequestDeposit(context.Background(), 1, m.ID, 500, 0, ""); err != nil {
		t.Fatal(err)
	}

	h.handle(text(1, "/pending"))
	if got := h.msg.last(t, "send", 1).text; got != txtUnauthorized {
		t.Fatalf("non-admin /pending: %q", got)
	}

	h.handle(text(adminID, "/pending"))
	review := h.msg.last(t, "send", adminChat)
	buttonData(t, review.kb, prefixApproveDep)
}

func TestWebAppActions(t *testing.T) {
	h := newHarness(t, morning())
	h.credit(t, 1, 500, 0)
	h.handle(text(2, "/start"))
	dep := h.method(t, model.MethodDeposit)

	h.handle(webApp(1, `{"action":"bet_placed","lottery":"new_york","bet_type":"centena","raw":"123","cost_usd":"1.5"}`))
	if u := h.balance(t, 1); u.USD != 350 {
		t.Fatalf("bet charge: usd = %s", u.USD)
	}

	h.handle(webApp(1, `{"action":"bet_placed","lottery":"florida","bet_type":"fijo","raw":"12","cost_usd":90}`))
	if got := h.msg.last(t, "send", 1).text; !strings.Contains(got, "Saldo insuficiente") {
		t.Fatalf("forged bet reply %q", got)
	}

	h.handle(webApp(1, fmt.Sprintf(`{"action":"deposit_request","method_id":%d,"amount_cup":500,"proof_url":"https://img/1.png"}`, dep.ID)))
	review := h.msg.last(t, "photo", adminChat)
	if review.file != "https://img/1.png" {
		t.Fatalf("proof %q", review.file)
	}

	h.handle(webApp(1, `{"action":"transfer_request","target_id":2,"amount_usd":1}`))
	if u := h.balance(t, 2); u.USD != 100 {
		t.Fatalf("target usd = %s", u.USD)
	}

	bets, _ := h.ledger.RecentBets(context.Background(), 1, 10)
	for _, in := range []struct{ payload, reply string }{
		{`{"action":"bet_placed","lottery":"miami","bet_type":"fijo","raw":"12","cost_usd":1}`, "Lotería no reconocida"},
		{`{"action":"bet_placed","lottery":"florida","bet_type":"quiniela","raw":"12","cost_usd":1}`, "Tipo de jugada no reconocido"},
		{`{"action":"bet_placed","lottery":"florida","bet_type":"fijo","raw":"12","cost_usd":"92233720368547758.08"}`, "Monto fuera de rango"},
	} {
		h.handle(webApp(1, in.payload))
		if got := h.msg.last(t, "send", 1).text; !strings.Contains(got, in.reply) {
			t.Fatalf("%s: reply %q", in.payload, got)
		}
	}
	if after, _ := h.ledger.RecentBets(context.Background(), 1, 10); len(after) != len(bets) {
		t.Fatal("rejected web bet was recorded")
	}

	h.handle(webApp(1, `{"action":"jackpot"}`))
	if got := h.msg.last(t, "send", 1).text; got != txtUnknownAction {
		t.Fatalf("unknown action reply %q", got)
	}
	h.handle(webApp(1, `not json`))
	if got := h.msg.last(t, "send", 1).text; got != txtUnknownAction {
		t.Fatalf("bad payload reply %q", got)
	}
}

func TestWebAppBet_GeorgiaClosed(t *testing.T) {
	h := newHarness(t, time.Date(2025, 3, 10, 19, 0, 0, 0, havana))
	h.credit(t, 1, 500, 0)
	h.handle(webApp(1, `{"action":"bet_placed","lottery":"georgia","bet_type":"fijo","raw":"12","cost_usd":1}`))
	if got := h.msg.last(t, "send", 1).text; got != txtGeorgiaClosed {
		t.Fatalf("reply %q", got)
	}
	if u := h.balance(t, 1); u.USD != 500 {
		t.Fatal("closed lottery charged the user")
	}
}

func TestThrottled_RepliesToSender(t *testing.T) {
	h := newHarness(t, morning())
	h.bot.Throttled(context.Background(), press(1, cbTransfer))
	if got := h.msg.last(t, "send", 1).text; got != txtSlowDown {
		t.Fatalf("notice %q", got)
	}
	if got := h.msg.last(t, "answer", 0).text; got != txtSlowDownShort {
		t.Fatalf("callback answer %q", got)
	}
}

func TestSetState_LogsFlowStep(t *testing.T) {
	h := newHarness(t, morning())
	core, logs := observer.New(zapcore.DebugLevel)
	h.bot.log = zap.New(core)
	h.handle(text(2, "/start"))

	h.handle(press(1, cbTransfer))
	h.handle(text(1, "2"))

	var steps []int64
	for _, e := range logs.FilterMessage("session advanced").All() {
		steps = append(steps, e.ContextMap()["step"].(int64))
	}
	if len(steps) != 2 || steps[0] != 1 || steps[1] != 2 {
		t.Fatalf("logged steps %v, want [1 2]", steps)
	}
}
