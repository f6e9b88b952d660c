package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"RifasCuba/internal/clock"
	"RifasCuba/internal/events"
	"RifasCuba/internal/model"
	"RifasCuba/internal/money"
	"RifasCuba/internal/store"
)

const admin = int64(1000)

var havana, _ = time.LoadLocation("America/Havana")

type fixture struct {
	svc *Service
	st  *store.MemoryStore
	rec *events.Recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := store.NewMemoryStore()
	rec := &events.Recorder{}
	svc := New(st, rec, clock.Fixed(time.Date(2025, 3, 10, 10, 0, 0, 0, havana)), Config{
		AdminID:         admin,
		BonusCUP:        7000,
		DefaultRate:     decimal.NewFromInt(110),
		ReferralPercent: 5,
		MinWithdrawUSD:  100,
		Location:        havana,
	}, zap.NewNop())
	return fixture{svc: svc, st: st, rec: rec}
}

// credit seeds balances without the deposit bonus.
func (f fixture) credit(t *testing.T, userID int64, usd, cup, bonus money.Amount) {
	t.Helper()
	ctx := context.Background()
	f.st.EnsureUser(ctx, userID, "")
	tx, err := f.st.CreateDeposit(ctx, model.Transaction{UserID: userID, AmountUSD: usd, AmountCUP: cup})
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.st.ResolveTransaction(ctx, tx.ID, model.TxApproved, "", func(tx model.Transaction) ([]model.Delta, error) {
		return []model.Delta{{UserID: userID, USD: usd, CUP: cup, Bonus: bonus}}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (f fixture) user(t *testing.T, id int64) model.User {
	t.Helper()
	u, err := f.svc.Balance(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func (f fixture) method(t *testing.T, kind model.MethodKind) model.PaymentMethod {
	t.Helper()
	m, err := f.svc.AddMethod(context.Background(), admin, kind, "Transfermóvil", "9200 0000", "5555")
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestPlaceBet_BonusConsumedFirst(t *testing.T) {
	f := newFixture(t)
	f.credit(t, 1, 500, 0, 150)

	res, err := f.svc.PlaceBet(context.Background(), 1, model.LotteryFlorida, model.BetFijo, "12 con 1 usd, 34 con 2 usd")
	if err != nil {
		t.Fatal(err)
	}
	if res.Bet.CostUSD != 200 || res.Bet.CostCUP != 0 || res.Currency != model.CurrencyUSD {
		t.Fatalf("bet priced from last match: %+v", res.Bet)
	}
	u := f.user(t, 1)
	if u.BonusUSD != 0 || u.USD != 450 {
		t.Fatalf("usd=%s bonus=%s, want 4.50/0.00", u.USD, u.BonusUSD)
	}
}

func TestPlaceBet_FormatErrorAndInsufficient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, 1, 100, 0, 0)
	f.svc.SetPrice(ctx, admin, model.BetParle, model.Price{})

	if _, err := f.svc.PlaceBet(ctx, 1, model.LotteryFlorida, model.BetParle, "12x34"); !model.IsValidation(err) {
		t.Fatalf("unpriced bet: %v", err)
	}
	if _, err := f.svc.PlaceBet(ctx, 1, model.LotteryFlorida, model.BetFijo, "12 con 5 usd"); !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if u := f.user(t, 1); u.USD != 100 {
		t.Fatalf("failed bet mutated balance: %s", u.USD)
	}
	if bets, _ := f.svc.RecentBets(ctx, 1, 10); len(bets) != 0 {
		t.Fatalf("failed bet recorded: %+v", bets)
	}
}

func TestPlaceBet_OversizedPriceRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.st.EnsureUser(ctx, 1, "")

	for _, raw := range []string{"12 con 92233720368547758.08 usd", "12 con 184467440737095517.17 cup"} {
		if _, err := f.svc.PlaceBet(ctx, 1, model.LotteryFlorida, model.BetFijo, raw); !model.IsValidation(err) {
			t.Fatalf("PlaceBet(%q): expected validation error, got %v", raw, err)
		}
	}
	if _, err := f.svc.PlaceBetWithCost(ctx, 1, model.LotteryFlorida, model.BetFijo, "12", 0, 0); !model.IsValidation(err) {
		t.Fatalf("zero web cost: expected validation error, got %v", err)
	}
	if bets, _ := f.svc.RecentBets(ctx, 1, 10); len(bets) != 0 {
		t.Fatalf("bets recorded: %+v", bets)
	}
	if len(f.rec.Events()) != 0 {
		t.Fatalf("events published: %+v", f.rec.Events())
	}
}

func TestPlaceBet_DefaultPriceFallsBackToCUP(t *testing.T) {
	f := newFixture(t)
	f.credit(t, 1, 0, 10000, 0)

	res, err := f.svc.PlaceBet(context.Background(), 1, model.LotteryNewYork, model.BetCentena, "123")
	if err != nil {
		t.Fatal(err)
	}
	if res.Currency != model.CurrencyCUP || res.Bet.CostCUP != 7000 || res.Bet.CostUSD != 0 {
		t.Fatalf("unexpected charge %+v", res.Bet)
	}
	if u := f.user(t, 1); u.CUP != 3000 {
		t.Fatalf("cup = %s, want 30.00", u.CUP)
	}
}

func TestReferralCommission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.Register(ctx, 1, "referrer", 0)
	reg, err := f.svc.Register(ctx, 2, "referred", 1)
	if err != nil || !reg.Referred {
		t.Fatalf("register: %+v %v", reg, err)
	}
	f.credit(t, 2, 500, 20000, 0)

	res, err := f.svc.PlaceBet(ctx, 2, model.LotteryFlorida, model.BetFijo, "12 con 2 usd")
	if err != nil {
		t.Fatal(err)
	}
	if res.Commission == nil || res.Commission.Amount != 10 {
		t.Fatalf("commission = %+v, want 0.10", res.Commission)
	}
	if r := f.user(t, 1); r.USD != 10 {
		t.Fatalf("referrer usd = %s, want 0.10", r.USD)
	}

	res, err = f.svc.PlaceBet(ctx, 2, model.LotteryFlorida, model.BetFijo, "12 con 100 cup")
	if err != nil {
		t.Fatal(err)
	}
	if res.Commission != nil {
		t.Fatalf("CUP bet paid commission %+v", res.Commission)
	}
	if r := f.user(t, 1); r.USD != 10 {
		t.Fatalf("referrer usd after CUP bet = %s", r.USD)
	}

	var commissions int
	for _, e := range f.rec.Events() {
		if e.EventType() == events.TypeCommissionCredited {
			commissions++
		}
	}
	if commissions != 1 {
		t.Fatalf("commission events = %d", commissions)
	}
}

func TestRegister_ReferralRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if reg, _ := f.svc.Register(ctx, 5, "self", 5); reg.Referred {
		t.Fatal("self referral recorded")
	}
	if reg, _ := f.svc.Register(ctx, 6, "ghost-ref", 404); reg.Referred {
		t.Fatal("unknown referrer recorded")
	}
	f.svc.Register(ctx, 7, "a", 0)
	f.svc.Register(ctx, 8, "b", 0)
	f.svc.Register(ctx, 9, "c", 7)
	if reg, _ := f.svc.Register(ctx, 9, "c", 8); reg.Referred || reg.User.ReferredBy != 7 {
		t.Fatalf("referrer must be set once: %+v", reg)
	}
	if n, _ := f.svc.ReferralCount(ctx, 7); n != 1 {
		t.Fatalf("referral count = %d", n)
	}
}

func TestWithdrawal_EscrowLifecycle(t *testing.T) {
	for _, approve := range []bool{true, false} {
		f := newFixture(t)
		ctx := context.Background()
		m := f.method(t, model.MethodWithdraw)
		f.credit(t, 3, 1000, 0, 0)

		tx, err := f.svc.RequestWithdrawal(ctx, 3, m.ID, 400, "1234567890", "1234")
		if err != nil {
			t.Fatal(err)
		}
		if tx.Status != model.TxPending {
			t.Fatalf("status = %s", tx.Status)
		}
		if u := f.user(t, 3); u.USD != 600 {
			t.Fatalf("usd after request = %s, want 6.00", u.USD)
		}

		if _, err := f.svc.Resolve(ctx, admin, tx.ID, approve); err != nil {
			t.Fatal(err)
		}
		want := money.Amount(600)
		if !approve {
			want = 1000
		}
		if u := f.user(t, 3); u.USD != want {
			t.Fatalf("approve=%v: usd = %s, want %s", approve, u.USD, want)
		}
	}
}

func TestWithdrawal_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.method(t, model.MethodWithdraw)
	f.credit(t, 3, 150, 0, 0)

	if _, err := f.svc.RequestWithdrawal(ctx, 3, m.ID, 50, "acc", "1"); !model.IsValidation(err) {
		t.Fatalf("below minimum: %v", err)
	}
	if _, err := f.svc.RequestWithdrawal(ctx, 3, m.ID, 200, "acc", "1"); !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("above balance: %v", err)
	}
	if _, err := f.svc.RequestWithdrawal(ctx, 3, 999, 100, "acc", "1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown method: %v", err)
	}
	if u := f.user(t, 3); u.USD != 150 {
		t.Fatalf("rejected requests mutated balance: %s", u.USD)
	}

	f.credit(t, 4, 50, 0, 0)
	if _, err := f.svc.CanWithdraw(ctx, 4); !model.IsValidation(err) {
		t.Fatalf("can withdraw under minimum: %v", err)
	}
}

func TestDepositApproval_CreditsBonus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.method(t, model.MethodDeposit)
	f.svc.Register(ctx, 2, "p", 0)

	tx, err := f.svc.RequestDeposit(ctx, 2, m.ID, 500, 0, "photo-file-id")
	if err != nil {
		t.Fatal(err)
	}
	if u := f.user(t, 2); u.USD != 0 {
		t.Fatal("deposit credited before approval")
	}
	res, err := f.svc.Resolve(ctx, admin, tx.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	// 70 CUP at 110 CUP/USD is 0.636.. rounded to 0.64
	if res.Bonus != 64 {
		t.Fatalf("bonus = %s, want 0.64", res.Bonus)
	}
	u := f.user(t, 2)
	if u.USD != 500 || u.BonusUSD != 64 {
		t.Fatalf("usd=%s bonus=%s", u.USD, u.BonusUSD)
	}
}

func TestDepositRejection_NoBalanceChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.method(t, model.MethodDeposit)
	f.svc.Register(ctx, 2, "p", 0)
	tx, _ := f.svc.RequestDeposit(ctx, 2, m.ID, 0, 50000, "proof")
	if _, err := f.svc.Resolve(ctx, admin, tx.ID, false); err != nil {
		t.Fatal(err)
	}
	if u := f.user(t, 2); u.CUP != 0 || u.BonusUSD != 0 {
		t.Fatalf("rejected deposit credited: %+v", u)
	}
}

func TestResolve_GuardsAndIdempotence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.method(t, model.MethodDeposit)
	f.svc.Register(ctx, 2, "p", 0)
	tx, _ := f.svc.RequestDeposit(ctx, 2, m.ID, 100, 0, "proof")

	if _, err := f.svc.Resolve(ctx, 2, tx.ID, true); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("non-admin resolve: %v", err)
	}
	if _, err := f.svc.Resolve(ctx, admin, 9999, true); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown tx: %v", err)
	}
	if _, err := f.svc.Resolve(ctx, admin, tx.ID, true); err != nil {
		t.Fatal(err)
	}
	before := f.user(t, 2)
	for _, approve := range []bool{true, false} {
		if _, err := f.svc.Resolve(ctx, admin, tx.ID, approve); !errors.Is(err, model.ErrAlreadyResolved) {
			t.Fatalf("second resolve: %v", err)
		}
	}
	if after := f.user(t, 2); after != before {
		t.Fatalf("double resolve mutated balances: %+v -> %+v", before, after)
	}

	var resolved int
	for _, e := range f.rec.Events() {
		if e.EventType() == events.TypeTransactionResolved {
			resolved++
		}
	}
	if resolved != 1 {
		t.Fatalf("resolution events = %d, want 1", resolved)
	}
}

func TestResolve_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.method(t, model.MethodWithdraw)
	f.credit(t, 3, 500, 0, 0)
	tx, _ := f.svc.RequestWithdrawal(ctx, 3, m.ID, 500, "acc", "1")

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Resolve(ctx, admin, tx.ID, false); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("%d resolutions succeeded", wins)
	}
	if u := f.user(t, 3); u.USD != 500 {
		t.Fatalf("refund applied more than once: %s", u.USD)
	}
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, 1, 500, 0, 200)
	f.svc.Register(ctx, 2, "b", 0)

	if _, err := f.svc.Transfer(ctx, 1, 1, 100); !model.IsValidation(err) {
		t.Fatalf("self transfer: %v", err)
	}
	if _, err := f.svc.Transfer(ctx, 1, 42, 100); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown target: %v", err)
	}
	// bonus is not transferable
	if _, err := f.svc.Transfer(ctx, 1, 2, 600); !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("overdraw: %v", err)
	}
	if u := f.user(t, 1); u.USD != 500 || u.BonusUSD != 200 {
		t.Fatalf("rejected transfers mutated balance: %+v", u)
	}

	res, err := f.svc.Transfer(ctx, 1, 2, 250)
	if err != nil {
		t.Fatal(err)
	}
	if res.From.USD != 250 || res.To.USD != 250 || res.Tx.Status != model.TxApproved {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestConcurrentTransfersKeepTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, 1, 1000, 0, 0)
	f.credit(t, 2, 1000, 0, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); f.svc.Transfer(ctx, 1, 2, 30) }()
		go func() { defer wg.Done(); f.svc.Transfer(ctx, 2, 1, 30) }()
	}
	wg.Wait()
	a, b := f.user(t, 1), f.user(t, 2)
	if a.USD+b.USD != 2000 || a.USD < 0 || b.USD < 0 {
		t.Fatalf("totals drifted: a=%s b=%s", a.USD, b.USD)
	}
}

func TestAdminConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.SetExchangeRate(ctx, 2, decimal.NewFromInt(120)); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("non-admin rate: %v", err)
	}
	if err := f.svc.SetExchangeRate(ctx, admin, decimal.NewFromInt(-3)); !model.IsValidation(err) {
		t.Fatalf("negative rate: %v", err)
	}
	rate, _ := f.svc.ExchangeRate(ctx)
	if !rate.Equal(decimal.NewFromInt(110)) {
		t.Fatalf("default rate = %s", rate)
	}
	f.svc.SetExchangeRate(ctx, admin, decimal.NewFromInt(120))
	if rate, _ := f.svc.ExchangeRate(ctx); !rate.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("rate = %s", rate)
	}

	if err := f.svc.SetPrice(ctx, admin, model.BetFijo, model.Price{CUP: -1, USD: 10}); !model.IsValidation(err) {
		t.Fatalf("negative price: %v", err)
	}
	f.svc.SetPrice(ctx, admin, model.BetFijo, model.Price{CUP: 5000, USD: 50})
	if _, err := f.svc.AddMethod(ctx, 7, model.MethodDeposit, "x", "y", "z"); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("non-admin add method: %v", err)
	}
	f.method(t, model.MethodDeposit)

	snap, err := f.svc.Snapshot(ctx, admin)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Prices[model.BetFijo].USD != 50 || snap.Prices[model.BetParle].CUP != 7000 || len(snap.Deposit) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if _, err := f.svc.Snapshot(ctx, 3); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("non-admin snapshot: %v", err)
	}
	if _, err := f.svc.ListPending(ctx, 3, ""); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("non-admin pending: %v", err)
	}
}

func TestLotteryOpen(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2025, 3, 10, h, m, 0, 0, havana) }
	tests := []struct {
		lottery model.Lottery
		t       time.Time
		open    bool
	}{
		{model.LotteryGeorgia, at(10, 0), true},
		{model.LotteryGeorgia, at(13, 0), false},
		{model.LotteryGeorgia, at(18, 30), true},
		{model.LotteryGeorgia, at(18, 31), false},
		{model.LotteryGeorgia, at(23, 0), true},
		{model.LotteryGeorgia, at(8, 59), false},
		{model.LotteryFlorida, at(13, 0), true},
	}
	for _, tt := range tests {
		if got := LotteryOpen(tt.lottery, tt.t, havana); got != tt.open {
			t.Errorf("%s at %s: open=%v, want %v", tt.lottery, tt.t.Format("15:04"), got, tt.open)
		}
	}

	// the gate evaluates the configured zone, not the server's
	utc := time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC) // 13:00 in Havana (UTC-4 in March)
	if LotteryOpen(model.LotteryGeorgia, utc, havana) {
		t.Fatal("13:00 Havana must be closed")
	}
}

func TestBalancesNeverNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wm := f.method(t, model.MethodWithdraw)
	f.credit(t, 1, 300, 5000, 100)
	f.svc.Register(ctx, 2, "b", 0)

	ops := []func(){
		func() { f.svc.PlaceBet(ctx, 1, model.LotteryFlorida, model.BetFijo, "1 con 2 usd") },
		func() { f.svc.PlaceBet(ctx, 1, model.LotteryFlorida, model.BetFijo, "1 con 40 cup") },
		func() { f.svc.Transfer(ctx, 1, 2, 150) },
		func() { f.svc.RequestWithdrawal(ctx, 1, wm.ID, 100, "a", "b") },
		func() { f.svc.PlaceBet(ctx, 1, model.LotteryFlorida, model.BetFijo, "1 con 3 usd") },
	}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		for _, op := range ops {
			op := op
			wg.Add(1)
			go func() { defer wg.Done(); op() }()
		}
	}
	wg.Wait()
	for _, id := range []int64{1, 2} {
		u := f.user(t, id)
		if u.USD < 0 || u.CUP < 0 || u.BonusUSD < 0 {
			t.Fatalf("negative balance for %d: %+v", id, u)
		}
	}
}
