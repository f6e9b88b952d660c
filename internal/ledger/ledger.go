package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"RifasCuba/internal/clock"
	"RifasCuba/internal/events"
	"RifasCuba/internal/metrics"
	"RifasCuba/internal/model"
	"RifasCuba/internal/money"
	"RifasCuba/internal/session"
	"RifasCuba/internal/store"
)

// ErrLotteryClosed rejects a lottery selection outside its betting windows.
var ErrLotteryClosed = errors.New("lottery closed")

// DefaultPrices apply to bet types the admin never priced.
var DefaultPrices = map[model.BetType]model.Price{
	model.BetFijo:     {CUP: 7000, USD: 20},
	model.BetCorridos: {CUP: 7000, USD: 20},
	model.BetCentena:  {CUP: 7000, USD: 20},
	model.BetParle:    {CUP: 7000, USD: 20},
}

type Config struct {
	AdminID         int64
	BonusCUP        money.Amount
	DefaultRate     decimal.Decimal
	ReferralPercent int64
	MinWithdrawUSD  money.Amount
	Location        *time.Location
}

// Service owns every balance-changing operation. Store writes are atomic on
// their own; the per-user locks additionally keep one user's read-then-write
// sequences (balance checks, default-price selection) from interleaving.
type Service struct {
	store store.Store
	locks *session.Locker
	pub   events.Publisher
	clock clock.Clock
	cfg   Config
	log   *zap.Logger
}

func New(st store.Store, pub events.Publisher, clk clock.Clock, cfg Config, log *zap.Logger) *Service {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MinWithdrawUSD == 0 {
		cfg.MinWithdrawUSD = 100
	}
	return &Service{store: st, locks: &session.Locker{}, pub: pub, clock: clk, cfg: cfg, log: log}
}

func (s *Service) IsAdmin(userID int64) bool {
	return s.cfg.AdminID != 0 && userID == s.cfg.AdminID
}

func (s *Service) requireAdmin(actor int64) error {
	if !s.IsAdmin(actor) {
		return model.ErrUnauthorized
	}
	return nil
}

func (s *Service) MinWithdraw() money.Amount { return s.cfg.MinWithdrawUSD }

// publish is fire-and-forget: the mutation is already committed.
func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.pub.Publish(ctx, e); err != nil {
		s.log.Warn("publish event", zap.String("type", e.EventType()), zap.Error(err))
	}
}

// ---- users ----

type Registration struct {
	User     model.User
	Created  bool
	Referred bool // the referral link was recorded by this call
}

// Register creates the user on first contact and records referrerID as its
// referrer when the user has none yet. Self and unknown referrers are ignored.
func (s *Service) Register(ctx context.Context, userID int64, firstName string, referrerID int64) (Registration, error) {
	u, created, err := s.store.EnsureUser(ctx, userID, firstName)
	if err != nil {
		return Registration{}, err
	}
	r := Registration{User: u, Created: created}
	if referrerID == 0 || referrerID == userID || u.ReferredBy != 0 {
		return r, nil
	}
	ok, err := s.store.SetReferrer(ctx, userID, referrerID)
	if err != nil {
		return r, err
	}
	if ok {
		r.Referred = true
		r.User.ReferredBy = referrerID
		s.log.Info("referral recorded", zap.Int64("user_id", userID), zap.Int64("referrer_id", referrerID))
	}
	return r, nil
}

func (s *Service) Balance(ctx context.Context, userID int64) (model.User, error) {
	return s.store.GetUser(ctx, userID)
}

func (s *Service) RecentBets(ctx context.Context, userID int64, limit int) ([]model.Bet, error) {
	return s.store.ListBets(ctx, userID, limit)
}

func (s *Service) ReferralCount(ctx context.Context, userID int64) (int, error) {
	return s.store.CountReferrals(ctx, userID)
}

// ---- configuration reads ----

// ExchangeRate falls back to the configured default until the admin sets one.
func (s *Service) ExchangeRate(ctx context.Context) (decimal.Decimal, error) {
	rate, err := s.store.ExchangeRate(ctx)
	if errors.Is(err, model.ErrNotFound) {
		return s.cfg.DefaultRate, nil
	}
	return rate, err
}

// Prices merges stored prices over DefaultPrices.
func (s *Service) Prices(ctx context.Context) (map[model.BetType]model.Price, error) {
	stored, err := s.store.Prices(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[model.BetType]model.Price, len(DefaultPrices))
	for k, v := range DefaultPrices {
		out[k] = v
	}
	for k, v := range stored {
		out[k] = v
	}
	return out, nil
}

func (s *Service) Methods(ctx context.Context, kind model.MethodKind) ([]model.PaymentMethod, error) {
	return s.store.ListMethods(ctx, kind, true)
}

// Method returns an active method of kind, or ErrNotFound.
func (s *Service) Method(ctx context.Context, kind model.MethodKind, id int64) (model.PaymentMethod, error) {
	m, err := s.store.GetMethod(ctx, kind, id)
	if err != nil {
		return m, err
	}
	if !m.Active {
		return m, model.ErrNotFound
	}
	return m, nil
}

// CheckLotteryOpen gates lottery selection on the lottery's schedule.
func (s *Service) CheckLotteryOpen(l model.Lottery) error {
	if !LotteryOpen(l, s.clock.Now(), s.cfg.Location) {
		return ErrLotteryClosed
	}
	return nil
}

// ---- bets ----

type BetResult struct {
	Bet        model.Bet
	Currency   model.Currency
	Commission *store.Commission
	User       model.User // balances after the bet
}

// PlaceBet prices raw, charges the user and records the bet. A default price
// carries both currencies; USD (bonus first) is charged when the user can
// cover it, CUP otherwise, and only the charged side is recorded.
func (s *Service) PlaceBet(ctx context.Context, userID int64, lottery model.Lottery, bt model.BetType, raw string) (BetResult, error) {
	raw = strings.TrimSpace(raw)
	prices, err := s.Prices(ctx)
	if err != nil {
		return BetResult{}, err
	}
	lookup := func(t string) (cup, usd money.Amount) {
		p := prices[model.BetType(t)]
		return p.CUP, p.USD
	}
	ok, usd, cup := money.ParseBetCost(raw, string(bt), lookup)
	if !ok {
		return BetResult{}, model.Invalid("formato no reconocido")
	}
	return s.chargeBet(ctx, userID, lottery, bt, raw, usd, cup)
}

func (s *Service) chargeBet(ctx context.Context, userID int64, lottery model.Lottery, bt model.BetType, raw string, usd, cup money.Amount) (BetResult, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return BetResult{}, err
	}
	bet := model.Bet{UserID: userID, Lottery: lottery, Type: bt, Raw: raw, CreatedAt: s.clock.Now()}
	res := BetResult{}
	switch {
	case usd > 0 && cup > 0:
		if u.SpendableUSD() >= usd {
			bet.CostUSD, res.Currency = usd, model.CurrencyUSD
		} else if u.CUP >= cup {
			bet.CostCUP, res.Currency = cup, model.CurrencyCUP
		} else {
			return BetResult{}, model.ErrInsufficientFunds
		}
	case usd > 0:
		bet.CostUSD, res.Currency = usd, model.CurrencyUSD
	case cup > 0:
		bet.CostCUP, res.Currency = cup, model.CurrencyCUP
	default:
		return BetResult{}, model.Invalid("costo de jugada inválido")
	}

	com := commissionFor(u, bet.CostUSD, s.cfg.ReferralPercent)
	bet, err = s.store.PlaceBet(ctx, bet, com)
	if err != nil {
		return BetResult{}, err
	}
	res.Bet, res.Commission = bet, com
	metrics.BetsTotal.WithLabelValues(string(res.Currency)).Inc()
	s.log.Info("bet placed",
		zap.Int64("user_id", userID), zap.Int64("bet_id", bet.ID),
		zap.String("lottery", string(lottery)), zap.String("type", string(bt)),
		zap.Stringer("usd", bet.CostUSD), zap.Stringer("cup", bet.CostCUP))

	s.publish(ctx, events.BetPlaced{
		BetID: bet.ID, UserID: userID, Lottery: string(lottery), BetType: string(bt),
		CostUSDCents: int64(bet.CostUSD), CostCUPCents: int64(bet.CostCUP),
	})
	if com != nil {
		metrics.CommissionsTotal.Inc()
		s.publish(ctx, events.CommissionCredited{
			ReferrerID: com.ReferrerID, BettorID: userID, BetID: bet.ID, AmountCents: int64(com.Amount),
		})
	}

	if after, err := s.store.GetUser(ctx, userID); err == nil {
		res.User = after
	} else {
		s.log.Warn("reload user after bet", zap.Int64("user_id", userID), zap.Error(err))
	}
	return res, nil
}

// PlaceBetWithCost registers a bet whose price was fixed by the caller (the
// web app sends the cost instead of a priced text).
func (s *Service) PlaceBetWithCost(ctx context.Context, userID int64, lottery model.Lottery, bt model.BetType, raw string, usd, cup money.Amount) (BetResult, error) {
	if usd < 0 || cup < 0 || (usd == 0 && cup == 0) {
		return BetResult{}, model.Invalid("costo de jugada inválido")
	}
	if usd > 0 && cup > 0 {
		return BetResult{}, model.Invalid("la jugada debe costar en una sola moneda")
	}
	return s.chargeBet(ctx, userID, lottery, bt, strings.TrimSpace(raw), usd, cup)
}

// ---- deposits ----

// RequestDeposit records a pending deposit against an active deposit method.
// Balances are untouched until approval.
func (s *Service) RequestDeposit(ctx context.Context, userID, methodID int64, usd, cup money.Amount, proof string) (model.Transaction, error) {
	if usd < 0 || cup < 0 || (usd == 0 && cup == 0) {
		return model.Transaction{}, model.Invalid("monto no reconocido")
	}
	if _, err := s.Method(ctx, model.MethodDeposit, methodID); err != nil {
		return model.Transaction{}, fmt.Errorf("deposit method %d: %w", methodID, err)
	}
	tx, err := s.store.CreateDeposit(ctx, model.Transaction{
		UserID: userID, AmountUSD: usd, AmountCUP: cup, MethodID: methodID, Proof: proof, CreatedAt: s.clock.Now(),
	})
	if err != nil {
		return tx, err
	}
	s.created(ctx, tx)
	return tx, nil
}

// AttachDepositProof adds proof to the user's own pending deposit.
func (s *Service) AttachDepositProof(ctx context.Context, userID, txID int64, proof string) (model.Transaction, error) {
	if strings.TrimSpace(proof) == "" {
		return model.Transaction{}, model.Invalid("comprobante vacío")
	}
	if err := s.store.AttachDepositProof(ctx, txID, userID, proof); err != nil {
		return model.Transaction{}, err
	}
	return s.store.GetTransaction(ctx, txID)
}

// ---- withdrawals ----

// CanWithdraw is the entry check of the withdrawal flow.
func (s *Service) CanWithdraw(ctx context.Context, userID int64) (model.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return u, err
	}
	if u.USD < s.cfg.MinWithdrawUSD {
		return u, model.Invalid(fmt.Sprintf("necesitas al menos %s USD para retirar", s.cfg.MinWithdrawUSD))
	}
	return u, nil
}

// RequestWithdrawal escrows amount out of the user's usd and records a pending
// withdrawal. A rejection refunds it; an approval keeps it.
func (s *Service) RequestWithdrawal(ctx context.Context, userID, methodID int64, amount money.Amount, account, confirm string) (model.Transaction, error) {
	account, confirm = strings.TrimSpace(account), strings.TrimSpace(confirm)
	if account == "" {
		return model.Transaction{}, model.Invalid("cuenta vacía")
	}
	if amount < s.cfg.MinWithdrawUSD {
		return model.Transaction{}, model.Invalid(fmt.Sprintf("el mínimo de retiro es %s USD", s.cfg.MinWithdrawUSD))
	}
	if _, err := s.Method(ctx, model.MethodWithdraw, methodID); err != nil {
		return model.Transaction{}, fmt.Errorf("withdraw method %d: %w", methodID, err)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()
	tx, err := s.store.CreateWithdrawal(ctx, model.Transaction{
		UserID: userID, AmountUSD: amount, MethodID: methodID,
		Details:   fmt.Sprintf("Cuenta: %s, Confirm: %s", account, confirm),
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		return tx, err
	}
	s.created(ctx, tx)
	return tx, nil
}

func (s *Service) created(ctx context.Context, tx model.Transaction) {
	metrics.TransactionsTotal.WithLabelValues(string(tx.Type), string(tx.Status)).Inc()
	s.log.Info("transaction created",
		zap.Int64("tx_id", tx.ID), zap.Int64("user_id", tx.UserID), zap.String("type", string(tx.Type)),
		zap.Stringer("usd", tx.AmountUSD), zap.Stringer("cup", tx.AmountCUP))
	s.publish(ctx, events.TransactionCreated{
		TxID: tx.ID, UserID: tx.UserID, Type: string(tx.Type),
		AmountUSDCents: int64(tx.AmountUSD), AmountCUPCents: int64(tx.AmountCUP), MethodID: tx.MethodID,
	})
}

// ---- transfers ----

type TransferResult struct {
	Tx   model.Transaction
	From model.User
	To   model.User
}

// Transfer moves usd between users synchronously; there is no review step.
func (s *Service) Transfer(ctx context.Context, from, to int64, amount money.Amount) (TransferResult, error) {
	if from == to {
		return TransferResult{}, model.Invalid("no puedes transferirte a ti mismo")
	}
	if !amount.IsPositive() {
		return TransferResult{}, model.Invalid("el monto debe ser positivo")
	}
	unlock := s.locks.LockPair(from, to)
	defer unlock()

	tx, err := s.store.Transfer(ctx, from, to, amount)
	if err != nil {
		return TransferResult{}, err
	}
	res := TransferResult{Tx: tx}
	res.From, _ = s.store.GetUser(ctx, from)
	res.To, _ = s.store.GetUser(ctx, to)

	metrics.TransactionsTotal.WithLabelValues(string(tx.Type), string(tx.Status)).Inc()
	s.log.Info("transfer completed", zap.Int64("tx_id", tx.ID), zap.Int64("from", from), zap.Int64("to", to),
		zap.Stringer("usd", amount))
	s.publish(ctx, events.TransferCompleted{TxID: tx.ID, FromUserID: from, ToUserID: to, AmountCents: int64(amount)})
	return res, nil
}

// TargetExists reports whether a transfer target is a known user.
func (s *Service) TargetExists(ctx context.Context, id int64) (bool, error) {
	_, err := s.store.GetUser(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ---- review ----

type Resolution struct {
	Tx    model.Transaction
	Bonus money.Amount // promotional credit granted with an approved deposit
	User  model.User   // initiator balances after resolution
}

// Resolve approves or rejects a pending deposit or withdrawal. Only the
// configured admin may resolve, and only once.
func (s *Service) Resolve(ctx context.Context, actor, txID int64, approve bool) (Resolution, error) {
	if err := s.requireAdmin(actor); err != nil {
		return Resolution{}, err
	}
	status := model.TxRejected
	if approve {
		status = model.TxApproved
	}
	rate, err := s.ExchangeRate(ctx)
	if err != nil {
		return Resolution{}, err
	}
	bonus := money.CUPToUSD(s.cfg.BonusCUP, rate)

	pre, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return Resolution{}, err
	}
	unlock := s.locks.Lock(pre.UserID)
	defer unlock()

	var granted money.Amount
	settle := func(tx model.Transaction) ([]model.Delta, error) {
		granted = 0
		switch {
		case tx.Type == model.TxDeposit && status == model.TxApproved:
			d := model.Delta{UserID: tx.UserID, USD: tx.AmountUSD, CUP: tx.AmountCUP}
			if tx.AmountUSD > 0 || tx.AmountCUP > 0 {
				d.Bonus, granted = bonus, bonus
			}
			return []model.Delta{d}, nil
		case tx.Type == model.TxWithdraw && status == model.TxRejected:
			return []model.Delta{{UserID: tx.UserID, USD: tx.AmountUSD, CUP: tx.AmountCUP}}, nil
		case tx.Type == model.TxTransfer:
			return nil, model.ErrAlreadyResolved
		}
		return nil, nil
	}
	tx, err := s.store.ResolveTransaction(ctx, txID, status, "Revisado por admin: "+string(status), settle)
	if err != nil {
		return Resolution{}, err
	}
	res := Resolution{Tx: tx, Bonus: granted}
	res.User, _ = s.store.GetUser(ctx, tx.UserID)

	metrics.TransactionsTotal.WithLabelValues(string(tx.Type), string(tx.Status)).Inc()
	s.log.Info("transaction resolved", zap.Int64("tx_id", tx.ID), zap.String("type", string(tx.Type)),
		zap.String("status", string(tx.Status)), zap.Int64("admin", actor))
	s.publish(ctx, events.TransactionResolved{
		TxID: tx.ID, UserID: tx.UserID, Type: string(tx.Type), Status: string(tx.Status), BonusUSDCents: int64(granted),
	})
	return res, nil
}

func (s *Service) ListPending(ctx context.Context, actor int64, typ model.TxType) ([]model.Transaction, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.ListPending(ctx, typ)
}

// Pending is the unauthenticated variant for internal jobs.
func (s *Service) Pending(ctx context.Context) ([]model.Transaction, error) {
	return s.store.ListPending(ctx, "")
}
