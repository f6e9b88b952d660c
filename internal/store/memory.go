package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"RifasCuba/internal/model"
	"RifasCuba/internal/money"
)

// MemoryStore is the process-local ledger used for development runs without a
// database and by tests. One mutex makes every operation atomic.
type MemoryStore struct {
	mu      sync.Mutex
	users   map[int64]*model.User
	bets    []model.Bet
	txs     map[int64]*model.Transaction
	methods map[model.MethodKind]map[int64]*model.PaymentMethod
	rate    decimal.Decimal
	hasRate bool
	prices  map[model.BetType]model.Price
	nextID  int64
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[int64]*model.User),
		txs:   make(map[int64]*model.Transaction),
		methods: map[model.MethodKind]map[int64]*model.PaymentMethod{
			model.MethodDeposit:  {},
			model.MethodWithdraw: {},
		},
		prices: make(map[model.BetType]model.Price),
		now:    time.Now,
	}
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemoryStore) EnsureUser(_ context.Context, id int64, firstName string) (model.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return *u, false, nil
	}
	u := &model.User{ID: id, FirstName: firstName, CreatedAt: m.now()}
	m.users[id] = u
	return *u, true, nil
}

func (m *MemoryStore) GetUser(_ context.Context, id int64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return *u, nil
	}
	return model.User{}, model.ErrNotFound
}

func (m *MemoryStore) SetReferrer(_ context.Context, userID, referrerID int64) (bool, error) {
	if userID == referrerID {
		return false, model.Invalid("self referral")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.ReferredBy != 0 {
		return false, nil
	}
	if _, ok := m.users[referrerID]; !ok {
		return false, nil
	}
	u.ReferredBy = referrerID
	return true, nil
}

func (m *MemoryStore) CountReferrals(_ context.Context, referrerID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.users {
		if u.ReferredBy == referrerID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) user(id int64) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return u, nil
}

// apply commits d only when no balance would go negative.
func (m *MemoryStore) apply(d model.Delta) error {
	u, err := m.user(d.UserID)
	if err != nil {
		return err
	}
	if u.USD+d.USD < 0 || u.CUP+d.CUP < 0 || u.BonusUSD+d.Bonus < 0 {
		return model.ErrInsufficientFunds
	}
	u.USD += d.USD
	u.CUP += d.CUP
	u.BonusUSD += d.Bonus
	return nil
}

func (m *MemoryStore) PlaceBet(_ context.Context, bet model.Bet, c *Commission) (model.Bet, error) {
	if bet.CostUSD < 0 || bet.CostCUP < 0 || (bet.CostUSD == 0 && bet.CostCUP == 0) {
		return bet, model.Invalid("costo de jugada inválido")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.user(bet.UserID)
	if err != nil {
		return bet, err
	}
	usd, bonus, err := money.DebitUSDWithBonus(u.USD, u.BonusUSD, bet.CostUSD)
	if err != nil {
		return bet, err
	}
	if u.CUP < bet.CostCUP {
		return bet, model.ErrInsufficientFunds
	}
	u.USD, u.BonusUSD, u.CUP = usd, bonus, u.CUP-bet.CostCUP

	bet.ID = m.id()
	if bet.CreatedAt.IsZero() {
		bet.CreatedAt = m.now()
	}
	m.bets = append(m.bets, bet)
	if c != nil && c.Amount > 0 && c.ReferrerID != bet.UserID {
		if r, ok := m.users[c.ReferrerID]; ok {
			r.USD += c.Amount
		}
	}
	return bet, nil
}

func (m *MemoryStore) ListBets(_ context.Context, userID int64, limit int) ([]model.Bet, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Bet
	for i := len(m.bets) - 1; i >= 0 && len(out) < limit; i-- {
		if m.bets[i].UserID == userID {
			out = append(out, m.bets[i])
		}
	}
	return out, nil
}

func (m *MemoryStore) insertTx(t model.Transaction) model.Transaction {
	t.ID = m.id()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now()
	}
	cp := t
	m.txs[t.ID] = &cp
	return t
}

func (m *MemoryStore) CreateDeposit(_ context.Context, t model.Transaction) (model.Transaction, error) {
	t.Type, t.Status = model.TxDeposit, model.TxPending
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.user(t.UserID); err != nil {
		return t, err
	}
	return m.insertTx(t), nil
}

func (m *MemoryStore) AttachDepositProof(_ context.Context, txID, userID int64, proof string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[txID]
	if !ok || t.UserID != userID || t.Type != model.TxDeposit {
		return model.ErrNotFound
	}
	if t.Status != model.TxPending {
		return model.ErrAlreadyResolved
	}
	t.Proof = proof
	return nil
}

func (m *MemoryStore) CreateWithdrawal(_ context.Context, t model.Transaction) (model.Transaction, error) {
	t.Type, t.Status = model.TxWithdraw, model.TxPending
	if t.AmountUSD < 0 || t.AmountCUP < 0 {
		return t, model.Invalid("negative withdrawal")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.apply(model.Delta{UserID: t.UserID, USD: -t.AmountUSD, CUP: -t.AmountCUP}); err != nil {
		return t, err
	}
	return m.insertTx(t), nil
}

func (m *MemoryStore) Transfer(_ context.Context, from, to int64, amount money.Amount) (model.Transaction, error) {
	t := model.Transaction{UserID: from, Type: model.TxTransfer, AmountUSD: amount, TargetUserID: to, Status: model.TxApproved}
	if from == to {
		return t, model.Invalid("self transfer")
	}
	if !amount.IsPositive() {
		return t, model.Invalid("non-positive transfer")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.user(to); err != nil {
		return t, err
	}
	if err := m.apply(model.Delta{UserID: from, USD: -amount}); err != nil {
		return t, err
	}
	m.users[to].USD += amount
	t.CreatedAt = m.now()
	t.ResolvedAt = t.CreatedAt
	return m.insertTx(t), nil
}

func (m *MemoryStore) ResolveTransaction(_ context.Context, id int64, status model.TxStatus, note string, settle Settle) (model.Transaction, error) {
	if !status.Terminal() {
		return model.Transaction{}, model.Invalid("resolution must be approved or rejected")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok {
		return model.Transaction{}, model.ErrNotFound
	}
	if t.Status != model.TxPending {
		return *t, model.ErrAlreadyResolved
	}
	next := *t
	next.Status, next.AdminNote, next.ResolvedAt = status, note, m.now()

	if settle != nil {
		deltas, err := settle(next)
		if err != nil {
			return *t, err
		}
		// validate everything first so a failing delta leaves no partial credit
		for _, d := range deltas {
			u, err := m.user(d.UserID)
			if err != nil {
				return *t, err
			}
			if u.USD+d.USD < 0 || u.CUP+d.CUP < 0 || u.BonusUSD+d.Bonus < 0 {
				return *t, model.ErrInsufficientFunds
			}
		}
		for _, d := range deltas {
			_ = m.apply(d)
		}
	}
	*t = next
	return next, nil
}

func (m *MemoryStore) GetTransaction(_ context.Context, id int64) (model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.txs[id]; ok {
		return *t, nil
	}
	return model.Transaction{}, model.ErrNotFound
}

func (m *MemoryStore) ListPending(_ context.Context, typ model.TxType) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Transaction
	for _, t := range m.txs {
		if t.Status == model.TxPending && (typ == "" || t.Type == typ) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ExchangeRate(context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasRate {
		return decimal.Zero, model.ErrNotFound
	}
	return m.rate, nil
}

func (m *MemoryStore) SetExchangeRate(_ context.Context, rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return model.Invalid("exchange rate must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rate, m.hasRate = rate, true
	return nil
}

func (m *MemoryStore) Prices(context.Context) (map[model.BetType]model.Price, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[model.BetType]model.Price, len(m.prices))
	for k, v := range m.prices {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) SetPrice(_ context.Context, bt model.BetType, p model.Price) error {
	if p.CUP < 0 || p.USD < 0 {
		return model.Invalid("price components must not be negative")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[bt] = p
	return nil
}

func (m *MemoryStore) table(kind model.MethodKind) (map[int64]*model.PaymentMethod, error) {
	t, ok := m.methods[kind]
	if !ok {
		return nil, model.Invalid("unknown method kind " + string(kind))
	}
	return t, nil
}

func (m *MemoryStore) ListMethods(_ context.Context, kind model.MethodKind, activeOnly bool) ([]model.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(kind)
	if err != nil {
		return nil, err
	}
	var out []model.PaymentMethod
	for _, pm := range t {
		if !activeOnly || pm.Active {
			out = append(out, *pm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetMethod(_ context.Context, kind model.MethodKind, id int64) (model.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(kind)
	if err != nil {
		return model.PaymentMethod{}, err
	}
	if pm, ok := t[id]; ok {
		return *pm, nil
	}
	return model.PaymentMethod{}, model.ErrNotFound
}

func (m *MemoryStore) AddMethod(_ context.Context, pm model.PaymentMethod) (model.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(pm.Kind)
	if err != nil {
		return pm, err
	}
	pm.ID, pm.Active = m.id(), true
	cp := pm
	t[pm.ID] = &cp
	return pm, nil
}

func (m *MemoryStore) SetMethodActive(_ context.Context, kind model.MethodKind, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(kind)
	if err != nil {
		return err
	}
	pm, ok := t[id]
	if !ok {
		return model.ErrNotFound
	}
	pm.Active = active
	return nil
}

func (m *MemoryStore) DeleteMethod(_ context.Context, kind model.MethodKind, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(kind)
	if err != nil {
		return err
	}
	if _, ok := t[id]; !ok {
		return model.ErrNotFound
	}
	delete(t, id)
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
func (m *MemoryStore) Close() error               { return nil }
