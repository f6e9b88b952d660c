package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"RifasCuba/internal/model"
	"RifasCuba/internal/money"
)

// SQLStore keeps the ledger in SQLite or Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	log     *zap.Logger
	now     func() time.Time
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// OpenSQLite opens (or creates) the database file and runs migrations.
func OpenSQLite(path string, log *zap.Logger) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; transactions then never see SQLITE_BUSY from ourselves.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s, err := newSQLStore(db, DialectSQLite, log)
	if err != nil {
		return nil, err
	}
	log.Info("sqlite store opened", zap.String("path", path))
	return s, nil
}

// OpenPostgres connects to dsn, pings it and runs migrations.
func OpenPostgres(ctx context.Context, dsn string, log *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s, err := newSQLStore(db, DialectPostgres, log)
	if err != nil {
		return nil, err
	}
	log.Info("postgres store opened")
	return s, nil
}

func newSQLStore(db *sql.DB, d Dialect, log *zap.Logger) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d, log: log, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	for _, stmt := range migrations(s.dialect) {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLStore) q(query string) string { return rebind(s.dialect, query) }

// withTx runs fn in one transaction. Infrastructure failures before COMMIT
// come back as *RolledBackError; a failed COMMIT comes back as *CommitError
// because the transaction may still have been applied.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &RolledBackError{Err: fmt.Errorf("begin: %w", err)}
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		if IsTransient(err) {
			return &RolledBackError{Err: err}
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return &CommitError{Err: err}
	}
	return nil
}

// ---- users ----

const userCols = `user_id, first_name, usd_cents, cup_cents, bonus_cents, ref, created_at`

func scanUser(r rowScanner) (model.User, error) {
	var u model.User
	var created int64
	err := r.Scan(&u.ID, &u.FirstName, &u.USD, &u.CUP, &u.BonusUSD, &u.ReferredBy, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return u, model.ErrNotFound
	}
	u.CreatedAt = time.Unix(created, 0)
	return u, err
}

func (s *SQLStore) EnsureUser(ctx context.Context, id int64, firstName string) (model.User, bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`INSERT INTO users (user_id, first_name, created_at)
		VALUES (?, ?, ?) ON CONFLICT (user_id) DO NOTHING`), id, firstName, s.now().Unix())
	if err != nil {
		return model.User{}, false, fmt.Errorf("insert user %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	u, err := s.GetUser(ctx, id)
	return u, n > 0, err
}

func (s *SQLStore) GetUser(ctx context.Context, id int64) (model.User, error) {
	return s.getUser(ctx, s.db, id)
}

func (s *SQLStore) getUser(ctx context.Context, q querier, id int64) (model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, s.q(`SELECT `+userCols+` FROM users WHERE user_id = ?`), id))
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return u, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, err
}

func (s *SQLStore) SetReferrer(ctx context.Context, userID, referrerID int64) (bool, error) {
	if userID == referrerID {
		return false, model.Invalid("self referral")
	}
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET ref = ?
		WHERE user_id = ? AND ref = 0
		AND EXISTS (SELECT 1 FROM users r WHERE r.user_id = ?)`), referrerID, userID, referrerID)
	if err != nil {
		return false, fmt.Errorf("set referrer: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLStore) CountReferrals(ctx context.Context, referrerID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM users WHERE ref = ?`), referrerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return n, nil
}

// ---- balance primitives ----

// shortfall explains a guarded update that matched no row.
func (s *SQLStore) shortfall(ctx context.Context, q querier, userID int64) error {
	var one int
	err := q.QueryRowContext(ctx, s.q(`SELECT 1 FROM users WHERE user_id = ?`), userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %d: %w", userID, model.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return model.ErrInsufficientFunds
}

func (s *SQLStore) guarded(ctx context.Context, q querier, userID int64, query string, args ...any) error {
	res, err := q.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.shortfall(ctx, q, userID)
	}
	return nil
}

// debitUSDWithBonus consumes bonus first, then usd, in one statement. SET
// expressions see the pre-update row.
func (s *SQLStore) debitUSDWithBonus(ctx context.Context, q querier, userID int64, cost money.Amount) error {
	return s.guarded(ctx, q, userID, `UPDATE users SET
		usd_cents = usd_cents - (CASE WHEN bonus_cents >= ? THEN 0 ELSE ? - bonus_cents END),
		bonus_cents = CASE WHEN bonus_cents >= ? THEN bonus_cents - ? ELSE 0 END
		WHERE user_id = ? AND usd_cents + bonus_cents >= ?`,
		cost, cost, cost, cost, userID, cost)
}

func (s *SQLStore) debitUSD(ctx context.Context, q querier, userID int64, amount money.Amount) error {
	return s.guarded(ctx, q, userID,
		`UPDATE users SET usd_cents = usd_cents - ? WHERE user_id = ? AND usd_cents >= ?`,
		amount, userID, amount)
}

func (s *SQLStore) debitCUP(ctx context.Context, q querier, userID int64, amount money.Amount) error {
	return s.guarded(ctx, q, userID,
		`UPDATE users SET cup_cents = cup_cents - ? WHERE user_id = ? AND cup_cents >= ?`,
		amount, userID, amount)
}

func (s *SQLStore) applyDelta(ctx context.Context, q querier, d model.Delta) error {
	if d.IsZero() {
		return nil
	}
	return s.guarded(ctx, q, d.UserID, `UPDATE users SET
		usd_cents = usd_cents + ?, cup_cents = cup_cents + ?, bonus_cents = bonus_cents + ?
		WHERE user_id = ? AND usd_cents + ? >= 0 AND cup_cents + ? >= 0 AND bonus_cents + ? >= 0`,
		d.USD, d.CUP, d.Bonus, d.UserID, d.USD, d.CUP, d.Bonus)
}

// ---- bets ----

const betCols = `id, user_id, lottery, bet_type, raw_text, cost_usd_cents, cost_cup_cents, created_at`

func scanBet(r rowScanner) (model.Bet, error) {
	var b model.Bet
	var created int64
	err := r.Scan(&b.ID, &b.UserID, &b.Lottery, &b.Type, &b.Raw, &b.CostUSD, &b.CostCUP, &created)
	b.CreatedAt = time.Unix(created, 0)
	return b, err
}

func (s *SQLStore) PlaceBet(ctx context.Context, bet model.Bet, c *Commission) (model.Bet, error) {
	if bet.CostUSD < 0 || bet.CostCUP < 0 || (bet.CostUSD == 0 && bet.CostCUP == 0) {
		return bet, model.Invalid("costo de jugada inválido")
	}
	if bet.CreatedAt.IsZero() {
		bet.CreatedAt = s.now()
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if bet.CostUSD > 0 {
			if err := s.debitUSDWithBonus(ctx, tx, bet.UserID, bet.CostUSD); err != nil {
				return err
			}
		}
		if bet.CostCUP > 0 {
			if err := s.debitCUP(ctx, tx, bet.UserID, bet.CostCUP); err != nil {
				return err
			}
		}
		err := tx.QueryRowContext(ctx, s.q(`INSERT INTO bets
			(user_id, lottery, bet_type, raw_text, cost_usd_cents, cost_cup_cents, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			bet.UserID, bet.Lottery, bet.Type, bet.Raw, bet.CostUSD, bet.CostCUP, bet.CreatedAt.Unix(),
		).Scan(&bet.ID)
		if err != nil {
			return fmt.Errorf("insert bet: %w", err)
		}
		if c != nil && c.Amount > 0 && c.ReferrerID != bet.UserID {
			// A vanished referrer forfeits the commission, never the bet.
			_, err := tx.ExecContext(ctx, s.q(`UPDATE users SET usd_cents = usd_cents + ? WHERE user_id = ?`),
				c.Amount, c.ReferrerID)
			if err != nil {
				return fmt.Errorf("credit commission: %w", err)
			}
		}
		return nil
	})
	return bet, err
}

func (s *SQLStore) ListBets(ctx context.Context, userID int64, limit int) ([]model.Bet, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+betCols+` FROM bets
		WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}
	defer rows.Close()
	var out []model.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ---- transactions ----

const txCols = `id, user_id, type, amount_usd_cents, amount_cup_cents, method_id, proof, details,
	target_user_id, status, admin_note, created_at, resolved_at`

func scanTx(r rowScanner) (model.Transaction, error) {
	var t model.Transaction
	var created, resolved int64
	err := r.Scan(&t.ID, &t.UserID, &t.Type, &t.AmountUSD, &t.AmountCUP, &t.MethodID, &t.Proof,
		&t.Details, &t.TargetUserID, &t.Status, &t.AdminNote, &created, &resolved)
	if errors.Is(err, sql.ErrNoRows) {
		return t, model.ErrNotFound
	}
	t.CreatedAt = time.Unix(created, 0)
	if resolved > 0 {
		t.ResolvedAt = time.Unix(resolved, 0)
	}
	return t, err
}

func (s *SQLStore) insertTx(ctx context.Context, q querier, t *model.Transaction) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	var resolved int64
	if !t.ResolvedAt.IsZero() {
		resolved = t.ResolvedAt.Unix()
	}
	err := q.QueryRowContext(ctx, s.q(`INSERT INTO transactions
		(user_id, type, amount_usd_cents, amount_cup_cents, method_id, proof, details,
		 target_user_id, status, admin_note, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		t.UserID, t.Type, t.AmountUSD, t.AmountCUP, t.MethodID, t.Proof, t.Details,
		t.TargetUserID, t.Status, t.AdminNote, t.CreatedAt.Unix(), resolved,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert %s transaction: %w", t.Type, err)
	}
	return nil
}

func (s *SQLStore) CreateDeposit(ctx context.Context, t model.Transaction) (model.Transaction, error) {
	t.Type, t.Status = model.TxDeposit, model.TxPending
	if _, err := s.GetUser(ctx, t.UserID); err != nil {
		return t, err
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.insertTx(ctx, tx, &t)
	})
	return t, err
}

func (s *SQLStore) AttachDepositProof(ctx context.Context, txID, userID int64, proof string) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE transactions SET proof = ?
		WHERE id = ? AND user_id = ? AND type = ? AND status = ?`),
		proof, txID, userID, model.TxDeposit, model.TxPending)
	if err != nil {
		return fmt.Errorf("attach proof: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	t, err := s.GetTransaction(ctx, txID)
	if err != nil {
		return err
	}
	if t.UserID != userID || t.Type != model.TxDeposit {
		return model.ErrNotFound
	}
	return model.ErrAlreadyResolved
}

func (s *SQLStore) CreateWithdrawal(ctx context.Context, t model.Transaction) (model.Transaction, error) {
	t.Type, t.Status = model.TxWithdraw, model.TxPending
	if t.AmountUSD < 0 || t.AmountCUP < 0 {
		return t, model.Invalid("negative withdrawal")
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if t.AmountUSD > 0 {
			if err := s.debitUSD(ctx, tx, t.UserID, t.AmountUSD); err != nil {
				return err
			}
		}
		if t.AmountCUP > 0 {
			if err := s.debitCUP(ctx, tx, t.UserID, t.AmountCUP); err != nil {
				return err
			}
		}
		return s.insertTx(ctx, tx, &t)
	})
	return t, err
}

func (s *SQLStore) Transfer(ctx context.Context, from, to int64, amount money.Amount) (model.Transaction, error) {
	t := model.Transaction{UserID: from, Type: model.TxTransfer, AmountUSD: amount, TargetUserID: to, Status: model.TxApproved}
	if from == to {
		return t, model.Invalid("self transfer")
	}
	if !amount.IsPositive() {
		return t, model.Invalid("non-positive transfer")
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.getUser(ctx, tx, to); err != nil {
			return err
		}
		if err := s.debitUSD(ctx, tx, from, amount); err != nil {
			return err
		}
		if err := s.applyDelta(ctx, tx, model.Delta{UserID: to, USD: amount}); err != nil {
			return err
		}
		t.CreatedAt = s.now()
		t.ResolvedAt = t.CreatedAt
		return s.insertTx(ctx, tx, &t)
	})
	return t, err
}

func (s *SQLStore) ResolveTransaction(ctx context.Context, id int64, status model.TxStatus, note string, settle Settle) (model.Transaction, error) {
	var out model.Transaction
	if !status.Terminal() {
		return out, model.Invalid("resolution must be approved or rejected")
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`UPDATE transactions SET status = ?, admin_note = ?, resolved_at = ?
			WHERE id = ? AND status = ?`), status, note, s.now().Unix(), id, model.TxPending)
		if err != nil {
			return fmt.Errorf("resolve %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if _, err := s.getTx(ctx, tx, id); err != nil {
				return err
			}
			return model.ErrAlreadyResolved
		}
		t, err := s.getTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if settle != nil {
			deltas, err := settle(t)
			if err != nil {
				return err
			}
			for _, d := range deltas {
				if err := s.applyDelta(ctx, tx, d); err != nil {
					return fmt.Errorf("settle %d: %w", id, err)
				}
			}
		}
		out = t
		return nil
	})
	return out, err
}

func (s *SQLStore) GetTransaction(ctx context.Context, id int64) (model.Transaction, error) {
	return s.getTx(ctx, s.db, id)
}

func (s *SQLStore) getTx(ctx context.Context, q querier, id int64) (model.Transaction, error) {
	return scanTx(q.QueryRowContext(ctx, s.q(`SELECT `+txCols+` FROM transactions WHERE id = ?`), id))
}

func (s *SQLStore) ListPending(ctx context.Context, typ model.TxType) ([]model.Transaction, error) {
	query := `SELECT ` + txCols + ` FROM transactions WHERE status = ?`
	args := []any{model.TxPending}
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, typ)
	}
	rows, err := s.db.QueryContext(ctx, s.q(query+` ORDER BY id`), args...)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()
	var out []model.Transaction
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ---- configuration ----

const rateKey = "exchange_rate"

func (s *SQLStore) ExchangeRate(ctx context.Context) (decimal.Decimal, error) {
	var v string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT value FROM config WHERE key = ?`), rateKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, model.ErrNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get exchange rate: %w", err)
	}
	return decimal.NewFromString(v)
}

func (s *SQLStore) SetExchangeRate(ctx context.Context, rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return model.Invalid("exchange rate must be positive")
	}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`), rateKey, rate.String())
	if err != nil {
		return fmt.Errorf("set exchange rate: %w", err)
	}
	return nil
}

func (s *SQLStore) Prices(ctx context.Context) (map[model.BetType]model.Price, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bet_type, cup_cents, usd_cents FROM play_prices`)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	defer rows.Close()
	out := make(map[model.BetType]model.Price)
	for rows.Next() {
		var bt model.BetType
		var p model.Price
		if err := rows.Scan(&bt, &p.CUP, &p.USD); err != nil {
			return nil, err
		}
		out[bt] = p
	}
	return out, rows.Err()
}

func (s *SQLStore) SetPrice(ctx context.Context, bt model.BetType, p model.Price) error {
	if p.CUP < 0 || p.USD < 0 {
		return model.Invalid("price components must not be negative")
	}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO play_prices (bet_type, cup_cents, usd_cents) VALUES (?, ?, ?)
		ON CONFLICT (bet_type) DO UPDATE SET cup_cents = excluded.cup_cents, usd_cents = excluded.usd_cents`),
		bt, p.CUP, p.USD)
	if err != nil {
		return fmt.Errorf("set price %s: %w", bt, err)
	}
	return nil
}

// ---- payment methods ----

func methodTable(kind model.MethodKind) (string, error) {
	switch kind {
	case model.MethodDeposit:
		return "deposit_methods", nil
	case model.MethodWithdraw:
		return "withdraw_methods", nil
	}
	return "", model.Invalid("unknown method kind " + string(kind))
}

func scanMethod(r rowScanner, kind model.MethodKind) (model.PaymentMethod, error) {
	m := model.PaymentMethod{Kind: kind}
	var active int64
	err := r.Scan(&m.ID, &m.Name, &m.Card, &m.Confirm, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return m, model.ErrNotFound
	}
	m.Active = active != 0
	return m, err
}

func (s *SQLStore) ListMethods(ctx context.Context, kind model.MethodKind, activeOnly bool) ([]model.PaymentMethod, error) {
	table, err := methodTable(kind)
	if err != nil {
		return nil, err
	}
	query := `SELECT id, name, card, confirm, active FROM ` + table
	if activeOnly {
		query += ` WHERE active = 1`
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()
	var out []model.PaymentMethod
	for rows.Next() {
		m, err := scanMethod(rows, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetMethod(ctx context.Context, kind model.MethodKind, id int64) (model.PaymentMethod, error) {
	table, err := methodTable(kind)
	if err != nil {
		return model.PaymentMethod{}, err
	}
	return scanMethod(s.db.QueryRowContext(ctx,
		s.q(`SELECT id, name, card, confirm, active FROM `+table+` WHERE id = ?`), id), kind)
}

func (s *SQLStore) AddMethod(ctx context.Context, m model.PaymentMethod) (model.PaymentMethod, error) {
	table, err := methodTable(m.Kind)
	if err != nil {
		return m, err
	}
	m.Active = true
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, s.q(`INSERT INTO `+table+` (name, card, confirm, active)
			VALUES (?, ?, ?, 1) RETURNING id`), m.Name, m.Card, m.Confirm).Scan(&m.ID)
		if err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
		return nil
	})
	return m, err
}

func (s *SQLStore) SetMethodActive(ctx context.Context, kind model.MethodKind, id int64, active bool) error {
	table, err := methodTable(kind)
	if err != nil {
		return err
	}
	flag := 0
	if active {
		flag = 1
	}
	return s.mustAffect(s.db.ExecContext(ctx, s.q(`UPDATE `+table+` SET active = ? WHERE id = ?`), flag, id))
}

func (s *SQLStore) DeleteMethod(ctx context.Context, kind model.MethodKind, id int64) error {
	table, err := methodTable(kind)
	if err != nil {
		return err
	}
	return s.mustAffect(s.db.ExecContext(ctx, s.q(`DELETE FROM `+table+` WHERE id = ?`), id))
}

func (s *SQLStore) mustAffect(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Close() error {
	s.log.Info("closing store", zap.String("dialect", string(s.dialect)))
	return s.db.Close()
}
