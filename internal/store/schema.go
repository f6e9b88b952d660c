package store

import (
	"strconv"
	"strings"
)

// Dialect selects SQL differences between the embedded and the server database.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) serial() string {
	if d == DialectPostgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// rebind rewrites ? placeholders to $1..$n for postgres.
func rebind(d Dialect, query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func migrations(d Dialect) []string {
	id := d.serial()
	methods := func(table string) string {
		return `CREATE TABLE IF NOT EXISTS ` + table + ` (
			id      ` + id + `,
			name    TEXT NOT NULL,
			card    TEXT NOT NULL DEFAULT '',
			confirm TEXT NOT NULL DEFAULT '',
			active  INTEGER NOT NULL DEFAULT 1
		)`
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id     BIGINT PRIMARY KEY,
			first_name  TEXT NOT NULL DEFAULT '',
			usd_cents   BIGINT NOT NULL DEFAULT 0 CHECK (usd_cents >= 0),
			cup_cents   BIGINT NOT NULL DEFAULT 0 CHECK (cup_cents >= 0),
			bonus_cents BIGINT NOT NULL DEFAULT 0 CHECK (bonus_cents >= 0),
			ref         BIGINT NOT NULL DEFAULT 0,
			created_at  BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_ref ON users(ref)`,

		`CREATE TABLE IF NOT EXISTS bets (
			id             ` + id + `,
			user_id        BIGINT NOT NULL,
			lottery        TEXT NOT NULL,
			bet_type       TEXT NOT NULL,
			raw_text       TEXT NOT NULL,
			cost_usd_cents BIGINT NOT NULL DEFAULT 0,
			cost_cup_cents BIGINT NOT NULL DEFAULT 0,
			created_at     BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bets_user ON bets(user_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id               ` + id + `,
			user_id          BIGINT NOT NULL,
			type             TEXT NOT NULL,
			amount_usd_cents BIGINT NOT NULL DEFAULT 0,
			amount_cup_cents BIGINT NOT NULL DEFAULT 0,
			method_id        BIGINT NOT NULL DEFAULT 0,
			proof            TEXT NOT NULL DEFAULT '',
			details          TEXT NOT NULL DEFAULT '',
			target_user_id   BIGINT NOT NULL DEFAULT 0,
			status           TEXT NOT NULL,
			admin_note       TEXT NOT NULL DEFAULT '',
			created_at       BIGINT NOT NULL,
			resolved_at      BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_status ON transactions(status, type)`,

		methods("deposit_methods"),
		methods("withdraw_methods"),

		`CREATE TABLE IF NOT EXISTS config (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS play_prices (
			bet_type  TEXT PRIMARY KEY,
			cup_cents BIGINT NOT NULL DEFAULT 0,
			usd_cents BIGINT NOT NULL DEFAULT 0
		)`,
	}
}
