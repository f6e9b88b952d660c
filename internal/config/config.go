package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Env      string `yaml:"env"`
	Telegram struct {
		BotToken      string  `yaml:"bot_token"`
		AdminID       int64   `yaml:"admin_id"`
		AdminChatID   int64   `yaml:"admin_chat_id"`
		WebAppURL     string  `yaml:"webapp_url"`
		Mode          string  `yaml:"mode"` // "polling" or "webhook"
		WebhookURL    string  `yaml:"webhook_url"`
		WebhookSecret string  `yaml:"webhook_secret"`
		Workers       int     `yaml:"workers"`
		RatePerSecond float64 `yaml:"rate_per_second"`
		Burst         int     `yaml:"burst"`
	} `yaml:"telegram"`
	Ledger struct {
		Timezone            string `yaml:"timezone"`
		BonusCUP            string `yaml:"bonus_cup"`
		DefaultExchangeRate string `yaml:"default_exchange_rate"`
		ReferralPercent     int64  `yaml:"referral_percent"`
		MinWithdrawUSD      string `yaml:"min_withdraw_usd"`
	} `yaml:"ledger"`
	Database struct {
		Driver     string        `yaml:"driver"` // "sqlite", "postgres" or "memory"
		DSN        string        `yaml:"dsn"`
		SQLitePath string        `yaml:"sqlite_path"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"database"`
	Session struct {
		Backend   string        `yaml:"backend"` // "memory" or "redis"
		RedisAddr string        `yaml:"redis_addr"`
		TTL       time.Duration `yaml:"ttl"`
	} `yaml:"session"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	Schedule struct {
		PendingDigestCron string `yaml:"pending_digest_cron"`
	} `yaml:"schedule"`
	HTTP struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"http"`
	Proxy string `yaml:"proxy"`
}

// Load reads an optional .env file, the YAML config at path, then applies
// environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("ADMIN_ID"); v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_ID: %w", err)
		}
		cfg.Telegram.AdminID = id
	}
	if v := os.Getenv("ADMIN_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_CHAT_ID: %w", err)
		}
		cfg.Telegram.AdminChatID = id
	}
	if v := os.Getenv("WEBAPP_URL"); v != "" {
		cfg.Telegram.WebAppURL = v
	}
	if v := os.Getenv("TELEGRAM_MODE"); v != "" {
		cfg.Telegram.Mode = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Telegram.WebhookURL = v
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		cfg.Telegram.WebhookSecret = v
	}
	if v := os.Getenv("TIMEZONE"); v != "" {
		cfg.Ledger.Timezone = v
	}
	if v := os.Getenv("BONUS_CUP_DEFAULT"); v != "" {
		cfg.Ledger.BonusCUP = v
	}
	if v := os.Getenv("DEFAULT_EXCHANGE_RATE"); v != "" {
		cfg.Ledger.DefaultExchangeRate = v
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("SESSION_BACKEND"); v != "" {
		cfg.Session.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Session.RedisAddr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.HTTP.Port = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// Defaults
	if cfg.Env == "" {
		cfg.Env = "local"
	}
	if cfg.Telegram.Mode == "" {
		cfg.Telegram.Mode = "polling"
	}
	if cfg.Telegram.Workers == 0 {
		cfg.Telegram.Workers = 8
	}
	if cfg.Telegram.RatePerSecond == 0 {
		cfg.Telegram.RatePerSecond = 2
	}
	if cfg.Telegram.Burst == 0 {
		cfg.Telegram.Burst = 5
	}
	if cfg.Ledger.Timezone == "" {
		cfg.Ledger.Timezone = "America/Havana"
	}
	if cfg.Ledger.BonusCUP == "" {
		cfg.Ledger.BonusCUP = "70"
	}
	if cfg.Ledger.DefaultExchangeRate == "" {
		cfg.Ledger.DefaultExchangeRate = "110"
	}
	if cfg.Ledger.ReferralPercent == 0 {
		cfg.Ledger.ReferralPercent = 5
	}
	if cfg.Ledger.MinWithdrawUSD == "" {
		cfg.Ledger.MinWithdrawUSD = "1.00"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/rifas.db"
	}
	if cfg.Database.Timeout == 0 {
		cfg.Database.Timeout = 5 * time.Second
	}
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "memory"
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 24 * time.Hour
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "rifas.ledger"
	}
	if cfg.Schedule.PendingDigestCron == "" {
		cfg.Schedule.PendingDigestCron = "0 0 * * * *"
	}
	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "8080"
	}
	if len(cfg.HTTP.CORSOrigins) == 0 {
		cfg.HTTP.CORSOrigins = []string{"*"}
	}
	if cfg.Telegram.AdminChatID == 0 {
		cfg.Telegram.AdminChatID = cfg.Telegram.AdminID
	}

	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that all required fields are set. A bot without a known
// admin identity must not start.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.AdminID == 0 {
		return fmt.Errorf("telegram.admin_id is required")
	}
	switch c.Telegram.Mode {
	case "polling":
	case "webhook":
		if c.Telegram.WebhookSecret == "" {
			return fmt.Errorf("telegram.webhook_secret is required in webhook mode")
		}
	default:
		return fmt.Errorf("telegram.mode must be polling or webhook, got %q", c.Telegram.Mode)
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("session.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown session.backend %q", c.Session.Backend)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if rate, err := c.DefaultRate(); err != nil || !rate.IsPositive() {
		return fmt.Errorf("ledger.default_exchange_rate must be a positive number")
	}
	if bonus, err := decimal.NewFromString(c.Ledger.BonusCUP); err != nil || bonus.IsNegative() {
		return fmt.Errorf("ledger.bonus_cup must be a non-negative number")
	}
	if minW, err := decimal.NewFromString(c.Ledger.MinWithdrawUSD); err != nil || !minW.IsPositive() {
		return fmt.Errorf("ledger.min_withdraw_usd must be positive")
	}
	if c.Ledger.ReferralPercent < 0 || c.Ledger.ReferralPercent > 100 {
		return fmt.Errorf("ledger.referral_percent must be within 0..100")
	}
	return nil
}

// Location is the timezone lottery schedules are evaluated in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Ledger.Timezone)
	if err != nil {
		return nil, fmt.Errorf("ledger.timezone: %w", err)
	}
	return loc, nil
}

func (c *Config) DefaultRate() (decimal.Decimal, error) {
	return decimal.NewFromString(c.Ledger.DefaultExchangeRate)
}
