package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"RifasCuba/internal/bot"
	"RifasCuba/internal/clock"
	"RifasCuba/internal/config"
	"RifasCuba/internal/events"
	"RifasCuba/internal/httpapi"
	"RifasCuba/internal/ledger"
	"RifasCuba/internal/logger"
	"RifasCuba/internal/money"
	"RifasCuba/internal/notifier"
	"RifasCuba/internal/scheduler"
	"RifasCuba/internal/session"
	"RifasCuba/internal/store"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	lg, err := logger.New("rifas-cuba-bot", cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()
	lg.Info("RifasCuba starting", zap.String("mode", cfg.Telegram.Mode), zap.String("db", cfg.Database.Driver))

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Ledger store
	st, err := openStore(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("open store", zap.Error(err))
	}
	defer st.Close()
	st = store.NewRetrying(st, cfg.Database.Timeout, lg)

	// Sessions
	var sessions session.Store = session.NewMemoryStore()
	if cfg.Session.Backend == "redis" {
		rdb, err := session.ConnectRedis(ctx, cfg.Session.RedisAddr)
		if err != nil {
			lg.Fatal("connect redis", zap.Error(err))
		}
		defer rdb.Close()
		sessions = session.NewRedisStore(rdb, cfg.Session.TTL)
	}

	// Ledger events
	var pub events.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, lg)
		if err != nil {
			lg.Fatal("init kafka publisher", zap.Error(err))
		}
		pub = kp
	}
	defer pub.Close()

	ledgerCfg, err := ledgerConfig(cfg)
	if err != nil {
		lg.Fatal("ledger config", zap.Error(err))
	}
	svc := ledger.New(st, pub, clock.RealClock{}, ledgerCfg, lg)

	// Telegram
	tg := notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Proxy, lg)
	me, err := tg.GetMe(ctx)
	if err != nil {
		lg.Fatal("telegram getMe", zap.Error(err))
	}
	lg.Info("telegram identity", zap.String("username", me.Username))

	b := bot.New(svc, sessions, tg, bot.Config{
		AdminChatID: cfg.Telegram.AdminChatID,
		WebAppURL:   cfg.Telegram.WebAppURL,
		BotUsername: me.Username,
		Location:    ledgerCfg.Location,
	}, lg)
	dispatcher := bot.NewDispatcher(b, bot.DispatcherConfig{
		Workers:       cfg.Telegram.Workers,
		RatePerSecond: cfg.Telegram.RatePerSecond,
		Burst:         cfg.Telegram.Burst,
	}, lg)

	// Scheduler
	sched := scheduler.NewScheduler(ctx, svc, tg, cfg.Telegram.AdminChatID, ledgerCfg.Location, lg)
	if err := sched.RegisterAll(cfg.Schedule.PendingDigestCron); err != nil {
		lg.Fatal("register cron tasks", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	// HTTP
	var secret string
	if cfg.Telegram.Mode == "webhook" {
		secret = cfg.Telegram.WebhookSecret
	}
	api := httpapi.New(st, svc, dispatcher, httpapi.Options{
		CORSOrigins:   cfg.HTTP.CORSOrigins,
		WebhookSecret: secret,
	}, lg)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		lg.Info("http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("http server", zap.Error(err))
			stop()
		}
	}()

	// Updates
	if cfg.Telegram.Mode == "webhook" {
		if cfg.Telegram.WebhookURL != "" {
			if err := tg.SetWebhook(ctx, cfg.Telegram.WebhookURL, secret); err != nil {
				lg.Fatal("set webhook", zap.Error(err))
			}
		}
		lg.Info("webhook mode: waiting for updates")
	} else {
		if err := tg.SetWebhook(ctx, "", ""); err != nil {
			lg.Warn("delete webhook", zap.Error(err))
		}
		go tg.StartPolling(ctx, func(u notifier.Update) { dispatcher.Submit(u) })
		lg.Info("telegram polling started")
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		go sched.RunDigestNow()
	}

	lg.Info("RifasCuba is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	lg.Info("shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("http shutdown", zap.Error(err))
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		lg.Warn("dispatcher shutdown", zap.Error(err))
	}
	lg.Info("RifasCuba stopped")
}

func openStore(ctx context.Context, cfg *config.Config, lg *zap.Logger) (store.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return store.OpenPostgres(ctx, cfg.Database.DSN, lg)
	case "memory":
		lg.Warn("using in-memory ledger; balances are lost on restart")
		return store.NewMemoryStore(), nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
			return nil, err
		}
		return store.OpenSQLite(cfg.Database.SQLitePath, lg)
	}
}

func ledgerConfig(cfg *config.Config) (ledger.Config, error) {
	loc, err := cfg.Location()
	if err != nil {
		return ledger.Config{}, err
	}
	rate, err := cfg.DefaultRate()
	if err != nil {
		return ledger.Config{}, err
	}
	bonus, err := money.Parse(cfg.Ledger.BonusCUP)
	if err != nil {
		return ledger.Config{}, err
	}
	minW, err := money.Parse(cfg.Ledger.MinWithdrawUSD)
	if err != nil {
		return ledger.Config{}, err
	}
	return ledger.Config{
		AdminID:         cfg.Telegram.AdminID,
		BonusCUP:        bonus,
		DefaultRate:     rate,
		ReferralPercent: cfg.Ledger.ReferralPercent,
		MinWithdrawUSD:  minW,
		Location:        loc,
	}, nil
}
