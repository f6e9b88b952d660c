package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"RifasCuba/internal/metrics"
	"RifasCuba/internal/model"
	"RifasCuba/internal/notifier"
)

// PendingSource lists transactions still awaiting review.
type PendingSource interface {
	Pending(ctx context.Context) ([]model.Transaction, error)
}

// Sender delivers a message with retries.
type Sender interface {
	SendWithRetry(ctx context.Context, m notifier.Message, maxRetries int) (int64, error)
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Ledger   PendingSource
	Notifier Sender
	ChatID   int64
	Location *time.Location
	Ctx      context.Context
	log      *zap.Logger
}

// NewScheduler creates a new Scheduler. Cron specs carry a seconds field and
// are evaluated in loc.
func NewScheduler(ctx context.Context, l PendingSource, n Sender, chatID int64, loc *time.Location, log *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		Ledger:   l,
		Notifier: n,
		ChatID:   chatID,
		Location: loc,
		Ctx:      ctx,
		log:      log,
	}
}

// RegisterAll registers the pending-review digest.
func (s *Scheduler) RegisterAll(digestCron string) error {
	if _, err := s.Cron.AddFunc(digestCron, s.digestTask); err != nil {
		return fmt.Errorf("register pending digest: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunDigestNow executes the digest immediately.
func (s *Scheduler) RunDigestNow() {
	s.digestTask()
}

func (s *Scheduler) digestTask() {
	ctx, cancel := context.WithTimeout(s.Ctx, time.Minute)
	defer cancel()

	txs, err := s.Ledger.Pending(ctx)
	if err != nil {
		s.log.Error("pending digest: list pending", zap.Error(err))
		return
	}
	var deposits, withdrawals int
	for _, tx := range txs {
		if tx.Type == model.TxWithdraw {
			withdrawals++
		} else {
			deposits++
		}
	}
	metrics.PendingGauge.WithLabelValues(string(model.TxDeposit)).Set(float64(deposits))
	metrics.PendingGauge.WithLabelValues(string(model.TxWithdraw)).Set(float64(withdrawals))

	if len(txs) == 0 {
		return
	}
	s.log.Info("sending pending digest", zap.Int("deposits", deposits), zap.Int("withdrawals", withdrawals))
	s.trySend(ctx, notifier.FormatPending(txs, s.Location)+"\n\nUsa /pending para revisarlas.")
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if _, err := s.Notifier.SendWithRetry(ctx, notifier.Message{ChatID: s.ChatID, Text: text}, 3); err != nil {
		s.log.Error("send pending digest", zap.Error(err))
	}
}
