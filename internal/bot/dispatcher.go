package bot

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"RifasCuba/internal/metrics"
	nt "RifasCuba/internal/notifier"
)

// Handler processes one update to completion.
type Handler interface {
	Handle(ctx context.Context, u nt.Update)
}

// ThrottleNotifier is implemented by handlers that tell users their updates
// are being dropped.
type ThrottleNotifier interface {
	Throttled(ctx context.Context, u nt.Update)
}

type DispatcherConfig struct {
	// Workers bounds how many users are served at the same time.
	Workers int
	// RatePerSecond and Burst shape each user's update rate. Zero disables it.
	RatePerSecond float64
	Burst         int
}

// pruneAbove is the limiter count after which idle limiters are dropped.
const pruneAbove = 4096

// throttleNoticeEvery spaces out throttle notices sent to one user.
const throttleNoticeEvery = 10 * time.Second

// Dispatcher fans updates out to a bounded set of workers. Updates of one user
// are queued and handled strictly in arrival order; different users proceed
// concurrently.
type Dispatcher struct {
	h   Handler
	cfg DispatcherConfig
	log *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	queues   map[int64][]nt.Update
	limiters map[int64]*rate.Limiter
	noticed  map[int64]time.Time
}

func NewDispatcher(h Handler, cfg DispatcherConfig, log *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		h:        h,
		cfg:      cfg,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		sem:      make(chan struct{}, cfg.Workers),
		queues:   make(map[int64][]nt.Update),
		limiters: make(map[int64]*rate.Limiter),
		noticed:  make(map[int64]time.Time),
	}
}

// Submit queues u for its sender. It reports false when the update was
// dropped: no sender, the user is over their rate, or the dispatcher is shut
// down.
func (d *Dispatcher) Submit(u nt.Update) bool {
	from := u.Sender()
	if from == nil {
		return false
	}
	uid := from.ID

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	if !d.limiter(uid).Allow() {
		metrics.UpdatesTotal.WithLabelValues("throttled").Inc()
		d.log.Debug("update throttled", zap.Int64("user_id", uid), zap.Int64("update_id", u.UpdateID))
		d.noticeThrottled(uid, u)
		return false
	}

	q := d.queues[uid]
	d.queues[uid] = append(q, u)
	if len(q) == 0 {
		d.wg.Add(1)
		go d.drain(uid)
	}
	return true
}

// limiter must be called with d.mu held.
func (d *Dispatcher) limiter(uid int64) *rate.Limiter {
	if l, ok := d.limiters[uid]; ok {
		return l
	}
	if len(d.limiters) >= pruneAbove {
		for id, l := range d.limiters {
			if l.Tokens() >= float64(d.cfg.Burst) {
				delete(d.limiters, id)
				delete(d.noticed, id)
			}
		}
	}
	limit := rate.Inf
	if d.cfg.RatePerSecond > 0 {
		limit = rate.Limit(d.cfg.RatePerSecond)
	}
	l := rate.NewLimiter(limit, d.cfg.Burst)
	d.limiters[uid] = l
	return l
}

// noticeThrottled tells the user once per throttleNoticeEvery that updates
// are being dropped. Must be called with d.mu held.
func (d *Dispatcher) noticeThrottled(uid int64, u nt.Update) {
	tn, ok := d.h.(ThrottleNotifier)
	if !ok {
		return
	}
	now := time.Now()
	if last, seen := d.noticed[uid]; seen && now.Sub(last) < throttleNoticeEvery {
		return
	}
	d.noticed[uid] = now
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("throttle notice panic", zap.Int64("user_id", uid), zap.Any("panic", r))
			}
		}()
		tn.Throttled(d.ctx, u)
	}()
}

// drain runs the user's queue until it is empty. The head stays queued while
// it is being handled so Submit does not start a second drainer.
func (d *Dispatcher) drain(uid int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		u := d.queues[uid][0]
		d.mu.Unlock()

		select {
		case d.sem <- struct{}{}:
			d.run(u)
			<-d.sem
		case <-d.ctx.Done():
		}

		d.mu.Lock()
		rest := d.queues[uid][1:]
		if len(rest) == 0 {
			delete(d.queues, uid)
			d.mu.Unlock()
			return
		}
		d.queues[uid] = rest
		d.mu.Unlock()
	}
}

func (d *Dispatcher) run(u nt.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("handler panic", zap.Int64("update_id", u.UpdateID), zap.Any("panic", r))
		}
	}()
	d.h.Handle(d.ctx, u)
}

// Shutdown stops accepting updates and waits for queued ones to finish. When
// ctx expires first, in-flight handlers are cancelled and queued updates are
// dropped.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
