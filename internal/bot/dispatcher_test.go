package bot

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	nt "RifasCuba/internal/notifier"
)

type handlerFunc func(ctx context.Context, u nt.Update)

func (f handlerFunc) Handle(ctx context.Context, u nt.Update) { f(ctx, u) }

func update(id, uid int64) nt.Update {
	return nt.Update{UpdateID: id, Message: &nt.IncomingMsg{From: &nt.User{ID: uid}, Text: "x"}}
}

func TestDispatcher_SerializesPerUser(t *testing.T) {
	var (
		mu      sync.Mutex
		seen    = map[int64][]int64{}
		running = map[int64]int{}
		overlap atomic.Bool
	)
	d := NewDispatcher(handlerFunc(func(_ context.Context, u nt.Update) {
		uid := u.Sender().ID
		mu.Lock()
		running[uid]++
		if running[uid] > 1 {
			overlap.Store(true)
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		running[uid]--
		seen[uid] = append(seen[uid], u.UpdateID)
		mu.Unlock()
	}), DispatcherConfig{Workers: 4}, zap.NewNop())

	for i := int64(1); i <= 20; i++ {
		d.Submit(update(i, 1+i%2))
	}
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}

	if overlap.Load() {
		t.Fatal("two updates of one user ran concurrently")
	}
	for uid, ids := range seen {
		if len(ids) != 10 {
			t.Fatalf("user %d handled %d updates", uid, len(ids))
		}
		for i := 1; i < len(ids); i++ {
			if ids[i] < ids[i-1] {
				t.Fatalf("user %d out of order: %v", uid, ids)
			}
		}
	}
}

func TestDispatcher_UsersRunConcurrently(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	release := make(chan struct{})
	d := NewDispatcher(handlerFunc(func(context.Context, nt.Update) {
		started.Done()
		<-release
	}), DispatcherConfig{Workers: 2}, zap.NewNop())

	d.Submit(update(1, 1))
	d.Submit(update(2, 2))

	both := make(chan struct{})
	go func() {
		started.Wait()
		close(both)
	}()
	select {
	case <-both:
	case <-time.After(2 * time.Second):
		t.Fatal("second user blocked behind the first")
	}
	close(release)
	d.Shutdown(context.Background())
}

func TestDispatcher_ThrottlesAndStops(t *testing.T) {
	var handled atomic.Int32
	d := NewDispatcher(handlerFunc(func(context.Context, nt.Update) {
		handled.Add(1)
	}), DispatcherConfig{Workers: 1, RatePerSecond: 0.001, Burst: 2}, zap.NewNop())

	if !d.Submit(update(1, 7)) || !d.Submit(update(2, 7)) {
		t.Fatal("burst rejected")
	}
	if d.Submit(update(3, 7)) {
		t.Fatal("update over the rate was accepted")
	}
	if !d.Submit(update(4, 8)) {
		t.Fatal("limit leaked across users")
	}
	if d.Submit(nt.Update{UpdateID: 5}) {
		t.Fatal("update without sender accepted")
	}

	d.Shutdown(context.Background())
	if got := handled.Load(); got != 3 {
		t.Fatalf("handled %d, want 3", got)
	}
	if d.Submit(update(6, 9)) {
		t.Fatal("accepted after shutdown")
	}
}

type noticingHandler struct {
	handled atomic.Int32
	notices atomic.Int32
}

func (h *noticingHandler) Handle(context.Context, nt.Update) { h.handled.Add(1) }

func (h *noticingHandler) Throttled(context.Context, nt.Update) { h.notices.Add(1) }

func TestDispatcher_NoticesThrottledUserOnce(t *testing.T) {
	h := &noticingHandler{}
	d := NewDispatcher(h, DispatcherConfig{Workers: 1, RatePerSecond: 0.001, Burst: 1}, zap.NewNop())

	for i := int64(1); i <= 5; i++ {
		d.Submit(update(i, 7))
	}
	d.Submit(update(6, 8))
	d.Submit(update(7, 8))

	d.Shutdown(context.Background())
	if got := h.handled.Load(); got != 2 {
		t.Fatalf("handled %d, want 2", got)
	}
	if got := h.notices.Load(); got != 2 {
		t.Fatalf("notices %d, want one per throttled user", got)
	}
}
