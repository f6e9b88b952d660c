package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"RifasCuba/internal/model"
)

// memRedis answers the three session commands from a map.
type memRedis struct {
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

func newMemRedis() *memRedis {
	return &memRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *memRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if m.err != nil {
		return redis.NewStringResult("", m.err)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	if m.err != nil {
		return redis.NewStatusResult("", m.err)
	}
	m.data[key] = string(value.([]byte))
	m.ttl[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (m *memRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if m.err != nil {
		return redis.NewIntResult(0, m.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	kv := newMemRedis()
	s := NewRedisStore(kv, time.Hour)

	st, err := s.Get(ctx, 7)
	if err != nil || st.Flow() != FlowNone {
		t.Fatalf("unknown user: %#v, %v", st, err)
	}

	want := AwaitingWithdrawAccount{MethodID: 3, Amount: 250}
	if err := s.Set(ctx, 7, want); err != nil {
		t.Fatal(err)
	}
	if len(kv.data) != 1 {
		t.Fatalf("keys %v", kv.data)
	}
	for k := range kv.data {
		if !strings.HasPrefix(k, "rifas:session:") || !strings.HasSuffix(k, ":7") || kv.ttl[k] != time.Hour {
			t.Fatalf("key %q ttl %s", k, kv.ttl[k])
		}
	}
	st, err = s.Get(ctx, 7)
	if err != nil || st != want {
		t.Fatalf("round trip: %#v, %v", st, err)
	}

	// Idle is stored as the absence of a key.
	if err := s.Set(ctx, 7, Idle{}); err != nil || len(kv.data) != 0 {
		t.Fatalf("idle kept %v, %v", kv.data, err)
	}

	_ = s.Set(ctx, 8, AdminMethodName{Kind: model.MethodDeposit})
	_ = s.Clear(ctx, 8)
	if st, _ := s.Get(ctx, 8); st.Flow() != FlowNone {
		t.Fatalf("after clear: %#v", st)
	}
}

func TestRedisStore_BootNamespace(t *testing.T) {
	ctx := context.Background()
	kv := newMemRedis()
	before := NewRedisStore(kv, 0)
	_ = before.Set(ctx, 7, AwaitingTransferTarget{})

	after := NewRedisStore(kv, 0)
	if st, _ := after.Get(ctx, 7); st.Flow() != FlowNone {
		t.Fatalf("restarted store resumed %#v", st)
	}
	for k := range kv.data {
		if kv.ttl[k] != 24*time.Hour {
			t.Fatalf("default ttl %s", kv.ttl[k])
		}
	}
}

func TestRedisStore_Errors(t *testing.T) {
	ctx := context.Background()
	kv := newMemRedis()
	s := NewRedisStore(kv, time.Minute)
	kv.err = errors.New("dial tcp: connection refused")

	if _, err := s.Get(ctx, 1); err == nil {
		t.Fatal("get: expected error")
	}
	if err := s.Set(ctx, 1, AwaitingBet{}); !errors.Is(err, kv.err) {
		t.Fatalf("set: %v", err)
	}
	if err := s.Clear(ctx, 1); !errors.Is(err, kv.err) {
		t.Fatalf("clear: %v", err)
	}

	kv.err = nil
	kv.data[s.key(1)] = "not json"
	if _, err := s.Get(ctx, 1); err == nil {
		t.Fatal("corrupt session decoded")
	}
}
