package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Commands is the subset of the Redis client used for sessions; *redis.Client
// implements it.
type Commands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps sessions in Redis under a namespace unique to this process
// boot, so a restarted bot never resumes a half-finished flow. Abandoned keys
// expire after ttl.
type RedisStore struct {
	Client Commands
	TTL    time.Duration
	prefix string
}

func NewRedisStore(c Commands, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{Client: c, TTL: ttl, prefix: "rifas:session:" + uuid.NewString() + ":"}
}

func (r *RedisStore) key(userID int64) string {
	return r.prefix + strconv.FormatInt(userID, 10)
}

func (r *RedisStore) Get(ctx context.Context, userID int64) (State, error) {
	b, err := r.Client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Idle{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	return Decode(b)
}

func (r *RedisStore) Set(ctx context.Context, userID int64, s State) error {
	if _, idle := s.(Idle); idle || s == nil {
		return r.Clear(ctx, userID)
	}
	b, err := Encode(s)
	if err != nil {
		return err
	}
	if err := r.Client.Set(ctx, r.key(userID), b, r.TTL).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := r.Client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis clear session: %w", err)
	}
	return nil
}

// ConnectRedis dials and pings addr.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}
