package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var compareAndSetScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		redis.call("SET", KEYS[1], ARGV[2], "KEEPTTL")
		return 1
	else
		return 0
	end
`)

// RedisConfig holds connection settings for the Redis KV.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisKV stores sessions in Redis so several bot processes can share the
// exactly-once guards.
type RedisKV struct {
	client *redis.Client
	prefix string
}

func NewRedisKV(ctx context.Context, cfg RedisConfig) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("session: redis ping %s: %w", cfg.Addr, err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "storefront"
	}
	return &RedisKV{client: client, prefix: prefix}, nil
}

func (r *RedisKV) key(k string) string { return r.prefix + ":" + k }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *RedisKV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.key(key), value, ttl).Result()
}

func (r *RedisKV) CompareAndSet(ctx context.Context, key, old, value string) (bool, error) {
	n, err := compareAndSetScript.Run(ctx, r.client, []string{r.key(key)}, old, value).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	return r.client.Del(ctx, full...).Err()
}

func (r *RedisKV) ZAdd(ctx context.Context, key, member string, at time.Time, ttl time.Duration) error {
	k := r.key(key)
	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(at.UnixMilli()), Member: member})
	if ttl > 0 {
		pipe.Expire(ctx, k, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisKV) ZSince(ctx context.Context, key string, since time.Time) ([]string, error) {
	k := r.key(key)
	cutoff := "(" + strconv.FormatInt(since.UnixMilli(), 10)
	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", cutoff)
	rng := pipe.ZRange(ctx, k, 0, -1)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	return rng.Val(), nil
}

func (r *RedisKV) ZRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.client.ZRem(ctx, r.key(key), args...).Err()
}

func (r *RedisKV) Close() error { return r.client.Close() }
