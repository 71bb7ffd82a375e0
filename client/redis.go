package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "starterp:auth-state"

// RedisKV is the subset of redis.Cmdable used by RedisPersister.
type RedisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

var _ RedisKV = (*redis.Client)(nil)

// RedisPersister stores the state under one key, for clients that share
// state across processes.
type RedisPersister struct {
	rdb RedisKV
	key string
	ttl time.Duration
}

type RedisOption func(*RedisPersister)

// WithRedisKey sets the key. Default: "starterp:auth-state".
func WithRedisKey(key string) RedisOption {
	return func(p *RedisPersister) { p.key = key }
}

// WithRedisTTL expires the stored state after ttl of no writes. Zero keeps
// it forever.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(p *RedisPersister) { p.ttl = ttl }
}

func NewRedisPersister(rdb RedisKV, opts ...RedisOption) *RedisPersister {
	p := &RedisPersister{rdb: rdb, key: defaultRedisKey}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *RedisPersister) Load(ctx context.Context) ([]byte, error) {
	data, err := p.rdb.Get(ctx, p.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", p.key, err)
	}
	return data, nil
}

func (p *RedisPersister) Save(ctx context.Context, data []byte) error {
	if err := p.rdb.Set(ctx, p.key, data, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", p.key, err)
	}
	return nil
}
