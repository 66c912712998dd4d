package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript increments the counter, arms the TTL on first use and reports
// whether the new count is still within the limit.
var incrScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local ttl = tonumber(ARGV[2])

	local current = redis.call('INCR', key)
	if current == 1 then
		redis.call('EXPIRE', key, ttl)
	end

	if limit > 0 and current > limit then
		return {0, current}
	end
	return {1, current}
`)

// RedisBudget shares expensive-call budgets between processes, keyed per render
type RedisBudget struct {
	client *redis.Client
	limit  int
	ttl    time.Duration
	prefix string
}

// RedisBudgetConfig holds configuration for the Redis budget
type RedisBudgetConfig struct {
	// Client is the Redis client to use
	Client *redis.Client
	// Limit is the maximum number of expensive calls per render key
	Limit int
	// TTL bounds how long a render key is kept
	TTL time.Duration
	// Prefix is the key prefix for Redis keys
	Prefix string
}

// DefaultRedisBudgetConfig returns a default Redis budget configuration
func DefaultRedisBudgetConfig(client *redis.Client) RedisBudgetConfig {
	return RedisBudgetConfig{
		Client: client,
		Limit:  DefaultLimit,
		TTL:    5 * time.Minute,
		Prefix: "cattools:expensive:",
	}
}

// NewRedisBudget creates a new Redis budget with custom configuration
func NewRedisBudget(config RedisBudgetConfig) (*RedisBudget, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.TTL < time.Second {
		return nil, errors.New("ttl must be at least one second")
	}

	return &RedisBudget{
		client: config.Client,
		limit:  config.Limit,
		ttl:    config.TTL,
		prefix: config.Prefix,
	}, nil
}

// ForRender returns the counter of one render
func (b *RedisBudget) ForRender(key string) Counter {
	return &redisCounter{budget: b, key: b.prefix + key}
}

// Count returns the number of expensive calls recorded for a render
func (b *RedisBudget) Count(ctx context.Context, key string) (int, error) {
	n, err := b.client.Get(ctx, b.prefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis budget read failed: %w", err)
	}
	return n, nil
}

// Reset removes the counter of a render
func (b *RedisBudget) Reset(ctx context.Context, key string) error {
	return b.client.Del(ctx, b.prefix+key).Err()
}

type redisCounter struct {
	budget *RedisBudget
	key    string
}

func (c *redisCounter) IncrementExpensive(ctx context.Context) error {
	result, err := incrScript.Run(ctx, c.budget.client, []string{c.key},
		c.budget.limit,
		int(c.budget.ttl.Seconds()),
	).Result()
	if err != nil {
		return fmt.Errorf("redis budget increment failed: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) != 2 {
		return errors.New("unexpected redis script result")
	}

	allowed, ok := resultSlice[0].(int64)
	if !ok {
		return errors.New("invalid allowed value from redis")
	}

	if allowed != 1 {
		return ErrLimitExceeded
	}
	return nil
}
