package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrCacheDown = errors.New("cache unavailable")
)

// Cache is the subset of RedisCache the task store decorator relies on.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	SetWithTags(ctx context.Context, key string, value interface{}, expiration time.Duration, tags []string) error
	InvalidateByTag(ctx context.Context, tag string) error
	Incr(ctx context.Context, key string) (int64, error)
}

type RedisCache struct {
	client  *redis.Client
	breaker *CircuitBreaker
	metrics *CacheMetrics
	prefix  string
}

type CacheConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
	Breaker      *CircuitBreakerConfig
}

func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    "todolist:",
	}
}

func NewRedisCache(config *CacheConfig) *RedisCache {
	if config == nil {
		config = DefaultCacheConfig()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	return NewRedisCacheWithClient(rdb, config)
}

// NewRedisCacheWithClient wraps an existing client, so the worker queue and
// the cache can share one connection pool.
func NewRedisCacheWithClient(client *redis.Client, config *CacheConfig) *RedisCache {
	if config == nil {
		config = DefaultCacheConfig()
	}
	return &RedisCache{
		client:  client,
		breaker: NewCircuitBreaker(config.Breaker),
		metrics: NewCacheMetrics(),
		prefix:  config.KeyPrefix,
	}
}

func (r *RedisCache) Client() *redis.Client {
	return r.client
}

func (r *RedisCache) Metrics() *CacheMetrics {
	return r.metrics
}

func (r *RedisCache) key(key string) string {
	return r.prefix + key
}

func (r *RedisCache) tagKey(tag string) string {
	return r.prefix + "tag:" + tag
}

// do runs fn behind the circuit breaker and records errors.
func (r *RedisCache) do(fn func() error) error {
	err := r.breaker.Execute(fn)
	if errors.Is(err, ErrCircuitBreakerOpen) {
		r.metrics.RecordError()
		return ErrCacheDown
	}
	if err != nil {
		r.metrics.RecordError()
	}
	return err
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	err = r.do(func() error {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return r.client.Set(ctx, r.key(key), data, expiration).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	r.metrics.RecordSet()
	return nil
}

func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	var data string
	miss := false

	err := r.do(func() error {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		var err error
		data, err = r.client.Get(ctx, r.key(key)).Result()
		if err == redis.Nil {
			miss = true
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to get from cache: %w", err)
	}
	if miss {
		r.metrics.RecordMiss()
		return ErrCacheMiss
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		r.metrics.RecordError()
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	r.metrics.RecordHit()
	return nil
}

// Incr atomically increments the counter at key and returns the new value.
// A missing key counts from zero. Counters never expire.
func (r *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	var value int64
	err := r.do(func() error {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		var err error
		value, err = r.client.Incr(ctx, r.key(key)).Result()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}
	return value, nil
}

// SetWithTags stores value and records key under every tag so that
// InvalidateByTag can drop all of them in one call.
func (r *RedisCache) SetWithTags(ctx context.Context, key string, value interface{}, expiration time.Duration, tags []string) error {
	if err := r.Set(ctx, key, value, expiration); err != nil {
		return err
	}

	return r.do(func() error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		pipe := r.client.TxPipeline()
		for _, tag := range tags {
			tagKey := r.tagKey(tag)
			pipe.SAdd(ctx, tagKey, r.key(key))
			pipe.Expire(ctx, tagKey, expiration)
		}

		_, err := pipe.Exec(ctx)
		return err
	})
}

func (r *RedisCache) InvalidateByTag(ctx context.Context, tag string) error {
	tagKey := r.tagKey(tag)

	err := r.do(func() error {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		keys, err := r.client.SMembers(ctx, tagKey).Result()
		if err != nil {
			return fmt.Errorf("failed to get tag members: %w", err)
		}

		return r.client.Del(ctx, append(keys, tagKey)...).Err()
	})
	if err != nil {
		return err
	}

	r.metrics.RecordDelete()
	return nil
}

func (r *RedisCache) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Stats() map[string]interface{} {
	poolStats := r.client.PoolStats()
	metrics := r.metrics.GetStats()

	return map[string]interface{}{
		"hits":          metrics.Hits,
		"misses":        metrics.Misses,
		"errors":        metrics.Errors,
		"sets":          metrics.Sets,
		"deletes":       metrics.Deletes,
		"hit_rate":      r.metrics.HitRate(),
		"breaker":       r.breaker.GetStats(),
		"pool_hits":     poolStats.Hits,
		"pool_misses":   poolStats.Misses,
		"pool_timeouts": poolStats.Timeouts,
		"pool_total":    poolStats.TotalConns,
		"pool_idle":     poolStats.IdleConns,
		"pool_stale":    poolStats.StaleConns,
	}
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
