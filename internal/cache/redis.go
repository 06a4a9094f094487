package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "convreview:score:"

// RedisCache is a Backend shared across service replicas
type RedisCache struct {
	client *redis.Client
	config *Config
	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisCache connects to the Redis instance at url (redis://host:port/db).
func NewRedisCache(ctx context.Context, url string, config *Config) (*RedisCache, error) {
	if config == nil {
		config = DefaultConfig()
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Printf("[Cache] Connected to Redis at %s", opts.Addr)
	return &RedisCache{client: client, config: config}, nil
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Get retrieves a cached value
func (r *RedisCache) Get(ctx context.Context, key string) (*Entry, bool) {
	if !r.config.Enabled {
		return nil, false
	}
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[Cache] Redis get failed: %v", err)
		}
		r.misses.Add(1)
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Printf("[Cache] Dropping corrupt entry %s: %v", key, err)
		r.Delete(ctx, key)
		r.misses.Add(1)
		return nil, false
	}
	r.hits.Add(1)
	return &entry, true
}

// Set stores a value with a TTL
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration, model string) error {
	if !r.config.Enabled {
		return nil
	}
	if ttl == 0 {
		ttl = r.config.DefaultTTL
	}
	now := time.Now()
	data, err := json.Marshal(Entry{
		Key:       key,
		Value:     value,
		ModelName: model,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return r.client.Set(ctx, redisKeyPrefix+key, data, ttl).Err()
}

// Delete removes an entry
func (r *RedisCache) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		log.Printf("[Cache] Redis delete failed: %v", err)
	}
}

// Clear removes every score entry written by this service
func (r *RedisCache) Clear(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		r.client.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Printf("[Cache] Redis clear failed: %v", err)
	}
}

// GetStats returns hit/miss counters for this process
func (r *RedisCache) GetStats(ctx context.Context) *Stats {
	stats := &Stats{Hits: r.hits.Load(), Misses: r.misses.Load()}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}
