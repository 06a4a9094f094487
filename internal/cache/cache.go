package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// Entry represents a cached score
type Entry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	ModelName string          `json:"model_name"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Hits      int64           `json:"hits"`
}

// Config defines cache configuration
type Config struct {
	Enabled       bool          `json:"enabled"`
	DefaultTTL    time.Duration `json:"default_ttl"`
	MaxSize       int           `json:"max_size"`       // in-memory only
	CleanupPeriod time.Duration `json:"cleanup_period"` // in-memory only
}

// DefaultConfig returns sensible defaults for caching
func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		DefaultTTL:    24 * time.Hour,
		MaxSize:       5000,
		CleanupPeriod: 5 * time.Minute,
	}
}

// Backend is the interface the scorer uses; both the in-memory Cache and
// RedisCache implement it.
type Backend interface {
	Get(ctx context.Context, key string) (*Entry, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, model string) error
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
	GetStats(ctx context.Context) *Stats
}

// Stats tracks cache performance
type Stats struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	Evictions    int64   `json:"evictions"`
	TotalEntries int64   `json:"total_entries"`
	HitRate      float64 `json:"hit_rate"`
}

// GenerateKey hashes the model name and the parts that determine a score
// into a stable cache key.
func GenerateKey(model string, parts ...string) string {
	hasher := sha256.New()
	hasher.Write([]byte(model))
	for _, p := range parts {
		hasher.Write([]byte{0})
		hasher.Write([]byte(p))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// Cache is an in-memory Backend with TTL expiry and oldest-first eviction
type Cache struct {
	config  *Config
	entries map[string]*Entry
	mu      sync.RWMutex
	stats   Stats
	stop    chan struct{}
	once    sync.Once
}

// New creates a new in-memory cache instance. Call Close to stop the
// background cleanup.
func New(config *Config) *Cache {
	if config == nil {
		config = DefaultConfig()
	}

	c := &Cache{
		config:  config,
		entries: make(map[string]*Entry),
		stop:    make(chan struct{}),
	}

	if config.Enabled && config.CleanupPeriod > 0 {
		go c.cleanupLoop()
	}

	return c
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

// Get retrieves a cached value if available and not expired
func (c *Cache) Get(ctx context.Context, key string) (*Entry, bool) {
	if !c.config.Enabled {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.stats.Misses++
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		delete(c.entries, key)
		c.stats.Misses++
		return nil, false
	}

	entry.Hits++
	c.stats.Hits++
	cp := *entry
	return &cp, true
}

// Set stores a value in the cache
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration, model string) error {
	if !c.config.Enabled {
		return nil
	}

	if ttl == 0 {
		ttl = c.config.DefaultTTL
	}

	now := time.Now()
	entry := &Entry{
		Key:       key,
		Value:     append(json.RawMessage(nil), value...),
		ModelName: model,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.config.MaxSize > 0 && len(c.entries) >= c.config.MaxSize {
		c.evictOldest()
	}

	c.entries[key] = entry
	return nil
}

// Delete removes an entry from the cache
func (c *Cache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes all entries from the cache
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()
}

// GetStats returns current cache statistics
func (c *Cache) GetStats(ctx context.Context) *Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.TotalEntries = int64(len(c.entries))
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return &stats
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *Cache) cleanup() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}
}

// evictOldest removes the entry cached first. Caller holds c.mu.
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true

	for key, entry := range c.entries {
		if first || entry.CachedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.CachedAt
			first = false
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}
