package store

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreType names a Store driver.
type StoreType string

const (
	StoreTypeFile     StoreType = "file"
	StoreTypeMemory   StoreType = "memory"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeSupabase StoreType = "supabase"
)

// Option is a functional option for configuring a store.
type Option func(*storeConfig)

type storeConfig struct {
	dir           string
	redisClient   *redis.Client
	redisPrefix   string
	redisTTL      time.Duration
	supabaseURL   string
	supabaseKey   string
	supabaseTable string
}

// WithDir sets the root directory of the file store.
func WithDir(dir string) Option {
	return func(c *storeConfig) { c.dir = dir }
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) Option {
	return func(c *storeConfig) { c.redisClient = client }
}

// WithRedisPrefix namespaces every Redis key.
func WithRedisPrefix(prefix string) Option {
	return func(c *storeConfig) { c.redisPrefix = prefix }
}

// WithRedisTTL sets an expiry on Redis keys. Zero keeps keys forever.
func WithRedisTTL(ttl time.Duration) Option {
	return func(c *storeConfig) { c.redisTTL = ttl }
}

// WithSupabase sets the project URL, service key and table for the Supabase store.
func WithSupabase(url, key, table string) Option {
	return func(c *storeConfig) {
		c.supabaseURL = url
		c.supabaseKey = key
		c.supabaseTable = table
	}
}

// NewStore creates a Store of the given type.
func NewStore(storeType StoreType, opts ...Option) (Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case StoreTypeMemory:
		return NewMemoryStore(), nil
	case StoreTypeFile, "":
		if cfg.dir == "" {
			return nil, ErrInvalidConfig
		}
		return NewFileStore(cfg.dir), nil
	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return NewRedisStore(cfg.redisClient, cfg.redisPrefix, cfg.redisTTL), nil
	case StoreTypeSupabase:
		return NewSupabaseStore(cfg.supabaseURL, cfg.supabaseKey, cfg.supabaseTable)
	default:
		return nil, ErrInvalidStoreType
	}
}
