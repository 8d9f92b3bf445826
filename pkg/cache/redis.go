package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/confsys/sitecfg/pkg/schema"
	"github.com/confsys/sitecfg/pkg/storage"
)

// Redis entries carry their own lazy expiry; the Redis-side TTL below is a
// safety net that still leaves room for the stale last-known-good fallback.
const redisHardTTL = 24 * time.Hour

// RedisCache implements Cache on Redis.
type RedisCache struct {
	client    *redis.Client
	namespace string
	versions  VersionSource
}

// NewRedisCache creates a Redis-backed cache from storage config.
func NewRedisCache(config storage.Config, versions VersionSource) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB >= 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{
		client:    client,
		namespace: config.CacheNamespace,
		versions:  versions,
	}, nil
}

func (c *RedisCache) key(category schema.Category) string {
	return fmt.Sprintf("%s:config:%s", c.namespace, category)
}

func (c *RedisCache) Get(ctx context.Context, category schema.Category) (*Entry, error) {
	entry, err := c.GetStale(ctx, category)
	if err != nil {
		return nil, err
	}
	if err := validate(entry, c.versions, time.Now()); err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *RedisCache) GetStale(ctx context.Context, category schema.Category) (*Entry, error) {
	key := c.key(category)
	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrMiss
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		// Corrupt payload; drop it and report a miss.
		c.client.Del(ctx, key)
		return nil, ErrMiss
	}
	return &entry, nil
}

func (c *RedisCache) Set(ctx context.Context, category schema.Category, doc *schema.Document, ttl time.Duration) error {
	entry := Entry{
		Document:      doc,
		StoredVersion: doc.Version,
		ExpiresAt:     time.Now().Add(ttl),
	}
	data, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.key(category), data, redisHardTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, category schema.Category) error {
	if err := c.client.Del(ctx, c.key(category)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	keys := make([]string, 0, len(schema.Categories()))
	for _, category := range schema.Categories() {
		keys = append(keys, c.key(category))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client exposes the underlying client for health probes.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
