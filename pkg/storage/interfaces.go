package storage

import (
	"context"
	"errors"
	"time"

	"github.com/confsys/sitecfg/pkg/schema"
)

// ErrNotFound is returned by ReadCurrent for a category that has never been
// written. Callers treat it as "use schema defaults", not as a failure.
var ErrNotFound = errors.New("config not found")

// ErrUnavailable wraps transient store failures so callers can degrade to a
// cached or default value.
var ErrUnavailable = errors.New("store unavailable")

// ErrCorrupt wraps a stored row whose payload cannot be decoded. Callers
// treat it like an invalid row: prefer the last known-good cached value
// over defaults.
var ErrCorrupt = errors.New("corrupt config row")

// Notification describes one committed write. The store emits it after the
// row and its version are durable; subscribers run synchronously before the
// write call returns.
type Notification struct {
	Category  schema.Category
	Operation schema.Operation
	Actor     string
	Previous  schema.Values
	New       schema.Values
	Version   int64
	Committed time.Time
}

// NotificationFunc receives committed-write notifications.
type NotificationFunc func(Notification)

// Store persists the current configuration row per category. Exactly one
// row is current per category at any instant; its version increases by one
// per accepted write via a single conditional update, so two racing writes
// can never observe the same pre-increment version.
type Store interface {
	// ReadCurrent returns the current values and version for a category,
	// or ErrNotFound if the category has never been written.
	ReadCurrent(ctx context.Context, category schema.Category) (schema.Values, int64, error)

	// WriteCurrent atomically replaces the current values and bumps the
	// version, returning the new version. Subscribers are notified before
	// the call returns.
	WriteCurrent(ctx context.Context, category schema.Category, values schema.Values, actor string) (int64, error)

	// Reset replaces the current values with schema defaults. The row is
	// kept and the version still bumps; subscribers see a delete operation.
	Reset(ctx context.Context, category schema.Category, actor string) (int64, error)

	// Subscribe registers a callback invoked for every committed write.
	Subscribe(fn NotificationFunc)

	// Ping checks store reachability.
	Ping(ctx context.Context) error

	Close() error
}

// Config for storage and cache backends.
type Config struct {
	Type string // "memory", "postgres", "sqlite"

	// PostgreSQL config
	PostgresURL      string
	PostgresMaxConns int
	PostgresTimeout  time.Duration

	// SQLite config
	SQLitePath string

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// Cache config
	CacheEnabled   bool
	CacheNamespace string
	CacheTTL       time.Duration
	L1CacheSize    int

	// CacheWarmOnWrite eagerly repopulates the cache after each write
	// instead of waiting for the next read.
	CacheWarmOnWrite bool
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Type:             "memory",
		PostgresMaxConns: 20,
		PostgresTimeout:  10 * time.Second,
		SQLitePath:       "sitecfg.db",
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		CacheEnabled:     true,
		CacheNamespace:   "sitecfg",
		CacheTTL:         5 * time.Minute,
		L1CacheSize:      64,
	}
}
