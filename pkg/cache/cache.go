// Package cache provides the fast-path store for resolved configuration
// documents: namespaced keys, TTL, explicit invalidation, and a version
// check that turns any stale entry into a miss. Implementations exist for
// Redis and for an in-process LRU.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/confsys/sitecfg/pkg/schema"
)

// ErrMiss signals the caller should load from the store and repopulate.
var ErrMiss = errors.New("cache miss")

// ErrUnavailable wraps transient cache failures; reads fall through to the
// store and writes proceed without a cache warm.
var ErrUnavailable = errors.New("cache unavailable")

// Entry is a cached document stamped with the persisted version it reflects
// and a lazy expiry deadline. Expiry is checked on Get, not by a sweeper,
// so an expired entry remains retrievable through GetStale as a last
// known-good fallback.
type Entry struct {
	Document      *schema.Document `json:"document"`
	StoredVersion int64            `json:"stored_version"`
	ExpiresAt     time.Time        `json:"expires_at"`
}

// Expired reports whether the entry's TTL has elapsed.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// VersionSource reports the latest known persisted version per category.
// The second return is false when no version is known yet; the cache then
// trusts the entry's own stamp.
type VersionSource interface {
	CurrentVersion(category schema.Category) (int64, bool)
}

// Cache is the single point of truth for what is currently
// fast-path-visible. A hit is only returned while the entry's TTL has not
// elapsed and its stamped version matches the latest known persisted
// version; a version mismatch is a miss even inside the TTL window.
type Cache interface {
	// Get returns a version-valid, unexpired entry or ErrMiss.
	Get(ctx context.Context, category schema.Category) (*Entry, error)

	// GetStale returns whatever entry exists, ignoring TTL and version.
	// Used as the last-known-good fallback when the store row is corrupt.
	GetStale(ctx context.Context, category schema.Category) (*Entry, error)

	// Set overwrites unconditionally, stamping the entry with the
	// document's persisted version.
	Set(ctx context.Context, category schema.Category, doc *schema.Document, ttl time.Duration) error

	// Invalidate removes the entry; subsequent Gets miss until repopulated.
	Invalidate(ctx context.Context, category schema.Category) error

	// InvalidateAll clears every category entry in the namespace.
	InvalidateAll(ctx context.Context) error

	// Ping checks cache reachability.
	Ping(ctx context.Context) error

	Close() error
}

// validate applies the shared hit policy: TTL lazily, then the version
// check. The version check is the consistency guarantee; TTL is only a
// safety net.
func validate(entry *Entry, versions VersionSource, now time.Time) error {
	if entry.Expired(now) {
		return ErrMiss
	}
	if versions != nil {
		if current, ok := versions.CurrentVersion(entry.Document.Category); ok && entry.StoredVersion != current {
			return ErrMiss
		}
	}
	return nil
}
