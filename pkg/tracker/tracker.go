// Package tracker turns committed store writes into an audit trail, a
// version bump and a cache invalidation, in that order. It also owns the
// latest-known-version registry the cache layer consults to reject stale
// entries.
package tracker

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/confsys/sitecfg/pkg/async"
	"github.com/confsys/sitecfg/pkg/audit"
	"github.com/confsys/sitecfg/pkg/cache"
	"github.com/confsys/sitecfg/pkg/observability"
	"github.com/confsys/sitecfg/pkg/schema"
	"github.com/confsys/sitecfg/pkg/storage"
)

// Options configures a Tracker.
type Options struct {
	Recorder audit.Recorder
	Cache    cache.Cache
	Logger   *observability.Logger
	Metrics  *observability.Metrics

	// WarmOnWrite eagerly repopulates the cache after invalidation, through
	// the warmer installed with UseWarmer. Correctness does not depend on
	// it; the next read repopulates anyway.
	WarmOnWrite bool
}

// WarmFunc loads and caches the current fully resolved document for one
// category. The resolver installs one so warmed entries carry the same
// normalization and environment overrides a direct read would.
type WarmFunc func(ctx context.Context, category schema.Category) error

// Tracker consumes write notifications from the persisted store. Each
// notification is processed as one unit: audit append, version bump, cache
// invalidation. The audit record always exists before the invalidation so
// every invalidation is backed by a durable explanation.
type Tracker struct {
	recorder audit.Recorder
	cache    cache.Cache
	warmFn   WarmFunc
	logger   *observability.Logger
	metrics  *observability.Metrics

	warmOnWrite bool

	mu       sync.RWMutex
	versions map[schema.Category]int64
}

// New creates a Tracker. Subscribe it to a store with Attach.
func New(opts Options) *Tracker {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Tracker{
		recorder:    opts.Recorder,
		cache:       opts.Cache,
		logger:      logger,
		metrics:     opts.Metrics,
		warmOnWrite: opts.WarmOnWrite,
		versions:    make(map[schema.Category]int64),
	}
}

// UseCache wires the cache the tracker invalidates. The cache consults the
// tracker for current versions, so the two are constructed in sequence and
// joined here before Attach.
func (t *Tracker) UseCache(c cache.Cache) {
	t.cache = c
}

// UseWarmer installs the resolution path used for post-write cache warms.
// Without one, WarmOnWrite leaves the cache cold and the next read
// repopulates it.
func (t *Tracker) UseWarmer(fn WarmFunc) {
	t.warmFn = fn
}

// Attach subscribes the tracker to a store's write notifications.
func (t *Tracker) Attach(store storage.Store) {
	store.Subscribe(t.OnWrite)
}

// OnWrite handles one committed write. It runs synchronously inside the
// store's write path, so the cache entry is invalid before the write call
// returns to its caller.
func (t *Tracker) OnWrite(n storage.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log := t.logger.WithFields(map[string]interface{}{
		"category":  n.Category.String(),
		"operation": n.Operation.String(),
		"version":   n.Version,
	})

	// Step 1: durable audit trail. A recorder failure is logged but does
	// not block the version bump; the write is already committed and the
	// version check keeps the cache honest either way.
	if t.recorder != nil {
		record := audit.NewRecord(n.Category, n.Operation, n.Actor, n.Previous, n.New, n.Version)
		if err := t.recorder.Record(ctx, record); err != nil {
			log.WithError(err).Error("failed to append audit record")
		} else if t.metrics != nil {
			t.metrics.AuditRecordsTotal.WithLabelValues(n.Category.String(), n.Operation.String()).Inc()
		}
	}

	// Step 2: advance the latest-known-version registry. From this moment
	// any cached entry below n.Version reads as a miss.
	t.ObserveVersion(n.Category, n.Version)

	// Step 3: drop the cache entry. Failure is non-fatal; the version
	// check neutralizes the stale entry once the cache recovers.
	if t.cache != nil {
		if err := t.cache.Invalidate(ctx, n.Category); err != nil {
			log.WithError(err).Warn("cache invalidation failed after committed write")
			if t.metrics != nil {
				t.metrics.CacheErrorsTotal.Inc()
			}
		} else {
			if t.metrics != nil {
				t.metrics.CacheInvalidationsTotal.WithLabelValues(n.Category.String()).Inc()
			}
			if t.warmOnWrite {
				t.warm(n)
			}
		}
	}

	log.Debug("configuration change tracked")
}

// warm repopulates the cache in the background through the installed
// warmer, which re-resolves the category so the cached document matches
// what a direct read would return. A warm that loses the race against a
// newer write is neutralized by the version check.
func (t *Tracker) warm(n storage.Notification) {
	if t.warmFn == nil {
		return
	}
	async.SafeGo(context.Background(), 5*time.Second, "cache warm "+n.Category.String(), func(ctx context.Context) error {
		return t.warmFn(ctx, n.Category)
	})
}

// ObserveVersion records a persisted version seen by any component. The
// registry is monotonic: out-of-order observations from racing writers
// never move it backwards.
func (t *Tracker) ObserveVersion(category schema.Category, version int64) {
	t.mu.Lock()
	if version > t.versions[category] {
		t.versions[category] = version
		if t.metrics != nil {
			t.metrics.ConfigVersion.WithLabelValues(category.String()).Set(float64(version))
		}
	}
	t.mu.Unlock()
}

// CurrentVersion implements cache.VersionSource.
func (t *Tracker) CurrentVersion(category schema.Category) (int64, bool) {
	t.mu.RLock()
	v, ok := t.versions[category]
	t.mu.RUnlock()
	return v, ok
}

// Versions returns a snapshot of the registry, keyed by category name.
func (t *Tracker) Versions() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.versions))
	for c, v := range t.versions {
		out[c.String()] = strconv.FormatInt(v, 10)
	}
	return out
}
