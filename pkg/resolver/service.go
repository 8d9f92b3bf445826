package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/confsys/sitecfg/pkg/audit"
	"github.com/confsys/sitecfg/pkg/cache"
	"github.com/confsys/sitecfg/pkg/observability"
	"github.com/confsys/sitecfg/pkg/schema"
	"github.com/confsys/sitecfg/pkg/storage"
	"github.com/confsys/sitecfg/pkg/tracker"
)

// ErrUnknownCategory is a caller contract violation: the category is not a
// member of the closed set.
var ErrUnknownCategory = errors.New("unknown config category")

// Options configures a Service.
type Options struct {
	Store    storage.Store
	Cache    cache.Cache // optional; reads fall through to the store without it
	Tracker  *tracker.Tracker
	Recorder audit.Recorder
	Logger   *observability.Logger
	Metrics  *observability.Metrics

	CacheTTL time.Duration

	// LookupEnv supplies environment overrides; defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Service is the configuration resolver.
type Service struct {
	store      storage.Store
	cache      cache.Cache
	tracker    *tracker.Tracker
	recorder   audit.Recorder
	normalizer *schema.Normalizer
	validator  *schema.Validator
	logger     *observability.Logger
	metrics    *observability.Metrics
	health     *observability.HealthChecker
	cacheTTL   time.Duration

	overrides map[schema.Category]schema.Values

	signalMu       sync.RWMutex
	lastStoreError error
	lastStoreFail  time.Time
}

// New creates a resolver service wired to its collaborators.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Tracker == nil {
		return nil, fmt.Errorf("tracker is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	var cachePinger observability.Pinger
	if opts.Cache != nil {
		cachePinger = opts.Cache
	}

	s := &Service{
		store:      opts.Store,
		cache:      opts.Cache,
		tracker:    opts.Tracker,
		recorder:   opts.Recorder,
		normalizer: schema.NewNormalizer(nil),
		validator:  schema.NewValidator(nil),
		logger:     logger,
		metrics:    opts.Metrics,
		health:     observability.NewHealthChecker(opts.Store, cachePinger, ""),
		cacheTTL:   ttl,
		overrides:  loadOverrides(opts.LookupEnv),
	}
	// Post-write warms go through the same load path as reads, so warmed
	// entries carry normalization and environment overrides.
	s.tracker.UseWarmer(s.warmCategory)
	return s, nil
}

// warmCategory re-resolves one category from the store and caches the
// result. Anything short of a clean store read leaves the cache untouched.
func (s *Service) warmCategory(ctx context.Context, category schema.Category) error {
	if s.cache == nil {
		return nil
	}
	doc, source := s.loadFromStore(ctx, category)
	if source != "store" {
		return nil
	}
	return s.cache.Set(ctx, category, doc, s.cacheTTL)
}

// GetConfig resolves the current configuration document for a category.
// It never fails toward the caller for store or cache trouble; the worst
// case is a schema-default document. The only error conditions are an
// unknown category and caller cancellation.
func (s *Service) GetConfig(ctx context.Context, category schema.Category, useCache bool) (*schema.Document, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	start := time.Now()

	if useCache && s.cache != nil {
		entry, err := s.cache.Get(ctx, category)
		switch {
		case err == nil:
			s.observeResolve(category, "cache", start)
			return entry.Document, nil
		case errors.Is(err, cache.ErrMiss):
			if s.metrics != nil {
				s.metrics.CacheMissesTotal.WithLabelValues(category.String()).Inc()
			}
		case errors.Is(err, cache.ErrUnavailable):
			// Non-fatal: fall through to the store.
			s.logger.WithError(err).WithField("category", category.String()).Warn("cache read failed")
			if s.metrics != nil {
				s.metrics.CacheErrorsTotal.Inc()
			}
		default:
			s.logger.WithError(err).WithField("category", category.String()).Warn("cache read failed")
		}
	}

	doc, source := s.loadFromStore(ctx, category)
	if err := ctx.Err(); err != nil {
		// Abandoned mid-flight: report cancellation, leave no cache mutation.
		return nil, err
	}
	if source == "store" && s.cache != nil {
		if err := s.cache.Set(ctx, category, doc, s.cacheTTL); err != nil {
			s.logger.WithError(err).WithField("category", category.String()).Warn("cache populate failed")
			if s.metrics != nil {
				s.metrics.CacheErrorsTotal.Inc()
			}
		}
	}
	s.observeResolve(category, source, start)
	return doc, nil
}

// Result carries the outcome of an asynchronous resolution.
type Result struct {
	Document *schema.Document
	Err      error
}

// GetConfigAsync resolves without blocking the caller. The returned channel
// receives exactly one Result. If ctx is cancelled before the populate
// completes, the resolution is abandoned with no cache mutation.
func (s *Service) GetConfigAsync(ctx context.Context, category schema.Category, useCache bool) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		doc, err := s.GetConfig(ctx, category, useCache)
		out <- Result{Document: doc, Err: err}
		close(out)
	}()
	return out
}

// loadFromStore is the single store-read path: read, normalize, validate,
// merge environment overrides, fall back when the row is missing, corrupt
// or the store is down. The returned source labels the outcome for
// metrics: "store", "defaults", "stale-cache".
func (s *Service) loadFromStore(ctx context.Context, category schema.Category) (*schema.Document, string) {
	values, version, err := s.store.ReadCurrent(ctx, category)
	if s.metrics != nil {
		s.metrics.StoreReadsTotal.WithLabelValues(category.String()).Inc()
	}

	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		// Never written: schema defaults at version 0, still cacheable.
		values, version = nil, 0
	case errors.Is(err, storage.ErrCorrupt):
		// Unreadable row: same policy as a row that fails validation.
		s.logger.WithError(err).WithField("category", category.String()).Error("stored config unreadable")
		return s.lastKnownGood(ctx, category)
	default:
		// Store unreachable: serve defaults and flag degraded health.
		s.recordStoreFailure(err)
		s.logger.WithError(err).WithField("category", category.String()).Error("store read failed, serving defaults")
		if s.metrics != nil {
			s.metrics.StoreErrorsTotal.Inc()
			s.metrics.ResolveFallbacks.WithLabelValues(category.String(), "store-unavailable").Inc()
		}
		return s.defaultDocument(category), "defaults"
	}

	normalized := s.normalizer.Normalize(category, values)
	normalized = s.applyOverrides(category, normalized)

	if result := s.validator.Validate(category, normalized); !result.Valid {
		s.logger.WithError(result.Err()).WithField("category", category.String()).Error("stored config failed validation")
		return s.lastKnownGood(ctx, category)
	}

	s.tracker.ObserveVersion(category, version)
	return schema.NewDocument(category, normalized, version), "store"
}

// lastKnownGood handles a corrupt or invalid current row: prefer the last
// known-good cached value, even one past its TTL, over silently rewriting
// history with defaults.
func (s *Service) lastKnownGood(ctx context.Context, category schema.Category) (*schema.Document, string) {
	if s.cache != nil {
		if entry, err := s.cache.GetStale(ctx, category); err == nil {
			if s.metrics != nil {
				s.metrics.ResolveFallbacks.WithLabelValues(category.String(), "stale-cache").Inc()
			}
			return entry.Document, "stale-cache"
		}
	}
	if s.metrics != nil {
		s.metrics.ResolveFallbacks.WithLabelValues(category.String(), "invalid-row").Inc()
	}
	return s.defaultDocument(category), "defaults"
}

func (s *Service) defaultDocument(category schema.Category) *schema.Document {
	values := s.applyOverrides(category, schema.Defaults(category))
	return schema.NewDocument(category, values, 0)
}

// GetAll resolves every category in one call.
func (s *Service) GetAll(ctx context.Context) (map[schema.Category]*schema.Document, error) {
	out := make(map[schema.Category]*schema.Document, len(schema.Categories()))
	for _, category := range schema.Categories() {
		doc, err := s.GetConfig(ctx, category, true)
		if err != nil {
			return nil, err
		}
		out[category] = doc
	}
	return out, nil
}

// Apply validates and persists a write. A payload that fails validation is
// rejected before it reaches the store: no version bump, no audit record.
func (s *Service) Apply(ctx context.Context, category schema.Category, raw schema.Values, actor string) (int64, error) {
	if !category.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	normalized := s.normalizer.Normalize(category, raw)
	if result := s.validator.Validate(category, normalized); !result.Valid {
		return 0, result.Err()
	}

	version, err := s.store.WriteCurrent(ctx, category, normalized, actor)
	if err != nil {
		s.recordStoreFailure(err)
		if s.metrics != nil {
			s.metrics.StoreErrorsTotal.Inc()
		}
		return 0, fmt.Errorf("write rejected: %w", err)
	}
	if s.metrics != nil {
		s.metrics.StoreWritesTotal.WithLabelValues(category.String(), "write").Inc()
	}
	return version, nil
}

// Reset restores a category to schema defaults. The row survives and the
// version still bumps; history shows a delete operation.
func (s *Service) Reset(ctx context.Context, category schema.Category, actor string) (int64, error) {
	if !category.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	version, err := s.store.Reset(ctx, category, actor)
	if err != nil {
		s.recordStoreFailure(err)
		return 0, fmt.Errorf("reset rejected: %w", err)
	}
	if s.metrics != nil {
		s.metrics.StoreWritesTotal.WithLabelValues(category.String(), "reset").Inc()
	}
	return version, nil
}

// WarmCache proactively loads and caches every category, for cold starts
// and administrative cache clears.
func (s *Service) WarmCache(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, category := range schema.Categories() {
		category := category
		g.Go(func() error {
			_, err := s.GetConfig(gctx, category, false)
			return err
		})
	}
	return g.Wait()
}

// InvalidateCategory drops one cache entry.
func (s *Service) InvalidateCategory(ctx context.Context, category schema.Category) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx, category); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.CacheInvalidationsTotal.WithLabelValues(category.String()).Inc()
	}
	return nil
}

// InvalidateAll clears every cache entry.
func (s *Service) InvalidateAll(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateAll(ctx)
}

// RecentAuditRecords returns change history, newest first. A nil category
// spans all categories.
func (s *Service) RecentAuditRecords(ctx context.Context, category *schema.Category, limit int) ([]*audit.Record, error) {
	if s.recorder == nil {
		return nil, nil
	}
	if category != nil && !category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, *category)
	}
	return s.recorder.Recent(ctx, audit.Filter{Category: category, Limit: limit})
}

// CheckHealth probes every dependency. A recent store fallback keeps the
// store marked degraded even when the probe itself succeeds again.
func (s *Service) CheckHealth(ctx context.Context) observability.HealthReport {
	report := s.health.Check(ctx)

	s.signalMu.RLock()
	lastErr, lastFail := s.lastStoreError, s.lastStoreFail
	s.signalMu.RUnlock()

	if lastErr != nil && time.Since(lastFail) < 30*time.Second {
		dep, ok := report.Dependencies["store"]
		if ok && dep.Status == observability.StatusOk {
			dep.Status = observability.StatusDegraded
			dep.Detail = "recent fallback: " + lastErr.Error()
			report.Dependencies["store"] = dep
			if report.Status == observability.StatusOk {
				report.Status = observability.StatusDegraded
			}
		}
	}
	return report
}

func (s *Service) recordStoreFailure(err error) {
	s.signalMu.Lock()
	s.lastStoreError = err
	s.lastStoreFail = time.Now()
	s.signalMu.Unlock()
}

func (s *Service) observeResolve(category schema.Category, source string, start time.Time) {
	if s.metrics == nil {
		return
	}
	if source == "cache" {
		s.metrics.CacheHitsTotal.WithLabelValues(category.String()).Inc()
	}
	s.metrics.ResolveDuration.WithLabelValues(category.String(), source).Observe(time.Since(start).Seconds())
}
