package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/confsys/sitecfg/pkg/schema"
)

// LRUCache implements Cache in-process on a bounded LRU. It serves as the
// cache layer for embedded deployments and as a fallback when Redis is not
// configured. Entries are copied on read so callers can't mutate shared
// state.
type LRUCache struct {
	entries  *lru.Cache[string, *Entry]
	versions VersionSource
}

// NewLRUCache creates an in-process cache holding up to size entries.
func NewLRUCache(size int, versions VersionSource) (*LRUCache, error) {
	if size <= 0 {
		size = len(schema.Categories())
	}
	entries, err := lru.New[string, *Entry](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{entries: entries, versions: versions}, nil
}

func (c *LRUCache) Get(ctx context.Context, category schema.Category) (*Entry, error) {
	entry, err := c.GetStale(ctx, category)
	if err != nil {
		return nil, err
	}
	if err := validate(entry, c.versions, time.Now()); err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *LRUCache) GetStale(ctx context.Context, category schema.Category) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, ok := c.entries.Get(string(category))
	if !ok {
		return nil, ErrMiss
	}
	doc := *entry.Document
	doc.Values = entry.Document.Values.Clone()
	return &Entry{Document: &doc, StoredVersion: entry.StoredVersion, ExpiresAt: entry.ExpiresAt}, nil
}

func (c *LRUCache) Set(ctx context.Context, category schema.Category, doc *schema.Document, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	copied := *doc
	copied.Values = doc.Values.Clone()
	c.entries.Add(string(category), &Entry{
		Document:      &copied,
		StoredVersion: doc.Version,
		ExpiresAt:     time.Now().Add(ttl),
	})
	return nil
}

func (c *LRUCache) Invalidate(ctx context.Context, category schema.Category) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.entries.Remove(string(category))
	return nil
}

func (c *LRUCache) InvalidateAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.entries.Purge()
	return nil
}

func (c *LRUCache) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (c *LRUCache) Close() error { return nil }
