package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/confsys/sitecfg/pkg/schema"
)

// MemoryStore is an in-process Store used for tests and embedded
// deployments. Writes are serialized per category so the version counter
// behaves like a single conditional update.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[schema.Category]*memoryRow

	subMu       sync.RWMutex
	subscribers []NotificationFunc

	errMu  sync.RWMutex
	forced error
}

type memoryRow struct {
	values  schema.Values
	version int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[schema.Category]*memoryRow)}
}

// SetError forces every subsequent operation to fail with err. Passing nil
// restores normal operation. Used to simulate an unreachable store.
func (s *MemoryStore) SetError(err error) {
	s.errMu.Lock()
	s.forced = err
	s.errMu.Unlock()
}

func (s *MemoryStore) forcedErr() error {
	s.errMu.RLock()
	defer s.errMu.RUnlock()
	if s.forced != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, s.forced)
	}
	return nil
}

func (s *MemoryStore) ReadCurrent(ctx context.Context, category schema.Category) (schema.Values, int64, error) {
	if err := s.forcedErr(); err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[category]
	if !ok {
		return nil, 0, ErrNotFound
	}
	return row.values.Clone(), row.version, nil
}

func (s *MemoryStore) WriteCurrent(ctx context.Context, category schema.Category, values schema.Values, actor string) (int64, error) {
	return s.commit(ctx, category, values, actor, schema.OperationUpdate)
}

func (s *MemoryStore) Reset(ctx context.Context, category schema.Category, actor string) (int64, error) {
	return s.commit(ctx, category, schema.Defaults(category), actor, schema.OperationDelete)
}

func (s *MemoryStore) commit(ctx context.Context, category schema.Category, values schema.Values, actor string, op schema.Operation) (int64, error) {
	if err := s.forcedErr(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !category.Valid() {
		return 0, fmt.Errorf("invalid category %q", category)
	}

	s.mu.Lock()
	row, existed := s.rows[category]
	var previous schema.Values
	if !existed {
		row = &memoryRow{}
		s.rows[category] = row
		if op == schema.OperationUpdate {
			op = schema.OperationCreate
		}
	} else {
		previous = row.values.Clone()
	}
	row.values = values.Clone()
	row.version++
	version := row.version
	s.mu.Unlock()

	s.notify(Notification{
		Category:  category,
		Operation: op,
		Actor:     actor,
		Previous:  previous,
		New:       values.Clone(),
		Version:   version,
		Committed: time.Now().UTC(),
	})
	return version, nil
}

func (s *MemoryStore) Subscribe(fn NotificationFunc) {
	s.subMu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.subMu.Unlock()
}

func (s *MemoryStore) notify(n Notification) {
	s.subMu.RLock()
	subs := make([]NotificationFunc, len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.RUnlock()
	for _, fn := range subs {
		fn(n)
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	if err := s.forcedErr(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *MemoryStore) Close() error { return nil }
