package audit

import (
	"context"
	"sync"
)

// MemoryRecorder keeps the audit log in process memory. Used in tests and
// embedded deployments without a database.
type MemoryRecorder struct {
	mu      sync.RWMutex
	records []*Record
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) Record(ctx context.Context, record *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.records = append(m.records, record)
	m.mu.Unlock()
	return nil
}

func (m *MemoryRecorder) Recent(ctx context.Context, filter Filter) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Record, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := m.records[i]
		if filter.Category != nil && r.Category != *filter.Category {
			continue
		}
		if filter.Actor != "" && r.Actor != filter.Actor {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Len returns the total number of records ever appended.
func (m *MemoryRecorder) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
