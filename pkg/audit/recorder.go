package audit

import "context"

// Recorder appends audit records and serves newest-first history queries.
// Implementations must treat the log as append-only.
type Recorder interface {
	// Record appends one entry. It must not be called twice for the same
	// accepted write.
	Record(ctx context.Context, record *Record) error

	// Recent returns matching records newest first, bounded by the filter
	// limit. The result is finite and the query is restartable.
	Recent(ctx context.Context, filter Filter) ([]*Record, error)
}

// MultiRecorder fans writes out to several recorders. History queries are
// served by the first recorder.
type MultiRecorder struct {
	recorders []Recorder
}

// NewMultiRecorder combines recorders; at least one is required.
func NewMultiRecorder(recorders ...Recorder) *MultiRecorder {
	return &MultiRecorder{recorders: recorders}
}

func (m *MultiRecorder) Record(ctx context.Context, record *Record) error {
	var firstErr error
	for _, r := range m.recorders {
		if err := r.Record(ctx, record); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiRecorder) Recent(ctx context.Context, filter Filter) ([]*Record, error) {
	if len(m.recorders) == 0 {
		return nil, nil
	}
	return m.recorders[0].Recent(ctx, filter)
}
