package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPinger fails with err when set.
type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(ctx context.Context) error { return p.err }

func TestHealthCheckAllHealthy(t *testing.T) {
	checker := NewHealthChecker(&stubPinger{}, &stubPinger{}, t.TempDir())

	report := checker.Check(context.Background())

	require.Contains(t, report.Dependencies, "store")
	require.Contains(t, report.Dependencies, "cache")
	require.Contains(t, report.Dependencies, "filesystem")
	require.Contains(t, report.Dependencies, "memory")
	assert.Equal(t, StatusOk, report.Dependencies["store"].Status)
	assert.Equal(t, StatusOk, report.Dependencies["cache"].Status)
	assert.Equal(t, StatusOk, report.Dependencies["filesystem"].Status)
	assert.False(t, report.CheckedAt.IsZero())
}

func TestHealthCheckStoreDownIsUnavailable(t *testing.T) {
	checker := NewHealthChecker(&stubPinger{err: errors.New("refused")}, &stubPinger{}, t.TempDir())

	report := checker.Check(context.Background())

	assert.Equal(t, StatusUnavailable, report.Status)
	assert.Equal(t, StatusUnavailable, report.Dependencies["store"].Status)
	assert.Equal(t, "refused", report.Dependencies["store"].Detail)
}

func TestHealthCheckCacheDownOnlyDegrades(t *testing.T) {
	checker := NewHealthChecker(&stubPinger{}, &stubPinger{err: errors.New("refused")}, t.TempDir())

	report := checker.Check(context.Background())

	// The cache is an optional dependency: reads fall through to the store.
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusUnavailable, report.Dependencies["cache"].Status)
	assert.Equal(t, StatusOk, report.Dependencies["store"].Status)
}

func TestHealthCheckSkipsNilProbes(t *testing.T) {
	checker := NewHealthChecker(nil, nil, t.TempDir())

	report := checker.Check(context.Background())

	assert.NotContains(t, report.Dependencies, "store")
	assert.NotContains(t, report.Dependencies, "cache")
	assert.Contains(t, report.Dependencies, "filesystem")
}

func TestHealthCheckUnwritableScratchDir(t *testing.T) {
	checker := NewHealthChecker(&stubPinger{}, nil, "/nonexistent/path")

	report := checker.Check(context.Background())

	assert.Equal(t, StatusUnavailable, report.Status)
	assert.Equal(t, StatusUnavailable, report.Dependencies["filesystem"].Status)
}
