package observability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/sync/errgroup"
)

// Probe statuses. One failing probe marks that dependency only; the
// checker itself never fails.
const (
	StatusOk          = "ok"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// DependencyStatus reports the health of a single dependency.
type DependencyStatus struct {
	Status    string        `json:"status"`
	Detail    string        `json:"detail,omitempty"`
	Latency   time.Duration `json:"latency_ms"`
	CheckedAt time.Time     `json:"checked_at"`
}

// HealthReport is the ephemeral result of one health check pass.
type HealthReport struct {
	Status       string                      `json:"status"`
	CheckedAt    time.Time                   `json:"checked_at"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
}

// Pinger is the reachability probe implemented by the store and the cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker runs independent, timeout-bounded probes against the
// engine's dependencies without mutating any state.
type HealthChecker struct {
	store        Pinger
	cache        Pinger
	scratchDir   string
	probeTimeout time.Duration

	// memoryDegradedPct marks memory degraded above this used percentage.
	memoryDegradedPct float64
}

// NewHealthChecker creates a health checker. Either probe target may be
// nil, in which case that dependency is skipped. scratchDir defaults to the
// OS temp dir.
func NewHealthChecker(store, cache Pinger, scratchDir string) *HealthChecker {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &HealthChecker{
		store:             store,
		cache:             cache,
		scratchDir:        scratchDir,
		probeTimeout:      2 * time.Second,
		memoryDegradedPct: 90,
	}
}

// Check probes every dependency in parallel. A timed-out probe is reported
// unavailable, never left pending; this method itself never returns an
// error.
func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:       StatusOk,
		CheckedAt:    time.Now().UTC(),
		Dependencies: make(map[string]DependencyStatus),
	}

	type result struct {
		name   string
		status DependencyStatus
	}
	results := make(chan result, 4)

	g, gctx := errgroup.WithContext(ctx)
	probe := func(name string, fn func(context.Context) DependencyStatus) {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, h.probeTimeout)
			defer cancel()
			results <- result{name: name, status: fn(pctx)}
			return nil
		})
	}

	if h.store != nil {
		probe("store", func(ctx context.Context) DependencyStatus {
			return h.pingProbe(ctx, h.store)
		})
	}
	if h.cache != nil {
		probe("cache", func(ctx context.Context) DependencyStatus {
			return h.pingProbe(ctx, h.cache)
		})
	}
	probe("filesystem", h.filesystemProbe)
	probe("memory", h.memoryProbe)

	g.Wait()
	close(results)

	for r := range results {
		report.Dependencies[r.name] = r.status
		switch r.status.Status {
		case StatusUnavailable:
			// The cache is optional; losing it degrades instead of failing.
			if r.name == "cache" {
				if report.Status == StatusOk {
					report.Status = StatusDegraded
				}
			} else {
				report.Status = StatusUnavailable
			}
		case StatusDegraded:
			if report.Status == StatusOk {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

func (h *HealthChecker) pingProbe(ctx context.Context, target Pinger) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{Status: StatusOk, CheckedAt: start.UTC()}

	done := make(chan error, 1)
	go func() { done <- target.Ping(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	status.Latency = time.Since(start)
	if err != nil {
		status.Status = StatusUnavailable
		status.Detail = err.Error()
	}
	return status
}

// filesystemProbe verifies the scratch directory is writable.
func (h *HealthChecker) filesystemProbe(ctx context.Context) (status DependencyStatus) {
	start := time.Now()
	status = DependencyStatus{Status: StatusOk, CheckedAt: start.UTC()}
	defer func() { status.Latency = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		status.Status = StatusUnavailable
		status.Detail = err.Error()
		return status
	}

	path := filepath.Join(h.scratchDir, fmt.Sprintf(".sitecfg-health-%d", time.Now().UnixNano()))
	if err := os.WriteFile(path, []byte("ok"), 0o600); err != nil {
		status.Status = StatusUnavailable
		status.Detail = err.Error()
		return status
	}
	os.Remove(path)
	return status
}

// memoryProbe reports degraded above the configured used-memory threshold.
func (h *HealthChecker) memoryProbe(ctx context.Context) (status DependencyStatus) {
	start := time.Now()
	status = DependencyStatus{Status: StatusOk, CheckedAt: start.UTC()}
	defer func() { status.Latency = time.Since(start) }()

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		status.Status = StatusUnavailable
		status.Detail = err.Error()
		return status
	}
	status.Detail = fmt.Sprintf("%.1f%% used", vm.UsedPercent)
	if vm.UsedPercent >= h.memoryDegradedPct {
		status.Status = StatusDegraded
	}
	return status
}
