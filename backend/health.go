package backend

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// Default interval between health checks.
	defaultHealthInterval = 30 * time.Second
	// Timeout for a single health-check ping.
	healthCheckTimeout = 5 * time.Second
	// Consecutive failed pings before the CMS is reported unavailable.
	unavailableAfter = 2
)

// Pinger is anything that can report whether the content API is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus is a snapshot of the content API's health for /ready.
type HealthStatus struct {
	Available    bool      `json:"available"`
	LastChecked  time.Time `json:"last_checked"`
	LastError    string    `json:"last_error,omitempty"`
	FailureCount int       `json:"failure_count"`
}

// HealthChecker periodically pings the content API and keeps the latest
// availability in memory. It does not gate requests; cached content keeps
// being served while the CMS is down.
type HealthChecker struct {
	target   Pinger
	interval time.Duration

	mu     sync.RWMutex
	status HealthStatus

	cancel context.CancelFunc
	done   chan struct{}
}

// NewHealthChecker creates a health checker for target.
// Call Start() to begin background checking.
func NewHealthChecker(target Pinger, interval time.Duration) *HealthChecker {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &HealthChecker{
		target:   target,
		interval: interval,
		// Unknown = assume available until the first check.
		status: HealthStatus{Available: true},
		done:   make(chan struct{}),
	}
}

// Start begins the background health-check loop. It runs an immediate check
// on startup, then repeats at the configured interval. Safe to call once.
func (hc *HealthChecker) Start(ctx context.Context) {
	ctx, hc.cancel = context.WithCancel(ctx)

	go func() {
		defer close(hc.done)

		hc.check(ctx)

		ticker := time.NewTicker(hc.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hc.check(ctx)
			}
		}
	}()
}

// Stop signals the health-check loop to stop and waits for it to finish.
func (hc *HealthChecker) Stop() {
	if hc.cancel != nil {
		hc.cancel()
		<-hc.done
	}
}

// Status returns a copy of the current health status.
func (hc *HealthChecker) Status() HealthStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.status
}

func (hc *HealthChecker) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	hc.recordResult(hc.target.Ping(pingCtx))
}

// recordResult marks the CMS unavailable after unavailableAfter consecutive
// failures and available again on the first success, so a single dropped
// packet does not flap readiness.
func (hc *HealthChecker) recordResult(err error) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	s := &hc.status
	s.LastChecked = time.Now()

	if err == nil {
		if !s.Available {
			slog.Info("content api came back online")
		}
		s.Available = true
		s.FailureCount = 0
		s.LastError = ""
		return
	}

	s.FailureCount++
	s.LastError = err.Error()
	if s.FailureCount >= unavailableAfter && s.Available {
		slog.Warn("content api marked unavailable",
			"failures", s.FailureCount, "error", err)
		s.Available = false
	}
}
