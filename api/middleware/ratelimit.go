package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// defaultSweepInterval is how often Start drops stale per-IP records.
const defaultSweepInterval = 5 * time.Minute

// ipEntry tracks failed secret attempts for a single IP.
type ipEntry struct {
	attempts    int
	windowEnd   time.Time // when the current window expires
	bannedUntil time.Time
}

// stale reports whether neither the window nor the ban is still running.
func (e *ipEntry) stale(now time.Time) bool {
	return now.After(e.bannedUntil) && now.After(e.windowEnd)
}

// LimiterConfig configures a FailureLimiter.
type LimiterConfig struct {
	// MaxAttempts is the number of failures allowed per IP within Window.
	// 0 disables the limiter.
	MaxAttempts int
	Window      time.Duration
	BanDuration time.Duration
	// SweepInterval is how often stale records are dropped once Start has
	// been called. Defaults to 5 minutes.
	SweepInterval time.Duration
}

// FailureLimiter blocks IPs that fail authentication too often. It guards
// the revalidation endpoint against secret guessing.
type FailureLimiter struct {
	cfg LimiterConfig

	mu      sync.Mutex
	entries map[string]*ipEntry

	cancel context.CancelFunc
	done   chan struct{}
}

func NewFailureLimiter(cfg LimiterConfig) *FailureLimiter {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	return &FailureLimiter{
		cfg:     cfg,
		entries: make(map[string]*ipEntry),
	}
}

// Start begins the loop that drops stale per-IP records so a scan of random
// source addresses cannot grow the table without bound. Safe to call once.
func (l *FailureLimiter) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(l.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.Sweep(); n > 0 {
					slog.Debug("stale revalidation limiter records dropped", "count", n, "tracked", l.Tracked())
				}
			}
		}
	}()
}

// Stop ends the sweep loop and waits for it. A no-op if Start was never called.
func (l *FailureLimiter) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
}

// Sweep drops records whose window and ban have both run out and returns
// how many were dropped.
func (l *FailureLimiter) Sweep() int {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for ip, e := range l.entries {
		if e.stale(now) {
			delete(l.entries, ip)
			removed++
		}
	}
	return removed
}

// Tracked returns how many IPs currently have a failure record.
func (l *FailureLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Allow reports whether ip may attempt authentication.
func (l *FailureLimiter) Allow(ip string) bool {
	if l.cfg.MaxAttempts <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[ip]
	if !ok {
		return true
	}
	return !time.Now().Before(e.bannedUntil)
}

// RecordFailure counts a failed attempt and bans ip once the threshold is
// reached within the window.
func (l *FailureLimiter) RecordFailure(ip string) {
	if l.cfg.MaxAttempts <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	e, ok := l.entries[ip]
	if !ok || now.After(e.windowEnd) {
		e = &ipEntry{windowEnd: now.Add(l.cfg.Window)}
		l.entries[ip] = e
	}
	e.attempts++
	if e.attempts >= l.cfg.MaxAttempts {
		e.bannedUntil = now.Add(l.cfg.BanDuration)
	}
}

// RecordSuccess clears the failure count for ip.
func (l *FailureLimiter) RecordSuccess(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, ip)
}

// Limit rejects requests from banned IPs with 429.
func (l *FailureLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many failed attempts. Please try again later.",
			})
			return
		}
		c.Next()
	}
}
