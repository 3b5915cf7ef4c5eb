package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// fallbackCacheTTL is used when CACHE_TTL is zero or negative.
const fallbackCacheTTL = 30 * time.Minute

type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":3000"`
	// CMSAPIURL is the base URL of the headless CMS content API, e.g.
	// "https://cms.example.com/wp-json/wp/v2". Resource paths are appended to it.
	CMSAPIURL string `env:"CMS_API_URL" envDefault:"http://localhost:8080/wp-json/wp/v2"`
	// CMSRequestTimeout bounds a single upstream request attempt.
	CMSRequestTimeout time.Duration `env:"CMS_REQUEST_TIMEOUT" envDefault:"10s"`
	// CMSRetryMax is how many times a failed upstream request is retried
	// (connection errors and 5xx responses only).
	CMSRetryMax int `env:"CMS_RETRY_MAX" envDefault:"2"`
	// CacheTTL is the default content cache TTL in milliseconds. Accessors
	// with their own resource-class TTL ignore it.
	CacheTTL int64 `env:"CACHE_TTL" envDefault:"1800000"`
	// CacheMaxSize is the maximum number of entries held by the content
	// cache. The oldest-inserted entry is evicted when the bound is reached.
	CacheMaxSize int `env:"CACHE_MAX_SIZE" envDefault:"1000"`
	// CacheSweepInterval is how often expired cache entries are purged
	// proactively.
	CacheSweepInterval time.Duration `env:"CACHE_SWEEP_INTERVAL" envDefault:"5m"`
	// PageCacheTTL is how long an assembled page response is reused before
	// sections are recomputed. Set to 0 to disable.
	PageCacheTTL time.Duration `env:"PAGE_CACHE_TTL" envDefault:"30s"`
	// RevalidationSecret is the shared secret required by the cache
	// invalidation endpoint. When unset the endpoint answers 500.
	RevalidationSecret string `env:"REVALIDATION_SECRET"`
	// RevalidateMaxAttempts is the number of wrong secrets accepted per IP
	// within RevalidateWindow before the IP is temporarily blocked.
	// 0 disables the limiter.
	RevalidateMaxAttempts int `env:"REVALIDATE_MAX_ATTEMPTS" envDefault:"10"`
	// RevalidateWindow is the window for counting wrong secrets.
	RevalidateWindow time.Duration `env:"REVALIDATE_WINDOW" envDefault:"15m"`
	// RevalidateBanDuration is how long an IP is blocked after exceeding
	// RevalidateMaxAttempts.
	RevalidateBanDuration time.Duration `env:"REVALIDATE_BAN_DURATION" envDefault:"15m"`
	// HomeCategories lists the category slugs (comma-separated) that get
	// their own section on the home page, in display order.
	HomeCategories []string `env:"HOME_CATEGORIES" envSeparator:"," envDefault:"news,culture,economy"`
	// HealthCheckInterval is how often the CMS is pinged to report readiness.
	HealthCheckInterval time.Duration `env:"HEALTH_CHECK_INTERVAL" envDefault:"30s"`
	// CORSOrigins is the set of origins (comma-separated) allowed to call the
	// JSON API from a browser. Empty allows any origin without credentials.
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
	// ShutdownTimeout is the maximum duration to wait for in-flight requests
	// to complete during graceful shutdown.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// DefaultCacheTTL returns CacheTTL as a duration.
func (c Config) DefaultCacheTTL() time.Duration {
	if c.CacheTTL <= 0 {
		return fallbackCacheTTL
	}
	return time.Duration(c.CacheTTL) * time.Millisecond
}

// Load parses configuration from environment variables.
// Returns an error if a value cannot be parsed into the expected type.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
