package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ddevcap/newsfront/api"
	"github.com/ddevcap/newsfront/api/handler"
	"github.com/ddevcap/newsfront/backend"
	"github.com/ddevcap/newsfront/cache"
	"github.com/ddevcap/newsfront/config"
	"github.com/ddevcap/newsfront/content"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.RevalidationSecret == "" {
		slog.Warn("REVALIDATION_SECRET is not set; /api/revalidate will answer 500")
	}

	// One content cache for the whole process. The sweep purges expired
	// entries that nobody asks for again.
	contentCache := cache.New(
		cache.WithDefaultTTL(cfg.DefaultCacheTTL()),
		cache.WithMaxSize(cfg.CacheMaxSize),
		cache.WithSweepInterval(cfg.CacheSweepInterval),
	)
	contentCache.Start(context.Background())

	client := backend.NewClient(backend.Options{
		BaseURL:  cfg.CMSAPIURL,
		Timeout:  cfg.CMSRequestTimeout,
		RetryMax: cfg.CMSRetryMax,
	})

	// Start background health checker so /ready reflects CMS reachability.
	hc := backend.NewHealthChecker(client, cfg.HealthCheckInterval)
	hc.Start(context.Background())

	store := content.NewStore(client, contentCache)
	pages := handler.NewPageCache(cfg.PageCacheTTL)

	h, stopRouter := api.NewRouter(cfg, api.Deps{
		Cache:    contentCache,
		Store:    store,
		Enhancer: content.NewEnhancer(store),
		Pages:    pages,
		Health:   hc,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	// Start server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("newsfront listening",
			"addr", cfg.ListenAddr,
			"cms", client.BaseURL(),
			"cache_ttl", cfg.DefaultCacheTTL(),
			"cache_max_size", cfg.CacheMaxSize,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt or SIGTERM (e.g. from container orchestration).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	hc.Stop()
	stopRouter()
	pages.Stop()
	contentCache.Stop()
	slog.Info("server stopped")
}
