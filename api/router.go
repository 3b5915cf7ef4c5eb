package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ddevcap/newsfront/api/handler"
	"github.com/ddevcap/newsfront/api/middleware"
	"github.com/ddevcap/newsfront/cache"
	"github.com/ddevcap/newsfront/config"
	"github.com/ddevcap/newsfront/content"
)

// Deps are the long-lived components the HTTP surface serves from.
type Deps struct {
	Cache    *cache.Cache
	Store    *content.Store
	Enhancer *content.Enhancer
	Pages    *handler.PageCache
	Health   handler.ReadinessSource
}

// corsMiddleware allows the configured frontend origins. With no origins
// configured any origin may read the JSON API, without credentials.
func corsMiddleware(cfg config.Config) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Cache-Control", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Type", middleware.RequestIDHeader},
		MaxAge:        24 * time.Hour,
	}
	if len(cfg.CORSOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		allowed := make(map[string]bool, len(cfg.CORSOrigins))
		for _, o := range cfg.CORSOrigins {
			allowed[strings.ToLower(strings.TrimRight(o, "/"))] = true
		}
		cc.AllowOriginFunc = func(origin string) bool {
			return allowed[strings.ToLower(origin)]
		}
	}
	return cors.New(cc)
}

// NewRouter builds the HTTP handler. The returned func stops background
// goroutines owned by the router and must be called on shutdown.
func NewRouter(cfg config.Config, deps Deps) (http.Handler, func()) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(), corsMiddleware(cfg))

	limiter := middleware.NewFailureLimiter(middleware.LimiterConfig{
		MaxAttempts: cfg.RevalidateMaxAttempts,
		Window:      cfg.RevalidateWindow,
		BanDuration: cfg.RevalidateBanDuration,
	})
	limiter.Start(context.Background())

	cacheH := handler.NewCacheHandler(deps.Cache, deps.Pages)
	pageH := handler.NewPageHandler(deps.Store, deps.Enhancer, cfg, deps.Pages)
	systemH := handler.NewSystemHandler(deps.Health)

	apiGroup := r.Group("/api")
	{
		revalidate := apiGroup.Group("/revalidate", limiter.Limit(), middleware.RequireSecret(cfg.RevalidationSecret, limiter))
		revalidate.GET("", cacheH.Revalidate)
		revalidate.POST("", cacheH.Revalidate)

		apiGroup.GET("/cache/stats", cacheH.Stats)

		apiGroup.GET("/pages/home", pageH.Home)
		apiGroup.GET("/categories/:slug", pageH.Category)
		apiGroup.GET("/posts/:slug", pageH.Post)
	}

	// Health probes, for container orchestrators.
	r.GET("/health", systemH.HealthLive)
	r.GET("/ready", systemH.HealthReady)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return r, limiter.Stop
}
