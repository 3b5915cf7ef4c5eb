package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ddevcap/newsfront/cache"
	"github.com/ddevcap/newsfront/content"
)

// CacheHandler exposes the content cache's control surface: selective
// invalidation and a diagnostic snapshot.
type CacheHandler struct {
	cache *cache.Cache
	pages *PageCache
}

func NewCacheHandler(c *cache.Cache, pages *PageCache) *CacheHandler {
	return &CacheHandler{cache: c, pages: pages}
}

// Revalidate handles GET|POST /api/revalidate?secret=...&type=....
// The secret is checked by middleware before this runs. type selects which
// accessors are cleared: posts, categories, tags, pages, authors, media or
// all. Assembled pages are always dropped since any of them may embed the
// cleared data.
func (h *CacheHandler) Revalidate(c *gin.Context) {
	kind := c.Query("type")
	if kind == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing type parameter"})
		return
	}
	ops, ok := content.OperationsFor(kind)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown type: " + kind})
		return
	}

	removed := 0
	if kind == "all" {
		removed = h.cache.Clear("")
	} else {
		for _, op := range ops {
			removed += h.cache.Clear(op)
		}
	}
	h.pages.Purge()

	slog.Info("cache revalidated", "type", kind, "removed", removed, "client_ip", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{
		"revalidated": true,
		"type":        kind,
		"cleared":     ops,
		"removed":     removed,
		"now":         time.Now().UnixMilli(),
	})
}

// Stats handles GET /api/cache/stats.
func (h *CacheHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats())
}
