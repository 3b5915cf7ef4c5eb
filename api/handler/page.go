package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/ddevcap/newsfront/config"
	"github.com/ddevcap/newsfront/content"
	"github.com/ddevcap/newsfront/layout"
)

const (
	latestPoolSize   = 20
	categoryPoolSize = 10
	heroCount        = 1
	topStoriesCount  = 4
	sectionCount     = 4
	moreCount        = 5
	latestCount      = 6
	gridCount        = 6
	relatedCount     = 3
)

// statusClientClosedRequest is nginx's non-standard code for a request the
// client abandoned before a response was written.
const statusClientClosedRequest = 499

// Section is one visual block of a page and the posts it renders.
type Section struct {
	Name   string                 `json:"name"`
	Layout string                 `json:"layout"`
	Title  string                 `json:"title,omitempty"`
	Posts  []content.EnhancedPost `json:"posts"`
}

// PageResponse is the JSON body of the page endpoints.
type PageResponse struct {
	Page        string    `json:"page"`
	Sections    []Section `json:"sections"`
	GeneratedAt time.Time `json:"generated_at"`
}

// PostResponse is the JSON body of GET /api/posts/:slug.
type PostResponse struct {
	Post    content.EnhancedPost   `json:"post"`
	Related []content.EnhancedPost `json:"related"`
}

// PageHandler assembles page data from the cached accessors. Each request
// builds its own layout.Manager so no article appears twice on a page.
type PageHandler struct {
	store    *content.Store
	enhancer *content.Enhancer
	cfg      config.Config
	pages    *PageCache
}

func NewPageHandler(store *content.Store, enhancer *content.Enhancer, cfg config.Config, pages *PageCache) *PageHandler {
	return &PageHandler{store: store, enhancer: enhancer, cfg: cfg, pages: pages}
}

// Home handles GET /api/pages/home.
//
// Sections, in claim order: hero (sticky post, else newest), top stories
// (newest with a featured image), one grid per configured category, a "more"
// carousel mixing the category pools, and a latest list backfilled from the
// category pools.
func (h *PageHandler) Home(c *gin.Context) {
	const cacheKey = "home"
	if body, ok := h.pages.get(cacheKey); ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}

	ctx := c.Request.Context()
	latest, err := h.latest(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	categories := h.categoryPools(ctx, h.cfg.HomeCategories)

	m := layout.NewManager()
	var sections []Section
	add := func(s Section) {
		if len(s.Posts) > 0 {
			sections = append(sections, s)
		}
	}

	sticky := filterPosts(latest, func(p content.EnhancedPost) bool { return p.Sticky })
	add(Section{Name: "hero", Layout: "hero", Posts: m.SelectArticles(m.EnsureContent(sticky, latest), heroCount)})

	top := m.SelectArticles(latest, topStoriesCount, layout.WithFilter(hasImage))
	if len(top) == 0 {
		top = m.SelectArticles(latest, topStoriesCount, layout.AllowPartial())
	}
	add(Section{Name: "top-stories", Layout: "grid", Posts: top})

	pools := make([][]content.EnhancedPost, 0, len(categories))
	for _, cp := range categories {
		pools = append(pools, cp.posts)
		add(Section{
			Name:   "category-" + cp.category.Slug,
			Layout: "grid",
			Title:  content.PlainText(cp.category.Name),
			Posts:  m.SelectArticles(cp.posts, sectionCount),
		})
	}

	add(Section{Name: "more", Layout: "carousel", Posts: m.SelectFromMultipleSources(pools, moreCount, layout.AllowPartial())})
	add(Section{Name: "latest", Layout: "list", Posts: m.FillToCount(latest, latestCount, m.CombineUniquePosts(pools...))})

	h.writePage(c, cacheKey, PageResponse{Page: "home", Sections: sections})
}

// Category handles GET /api/categories/:slug.
func (h *PageHandler) Category(c *gin.Context) {
	slug := c.Param("slug")
	cacheKey := "category:" + slug
	if body, ok := h.pages.get(cacheKey); ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}

	ctx := c.Request.Context()
	cat, err := h.store.CategoryBySlug(ctx, slug)
	if err != nil {
		writeError(c, err)
		return
	}
	raw, err := h.store.PostsByCategory(ctx, content.TermQuery{ID: cat.ID, PostQuery: content.PostQuery{PerPage: latestPoolSize}})
	if err != nil {
		writeError(c, err)
		return
	}
	pool, err := h.enhancer.Enhance(ctx, raw)
	if err != nil {
		writeError(c, err)
		return
	}
	// Latest posts only backfill the "more" strip; a failure there is not
	// worth failing the page for.
	latest, err := h.latest(ctx)
	if err != nil {
		slog.Warn("latest posts unavailable for category page", "category", slug, "error", err)
	}

	m := layout.NewManager()
	sections := []Section{}
	for _, s := range []Section{
		{Name: "lead", Layout: "hero", Posts: m.SelectArticles(pool, heroCount)},
		{Name: "grid", Layout: "grid", Posts: m.SelectArticles(pool, gridCount, layout.AllowPartial())},
		{Name: "more", Layout: "list", Posts: m.SelectArticles(m.EnsureContent(pool, latest), gridCount, layout.AllowPartial())},
	} {
		if len(s.Posts) > 0 {
			s.Title = content.PlainText(cat.Name)
			sections = append(sections, s)
		}
	}

	h.writePage(c, cacheKey, PageResponse{Page: "category-" + cat.Slug, Sections: sections})
}

// Post handles GET /api/posts/:slug. Related posts come from the post's
// first category and never include the post itself.
func (h *PageHandler) Post(c *gin.Context) {
	ctx := c.Request.Context()
	raw, err := h.store.PostBySlug(ctx, c.Param("slug"))
	if err != nil {
		writeError(c, err)
		return
	}
	post, err := h.enhancer.EnhanceOne(ctx, raw)
	if err != nil {
		writeError(c, err)
		return
	}

	m := layout.NewManager()
	m.MarkAsUsed(post)

	related := []content.EnhancedPost{}
	if len(raw.Categories) > 0 {
		pool, err := h.store.PostsByCategory(ctx, content.TermQuery{ID: raw.Categories[0], PostQuery: content.PostQuery{PerPage: categoryPoolSize}})
		if err != nil {
			slog.Warn("related posts unavailable", "post_id", raw.ID, "error", err)
		} else if enhanced, err := h.enhancer.Enhance(ctx, pool); err == nil {
			related = m.SelectArticles(enhanced, relatedCount, layout.AllowPartial())
		}
	}

	c.JSON(http.StatusOK, PostResponse{Post: post, Related: related})
}

func (h *PageHandler) latest(ctx context.Context) ([]content.EnhancedPost, error) {
	raw, err := h.store.AllPosts(ctx, content.PostQuery{PerPage: latestPoolSize})
	if err != nil {
		return nil, err
	}
	return h.enhancer.Enhance(ctx, raw)
}

type categoryPool struct {
	category content.Category
	posts    []content.EnhancedPost
}

// categoryPools fetches the posts of each category concurrently, keeping the
// configured order. Categories that cannot be loaded are left out.
func (h *PageHandler) categoryPools(ctx context.Context, slugs []string) []categoryPool {
	results := make([]*categoryPool, len(slugs))
	var g errgroup.Group
	for i, slug := range slugs {
		g.Go(func() error {
			cat, err := h.store.CategoryBySlug(ctx, slug)
			if err != nil {
				slog.Warn("home category unavailable", "category", slug, "error", err)
				return nil
			}
			raw, err := h.store.PostsByCategory(ctx, content.TermQuery{ID: cat.ID, PostQuery: content.PostQuery{PerPage: categoryPoolSize}})
			if err != nil {
				slog.Warn("home category posts unavailable", "category", slug, "error", err)
				return nil
			}
			posts, err := h.enhancer.Enhance(ctx, raw)
			if err != nil {
				return nil
			}
			results[i] = &categoryPool{category: cat, posts: posts}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]categoryPool, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func (h *PageHandler) writePage(c *gin.Context, cacheKey string, resp PageResponse) {
	if resp.Sections == nil {
		resp.Sections = []Section{}
	}
	resp.GeneratedAt = time.Now().UTC()
	body, err := json.Marshal(resp)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode page"})
		return
	}
	h.pages.set(cacheKey, body)
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// writeError maps content errors to HTTP responses: not found → 404, a
// cancelled request → 499, anything from the content API → 502.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, content.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, context.Canceled):
		c.Status(statusClientClosedRequest)
	default:
		slog.Warn("content api error", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "content api unavailable"})
	}
}

func hasImage(p content.EnhancedPost) bool {
	return p.Media != nil && p.Media.Kind() == "image"
}

func filterPosts(posts []content.EnhancedPost, keep func(content.EnhancedPost) bool) []content.EnhancedPost {
	out := []content.EnhancedPost{}
	for _, p := range posts {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
