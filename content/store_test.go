package content_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ddevcap/newsfront/backend"
	"github.com/ddevcap/newsfront/cache"
	"github.com/ddevcap/newsfront/content"
)

var _ = Describe("Store", func() {
	var (
		cms   *fakeCMS
		c     *cache.Cache
		store *content.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		cms = newFakeCMS()
		DeferCleanup(cms.Close)
		c = cache.New()
		store = content.NewStore(backend.NewClient(backend.Options{BaseURL: cms.URL, Timeout: time.Second}), c)
		ctx = context.Background()
	})

	It("fetches posts by category once and serves repeats from the cache", func() {
		cms.serve("/posts?categories=4&per_page=5", []map[string]any{
			{"id": 1, "slug": "a"}, {"id": 2, "slug": "b"},
		})

		q := content.TermQuery{ID: 4, PostQuery: content.PostQuery{PerPage: 5}}
		for i := 0; i < 3; i++ {
			posts, err := store.PostsByCategory(ctx, q)
			Expect(err).NotTo(HaveOccurred())
			Expect(posts).To(HaveLen(2))
			Expect(posts[1].Slug).To(Equal("b"))
		}
		Expect(cms.hitCount("/posts?categories=4&per_page=5")).To(Equal(1))
	})

	It("passes list filters through to the API", func() {
		cms.serve("/posts?offset=3&page=2&per_page=10&search=budget", []map[string]any{{"id": 9}})

		posts, err := store.AllPosts(ctx, content.PostQuery{PerPage: 10, Page: 2, Offset: 3, Search: "budget"})
		Expect(err).NotTo(HaveOccurred())
		Expect(posts).To(HaveLen(1))
	})

	It("returns ErrNotFound for an empty slug lookup and does not cache it", func() {
		cms.serve("/posts?slug=missing", []any{})

		_, err := store.PostBySlug(ctx, "missing")
		Expect(errors.Is(err, content.ErrNotFound)).To(BeTrue())

		_, err = store.PostBySlug(ctx, "missing")
		Expect(errors.Is(err, content.ErrNotFound)).To(BeTrue())
		Expect(cms.hitCount("/posts?slug=missing")).To(Equal(2))
	})

	It("maps a 404 on an id lookup to ErrNotFound", func() {
		_, err := store.AuthorByID(ctx, 404)
		Expect(errors.Is(err, content.ErrNotFound)).To(BeTrue())
	})

	It("propagates upstream failures uncached and recovers", func() {
		cms.fail("/media/7", http.StatusBadRequest)

		_, err := store.MediaByID(ctx, 7)
		var httpErr *backend.HTTPError
		Expect(errors.As(err, &httpErr)).To(BeTrue())
		Expect(httpErr.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(c.Len()).To(BeZero())

		cms.serve("/media/7", map[string]any{"id": 7, "mime_type": "image/jpeg"})
		m, err := store.MediaByID(ctx, 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.ID).To(Equal(7))
		Expect(cms.hitCount("/media/7")).To(Equal(2))
	})

	It("refetches after the operation is cleared", func() {
		cms.serve("/categories?per_page=100", []map[string]any{{"id": 1, "slug": "news"}})
		cms.serve("/tags?per_page=100", []map[string]any{{"id": 2, "slug": "budget"}})

		_, err := store.AllCategories(ctx, struct{}{})
		Expect(err).NotTo(HaveOccurred())
		_, err = store.AllTags(ctx, struct{}{})
		Expect(err).NotTo(HaveOccurred())

		c.Clear(content.OpAllCategories)

		_, _ = store.AllCategories(ctx, struct{}{})
		_, _ = store.AllTags(ctx, struct{}{})
		Expect(cms.hitCount("/categories?per_page=100")).To(Equal(2))
		Expect(cms.hitCount("/tags?per_page=100")).To(Equal(1))
	})

	It("resolves single resources by slug", func() {
		cms.serve("/categories?slug=culture", []map[string]any{{"id": 3, "slug": "culture", "name": "Culture"}})
		cms.serve("/pages?slug=about", []map[string]any{{"id": 11, "slug": "about"}})
		cms.serve("/tags?slug=usa", []map[string]any{{"id": 12, "slug": "usa"}})

		cat, err := store.CategoryBySlug(ctx, "culture")
		Expect(err).NotTo(HaveOccurred())
		Expect(cat.Name).To(Equal("Culture"))

		page, err := store.PageBySlug(ctx, "about")
		Expect(err).NotTo(HaveOccurred())
		Expect(page.ID).To(Equal(11))

		tag, err := store.TagBySlug(ctx, "usa")
		Expect(err).NotTo(HaveOccurred())
		Expect(tag.ID).To(Equal(12))
	})
})

var _ = Describe("OperationsFor", func() {
	It("maps invalidation types to accessor operations", func() {
		ops, ok := content.OperationsFor("media")
		Expect(ok).To(BeTrue())
		Expect(ops).To(ConsistOf(content.OpMediaByID))

		ops, ok = content.OperationsFor("posts")
		Expect(ok).To(BeTrue())
		Expect(ops).To(ContainElements(content.OpAllPosts, content.OpPostsByCategory, content.OpPostBySlug))
	})

	It("covers every operation for all", func() {
		ops, ok := content.OperationsFor("all")
		Expect(ok).To(BeTrue())
		Expect(ops).To(HaveLen(16))
	})

	It("rejects unknown types", func() {
		_, ok := content.OperationsFor("comments")
		Expect(ok).To(BeFalse())
	})
})
