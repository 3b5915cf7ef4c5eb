// Package content exposes the CMS resources through cached accessors and
// joins posts with their author, categories and featured media.
package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ddevcap/newsfront/backend"
	"github.com/ddevcap/newsfront/cache"
)

// ErrNotFound is returned when the content API legitimately has no match
// for a singular lookup.
var ErrNotFound = errors.New("content: not found")

// TTLs per resource class. Data that changes rarely is kept longer.
const (
	PostTTL     = 30 * time.Minute
	TaxonomyTTL = 60 * time.Minute
	PageTTL     = 60 * time.Minute
	AuthorTTL   = 120 * time.Minute
	MediaTTL    = 120 * time.Minute
)

// Operation names. They double as cache key prefixes, so clearing one
// removes every parameterization of that accessor.
const (
	OpAllPosts        = "getAllPosts"
	OpPostByID        = "getPostById"
	OpPostBySlug      = "getPostBySlug"
	OpPostsByCategory = "getPostsByCategory"
	OpPostsByTag      = "getPostsByTag"
	OpPostsByAuthor   = "getPostsByAuthor"
	OpAllCategories   = "getAllCategories"
	OpCategoryByID    = "getCategoryById"
	OpCategoryBySlug  = "getCategoryBySlug"
	OpAllTags         = "getAllTags"
	OpTagBySlug       = "getTagBySlug"
	OpAllPages        = "getAllPages"
	OpPageBySlug      = "getPageBySlug"
	OpAllAuthors      = "getAllAuthors"
	OpAuthorByID      = "getAuthorById"
	OpMediaByID       = "getMediaById"
)

// taxonomyListPerPage is the page size for the "all" list accessors. The
// API caps per_page at 100.
const taxonomyListPerPage = 100

var operationsByType = map[string][]string{
	"posts":      {OpAllPosts, OpPostByID, OpPostBySlug, OpPostsByCategory, OpPostsByTag, OpPostsByAuthor},
	"categories": {OpAllCategories, OpCategoryByID, OpCategoryBySlug},
	"tags":       {OpAllTags, OpTagBySlug},
	"pages":      {OpAllPages, OpPageBySlug},
	"authors":    {OpAllAuthors, OpAuthorByID},
	"media":      {OpMediaByID},
}

// OperationsFor returns the accessor operation names belonging to an
// invalidation type (posts, categories, tags, pages, authors, media, all).
func OperationsFor(kind string) ([]string, bool) {
	if kind == "all" {
		var all []string
		for _, k := range []string{"posts", "categories", "tags", "pages", "authors", "media"} {
			all = append(all, operationsByType[k]...)
		}
		return all, true
	}
	ops, ok := operationsByType[kind]
	return ops, ok
}

// Fetcher is the raw content API transport. *backend.Client implements it.
type Fetcher interface {
	GetJSON(ctx context.Context, resource string, query url.Values, out any) error
}

// Store holds one cached accessor per content API resource. Callers use the
// function fields like plain fetches and never see the cache.
type Store struct {
	AllPosts        cache.Func[PostQuery, []Post]
	PostByID        cache.Func[int, Post]
	PostBySlug      cache.Func[string, Post]
	PostsByCategory cache.Func[TermQuery, []Post]
	PostsByTag      cache.Func[TermQuery, []Post]
	PostsByAuthor   cache.Func[TermQuery, []Post]

	AllCategories  cache.Func[struct{}, []Category]
	CategoryByID   cache.Func[int, Category]
	CategoryBySlug cache.Func[string, Category]
	AllTags        cache.Func[struct{}, []Tag]
	TagBySlug      cache.Func[string, Tag]
	AllPages       cache.Func[struct{}, []Page]
	PageBySlug     cache.Func[string, Page]

	AllAuthors cache.Func[struct{}, []Author]
	AuthorByID cache.Func[int, Author]
	MediaByID  cache.Func[int, Media]
}

func NewStore(api Fetcher, c *cache.Cache) *Store {
	raw := rawFetcher{api: api}
	return &Store{
		AllPosts:        cache.Wrap(c, OpAllPosts, PostTTL, raw.allPosts),
		PostByID:        cache.Wrap(c, OpPostByID, PostTTL, byID[Post](raw, "posts")),
		PostBySlug:      cache.Wrap(c, OpPostBySlug, PostTTL, bySlug[Post](raw, "posts")),
		PostsByCategory: cache.Wrap(c, OpPostsByCategory, PostTTL, raw.postsBy("categories")),
		PostsByTag:      cache.Wrap(c, OpPostsByTag, PostTTL, raw.postsBy("tags")),
		PostsByAuthor:   cache.Wrap(c, OpPostsByAuthor, PostTTL, raw.postsBy("author")),

		AllCategories:  cache.Wrap(c, OpAllCategories, TaxonomyTTL, listOf[Category](raw, "categories", taxonomyListPerPage)),
		CategoryByID:   cache.Wrap(c, OpCategoryByID, TaxonomyTTL, byID[Category](raw, "categories")),
		CategoryBySlug: cache.Wrap(c, OpCategoryBySlug, TaxonomyTTL, bySlug[Category](raw, "categories")),
		AllTags:        cache.Wrap(c, OpAllTags, TaxonomyTTL, listOf[Tag](raw, "tags", taxonomyListPerPage)),
		TagBySlug:      cache.Wrap(c, OpTagBySlug, TaxonomyTTL, bySlug[Tag](raw, "tags")),
		AllPages:       cache.Wrap(c, OpAllPages, PageTTL, listOf[Page](raw, "pages", 0)),
		PageBySlug:     cache.Wrap(c, OpPageBySlug, PageTTL, bySlug[Page](raw, "pages")),

		AllAuthors: cache.Wrap(c, OpAllAuthors, AuthorTTL, listOf[Author](raw, "users", taxonomyListPerPage)),
		AuthorByID: cache.Wrap(c, OpAuthorByID, AuthorTTL, byID[Author](raw, "users")),
		MediaByID:  cache.Wrap(c, OpMediaByID, MediaTTL, byID[Media](raw, "media")),
	}
}

// rawFetcher performs the uncached content API calls.
type rawFetcher struct {
	api Fetcher
}

func (r rawFetcher) allPosts(ctx context.Context, q PostQuery) ([]Post, error) {
	var posts []Post
	if err := r.api.GetJSON(ctx, "posts", q.values(), &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// postsBy returns a fetch for posts filtered by the given query field
// (categories, tags or author).
func (r rawFetcher) postsBy(field string) cache.Func[TermQuery, []Post] {
	return func(ctx context.Context, q TermQuery) ([]Post, error) {
		v := q.values()
		v.Set(field, strconv.Itoa(q.ID))
		var posts []Post
		if err := r.api.GetJSON(ctx, "posts", v, &posts); err != nil {
			return nil, err
		}
		return posts, nil
	}
}

func byID[T any](r rawFetcher, resource string) cache.Func[int, T] {
	return func(ctx context.Context, id int) (T, error) {
		var out T
		err := r.api.GetJSON(ctx, resource+"/"+strconv.Itoa(id), nil, &out)
		if err != nil {
			var httpErr *backend.HTTPError
			if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
				return out, fmt.Errorf("%s %d: %w", resource, id, ErrNotFound)
			}
			return out, err
		}
		return out, nil
	}
}

// bySlug looks a resource up by slug. The API answers with an array, empty
// when nothing matches.
func bySlug[T any](r rawFetcher, resource string) cache.Func[string, T] {
	return func(ctx context.Context, slug string) (T, error) {
		var zero T
		var found []T
		if err := r.api.GetJSON(ctx, resource, url.Values{"slug": {slug}}, &found); err != nil {
			return zero, err
		}
		if len(found) == 0 {
			return zero, fmt.Errorf("%s %q: %w", resource, slug, ErrNotFound)
		}
		return found[0], nil
	}
}

func listOf[T any](r rawFetcher, resource string, perPage int) cache.Func[struct{}, []T] {
	return func(ctx context.Context, _ struct{}) ([]T, error) {
		var q url.Values
		if perPage > 0 {
			q = url.Values{"per_page": {strconv.Itoa(perPage)}}
		}
		var out []T
		if err := r.api.GetJSON(ctx, resource, q, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

func (q PostQuery) values() url.Values {
	v := url.Values{}
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}
