package content

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// defaultEnhanceConcurrency bounds how many posts are joined at once.
const defaultEnhanceConcurrency = 8

// Enhancer joins raw posts with their author, categories and featured media
// through the cached accessors, so a post list costs at most one upstream
// call per distinct author, category and media item.
type Enhancer struct {
	store       *Store
	concurrency int
}

func NewEnhancer(store *Store) *Enhancer {
	return &Enhancer{store: store, concurrency: defaultEnhanceConcurrency}
}

// Enhance returns one EnhancedPost per input post, in input order.
//
// A failed association lookup leaves that association empty rather than
// dropping the post; the page still renders, just without a byline or image.
// Only cancellation of ctx is returned as an error.
func (e *Enhancer) Enhance(ctx context.Context, posts []Post) ([]EnhancedPost, error) {
	out := make([]EnhancedPost, len(posts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, p := range posts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = e.enhance(gctx, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// EnhanceOne enhances a single post.
func (e *Enhancer) EnhanceOne(ctx context.Context, p Post) (EnhancedPost, error) {
	if err := ctx.Err(); err != nil {
		return EnhancedPost{}, err
	}
	return e.enhance(ctx, p), nil
}

func (e *Enhancer) enhance(ctx context.Context, p Post) EnhancedPost {
	ep := EnhancedPost{
		Post:         p,
		TitleText:    PlainText(p.Title.Rendered),
		ExcerptText:  PlainText(p.Excerpt.Rendered),
		CategoryList: make([]Category, 0, len(p.Categories)),
	}

	if p.Author > 0 {
		if a, err := e.store.AuthorByID(ctx, p.Author); err == nil {
			ep.AuthorInfo = &a
		} else {
			logLookupFailure("author", p.ID, p.Author, err)
		}
	}

	for _, id := range p.Categories {
		c, err := e.store.CategoryByID(ctx, id)
		if err != nil {
			logLookupFailure("category", p.ID, id, err)
			continue
		}
		ep.CategoryList = append(ep.CategoryList, c)
	}

	if p.FeaturedMedia > 0 {
		if m, err := e.store.MediaByID(ctx, p.FeaturedMedia); err == nil {
			ep.Media = &m
		} else {
			logLookupFailure("media", p.ID, p.FeaturedMedia, err)
		}
	}

	return ep
}

func logLookupFailure(kind string, postID, refID int, err error) {
	if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		slog.Debug("post association missing", "kind", kind, "post_id", postID, "ref_id", refID, "error", err)
		return
	}
	slog.Warn("post association lookup failed", "kind", kind, "post_id", postID, "ref_id", refID, "error", err)
}
