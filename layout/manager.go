// Package layout hands out articles to the sections of one rendered page so
// that no article appears twice.
//
// Page assembly calls the Manager in section order, top to bottom. Earlier
// sections have first claim on shared pools: a post that matches both the
// "usa" and the "economy" query goes to whichever section asks first and is
// skipped by the other.
package layout

import "github.com/ddevcap/newsfront/content"

// Manager tracks which articles have been placed on one page. Build a new
// one per render with NewManager; it is not safe for concurrent use and must
// not be shared between requests.
type Manager struct {
	used map[int]struct{}
}

func NewManager() *Manager {
	return &Manager{used: make(map[int]struct{})}
}

type selectConfig struct {
	allowPartial bool
	filter       func(content.EnhancedPost) bool
}

// SelectOption tunes SelectArticles.
type SelectOption func(*selectConfig)

// AllowPartial lets SelectArticles return fewer than count posts when the
// pool runs short. Without it a short pool yields nothing.
func AllowPartial() SelectOption {
	return func(c *selectConfig) { c.allowPartial = true }
}

// WithFilter restricts selection to posts for which keep returns true.
func WithFilter(keep func(content.EnhancedPost) bool) SelectOption {
	return func(c *selectConfig) { c.filter = keep }
}

// SelectArticles takes the first count unused posts from pool (in pool
// order), marks them used and returns them. If fewer than count are
// available the result is empty, unless AllowPartial is given, in which case
// whatever is available is taken. A section either gets its full complement
// or renders nothing.
func (m *Manager) SelectArticles(pool []content.EnhancedPost, count int, opts ...SelectOption) []content.EnhancedPost {
	var cfg selectConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if count <= 0 {
		return []content.EnhancedPost{}
	}

	available := make([]content.EnhancedPost, 0, count)
	seen := make(map[int]struct{}, count)
	for _, p := range pool {
		if len(available) == count {
			break
		}
		if m.IsUsed(p.ID) {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		if cfg.filter != nil && !cfg.filter(p) {
			continue
		}
		seen[p.ID] = struct{}{}
		available = append(available, p)
	}

	if len(available) < count && !cfg.allowPartial {
		return []content.EnhancedPost{}
	}
	m.MarkAsUsed(available...)
	return available
}

// CombineUniquePosts merges lists in order, keeping the first occurrence of
// each post and leaving out posts already used. Nothing is marked used.
func (m *Manager) CombineUniquePosts(lists ...[]content.EnhancedPost) []content.EnhancedPost {
	out := []content.EnhancedPost{}
	seen := make(map[int]struct{})
	for _, l := range lists {
		for _, p := range l {
			if m.IsUsed(p.ID) {
				continue
			}
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// SelectFromMultipleSources combines sources with CombineUniquePosts and
// selects from the result.
func (m *Manager) SelectFromMultipleSources(sources [][]content.EnhancedPost, count int, opts ...SelectOption) []content.EnhancedPost {
	return m.SelectArticles(m.CombineUniquePosts(sources...), count, opts...)
}

// EnsureContent returns the unused part of primary if it has any, otherwise
// the unused part of the first fallback that has any, otherwise an empty
// slice. Nothing is marked used; follow up with SelectArticles.
func (m *Manager) EnsureContent(primary []content.EnhancedPost, fallbacks ...[]content.EnhancedPost) []content.EnhancedPost {
	if avail := m.Available(primary); len(avail) > 0 {
		return avail
	}
	for _, fb := range fallbacks {
		if avail := m.Available(fb); len(avail) > 0 {
			return avail
		}
	}
	return []content.EnhancedPost{}
}

// FillToCount takes up to count unused posts from pool and tops up from
// fallback when pool runs short. Every returned post is marked used. The
// result is shorter than count only when both pools together cannot supply
// enough.
func (m *Manager) FillToCount(pool []content.EnhancedPost, count int, fallback []content.EnhancedPost) []content.EnhancedPost {
	if count <= 0 {
		return []content.EnhancedPost{}
	}
	out := m.SelectArticles(pool, count, AllowPartial())
	if missing := count - len(out); missing > 0 {
		out = append(out, m.SelectArticles(fallback, missing, AllowPartial())...)
	}
	return out
}

// MarkAsUsed records posts as placed on the page.
func (m *Manager) MarkAsUsed(posts ...content.EnhancedPost) {
	for _, p := range posts {
		m.used[p.ID] = struct{}{}
	}
}

// IsUsed reports whether the post with id has been placed.
func (m *Manager) IsUsed(id int) bool {
	_, ok := m.used[id]
	return ok
}

// UsedCount returns how many distinct posts have been placed.
func (m *Manager) UsedCount() int {
	return len(m.used)
}

// Available returns the posts of pool that have not been placed, in order.
func (m *Manager) Available(pool []content.EnhancedPost) []content.EnhancedPost {
	out := make([]content.EnhancedPost, 0, len(pool))
	for _, p := range pool {
		if !m.IsUsed(p.ID) {
			out = append(out, p)
		}
	}
	return out
}

// Reset forgets every placement. Pages normally build a fresh Manager
// instead.
func (m *Manager) Reset() {
	m.used = make(map[int]struct{})
}
