package content

import (
	"encoding/json"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Rendered is the CMS wrapper around HTML fields ({"rendered": "..."}).
type Rendered struct {
	Rendered string `json:"rendered"`
}

// Post is a raw post record as returned by the content API.
type Post struct {
	ID            int      `json:"id"`
	Slug          string   `json:"slug"`
	Date          string   `json:"date"`
	Modified      string   `json:"modified,omitempty"`
	Link          string   `json:"link,omitempty"`
	Title         Rendered `json:"title"`
	Excerpt       Rendered `json:"excerpt"`
	Content       Rendered `json:"content"`
	Author        int      `json:"author"`
	FeaturedMedia int      `json:"featured_media"`
	Categories    []int    `json:"categories"`
	Tags          []int    `json:"tags"`
	Sticky        bool     `json:"sticky,omitempty"`
	// Meta is passed through untouched; its shape varies between an array
	// and an object depending on the CMS plugins installed.
	Meta json.RawMessage `json:"meta,omitempty"`
}

type Author struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description string            `json:"description,omitempty"`
	Link        string            `json:"link,omitempty"`
	AvatarURLs  map[string]string `json:"avatar_urls,omitempty"`
}

type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	Parent      int    `json:"parent"`
	Count       int    `json:"count"`
}

type Tag struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}

type MediaSize struct {
	SourceURL string `json:"source_url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	MimeType  string `json:"mime_type,omitempty"`
}

type Media struct {
	ID           int      `json:"id"`
	SourceURL    string   `json:"source_url"`
	AltText      string   `json:"alt_text"`
	Caption      Rendered `json:"caption"`
	MimeType     string   `json:"mime_type"`
	MediaType    string   `json:"media_type,omitempty"`
	MediaDetails struct {
		Width  int                  `json:"width"`
		Height int                  `json:"height"`
		Sizes  map[string]MediaSize `json:"sizes,omitempty"`
	} `json:"media_details"`
}

// Kind classifies the media as "image", "video", "audio" or "other".
// Aliases such as "image/jpg" are resolved to their canonical type first.
func (m Media) Kind() string {
	mime := strings.ToLower(strings.TrimSpace(m.MimeType))
	if known := mimetype.Lookup(mime); known != nil {
		mime = known.String()
	}
	switch {
	case strings.HasPrefix(mime, "image/"):
		return "image"
	case strings.HasPrefix(mime, "video/"):
		return "video"
	case strings.HasPrefix(mime, "audio/"):
		return "audio"
	}
	return "other"
}

type Page struct {
	ID      int      `json:"id"`
	Slug    string   `json:"slug"`
	Date    string   `json:"date"`
	Title   Rendered `json:"title"`
	Content Rendered `json:"content"`
	Excerpt Rendered `json:"excerpt"`
	Parent  int      `json:"parent"`
}

// PostQuery holds the list filters shared by the post accessors.
type PostQuery struct {
	PerPage int    `json:"per_page,omitempty"`
	Page    int    `json:"page,omitempty"`
	Offset  int    `json:"offset,omitempty"`
	Search  string `json:"search,omitempty"`
}

// TermQuery selects posts filtered by one category, tag or author id.
type TermQuery struct {
	ID int `json:"id"`
	PostQuery
}

// EnhancedPost is a Post joined with its author, categories and featured
// media. It is built once per raw post and not mutated afterwards.
type EnhancedPost struct {
	Post
	TitleText    string     `json:"title_text"`
	ExcerptText  string     `json:"excerpt_text"`
	AuthorInfo   *Author    `json:"author_info,omitempty"`
	CategoryList []Category `json:"category_list"`
	Media        *Media     `json:"media,omitempty"`
}
