package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText strips markup from a rendered HTML fragment, decodes entities
// and collapses whitespace. Used for titles and excerpts, which the CMS
// returns as HTML ("Rock &amp; Roll", "<p>Lead paragraph…</p>").
func PlainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
