// Grounded on a goquery selector-fallback idiom (title -> og:title -> h1
// chain), adapted here to extracting a publish-date hint for the
// html_meta/html_parse date methods.
package fetch

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var metaDateSelectors = []string{
	`meta[property="article:published_time"]`,
	`meta[name="date"]`,
	`meta[name="publish-date"]`,
	`meta[itemprop="datePublished"]`,
}

// ExtractHTMLMetaDate returns the first non-empty date-ish meta tag content
// found in doc, used as dateMetaContent for the html_meta date method.
func ExtractHTMLMetaDate(doc *goquery.Document) string {
	for _, sel := range metaDateSelectors {
		if content, ok := doc.Find(sel).First().Attr("content"); ok {
			if v := strings.TrimSpace(content); v != "" {
				return v
			}
		}
	}
	return ""
}

// ExtractHTMLRelativeTimeText returns visible text from common "time ago"
// selectors, used as dateMetaContent for the html_parse date method when no
// explicit meta tag is present.
func ExtractHTMLRelativeTimeText(doc *goquery.Document, selector string) string {
	if selector == "" {
		selector = "time, .published, .date, .timestamp"
	}
	return strings.TrimSpace(doc.Find(selector).First().Text())
}
