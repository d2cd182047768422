package fetch

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestExtractHTMLMetaDate_PrefersPublishedTime(t *testing.T) {
	html := `<html><head>
		<meta name="date" content="2024-01-01">
		<meta property="article:published_time" content="2024-01-15T10:00:00Z">
	</head></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	require.Equal(t, "2024-01-15T10:00:00Z", ExtractHTMLMetaDate(doc))
}

func TestExtractHTMLMetaDate_NoneFound(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><head></head><body></body></html>`))
	require.NoError(t, err)
	require.Equal(t, "", ExtractHTMLMetaDate(doc))
}

func TestExtractHTMLRelativeTimeText_DefaultSelector(t *testing.T) {
	html := `<html><body><span class="date">3 days ago</span></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	require.Equal(t, "3 days ago", ExtractHTMLRelativeTimeText(doc, ""))
}

func TestExtractHTMLRelativeTimeText_CustomSelector(t *testing.T) {
	html := `<html><body><div class="byline-time">2 hours ago</div></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	require.Equal(t, "2 hours ago", ExtractHTMLRelativeTimeText(doc, ".byline-time"))
}
